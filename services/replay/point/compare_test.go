// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package point

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	a := Point{Checkpoint: 1, Progress: 5}
	b := onStep(1, 5, 0, 0)

	c, err := Compare(a, b)
	require.NoError(t, err)
	assert.Equal(t, -1, c)

	c, err = Compare(b, a)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	before, err := Precedes(a, b)
	require.NoError(t, err)
	assert.True(t, before)

	// Function ids do not take part in ordering.
	other := onStep(1, 5, 0, 0)
	other.Position.FunctionID = "g"
	eq, err := Equal(b, other)
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestCompare_PropagatesEncodingError(t *testing.T) {
	_, err := Compare(Point{Checkpoint: 0}, FirstCheckpointPoint)
	assert.ErrorIs(t, err, ErrFieldRange)
}

func TestFindClosest(t *testing.T) {
	points := []Point{
		{Checkpoint: 1, Progress: 10},
		{Checkpoint: 1, Progress: 30},
		{Checkpoint: 1, Progress: 20},
		{Checkpoint: 2, Progress: 0},
	}
	target := Point{Checkpoint: 1, Progress: 20}

	tests := []struct {
		name      string
		dir       Direction
		inclusive bool
		want      Point
		found     bool
	}{
		{"before exclusive", Before, false, Point{Checkpoint: 1, Progress: 10}, true},
		{"after exclusive", After, false, Point{Checkpoint: 1, Progress: 30}, true},
		{"before inclusive", Before, true, target, true},
		{"after inclusive", After, true, target, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := FindClosest(points, target, tt.dir, tt.inclusive)
			require.NoError(t, err)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFindClosest_NoneQualifies(t *testing.T) {
	points := []Point{{Checkpoint: 3, Progress: 0}}

	_, ok, err := FindClosest(points, Point{Checkpoint: 1, Progress: 0}, Before, false)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = FindClosest(nil, FirstCheckpointPoint, After, true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindClosest_TieKeepsFirst(t *testing.T) {
	first := onStep(1, 4, 2, 0)
	second := onStep(1, 4, 2, 0)
	second.Position.FunctionID = "second"

	got, ok, err := FindClosest([]Point{first, second}, Point{Checkpoint: 1, Progress: 9}, Before, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "f", got.Position.FunctionID)
}

func TestDirection_String(t *testing.T) {
	assert.Equal(t, "before", Before.String())
	assert.Equal(t, "after", After.String())
}
