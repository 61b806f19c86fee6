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
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_StringifyParseRestoresFunctionID(t *testing.T) {
	c := NewCodec()
	p := Point{
		Checkpoint: 3,
		Progress:   99,
		Position:   &Position{Kind: KindOnStep, Offset: 14, FunctionID: "func-17", FrameIndex: 4},
	}

	s, err := c.Stringify(p)
	require.NoError(t, err)

	got, err := c.Parse(s)
	require.NoError(t, err)
	require.NotNil(t, got.Position)
	assert.Equal(t, "func-17", got.Position.FunctionID)
	assert.Equal(t, p, got)
}

func TestCodec_ParseUnseenLeavesFunctionIDUnset(t *testing.T) {
	c := NewCodec()

	got, err := c.Parse("1622592768293829581448683112628352")
	require.NoError(t, err)
	require.NotNil(t, got.Position)
	assert.Empty(t, got.Position.FunctionID)
	assert.Equal(t, 0, c.Len())
}

func TestCodec_FirstWriteWins(t *testing.T) {
	c := NewCodec()
	first := onStep(2, 8, 1, 0)
	second := onStep(2, 8, 1, 0)
	second.Position.FunctionID = "other"

	s1, err := c.Stringify(first)
	require.NoError(t, err)
	s2, err := c.Stringify(second)
	require.NoError(t, err)
	require.Equal(t, s1, s2)
	assert.Equal(t, 1, c.Len())

	got, err := c.Parse(s1)
	require.NoError(t, err)
	assert.Equal(t, "f", got.Position.FunctionID)
}

func TestCodec_MemoIsNotAliased(t *testing.T) {
	c := NewCodec()
	p := onStep(2, 8, 1, 0)

	s, err := c.Stringify(p)
	require.NoError(t, err)
	p.Position.FunctionID = "mutated"

	got, err := c.Parse(s)
	require.NoError(t, err)
	assert.Equal(t, "f", got.Position.FunctionID)
}

func TestCodec_MismatchIsInvariantViolation(t *testing.T) {
	c := NewCodec()
	p := onStep(2, 8, 1, 0)

	s, err := c.Stringify(p)
	require.NoError(t, err)

	// Corrupt the memo to simulate a collision.
	c.mu.Lock()
	corrupted := c.memo[s]
	corrupted.Progress = 9
	c.memo[s] = corrupted
	c.mu.Unlock()

	_, err = c.Parse(s)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMemoMismatch))

	var inv *InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, "progress", inv.Field)
	assert.Equal(t, "9", inv.Want)
	assert.Equal(t, "8", inv.Got)
}

func TestCodec_ParseRejectsNonDigits(t *testing.T) {
	c := NewCodec()
	for _, s := range []string{"", "-1", "+5", "0x1f", "12 ", "1e9"} {
		_, err := c.Parse(s)
		assert.ErrorIs(t, err, ErrMalformed, "input %q", s)
	}
}

func TestCodec_StringifyRejectsBadPoint(t *testing.T) {
	c := NewCodec()
	_, err := c.Stringify(Point{Checkpoint: 0})
	assert.ErrorIs(t, err, ErrFieldRange)
	assert.Equal(t, 0, c.Len())
}

func TestCodec_ConcurrentUse(t *testing.T) {
	c := NewCodec()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := onStep(1, int64(i), 0, 0)
			s, err := c.Stringify(p)
			assert.NoError(t, err)
			got, err := c.Parse(s)
			assert.NoError(t, err)
			assert.Equal(t, int64(i), got.Progress)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, c.Len())
}
