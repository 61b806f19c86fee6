// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package explore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/replayprobe/services/replay/protocol"
)

type memoryRecorder struct {
	mu      sync.Mutex
	reports []*Report
	err     error
}

func (m *memoryRecorder) Record(_ context.Context, r *Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, r)
	return m.err
}

func TestRunner_ExploresSequentially(t *testing.T) {
	var conns []*countingConn
	connect := func(context.Context) (Conn, error) {
		b := newFakeBackend(t, fakeRecording{})
		c := &countingConn{Channel: protocol.New(b)}
		conns = append(conns, c)
		return c, nil
	}
	rec := &memoryRecorder{}
	runner := NewRunner(connect, Config{Picker: firstPicker{}}, WithRecorder(rec))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	first, err := runner.Explore(ctx, "rec-a", "")
	require.NoError(t, err)
	second, err := runner.Explore(ctx, "rec-b", "https://example.test")
	require.NoError(t, err)

	assert.Equal(t, "rec-a", first.RecordingID)
	assert.Equal(t, "rec-b", second.RecordingID)
	assert.NotEqual(t, first.RunID, second.RunID)

	require.Len(t, conns, 2)
	// The driver closes its own connection and the runner closes it again
	// before the next exploration.
	assert.Equal(t, int32(2), conns[0].closes.Load())
	assert.Equal(t, int32(1), conns[1].closes.Load())

	require.NoError(t, runner.Close())
	assert.Equal(t, int32(2), conns[1].closes.Load())
	require.NoError(t, runner.Close())

	require.Len(t, rec.reports, 2)
	assert.Equal(t, first, rec.reports[0])
}

func TestRunner_ConnectFailure(t *testing.T) {
	boom := errors.New("dial refused")
	runner := NewRunner(func(context.Context) (Conn, error) { return nil, boom }, Config{})

	report, err := runner.Explore(context.Background(), "rec", "")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, report)
}

func TestRunner_RecorderFailureDoesNotFailRun(t *testing.T) {
	connect := func(context.Context) (Conn, error) {
		return &countingConn{Channel: protocol.New(newFakeBackend(t, fakeRecording{}))}, nil
	}
	rec := &memoryRecorder{err: errors.New("disk full")}
	runner := NewRunner(connect, Config{Picker: firstPicker{}}, WithRecorder(rec))
	defer runner.Close()

	report, err := runner.Explore(context.Background(), "rec", "")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoSources, report.Outcome)
	assert.Len(t, rec.reports, 1)
}

func TestRunner_EmptyRecordingID(t *testing.T) {
	conn := &countingConn{Channel: protocol.New(newFakeBackend(t, fakeRecording{}))}
	runner := NewRunner(func(context.Context) (Conn, error) { return conn, nil }, Config{})

	_, err := runner.Explore(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrEmptyRecordingID)
	assert.Equal(t, int32(1), conn.closes.Load())
}
