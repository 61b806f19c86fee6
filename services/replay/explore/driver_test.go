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
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/replayprobe/services/replay/api"
	"github.com/AleutianAI/replayprobe/services/replay/point"
	"github.com/AleutianAI/replayprobe/services/replay/protocol"
	"github.com/AleutianAI/replayprobe/services/replay/protocol/protocoltest"
)

// firstPicker always picks index 0.
type firstPicker struct{}

func (firstPicker) IntN(int) int { return 0 }

// countingConn records how often Close was called.
type countingConn struct {
	*protocol.Channel
	closes atomic.Int32
}

func (c *countingConn) Close() error {
	c.closes.Add(1)
	return c.Channel.Close()
}

func encodePoint(t *testing.T, checkpoint, progress int64) string {
	t.Helper()
	n, err := point.Encode(point.Point{Checkpoint: checkpoint, Progress: progress})
	require.NoError(t, err)
	return n.String()
}

// fakeRecording scripts the backend's view of one recording.
type fakeRecording struct {
	sources []api.Source
	lines   map[string][]api.LineLocations
	// hits maps a line to the logpoints any column of it produces.
	hits       map[int][]api.Logpoint
	staleHits  bool
	objects    []api.ObjectRef
	stepTarget string

	failMethod string
}

func newFakeBackend(t *testing.T, rec fakeRecording) *protocoltest.Backend {
	t.Helper()
	b := protocoltest.NewBackend()

	var mu sync.Mutex
	analysisLocations := map[string]api.Location{}
	var analyses int

	ok := func(result any) protocoltest.HandlerFunc {
		return func(protocoltest.Request) protocoltest.Reply {
			return protocoltest.Reply{Result: result}
		}
	}

	b.Handle(api.MethodGetDescription, ok(map[string]any{"title": "fixture", "duration": 10}))
	b.Handle(api.MethodCreateSession, ok(map[string]string{"sessionId": "sess-1"}))
	b.Handle(api.MethodLabelTestSession, ok(map[string]any{}))
	b.Handle(api.MethodEnsureProcessed, func(protocoltest.Request) protocoltest.Reply {
		return protocoltest.Reply{Events: []protocol.Event{
			protocoltest.Event(string(protocol.EventUnprocessedRegions), map[string]any{"regions": []any{}}),
		}}
	})
	b.Handle(api.MethodReleaseSession, ok(map[string]any{}))
	b.Handle(api.MethodGetObjectPreview, ok(map[string]any{"data": map[string]any{}}))

	b.Handle(api.MethodFindSources, func(protocoltest.Request) protocoltest.Reply {
		reply := protocoltest.Reply{Result: map[string]any{}}
		for _, src := range rec.sources {
			reply.Events = append(reply.Events, protocoltest.Event(string(protocol.EventNewSource), src))
		}
		return reply
	})

	b.Handle(api.MethodGetPossibleBreakpoints, func(req protocoltest.Request) protocoltest.Reply {
		var p struct {
			SourceID string `json:"sourceId"`
		}
		_ = json.Unmarshal(req.Params, &p)
		return protocoltest.Reply{Result: map[string]any{"lineLocations": rec.lines[p.SourceID]}}
	})

	b.Handle(api.MethodCreateAnalysis, func(protocoltest.Request) protocoltest.Reply {
		mu.Lock()
		analyses++
		id := fmt.Sprintf("an-%d", analyses)
		mu.Unlock()
		return protocoltest.Reply{Result: map[string]string{"analysisId": id}}
	})

	b.Handle(api.MethodAddLocation, func(req protocoltest.Request) protocoltest.Reply {
		var p struct {
			Location   api.Location `json:"location"`
			AnalysisID string       `json:"analysisId"`
		}
		_ = json.Unmarshal(req.Params, &p)
		mu.Lock()
		analysisLocations[p.AnalysisID] = p.Location
		mu.Unlock()
		return protocoltest.Reply{Result: map[string]any{}}
	})

	b.Handle(api.MethodRunAnalysis, func(req protocoltest.Request) protocoltest.Reply {
		var p struct {
			AnalysisID string `json:"analysisId"`
		}
		_ = json.Unmarshal(req.Params, &p)
		mu.Lock()
		loc := analysisLocations[p.AnalysisID]
		mu.Unlock()

		reply := protocoltest.Reply{Result: map[string]any{}}
		resultsFor := func(id string, lps []api.Logpoint) protocol.Event {
			entries := make([]map[string]any, 0, len(lps))
			for _, lp := range lps {
				entries = append(entries, map[string]any{"key": lp.Point, "value": lp})
			}
			return protocoltest.Event(string(protocol.EventAnalysisResult), map[string]any{
				"analysisId": id,
				"results":    entries,
			})
		}
		if rec.staleHits {
			stale := []api.Logpoint{{Point: encodePoint(t, 1, 999)}}
			reply.Events = append(reply.Events, resultsFor("stale", stale))
		}
		// Results may be split over several events.
		for _, lp := range rec.hits[loc.Line] {
			reply.Events = append(reply.Events, resultsFor(p.AnalysisID, []api.Logpoint{lp}))
		}
		return reply
	})

	b.Handle(api.MethodCreatePause, func(req protocoltest.Request) protocoltest.Reply {
		return protocoltest.Reply{Result: map[string]any{
			"pauseId": "pause-1",
			"data":    map[string]any{"objects": rec.objects},
		}}
	})

	b.Handle(api.MethodFindStepOverTarget, ok(map[string]any{
		"target": map[string]any{"point": rec.stepTarget, "time": 1},
	}))

	if rec.failMethod != "" {
		b.Handle(rec.failMethod, func(protocoltest.Request) protocoltest.Reply {
			return protocoltest.Reply{Error: &protocol.ProtocolError{Code: 1, Message: "injected failure"}}
		})
	}
	return b
}

func runDriver(t *testing.T, b *protocoltest.Backend, picker Picker) (*Report, *countingConn, error) {
	t.Helper()
	conn := &countingConn{Channel: protocol.New(b)}
	d, err := NewDriver(conn, Config{
		RecordingID: "rec-1",
		LabelURL:    "https://example.test/page",
		Picker:      picker,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, runErr := d.Run(ctx)
	require.NotNil(t, report)
	return report, conn, runErr
}

func linesOf(nums ...int) []api.LineLocations {
	out := make([]api.LineLocations, 0, len(nums))
	for _, n := range nums {
		out = append(out, api.LineLocations{Line: n, Columns: []int{0, 4, 8}})
	}
	return out
}

func addedLines(t *testing.T, b *protocoltest.Backend) []int {
	t.Helper()
	var lines []int
	for _, req := range b.Calls(api.MethodAddLocation) {
		var p struct {
			Location api.Location `json:"location"`
		}
		require.NoError(t, json.Unmarshal(req.Params, &p))
		lines = append(lines, p.Location.Line)
	}
	return lines
}

func TestDriver_HappyPath(t *testing.T) {
	hit := api.Logpoint{Time: 3, PauseID: "lp-pause", Point: encodePoint(t, 2, 40)}
	b := newFakeBackend(t, fakeRecording{
		sources:    []api.Source{{SourceID: "src-1", Kind: api.SourceKindScriptSource, URL: "app.js"}},
		lines:      map[string][]api.LineLocations{"src-1": linesOf(10, 20, 30)},
		hits:       map[int][]api.Logpoint{20: {hit}},
		objects:    []api.ObjectRef{{ObjectID: "obj-1", ClassName: "Window"}},
		stepTarget: encodePoint(t, 2, 41),
	})

	report, conn, err := runDriver(t, b, firstPicker{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Equal(t, StateDone, report.FinalState)
	assert.Equal(t, "sess-1", report.SessionID)
	assert.Equal(t, 1, report.Sources)
	assert.Equal(t, "src-1", report.SourceID)
	assert.Equal(t, 3, report.LineLocations)
	// Swap-remove with index 0 tries 10, then 30, then 20.
	assert.Equal(t, []int{10, 30, 20}, addedLines(t, b))
	assert.Equal(t, 3, report.CandidatesTried)
	require.NotNil(t, report.Logpoint)
	assert.Equal(t, hit, *report.Logpoint)
	assert.Equal(t, &api.Location{SourceID: "src-1", Line: 20, Column: 0}, report.Location)
	assert.Equal(t, "pause-1", report.PauseID)
	assert.Equal(t, "obj-1", report.ObjectID)
	assert.NotEmpty(t, report.RunID)
	assert.Contains(t, report.Description, "fixture")

	pause := b.Calls(api.MethodCreatePause)
	require.Len(t, pause, 1)
	assert.JSONEq(t, fmt.Sprintf(`{"point":%q}`, hit.Point), string(pause[0].Params))
	assert.Equal(t, "sess-1", pause[0].SessionID)

	preview := b.Calls(api.MethodGetObjectPreview)
	require.Len(t, preview, 1)
	assert.Equal(t, "pause-1", preview[0].PauseID)

	require.Len(t, b.Calls(api.MethodFindStepOverTarget), 1)
	release := b.Calls(api.MethodReleaseSession)
	require.Len(t, release, 1)
	assert.JSONEq(t, `{"sessionId":"sess-1"}`, string(release[0].Params))
	assert.Equal(t, int32(1), conn.closes.Load())

	label := b.Calls(api.MethodLabelTestSession)[0]
	assert.JSONEq(t, `{"sessionId":"sess-1","url":"https://example.test/page"}`, string(label.Params))
	assert.Equal(t, "sess-1", b.Calls(api.MethodEnsureProcessed)[0].SessionID)
}

func TestDriver_ZeroSources(t *testing.T) {
	b := newFakeBackend(t, fakeRecording{})

	report, conn, err := runDriver(t, b, firstPicker{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeNoSources, report.Outcome)
	assert.Equal(t, StateNoSources, report.FinalState)
	assert.Empty(t, b.Calls(api.MethodGetPossibleBreakpoints))
	assert.Empty(t, b.Calls(api.MethodCreatePause))
	assert.Empty(t, b.Calls(api.MethodGetObjectPreview))
	assert.Empty(t, b.Calls(api.MethodFindStepOverTarget))
	assert.Len(t, b.Calls(api.MethodReleaseSession), 1)
	assert.Equal(t, int32(1), conn.closes.Load())
}

func TestDriver_SearchExhaustedWithoutRevisits(t *testing.T) {
	lines := linesOf(1, 2, 3, 4, 5, 6, 7)
	b := newFakeBackend(t, fakeRecording{
		sources: []api.Source{{SourceID: "src-1"}},
		lines:   map[string][]api.LineLocations{"src-1": lines},
	})

	report, _, err := runDriver(t, b, NewPicker(42))
	require.ErrorIs(t, err, ErrSearchExhausted)

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StateSearchingLineLocation, stepErr.State)

	assert.Equal(t, OutcomeAborted, report.Outcome)
	assert.Equal(t, StateAborted, report.FinalState)
	assert.Equal(t, len(lines), report.CandidatesTried)

	tried := addedLines(t, b)
	assert.Len(t, tried, len(lines))
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7}, tried)
	assert.Len(t, b.Calls(api.MethodRunAnalysis), len(lines))

	assert.Empty(t, b.Calls(api.MethodCreatePause))
	assert.Len(t, b.Calls(api.MethodReleaseSession), 1)
}

func TestDriver_LinesWithoutColumnsAreSkipped(t *testing.T) {
	b := newFakeBackend(t, fakeRecording{
		sources: []api.Source{{SourceID: "src-1"}},
		lines: map[string][]api.LineLocations{"src-1": {
			{Line: 1},
			{Line: 2, Columns: []int{}},
		}},
	})

	report, _, err := runDriver(t, b, firstPicker{})
	require.ErrorIs(t, err, ErrSearchExhausted)
	assert.Equal(t, 2, report.CandidatesTried)
	assert.Empty(t, b.Calls(api.MethodCreateAnalysis))
}

func TestDriver_StaleAnalysisResultsIgnored(t *testing.T) {
	b := newFakeBackend(t, fakeRecording{
		sources:   []api.Source{{SourceID: "src-1"}},
		lines:     map[string][]api.LineLocations{"src-1": linesOf(1, 2)},
		staleHits: true,
	})

	_, _, err := runDriver(t, b, firstPicker{})
	assert.ErrorIs(t, err, ErrSearchExhausted)
	assert.Empty(t, b.Calls(api.MethodCreatePause))
}

func TestDriver_CreateSessionFailureAborts(t *testing.T) {
	b := newFakeBackend(t, fakeRecording{failMethod: api.MethodCreateSession})

	report, conn, err := runDriver(t, b, firstPicker{})
	require.Error(t, err)

	var pe *protocol.ProtocolError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, OutcomeAborted, report.Outcome)
	assert.Empty(t, report.SessionID)
	assert.Empty(t, b.Calls(api.MethodReleaseSession))
	assert.Empty(t, b.Calls(api.MethodLabelTestSession))
	assert.Equal(t, int32(1), conn.closes.Load())
}

func TestDriver_SetupFailureStillReleases(t *testing.T) {
	for _, method := range []string{api.MethodLabelTestSession, api.MethodEnsureProcessed} {
		t.Run(method, func(t *testing.T) {
			b := newFakeBackend(t, fakeRecording{failMethod: method})

			report, conn, err := runDriver(t, b, firstPicker{})
			require.Error(t, err)

			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, StateHaveSession, stepErr.State)
			assert.Equal(t, OutcomeAborted, report.Outcome)
			assert.Empty(t, b.Calls(api.MethodFindSources))
			assert.Len(t, b.Calls(api.MethodReleaseSession), 1)
			assert.Equal(t, int32(1), conn.closes.Load())
		})
	}
}

func TestDriver_StepFailureIsLoggedNotFatal(t *testing.T) {
	b := newFakeBackend(t, fakeRecording{
		sources:    []api.Source{{SourceID: "src-1"}},
		lines:      map[string][]api.LineLocations{"src-1": linesOf(5)},
		hits:       map[int][]api.Logpoint{5: {{Point: encodePoint(t, 1, 7)}}},
		failMethod: api.MethodCreatePause,
	})

	report, _, err := runDriver(t, b, firstPicker{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, report.Outcome)
	assert.Equal(t, StateLogpointChosen, report.FinalState)
	assert.Contains(t, report.Error, "injected failure")
	assert.Empty(t, b.Calls(api.MethodFindStepOverTarget))
	assert.Len(t, b.Calls(api.MethodReleaseSession), 1)
}

func TestDriver_PauseWithoutObjectsSkipsPreview(t *testing.T) {
	b := newFakeBackend(t, fakeRecording{
		sources: []api.Source{{SourceID: "src-1"}},
		lines:   map[string][]api.LineLocations{"src-1": linesOf(5)},
		hits:    map[int][]api.Logpoint{5: {{Point: encodePoint(t, 1, 7)}}},
	})

	report, _, err := runDriver(t, b, firstPicker{})
	require.NoError(t, err)

	assert.Equal(t, OutcomeCompleted, report.Outcome)
	assert.Empty(t, report.ObjectID)
	assert.Empty(t, b.Calls(api.MethodGetObjectPreview))
	assert.Len(t, b.Calls(api.MethodFindStepOverTarget), 1)
}

func TestDriver_DescriptionFailureUsesPlaceholder(t *testing.T) {
	b := newFakeBackend(t, fakeRecording{failMethod: api.MethodGetDescription})

	report, _, err := runDriver(t, b, firstPicker{})
	require.NoError(t, err)
	assert.Equal(t, descriptionPlaceholder, report.Description)
	assert.Equal(t, OutcomeNoSources, report.Outcome)
}

func TestDriver_MalformedLogpointAborts(t *testing.T) {
	b := newFakeBackend(t, fakeRecording{
		sources: []api.Source{{SourceID: "src-1"}},
		lines:   map[string][]api.LineLocations{"src-1": linesOf(5)},
		hits:    map[int][]api.Logpoint{5: {{Point: "not-a-point"}}},
	})

	report, _, err := runDriver(t, b, firstPicker{})
	require.ErrorIs(t, err, point.ErrMalformed)
	assert.Equal(t, OutcomeAborted, report.Outcome)
	assert.Empty(t, b.Calls(api.MethodCreatePause))
	assert.Len(t, b.Calls(api.MethodReleaseSession), 1)
}

func TestNewDriver_Validation(t *testing.T) {
	_, err := NewDriver(nil, Config{RecordingID: "r"})
	assert.ErrorIs(t, err, ErrNilConnection)

	conn := &countingConn{Channel: protocol.New(protocoltest.NewBackend())}
	defer conn.Close()
	_, err = NewDriver(conn, Config{})
	assert.ErrorIs(t, err, ErrEmptyRecordingID)
}

func TestState_TextRoundTrip(t *testing.T) {
	for s := StateStart; s <= StateAborted; s++ {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var back State
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateNoSources.Terminal())
	assert.False(t, StatePaused.Terminal())
}
