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
	"sync"

	"github.com/AleutianAI/replayprobe/services/replay/api"
	"github.com/AleutianAI/replayprobe/services/replay/point"
)

// Session is the state of one exploration.
//
// It holds the recording and session ids, the sources seen so far, and the
// point codec whose memo is scoped to this exploration.
type Session struct {
	RecordingID string
	SessionID   string
	Codec       *point.Codec

	mu      sync.Mutex
	state   State
	sources []api.Source
}

// NewSession creates a session for recordingID in StateStart.
func NewSession(recordingID string) *Session {
	return &Session{
		RecordingID: recordingID,
		Codec:       point.NewCodec(),
		state:       StateStart,
	}
}

// State returns the current step.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) addSource(src api.Source) {
	s.mu.Lock()
	s.sources = append(s.sources, src)
	s.mu.Unlock()
}

// Sources returns a copy of the sources seen so far.
func (s *Session) Sources() []api.Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Source, len(s.sources))
	copy(out, s.sources)
	return out
}

// logpointCollector accumulates the values of one analysis at a time.
type logpointCollector struct {
	mu         sync.Mutex
	analysisID string
	values     []api.Logpoint
}

// reset starts collecting for analysisID and discards earlier values.
func (c *logpointCollector) reset(analysisID string) {
	c.mu.Lock()
	c.analysisID = analysisID
	c.values = nil
	c.mu.Unlock()
}

// add keeps the values of r unless r belongs to another analysis.
func (c *logpointCollector) add(r api.AnalysisResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r.AnalysisID != "" && r.AnalysisID != c.analysisID {
		return false
	}
	for _, e := range r.Results {
		c.values = append(c.values, e.Value)
	}
	return true
}

func (c *logpointCollector) take() []api.Logpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.values
	c.values = nil
	return out
}
