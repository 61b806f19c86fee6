// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package protocol

import (
	"encoding/json"
	"sync"
)

// EventKind names an inbound event method.
type EventKind string

// Event kinds the backend is known to emit.
const (
	EventNewSource          EventKind = "Debugger.newSource"
	EventAnalysisResult     EventKind = "Analysis.analysisResult"
	EventMissingRegions     EventKind = "Session.missingRegions"
	EventUnprocessedRegions EventKind = "Session.unprocessedRegions"
)

// Known reports whether the kind is one the backend is known to emit.
func (k EventKind) Known() bool {
	switch k {
	case EventNewSource, EventAnalysisResult, EventMissingRegions, EventUnprocessedRegions:
		return true
	default:
		return false
	}
}

// Handler processes the params of one event.
type Handler func(params json.RawMessage)

// handlerTable holds at most one handler per event kind.
type handlerTable struct {
	mu       sync.RWMutex
	handlers map[EventKind]Handler
}

func newHandlerTable() *handlerTable {
	return &handlerTable{handlers: make(map[EventKind]Handler)}
}

// set installs h for kind and reports whether an existing handler was
// replaced. A nil h removes the entry.
func (t *handlerTable) set(kind EventKind, h Handler) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, replaced := t.handlers[kind]
	if h == nil {
		delete(t.handlers, kind)
	} else {
		t.handlers[kind] = h
	}
	return replaced
}

func (t *handlerTable) get(kind EventKind) (Handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[kind]
	return h, ok
}
