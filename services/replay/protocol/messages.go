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

import "encoding/json"

// =============================================================================
// WIRE MESSAGE TYPES
// =============================================================================

// Request is an outbound command frame.
type Request struct {
	// ID correlates the response. Starts at 1 and is never reused.
	ID int64 `json:"id"`

	// Method is the command to invoke (e.g., "Session.createPause").
	Method string `json:"method"`

	// Params contains the command parameters. Always an object on the wire.
	Params any `json:"params"`

	// SessionID scopes the command to a replay session.
	SessionID string `json:"sessionId,omitempty"`

	// PauseID scopes the command to a pause within the session.
	PauseID string `json:"pauseId,omitempty"`
}

// Response is an inbound frame answering a Request.
//
// Exactly one of Result and Error is expected. The presence of Error is the
// only failure signal; a missing or empty Result is a success.
type Response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  json.RawMessage `json:"error,omitempty"`
}

// Event is an inbound frame with no id.
type Event struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// SendOption sets optional routing fields on a Request.
type SendOption func(*Request)

// WithSession scopes a command to a session.
func WithSession(sessionID string) SendOption {
	return func(r *Request) {
		r.SessionID = sessionID
	}
}

// WithPause scopes a command to a pause.
func WithPause(pauseID string) SendOption {
	return func(r *Request) {
		r.PauseID = pauseID
	}
}

// emptyParams is sent when the caller passes nil params.
var emptyParams = struct{}{}
