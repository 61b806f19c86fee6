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
	"errors"
	"fmt"
)

// Sentinel errors for channel operations.
var (
	// ErrChannelClosed indicates the channel was closed before the command
	// completed, or a command was sent on a closed channel.
	ErrChannelClosed = errors.New("command channel closed")

	// ErrDialFailed indicates the underlying connection could not be opened.
	ErrDialFailed = errors.New("command channel dial failed")

	// ErrAlreadyResolved indicates a second attempt to complete a Future.
	ErrAlreadyResolved = errors.New("future already resolved")

	// ErrInvalidFrame indicates an inbound frame that is not valid JSON.
	ErrInvalidFrame = errors.New("invalid protocol frame")
)

// ProtocolError is the error payload of a failed command.
//
// Backend error codes are opaque to this package; Code is zero when the
// payload carries none.
type ProtocolError struct {
	// Method is the command that failed.
	Method string `json:"-"`

	// Code is the backend error code.
	Code int `json:"code"`

	// Message is the backend error message.
	Message string `json:"message"`

	// Data contains optional additional data about the error.
	Data json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("protocol error %d on %s: %s", e.Code, e.Method, e.Message)
}

// parseProtocolError decodes an error payload. Payloads that are not
// objects (a bare string, a number) become the message text.
func parseProtocolError(method string, raw json.RawMessage) *ProtocolError {
	pe := &ProtocolError{}
	if err := json.Unmarshal(raw, pe); err != nil {
		var text string
		if json.Unmarshal(raw, &text) == nil {
			pe.Message = text
		} else {
			pe.Message = string(raw)
		}
	}
	pe.Method = method
	return pe
}
