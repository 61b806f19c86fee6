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
	"errors"
	"fmt"

	"github.com/AleutianAI/replayprobe/services/replay/point"
)

var (
	// ErrSearchExhausted indicates no line location of the chosen source
	// produced a logpoint.
	ErrSearchExhausted = errors.New("no line location produced a logpoint")

	// ErrNilConnection indicates a Driver was built without a connection.
	ErrNilConnection = errors.New("connection must not be nil")

	// ErrEmptyRecordingID indicates a missing recording id.
	ErrEmptyRecordingID = errors.New("recording id must not be empty")
)

// StepError records which step of an exploration failed.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// isFatal reports whether err must abort the exploration rather than be
// logged and recorded.
func isFatal(err error) bool {
	var encErr *point.EncodingError
	var invErr *point.InvariantError
	return errors.Is(err, ErrSearchExhausted) ||
		errors.Is(err, point.ErrMalformed) ||
		errors.As(err, &encErr) ||
		errors.As(err, &invErr)
}
