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
	"fmt"
)

// Sentinel errors for point encoding.
var (
	// ErrFieldRange indicates a point field does not fit its bit width.
	ErrFieldRange = errors.New("point field out of range")

	// ErrUnknownKind indicates a position kind outside the known set.
	ErrUnknownKind = errors.New("unknown position kind")

	// ErrMalformed indicates encoded text or an integer that is not a point.
	ErrMalformed = errors.New("malformed encoded point")

	// ErrMemoMismatch indicates a decoded point disagrees with the point that
	// was stringified to produce it. The codec is not bijective for some
	// input, or two distinct points collided.
	ErrMemoMismatch = errors.New("decoded point disagrees with memoized point")
)

// EncodingError reports a field that cannot be packed or unpacked.
type EncodingError struct {
	// Field names the offending field (e.g., "progress").
	Field string

	// Value is the rejected value, formatted for display.
	Value string

	// Err is ErrFieldRange, ErrUnknownKind or ErrMalformed.
	Err error
}

// Error implements the error interface.
func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode point: %s=%s: %v", e.Field, e.Value, e.Err)
}

// Unwrap returns the underlying sentinel.
func (e *EncodingError) Unwrap() error {
	return e.Err
}

// InvariantError reports a broken codec contract. It is never recoverable;
// callers abort whatever operation observed it.
type InvariantError struct {
	// Encoded is the decimal text that was parsed.
	Encoded string

	// Field names the first field that disagreed.
	Field string

	// Want is the memoized value, Got the decoded value.
	Want, Got string
}

// Error implements the error interface.
func (e *InvariantError) Error() string {
	return fmt.Sprintf("point invariant violated for %s: %s memoized %s, decoded %s",
		e.Encoded, e.Field, e.Want, e.Got)
}

// Unwrap returns ErrMemoMismatch.
func (e *InvariantError) Unwrap() error {
	return ErrMemoMismatch
}

func rangeError(field string, value any) error {
	return &EncodingError{Field: field, Value: fmt.Sprint(value), Err: ErrFieldRange}
}
