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
	"context"
	"encoding/json"
	"sync"
)

// Future is the eventual outcome of one command.
//
// Description:
//
//	A Future completes exactly once, either with a result or an error.
//	Later attempts to complete it return ErrAlreadyResolved and leave the
//	first outcome in place.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Future struct {
	id     int64
	method string

	mu       sync.Mutex
	resolved bool
	done     chan struct{}
	result   json.RawMessage
	err      error
}

// NewFuture creates an unresolved future for the given request.
func NewFuture(id int64, method string) *Future {
	return &Future{
		id:     id,
		method: method,
		done:   make(chan struct{}),
	}
}

// ID returns the request id the future belongs to.
func (f *Future) ID() int64 {
	return f.id
}

// Method returns the command the future belongs to.
func (f *Future) Method() string {
	return f.method
}

// Resolve completes the future successfully.
func (f *Future) Resolve(result json.RawMessage) error {
	return f.complete(result, nil)
}

// Reject completes the future with an error.
func (f *Future) Reject(err error) error {
	return f.complete(nil, err)
}

func (f *Future) complete(result json.RawMessage, err error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.resolved {
		return ErrAlreadyResolved
	}
	f.resolved = true
	f.result = result
	f.err = err
	close(f.done)
	return nil
}

// Done returns a channel that is closed when the future completes.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Resolved reports whether the future has completed.
func (f *Future) Resolved() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolved
}

// Wait blocks until the future completes or ctx is done.
//
// Outputs:
//
//	json.RawMessage - The result payload; nil when the response had none.
//	error - The rejection error, or ctx.Err() if ctx ended first.
func (f *Future) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.done:
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.result, f.err
	}
}
