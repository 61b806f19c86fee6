// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package protocoltest provides an in-memory replay backend for tests.
package protocoltest

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/AleutianAI/replayprobe/services/replay/protocol"
)

// Request is a command as the backend received it.
type Request struct {
	ID        int64           `json:"id"`
	Method    string          `json:"method"`
	Params    json.RawMessage `json:"params"`
	SessionID string          `json:"sessionId,omitempty"`
	PauseID   string          `json:"pauseId,omitempty"`
}

// Reply is what a handler answers with. Events are delivered before the
// response. A nil Error with a nil Result produces a response with no
// result member.
type Reply struct {
	Result any
	Error  *protocol.ProtocolError
	Events []protocol.Event

	// NoResponse suppresses the response frame.
	NoResponse bool
}

// HandlerFunc answers one command.
type HandlerFunc func(req Request) Reply

// Backend is a scripted protocol.Transport.
//
// Writes are decoded as commands and answered by the handler registered
// for their method. Unregistered methods are answered with a
// method-not-found error.
type Backend struct {
	mu       sync.Mutex
	handlers map[string]HandlerFunc
	requests []Request

	incoming  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewBackend creates a backend with no handlers.
func NewBackend() *Backend {
	return &Backend{
		handlers: make(map[string]HandlerFunc),
		incoming: make(chan []byte, 4096),
		done:     make(chan struct{}),
	}
}

// Handle registers fn for method.
func (b *Backend) Handle(method string, fn HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[method] = fn
}

// Result registers a handler that always returns result.
func (b *Backend) Result(method string, result any) {
	b.Handle(method, func(Request) Reply { return Reply{Result: result} })
}

// Requests returns a copy of every command received so far.
func (b *Backend) Requests() []Request {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Request, len(b.requests))
	copy(out, b.requests)
	return out
}

// Calls returns the commands received for method.
func (b *Backend) Calls(method string) []Request {
	var out []Request
	for _, r := range b.Requests() {
		if r.Method == method {
			out = append(out, r)
		}
	}
	return out
}

// Push queues a raw inbound frame.
func (b *Backend) Push(frame []byte) {
	b.incoming <- frame
}

// Emit queues an event frame.
func (b *Backend) Emit(method string, params any) {
	b.Push(mustMarshal(map[string]any{"method": method, "params": params}))
}

// Respond queues a success response for id.
func (b *Backend) Respond(id int64, result any) {
	b.Push(mustMarshal(map[string]any{"id": id, "result": result}))
}

// WriteMessage implements protocol.Transport.
func (b *Backend) WriteMessage(ctx context.Context, data []byte) error {
	select {
	case <-b.done:
		return io.ErrClosedPipe
	default:
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}

	b.mu.Lock()
	b.requests = append(b.requests, req)
	fn, ok := b.handlers[req.Method]
	b.mu.Unlock()

	if !ok {
		b.Push(mustMarshal(map[string]any{
			"id":    req.ID,
			"error": protocol.ProtocolError{Code: -32601, Message: "method not found: " + req.Method},
		}))
		return nil
	}

	reply := fn(req)
	for _, ev := range reply.Events {
		b.Push(mustMarshal(ev))
	}
	if reply.NoResponse {
		return nil
	}

	frame := map[string]any{"id": req.ID}
	switch {
	case reply.Error != nil:
		frame["error"] = reply.Error
	case reply.Result != nil:
		frame["result"] = reply.Result
	}
	b.Push(mustMarshal(frame))
	return nil
}

// ReadMessage implements protocol.Transport.
func (b *Backend) ReadMessage() ([]byte, error) {
	select {
	case <-b.done:
		return nil, io.EOF
	case data := <-b.incoming:
		return data, nil
	}
}

// Close implements protocol.Transport.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}

// Dialer returns a protocol.Dialer that always connects to b.
func (b *Backend) Dialer() protocol.Dialer {
	return func(context.Context, string) (protocol.Transport, error) {
		return b, nil
	}
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

// Event builds an event frame with params marshaled from v.
func Event(method string, v any) protocol.Event {
	return protocol.Event{Method: method, Params: mustMarshal(v)}
}
