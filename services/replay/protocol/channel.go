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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

// Callbacks are notified of connection-level happenings. Both are optional
// and are invoked from the read loop goroutine.
type Callbacks struct {
	// OnError receives dial failures and transport read errors.
	OnError func(err error)

	// OnClose is invoked once when the connection ends.
	OnClose func()
}

// Option configures a Channel.
type Option func(*Channel)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Channel) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCallbacks sets the connection callbacks.
func WithCallbacks(cb Callbacks) Option {
	return func(c *Channel) {
		c.callbacks = cb
	}
}

// WithRateLimit paces outbound commands through limiter.
func WithRateLimit(limiter *rate.Limiter) Option {
	return func(c *Channel) {
		c.limiter = limiter
	}
}

// WithDialer replaces the WebSocket dialer used by Dial.
func WithDialer(d Dialer) Option {
	return func(c *Channel) {
		if d != nil {
			c.dialer = d
		}
	}
}

// Channel correlates commands with responses and routes events.
//
// Description:
//
//	Commands sent before the connection is open wait for it. Each command
//	gets a fresh id starting at 1. A response completes the command with
//	the same id; an "error" member in the response is the only failure
//	signal. Frames without an id are events and go to the single handler
//	registered for their method.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Channel struct {
	logger    *slog.Logger
	callbacks Callbacks
	limiter   *rate.Limiter
	dialer    Dialer

	ready   chan struct{}
	dialErr error

	connMu    sync.Mutex
	transport Transport

	nextID    atomic.Int64
	pending   map[int64]*Future
	pendingMu sync.Mutex

	handlers *handlerTable

	closed    atomic.Bool
	closeOnce sync.Once
	readDone  chan struct{}
}

func newChannel(opts ...Option) *Channel {
	c := &Channel{
		logger:   slog.Default(),
		dialer:   NewWebSocketDialer(DefaultWebSocketConfig()),
		ready:    make(chan struct{}),
		pending:  make(map[int64]*Future),
		handlers: newHandlerTable(),
		readDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dial starts connecting to address and returns immediately.
//
// Description:
//
//	The connection is opened in the background. Commands sent in the
//	meantime block until it is open. A dial failure is reported through
//	Callbacks.OnError and fails every Send with ErrDialFailed.
//
// Inputs:
//
//	ctx - Bounds the dial only. Cancelling it later has no effect.
//	address - The backend URL (e.g., "wss://dispatch.example.com").
//	opts - Channel options.
//
// Outputs:
//
//	*Channel - The channel. Never nil.
func Dial(ctx context.Context, address string, opts ...Option) *Channel {
	c := newChannel(opts...)
	c.logger = c.logger.With(slog.String("address", address))

	go func() {
		t, err := c.dialer(ctx, address)
		if err != nil {
			c.dialErr = err
			close(c.ready)
			c.logger.Error("command channel dial failed", slog.String("error", err.Error()))
			c.notifyError(err)
			c.notifyClose()
			close(c.readDone)
			return
		}
		c.start(t)
	}()

	return c
}

// New wraps an already open transport.
func New(t Transport, opts ...Option) *Channel {
	c := newChannel(opts...)
	c.start(t)
	return c
}

func (c *Channel) start(t Transport) {
	c.connMu.Lock()
	c.transport = t
	closed := c.closed.Load()
	c.connMu.Unlock()

	close(c.ready)
	if closed {
		_ = t.Close()
	}
	go c.readLoop(t)
}

// Ready blocks until the connection is open.
//
// Outputs:
//
//	error - Wraps ErrDialFailed if the dial failed, or ctx.Err().
func (c *Channel) Ready(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ready:
	}
	if c.dialErr != nil {
		return fmt.Errorf("%w: %v", ErrDialFailed, c.dialErr)
	}
	return nil
}

// Done returns a channel closed when the connection has ended.
func (c *Channel) Done() <-chan struct{} {
	return c.readDone
}

// On registers the handler for an event kind.
//
// A kind has at most one handler. Registering again replaces the previous
// handler and logs a warning. A nil handler unregisters the kind.
//
// Outputs:
//
//	bool - True if a previous handler was replaced.
func (c *Channel) On(kind EventKind, h Handler) bool {
	replaced := c.handlers.set(kind, h)
	if replaced && h != nil {
		c.logger.Warn("replacing event handler", slog.String("event", string(kind)))
	}
	if !kind.Known() {
		c.logger.Debug("handler registered for unrecognized event", slog.String("event", string(kind)))
	}
	return replaced
}

// Send issues a command and waits for its response.
//
// Description:
//
//	Waits for the connection, assigns the next id, writes the frame, then
//	blocks until the response arrives, ctx ends, or the channel closes.
//	A nil params is sent as an empty object.
//
// Outputs:
//
//	json.RawMessage - The "result" member; nil if the response had none.
//	error - *ProtocolError when the response carried "error";
//	        ErrChannelClosed, ErrDialFailed, or ctx.Err() otherwise.
func (c *Channel) Send(ctx context.Context, method string, params any, opts ...SendOption) (json.RawMessage, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if err := c.Ready(ctx); err != nil {
		return nil, err
	}
	if c.closed.Load() {
		return nil, ErrChannelClosed
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	if params == nil {
		params = emptyParams
	}
	req := Request{
		ID:     c.nextID.Add(1),
		Method: method,
		Params: params,
	}
	for _, opt := range opts {
		opt(&req)
	}

	ctx, span := startCommandSpan(ctx, req.ID, method)
	defer span.End()
	start := time.Now()

	result, err := c.roundTrip(ctx, req)

	recordCommandMetrics(ctx, method, time.Since(start), err == nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	return result, nil
}

func (c *Channel) roundTrip(ctx context.Context, req Request) (json.RawMessage, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", req.Method, err)
	}

	fut := NewFuture(req.ID, req.Method)
	c.pendingMu.Lock()
	if c.closed.Load() {
		c.pendingMu.Unlock()
		return nil, ErrChannelClosed
	}
	c.pending[req.ID] = fut
	c.pendingMu.Unlock()

	c.connMu.Lock()
	t := c.transport
	c.connMu.Unlock()

	c.logger.Debug("sending command", slog.Int64("id", req.ID), slog.String("method", req.Method))
	if err := t.WriteMessage(ctx, data); err != nil {
		c.forget(req.ID)
		if c.closed.Load() {
			return nil, ErrChannelClosed
		}
		return nil, fmt.Errorf("write %s: %w", req.Method, err)
	}

	result, err := fut.Wait(ctx)
	if ctx.Err() != nil && !fut.Resolved() {
		c.forget(req.ID)
	}
	return result, err
}

func (c *Channel) forget(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

func (c *Channel) readLoop(t Transport) {
	defer close(c.readDone)

	for {
		data, err := t.ReadMessage()
		if err != nil {
			c.failPending(ErrChannelClosed)
			if !c.closed.Load() && !errors.Is(err, io.EOF) {
				c.logger.Error("command channel read failed", slog.String("error", err.Error()))
				c.notifyError(err)
			}
			c.logger.Info("command channel closed")
			c.notifyClose()
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame routes one inbound frame. Malformed frames are logged and
// dropped.
func (c *Channel) handleFrame(data []byte) {
	if !gjson.ValidBytes(data) {
		c.logger.Warn("dropping frame", slog.String("error", ErrInvalidFrame.Error()))
		return
	}

	if id := gjson.GetBytes(data, "id"); id.Exists() && id.Type == gjson.Number {
		c.handleResponse(id.Int(), data)
		return
	}

	method := gjson.GetBytes(data, "method")
	if !method.Exists() || method.Type != gjson.String {
		c.logger.Warn("dropping frame without id or method")
		return
	}
	c.handleEvent(EventKind(method.String()), data)
}

func (c *Channel) handleResponse(id int64, data []byte) {
	c.pendingMu.Lock()
	fut, ok := c.pending[id]
	delete(c.pending, id)
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Warn("response for unknown request", slog.Int64("id", id))
		return
	}

	// A null "error" counts as absent.
	var err error
	if e := gjson.GetBytes(data, "error"); e.Exists() && e.Type != gjson.Null {
		err = fut.Reject(parseProtocolError(fut.Method(), json.RawMessage(e.Raw)))
	} else if r := gjson.GetBytes(data, "result"); r.Exists() {
		err = fut.Resolve(json.RawMessage(r.Raw))
	} else {
		err = fut.Resolve(nil)
	}
	if err != nil {
		c.logger.Error("completing command", slog.Int64("id", id), slog.String("error", err.Error()))
	}
}

func (c *Channel) handleEvent(kind EventKind, data []byte) {
	h, ok := c.handlers.get(kind)
	recordEventMetrics(context.Background(), string(kind), ok)
	if !ok {
		c.logger.Debug("missing message handler", slog.String("event", string(kind)))
		return
	}

	params := gjson.GetBytes(data, "params")
	var raw json.RawMessage
	if params.Exists() {
		raw = json.RawMessage(params.Raw)
	}
	h(raw)
}

func (c *Channel) failPending(err error) {
	c.pendingMu.Lock()
	pending := c.pending
	c.pending = make(map[int64]*Future)
	c.pendingMu.Unlock()

	for _, fut := range pending {
		_ = fut.Reject(err)
	}
}

func (c *Channel) notifyError(err error) {
	if c.callbacks.OnError != nil {
		c.callbacks.OnError(err)
	}
}

func (c *Channel) notifyClose() {
	if c.callbacks.OnClose != nil {
		c.callbacks.OnClose()
	}
}

// Close closes the connection and fails every pending command with
// ErrChannelClosed. Safe to call multiple times.
func (c *Channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.pendingMu.Lock()
		c.closed.Store(true)
		c.pendingMu.Unlock()

		c.connMu.Lock()
		t := c.transport
		c.connMu.Unlock()

		if t != nil {
			err = t.Close()
		}
		c.failPending(ErrChannelClosed)
	})
	return err
}
