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
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Transport carries whole frames in both directions.
//
// ReadMessage is only called from one goroutine. It returns io.EOF when the
// peer closed the connection cleanly and must unblock once Close is called.
// WriteMessage may be called concurrently.
type Transport interface {
	WriteMessage(ctx context.Context, data []byte) error
	ReadMessage() ([]byte, error)
	Close() error
}

// Dialer opens a Transport to address.
type Dialer func(ctx context.Context, address string) (Transport, error)

// WebSocketConfig configures the WebSocket transport.
type WebSocketConfig struct {
	// HandshakeTimeout bounds the opening handshake. Zero means no bound
	// beyond the dial context.
	HandshakeTimeout time.Duration

	// MaxMessageBytes limits the size of inbound frames. Zero disables.
	MaxMessageBytes int64

	// Header is sent with the handshake request.
	Header http.Header
}

// DefaultWebSocketConfig returns the default WebSocket settings.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 30 * time.Second,
		MaxMessageBytes:  64 << 20,
	}
}

// NewWebSocketDialer returns a Dialer that opens WebSocket connections.
func NewWebSocketDialer(cfg WebSocketConfig) Dialer {
	return func(ctx context.Context, address string) (Transport, error) {
		d := websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
		conn, resp, err := d.DialContext(ctx, address, cfg.Header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("websocket dial %s: %s: %w", address, resp.Status, err)
			}
			return nil, fmt.Errorf("websocket dial %s: %w", address, err)
		}
		if cfg.MaxMessageBytes > 0 {
			conn.SetReadLimit(cfg.MaxMessageBytes)
		}
		return NewWebSocketTransport(conn), nil
	}
}

// WebSocketTransport adapts a gorilla WebSocket connection to Transport.
type WebSocketTransport struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewWebSocketTransport wraps an established connection.
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{conn: conn}
}

// WriteMessage sends one text frame. A deadline on ctx becomes the write
// deadline.
func (t *WebSocketTransport) WriteMessage(ctx context.Context, data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, _ := ctx.Deadline()
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

// ReadMessage returns the next data frame, skipping control frames.
func (t *WebSocketTransport) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// Close sends a close frame and closes the connection.
func (t *WebSocketTransport) Close() error {
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		_ = t.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		t.writeMu.Unlock()
		t.closeErr = t.conn.Close()
	})
	return t.closeErr
}
