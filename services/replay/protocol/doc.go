// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package protocol implements the command channel to a replay backend.
//
// A Channel owns one duplex connection. Outbound commands become JSON frames
// of the form {id, method, params, sessionId?}; inbound frames either
// complete the pending command with the same id or are dispatched to the
// handler registered for their method.
//
// # Architecture
//
//	┌──────────┐  Send   ┌───────────┐  WriteMessage  ┌───────────┐
//	│  caller  │ ──────► │  Channel  │ ─────────────► │ Transport │
//	│          │ ◄────── │  pending  │ ◄───────────── │ (ws, ...) │
//	└──────────┘ Future  │  handlers │  readLoop      └───────────┘
//	                     └───────────┘
//
// # Ordering
//
// A single read loop handles frames in arrival order and runs event handlers
// inline. Every event that arrives before a response has been handled by the
// time the sender of that command wakes up.
//
// # Thread Safety
//
// Channel is safe for concurrent use. Handlers run on the read loop
// goroutine and must not block on commands sent through the same channel.
package protocol
