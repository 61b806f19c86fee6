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

import "fmt"

const (
	// InvalidCheckpointID is never assigned to a real checkpoint.
	InvalidCheckpointID int64 = 0

	// FirstCheckpointID is the checkpoint at the start of every recording.
	FirstCheckpointID int64 = 1
)

// FirstCheckpointPoint is the earliest point in any recording.
var FirstCheckpointPoint = Point{Checkpoint: FirstCheckpointID, Progress: 0}

// Kind describes where inside a frame execution can pause.
type Kind string

const (
	// KindEnterFrame pauses at the beginning of a frame.
	KindEnterFrame Kind = "EnterFrame"

	// KindOnStep pauses at a breakpoint location within a frame.
	KindOnStep Kind = "OnStep"

	// KindOnThrow pauses when an exception is thrown.
	KindOnThrow Kind = "OnThrow"

	// KindOnPop pauses when a frame exits normally.
	KindOnPop Kind = "OnPop"

	// KindOnUnwind pauses when a frame unwinds with an exception.
	KindOnUnwind Kind = "OnUnwind"
)

// kindCodes maps kinds to their 3-bit encoding. The order is significant:
// at equal frame and progress, lower codes happen first.
var kindCodes = map[Kind]uint64{
	KindEnterFrame: 0,
	KindOnStep:     1,
	KindOnThrow:    2,
	KindOnPop:      3,
	KindOnUnwind:   4,
}

// codeKinds is the inverse of kindCodes.
var codeKinds = [...]Kind{KindEnterFrame, KindOnStep, KindOnThrow, KindOnPop, KindOnUnwind}

// Valid reports whether k is one of the known position kinds.
func (k Kind) Valid() bool {
	_, ok := kindCodes[k]
	return ok
}

// Position describes the topmost frame at an execution point.
//
// FrameIndex counts from the bottom of the stack so it stays stable for the
// lifetime of the frame. Offset is only meaningful for OnStep positions and
// is zero otherwise.
type Position struct {
	Kind       Kind   `json:"kind"`
	Offset     int64  `json:"offset,omitempty"`
	FunctionID string `json:"functionId,omitempty"`
	FrameIndex int64  `json:"frameIndex"`
}

// Point is a uniquely ordered location in a recording.
//
// Points are values; nothing in this package mutates a Point after it is
// built. Position is nil when no frames are on the stack.
type Point struct {
	Checkpoint int64     `json:"checkpoint"`
	Progress   int64     `json:"progress"`
	Position   *Position `json:"position,omitempty"`
}

// HasPosition reports whether the point carries an in-frame position.
func (p Point) HasPosition() bool {
	return p.Position != nil
}

// String renders the point for logs.
func (p Point) String() string {
	if p.Position == nil {
		return fmt.Sprintf("%d:%d", p.Checkpoint, p.Progress)
	}
	return fmt.Sprintf("%d:%d:%s", p.Checkpoint, p.Progress, PositionString(*p.Position))
}

// PositionString renders a position as kind:offset:functionId:frameIndex.
func PositionString(pos Position) string {
	return fmt.Sprintf("%s:%d:%s:%d", pos.Kind, pos.Offset, pos.FunctionID, pos.FrameIndex)
}

// clone returns a deep copy so memoized points cannot be aliased by callers.
func (p Point) clone() Point {
	if p.Position == nil {
		return p
	}
	pos := *p.Position
	p.Position = &pos
	return p
}
