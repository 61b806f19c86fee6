// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package point encodes execution points of a recording into comparable
// integers.
//
// An execution point names a place in a recorded execution where the program
// can pause: the most recent checkpoint, the value of the progress counter,
// and, when frames are on the stack, the position within the topmost frame.
// The replay protocol identifies points by the decimal text of a 140-bit
// integer whose numeric order equals execution order.
//
// # Bit Layout
//
// Fields are packed from least to most significant:
//
//	bits   0..31   offset within the function (0 when unused)
//	bits  32..34   position kind (EnterFrame=0 .. OnUnwind=4)
//	bits  35..58   2^24-1-frameIndex (deeper frames sort first)
//	bit   59       has-position flag
//	bits  60..107  progress counter
//	bits 108..139  checkpoint - FirstCheckpointID
//
// The function id of a position cannot be packed. Codec keeps a memo from
// stringified points back to the original point so Parse can restore it.
//
// # Thread Safety
//
// The free functions are pure. Codec is safe for concurrent use.
package point
