// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package explore drives randomized exploration of a replay recording.
//
// One exploration opens a session, enumerates sources, searches for a
// location that is actually hit (a logpoint), pauses there, previews one
// object, steps over, and always releases the session afterwards.
//
// # Search
//
// The logpoint search picks a random source and then draws line locations
// without replacement. Each drawn location is tried once, at a random
// column. When every location of the source has produced no hits the
// exploration fails with ErrSearchExhausted.
//
// # Thread Safety
//
// A Driver runs one exploration and is not reentrant. Runner serializes
// explorations and closes the previous connection before starting another.
package explore
