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

import "math/big"

// Direction selects which side of a target FindClosest searches.
type Direction int

const (
	// Before searches for points strictly earlier than the target.
	Before Direction = iota

	// After searches for points strictly later than the target.
	After
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Before {
		return "before"
	}
	return "after"
}

// Compare orders two points by execution order.
//
// Returns -1 if a precedes b, 0 if they are the same point, +1 otherwise.
// Function ids are ignored.
func Compare(a, b Point) (int, error) {
	na, err := Encode(a)
	if err != nil {
		return 0, err
	}
	nb, err := Encode(b)
	if err != nil {
		return 0, err
	}
	return na.Cmp(nb), nil
}

// Equal reports whether a and b are the same execution point.
func Equal(a, b Point) (bool, error) {
	c, err := Compare(a, b)
	return c == 0, err
}

// Precedes reports whether a happens strictly before b.
func Precedes(a, b Point) (bool, error) {
	c, err := Compare(a, b)
	return c < 0, err
}

// FindClosest returns the point nearest to target on one side of it.
//
// Description:
//
//	Scans points and returns the one numerically closest to target that is
//	strictly before (or after) it. When inclusive is true and a point equal
//	to target is present, that point is returned immediately. When several
//	points encode identically, the first one encountered wins.
//
// Inputs:
//
//	points - Candidate points, in any order.
//	target - The reference point.
//	dir - Before or After.
//	inclusive - Whether a point equal to target qualifies.
//
// Outputs:
//
//	Point - The closest qualifying point.
//	bool - False when no point qualifies.
//	error - *EncodingError if target or any candidate cannot be encoded.
func FindClosest(points []Point, target Point, dir Direction, inclusive bool) (Point, bool, error) {
	nt, err := Encode(target)
	if err != nil {
		return Point{}, false, err
	}

	var (
		best  Point
		nbest *big.Int
	)
	for _, p := range points {
		np, err := Encode(p)
		if err != nil {
			return Point{}, false, err
		}

		c := np.Cmp(nt)
		if inclusive && c == 0 {
			return p, true, nil
		}

		var closer bool
		switch dir {
		case Before:
			closer = c < 0 && (nbest == nil || np.Cmp(nbest) > 0)
		default:
			closer = c > 0 && (nbest == nil || np.Cmp(nbest) < 0)
		}
		if closer {
			best, nbest = p, np
		}
	}

	return best, nbest != nil, nil
}
