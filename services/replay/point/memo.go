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
	"fmt"
	"math/big"
	"sync"
)

// Codec converts points to and from their protocol string form and
// remembers the points it has stringified.
//
// Description:
//
//	The function id of a position cannot be packed into the encoding, and
//	recomputing it requires a round trip to the backend. Codec keeps the
//	first point stringified to each text so that parsing the same text later
//	restores the function id. Entries are never evicted; scope a Codec to a
//	single exploration session so the memo dies with it.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Codec struct {
	mu   sync.RWMutex
	memo map[string]Point
}

// NewCodec creates a codec with an empty memo.
func NewCodec() *Codec {
	return &Codec{memo: make(map[string]Point)}
}

// Stringify returns the protocol text of a point and memoizes it.
//
// Description:
//
//	Returns the decimal text of Encode(p). The first point stringified to a
//	given text is kept; later calls with an equal text do not replace it.
//
// Inputs:
//
//	p - The point to stringify.
//
// Outputs:
//
//	string - Decimal text of the encoded point.
//	error - *EncodingError if the point cannot be encoded.
func (c *Codec) Stringify(p Point) (string, error) {
	n, err := Encode(p)
	if err != nil {
		return "", err
	}
	s := n.String()

	c.mu.Lock()
	if _, seen := c.memo[s]; !seen {
		c.memo[s] = p.clone()
	}
	c.mu.Unlock()

	return s, nil
}

// Parse converts protocol text back into a point.
//
// Description:
//
//	Decodes the integer and, when the text was stringified by this codec,
//	checks that every encoded field agrees with the memoized point and copies
//	its function id. Text never stringified here yields a position with an
//	empty function id.
//
// Inputs:
//
//	s - Decimal text of an encoded point. Digits only.
//
// Outputs:
//
//	Point - The decoded point.
//	error - *EncodingError for malformed text, or *InvariantError when the
//	        decoded point disagrees with the memo. An InvariantError means the
//	        codec contract is broken and must abort the caller.
func (c *Codec) Parse(s string) (Point, error) {
	n, err := parseDecimal(s)
	if err != nil {
		return Point{}, err
	}
	p, err := Decode(n)
	if err != nil {
		return Point{}, err
	}

	c.mu.RLock()
	seen, ok := c.memo[s]
	c.mu.RUnlock()
	if !ok {
		return p, nil
	}

	if err := checkAgreement(s, seen, p); err != nil {
		return Point{}, err
	}
	if seen.Position != nil {
		p.Position.FunctionID = seen.Position.FunctionID
	}
	return p, nil
}

// Len returns the number of memoized strings.
func (c *Codec) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.memo)
}

// parseDecimal accepts only ASCII digits so that text like "+5" or "0x1f"
// never aliases a canonical point string.
func parseDecimal(s string) (*big.Int, error) {
	if s == "" {
		return nil, &EncodingError{Field: "encoded", Value: `""`, Err: ErrMalformed}
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, &EncodingError{Field: "encoded", Value: s, Err: ErrMalformed}
		}
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, &EncodingError{Field: "encoded", Value: s, Err: ErrMalformed}
	}
	return n, nil
}

func checkAgreement(s string, seen, got Point) error {
	mismatch := func(field string, want, have any) error {
		return &InvariantError{
			Encoded: s,
			Field:   field,
			Want:    fmt.Sprint(want),
			Got:     fmt.Sprint(have),
		}
	}

	if seen.Checkpoint != got.Checkpoint {
		return mismatch("checkpoint", seen.Checkpoint, got.Checkpoint)
	}
	if seen.Progress != got.Progress {
		return mismatch("progress", seen.Progress, got.Progress)
	}
	if seen.HasPosition() != got.HasPosition() {
		return mismatch("position", seen.HasPosition(), got.HasPosition())
	}
	if seen.Position == nil {
		return nil
	}
	if seen.Position.Kind != got.Position.Kind {
		return mismatch("kind", seen.Position.Kind, got.Position.Kind)
	}
	if seen.Position.Offset != got.Position.Offset {
		return mismatch("offset", seen.Position.Offset, got.Position.Offset)
	}
	if seen.Position.FrameIndex != got.Position.FrameIndex {
		return mismatch("frameIndex", seen.Position.FrameIndex, got.Position.FrameIndex)
	}
	return nil
}
