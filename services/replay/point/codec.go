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
	"math/big"
)

// Field widths, least significant first.
const (
	offsetBits     = 32
	kindBits       = 3
	frameBits      = 24
	hasPosBits     = 1
	progressBits   = 48
	checkpointBits = 32

	positionBits = offsetBits + kindBits + frameBits + hasPosBits

	// EncodedBits is the total width of an encoded point.
	EncodedBits = positionBits + progressBits + checkpointBits
)

// maxFrameIndex is the largest frame index the inverted field can hold.
const maxFrameIndex = int64(1)<<frameBits - 1

// fieldWriter packs unsigned fields into a big.Int from the low bits up.
type fieldWriter struct {
	n     *big.Int
	shift uint
}

func (w *fieldWriter) add(v uint64, nbits uint) {
	if v != 0 {
		field := new(big.Int).SetUint64(v)
		w.n.Or(w.n, field.Lsh(field, w.shift))
	}
	w.shift += nbits
}

// fieldReader unpacks unsigned fields from the low bits up.
type fieldReader struct {
	n *big.Int
}

func (r *fieldReader) read(nbits uint) uint64 {
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), nbits), big.NewInt(1))
	v := new(big.Int).And(r.n, mask).Uint64()
	r.n.Rsh(r.n, nbits)
	return v
}

func fits(v int64, nbits uint) bool {
	return v >= 0 && uint64(v) < uint64(1)<<nbits
}

// Encode packs a point into an integer whose order matches execution order.
//
// Description:
//
//	Points that precede each other in the recording encode to integers that
//	are numerically less than each other. The function id of the position
//	is not part of the encoding.
//
// Inputs:
//
//	p - The point to encode.
//
// Outputs:
//
//	*big.Int - Non-negative integer of at most EncodedBits bits.
//	error - *EncodingError if any field does not fit its width or the kind
//	        is unknown.
//
// Thread Safety:
//
//	Safe for concurrent use.
func Encode(p Point) (*big.Int, error) {
	w := fieldWriter{n: new(big.Int)}

	if pos := p.Position; pos != nil {
		if !fits(pos.Offset, offsetBits) {
			return nil, rangeError("offset", pos.Offset)
		}
		code, ok := kindCodes[pos.Kind]
		if !ok {
			return nil, &EncodingError{Field: "kind", Value: string(pos.Kind), Err: ErrUnknownKind}
		}
		if pos.FrameIndex < 0 || pos.FrameIndex > maxFrameIndex {
			return nil, rangeError("frameIndex", pos.FrameIndex)
		}

		w.add(uint64(pos.Offset), offsetBits)
		w.add(code, kindBits)
		// Deeper frames predate shallower frames with the same progress.
		w.add(uint64(maxFrameIndex-pos.FrameIndex), frameBits)
		// Points with positions are later than points with none.
		w.add(1, hasPosBits)
	} else {
		w.add(0, positionBits)
	}

	if !fits(p.Progress, progressBits) {
		return nil, rangeError("progress", p.Progress)
	}
	w.add(uint64(p.Progress), progressBits)

	// The first checkpoint in a recording encodes as zero.
	rel := p.Checkpoint - FirstCheckpointID
	if !fits(rel, checkpointBits) {
		return nil, rangeError("checkpoint", p.Checkpoint)
	}
	w.add(uint64(rel), checkpointBits)

	return w.n, nil
}

// Decode unpacks an integer produced by Encode.
//
// Description:
//
//	Inverse of Encode. The returned position, if any, has no function id.
//	When the has-position flag is clear the low position bits are ignored.
//
// Inputs:
//
//	n - Encoded point. Not modified.
//
// Outputs:
//
//	Point - The decoded point.
//	error - *EncodingError wrapping ErrMalformed for negative or over-wide
//	        values, or ErrUnknownKind for kind codes above OnUnwind.
//
// Thread Safety:
//
//	Safe for concurrent use.
func Decode(n *big.Int) (Point, error) {
	if n == nil || n.Sign() < 0 || n.BitLen() > EncodedBits {
		return Point{}, &EncodingError{Field: "encoded", Value: n.String(), Err: ErrMalformed}
	}

	r := fieldReader{n: new(big.Int).Set(n)}
	offset := r.read(offsetBits)
	kindCode := r.read(kindBits)
	inverted := r.read(frameBits)
	hasPosition := r.read(hasPosBits)
	progress := r.read(progressBits)
	checkpoint := int64(r.read(checkpointBits)) + FirstCheckpointID

	p := Point{Checkpoint: checkpoint, Progress: int64(progress)}
	if hasPosition == 0 {
		return p, nil
	}

	if kindCode >= uint64(len(codeKinds)) {
		return Point{}, &EncodingError{Field: "kind", Value: n.String(), Err: ErrUnknownKind}
	}
	p.Position = &Position{
		Kind:       codeKinds[kindCode],
		Offset:     int64(offset),
		FrameIndex: maxFrameIndex - int64(inverted),
	}
	return p, nil
}
