// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gitdelta implements the binary delta format used by Git
// packfiles to express one object as a patch against another ("base")
// object already present in the same pack.
package gitdelta

import (
	"golang.org/x/xerrors"
)

// Errors returned by Patch.
var (
	ErrInvalidHeader        = xerrors.New("gitdelta: invalid delta header")
	ErrInvalidCommand       = xerrors.New("gitdelta: copy command out of bounds")
	ErrUnsupportedCommand   = xerrors.New("gitdelta: reserved command byte 0")
	ErrBaseLengthMismatch   = xerrors.New("gitdelta: base length does not match delta header")
	ErrResultLengthMismatch = xerrors.New("gitdelta: result length does not match delta header")
)

// Patch reconstructs an object by applying delta to base, as described
// by Git's pack-format documentation: two leading 7-bit length-prefixed
// varints declare the expected base and result lengths, followed by a
// stream of Copy and Insert commands.
func Patch(base, delta []byte) ([]byte, error) {
	baseLen, n, err := readVarint(delta)
	if err != nil {
		return nil, err
	}
	delta = delta[n:]

	resultLen, n, err := readVarint(delta)
	if err != nil {
		return nil, err
	}
	delta = delta[n:]

	if baseLen != uint64(len(base)) {
		return nil, ErrBaseLengthMismatch
	}

	result := make([]byte, 0, resultLen)
	for len(delta) > 0 {
		cmd := delta[0]
		delta = delta[1:]

		switch {
		case cmd&0x80 != 0:
			var offset, size uint64
			if cmd&0x01 != 0 {
				offset, delta, err = takeByte(delta, offset, 0)
				if err != nil {
					return nil, err
				}
			}
			if cmd&0x02 != 0 {
				offset, delta, err = takeByte(delta, offset, 8)
				if err != nil {
					return nil, err
				}
			}
			if cmd&0x04 != 0 {
				offset, delta, err = takeByte(delta, offset, 16)
				if err != nil {
					return nil, err
				}
			}
			if cmd&0x08 != 0 {
				offset, delta, err = takeByte(delta, offset, 24)
				if err != nil {
					return nil, err
				}
			}
			if cmd&0x10 != 0 {
				size, delta, err = takeByte(delta, size, 0)
				if err != nil {
					return nil, err
				}
			}
			if cmd&0x20 != 0 {
				size, delta, err = takeByte(delta, size, 8)
				if err != nil {
					return nil, err
				}
			}
			if cmd&0x40 != 0 {
				size, delta, err = takeByte(delta, size, 16)
				if err != nil {
					return nil, err
				}
			}
			if size == 0 {
				size = 0x10000
			}
			if offset+size > uint64(len(base)) {
				return nil, ErrInvalidCommand
			}
			result = append(result, base[offset:offset+size]...)

		case cmd != 0:
			n := int(cmd)
			if n > len(delta) {
				return nil, ErrInvalidCommand
			}
			result = append(result, delta[:n]...)
			delta = delta[n:]

		default:
			return nil, ErrUnsupportedCommand
		}
	}

	if uint64(len(result)) != resultLen {
		return nil, ErrResultLengthMismatch
	}
	return result, nil
}

// takeByte consumes one byte from buf and ORs it, shifted by shift,
// into acc, returning the updated accumulator and the remaining bytes.
func takeByte(buf []byte, acc uint64, shift uint) (uint64, []byte, error) {
	if len(buf) == 0 {
		return 0, nil, ErrInvalidHeader
	}
	return acc | uint64(buf[0])<<shift, buf[1:], nil
}

// readVarint reads a little-endian 7-bit continuation-encoded integer
// (the delta header's base_len/result_len encoding: unlike the
// pack-entry object header, this one carries no type bits and no bias).
func readVarint(buf []byte) (value uint64, n int, err error) {
	var shift uint
	for i, b := range buf {
		if shift >= 64 {
			return 0, 0, ErrInvalidHeader
		}
		value |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, ErrInvalidHeader
}
