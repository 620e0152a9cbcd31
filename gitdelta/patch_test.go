// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gitdelta

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeVarint(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			break
		}
	}
	return out
}

func TestPatchInsertOnly(t *testing.T) {
	base := []byte("irrelevant")
	want := []byte("hello, world")

	var delta []byte
	delta = append(delta, encodeVarint(uint64(len(base)))...)
	delta = append(delta, encodeVarint(uint64(len(want)))...)
	delta = append(delta, byte(len(want)))
	delta = append(delta, want...)

	got, err := Patch(base, delta)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPatchCopyAndInsert(t *testing.T) {
	base := []byte("the quick brown fox jumps over the lazy dog")
	want := []byte("the lazy fox")

	var delta []byte
	delta = append(delta, encodeVarint(uint64(len(base)))...)
	delta = append(delta, encodeVarint(uint64(len(want)))...)

	// Copy "the " at offset 0, length 4: cmd with offset byte 0 and size byte 4 present.
	delta = append(delta, 0x80|0x01|0x10, 0x00, 0x04)
	// Copy "lazy " from offset 35, length 5.
	delta = append(delta, 0x80|0x01|0x10, 35, 5)
	// Insert "fox".
	delta = append(delta, byte(len("fox")))
	delta = append(delta, "fox"...)

	got, err := Patch(base, delta)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestPatchCopyZeroSizeMeansMaxSize(t *testing.T) {
	base := make([]byte, 0x10000)
	for i := range base {
		base[i] = byte(i)
	}

	var delta []byte
	delta = append(delta, encodeVarint(uint64(len(base)))...)
	delta = append(delta, encodeVarint(uint64(len(base)))...)
	// Copy whole base: offset=0 (absent bytes), size=0 (absent -> 0x10000).
	delta = append(delta, 0x80)

	got, err := Patch(base, delta)
	require.NoError(t, err)
	assert.Equal(t, base, got)
}

func TestPatchRejectsBaseLengthMismatch(t *testing.T) {
	base := []byte("short")
	var delta []byte
	delta = append(delta, encodeVarint(99)...)
	delta = append(delta, encodeVarint(0)...)

	_, err := Patch(base, delta)
	assert.ErrorIs(t, err, ErrBaseLengthMismatch)
}

func TestPatchRejectsResultLengthMismatch(t *testing.T) {
	base := []byte("abc")
	var delta []byte
	delta = append(delta, encodeVarint(uint64(len(base)))...)
	delta = append(delta, encodeVarint(5)...) // lie about the result length
	delta = append(delta, 2, 'h', 'i')

	_, err := Patch(base, delta)
	assert.ErrorIs(t, err, ErrResultLengthMismatch)
}

func TestPatchRejectsReservedCommand(t *testing.T) {
	base := []byte("abc")
	var delta []byte
	delta = append(delta, encodeVarint(uint64(len(base)))...)
	delta = append(delta, encodeVarint(0)...)
	delta = append(delta, 0x00)

	_, err := Patch(base, delta)
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
}

func TestPatchRejectsOutOfBoundsCopy(t *testing.T) {
	base := []byte("abc")
	var delta []byte
	delta = append(delta, encodeVarint(uint64(len(base)))...)
	delta = append(delta, encodeVarint(10)...)
	delta = append(delta, 0x80|0x01|0x10, 0, 10) // offset=0, size=10 > len(base)

	_, err := Patch(base, delta)
	assert.ErrorIs(t, err, ErrInvalidCommand)
}
