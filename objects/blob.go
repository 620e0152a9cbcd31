// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

// Blob is a raw byte buffer: the simplest object kind, holding file
// contents verbatim.
type Blob struct {
	data   []byte
	offset int // always 0; kept for symmetry with the spec's "starting offset" field
}

func (Blob) isObjectData() {}

func parseBlob(body []byte) Blob {
	return Blob{data: body}
}

// Bytes returns the blob's raw contents.
func (b Blob) Bytes() []byte {
	return b.data[b.offset:]
}

// Len returns the number of bytes in the blob.
func (b Blob) Len() int {
	return len(b.data) - b.offset
}
