// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadObjectHeaderBlob(t *testing.T) {
	b := NewBuffer(bytes.NewReader([]byte("blob 13\x00Hello World!\n")))
	hdr, err := ReadObjectHeader(b)
	require.NoError(t, err)
	assert.Equal(t, Header{Kind: KindBlob, Len: 13}, hdr)

	body, err := ReadObjectBody(b, hdr)
	require.NoError(t, err)
	blob, ok := body.(Blob)
	require.True(t, ok)
	assert.Equal(t, "Hello World!\n", string(blob.Bytes()))
}

func TestReadObjectHeaderRejectsUnknownKind(t *testing.T) {
	b := NewBuffer(bytes.NewReader([]byte("widget 3\x00abc")))
	_, err := ReadObjectHeader(b)
	assert.ErrorIs(t, err, ErrUnsupportedObjectKind)
}

func TestReadObjectHeaderRejectsMissingNUL(t *testing.T) {
	b := NewBuffer(bytes.NewReader(bytes.Repeat([]byte("x"), maxHeaderLen+4)))
	_, err := ReadObjectHeader(b)
	assert.Error(t, err)
}

func TestKindRoundTripsThroughBytes(t *testing.T) {
	for _, k := range []Kind{KindCommit, KindTree, KindBlob, KindTag} {
		got, ok := kindFromBytes([]byte(k.String()))
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
}

func TestObjectKindDerivesFromData(t *testing.T) {
	o := Object{Data: parseBlob([]byte("x"))}
	assert.Equal(t, KindBlob, o.Kind())
}
