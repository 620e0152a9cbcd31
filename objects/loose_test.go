// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLooseStoreWriteThenRead(t *testing.T) {
	store := OpenLooseStore(t.TempDir())
	body := []byte("blob 13\x00Hello World!\n")

	id, err := store.WriteObject(body)
	require.NoError(t, err)
	assert.True(t, store.HasObject(id))

	r, err := store.ReadObject(id)
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestLooseStoreReadMissingIsNotFound(t *testing.T) {
	store := OpenLooseStore(t.TempDir())
	_, err := store.ReadObject(mustID(t, "1111111111111111111111111111111111111111"))
	assert.True(t, IsNotFound(err))
}

func TestLooseStoreDuplicateWriteRefreshesModTime(t *testing.T) {
	store := OpenLooseStore(t.TempDir())
	body := []byte("blob 3\x00abc")

	id, err := store.WriteObject(body)
	require.NoError(t, err)

	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(store.path(id), old, old))

	id2, err := store.WriteObject(body)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	fi, err := os.Stat(store.path(id))
	require.NoError(t, err)
	assert.True(t, fi.ModTime().After(old))
}

func TestLooseStoreHasObjectFalseWhenMissing(t *testing.T) {
	store := OpenLooseStore(t.TempDir())
	assert.False(t, store.HasObject(mustID(t, "2222222222222222222222222222222222222222")))
}
