// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package repo

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBareRepository(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "objects"), 0o777))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "refs", "heads"), 0o777))

	r, err := Open(root)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, root, r.Path)
	assert.NotNil(t, r.Objects)
	assert.NotNil(t, r.Refs)
}

func TestOpenWorktreePrefersDotGit(t *testing.T) {
	worktree := t.TempDir()
	gitDir := filepath.Join(worktree, ".git")
	require.NoError(t, os.MkdirAll(filepath.Join(gitDir, "objects"), 0o777))

	r, err := Open(worktree)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, gitDir, r.Path)
}

func TestOpenRejectsNonRepository(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}
