// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package repo opens a Git repository on disk and wires together its
// object database and reference database. It sits outside the object
// store's core scope (§1): it owns no parsing logic of its own, only
// the path-layout convention ("<worktree>/.git", or a bare repository
// root) that the two sub-stores are rooted at.
package repo

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"

	"github.com/oudompheng/gitodb/objects"
	"github.com/oudompheng/gitodb/refdb"
)

// Repo is an opened repository: its object database (loose objects and
// packs) and its reference database (HEAD, branches, tags).
type Repo struct {
	Path string // the ".git" directory itself, not the worktree

	Objects *objects.Database
	Refs    *refdb.Database
}

// Open locates the repository's metadata directory and wires up its
// object and reference databases.
//
// dirname may be either a bare repository (its root directly contains
// "objects/" and "refs/") or a worktree (dirname/.git contains them).
// Open tries dirname/.git first, falling back to dirname itself.
func Open(dirname string) (*Repo, error) {
	gitDir := filepath.Join(dirname, ".git")
	if !isRepoRoot(gitDir) {
		gitDir = dirname
		if !isRepoRoot(gitDir) {
			return nil, xerrors.Errorf("repo: %s: not a git repository", dirname)
		}
	}

	return &Repo{
		Path:    gitDir,
		Objects: objects.OpenDatabase(gitDir),
		Refs:    refdb.Open(gitDir),
	}, nil
}

func isRepoRoot(path string) bool {
	info, err := os.Stat(filepath.Join(path, "objects"))
	return err == nil && info.IsDir()
}

// Close releases resources (currently: every pack mapped by the
// object database) held by the repository.
func (r *Repo) Close() error {
	return r.Objects.Close()
}
