// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/xerrors"
)

// LooseStore is the "objects/xx/yyyy..." directory of loose,
// individually zlib-compressed objects underneath a repository root.
// Both reading and writing operate on full 20-byte identifiers; there
// is no prefix resolution at this layer.
type LooseStore struct {
	root string // "<repo>/objects"
}

// OpenLooseStore returns a LooseStore rooted at <root>/objects. The
// directory is not required to exist yet; WriteObject creates the
// fan-out subdirectories lazily.
func OpenLooseStore(root string) *LooseStore {
	return &LooseStore{root: filepath.Join(root, "objects")}
}

func (s *LooseStore) path(id ID) string {
	hex := id.String()
	return filepath.Join(s.root, hex[:2], hex[2:])
}

// ReadObject opens the loose file for id and returns a reader yielding
// the exact on-disk encoding "<kind> <len>\0<body>" after zlib
// inflation. Missing file is reported as a *NotFoundError.
func (s *LooseStore) ReadObject(id ID) (io.ReadCloser, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewNotFoundError(id)
		}
		return nil, xerrors.Errorf("objects: open loose object %s: %w", id, err)
	}
	zr, err := zlib.NewReader(f)
	if err != nil {
		f.Close()
		return nil, xerrors.Errorf("objects: inflate loose object %s: %w", id, err)
	}
	return &zlibReadCloser{zr: zr, f: f}, nil
}

type zlibReadCloser struct {
	zr io.ReadCloser
	f  *os.File
}

func (z *zlibReadCloser) Read(p []byte) (int, error) { return z.zr.Read(p) }

func (z *zlibReadCloser) Close() error {
	zerr := z.zr.Close()
	ferr := z.f.Close()
	if zerr != nil {
		return zerr
	}
	return ferr
}

// WriteObject computes id = SHA-1(bytes) and stores bytes (the full
// "<kind> <len>\0<body>" encoding) as a zlib-compressed loose object.
//
// If an object with that id already exists, the pre-existing copy is
// treated as authoritative: its modification time is refreshed on a
// best-effort basis (failures ignored) and the call otherwise succeeds
// without rewriting it. A concurrent writer racing on the same id will
// always observe one of "file already existed" or "I created it"; no
// partial file is ever visible to a reader.
func (s *LooseStore) WriteObject(bytes []byte) (ID, error) {
	id := IDFromHash(bytes)
	path := s.path(id)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o777); err != nil {
		return ID{}, xerrors.Errorf("objects: create loose dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o444)
	if err != nil {
		if os.IsExist(err) {
			now := time.Now()
			_ = os.Chtimes(path, now, now)
			return id, nil
		}
		return ID{}, xerrors.Errorf("objects: create loose object: %w", err)
	}
	defer f.Close()

	zw, err := zlib.NewWriterLevel(f, zlib.BestCompression)
	if err != nil {
		return ID{}, xerrors.Errorf("objects: %w", err)
	}
	if _, err := zw.Write(bytes); err != nil {
		zw.Close()
		return ID{}, xerrors.Errorf("objects: write loose object: %w", err)
	}
	if err := zw.Close(); err != nil {
		return ID{}, xerrors.Errorf("objects: flush loose object: %w", err)
	}
	return id, nil
}

// HasObject reports whether a loose copy of id exists, without
// attempting to read or decompress it.
func (s *LooseStore) HasObject(id ID) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}
