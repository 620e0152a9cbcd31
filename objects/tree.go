// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"os"

	"golang.org/x/xerrors"
)

// ErrInvalidTree is returned, wrapped with a short static reason, when a
// tree body does not conform to the "<mode> <name>\0<20-byte id>" grammar.
var ErrInvalidTree = xerrors.New("objects: invalid tree")

// treeRecord is the on-disk shape of a single tree entry: the octal
// file mode, the byte range of the entry's filename within the owning
// buffer, and the byte offset of its 20-byte id.
type treeRecord struct {
	mode        uint16
	nameStart   int
	nameEnd     int
	idOffset    int
}

// Tree is an ordered sequence of directory entries, each naming a mode,
// a filename and the id of the blob/tree/commit (gitlink) it points to.
// Entries are held in the order present on disk; no textual field is
// copied out of the owning buffer.
type Tree struct {
	data    []byte
	records []treeRecord
}

func (Tree) isObjectData() {}

// ParseTreeBody parses a standalone tree body, for callers (CLI
// drivers, tests) that already hold a raw object body and its kind
// rather than going through ReadObjectBody.
func ParseTreeBody(body []byte) (Tree, error) {
	return parseTree(body)
}

func parseTree(body []byte) (Tree, error) {
	t := Tree{data: body}
	p := NewParser(body)
	for p.Remaining() > 0 {
		mode, err := p.ReadOctalUint(' ')
		if err != nil {
			return Tree{}, xerrors.Errorf("%w: %v", ErrInvalidTree, err)
		}
		nameStart, nameEnd, ok := p.ReadUntilByte(0)
		if !ok {
			return Tree{}, xerrors.Errorf("unterminated filename: %w", ErrInvalidTree)
		}
		idStart, _, err := p.ReadExact(IDLen)
		if err != nil {
			return Tree{}, xerrors.Errorf("truncated entry id: %w", ErrInvalidTree)
		}
		t.records = append(t.records, treeRecord{
			mode:      uint16(mode),
			nameStart: nameStart,
			nameEnd:   nameEnd,
			idOffset:  idStart,
		})
	}
	if p.Remaining() != 0 {
		return Tree{}, xerrors.Errorf("trailing bytes: %w", ErrInvalidTree)
	}
	return t, nil
}

// Len returns the number of entries in the tree.
func (t Tree) Len() int {
	return len(t.records)
}

// Entry returns a view of the i-th entry.
func (t Tree) Entry(i int) TreeEntry {
	return TreeEntry{tree: &t, rec: t.records[i]}
}

// Entries returns a slice of views over every entry, in on-disk order.
func (t Tree) Entries() []TreeEntry {
	out := make([]TreeEntry, len(t.records))
	for i := range t.records {
		out[i] = t.Entry(i)
	}
	return out
}

// TreeEntry is a lazily-materialized view into one Tree record.
type TreeEntry struct {
	tree *Tree
	rec  treeRecord
}

// Mode returns the raw git file mode (type<<12 | unix perm bits).
func (e TreeEntry) Mode() uint16 {
	return e.rec.mode
}

// FileMode translates the git mode into an os.FileMode.
func (e TreeEntry) FileMode() os.FileMode {
	return gitModeToOS(TreeMode(e.rec.mode))
}

// Filename returns the entry's name as a byte-string view into the
// owning tree's buffer.
func (e TreeEntry) Filename() []byte {
	return e.tree.data[e.rec.nameStart:e.rec.nameEnd]
}

// ID materializes the 20-byte id this entry points to.
func (e TreeEntry) ID() ID {
	var id ID
	copy(id[:], e.tree.data[e.rec.idOffset:e.rec.idOffset+IDLen])
	return id
}

// TreeMode is a git tree entry mode: (type<<12 | unix permission bits).
type TreeMode uint16

// The type component of a TreeMode, per Git's Documentation/technical.
const (
	TreeModeRegular TreeMode = 0o10 << 12
	TreeModeDir     TreeMode = 0o04 << 12
	TreeModeSymlink TreeMode = 0o02 << 12
	TreeModeGitlink          = TreeModeDir | TreeModeSymlink
)

func gitModeToOS(mode TreeMode) os.FileMode {
	m := os.FileMode(mode & 0o777)
	switch {
	case mode&TreeModeGitlink == TreeModeGitlink:
		return m | os.ModeDir | os.ModeSymlink
	case mode&TreeModeDir != 0:
		return m | os.ModeDir
	case mode&TreeModeSymlink != 0:
		return m | os.ModeSymlink
	default:
		return m
	}
}
