// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"bytes"

	"golang.org/x/xerrors"
)

// ErrInvalidCommit is returned, wrapped with a reason, when a commit
// body does not conform to the header grammar.
var ErrInvalidCommit = xerrors.New("objects: invalid commit")

// Commit is a single revision: a snapshot tree, zero or more parent
// commits, authorship and committer metadata, and a free-form message.
//
// Duplicate author/committer header lines are tolerated (a handful of
// early Linux kernel commits have them); the first occurrence wins and
// later ones are ignored, matching the historical behavior relied upon
// by existing history.
type Commit struct {
	data      []byte
	Tree      ID
	Parents   []ID
	Author    Signature
	Committer Signature
	Encoding  []byte // raw header value, nil if absent
	message   int    // byte offset where the message begins
}

func (Commit) isObjectData() {}

func parseCommit(body []byte) (Commit, error) {
	c := Commit{data: body}
	p := NewParser(body)

	treeStart, _, ok, err := p.ReadPrefixLine([]byte("tree "))
	if err != nil {
		return Commit{}, xerrors.Errorf("%w", ErrInvalidCommit)
	}
	if !ok {
		return Commit{}, xerrors.Errorf("missing tree header: %w", ErrInvalidCommit)
	}
	c.Tree, err = IDFromHex(string(body[treeStart : treeStart+IDHexLen]))
	if err != nil {
		return Commit{}, xerrors.Errorf("bad tree id: %w", ErrInvalidCommit)
	}

	for {
		start, _, ok, err := p.ReadPrefixLine([]byte("parent "))
		if err != nil {
			return Commit{}, xerrors.Errorf("%w", ErrInvalidCommit)
		}
		if !ok {
			break
		}
		id, err := IDFromHex(string(body[start : start+IDHexLen]))
		if err != nil {
			return Commit{}, xerrors.Errorf("bad parent id: %w", ErrInvalidCommit)
		}
		c.Parents = append(c.Parents, id)
	}

	haveAuthor := false
	haveCommitter := false
	for {
		if start, end, ok, err := p.ReadPrefixLine([]byte("author ")); err != nil {
			return Commit{}, xerrors.Errorf("%w", ErrInvalidCommit)
		} else if ok {
			if !haveAuthor {
				c.Author, err = parseSignature(body[start:end])
				if err != nil {
					return Commit{}, err
				}
				haveAuthor = true
			}
			continue
		}
		if start, end, ok, err := p.ReadPrefixLine([]byte("committer ")); err != nil {
			return Commit{}, xerrors.Errorf("%w", ErrInvalidCommit)
		} else if ok {
			if !haveCommitter {
				c.Committer, err = parseSignature(body[start:end])
				if err != nil {
					return Commit{}, err
				}
				haveCommitter = true
			}
			continue
		}
		if start, end, ok, err := p.ReadPrefixLine([]byte("encoding ")); err != nil {
			return Commit{}, xerrors.Errorf("%w", ErrInvalidCommit)
		} else if ok {
			if c.Encoding == nil {
				c.Encoding = body[start:end]
			}
			continue
		}
		// Any other header line ("gpgsig ...", "mergetag ...", multi-line
		// or otherwise) is skipped verbatim: only encoding is retained.
		if bytes.HasPrefix(p.Bytes()[p.Pos():], []byte("\n")) {
			break
		}
		if _, _, ok := p.ReadLine(); !ok {
			return Commit{}, xerrors.Errorf("unterminated header line: %w", ErrInvalidCommit)
		}
	}

	if !haveAuthor {
		return Commit{}, xerrors.Errorf("missing author header: %w", ErrInvalidCommit)
	}
	if !haveCommitter {
		return Commit{}, xerrors.Errorf("missing committer header: %w", ErrInvalidCommit)
	}

	if !p.ConsumeByte('\n') {
		return Commit{}, xerrors.Errorf("missing header/message separator: %w", ErrInvalidCommit)
	}
	c.message = p.Pos()
	return c, nil
}

// Message returns the commit's free-form message, including any
// trailing trailers, verbatim.
func (c Commit) Message() []byte {
	return c.data[c.message:]
}
