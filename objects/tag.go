// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"golang.org/x/xerrors"
)

// ErrInvalidTag is returned, wrapped with a reason, when a tag body
// does not conform to the header grammar.
var ErrInvalidTag = xerrors.New("objects: invalid tag")

// Tag is an annotated tag: a reference to another object, the kind of
// that object, the tag's own name, optional tagger metadata, and a
// free-form message.
type Tag struct {
	data      []byte
	Object    ID
	TargetKind Kind
	Name      []byte
	Tagger    Signature
	HasTagger bool
	message   int
	hasMsg    bool
}

func (Tag) isObjectData() {}

func parseTag(body []byte) (Tag, error) {
	t := Tag{data: body}
	p := NewParser(body)

	objStart, _, ok, err := p.ReadPrefixLine([]byte("object "))
	if err != nil {
		return Tag{}, xerrors.Errorf("%w", ErrInvalidTag)
	}
	if !ok {
		return Tag{}, xerrors.Errorf("missing object header: %w", ErrInvalidTag)
	}
	t.Object, err = IDFromHex(string(body[objStart : objStart+IDHexLen]))
	if err != nil {
		return Tag{}, xerrors.Errorf("bad object id: %w", ErrInvalidTag)
	}

	typeStart, typeEnd, ok, err := p.ReadPrefixLine([]byte("type "))
	if err != nil {
		return Tag{}, xerrors.Errorf("%w", ErrInvalidTag)
	}
	if !ok {
		return Tag{}, xerrors.Errorf("missing type header: %w", ErrInvalidTag)
	}
	kind, ok := kindFromBytes(body[typeStart:typeEnd])
	if !ok {
		return Tag{}, xerrors.Errorf("%q: %w", body[typeStart:typeEnd], ErrUnsupportedObjectKind)
	}
	t.TargetKind = kind

	nameStart, nameEnd, ok, err := p.ReadPrefixLine([]byte("tag "))
	if err != nil {
		return Tag{}, xerrors.Errorf("%w", ErrInvalidTag)
	}
	if !ok {
		return Tag{}, xerrors.Errorf("missing tag header: %w", ErrInvalidTag)
	}
	t.Name = body[nameStart:nameEnd]

	if taggerStart, taggerEnd, ok, err := p.ReadPrefixLine([]byte("tagger ")); err != nil {
		return Tag{}, xerrors.Errorf("%w", ErrInvalidTag)
	} else if ok {
		t.Tagger, err = parseSignature(body[taggerStart:taggerEnd])
		if err != nil {
			return Tag{}, err
		}
		t.HasTagger = true
	}

	if p.ConsumeByte('\n') {
		t.message = p.Pos()
		t.hasMsg = true
	}
	return t, nil
}

// Message returns the tag's free-form message and whether one was
// present (git distinguishes an absent message from an empty one:
// an empty message still has the blank-line separator).
func (t Tag) Message() ([]byte, bool) {
	if !t.hasMsg {
		return nil, false
	}
	return t.data[t.message:], true
}
