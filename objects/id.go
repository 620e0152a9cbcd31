// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package objects deals with Git object format.
//
// It implements low-level accessors to read and parse loose objects and
// packfiles in Git repositories, and defines appropriate data types
// representing the four basic object types of Git: blobs, trees, commits
// and tags.
package objects

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"

	"golang.org/x/xerrors"
)

// IDLen is the length in bytes of a full object identifier (a SHA-1 sum).
const IDLen = 20

// IDHexLen is the length in characters of the hexadecimal encoding of a
// full identifier.
const IDHexLen = IDLen * 2

// ID is the 20-byte SHA-1 content hash of an object.
type ID [IDLen]byte

// String returns the lowercase hexadecimal transcription of the id.
func (id ID) String() string {
	return hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler so that an ID can be
// used directly as a struct field or map key in formats that understand
// the interface (JSON, log fields, ...).
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := IDFromHex(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// IsZero reports whether id is the all-zero identifier.
func (id ID) IsZero() bool {
	return id == ID{}
}

// IDFromRaw builds an ID from exactly 20 raw bytes.
func IDFromRaw(b []byte) (ID, error) {
	var id ID
	if len(b) != IDLen {
		return id, xerrors.Errorf("objects: invalid raw id length %d: %w", len(b), ErrInvalidHex)
	}
	copy(id[:], b)
	return id, nil
}

// IDFromHash computes the SHA-1 hash of data and returns it as an ID.
//
// This is not the object identifier of data taken as a whole object; it is
// a raw hash. Use ComputeObjectID to hash a framed "<kind> <len>\0<body>"
// buffer the way object identifiers are actually computed.
func IDFromHash(data []byte) ID {
	return ID(sha1.Sum(data))
}

// Errors returned while parsing textual identifiers.
var (
	ErrTooShort   = xerrors.New("objects: hex id is too short")
	ErrTooLong    = xerrors.New("objects: hex id is too long")
	ErrInvalidHex = xerrors.New("objects: invalid hex digits in id")
)

// IDFromHex parses the 40-character hexadecimal transcription of a full id.
func IDFromHex(s string) (ID, error) {
	var id ID
	if len(s) < IDHexLen {
		return id, ErrTooShort
	}
	if len(s) > IDHexLen {
		return id, ErrTooLong
	}
	n, err := hex.Decode(id[:], []byte(s))
	if err != nil || n != IDLen {
		return id, xerrors.Errorf("%s: %w", s, ErrInvalidHex)
	}
	return id, nil
}

// ShortID is a hex prefix of an ID: the leading Len bytes of Bytes are
// significant, the remainder is zero-padding and must be ignored.
type ShortID struct {
	Bytes ID
	Len   int // number of significant bytes, in [2, 20]
}

// MinShortIDHexLen is the minimum accepted hex length (4 hex digits, i.e.
// 2 significant bytes) for a short id.
const MinShortIDHexLen = 4

// ShortIDFromHex parses a 4-to-40 character hex prefix into a ShortID. An
// odd number of hex digits is padded with a trailing zero nibble for
// decoding, but that last nibble is not counted in Len: comparisons here
// operate at byte granularity, so the final odd nibble is insignificant
// (callers needing nibble precision compare hex strings directly).
func ShortIDFromHex(s string) (ShortID, error) {
	var short ShortID
	if len(s) < MinShortIDHexLen {
		return short, ErrTooShort
	}
	if len(s) > IDHexLen {
		return short, ErrTooLong
	}
	padded := s
	if len(padded)%2 != 0 {
		padded += "0"
	}
	n, err := hex.Decode(short.Bytes[:], []byte(padded))
	if err != nil {
		return short, xerrors.Errorf("%s: %w", s, ErrInvalidHex)
	}
	short.Len = len(s) / 2
	_ = n
	return short, nil
}

// Widen returns the ShortID representation of a full id, with Len == IDLen.
func Widen(id ID) ShortID {
	return ShortID{Bytes: id, Len: IDLen}
}

// FirstByte returns the leading byte of the short id, used to select a
// fan-out bucket in a pack index.
func (s ShortID) FirstByte() byte {
	return s.Bytes[0]
}

// StartsWith reports whether full starts with the significant bytes of s.
func (s ShortID) StartsWith(full ID) bool {
	return bytes.Equal(s.Bytes[:s.Len], full[:s.Len])
}

// CompareFull compares a short id against a full id the way a sorted
// entry table is searched: it returns 0 exactly when full shares the
// short id's significant prefix (and the short id is an actual prefix,
// i.e. s.Len < IDLen), and otherwise the byte-wise lexicographic result
// of comparing the full 20 bytes. This is the comparator binary_search
// uses in the pack index lookup (spec §4.1, §4.6).
func (s ShortID) CompareFull(full ID) int {
	if s.Len < IDLen && s.StartsWith(full) {
		return 0
	}
	return bytes.Compare(s.Bytes[:], full[:])
}

// String returns the hex transcription of the significant prefix.
func (s ShortID) String() string {
	return hex.EncodeToString(s.Bytes[:s.Len])
}
