// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"bytes"
	"strconv"

	"golang.org/x/xerrors"
)

// ErrInvalidSignature is returned, wrapped with a reason, when a
// "name <email> timestamp timezone" line does not parse.
var ErrInvalidSignature = xerrors.New("objects: invalid signature")

// isPadChar matches the padding character class tolerated around the
// name and email fields: control characters, space and ".,:;<>\"'".
func isPadChar(c byte) bool {
	if c <= 0x20 {
		return true
	}
	switch c {
	case '.', ',', ':', ';', '<', '>', '"', '\'':
		return true
	}
	return false
}

func trimPad(s []byte) []byte {
	i, j := 0, len(s)
	for i < j && isPadChar(s[i]) {
		i++
	}
	for j > i && isPadChar(s[j-1]) {
		j--
	}
	return s[i:j]
}

// Signature is a view over a "name <email> timestamp timezone" line, as
// used in commit author/committer fields and in tag tagger fields. Name
// and Email are held as byte-range views into the owning object's
// buffer; Timestamp and TZOffset are parsed eagerly since they are
// cheap fixed-width integers.
type Signature struct {
	Name     []byte
	Email    []byte
	Time     int64 // unix seconds, zero if absent
	TZOffset int32 // minutes east of UTC, zero if absent
	HasTime  bool
}

// parseSignature parses line (without its trailing newline) against the
// grammar: {pad}NAME{pad} <{pad}EMAIL{pad}>( TIMESTAMP( TZ)?)?
//
// The grammar tolerates garbage padding characters around name and
// email because historical commits produced by broken tools sometimes
// carry them; it does not attempt to recover a timestamp or timezone
// that fails to parse as an integer, treating the whole line as
// malformed instead.
func parseSignature(line []byte) (Signature, error) {
	lt := bytes.IndexByte(line, '<')
	if lt < 0 {
		return Signature{}, xerrors.Errorf("missing '<': %w", ErrInvalidSignature)
	}
	gt := bytes.IndexByte(line[lt:], '>')
	if gt < 0 {
		return Signature{}, xerrors.Errorf("missing '>': %w", ErrInvalidSignature)
	}
	gt += lt

	name := trimPad(line[:lt])
	email := trimPad(line[lt+1 : gt])

	sig := Signature{Name: name, Email: email}

	rest := bytes.TrimLeft(line[gt+1:], " ")
	if len(rest) == 0 {
		return sig, nil
	}

	fields := bytes.SplitN(rest, []byte(" "), 2)
	ts, err := strconv.ParseInt(string(fields[0]), 10, 64)
	if err != nil {
		return Signature{}, xerrors.Errorf("bad timestamp: %w", ErrInvalidSignature)
	}
	sig.Time = ts
	sig.HasTime = true

	if len(fields) == 2 && len(fields[1]) > 0 {
		tz, err := parseTZOffset(bytes.TrimSpace(fields[1]))
		if err != nil {
			return Signature{}, xerrors.Errorf("bad timezone: %w", ErrInvalidSignature)
		}
		sig.TZOffset = tz
	}
	return sig, nil
}

// parseTZOffset parses a "+HHMM"/"-HHMM" git timezone into minutes east
// of UTC.
func parseTZOffset(s []byte) (int32, error) {
	if len(s) < 1 {
		return 0, xerrors.New("empty timezone")
	}
	sign := int32(1)
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}
	n, err := strconv.ParseInt(string(s), 10, 32)
	if err != nil {
		return 0, err
	}
	hh, mm := n/100, n%100
	return sign * int32(hh*60+mm), nil
}
