// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"bytes"
	"strconv"

	"golang.org/x/xerrors"
)

// Parser is a non-owning cursor over an already-buffered byte range. It
// is used by the per-kind body parsers (blob, tree, commit, tag,
// signature) to walk a decompressed object body without copying it.
type Parser struct {
	data []byte
	pos  int
}

// NewParser wraps data in a Parser starting at position 0.
func NewParser(data []byte) *Parser {
	return &Parser{data: data}
}

// Remaining returns the number of unread bytes.
func (p *Parser) Remaining() int {
	return len(p.data) - p.pos
}

// Pos returns the current read offset within data.
func (p *Parser) Pos() int {
	return p.pos
}

// Bytes returns the full underlying slice the parser was constructed
// over (not just the unread tail).
func (p *Parser) Bytes() []byte {
	return p.data
}

var errParserUnexpectedEOF = xerrors.New("objects: parser ran past end of buffer")

// ReadByte consumes and returns a single byte.
func (p *Parser) ReadByte() (byte, error) {
	if p.pos >= len(p.data) {
		return 0, errParserUnexpectedEOF
	}
	b := p.data[p.pos]
	p.pos++
	return b, nil
}

// ReadExact consumes exactly n bytes and returns the absolute range.
func (p *Parser) ReadExact(n int) (start, end int, err error) {
	if p.pos+n > len(p.data) {
		return 0, 0, errParserUnexpectedEOF
	}
	start, end = p.pos, p.pos+n
	p.pos = end
	return start, end, nil
}

// ReadID consumes exactly IDLen bytes and materializes an ID.
func (p *Parser) ReadID() (ID, error) {
	start, end, err := p.ReadExact(IDLen)
	if err != nil {
		return ID{}, err
	}
	var id ID
	copy(id[:], p.data[start:end])
	return id, nil
}

// ReadHexID consumes exactly IDHexLen bytes and parses them as a full id.
func (p *Parser) ReadHexID() (ID, error) {
	start, end, err := p.ReadExact(IDHexLen)
	if err != nil {
		return ID{}, err
	}
	return IDFromHex(string(p.data[start:end]))
}

// ConsumeByte consumes b if it is next in the stream and reports whether
// it did.
func (p *Parser) ConsumeByte(b byte) bool {
	if p.pos < len(p.data) && p.data[p.pos] == b {
		p.pos++
		return true
	}
	return false
}

// ConsumePrefix consumes the literal prefix if present and reports
// whether it did.
func (p *Parser) ConsumePrefix(prefix []byte) bool {
	if bytes.HasPrefix(p.data[p.pos:], prefix) {
		p.pos += len(prefix)
		return true
	}
	return false
}

// ReadLine consumes up to and including the next '\n' and returns the
// range excluding the terminator. Returns ok=false if no '\n' remains.
func (p *Parser) ReadLine() (start, end int, ok bool) {
	rest := p.data[p.pos:]
	i := bytes.IndexByte(rest, '\n')
	if i < 0 {
		return 0, 0, false
	}
	start = p.pos
	end = p.pos + i
	p.pos += i + 1
	return start, end, true
}

// ReadPrefixLine consumes a line "<prefix><value>\n" and returns the
// range of <value>, or ok=false if the prefix does not match next.
func (p *Parser) ReadPrefixLine(prefix []byte) (start, end int, ok bool, err error) {
	if !p.ConsumePrefix(prefix) {
		return 0, 0, false, nil
	}
	start, end, found := p.ReadUntilByte('\n')
	if !found {
		return 0, 0, false, xerrors.New("objects: unterminated header line")
	}
	return start, end, true, nil
}

// ReadOctalUint parses an octal integer terminated by delim (not
// included in the returned range) and returns its value.
func (p *Parser) ReadOctalUint(delim byte) (value uint64, err error) {
	rest := p.data[p.pos:]
	i := bytes.IndexByte(rest, delim)
	if i < 0 {
		return 0, xerrors.New("objects: unterminated octal field")
	}
	value, err = strconv.ParseUint(string(rest[:i]), 8, 32)
	if err != nil {
		return 0, xerrors.Errorf("objects: invalid octal field: %w", err)
	}
	p.pos += i + 1
	return value, nil
}

// ReadUntilByte consumes up to and including the next occurrence of
// delim and returns the range excluding the delimiter.
func (p *Parser) ReadUntilByte(delim byte) (start, end int, ok bool) {
	rest := p.data[p.pos:]
	i := bytes.IndexByte(rest, delim)
	if i < 0 {
		return 0, 0, false
	}
	start = p.pos
	end = p.pos + i
	p.pos = end + 1
	return start, end, true
}
