// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"bytes"
	"strconv"

	"golang.org/x/xerrors"
)

// Kind identifies one of the four object kinds exposed at the public
// boundary. The unexported kindOfsDelta/kindRefDelta name the two
// pack-only delta kinds (pack.go decodes those as packObjKind); they
// never surface outside this package.
type Kind uint8

const (
	KindCommit Kind = iota
	KindTree
	KindBlob
	KindTag
	kindOfsDelta
	kindRefDelta
)

func (k Kind) String() string {
	switch k {
	case KindCommit:
		return "commit"
	case KindTree:
		return "tree"
	case KindBlob:
		return "blob"
	case KindTag:
		return "tag"
	case kindOfsDelta:
		return "ofs-delta"
	case kindRefDelta:
		return "ref-delta"
	default:
		return "unknown"
	}
}

func kindFromBytes(s []byte) (Kind, bool) {
	switch {
	case bytes.Equal(s, []byte("commit")):
		return KindCommit, true
	case bytes.Equal(s, []byte("tree")):
		return KindTree, true
	case bytes.Equal(s, []byte("blob")):
		return KindBlob, true
	case bytes.Equal(s, []byte("tag")):
		return KindTag, true
	default:
		return 0, false
	}
}

// Header is the parsed "<kind> <len>\0" framing prefix of a loose object
// once decompressed. Len is the decompressed body length in bytes.
type Header struct {
	Kind Kind
	Len  int
}

// maxHeaderLen is the longest valid header: "commit 18446744073709551615\0".
const maxHeaderLen = 28

// Errors returned while parsing object headers and bodies.
var (
	ErrUnsupportedObjectKind = xerrors.New("objects: unsupported object kind")
	ErrLengthTooBig          = xerrors.New("objects: declared object length overflows")
	ErrMalformedHeader       = xerrors.New("objects: malformed object header")
)

// ReadObjectHeader scans buf (a Buffer positioned at the start of an
// object) for the "<kind> <len>\0" framing prefix, consuming exactly
// that prefix.
func ReadObjectHeader(buf *Buffer) (Header, error) {
	start, end, found, err := buf.ReadUntilByte(0, maxHeaderLen)
	if err != nil {
		if err == ErrUnexpectedEOF {
			return Header{}, xerrors.Errorf("%w", ErrMalformedHeader)
		}
		return Header{}, err
	}
	if !found {
		return Header{}, ErrMalformedHeader
	}
	line := buf.TakeBuffer(start, end-1) // drop trailing NUL
	return parseHeaderLine(line)
}

// ReadObjectHeaderFromParser is the Parser-based counterpart of
// ReadObjectHeader, used when the framed object is already fully
// buffered in memory.
func ReadObjectHeaderFromParser(p *Parser) (Header, error) {
	start, end, found := p.ReadUntilByte(0)
	if !found {
		return Header{}, ErrMalformedHeader
	}
	return parseHeaderLine(p.Bytes()[start:end])
}

func parseHeaderLine(line []byte) (Header, error) {
	sp := bytes.IndexByte(line, ' ')
	if sp < 0 {
		return Header{}, ErrMalformedHeader
	}
	kind, ok := kindFromBytes(line[:sp])
	if !ok {
		return Header{}, xerrors.Errorf("%q: %w", line[:sp], ErrUnsupportedObjectKind)
	}
	n, err := strconv.ParseUint(string(line[sp+1:]), 10, 63)
	if err != nil {
		if xerrors.Is(err, strconv.ErrRange) {
			return Header{}, xerrors.Errorf("%w", ErrLengthTooBig)
		}
		return Header{}, ErrMalformedHeader
	}
	return Header{Kind: kind, Len: int(n)}, nil
}

// ReadObjectBody reads exactly header.Len further bytes from buf,
// verifying the stream ends there, and dispatches to the body parser for
// header.Kind.
func ReadObjectBody(buf *Buffer, header Header) (Data, error) {
	body, err := buf.ReadToEnd(header.Len)
	if err != nil {
		return nil, err
	}
	return parseBody(header.Kind, body)
}

func parseBody(kind Kind, body []byte) (Data, error) {
	switch kind {
	case KindBlob:
		return parseBlob(body), nil
	case KindTree:
		return parseTree(body)
	case KindCommit:
		return parseCommit(body)
	case KindTag:
		return parseTag(body)
	default:
		return nil, xerrors.Errorf("%s: %w", kind, ErrUnsupportedObjectKind)
	}
}

// Object is a parsed, content-addressed datum: a pair of its identifier
// and its kind-tagged body.
type Object struct {
	ID   ID
	Data Data
}

// Kind returns the object's kind, derived from the concrete type of Data.
func (o Object) Kind() Kind {
	switch o.Data.(type) {
	case Blob:
		return KindBlob
	case Tree:
		return KindTree
	case Commit:
		return KindCommit
	case Tag:
		return KindTag
	default:
		panic("objects: object holds unrecognised data variant")
	}
}

// Data is the tagged variant {Blob, Tree, Commit, Tag}. It is a marker
// interface implemented only by those four types.
type Data interface {
	isObjectData()
}

// ComputeObjectID returns the identifier of the object obtained by
// framing body as "<kind> <len>\0<body>" and hashing that framing, the
// way Git content-addresses every object.
func ComputeObjectID(kind Kind, body []byte) ID {
	framed := make([]byte, 0, len(kind.String())+1+20+len(body))
	framed = append(framed, kind.String()...)
	framed = append(framed, ' ')
	framed = strconv.AppendInt(framed, int64(len(body)), 10)
	framed = append(framed, 0)
	framed = append(framed, body...)
	return IDFromHash(framed)
}
