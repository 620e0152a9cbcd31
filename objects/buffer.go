// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"bytes"
	"io"

	"golang.org/x/xerrors"
)

// Buffer is a growable read-ahead buffer over a byte stream, specialized
// for parsing git object framing. Unlike bufio.Reader it hands out
// absolute byte ranges into a buffer that keeps growing for the lifetime
// of the value, so callers can materialize zero-copy views after the
// fact instead of copying data out eagerly.
//
// A Buffer is single-threaded; the pack file reader wraps one in a mutex
// when sharing it across goroutines.
type Buffer struct {
	r   io.Reader
	buf []byte
	pos int // bytes already handed out to callers
}

// Errors returned by Buffer methods.
var (
	ErrInvalidLength = xerrors.New("objects: declared length exceeds available data")
	ErrUnexpectedEOF = xerrors.New("objects: unexpected end of stream")
)

// NewBuffer wraps r in a Buffer starting at position 0.
func NewBuffer(r io.Reader) *Buffer {
	return &Buffer{r: r}
}

// Pos returns the number of bytes already handed out to callers.
func (b *Buffer) Pos() int {
	return b.pos
}

// fillTo ensures the underlying buffer holds at least `end` bytes,
// reading from the reader as needed. EINTR-like transient errors are not
// a concept in Go's io.Reader contract (the stdlib already retries them
// internally for os.File); short reads are accepted and the loop only
// stops when end is reached, EOF is seen, or a non-nil error surfaces.
func (b *Buffer) fillTo(end int) ([]byte, error) {
	if end <= len(b.buf) {
		return b.buf[b.pos:end], nil
	}
	old := len(b.buf)
	grown := make([]byte, end)
	copy(grown, b.buf)
	b.buf = grown
	for old < end {
		n, err := b.r.Read(b.buf[old:end])
		old += n
		if n == 0 && err != nil {
			b.buf = b.buf[:old]
			if err == io.EOF {
				return b.buf[b.pos:old], nil
			}
			return nil, err
		}
	}
	return b.buf[b.pos:end], nil
}

// ReadExact ensures n more bytes are buffered, advances Pos by n, and
// returns the absolute [start, start+n) range of the buffered bytes.
func (b *Buffer) ReadExact(n int) (start, end int, err error) {
	start = b.pos
	end = start + n
	got, err := b.fillTo(end)
	if err != nil {
		return 0, 0, err
	}
	if len(got) < n {
		return 0, 0, ErrInvalidLength
	}
	b.pos = end
	return start, end, nil
}

// ReadID reads exactly IDLen bytes and materializes an ID.
func (b *Buffer) ReadID() (ID, error) {
	start, end, err := b.ReadExact(IDLen)
	if err != nil {
		return ID{}, err
	}
	var id ID
	copy(id[:], b.buf[start:end])
	return id, nil
}

// ReadUntil fills the buffer incrementally, calling pred after each
// physical read with the slice read so far (relative to the current
// position). When pred returns a non-negative offset k, the first k
// bytes are accepted and the absolute range [start, start+k) is
// returned. After max bytes with no match, the position is restored and
// (0, 0, false, nil) is returned. Reaching end of stream without a match
// is reported as ErrUnexpectedEOF.
func (b *Buffer) ReadUntil(max int, pred func(slice []byte) (k int, ok bool)) (start, end int, found bool, err error) {
	start = b.pos
	limit := start + max
	for b.pos != limit {
		got, ferr := b.fillTo(limit)
		if ferr != nil {
			return 0, 0, false, ferr
		}
		if len(got) == 0 {
			return 0, 0, false, ErrUnexpectedEOF
		}
		if k, ok := pred(got); ok {
			b.pos += k
			return start, b.pos, true, nil
		}
		b.pos += len(got)
	}
	b.pos = start
	return 0, 0, false, nil
}

// ReadUntilByte reads until delim is encountered (inclusive), EOF, or max
// bytes have been scanned without a match.
func (b *Buffer) ReadUntilByte(delim byte, max int) (start, end int, found bool, err error) {
	return b.ReadUntil(max, func(slice []byte) (int, bool) {
		if i := bytes.IndexByte(slice, delim); i >= 0 {
			return i + 1, true
		}
		return 0, false
	})
}

// ReadToEnd reads exactly expectedLen more bytes, verifies the reader
// yields nothing further, and returns the owned tail buffer (the bytes
// from the current position onward). The returned slice is the backing
// array's tail, not a copy: since ReadToEnd is always the terminal read
// of a Buffer's lifetime, no further growth can invalidate it.
func (b *Buffer) ReadToEnd(expectedLen int) ([]byte, error) {
	start, end, err := b.ReadExact(expectedLen)
	if err != nil {
		return nil, err
	}
	if len(b.buf) > end {
		return nil, ErrInvalidLength
	}
	var probe [1]byte
	n, rerr := b.r.Read(probe[:])
	if n != 0 {
		return nil, ErrInvalidLength
	}
	if rerr != io.EOF {
		if rerr == nil {
			return nil, ErrInvalidLength
		}
		if rerr != io.EOF {
			return nil, rerr
		}
	}
	return b.buf[start:end], nil
}

// TakeBuffer returns a view of the already-buffered range [start, end)
// without copying.
func (b *Buffer) TakeBuffer(start, end int) []byte {
	return b.buf[start:end]
}

// Parser returns a non-owning cursor over buffer[start:end], used by
// per-kind body parsers (see parser.go).
func (b *Buffer) Parser(start, end int) *Parser {
	return &Parser{data: b.buf[start:end]}
}

// Seek discards the in-memory buffer and repositions to abs, provided
// the underlying reader supports io.Seeker.
func (b *Buffer) Seek(abs int64) error {
	seeker, ok := b.r.(io.Seeker)
	if !ok {
		return xerrors.New("objects: underlying reader does not support seeking")
	}
	if _, err := seeker.Seek(abs, io.SeekStart); err != nil {
		return err
	}
	b.buf = b.buf[:0]
	b.pos = 0
	return nil
}
