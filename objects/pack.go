// Copyright 2012 Rémy Oudompheng. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package objects

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"golang.org/x/exp/mmap"
	"golang.org/x/xerrors"

	"github.com/oudompheng/gitodb/gitdelta"
)

// packObjKind mirrors Kind but additionally carries the two pack-only
// delta pseudo-kinds, matching the three-bit type field of a pack
// entry header.
type packObjKind uint8

const (
	packKindCommit   packObjKind = 1
	packKindTree     packObjKind = 2
	packKindBlob     packObjKind = 3
	packKindTag      packObjKind = 4
	packKindOfsDelta packObjKind = 6
	packKindRefDelta packObjKind = 7
)

func (k packObjKind) toKind() (Kind, bool) {
	switch k {
	case packKindCommit:
		return KindCommit, true
	case packKindTree:
		return KindTree, true
	case packKindBlob:
		return KindBlob, true
	case packKindTag:
		return KindTag, true
	default:
		return 0, false
	}
}

// maxDeltaChainDepth bounds the number of delta hops Pack.ReadAt will
// follow before declaring the pack malformed; it guards against a
// self-referential or cyclic chain slipping past the direct
// self-loop check.
const maxDeltaChainDepth = 1 << 16

// packEntry is a cached, fully-resolved object at a given pack offset:
// the concrete kind the chain bottomed out at, and its decompressed
// body bytes (shared, read-only, across every caller that hits the
// cache).
type packEntry struct {
	kind Kind
	body []byte
}

// Pack is an open packfile plus its companion index. Reading an object
// walks the delta chain while holding p.mu, per the spec's mutex
// granularity: a finer-grained scheme (region-local handles, atomic
// mmap reads) is a valid alternative, but this implementation keeps
// the file access simple and serialized.
type Pack struct {
	ra      *mmap.ReaderAt
	idx     *PackIndex
	version uint32
	count   uint32
	trailer ID

	mu    sync.Mutex // serializes chain walks against ra
	cache sync.Map   // offset (int64) -> *packEntry
}

var (
	errBadPackMagic = xerrors.New("objects: bad magic number in packfile")
)

// OpenPack opens the pack file at packPath and its companion index at
// idxPath.
func OpenPack(packPath, idxPath string) (*Pack, error) {
	idx, err := OpenPackIndex(idxPath)
	if err != nil {
		return nil, err
	}
	ra, err := mmap.Open(packPath)
	if err != nil {
		idx.Close()
		return nil, xerrors.Errorf("objects: open pack: %w", err)
	}
	p := &Pack{ra: ra, idx: idx}
	if err := p.readHeader(); err != nil {
		ra.Close()
		idx.Close()
		return nil, err
	}
	return p, nil
}

func (p *Pack) readHeader() error {
	var head [12]byte
	if _, err := p.ra.ReadAt(head[:], 0); err != nil {
		return xerrors.Errorf("objects: read pack header: %w", err)
	}
	if string(head[:4]) != "PACK" {
		return errBadPackMagic
	}
	p.version = binary.BigEndian.Uint32(head[4:8])
	if p.version != 2 && p.version != 3 {
		return &UnsupportedVersionError{Component: ComponentPack, Version: p.version}
	}
	p.count = binary.BigEndian.Uint32(head[8:12])

	size := p.ra.Len()
	if size < 32 {
		return NewMalformedError(ComponentPack, "pack file too small to hold a trailer")
	}
	var trailer [IDLen]byte
	if _, err := p.ra.ReadAt(trailer[:], int64(size-IDLen)); err != nil {
		return xerrors.Errorf("objects: read pack trailer: %w", err)
	}
	p.trailer = ID(trailer)
	return nil
}

// Close releases the pack's file mapping and its index's mapping.
func (p *Pack) Close() error {
	ierr := p.idx.Close()
	rerr := p.ra.Close()
	if rerr != nil {
		return rerr
	}
	return ierr
}

// Index returns the pack's companion index, e.g. for enumerating ids.
func (p *Pack) Index() *PackIndex {
	return p.idx
}

// FindOffset delegates to the companion index.
func (p *Pack) FindOffset(short ShortID) (int64, ID, error) {
	return p.idx.FindOffset(short)
}

// ReadObject resolves short through the index and returns the object's
// kind and fully-reconstructed body bytes.
func (p *Pack) ReadObject(short ShortID) (Kind, []byte, error) {
	off, _, err := p.FindOffset(short)
	if err != nil {
		return 0, nil, err
	}
	return p.ReadAt(off)
}

// ReadAt reconstructs the object stored at absolute pack offset o,
// resolving any delta chain rooted there.
//
// The whole chain walk holds p.mu: steps b-f below read shared state
// off p.ra and may append to the chain more than once, and publishing
// a newly-resolved entry into p.cache must happen-before any other
// goroutine observes it, which the mutex guarantees for free.
func (p *Pack) ReadAt(o int64) (Kind, []byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readAtLocked(o)
}

type chainNode struct {
	offset int64
	// patch is the inflated delta script stored at offset; the concrete
	// base the chain bottoms out at is not itself a chain node.
	patch []byte
}

func (p *Pack) readAtLocked(o int64) (Kind, []byte, error) {
	if e, ok := p.cache.Load(o); ok {
		entry := e.(*packEntry)
		return entry.kind, entry.body, nil
	}

	var chain []chainNode
	visited := make(map[int64]bool)
	offset := o

	var baseKind Kind
	var baseBody []byte

collect:
	for depth := 0; ; depth++ {
		if depth > maxDeltaChainDepth {
			return 0, nil, NewMalformedError(ComponentPack, "delta chain exceeds maximum depth")
		}
		if e, ok := p.cache.Load(offset); ok {
			entry := e.(*packEntry)
			baseKind, baseBody = entry.kind, entry.body
			break collect
		}
		if visited[offset] {
			return 0, nil, NewMalformedError(ComponentPack, "cyclic delta chain")
		}
		visited[offset] = true

		kind, _, patchLen, patchOffset, baseOffset, baseID, err := p.readEntryHeader(offset)
		if err != nil {
			return 0, nil, err
		}

		if concrete, ok := kind.toKind(); ok {
			body, err := p.inflateAt(patchOffset, patchLen)
			if err != nil {
				return 0, nil, err
			}
			entry := &packEntry{kind: concrete, body: body}
			p.cache.Store(offset, entry)
			baseKind, baseBody = concrete, body
			break collect
		}

		patch, err := p.inflateAt(patchOffset, patchLen)
		if err != nil {
			return 0, nil, err
		}
		chain = append(chain, chainNode{offset: offset, patch: patch})

		var next int64
		switch kind {
		case packKindOfsDelta:
			if baseOffset == offset {
				return 0, nil, NewMalformedError(ComponentPack, "delta base offset is a self-loop")
			}
			next = baseOffset
		case packKindRefDelta:
			resolvedOffset, _, err := p.idx.FindOffset(Widen(baseID))
			if err != nil {
				return 0, nil, err
			}
			next = resolvedOffset
		default:
			return 0, nil, NewMalformedError(ComponentPack, "unrecognised pack entry type")
		}
		offset = next
	}

	// Apply the chain top-down: the last-collected node is the one
	// closest to the concrete base.
	kind, body := baseKind, baseBody
	for i := len(chain) - 1; i >= 0; i-- {
		node := chain[i]
		patched, err := gitdelta.Patch(body, node.patch)
		if err != nil {
			return 0, nil, xerrors.Errorf("objects: apply delta at offset %d: %w", node.offset, err)
		}
		body = patched
		p.cache.Store(node.offset, &packEntry{kind: kind, body: body})
	}
	return kind, body, nil
}

// readEntryHeader decodes the variable-length pack entry header at
// offset and returns enough information to either inflate a concrete
// body or chase a delta base.
func (p *Pack) readEntryHeader(offset int64) (kind packObjKind, headerLen int, bodyLen int64, bodyOffset int64, baseOffset int64, baseID ID, err error) {
	first, err := p.readByte(offset)
	if err != nil {
		return 0, 0, 0, 0, 0, ID{}, err
	}
	kind = packObjKind((first >> 4) & 0x7)
	size := uint64(first & 0x0f)
	shift := uint(4)
	pos := offset + 1
	n := 1
	for first&0x80 != 0 {
		b, err := p.readByte(pos)
		if err != nil {
			return 0, 0, 0, 0, 0, ID{}, err
		}
		size |= uint64(b&0x7f) << shift
		shift += 7
		pos++
		n++
		first = b
		if n > 10 {
			return 0, 0, 0, 0, 0, ID{}, NewMalformedError(ComponentPack, "pack entry header length overflow")
		}
	}
	bodyLen = int64(size)

	switch kind {
	case packKindCommit, packKindTree, packKindBlob, packKindTag:
		return kind, n, bodyLen, pos, 0, ID{}, nil
	case packKindOfsDelta:
		d, consumed, err := p.readOfsDeltaOffset(pos)
		if err != nil {
			return 0, 0, 0, 0, 0, ID{}, err
		}
		return kind, n, bodyLen, pos + consumed, offset - d, ID{}, nil
	case packKindRefDelta:
		var idBuf [IDLen]byte
		if _, err := p.ra.ReadAt(idBuf[:], pos); err != nil {
			return 0, 0, 0, 0, 0, ID{}, xerrors.Errorf("objects: read ref-delta base id: %w", err)
		}
		return kind, n, bodyLen, pos + IDLen, 0, ID(idBuf), nil
	default:
		return 0, 0, 0, 0, 0, ID{}, NewMalformedError(ComponentPack, "invalid pack entry type")
	}
}

func (p *Pack) readByte(offset int64) (byte, error) {
	var b [1]byte
	if _, err := p.ra.ReadAt(b[:], offset); err != nil {
		return 0, xerrors.Errorf("objects: read pack byte at %d: %w", offset, err)
	}
	return b[0], nil
}

// readOfsDeltaOffset reads the big-endian, biased varint used to encode
// an OfsDelta's backward distance: 1|a0, ..., 1|a_{n-1}, 0|a_n represents
// (a0+1)<<7n + ... + (a_{n-1}+1)<<7 + a_n. This differs from the
// pack-entry header's own length varint, which is little-endian and
// unbiased.
func (p *Pack) readOfsDeltaOffset(pos int64) (value int64, consumed int64, err error) {
	var acc uint64
	for i := 0; ; i++ {
		b, err := p.readByte(pos + int64(i))
		if err != nil {
			return 0, 0, err
		}
		if i > 0 {
			acc++
		}
		acc = (acc << 7) | uint64(b&0x7f)
		if b&0x80 == 0 {
			return int64(acc), int64(i + 1), nil
		}
		if i > 9 {
			return 0, 0, NewMalformedError(ComponentPack, "ofs-delta offset overflow")
		}
	}
}

// inflateAt zlib-inflates exactly resultLen bytes starting at the
// compressed stream beginning at offset.
func (p *Pack) inflateAt(offset int64, resultLen int64) ([]byte, error) {
	src := io.NewSectionReader(p.ra, offset, int64(p.ra.Len())-offset)
	zr, err := zlib.NewReader(src)
	if err != nil {
		return nil, xerrors.Errorf("objects: inflate pack entry at %d: %w", offset, err)
	}
	defer zr.Close()
	body := make([]byte, resultLen)
	n, err := io.ReadFull(zr, body)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, xerrors.Errorf("objects: inflate pack entry at %d: %w", offset, err)
	}
	if int64(n) != resultLen {
		return nil, &LengthMismatchError{Component: ComponentPack, Declared: int(resultLen), Actual: n}
	}
	return body, nil
}
