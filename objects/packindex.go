package objects

import (
	"encoding/binary"
	"sort"

	"golang.org/x/exp/mmap"
	"golang.org/x/xerrors"
)

// packIndexVersion distinguishes the two on-disk pack index layouts.
type packIndexVersion int

const (
	packIndexV1 packIndexVersion = 1
	packIndexV2 packIndexVersion = 2
)

const (
	idxSignature   = 0xff744f63
	idxFanoutCount = 256
	idxFanoutLen   = idxFanoutCount * 4
	idxEntryLenV1  = 4 + IDLen // offset, id
	idxEntryLenV2  = IDLen     // id only; crc/offset tables follow separately
	idxTrailerLen  = IDLen + IDLen
)

// PackIndex is a parsed, memory-mapped pack .idx file: a 256-entry
// fan-out table over sorted object ids, letting find_offset locate an
// object's byte offset inside the companion pack in O(log n) reads.
type PackIndex struct {
	ra      *mmap.ReaderAt
	version packIndexVersion
	count   int
	fanout  [idxFanoutCount]uint32

	// bodyOffset is where the index payload (fan-out table onward)
	// starts: 8 past the V2 header, or 0 for V1.
	bodyOffset int64
}

// OpenPackIndex memory-maps path and validates its header, fan-out
// table and overall length per the accepted version set {1, 2}.
func OpenPackIndex(path string) (*PackIndex, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("objects: open pack index: %w", err)
	}
	idx, err := parsePackIndex(ra)
	if err != nil {
		ra.Close()
		return nil, err
	}
	return idx, nil
}

func parsePackIndex(ra *mmap.ReaderAt) (*PackIndex, error) {
	idx := &PackIndex{ra: ra, version: packIndexV1}

	var head [4]byte
	if _, err := ra.ReadAt(head[:], 0); err != nil {
		return nil, xerrors.Errorf("objects: read pack index header: %w", err)
	}
	if binary.BigEndian.Uint32(head[:]) == idxSignature {
		idx.version = packIndexV2
		var verBuf [4]byte
		if _, err := ra.ReadAt(verBuf[:], 4); err != nil {
			return nil, xerrors.Errorf("objects: read pack index version: %w", err)
		}
		version := binary.BigEndian.Uint32(verBuf[:])
		if version != 2 {
			return nil, &UnsupportedVersionError{Component: ComponentPackIndex, Version: version}
		}
		idx.bodyOffset = 8
	}

	fanoutBuf := make([]byte, idxFanoutLen)
	if _, err := ra.ReadAt(fanoutBuf, idx.bodyOffset); err != nil {
		return nil, xerrors.Errorf("objects: read pack index fan-out: %w", err)
	}
	var prev uint32
	for i := 0; i < idxFanoutCount; i++ {
		v := binary.BigEndian.Uint32(fanoutBuf[4*i:])
		if v < prev {
			return nil, NewMalformedError(ComponentPackIndex, "fan-out table is not monotone non-decreasing")
		}
		idx.fanout[i] = v
		prev = v
	}
	idx.count = int(idx.fanout[idxFanoutCount-1])

	// V1 records are a single 24-byte (offset, id) pair each; V2 splits
	// the same information into a 20-byte id plus a 4-byte CRC and a
	// 4-byte small offset, with an optional large-offset table appended
	// for any entries whose offset doesn't fit in 31 bits.
	var minSize int64
	if idx.version == packIndexV1 {
		minSize = int64(idx.count)*int64(idxEntryLenV1) + idxTrailerLen
	} else {
		minSize = int64(idx.count)*int64(idxEntryLenV2+4+4) + idxTrailerLen
	}
	maxSize := minSize
	if idx.version == packIndexV2 && idx.count > 0 {
		maxSize += int64(idx.count-1) * 8
	}

	bodyLen := int64(ra.Len()) - idx.bodyOffset - idxFanoutLen
	if bodyLen < minSize || bodyLen > maxSize {
		return nil, NewMalformedError(ComponentPackIndex, "index length is invalid for its declared entry count")
	}

	return idx, nil
}

// Close releases the memory mapping.
func (idx *PackIndex) Close() error {
	return idx.ra.Close()
}

// Count returns the number of objects in the index.
func (idx *PackIndex) Count() int {
	return idx.count
}

// entriesOffset is the absolute file offset where the sorted id entries
// begin (after the optional V2 header and the fan-out table).
func (idx *PackIndex) entriesOffset() int64 {
	return idx.bodyOffset + idxFanoutLen
}

func (idx *PackIndex) readID(pos int) (ID, error) {
	var idOff int64
	if idx.version == packIndexV1 {
		idOff = idx.entriesOffset() + int64(pos)*int64(idxEntryLenV1) + 4 // skip leading offset field
	} else {
		idOff = idx.entriesOffset() + int64(pos)*int64(idxEntryLenV2)
	}
	var buf [IDLen]byte
	if _, err := idx.ra.ReadAt(buf[:], idOff); err != nil {
		return ID{}, xerrors.Errorf("objects: read pack index entry: %w", err)
	}
	return ID(buf), nil
}

// FindOffset resolves short to a (pack offset, full id) pair, or
// reports NotFound/Ambiguous.
func (idx *PackIndex) FindOffset(short ShortID) (offset int64, id ID, err error) {
	b := int(short.FirstByte())
	hi := int(idx.fanout[b])
	lo := 0
	if b > 0 {
		lo = int(idx.fanout[b-1])
	}

	var readErr error
	k := sort.Search(hi-lo, func(i int) bool {
		got, err := idx.readID(lo + i)
		if err != nil {
			readErr = err
			return true
		}
		return short.CompareFull(got) <= 0
	})
	if readErr != nil {
		return 0, ID{}, readErr
	}
	pos := lo + k
	if pos >= hi {
		return 0, ID{}, &NotFoundError{ID: short}
	}
	candidate, err := idx.readID(pos)
	if err != nil {
		return 0, ID{}, err
	}
	if !short.StartsWith(candidate) {
		return 0, ID{}, &NotFoundError{ID: short}
	}
	if pos+1 < hi {
		next, err := idx.readID(pos + 1)
		if err != nil {
			return 0, ID{}, err
		}
		if short.StartsWith(next) {
			return 0, ID{}, &AmbiguousError{ID: short}
		}
	}

	off, err := idx.offsetAt(pos)
	if err != nil {
		return 0, ID{}, err
	}
	return off, candidate, nil
}

func (idx *PackIndex) offsetAt(pos int) (int64, error) {
	if idx.version == packIndexV1 {
		var buf [4]byte
		off := idx.entriesOffset() + int64(pos)*int64(idxEntryLenV1)
		if _, err := idx.ra.ReadAt(buf[:], off); err != nil {
			return 0, xerrors.Errorf("objects: read pack index offset: %w", err)
		}
		return int64(binary.BigEndian.Uint32(buf[:])), nil
	}

	smallOffsetsStart := idx.entriesOffset() + int64(idx.count)*int64(idxEntryLenV2+4)
	var small [4]byte
	if _, err := idx.ra.ReadAt(small[:], smallOffsetsStart+int64(pos)*4); err != nil {
		return 0, xerrors.Errorf("objects: read pack index small offset: %w", err)
	}
	v := binary.BigEndian.Uint32(small[:])
	if v&0x80000000 == 0 {
		return int64(v), nil
	}

	largeIndex := int64(v &^ 0x80000000)
	largeOffsetsStart := smallOffsetsStart + int64(idx.count)*4
	var large [8]byte
	if _, err := idx.ra.ReadAt(large[:], largeOffsetsStart+largeIndex*8); err != nil {
		return 0, xerrors.Errorf("objects: read pack index large offset: %w", err)
	}
	return int64(binary.BigEndian.Uint64(large[:])), nil
}

// ID returns the full id of the pack's i-th entry, in sorted order.
func (idx *PackIndex) ID(i int) (ID, error) {
	return idx.readID(i)
}
