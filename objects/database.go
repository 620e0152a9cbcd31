package objects

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// refreshInterval rate-limits Database.refresh: a packed-layer miss
// triggers at most one directory rescan per this window, so a burst of
// concurrent misses against a stale pack set doesn't stat the pack
// directory once per lookup.
const refreshInterval = 2 * time.Second

// Database is the facade over a repository's loose object store and
// its set of packs, presenting both as a single read_object/write_object
// surface keyed by full or short identifiers.
type Database struct {
	packDir string // "<root>/objects/pack"
	loose   *LooseStore

	packs sync.Map // idx path (string) -> *Pack

	refreshMu   sync.Mutex
	lastRefresh time.Time
	refreshed   bool
}

// OpenDatabase returns a Database rooted at root (a repository's
// top-level directory, the parent of "objects/").
func OpenDatabase(root string) *Database {
	return &Database{
		packDir: filepath.Join(root, "objects", "pack"),
		loose:   OpenLooseStore(root),
	}
}

// packCount reports how many packs are currently loaded.
func (db *Database) packCount() int {
	n := 0
	db.packs.Range(func(_, _ any) bool { n++; return true })
	return n
}

// refresh rescans the pack directory for new *.idx files and opens
// each one not already loaded, subject to refreshInterval rate
// limiting. Opening is insert-only: an idx path already present in
// db.packs is never reopened or replaced, so concurrently published
// packs are never torn down under a reader's feet.
func (db *Database) refresh() error {
	db.refreshMu.Lock()
	defer db.refreshMu.Unlock()

	if db.refreshed && time.Since(db.lastRefresh) < refreshInterval {
		return nil
	}

	entries, err := os.ReadDir(db.packDir)
	if err != nil {
		if os.IsNotExist(err) {
			db.lastRefresh = time.Now()
			db.refreshed = true
			return nil
		}
		return xerrors.Errorf("objects: scan pack directory: %w", err)
	}

	var toOpen []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".idx" {
			continue
		}
		idxPath := filepath.Join(db.packDir, e.Name())
		if _, loaded := db.packs.Load(idxPath); loaded {
			continue
		}
		toOpen = append(toOpen, idxPath)
	}

	var g errgroup.Group
	for _, idxPath := range toOpen {
		idxPath := idxPath
		g.Go(func() error {
			packPath := strings.TrimSuffix(idxPath, ".idx") + ".pack"
			pack, err := OpenPack(packPath, idxPath)
			if err != nil {
				return xerrors.Errorf("objects: open pack %s: %w", packPath, err)
			}
			if _, loaded := db.packs.LoadOrStore(idxPath, pack); loaded {
				pack.Close()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	db.lastRefresh = time.Now()
	db.refreshed = true
	return nil
}

// ReadObject returns the kind and the body bytes (without the
// "<kind> <len>\0" framing) of the object with the given id, consulting
// every loaded pack before falling back to the
// loose store, and refreshing the pack set once on a miss.
func (db *Database) ReadObject(id ID) (Kind, []byte, error) {
	short := Widen(id)
	return db.readObject(short, true)
}

// ReadObjectShort resolves a possibly-abbreviated id, returning
// AmbiguousError if more than one object matches across every
// consulted layer.
func (db *Database) ReadObjectShort(short ShortID) (Kind, []byte, ID, error) {
	kind, body, resolved, err := db.readObjectShort(short, true)
	return kind, body, resolved, err
}

func (db *Database) readObject(short ShortID, allowRefresh bool) (Kind, []byte, error) {
	kind, body, _, err := db.readObjectShort(short, allowRefresh)
	return kind, body, err
}

func (db *Database) readObjectShort(short ShortID, allowRefresh bool) (Kind, []byte, ID, error) {
	kind, body, resolved, found, ambiguous, err := db.searchPacks(short)
	if err != nil {
		return 0, nil, ID{}, err
	}
	if ambiguous {
		return 0, nil, ID{}, &AmbiguousError{ID: short}
	}
	if found {
		return kind, body, resolved, nil
	}

	if short.Len == IDLen {
		kind, body, resolved, err := db.readLooseBody(short.Bytes)
		switch {
		case err == nil:
			return kind, body, resolved, nil
		case !IsNotFound(err):
			return 0, nil, ID{}, err
		}
	}

	if !allowRefresh {
		return 0, nil, ID{}, &NotFoundError{ID: short}
	}

	before := db.packCount()
	if err := db.refresh(); err != nil {
		return 0, nil, ID{}, err
	}
	if db.packCount() == before {
		return 0, nil, ID{}, &NotFoundError{ID: short}
	}
	return db.readObjectShort(short, false)
}

// readLooseBody reads id's loose file and returns its header-declared
// kind alongside the fully buffered body.
func (db *Database) readLooseBody(id ID) (Kind, []byte, ID, error) {
	r, err := db.loose.ReadObject(id)
	if err != nil {
		return 0, nil, ID{}, err
	}
	defer r.Close()
	buf := NewBuffer(r)
	hdr, err := ReadObjectHeader(buf)
	if err != nil {
		return 0, nil, ID{}, err
	}
	body, err := buf.ReadToEnd(hdr.Len)
	if err != nil {
		return 0, nil, ID{}, err
	}
	return hdr.Kind, body, id, nil
}

// searchPacks aggregates find_offset across every currently loaded
// pack. If more than one pack reports a match and they disagree on the
// resolved id, or any pack itself reports Ambiguous, the search as a
// whole is ambiguous.
func (db *Database) searchPacks(short ShortID) (kind Kind, body []byte, resolved ID, found, ambiguous bool, err error) {
	var matchPack *Pack
	var matchOffset int64
	var matchID ID

	db.packs.Range(func(_, v any) bool {
		pack := v.(*Pack)
		off, id, perr := pack.FindOffset(short)
		switch {
		case perr == nil:
			if found && id != matchID {
				ambiguous = true
				return false
			}
			found = true
			matchPack, matchOffset, matchID = pack, off, id
		case IsAmbiguous(perr):
			ambiguous = true
			return false
		case IsNotFound(perr):
			// keep scanning other packs
		default:
			err = perr
			return false
		}
		return true
	})
	if err != nil || ambiguous || !found {
		return 0, nil, ID{}, found, ambiguous, err
	}

	kind, body, err = matchPack.ReadAt(matchOffset)
	if err != nil {
		return 0, nil, ID{}, false, false, err
	}
	return kind, body, matchID, true, false, nil
}

// ParseObject is ReadObject followed by the §4.3/§4.4 body parse.
func (db *Database) ParseObject(id ID) (Object, error) {
	kind, body, err := db.ReadObject(id)
	if err != nil {
		return Object{}, err
	}
	data, err := parseBody(kind, body)
	if err != nil {
		return Object{}, err
	}
	return Object{ID: id, Data: data}, nil
}

// WriteObject delegates to the loose store; the database never writes
// to a pack.
func (db *Database) WriteObject(kind Kind, body []byte) (ID, error) {
	return db.loose.WriteObject(frameObject(kind, body))
}

// frameObject builds the "<kind> <len>\0<body>" encoding that both the
// identifier hash and the loose store operate on.
func frameObject(kind Kind, body []byte) []byte {
	framed := make([]byte, 0, len(kind.String())+22+len(body))
	framed = append(framed, kind.String()...)
	framed = append(framed, ' ')
	framed = strconv.AppendInt(framed, int64(len(body)), 10)
	framed = append(framed, 0)
	framed = append(framed, body...)
	return framed
}

// Close releases every currently loaded pack's resources.
func (db *Database) Close() error {
	var first error
	db.packs.Range(func(_, v any) bool {
		if err := v.(*Pack).Close(); err != nil && first == nil {
			first = err
		}
		return true
	})
	return first
}
