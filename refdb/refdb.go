// Package refdb resolves Git reference names (HEAD, branches, tags,
// remote-tracking refs) to object identifiers. It is read-only: the
// object store this module accompanies never writes or updates refs.
package refdb

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"

	"github.com/oudompheng/gitodb/objects"
)

// prefixes is the ordered list of directories Reference tries when a
// bare name (without "refs/...") is given, mirroring how Git itself
// disambiguates "master" into "refs/heads/master".
var prefixes = []string{
	"",
	"refs/",
	"refs/tags/",
	"refs/heads/",
	"refs/remotes/",
	"refs/remotes/origin/",
}

// ErrNotFound is returned when a reference name does not resolve under
// any of the standard prefixes, in the loose refs directory or in
// packed-refs.
var ErrNotFound = xerrors.New("refdb: reference not found")

// Database resolves reference names against a single repository's
// ".git" directory (loose "refs/..." files, "HEAD", and "packed-refs").
type Database struct {
	gitDir string
}

// Open returns a Database rooted at gitDir (a repository's metadata
// directory, typically "<worktree>/.git").
func Open(gitDir string) *Database {
	return &Database{gitDir: gitDir}
}

// Head resolves "HEAD": either a symbolic ref to another name (the
// common case, "ref: refs/heads/<branch>\n") or a detached id.
func (db *Database) Head() (objects.ID, error) {
	return db.Reference("HEAD")
}

// HeadRef returns the ref name HEAD currently points to, or "" if HEAD
// is detached (points directly at an id).
func (db *Database) HeadRef() (string, error) {
	content, err := os.ReadFile(filepath.Join(db.gitDir, "HEAD"))
	if err != nil {
		return "", xerrors.Errorf("refdb: read HEAD: %w", err)
	}
	line := strings.TrimSpace(string(content))
	if target, ok := strings.CutPrefix(line, "ref: "); ok {
		return strings.TrimSpace(target), nil
	}
	return "", nil
}

// Reference resolves name to an object identifier, following symbolic
// refs and trying each of the standard prefixes ("refs/tags/",
// "refs/heads/", ...) in turn against a bare name.
func (db *Database) Reference(name string) (objects.ID, error) {
	return db.resolve(name, 0)
}

// maxSymbolicDepth bounds how many "ref: ..." hops Reference will
// follow before declaring the chain broken.
const maxSymbolicDepth = 10

func (db *Database) resolve(name string, depth int) (objects.ID, error) {
	if depth > maxSymbolicDepth {
		return objects.ID{}, xerrors.Errorf("refdb: symbolic ref chain too deep resolving %q", name)
	}

	if name == "HEAD" || strings.HasPrefix(name, "refs/") {
		if id, ok, err := db.readLooseOrSymbolic(name, depth); err != nil {
			return objects.ID{}, err
		} else if ok {
			return id, nil
		}
		if id, ok, err := db.readPacked(name); err != nil {
			return objects.ID{}, err
		} else if ok {
			return id, nil
		}
		return objects.ID{}, xerrors.Errorf("%s: %w", name, ErrNotFound)
	}

	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		candidate := prefix + name
		if id, ok, err := db.readLooseOrSymbolic(candidate, depth); err != nil {
			return objects.ID{}, err
		} else if ok {
			return id, nil
		}
		if id, ok, err := db.readPacked(candidate); err != nil {
			return objects.ID{}, err
		} else if ok {
			return id, nil
		}
	}
	return objects.ID{}, xerrors.Errorf("%s: %w", name, ErrNotFound)
}

// readLooseOrSymbolic reads a loose ref file (or HEAD), following
// "ref: <name>" symbolic indirection (up to maxSymbolicDepth hops) if
// present.
func (db *Database) readLooseOrSymbolic(name string, depth int) (objects.ID, bool, error) {
	content, err := os.ReadFile(filepath.Join(db.gitDir, filepath.FromSlash(name)))
	if err != nil {
		if os.IsNotExist(err) {
			return objects.ID{}, false, nil
		}
		return objects.ID{}, false, xerrors.Errorf("refdb: read %s: %w", name, err)
	}
	line := strings.TrimSpace(string(content))
	if target, ok := strings.CutPrefix(line, "ref: "); ok {
		id, err := db.resolve(strings.TrimSpace(target), depth+1)
		return id, true, err
	}
	id, err := objects.IDFromHex(line)
	if err != nil {
		return objects.ID{}, false, xerrors.Errorf("refdb: %s: malformed id %q: %w", name, line, err)
	}
	return id, true, nil
}

// readPacked consults "packed-refs" for name, a compaction git performs
// of refs/tags and refs/heads into a single flat file.
func (db *Database) readPacked(name string) (objects.ID, bool, error) {
	f, err := os.Open(filepath.Join(db.gitDir, "packed-refs"))
	if err != nil {
		if os.IsNotExist(err) {
			return objects.ID{}, false, nil
		}
		return objects.ID{}, false, xerrors.Errorf("refdb: open packed-refs: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		if fields[1] != name {
			continue
		}
		id, err := objects.IDFromHex(fields[0])
		if err != nil {
			return objects.ID{}, false, xerrors.Errorf("refdb: packed-refs: malformed id %q: %w", fields[0], err)
		}
		return id, true, nil
	}
	if err := sc.Err(); err != nil {
		return objects.ID{}, false, xerrors.Errorf("refdb: read packed-refs: %w", err)
	}
	return objects.ID{}, false, nil
}

// ReferenceNames lists every ref name under one of the standard
// namespaces ("refs/heads", "refs/tags", "refs/remotes"), merging
// loose files with any entries compacted into packed-refs.
func (db *Database) ReferenceNames(namespace string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string

	root := filepath.Join(db.gitDir, filepath.FromSlash(namespace))
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(db.gitDir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, xerrors.Errorf("refdb: walk %s: %w", namespace, err)
	}

	f, err := os.Open(filepath.Join(db.gitDir, "packed-refs"))
	if err == nil {
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := sc.Text()
			if line == "" || line[0] == '#' || line[0] == '^' {
				continue
			}
			fields := strings.Fields(line)
			if len(fields) != 2 || !strings.HasPrefix(fields[1], namespace) {
				continue
			}
			if !seen[fields[1]] {
				seen[fields[1]] = true
				names = append(names, fields[1])
			}
		}
	} else if !os.IsNotExist(err) {
		return nil, xerrors.Errorf("refdb: open packed-refs: %w", err)
	}

	return names, nil
}
