// Package tree is the source tree a build reads from and writes to.
//
// Stages never touch the disk directly: reads go through an in-memory overlay
// that holds every file staged so far in the run, so later stages observe the
// outputs of earlier ones. Commit applies the overlay to disk at the end of the
// run, one atomic replace per file. Files whose staged content equals what is
// already on disk are left alone, which keeps repeated builds quiet for file
// watchers and keeps mtimes stable.
package tree

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"macro-builder/internal/sortutil"
	"macro-builder/internal/walkwalk"
)

// MissingInputError reports a configured folder or file that does not exist
// or cannot be read.
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input %s: %v", e.Path, e.Err)
}

func (e *MissingInputError) Unwrap() error { return e.Err }

// ChangeKind classifies an effective change.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeRemove ChangeKind = "remove"
)

// Change is one file that Commit will create, rewrite or delete.
type Change struct {
	Path   string
	Kind   ChangeKind
	Before []byte
	After  []byte
}

type entry struct {
	data    []byte
	removed bool
}

// Tree is a directory plus the pending writes of the current run.
type Tree struct {
	root    string
	overlay map[string]*entry
}

// New returns a Tree rooted at root with an empty overlay.
func New(root string) *Tree {
	return &Tree{root: root, overlay: make(map[string]*entry)}
}

// Root returns the directory the tree is rooted at.
func (t *Tree) Root() string { return t.root }

// Abs maps a root-relative slash path to a filesystem path.
func (t *Tree) Abs(rel string) string {
	return filepath.Join(t.root, filepath.FromSlash(clean(rel)))
}

// ReadFile returns the current content of rel, staged content first.
func (t *Tree) ReadFile(rel string) ([]byte, error) {
	rel = clean(rel)
	if e, ok := t.overlay[rel]; ok {
		if e.removed {
			return nil, &MissingInputError{Path: rel, Err: fs.ErrNotExist}
		}
		return e.data, nil
	}
	b, err := os.ReadFile(t.Abs(rel))
	if err != nil {
		return nil, &MissingInputError{Path: rel, Err: err}
	}
	return b, nil
}

// Exists reports whether rel currently exists as seen through the overlay.
func (t *Tree) Exists(rel string) bool {
	rel = clean(rel)
	if e, ok := t.overlay[rel]; ok {
		return !e.removed
	}
	info, err := os.Stat(t.Abs(rel))
	return err == nil && info.Mode().IsRegular()
}

// List returns the root-relative paths of the files directly inside dir whose
// name ends in ext, sorted by name. The folder itself must exist on disk.
func (t *Tree) List(dir, ext string) ([]string, error) {
	dir = clean(dir)
	files, err := walkwalk.ListDir(t.root, dir, ext)
	if err != nil {
		return nil, &MissingInputError{Path: dir, Err: err}
	}
	paths := make([]string, 0, len(files))
	for _, f := range files {
		if e, ok := t.overlay[f.RelPath]; ok && e.removed {
			continue
		}
		paths = append(paths, f.RelPath)
	}
	for p, e := range t.overlay {
		if e.removed || path.Dir(p) != dir || !strings.HasSuffix(path.Base(p), ext) {
			continue
		}
		paths = append(paths, p)
	}
	return sortutil.Dedup(paths), nil
}

// WriteFile stages data as the new content of rel.
func (t *Tree) WriteFile(rel string, data []byte) {
	cp := make([]byte, len(data))
	copy(cp, data)
	t.overlay[clean(rel)] = &entry{data: cp}
}

// Remove stages the deletion of rel.
func (t *Tree) Remove(rel string) {
	t.overlay[clean(rel)] = &entry{removed: true}
}

// Changes returns the effective changes staged so far, sorted by path.
// Writes that reproduce the on-disk bytes and removals of absent files are
// not changes.
func (t *Tree) Changes() ([]Change, error) {
	keys := make([]string, 0, len(t.overlay))
	for k := range t.overlay {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	changes := make([]Change, 0, len(keys))
	for _, k := range keys {
		e := t.overlay[k]
		before, err := os.ReadFile(t.Abs(k))
		exists := err == nil
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		switch {
		case e.removed && exists:
			changes = append(changes, Change{Path: k, Kind: ChangeRemove, Before: before})
		case e.removed:
		case !exists:
			changes = append(changes, Change{Path: k, Kind: ChangeCreate, After: e.data})
		case !bytes.Equal(before, e.data):
			changes = append(changes, Change{Path: k, Kind: ChangeUpdate, Before: before, After: e.data})
		}
	}
	return changes, nil
}

// Commit applies the staged changes to disk and clears the overlay. It stops
// at the first failure; files already replaced stay replaced.
func (t *Tree) Commit() ([]Change, error) {
	changes, err := t.Changes()
	if err != nil {
		return nil, err
	}
	for _, c := range changes {
		abs := t.Abs(c.Path)
		if c.Kind == ChangeRemove {
			if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("remove %s: %w", c.Path, err)
			}
			continue
		}
		if err := writeAtomic(abs, c.After); err != nil {
			return nil, fmt.Errorf("write %s: %w", c.Path, err)
		}
	}
	t.overlay = make(map[string]*entry)
	return changes, nil
}

// writeAtomic writes data into a sibling temp file and renames it over abs,
// so readers never observe a partially written file. The existing file mode
// is kept.
func writeAtomic(abs string, data []byte) error {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	mode := fs.FileMode(0o644)
	if info, err := os.Stat(abs); err == nil {
		mode = info.Mode().Perm()
	}
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(abs)+"-")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Chmod(mode); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, abs); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func clean(rel string) string {
	return path.Clean(filepath.ToSlash(rel))
}
