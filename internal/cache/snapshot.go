package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"

	"macro-builder/internal/textutil"
	"macro-builder/internal/tree"
)

const (
	// FormatVersion is bumped whenever the manifest schema changes.
	FormatVersion = "1"
	manifestName  = "manifest.json"
)

// ManifestPath returns the manifest location inside cacheDir.
func ManifestPath(cacheDir string) string {
	return path.Join(cacheDir, manifestName)
}

// NewSnapFile describes data as stored at p.
func NewSnapFile(p string, data []byte) SnapFile {
	sum := sha256.Sum256(data)
	return SnapFile{
		Path:  p,
		Hash:  hex.EncodeToString(sum[:]),
		Lines: textutil.CountLines(data),
	}
}

// Load reads the manifest at p through t.
// If the file does not exist, it returns (nil, nil) so callers can treat it
// as "no previous build" without branching on errors.
func Load(t *tree.Tree, p string) (*Manifest, error) {
	b, err := t.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", p, err)
	}
	return &m, nil
}

// Stage encodes m deterministically and stages it at p.
func Stage(t *tree.Tree, p string, m *Manifest) error {
	b, err := Encode(m)
	if err != nil {
		return err
	}
	t.WriteFile(p, b)
	return nil
}

// Encode renders m as indented JSON with both file lists sorted by path.
func Encode(m *Manifest) ([]byte, error) {
	out := Manifest{
		FormatVersion: m.FormatVersion,
		Generated:     sortedFiles(m.Generated),
		Outputs:       sortedFiles(m.Outputs),
	}
	if out.FormatVersion == "" {
		out.FormatVersion = FormatVersion
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// BuildDelta compares the Generated sets of two manifests. A nil prev means
// every current file is new.
func BuildDelta(prev, curr *Manifest) Delta {
	d := Delta{
		Added:   make([]SnapFile, 0),
		Removed: make([]SnapFile, 0),
		Changed: make([]SnapFile, 0),
	}
	var prevFiles, currFiles []SnapFile
	if prev != nil {
		prevFiles = prev.Generated
	}
	if curr != nil {
		currFiles = curr.Generated
	}
	prevMap := indexByPath(prevFiles)
	currMap := indexByPath(currFiles)

	for p, pf := range prevMap {
		cf, ok := currMap[p]
		switch {
		case !ok:
			d.Removed = append(d.Removed, pf)
		case cf.Hash != pf.Hash:
			d.Changed = append(d.Changed, cf)
		}
	}
	for p, cf := range currMap {
		if _, ok := prevMap[p]; !ok {
			d.Added = append(d.Added, cf)
		}
	}
	d.Added = sortedFiles(d.Added)
	d.Removed = sortedFiles(d.Removed)
	d.Changed = sortedFiles(d.Changed)
	return d
}

func indexByPath(files []SnapFile) map[string]SnapFile {
	m := make(map[string]SnapFile, len(files))
	for _, f := range files {
		m[f.Path] = f
	}
	return m
}

func sortedFiles(files []SnapFile) []SnapFile {
	out := make([]SnapFile, len(files))
	copy(out, files)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
