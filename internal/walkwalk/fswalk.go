// Package walkwalk lists the candidate files of a single source folder in a
// deterministic order.
package walkwalk

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo is a minimal, deterministic descriptor of a collected file.
type FileInfo struct {
	Name    string // base name
	RelPath string // root-relative path with forward slashes
	AbsPath string // absolute filesystem path
	Size    int64  // size in bytes
	Ext     string // extension including dot, case preserved (e.g., ".sas")
}

// ListDir returns the regular files directly inside root/dir whose name ends
// in ext (case-sensitive). Sub-directories are not descended into. Symlinks
// are followed so linked macro files are picked up like regular ones.
// The result is sorted by name.
func ListDir(root, dir, ext string) ([]FileInfo, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	dirAbs := filepath.Join(rootAbs, filepath.FromSlash(dir))
	entries, err := os.ReadDir(dirAbs)
	if err != nil {
		return nil, err
	}
	files := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		abs := filepath.Join(dirAbs, e.Name())
		info, ok := regularInfo(abs, e)
		if !ok {
			continue
		}
		files = append(files, FileInfo{
			Name:    e.Name(),
			RelPath: filepath.ToSlash(filepath.Join(dir, e.Name())),
			AbsPath: abs,
			Size:    info.Size(),
			Ext:     filepath.Ext(e.Name()),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// regularInfo resolves d (following a symlink when needed) and reports whether
// it is a regular file.
func regularInfo(abs string, d fs.DirEntry) (fs.FileInfo, bool) {
	if isSymlink(d) {
		info, err := os.Stat(abs)
		if err != nil || !info.Mode().IsRegular() {
			return nil, false
		}
		return info, true
	}
	info, err := d.Info()
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return info, true
}

// isSymlink reports whether the DirEntry is a symlink (file or directory).
func isSymlink(d fs.DirEntry) bool {
	return d.Type()&fs.ModeSymlink != 0
}
