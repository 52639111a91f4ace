// Package bundle concatenates the macro folders into per-folder bundles and
// the single combined artifact.
//
// Output layout (paths relative to the project root):
//
//	mc_<folder>.sas # every macro file of one folder, sorted by file name
//	all.sas         # banner, options line, then every folder bundle in folder order
//
// Design goals:
//   - Deterministic output (code point file order, fixed folder order, no timestamps)
//   - Raw concatenation (no separators beyond what the source files contain)
package bundle

import (
	"bytes"
	"strings"

	"github.com/lithammer/dedent"
	"go.uber.org/zap"

	"macro-builder/internal/config"
	"macro-builder/internal/tree"
)

// OptionsLine follows the banner in the combined artifact; it lifts the
// quoted string length limit for the rest of the session.
const OptionsLine = "options noquotelenmax;\n"

// DefaultBanner is the comment block the combined artifact starts with.
var DefaultBanner = dedent.Dedent(`
	/**
	  @file
	  @brief Auto-generated file
	  @details
	    This file contains all the macros in a single file - which means it can be
	    'included' in SAS with just 2 lines of code:

	      filename mc url
	        "https://raw.githubusercontent.com/sasjs/core/main/all.sas";
	      %inc mc;

	    The ` + "`build.py`" + ` file in the https://github.com/sasjs/core repo
	    is used to create this file.

	  @author Allan Bowe
	**/
	`)

// FolderBundle is the concatenation of one folder.
type FolderBundle struct {
	Folder  string
	Path    string
	Files   []string
	Content []byte
}

// Artifact is the combined output.
type Artifact struct {
	Path    string
	Bundles []FolderBundle
	Content []byte
}

// Header returns the banner followed by OptionsLine. An empty banner selects
// DefaultBanner.
func Header(banner string) string {
	if banner == "" {
		banner = DefaultBanner
	}
	if !strings.HasSuffix(banner, "\n") {
		banner += "\n"
	}
	return banner + OptionsLine
}

// Folder concatenates parts in the given order.
func Folder(parts [][]byte) []byte {
	return bytes.Join(parts, nil)
}

// Combined writes the header and then every bundle, in order.
func Combined(banner string, bundles [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(Header(banner))
	for _, b := range bundles {
		buf.Write(b)
	}
	return buf.Bytes()
}

// Build stages one bundle per configured folder and then the combined
// artifact. Files are read through t, so macros generated or rewritten earlier
// in the same run are included in their new form.
func Build(t *tree.Tree, cfg *config.Config, logger *zap.Logger) (*Artifact, error) {
	art := &Artifact{
		Path:    cfg.Bundle.Output,
		Bundles: make([]FolderBundle, 0, len(cfg.Bundle.Folders)),
	}

	contents := make([][]byte, 0, len(cfg.Bundle.Folders))
	for _, folder := range cfg.Bundle.Folders {
		files, err := t.List(folder, cfg.MacroExt)
		if err != nil {
			return nil, err
		}

		parts := make([][]byte, 0, len(files))
		for _, f := range files {
			b, err := t.ReadFile(f)
			if err != nil {
				return nil, err
			}
			parts = append(parts, b)
		}

		fb := FolderBundle{
			Folder:  folder,
			Path:    cfg.Bundle.Prefix + folder + cfg.MacroExt,
			Files:   files,
			Content: Folder(parts),
		}
		t.WriteFile(fb.Path, fb.Content)
		logger.Debug("bundled folder",
			zap.String("folder", folder),
			zap.String("bundle", fb.Path),
			zap.Int("files", len(files)),
		)

		art.Bundles = append(art.Bundles, fb)
		contents = append(contents, fb.Content)
	}

	art.Content = Combined(cfg.Bundle.Banner, contents)
	t.WriteFile(art.Path, art.Content)
	return art, nil
}
