// Package wrap generates one macro per lua fragment. Invoking the macro writes
// the fragment, line for line, into the SAS work directory and includes it
// with a widened line-length option, so the lua code runs unmodified.
package wrap

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"macro-builder/internal/config"
	"macro-builder/internal/escape"
	"macro-builder/internal/textutil"
	"macro-builder/internal/tree"
)

// lreclStep is the granularity the line-length option is raised in when a
// fragment has a line wider than the configured floor.
const lreclStep = 256

// Fragment is one lua source file.
type Fragment struct {
	Path    string // root-relative path, e.g. lua/x.lua
	Base    string // file name, e.g. x.lua
	Content []byte
}

// Options controls the names and limits used in generated macros.
type Options struct {
	Prefix      string // macro name prefix, e.g. ml_
	MacroExt    string // extension of the generated file, e.g. .sas
	FragmentExt string // extension of the fragment, e.g. .lua
	MinLrecl    int    // smallest line-length option value to set
}

// GeneratedFile is the rendered macro for one fragment.
type GeneratedFile struct {
	Path     string // root-relative path of the macro file
	Macro    string // macro name
	Fragment string // root-relative path of the source fragment
	Lrecl    int
	Content  []byte
}

var macroTemplate = template.Must(template.New("macro").Parse(`/**
  @file {{.Macro}}{{.MacroExt}}
  @brief Compiles the {{.Base}} lua file
  @details Writes {{.Base}} to the work directory
  and then includes it.
  Usage:

      %{{.Macro}}()

**/

%macro {{.Macro}}();
data _null_;
  file "%sysfunc(pathname(work))/{{.Macro}}{{.FragmentExt}}";
{{range .Puts}}{{.}}{{end}}run;

/* ensure big enough lrecl to avoid lua compilation issues */
%local optval;
%let optval=%sysfunc(getoption(lrecl));
options lrecl={{.Lrecl}};

/* execute the lua code by using a .lua extension */
%inc "%sysfunc(pathname(work))/{{.Macro}}{{.FragmentExt}}" /source2;

options lrecl=&optval;

%mend {{.Macro}};
`))

type macroData struct {
	Macro       string
	Base        string
	MacroExt    string
	FragmentExt string
	Lrecl       int
	Puts        []string
}

// MacroName derives the macro name from a fragment file name.
func MacroName(prefix, base, fragmentExt string) string {
	return prefix + strings.TrimSuffix(base, fragmentExt)
}

// Render builds the macro file for f. It is pure: identical input always
// yields identical bytes.
func Render(f Fragment, opt Options) (GeneratedFile, error) {
	lines := textutil.SplitLines(f.Content)
	name := MacroName(opt.Prefix, f.Base, opt.FragmentExt)
	lrecl := Lrecl(lines, opt.MinLrecl)

	var buf bytes.Buffer
	err := macroTemplate.Execute(&buf, macroData{
		Macro:       name,
		Base:        f.Base,
		MacroExt:    opt.MacroExt,
		FragmentExt: opt.FragmentExt,
		Lrecl:       lrecl,
		Puts:        escape.Puts(lines),
	})
	if err != nil {
		return GeneratedFile{}, fmt.Errorf("render %s: %w", f.Path, err)
	}

	return GeneratedFile{
		Path:     path.Join(path.Dir(f.Path), name+opt.MacroExt),
		Macro:    name,
		Fragment: f.Path,
		Lrecl:    lrecl,
		Content:  buf.Bytes(),
	}, nil
}

// Lrecl returns the line-length option value needed to read back every line
// of the fragment once written by its put statements: floor, or the widest
// emitted line rounded up to the next lreclStep when that is larger.
func Lrecl(lines []string, floor int) int {
	widest := 0
	for _, l := range lines {
		if w := escape.Width(l); w > widest {
			widest = w
		}
	}
	if widest <= floor {
		return floor
	}
	return (widest + lreclStep - 1) / lreclStep * lreclStep
}

// Generate renders a macro for every fragment in the configured lua folder
// and stages it in t. Fragments are processed in name order.
func Generate(t *tree.Tree, cfg *config.Config, logger *zap.Logger) ([]GeneratedFile, error) {
	paths, err := t.List(cfg.Lua.Dir, cfg.Lua.Ext)
	if err != nil {
		return nil, err
	}

	opt := Options{
		Prefix:      cfg.Lua.Prefix,
		MacroExt:    cfg.MacroExt,
		FragmentExt: cfg.Lua.Ext,
		MinLrecl:    cfg.Lua.Lrecl,
	}

	files := make([]GeneratedFile, 0, len(paths))
	for _, p := range paths {
		content, err := t.ReadFile(p)
		if err != nil {
			return nil, err
		}
		g, err := Render(Fragment{Path: p, Base: path.Base(p), Content: content}, opt)
		if err != nil {
			return nil, err
		}
		t.WriteFile(g.Path, g.Content)
		logger.Debug("wrapped fragment",
			zap.String("fragment", p),
			zap.String("macro", g.Macro),
			zap.Int("lrecl", g.Lrecl),
		)
		files = append(files, g)
	}
	return files, nil
}
