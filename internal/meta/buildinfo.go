// Package meta reports build metadata of the running binary.
package meta

import (
	"runtime/debug"
	"strings"
)

// Info is a minimal summary of how the binary was built.
type Info struct {
	Module   string // main module path
	Version  string // module version, "(devel)" for local builds
	Revision string // vcs revision, shortened
	Modified bool   // the working tree had uncommitted changes
}

// Detect reads the build information embedded by the Go toolchain. It never
// fails: missing information yields empty fields.
func Detect() Info {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{}
	}
	inf := Info{Module: bi.Main.Path, Version: bi.Main.Version}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			inf.Revision = shorten(s.Value)
		case "vcs.modified":
			inf.Modified = s.Value == "true"
		}
	}
	return inf
}

// String renders inf for a --version flag.
func (r Info) String() string {
	v := firstNonEmpty(r.Version, "(devel)")
	if r.Revision == "" {
		return v
	}
	var sb strings.Builder
	sb.WriteString(v)
	sb.WriteString(" (")
	sb.WriteString(r.Revision)
	if r.Modified {
		sb.WriteString("-dirty")
	}
	sb.WriteString(")")
	return sb.String()
}

func shorten(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		s = strings.TrimSpace(s)
		if s != "" {
			return s
		}
	}
	return ""
}
