// Package cache records what a build generated so the next build can tell
// which generated files have become stale.
package cache

// SnapFile represents a single generated file in a manifest.
// Path is a root-relative slash path, Hash is the lowercase hex sha256 of the
// content and Lines is the number of physical lines.
type SnapFile struct {
	Path  string `json:"path"`
	Hash  string `json:"hash"`
	Lines int    `json:"lines"`
}

// Manifest captures the outputs of one build. Generated lists the files the
// build created from fragments and owns outright; Outputs lists every other
// file the build wrote (spliced targets, bundles). No timestamps are stored,
// so an unchanged tree yields a byte-identical manifest.
type Manifest struct {
	FormatVersion string     `json:"formatVersion"`
	Generated     []SnapFile `json:"generated"`
	Outputs       []SnapFile `json:"outputs"`
}

// Delta is the change in the Generated set between two manifests.
//
//   - Added: files generated now that were not generated before
//   - Removed: files generated before that this build no longer produces
//   - Changed: files generated by both builds with different content
type Delta struct {
	Added   []SnapFile `json:"added"`
	Removed []SnapFile `json:"removed"`
	Changed []SnapFile `json:"changed"`
}
