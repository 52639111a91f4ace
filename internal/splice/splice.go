// Package splice rebuilds the generated region of the web service templates.
//
// A target holds a region bounded by a begin and an end marker line. Everything
// between them is thrown away and replaced with put statements built from the
// payload of an ordered list of shared macro files, so that at runtime the
// template writes those macros out verbatim. Lines outside the region are
// copied through untouched.
package splice

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nickwells/location.mod/location"
	"go.uber.org/zap"

	"macro-builder/internal/config"
	"macro-builder/internal/escape"
	"macro-builder/internal/textutil"
	"macro-builder/internal/tree"
)

var (
	ErrBeginMissing    = errors.New("begin marker not found")
	ErrEndMissing      = errors.New("end marker not found after begin marker")
	ErrNestedBegin     = errors.New("begin marker inside generated region")
	ErrStrayEnd        = errors.New("end marker outside generated region")
	ErrDuplicateRegion = errors.New("more than one generated region")
	ErrDocEndMissing   = errors.New("documentation block end not found")
)

// MarkerError reports a malformed marker pair (or documentation block) in a
// file. Kind is one of the Err* sentinels and matches with errors.Is.
type MarkerError struct {
	File string
	Kind error
	At   string // file:line of the offending line, or of end of file
}

func (e *MarkerError) Error() string {
	return fmt.Sprintf("%s: %v", e.At, e.Kind)
}

func (e *MarkerError) Unwrap() error { return e.Kind }

// Markers are the literal marker texts. A line matches a marker when it is
// the marker followed by a "\n" or "\r\n" terminator; an unterminated last
// line never matches.
type Markers struct {
	Begin  string
	End    string
	DocEnd string
}

// NewMarkers returns the marker texts as Markers.
func NewMarkers(begin, end, docEnd string) Markers {
	return Markers{Begin: begin, End: end, DocEnd: docEnd}
}

// isLine reports whether line is marker plus a line terminator.
func isLine(line, marker string) bool {
	text, ok := strings.CutSuffix(line, "\n")
	if !ok {
		return false
	}
	return strings.TrimSuffix(text, "\r") == marker
}

// Options controls how malformed marker pairs are handled.
type Options struct {
	Markers Markers
	// Strict makes malformed marker pairs an error. When false the rewrite
	// follows the historical behaviour: no begin marker leaves the file as it
	// is, and a begin marker without an end marker drops the rest of the file.
	Strict bool
}

// Report describes what a rewrite found.
type Report struct {
	Regions      int // begin markers acted upon
	Closed       int // end markers that closed a region
	Truncated    bool
	DroppedLines int // lines of the previous generated region(s)
}

// Payload returns the lines of a shared fragment that follow its leading
// documentation block. Every documentation end line is dropped, the first one
// ends the skipped prefix. found is false when the
// marker never appears, in which case there is no payload.
func Payload(content []byte, docEnd string) (lines []string, found bool) {
	for _, l := range textutil.SplitLines(content) {
		if isLine(l, docEnd) {
			found = true
			continue
		}
		if found {
			lines = append(lines, l)
		}
	}
	return lines, found
}

// Generated builds the replacement block for a region: one put statement per
// payload line, payloads in the given order.
func Generated(payloads ...[]string) string {
	var sb strings.Builder
	for _, p := range payloads {
		for _, l := range p {
			sb.WriteString(escape.Put(l))
		}
	}
	return sb.String()
}

// Splice rewrites content, replacing the body of the marker region with
// generated. name is used for error locations only. In lenient mode only the
// first region receives generated; any later region is emptied.
func Splice(name string, content []byte, generated string, opt Options) ([]byte, Report, error) {
	var (
		out       strings.Builder
		rep       Report
		replacing bool
		beginAt   string
		m         = opt.Markers
		loc       = location.New(name)
	)

	for _, line := range textutil.SplitLines(content) {
		loc.Incr()
		switch {
		case isLine(line, m.Begin):
			if opt.Strict {
				if replacing {
					return nil, rep, &MarkerError{File: name, Kind: ErrNestedBegin, At: loc.String()}
				}
				if rep.Regions > 0 {
					return nil, rep, &MarkerError{File: name, Kind: ErrDuplicateRegion, At: loc.String()}
				}
			}
			out.WriteString(line)
			if rep.Regions == 0 {
				out.WriteString(generated)
			}
			replacing = true
			beginAt = loc.String()
			rep.Regions++
		case replacing && isLine(line, m.End):
			out.WriteString(line)
			replacing = false
			rep.Closed++
		case replacing:
			rep.DroppedLines++
		default:
			if opt.Strict && isLine(line, m.End) {
				return nil, rep, &MarkerError{File: name, Kind: ErrStrayEnd, At: loc.String()}
			}
			out.WriteString(line)
		}
	}

	if replacing {
		if opt.Strict {
			return nil, rep, &MarkerError{File: name, Kind: ErrEndMissing, At: beginAt}
		}
		rep.Truncated = true
	}
	if rep.Regions == 0 && opt.Strict {
		loc.Incr()
		return nil, rep, &MarkerError{File: name, Kind: ErrBeginMissing, At: loc.String()}
	}

	return []byte(out.String()), rep, nil
}

// Result is the outcome for one target.
type Result struct {
	Target    string
	Fragments []string
	Content   []byte
	Report    Report
}

// Apply rewrites every configured target in order and stages the new content
// in t.
func Apply(t *tree.Tree, cfg *config.Config, logger *zap.Logger) ([]Result, error) {
	opt := Options{
		Markers: NewMarkers(cfg.Webout.Begin, cfg.Webout.End, cfg.Webout.DocEnd),
		Strict:  cfg.Webout.IsStrict(),
	}

	results := make([]Result, 0, len(cfg.Webout.Targets))
	for _, target := range cfg.Webout.Targets {
		// * collect payloads in list order
		payloads := make([][]string, 0, len(target.Fragments))
		for _, f := range target.Fragments {
			content, err := t.ReadFile(f)
			if err != nil {
				return nil, err
			}
			lines, found := Payload(content, opt.Markers.DocEnd)
			if !found {
				if opt.Strict {
					return nil, &MarkerError{File: f, Kind: ErrDocEndMissing, At: fmt.Sprintf("%s:%d", f, textutil.CountLines(content))}
				}
				logger.Warn("shared fragment has no documentation block end, nothing spliced from it",
					zap.String("fragment", f),
					zap.String("target", target.Path),
				)
			}
			payloads = append(payloads, lines)
		}

		// * rewrite target
		content, err := t.ReadFile(target.Path)
		if err != nil {
			return nil, err
		}
		rewritten, rep, err := Splice(target.Path, content, Generated(payloads...), opt)
		if err != nil {
			return nil, err
		}
		switch {
		case rep.Regions == 0:
			logger.Warn("begin marker not found, target left unchanged", zap.String("target", target.Path))
		case rep.Truncated:
			logger.Warn("end marker not found, content after begin marker dropped", zap.String("target", target.Path))
		}

		t.WriteFile(target.Path, rewritten)
		logger.Debug("spliced target",
			zap.String("target", target.Path),
			zap.Strings("fragments", target.Fragments),
			zap.Int("dropped", rep.DroppedLines),
		)
		results = append(results, Result{Target: target.Path, Fragments: target.Fragments, Content: rewritten, Report: rep})
	}
	return results, nil
}
