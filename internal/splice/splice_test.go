package splice

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"macro-builder/internal/config"
	"macro-builder/internal/tree"
)

var markers = NewMarkers("/* WEBOUT BEGIN */", "/* WEBOUT END */", "**/")

func strict() Options  { return Options{Markers: markers, Strict: true} }
func lenient() Options { return Options{Markers: markers} }

const target = `%macro mv_createwebservice();
data _null_;
/* WEBOUT BEGIN */
  put 'stale line ';
  put 'another stale line ';
/* WEBOUT END */
run;
%mend;
`

func TestPayloadSkipsDocumentationBlock(t *testing.T) {
	content := "/**\n  @file mf_getuser.sas\n  @brief Returns a userid\n**/\n\n%macro mf_getuser();\n  &sysuserid\n%mend;\n"
	lines, found := Payload([]byte(content), markers.DocEnd)
	require.True(t, found)
	assert.Equal(t, []string{"\n", "%macro mf_getuser();\n", "  &sysuserid\n", "%mend;\n"}, lines)
	for _, l := range lines {
		assert.NotContains(t, l, "@file")
	}
}

func TestPayloadDropsLaterDocEndLines(t *testing.T) {
	lines, found := Payload([]byte("/**\n**/\na\n**/\nb\n"), markers.DocEnd)
	require.True(t, found)
	assert.Equal(t, []string{"a\n", "b\n"}, lines)
}

func TestPayloadAcceptsCRLF(t *testing.T) {
	content := "/**\r\n  @file mf_getuser.sas\r\n**/\r\n%macro mf_getuser();\r\n**/\r\n%mend;\r\n"
	lines, found := Payload([]byte(content), markers.DocEnd)
	require.True(t, found)
	assert.Equal(t, []string{"%macro mf_getuser();\r\n", "%mend;\r\n"}, lines)
	assert.Equal(t, "  put '%macro mf_getuser(); ';\n  put '%mend; ';\n", Generated(lines))
}

func TestPayloadWithoutDocEnd(t *testing.T) {
	lines, found := Payload([]byte("/**\n  open doc\n **/\n%macro x;\n"), markers.DocEnd)
	assert.False(t, found)
	assert.Empty(t, lines)
}

func TestGeneratedKeepsFragmentOrder(t *testing.T) {
	got := Generated([]string{"%macro a;\n"}, nil, []string{"x='1';\n", "%mend;"})
	assert.Equal(t, "  put '%macro a; ';\n  put 'x=''1''; ';\n  put '%mend; ';\n", got)
}

func TestSpliceReplacesRegion(t *testing.T) {
	gen := Generated([]string{"%macro a;\n"})
	out, rep, err := Splice("t.sas", []byte(target), gen, strict())
	require.NoError(t, err)

	want := "%macro mv_createwebservice();\ndata _null_;\n/* WEBOUT BEGIN */\n  put '%macro a; ';\n/* WEBOUT END */\nrun;\n%mend;\n"
	assert.Equal(t, want, string(out))
	assert.Equal(t, Report{Regions: 1, Closed: 1, DroppedLines: 2}, rep)

	assert.Equal(t, 1, strings.Count(string(out), markers.Begin))
	assert.Equal(t, 1, strings.Count(string(out), markers.End))
}

func TestSpliceIsIdempotent(t *testing.T) {
	gen := Generated([]string{"a\n", "b'c\n"})
	once, _, err := Splice("t.sas", []byte(target), gen, strict())
	require.NoError(t, err)
	twice, _, err := Splice("t.sas", once, gen, strict())
	require.NoError(t, err)
	assert.Equal(t, once, twice)
}

func TestSpliceCopiesOutsideLinesVerbatim(t *testing.T) {
	in := "keep   \r\n/* WEBOUT BEGIN */\n/* WEBOUT END */\ntail without newline"
	out, _, err := Splice("t.sas", []byte(in), "", strict())
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestSpliceMarkersNeedExactLines(t *testing.T) {
	in := "  /* WEBOUT BEGIN */\n/* WEBOUT BEGIN */  \n/* WEBOUT BEGIN */"
	_, _, err := Splice("t.sas", []byte(in), "x", strict())
	assert.True(t, errors.Is(err, ErrBeginMissing))

	out, rep, err := Splice("t.sas", []byte(in), "x", lenient())
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
	assert.Zero(t, rep.Regions)
}

func TestSpliceStrictErrors(t *testing.T) {
	cases := []struct {
		name string
		in   string
		kind error
		at   string
	}{
		{"missing begin", "a\nb\n", ErrBeginMissing, "t.sas:3"},
		{"missing end", "a\n/* WEBOUT BEGIN */\nb\n", ErrEndMissing, "t.sas:2"},
		{"nested begin", "/* WEBOUT BEGIN */\n/* WEBOUT BEGIN */\n/* WEBOUT END */\n", ErrNestedBegin, "t.sas:2"},
		{"stray end", "/* WEBOUT END */\n/* WEBOUT BEGIN */\n/* WEBOUT END */\n", ErrStrayEnd, "t.sas:1"},
		{"duplicate region", "/* WEBOUT BEGIN */\n/* WEBOUT END */\n/* WEBOUT BEGIN */\n/* WEBOUT END */\n", ErrDuplicateRegion, "t.sas:3"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := Splice("t.sas", []byte(tc.in), "", strict())
			var me *MarkerError
			require.ErrorAs(t, err, &me)
			assert.True(t, errors.Is(err, tc.kind))
			assert.Equal(t, tc.at, me.At)
			assert.Equal(t, "t.sas", me.File)
		})
	}
}

func TestSpliceLenientTruncatesAfterUnclosedBegin(t *testing.T) {
	in := "head\n/* WEBOUT BEGIN */\nold\nlost 1\nlost 2\n"
	out, rep, err := Splice("t.sas", []byte(in), "  put 'g ';\n", lenient())
	require.NoError(t, err)
	assert.Equal(t, "head\n/* WEBOUT BEGIN */\n  put 'g ';\n", string(out))
	assert.True(t, rep.Truncated)
	assert.Equal(t, 3, rep.DroppedLines)
}

func TestSpliceLenientEmptiesLaterRegions(t *testing.T) {
	in := "/* WEBOUT BEGIN */\n/* WEBOUT BEGIN */\n/* WEBOUT END */\n/* WEBOUT END */\n"
	out, rep, err := Splice("t.sas", []byte(in), "G\n", lenient())
	require.NoError(t, err)
	assert.Equal(t, "/* WEBOUT BEGIN */\nG\n/* WEBOUT BEGIN */\n/* WEBOUT END */\n/* WEBOUT END */\n", string(out))
	assert.Equal(t, 2, rep.Regions)
	assert.Equal(t, 1, rep.Closed)

	in = "a\n/* WEBOUT BEGIN */\nx\n/* WEBOUT END */\nb\n/* WEBOUT BEGIN */\ny\n/* WEBOUT END */\n"
	out, rep, err = Splice("t.sas", []byte(in), "G\n", lenient())
	require.NoError(t, err)
	assert.Equal(t, "a\n/* WEBOUT BEGIN */\nG\n/* WEBOUT END */\nb\n/* WEBOUT BEGIN */\n/* WEBOUT END */\n", string(out))
	assert.Equal(t, 2, rep.Closed)
	assert.Equal(t, 2, rep.DroppedLines)
}

func TestSpliceAcceptsCRLFMarkers(t *testing.T) {
	in := "head\r\n/* WEBOUT BEGIN */\r\nold\r\n/* WEBOUT END */\r\ntail  \r\n"
	want := "head\r\n/* WEBOUT BEGIN */\r\n  put 'g ';\n/* WEBOUT END */\r\ntail  \r\n"
	for name, opt := range map[string]Options{"strict": strict(), "lenient": lenient()} {
		t.Run(name, func(t *testing.T) {
			out, rep, err := Splice("t.sas", []byte(in), "  put 'g ';\n", opt)
			require.NoError(t, err)
			assert.Equal(t, want, string(out))
			assert.Equal(t, Report{Regions: 1, Closed: 1, DroppedLines: 1}, rep)
		})
	}

	again, _, err := Splice("t.sas", []byte(want), "  put 'g ';\n", strict())
	require.NoError(t, err)
	assert.Equal(t, want, string(again))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Webout.Targets = []config.Target{
		{Path: "viya/t.sas", Fragments: []string{"base/one.sas", "base/two.sas"}},
		{Path: "server/t.sas", Fragments: []string{"base/one.sas", "base/two.sas", "server/extra.sas"}},
	}
	return cfg
}

func TestApplyStagesTargetsInFragmentOrder(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "base/one.sas", "/**\n  @file one\n**/\n%macro one;\n")
	writeFile(t, root, "base/two.sas", "/**\n  @file two\n**/\n%macro two;\n")
	writeFile(t, root, "server/extra.sas", "/**\n**/\n%macro extra;\n")
	writeFile(t, root, "viya/t.sas", target)
	writeFile(t, root, "server/t.sas", target)

	tr := tree.New(root)
	results, err := Apply(tr, testConfig(), zap.NewNop())
	require.NoError(t, err)
	require.Len(t, results, 2)

	viya, err := tr.ReadFile("viya/t.sas")
	require.NoError(t, err)
	assert.Contains(t, string(viya), "/* WEBOUT BEGIN */\n  put '%macro one; ';\n  put '%macro two; ';\n/* WEBOUT END */\n")

	server, err := tr.ReadFile("server/t.sas")
	require.NoError(t, err)
	assert.Contains(t, string(server), "  put '%macro two; ';\n  put '%macro extra; ';\n/* WEBOUT END */\n")
	assert.NotContains(t, string(server), "@file")
}

func TestApplyMissingSharedFragment(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "viya/t.sas", target)
	_, err := Apply(tree.New(root), testConfig(), zap.NewNop())
	var missing *tree.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "base/one.sas", missing.Path)
}

func TestApplyDocEndMissing(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "base/one.sas", "%macro one;\n")
	writeFile(t, root, "base/two.sas", "/**\n**/\n")
	writeFile(t, root, "server/extra.sas", "/**\n**/\n")
	writeFile(t, root, "viya/t.sas", target)
	writeFile(t, root, "server/t.sas", target)

	_, err := Apply(tree.New(root), testConfig(), zap.NewNop())
	assert.True(t, errors.Is(err, ErrDocEndMissing))

	cfg := testConfig()
	off := false
	cfg.Webout.Strict = &off
	_, err = Apply(tree.New(root), cfg, zap.NewNop())
	require.NoError(t, err)
}
