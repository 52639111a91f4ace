package pipeline

import (
	"io"
	"path"

	"github.com/ddddddO/gtree"

	"macro-builder/internal/config"
	"macro-builder/internal/tree"
	"macro-builder/internal/wrap"
)

// Step is one wrapper the build will generate.
type Step struct {
	Fragment string
	Output   string
}

// BuildPlan lists, in execution order, what a build reads and writes.
type BuildPlan struct {
	Root     string
	Wraps    []Step
	Targets  []config.Target
	Folders  []string
	Prefix   string
	MacroExt string
	Output   string
}

// Plan resolves the configured inputs against t without running any stage.
func Plan(t *tree.Tree, cfg *config.Config) (*BuildPlan, error) {
	fragments, err := t.List(cfg.Lua.Dir, cfg.Lua.Ext)
	if err != nil {
		return nil, err
	}
	p := &BuildPlan{
		Root:     t.Root(),
		Wraps:    make([]Step, 0, len(fragments)),
		Targets:  cfg.Webout.Targets,
		Folders:  cfg.Bundle.Folders,
		Prefix:   cfg.Bundle.Prefix,
		MacroExt: cfg.MacroExt,
		Output:   cfg.Bundle.Output,
	}
	for _, f := range fragments {
		name := wrap.MacroName(cfg.Lua.Prefix, path.Base(f), cfg.Lua.Ext)
		p.Wraps = append(p.Wraps, Step{
			Fragment: f,
			Output:   path.Join(path.Dir(f), name+cfg.MacroExt),
		})
	}
	return p, nil
}

// Write prints the plan as a tree.
func (r *BuildPlan) Write(w io.Writer) error {
	root := gtree.NewRoot(r.Root)

	wraps := root.Add("wrap")
	for _, s := range r.Wraps {
		wraps.Add(s.Fragment + " -> " + s.Output)
	}

	targets := root.Add("splice")
	for _, tg := range r.Targets {
		node := targets.Add(tg.Path)
		for _, f := range tg.Fragments {
			node.Add(f)
		}
	}

	output := root.Add("bundle")
	all := output.Add(r.Output)
	for _, folder := range r.Folders {
		all.Add(r.Prefix + folder + r.MacroExt + " <- " + folder + "/*" + r.MacroExt)
	}

	return gtree.OutputFromRoot(w, root)
}
