// Package pipeline runs the build stages in order over one source tree.
//
// Every stage reads and writes through the same tree overlay, so the bundler
// sees the wrapper macros and spliced templates produced earlier in the run.
// Nothing reaches the disk until all stages have succeeded.
package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"macro-builder/internal/bundle"
	"macro-builder/internal/cache"
	"macro-builder/internal/config"
	"macro-builder/internal/splice"
	"macro-builder/internal/tree"
	"macro-builder/internal/wrap"
)

// Options selects where and how a build runs.
type Options struct {
	Root string
	// DryRun computes the changes without applying them.
	DryRun bool
}

// Result collects the output of every stage and the changes that were (or,
// in a dry run, would be) applied.
type Result struct {
	Wrapped  []wrap.GeneratedFile
	Stale    []string
	Spliced  []splice.Result
	Artifact *bundle.Artifact
	Manifest *cache.Manifest
	Changes  []tree.Change
}

// Run executes wrap, stale cleanup, splice, bundle and the manifest update in
// that order, then commits the tree unless opt.DryRun is set. Any error
// aborts the run before the commit and leaves the disk untouched.
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger, opt Options) (*Result, error) {
	t := tree.New(opt.Root)
	res := new(Result)
	manifestPath := cache.ManifestPath(cfg.CacheDir)

	// * load previous manifest
	prev, err := cache.Load(t, manifestPath)
	if err != nil {
		return nil, err
	}

	// * wrap fragments
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Wrapped, err = wrap.Generate(t, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("wrap: %w", err)
	}

	// * drop wrappers whose fragment is gone
	generated := make([]cache.SnapFile, 0, len(res.Wrapped))
	for _, g := range res.Wrapped {
		generated = append(generated, cache.NewSnapFile(g.Path, g.Content))
	}
	res.Stale, err = removeStale(t, prev, &cache.Manifest{Generated: generated}, logger)
	if err != nil {
		return nil, err
	}

	// * splice web service templates
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Spliced, err = splice.Apply(t, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("splice: %w", err)
	}

	// * bundle folders
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res.Artifact, err = bundle.Build(t, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("bundle: %w", err)
	}

	// * record outputs
	res.Manifest = &cache.Manifest{
		FormatVersion: cache.FormatVersion,
		Generated:     generated,
		Outputs:       outputs(res),
	}
	if err := cache.Stage(t, manifestPath, res.Manifest); err != nil {
		return nil, err
	}

	// * apply
	if opt.DryRun {
		res.Changes, err = t.Changes()
	} else {
		res.Changes, err = t.Commit()
	}
	if err != nil {
		return nil, err
	}

	logger.Info("build finished",
		zap.Int("wrapped", len(res.Wrapped)),
		zap.Int("stale", len(res.Stale)),
		zap.Int("spliced", len(res.Spliced)),
		zap.Int("bundles", len(res.Artifact.Bundles)),
		zap.Int("changes", len(res.Changes)),
		zap.Bool("dryRun", opt.DryRun),
	)
	return res, nil
}

// removeStale stages the deletion of wrappers recorded by the previous build
// that this build no longer generates. A wrapper edited by hand since it was
// generated is kept.
func removeStale(t *tree.Tree, prev, curr *cache.Manifest, logger *zap.Logger) ([]string, error) {
	var removed []string
	for _, f := range cache.BuildDelta(prev, curr).Removed {
		if !t.Exists(f.Path) {
			continue
		}
		data, err := t.ReadFile(f.Path)
		if err != nil {
			return nil, err
		}
		if cache.NewSnapFile(f.Path, data).Hash != f.Hash {
			logger.Warn("stale wrapper was modified, keeping it", zap.String("path", f.Path))
			continue
		}
		t.Remove(f.Path)
		removed = append(removed, f.Path)
		logger.Debug("removed stale wrapper", zap.String("path", f.Path))
	}
	return removed, nil
}

func outputs(res *Result) []cache.SnapFile {
	files := make([]cache.SnapFile, 0, len(res.Spliced)+len(res.Artifact.Bundles)+1)
	for _, s := range res.Spliced {
		files = append(files, cache.NewSnapFile(s.Target, s.Content))
	}
	for _, b := range res.Artifact.Bundles {
		files = append(files, cache.NewSnapFile(b.Path, b.Content))
	}
	return append(files, cache.NewSnapFile(res.Artifact.Path, res.Artifact.Content))
}
