package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"macro-builder/internal/diff"
	"macro-builder/internal/pipeline"
	"macro-builder/internal/tree"
	"macro-builder/internal/watch"
)

// ErrOutOfDate is returned by check when a build would change files.
var ErrOutOfDate = errors.New("generated files are out of date")

type BuildCommand struct{}

func (r *BuildCommand) Run(app *App) error {
	res, err := pipeline.Run(context.Background(), app.Config, app.Logger, pipeline.Options{Root: app.Root})
	if err != nil {
		return err
	}
	for _, c := range res.Changes {
		app.Logger.Info("updated", zap.String("path", c.Path), zap.String("kind", string(c.Kind)))
	}
	return nil
}

type CheckCommand struct {
	Context  int `help:"Lines of context in diffs." default:"3"`
	MaxBytes int `help:"Skip diffs of files larger than this (0 = no limit)." default:"2000000"`
}

func (r *CheckCommand) Run(app *App) error {
	res, err := pipeline.Run(context.Background(), app.Config, app.Logger, pipeline.Options{Root: app.Root, DryRun: true})
	if err != nil {
		return err
	}
	if len(res.Changes) == 0 {
		return nil
	}

	opt := diff.Options{Context: r.Context, MaxBytes: r.MaxBytes}
	for _, c := range res.Changes {
		body, _ := diff.Unified("a/"+c.Path, "b/"+c.Path, before(c), after(c), opt)
		if _, err := fmt.Fprint(app.Out, body); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %d file(s)", ErrOutOfDate, len(res.Changes))
}

// before and after map absent sides to nil so the patch shows /dev/null.
func before(c tree.Change) []byte {
	if c.Kind == tree.ChangeCreate {
		return nil
	}
	return nonNil(c.Before)
}

func after(c tree.Change) []byte {
	if c.Kind == tree.ChangeRemove {
		return nil
	}
	return nonNil(c.After)
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

type PlanCommand struct{}

func (r *PlanCommand) Run(app *App) error {
	p, err := pipeline.Plan(tree.New(app.Root), app.Config)
	if err != nil {
		return err
	}
	return p.Write(app.Out)
}

type WatchCommand struct {
	Delay time.Duration `help:"Quiet period before a rebuild." default:"300ms"`
}

func (r *WatchCommand) Run(app *App) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rebuild := func(ctx context.Context) error {
		_, err := pipeline.Run(ctx, app.Config, app.Logger, pipeline.Options{Root: app.Root})
		return err
	}

	// * initial build
	if err := rebuild(ctx); err != nil {
		app.Logger.Error("initial build failed", zap.Error(err))
	}

	// * watch inputs
	exts := []string{app.Config.MacroExt, app.Config.Lua.Ext}
	w, err := watch.New(app.Root, watch.Folders(app.Config), exts, r.Delay, rebuild, app.Logger)
	if err != nil {
		return err
	}
	app.Logger.Info("watching for changes", zap.String("root", app.Root))
	return w.Run(ctx)
}
