// Package watch reruns the build whenever an input folder changes.
package watch

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"macro-builder/internal/config"
	"macro-builder/internal/sortutil"
)

// DefaultDelay is how long the tree has to stay quiet before a rebuild.
const DefaultDelay = 300 * time.Millisecond

// RebuildFunc runs one build.
type RebuildFunc func(ctx context.Context) error

// Watcher batches file system events from a set of folders and calls Rebuild
// once they settle. Rebuilds write only files whose content changes, so the
// events caused by a rebuild trigger at most one further, empty rebuild.
type Watcher struct {
	fs      *fsnotify.Watcher
	exts    []string
	delay   time.Duration
	rebuild RebuildFunc
	logger  *zap.Logger
}

// Folders returns the root-relative folders a build reads from.
func Folders(cfg *config.Config) []string {
	dirs := []string{cfg.Lua.Dir}
	dirs = append(dirs, cfg.Bundle.Folders...)
	for _, tg := range cfg.Webout.Targets {
		dirs = append(dirs, path.Dir(tg.Path))
		for _, f := range tg.Fragments {
			dirs = append(dirs, path.Dir(f))
		}
	}
	return sortutil.Dedup(dirs)
}

// New watches root/dir for every dir. Only files ending in one of exts are
// of interest.
func New(root string, dirs, exts []string, delay time.Duration, rebuild RebuildFunc, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create watcher: %w", err)
	}
	for _, d := range dirs {
		abs := filepath.Join(root, filepath.FromSlash(d))
		if err := fw.Add(abs); err != nil {
			_ = fw.Close()
			return nil, fmt.Errorf("unable to watch %s: %w", d, err)
		}
		logger.Debug("watching folder", zap.String("folder", d))
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Watcher{
		fs:      fw,
		exts:    exts,
		delay:   delay,
		rebuild: rebuild,
		logger:  logger,
	}, nil
}

// Run blocks until ctx is done. A failed rebuild is logged and watching
// continues.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.Relevant(ev) {
				continue
			}
			w.logger.Debug("change detected", zap.String("path", ev.Name), zap.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.delay)
			} else {
				timer.Reset(w.delay)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case <-fire:
			fire = nil
			if err := w.rebuild(ctx); err != nil {
				w.logger.Error("rebuild failed", zap.Error(err))
			}
		}
	}
}

// Relevant reports whether ev should schedule a rebuild. Chmod events and the
// temporary files of an atomic replace are ignored.
func (w *Watcher) Relevant(ev fsnotify.Event) bool {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".tmp-") {
		return false
	}
	for _, ext := range w.exts {
		if strings.HasSuffix(base, ext) {
			return true
		}
	}
	return false
}
