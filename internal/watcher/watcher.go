package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the documentation source tree and triggers rebuilds
type Watcher interface {
	// Start begins the watch loop and blocks until the context is done
	Start(ctx context.Context) error
}

// RebuildFunc runs one build cycle
type RebuildFunc func(ctx context.Context) error

// Config contains configuration for the watcher
type Config struct {
	// Debounce collapses event bursts (editor saves, git checkouts)
	// into a single rebuild. Defaults to 500ms.
	Debounce time.Duration
}

type watcherImpl struct {
	sourceDir string
	rebuild   RebuildFunc
	debounce  time.Duration
	logger    *slog.Logger
}

// NewWatcher creates a watcher over sourceDir that calls rebuild after
// changes settle
func NewWatcher(sourceDir string, rebuild RebuildFunc, config Config, logger *slog.Logger) Watcher {
	debounce := config.Debounce
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &watcherImpl{
		sourceDir: sourceDir,
		rebuild:   rebuild,
		debounce:  debounce,
		logger:    logger,
	}
}

// Start begins the watch loop
func (w *watcherImpl) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := w.addTree(fsw); err != nil {
		return err
	}

	w.logger.Info("watching for document changes",
		"source_dir", w.sourceDir,
		"debounce", w.debounce.String())

	// timer is armed on the first relevant event and reset on each
	// further one; rebuilds fire only once events settle
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("document watcher shutting down")
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("document change detected",
				"path", event.Name,
				"op", event.Op.String())

			// new directories must be watched too
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fsw.Add(event.Name)
					_ = w.addSubtree(fsw, event.Name)
				}
			}

			timer.Reset(w.debounce)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "error", err.Error())

		case <-timer.C:
			if err := w.rebuild(ctx); err != nil {
				w.logger.Error("rebuild failed", "error", err.Error())
			}
		}
	}
}

func (w *watcherImpl) relevant(event fsnotify.Event) bool {
	if event.Op.Has(fsnotify.Chmod) {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	return true
}

func (w *watcherImpl) addTree(fsw *fsnotify.Watcher) error {
	if err := fsw.Add(w.sourceDir); err != nil {
		return err
	}
	return w.addSubtree(fsw, w.sourceDir)
}

func (w *watcherImpl) addSubtree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == root {
			return err
		}
		if strings.HasPrefix(filepath.Base(path), ".") {
			return fs.SkipDir
		}
		return fsw.Add(path)
	})
}
