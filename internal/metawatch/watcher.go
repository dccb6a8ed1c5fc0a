// Package metawatch invalidates cached model metadata when model files change
// on disk.
package metawatch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/raido/internal/metacache"
)

// ModelExt is the extension of aircraft model files.
const ModelExt = ".acf"

const settleDelay = 200 * time.Millisecond

// Invalidator drops cached state for a key.
type Invalidator interface {
	Invalidate(key metacache.Key)
}

// EventCallback is called after a batch of keys has been invalidated.
type EventCallback func(path string)

// Watch watches roots recursively and invalidates the cache entry of every
// model file that is written, created, removed or renamed. Events are
// collected until the tree has been quiet for a short delay, so a file being
// rewritten is invalidated once after the writer finishes.
func Watch(ctx context.Context, roots []string, inv Invalidator, logger *slog.Logger, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, root := range roots {
		if err := addDirsRecursive(w, root); err != nil {
			return err
		}
		logger.Info("metawatch: started", slog.String("root", root))
	}

	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleFlush := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	flush := func() {
		for p := range pending {
			inv.Invalidate(metacache.KeyFor(p))
			logger.Debug("metawatch: invalidated", slog.String("path", p))
			if cb != nil {
				cb(p)
			}
		}
		clear(pending)
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("metawatch: stopped")
			return nil

		case <-settleCh:
			flush()

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("metawatch: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					continue
				}
			}

			if !IsModelFile(ev.Name) {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			pending[ev.Name] = struct{}{}
			scheduleFlush()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("metawatch: error", slog.String("error", watchErr.Error()))
		}
	}
}

// IsModelFile reports whether path names an aircraft model file.
func IsModelFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ModelExt)
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
