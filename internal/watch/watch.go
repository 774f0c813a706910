// Package watch re-triggers analysis when new trial results land in a
// local runs directory.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ResultsWatcher watches a runs directory tree and invokes a callback,
// debounced, whenever trial results change.
type ResultsWatcher struct {
	dir      string
	debounce time.Duration
	onChange func()
	logger   *slog.Logger
}

// New creates a watcher over dir. onChange fires at most once per quiet
// period of the given debounce duration.
func New(dir string, debounce time.Duration, onChange func(), logger *slog.Logger) *ResultsWatcher {
	return &ResultsWatcher{dir: dir, debounce: debounce, onChange: onChange, logger: logger}
}

// Watch blocks until ctx is cancelled, firing onChange after batches of
// result writes.
func (w *ResultsWatcher) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := w.addTree(watcher, w.dir); err != nil {
		return err
	}

	var timer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// New job/trial directories need watching as they appear;
			// downloads create whole subtrees after the watch started.
			if event.Has(fsnotify.Create) {
				if err := w.addTree(watcher, event.Name); err != nil {
					w.logger.Debug("could not watch new path", "path", event.Name, "error", err)
				}
			}

			if !relevant(event) {
				continue
			}
			w.logger.Debug("result change detected", "file", event.Name, "op", event.Op.String())

			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, w.onChange)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// relevant reports whether an event could change analysis input. Only
// result descriptors matter; agent/verifier log churn is noise.
func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return name == "result.json"
}

// addTree watches root and every directory below it. Non-directories are
// ignored; partially unreadable subtrees are watched as far as possible.
func (w *ResultsWatcher) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			w.logger.Debug("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
