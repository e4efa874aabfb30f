// Package watcher bridges filesystem notifications into change detector
// events. Events are handled one at a time on the Run goroutine, which is
// what keeps the detector and state store within their single-writer
// contract.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/jamesainslie/flowsync/pkg/flowsync/detector"
	"github.com/jamesainslie/flowsync/pkg/flowsync/logging"
	"github.com/jamesainslie/flowsync/pkg/flowsync/project"
)

// Watcher watches the project's tracked roots and feeds the detector.
type Watcher struct {
	detector *detector.Detector
	layout   project.Layout
	watcher  *fsnotify.Watcher
	excludes []glob.Glob
	log      *logging.Logger
}

// New creates a Watcher. Exclude patterns are matched against paths
// relative to the project root.
func New(det *detector.Detector, layout project.Layout, excludePatterns []string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}

	excludes := make([]glob.Glob, 0, len(excludePatterns))
	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling exclude pattern %q: %w", pattern, err)
		}
		excludes = append(excludes, g)
	}

	return &Watcher{
		detector: det,
		layout:   layout,
		watcher:  fsw,
		excludes: excludes,
		log:      logging.Get("watcher"),
	}, nil
}

// Start adds watches on every tracked root that exists, plus the
// dependency manifest's directory.
func (w *Watcher) Start() error {
	roots := append(w.layout.TrackedRoots(), filepath.Dir(w.layout.ManifestPath()))
	watched := 0
	for _, root := range roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		if err := w.watcher.Add(root); err != nil {
			w.log.Warn("failed to add watch", "path", root, "error", err)
			continue
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("no tracked directories exist under %s", w.layout.Root())
	}
	w.log.Info("watching project", "root", w.layout.Root(), "dirs", watched)
	return nil
}

// Run processes events until the context is cancelled. Each event is
// fully handled before the next begins.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if err := w.handle(event); err != nil {
				w.log.Error("event handling failed", "path", event.Name, "op", event.Op.String(), "error", err)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher error", "error", err)
		}
	}
}

// handle dispatches one filesystem event to the detector. A rename shows
// up as fsnotify.Rename on the old name with a separate Create for the
// new one, so it maps onto a staged delete: recreating under the new name
// before commit is exactly the store's undelete path. Correlated renames
// (old and new path known together) arrive through the editor surface and
// call the detector directly.
func (w *Watcher) handle(event fsnotify.Event) error {
	if w.excluded(event.Name) {
		return nil
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		return w.detector.HandleAdd(event.Name)
	case event.Op&fsnotify.Write != 0:
		return w.detector.HandleUpdate(event.Name)
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		return w.detector.HandleDelete(event.Name)
	default:
		return nil
	}
}

// excluded reports whether a path matches any exclude pattern.
func (w *Watcher) excluded(path string) bool {
	rel, err := filepath.Rel(w.layout.Root(), path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, g := range w.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

// Close releases watcher resources.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
