// Package scanner seeds the file state store from an existing project
// tree. The walk itself is parallel; detector calls happen afterwards,
// serially, to respect the engine's single-writer contract.
package scanner

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
	"github.com/gobwas/glob"

	"github.com/jamesainslie/flowsync/pkg/flowsync/detector"
	"github.com/jamesainslie/flowsync/pkg/flowsync/logging"
	"github.com/jamesainslie/flowsync/pkg/flowsync/project"
)

// Scanner walks the project's tracked roots and replays every file as an
// add event into the detector.
type Scanner struct {
	detector *detector.Detector
	layout   project.Layout
	excludes []glob.Glob
	log      *logging.Logger
}

// New creates a Scanner with the given exclude patterns (matched against
// project-root-relative paths).
func New(det *detector.Detector, layout project.Layout, excludePatterns []string) (*Scanner, error) {
	excludes := make([]glob.Glob, 0, len(excludePatterns))
	for _, pattern := range excludePatterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling exclude pattern %q: %w", pattern, err)
		}
		excludes = append(excludes, g)
	}

	return &Scanner{
		detector: det,
		layout:   layout,
		excludes: excludes,
		log:      logging.Get("scanner"),
	}, nil
}

// Bootstrap walks the tracked roots and hands every discovered file to
// the detector. Returns the number of files replayed.
func (s *Scanner) Bootstrap() (int, error) {
	paths, err := s.collect()
	if err != nil {
		return 0, err
	}

	// One dispatch per file: the add path already degrades to an update
	// for records the store knows.
	for _, path := range paths {
		if err := s.detector.HandleAdd(path); err != nil {
			return 0, fmt.Errorf("bootstrapping %s: %w", path, err)
		}
	}

	s.log.Info("bootstrap scan complete", "files", len(paths))
	return len(paths), nil
}

// collect gathers tracked file paths in parallel, sorted for
// deterministic replay order.
func (s *Scanner) collect() ([]string, error) {
	var (
		mu    sync.Mutex
		paths []string
	)

	conf := fastwalk.Config{Follow: false}
	for _, root := range s.layout.TrackedRoots() {
		err := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil //nolint:nilerr // Skip entries with errors
			}
			if d.IsDir() || !strings.HasSuffix(path, ".dart") {
				return nil
			}
			if s.excluded(path) {
				return nil
			}
			mu.Lock()
			paths = append(paths, path)
			mu.Unlock()
			return nil
		})
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}

	// The dependency manifest lives outside the tracked roots.
	if manifest := s.layout.ManifestPath(); exists(manifest) {
		paths = append(paths, manifest)
	}

	sort.Strings(paths)
	return paths, nil
}

// excluded reports whether a path matches any exclude pattern.
func (s *Scanner) excluded(path string) bool {
	rel, err := filepath.Rel(s.layout.Root(), path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, g := range s.excludes {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
