// Package project maps tracked-file categories onto the project's on-disk
// layout. Classification and path resolution are pure functions over a
// Layout value so call sites never branch on directory structure.
package project

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jamesainslie/flowsync/pkg/flowsync/types"
)

// Well-known locations relative to the project root.
const (
	actionsDir    = "lib/custom_code/actions"
	widgetsDir    = "lib/custom_code/widgets"
	functionsFile = "lib/flow/custom_functions.dart"
	manifestFile  = "pubspec.yaml"
	customRoot    = "lib"

	indexFileName = "index.dart"

	stateDir     = ".flowsync"
	stateFile    = "file_state.json"
	baselineFile = "functions_baseline.dart"
)

// FunctionsKey is the fixed state-store key of the aggregate functions
// document.
const FunctionsKey = "custom_functions.dart"

// ErrNoIndex indicates a category that has no export index document.
var ErrNoIndex = errors.New("category has no index document")

// ErrOutsideProject indicates a path that does not belong to the project's
// tracked tree.
var ErrOutsideProject = errors.New("path outside tracked project tree")

// Layout resolves category-specific paths under one project root.
type Layout struct {
	root string
}

// NewLayout creates a Layout rooted at the given project directory.
func NewLayout(root string) Layout {
	return Layout{root: filepath.Clean(root)}
}

// Root returns the project root directory.
func (l Layout) Root() string {
	return l.root
}

// Classify determines the category and store key for a path. The path may
// be absolute or relative to the project root. Index documents classify as
// their category but with an empty key, signalling that they are engine
// artifacts rather than tracked files.
func (l Layout) Classify(path string) (types.Category, string, error) {
	rel, err := l.relative(path)
	if err != nil {
		return "", "", err
	}

	switch {
	case rel == manifestFile:
		return types.CategoryDependency, manifestFile, nil
	case rel == functionsFile:
		return types.CategoryFunction, FunctionsKey, nil
	case within(rel, actionsDir):
		return types.CategoryAction, l.indexAwareKey(rel), nil
	case within(rel, widgetsDir):
		return types.CategoryWidget, l.indexAwareKey(rel), nil
	case within(rel, customRoot):
		// Catch-all files are keyed by path relative to the custom-code
		// root so same-named files in different directories stay distinct.
		key, _ := filepath.Rel(customRoot, rel)
		return types.CategoryOther, filepath.ToSlash(key), nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrOutsideProject, path)
	}
}

// indexAwareKey returns the base file name, or empty for the category's
// own index document.
func (l Layout) indexAwareKey(rel string) string {
	base := filepath.Base(rel)
	if base == indexFileName {
		return ""
	}
	return base
}

// Path resolves a record key to its absolute on-disk location.
func (l Layout) Path(category types.Category, key string) string {
	switch category {
	case types.CategoryAction:
		return filepath.Join(l.root, actionsDir, key)
	case types.CategoryWidget:
		return filepath.Join(l.root, widgetsDir, key)
	case types.CategoryFunction:
		return filepath.Join(l.root, functionsFile)
	case types.CategoryDependency:
		return filepath.Join(l.root, manifestFile)
	default:
		return filepath.Join(l.root, customRoot, filepath.FromSlash(key))
	}
}

// IndexPath returns the absolute path of the category's export index
// document. Only actions and widgets carry one.
func (l Layout) IndexPath(category types.Category) (string, error) {
	switch category {
	case types.CategoryAction:
		return filepath.Join(l.root, actionsDir, indexFileName), nil
	case types.CategoryWidget:
		return filepath.Join(l.root, widgetsDir, indexFileName), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrNoIndex, category)
	}
}

// FunctionsPath returns the absolute path of the aggregate functions file.
func (l Layout) FunctionsPath() string {
	return filepath.Join(l.root, functionsFile)
}

// ManifestPath returns the absolute path of the dependency manifest.
func (l Layout) ManifestPath() string {
	return filepath.Join(l.root, manifestFile)
}

// StateDir returns the engine's state directory under the project root.
func (l Layout) StateDir() string {
	return filepath.Join(l.root, stateDir)
}

// StatePath returns the file-state snapshot location.
func (l Layout) StatePath() string {
	return filepath.Join(l.StateDir(), stateFile)
}

// BaselinePath returns the functions baseline snapshot location.
func (l Layout) BaselinePath() string {
	return filepath.Join(l.StateDir(), baselineFile)
}

// TrackedRoots returns the directories the bootstrap scan and the watcher
// cover, in a stable order.
func (l Layout) TrackedRoots() []string {
	return []string{
		filepath.Join(l.root, actionsDir),
		filepath.Join(l.root, widgetsDir),
		filepath.Dir(filepath.Join(l.root, functionsFile)),
	}
}

// relative normalizes a path to slash-separated form relative to the root.
func (l Layout) relative(path string) (string, error) {
	if !filepath.IsAbs(path) {
		return filepath.ToSlash(filepath.Clean(path)), nil
	}
	rel, err := filepath.Rel(l.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %s", ErrOutsideProject, path)
	}
	return filepath.ToSlash(rel), nil
}

// within reports whether rel sits under dir.
func within(rel, dir string) bool {
	return strings.HasPrefix(rel, dir+"/")
}
