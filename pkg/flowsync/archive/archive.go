// Package archive compresses a set of paths into a single byte blob for
// the sync payload. Directories are walked recursively; files are added
// individually. Entry names are project-root relative so the remote can
// place them without knowing the local filesystem.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Build compresses the given absolute paths into a zip blob. Entry names
// are made relative to root.
func Build(root string, paths []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			err = filepath.WalkDir(path, func(sub string, d fs.DirEntry, walkErr error) error {
				if walkErr != nil {
					return walkErr
				}
				if d.IsDir() {
					return nil
				}
				return addFile(zw, root, sub)
			})
			if err != nil {
				return nil, fmt.Errorf("archiving %s: %w", path, err)
			}
			continue
		}

		if err := addFile(zw, root, path); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	return buf.Bytes(), nil
}

// addFile writes one file into the archive under its root-relative name.
func addFile(zw *zip.Writer, root, path string) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	w, err := zw.Create(filepath.ToSlash(rel))
	if err != nil {
		return fmt.Errorf("creating archive entry %s: %w", rel, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("compressing %s: %w", rel, err)
	}
	return nil
}
