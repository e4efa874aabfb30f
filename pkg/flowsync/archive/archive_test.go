package archive

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("entries are root-relative", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		dir := filepath.Join(root, "lib", "custom_code", "actions")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("creating tree: %v", err)
		}
		path := filepath.Join(dir, "do_thing.dart")
		if err := os.WriteFile(path, []byte("void doThing() {}\n"), 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}

		blob, err := Build(root, []string{path})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}

		entries := readArchive(t, blob)
		content, ok := entries["lib/custom_code/actions/do_thing.dart"]
		if !ok {
			t.Fatalf("entries = %v, want root-relative name", keys(entries))
		}
		if content != "void doThing() {}\n" {
			t.Errorf("entry content = %q", content)
		}
	})

	t.Run("directories are walked recursively", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		dir := filepath.Join(root, "lib", "flow")
		if err := os.MkdirAll(filepath.Join(dir, "nested"), 0o755); err != nil {
			t.Fatalf("creating tree: %v", err)
		}
		files := map[string]string{
			filepath.Join(dir, "a.dart"):           "a",
			filepath.Join(dir, "nested", "b.dart"): "b",
		}
		for p, c := range files {
			if err := os.WriteFile(p, []byte(c), 0o644); err != nil {
				t.Fatalf("writing %s: %v", p, err)
			}
		}

		blob, err := Build(root, []string{dir})
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}

		entries := readArchive(t, blob)
		if len(entries) != 2 {
			t.Fatalf("entries = %v, want 2", keys(entries))
		}
		if entries["lib/flow/nested/b.dart"] != "b" {
			t.Errorf("nested entry missing: %v", keys(entries))
		}
	})

	t.Run("empty path set yields a valid empty archive", func(t *testing.T) {
		t.Parallel()
		blob, err := Build(t.TempDir(), nil)
		if err != nil {
			t.Fatalf("Build() error = %v", err)
		}
		if entries := readArchive(t, blob); len(entries) != 0 {
			t.Errorf("entries = %v, want none", keys(entries))
		}
	})

	t.Run("missing path fails", func(t *testing.T) {
		t.Parallel()
		root := t.TempDir()
		if _, err := Build(root, []string{filepath.Join(root, "ghost.dart")}); err == nil {
			t.Fatal("Build() error = nil, want stat failure")
		}
	})
}

func readArchive(t *testing.T, blob []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening entry %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading entry %s: %v", f.Name, err)
		}
		out[f.Name] = string(data)
	}
	return out
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
