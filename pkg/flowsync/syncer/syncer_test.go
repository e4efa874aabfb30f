package syncer

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jamesainslie/flowsync/pkg/flowsync/api"
	"github.com/jamesainslie/flowsync/pkg/flowsync/checksum"
	"github.com/jamesainslie/flowsync/pkg/flowsync/project"
	"github.com/jamesainslie/flowsync/pkg/flowsync/state"
	"github.com/jamesainslie/flowsync/pkg/flowsync/types"
)

// fakeTransport records the last request and replies with a canned response.
type fakeTransport struct {
	req  *api.SyncRequest
	resp *api.SyncResponse
	err  error
}

func (f *fakeTransport) PushChanges(_ context.Context, req *api.SyncRequest) (*api.SyncResponse, error) {
	f.req = req
	return f.resp, f.err
}

func newTestPackager(t *testing.T) (*Packager, *state.Store, project.Layout, *fakeTransport) {
	t.Helper()
	root := t.TempDir()
	layout := project.NewLayout(root)

	for _, dir := range []string{
		filepath.Join(root, "lib", "custom_code", "actions"),
		filepath.Join(root, "lib", "flow"),
		layout.StateDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("creating %s: %v", dir, err)
		}
	}

	store := state.New(layout.StatePath(), nil)
	transport := &fakeTransport{resp: &api.SyncResponse{StatusCode: 200, Body: []byte(`{"value": "{}"}`)}}
	return New(store, layout, transport), store, layout, transport
}

func trackAction(t *testing.T, store *state.Store, layout project.Layout, key, content string, dirty bool) {
	t.Helper()
	path := layout.Path(types.CategoryAction, key)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", key, err)
	}
	sum := checksum.SumBytes([]byte(content))
	record := &types.FileRecord{
		OldName:          "x",
		NewName:          "x",
		Category:         types.CategoryAction,
		OriginalChecksum: sum,
		CurrentChecksum:  sum,
	}
	if dirty {
		record.OriginalChecksum = "stale"
	}
	store.Add(key, record)
}

func TestPackager_BuildPayload(t *testing.T) {
	t.Parallel()

	t.Run("selects dirty undeleted records", func(t *testing.T) {
		t.Parallel()
		p, store, layout, _ := newTestPackager(t)
		trackAction(t, store, layout, "clean.dart", "void clean() {}\n", false)
		trackAction(t, store, layout, "dirty.dart", "void dirty() {}\n", true)
		trackAction(t, store, layout, "gone.dart", "void gone() {}\n", true)
		if err := store.SoftDelete("gone.dart"); err != nil {
			t.Fatalf("SoftDelete() error = %v", err)
		}

		payload, err := p.BuildPayload()
		if err != nil {
			t.Fatalf("BuildPayload() error = %v", err)
		}
		if len(payload.ChangedPaths) != 1 {
			t.Fatalf("ChangedPaths = %v, want only the dirty live record", payload.ChangedPaths)
		}
		if payload.ChangedPaths[0] != layout.Path(types.CategoryAction, "dirty.dart") {
			t.Errorf("ChangedPaths[0] = %q", payload.ChangedPaths[0])
		}
	})

	t.Run("file map excludes dependency records", func(t *testing.T) {
		t.Parallel()
		p, store, layout, _ := newTestPackager(t)
		trackAction(t, store, layout, "dirty.dart", "void dirty() {}\n", true)
		store.Add("pubspec.yaml", &types.FileRecord{Category: types.CategoryDependency})

		payload, err := p.BuildPayload()
		if err != nil {
			t.Fatalf("BuildPayload() error = %v", err)
		}

		var fileMap map[string]*types.FileRecord
		if err := json.Unmarshal([]byte(payload.FileMapJSON), &fileMap); err != nil {
			t.Fatalf("file map not valid JSON: %v", err)
		}
		if _, ok := fileMap["pubspec.yaml"]; ok {
			t.Error("dependency record leaked into the file map")
		}
		if _, ok := fileMap["dirty.dart"]; !ok {
			t.Error("tracked record missing from the file map")
		}
	})

	t.Run("manifest text is included when present", func(t *testing.T) {
		t.Parallel()
		p, _, layout, _ := newTestPackager(t)
		if err := os.WriteFile(layout.ManifestPath(), []byte("name: app\n"), 0o644); err != nil {
			t.Fatalf("writing manifest: %v", err)
		}

		payload, err := p.BuildPayload()
		if err != nil {
			t.Fatalf("BuildPayload() error = %v", err)
		}
		if payload.ManifestText != "name: app\n" {
			t.Errorf("ManifestText = %q", payload.ManifestText)
		}
	})

	t.Run("function diff spans baseline and live document", func(t *testing.T) {
		t.Parallel()
		p, _, layout, _ := newTestPackager(t)
		baseline := "int counter() {\n  return 40 + 1;\n}\n"
		live := "int counterValue() {\n  return 40 + 1;\n}\n"
		if err := os.WriteFile(layout.BaselinePath(), []byte(baseline), 0o644); err != nil {
			t.Fatalf("writing baseline: %v", err)
		}
		if err := os.WriteFile(layout.FunctionsPath(), []byte(live), 0o644); err != nil {
			t.Fatalf("writing functions document: %v", err)
		}

		payload, err := p.BuildPayload()
		if err != nil {
			t.Fatalf("BuildPayload() error = %v", err)
		}
		if len(payload.Diff.Renamed) != 1 {
			t.Fatalf("Diff = %+v, want one rename", payload.Diff)
		}
		if r := payload.Diff.Renamed[0]; r.OldName != "counter" || r.NewName != "counterValue" {
			t.Errorf("rename = %s -> %s", r.OldName, r.NewName)
		}
		if payload.FunctionDiffJSON == "" {
			t.Error("FunctionDiffJSON empty")
		}
	})

	t.Run("absent documents diff as empty", func(t *testing.T) {
		t.Parallel()
		p, _, _, _ := newTestPackager(t)
		payload, err := p.BuildPayload()
		if err != nil {
			t.Fatalf("BuildPayload() error = %v", err)
		}
		if !payload.Diff.Empty() {
			t.Errorf("Diff = %+v, want empty", payload.Diff)
		}
	})
}

func TestPackager_Send(t *testing.T) {
	t.Parallel()

	p, store, layout, transport := newTestPackager(t)
	trackAction(t, store, layout, "dirty.dart", "void dirty() {}\n", true)

	payload, err := p.BuildPayload()
	if err != nil {
		t.Fatalf("BuildPayload() error = %v", err)
	}

	resp, err := p.Send(context.Background(), payload, SendOptions{
		ProjectID: "proj-1",
		Branch:    "main",
	})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !resp.Success() {
		t.Errorf("StatusCode = %d", resp.StatusCode)
	}

	req := transport.req
	if req == nil {
		t.Fatal("transport never invoked")
	}
	if req.ProjectID != "proj-1" || req.BranchName != "main" {
		t.Errorf("request identity = %+v", req)
	}
	if req.RequestID == "" {
		t.Error("RequestID not generated")
	}

	blob, err := base64.StdEncoding.DecodeString(req.ArchiveB64)
	if err != nil {
		t.Fatalf("archive not valid base64: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(blob), int64(len(blob)))
	if err != nil {
		t.Fatalf("archive not a valid zip: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "lib/custom_code/actions/dirty.dart" {
		t.Errorf("archive entries = %v", zr.File)
	}
}

func TestPackager_Send_KeepsExplicitRequestID(t *testing.T) {
	t.Parallel()

	p, _, _, transport := newTestPackager(t)
	payload, err := p.BuildPayload()
	if err != nil {
		t.Fatalf("BuildPayload() error = %v", err)
	}

	if _, err := p.Send(context.Background(), payload, SendOptions{RequestID: "req-42"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if transport.req.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", transport.req.RequestID)
	}
}

func TestDecodeResponse(t *testing.T) {
	t.Parallel()

	t.Run("failure body is the warning map itself", func(t *testing.T) {
		t.Parallel()
		resp := &api.SyncResponse{
			StatusCode: 422,
			Body:       []byte(`{"foo.dart": [{"message": "bad"}]}`),
		}
		warnings, err := DecodeResponse(resp)
		if err != nil {
			t.Fatalf("DecodeResponse() error = %v", err)
		}
		if len(warnings) != 1 || len(warnings["foo.dart"]) != 1 {
			t.Fatalf("warnings = %v", warnings)
		}

		var fields map[string]string
		if err := json.Unmarshal(warnings["foo.dart"][0], &fields); err != nil {
			t.Fatalf("warning not preserved verbatim: %v", err)
		}
		if fields["message"] != "bad" {
			t.Errorf("message = %q", fields["message"])
		}
	})

	t.Run("success body wraps an encoded warning map", func(t *testing.T) {
		t.Parallel()
		resp := &api.SyncResponse{
			StatusCode: 200,
			Body:       []byte(`{"value": "{\"foo.dart\": []}"}`),
		}
		warnings, err := DecodeResponse(resp)
		if err != nil {
			t.Fatalf("DecodeResponse() error = %v", err)
		}
		if len(warnings) != 1 {
			t.Fatalf("warnings = %v, want one key", warnings)
		}
		if got, ok := warnings["foo.dart"]; !ok || len(got) != 0 {
			t.Errorf("foo.dart warnings = %v, want present and empty", got)
		}
	})

	t.Run("undecodable failure body", func(t *testing.T) {
		t.Parallel()
		resp := &api.SyncResponse{StatusCode: 500, Body: []byte("Internal Server Error")}
		_, err := DecodeResponse(resp)
		if !errors.Is(err, ErrUndecodableResponse) {
			t.Fatalf("DecodeResponse() error = %v, want ErrUndecodableResponse", err)
		}
	})

	t.Run("undecodable success envelope", func(t *testing.T) {
		t.Parallel()
		resp := &api.SyncResponse{StatusCode: 200, Body: []byte("OK")}
		_, err := DecodeResponse(resp)
		if !errors.Is(err, ErrUndecodableResponse) {
			t.Fatalf("DecodeResponse() error = %v, want ErrUndecodableResponse", err)
		}
	})

	t.Run("undecodable inner value", func(t *testing.T) {
		t.Parallel()
		resp := &api.SyncResponse{StatusCode: 200, Body: []byte(`{"value": "not json"}`)}
		_, err := DecodeResponse(resp)
		if !errors.Is(err, ErrUndecodableResponse) {
			t.Fatalf("DecodeResponse() error = %v, want ErrUndecodableResponse", err)
		}
	})
}

func TestPackager_Commit(t *testing.T) {
	t.Parallel()

	t.Run("rebases store and advances baseline", func(t *testing.T) {
		t.Parallel()
		p, store, layout, _ := newTestPackager(t)
		trackAction(t, store, layout, "dirty.dart", "void dirty() {}\n", true)

		live := "int one() => 1;\n"
		if err := os.WriteFile(layout.FunctionsPath(), []byte(live), 0o644); err != nil {
			t.Fatalf("writing functions document: %v", err)
		}

		if err := p.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}

		if r, _ := store.Get("dirty.dart"); r.Dirty() {
			t.Error("record still dirty after commit")
		}
		baseline, err := os.ReadFile(layout.BaselinePath())
		if err != nil {
			t.Fatalf("reading baseline: %v", err)
		}
		if string(baseline) != live {
			t.Errorf("baseline = %q, want live document", baseline)
		}
	})

	t.Run("missing functions document leaves baseline alone", func(t *testing.T) {
		t.Parallel()
		p, _, layout, _ := newTestPackager(t)
		if err := p.Commit(); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
		if _, err := os.Stat(layout.BaselinePath()); !os.IsNotExist(err) {
			t.Error("baseline created without a live document")
		}
	})
}
