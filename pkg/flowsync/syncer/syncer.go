// Package syncer packages the local delta into a sync payload, sends it
// over the transport, and interprets the layered response. It never
// commits on its own: the caller inspects the decoded warnings and
// invokes Commit once it judges the round acceptable, so a failed round
// leaves the local snapshot untouched and a retry recomputes the same
// delta.
package syncer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/jamesainslie/flowsync/pkg/flowsync/api"
	"github.com/jamesainslie/flowsync/pkg/flowsync/archive"
	"github.com/jamesainslie/flowsync/pkg/flowsync/fndiff"
	"github.com/jamesainslie/flowsync/pkg/flowsync/logging"
	"github.com/jamesainslie/flowsync/pkg/flowsync/project"
	"github.com/jamesainslie/flowsync/pkg/flowsync/state"
	"github.com/jamesainslie/flowsync/pkg/flowsync/types"
)

// ErrUndecodableResponse indicates a response body that is not structured
// data in either the success or failure shape. The raw body is preserved
// in the wrapped error.
var ErrUndecodableResponse = errors.New("undecodable sync response")

// Packager builds, sends, and decodes sync rounds for one project.
type Packager struct {
	store     *state.Store
	layout    project.Layout
	transport api.Transport
	log       *logging.Logger
}

// New creates a Packager.
func New(store *state.Store, layout project.Layout, transport api.Transport) *Packager {
	return &Packager{
		store:     store,
		layout:    layout,
		transport: transport,
		log:       logging.Get("syncer"),
	}
}

// Payload is the assembled outbound delta before transport encoding.
type Payload struct {
	// ChangedPaths are the absolute locations of every record whose
	// current checksum differs from its committed baseline.
	ChangedPaths []string

	// ManifestText is the raw dependency manifest content.
	ManifestText string

	// FileMapJSON is the JSON-encoded state snapshot, dependency records
	// excluded.
	FileMapJSON string

	// FunctionDiffJSON is the JSON-encoded function diff.
	FunctionDiffJSON string

	// Diff is the structured function diff the JSON was rendered from.
	Diff fndiff.Result
}

// BuildPayload assembles the outbound delta from the current store state
// and the function diff between the committed baseline and the live
// aggregate document.
func (p *Packager) BuildPayload() (*Payload, error) {
	var changed []string
	for key, record := range p.store.Records(true) {
		if !record.Dirty() || record.Deleted {
			continue
		}
		changed = append(changed, p.layout.Path(record.Category, key))
	}

	manifest, err := os.ReadFile(p.layout.ManifestPath())
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading dependency manifest: %w", err)
	}

	fileMap, err := json.Marshal(p.store.Records(false))
	if err != nil {
		return nil, fmt.Errorf("encoding file map: %w", err)
	}

	diff, err := p.functionDiff()
	if err != nil {
		return nil, err
	}
	diffJSON, err := json.Marshal(diff)
	if err != nil {
		return nil, fmt.Errorf("encoding function diff: %w", err)
	}

	return &Payload{
		ChangedPaths:     changed,
		ManifestText:     string(manifest),
		FileMapJSON:      string(fileMap),
		FunctionDiffJSON: string(diffJSON),
		Diff:             diff,
	}, nil
}

// SendOptions identify one sync round. An empty RequestID gets a fresh
// UUID.
type SendOptions struct {
	ProjectID string
	Branch    string
	RequestID string
}

// Send archives the changed paths, assembles the sync request, and
// delegates transmission to the transport. No retry is attempted; retry
// policy belongs to the caller.
func (p *Packager) Send(ctx context.Context, payload *Payload, opts SendOptions) (*api.SyncResponse, error) {
	if opts.RequestID == "" {
		opts.RequestID = uuid.NewString()
	}

	blob, err := archive.Build(p.layout.Root(), payload.ChangedPaths)
	if err != nil {
		return nil, fmt.Errorf("archiving changed paths: %w", err)
	}
	p.log.Info("sending sync round",
		"request_id", opts.RequestID,
		"branch", opts.Branch,
		"changed", len(payload.ChangedPaths),
		"archive", humanize.IBytes(uint64(len(blob))))

	req := &api.SyncRequest{
		ProjectID:        opts.ProjectID,
		ArchiveB64:       base64.StdEncoding.EncodeToString(blob),
		RequestID:        opts.RequestID,
		BranchName:       opts.Branch,
		ManifestText:     payload.ManifestText,
		FileMapJSON:      payload.FileMapJSON,
		FunctionDiffJSON: payload.FunctionDiffJSON,
	}

	resp, err := p.transport.PushChanges(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sync call failed: %w", err)
	}
	return resp, nil
}

// envelope is the success-path response wrapper: its single payload field
// is itself an encoded warning document.
type envelope struct {
	Value string `json:"value"`
}

// DecodeResponse interprets the layered response contract. Non-success
// bodies are themselves the filename-to-warnings mapping; success bodies
// wrap an encoded copy of the same shape in an envelope. Both paths yield
// the same output so callers never branch on status.
func DecodeResponse(resp *api.SyncResponse) (types.WarningMap, error) {
	if !resp.Success() {
		var warnings types.WarningMap
		if err := json.Unmarshal(resp.Body, &warnings); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUndecodableResponse, string(resp.Body))
		}
		return warnings, nil
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUndecodableResponse, string(resp.Body))
	}

	var warnings types.WarningMap
	if err := json.Unmarshal([]byte(env.Value), &warnings); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUndecodableResponse, env.Value)
	}
	return warnings, nil
}

// Commit rebases the state store and advances the functions baseline to
// the live document. Invoked by the caller only after it accepted the
// remote result.
func (p *Packager) Commit() error {
	if err := p.store.Commit(); err != nil {
		return err
	}

	live, err := os.ReadFile(p.layout.FunctionsPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading live functions document: %w", err)
	}
	if err := os.WriteFile(p.layout.BaselinePath(), live, 0o644); err != nil {
		return fmt.Errorf("advancing functions baseline: %w", err)
	}
	return nil
}

// functionDiff diffs the committed baseline snapshot against the live
// aggregate document. Either side may be absent, parsing as empty.
func (p *Packager) functionDiff() (fndiff.Result, error) {
	baseline, err := readIfExists(p.layout.BaselinePath())
	if err != nil {
		return fndiff.Result{}, fmt.Errorf("reading functions baseline: %w", err)
	}
	current, err := readIfExists(p.layout.FunctionsPath())
	if err != nil {
		return fndiff.Result{}, fmt.Errorf("reading functions document: %w", err)
	}
	return fndiff.Diff(baseline, current), nil
}

func readIfExists(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}
