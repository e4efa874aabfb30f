// Package api defines the remote sync transport: the outbound request
// shape, the raw response, and a default HTTP implementation. The engine
// depends only on the Transport interface so tests and alternative
// transports slot in without touching the packaging logic.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// SyncRequest is the outbound payload of one sync round. ArchiveB64 is the
// base64-encoded archive of every changed path; FileMapJSON and
// FunctionDiffJSON are JSON-encoded strings, layered as the remote expects.
type SyncRequest struct {
	ProjectID        string `json:"project_id"`
	ArchiveB64       string `json:"archive_b64"`
	RequestID        string `json:"request_id"`
	BranchName       string `json:"branch_name"`
	ManifestText     string `json:"manifest_text"`
	FileMapJSON      string `json:"file_map"`
	FunctionDiffJSON string `json:"function_diff"`
}

// SyncResponse is the raw remote reply: a status and an unparsed body.
// Interpretation of the body belongs to the sync packager.
type SyncResponse struct {
	StatusCode int
	Body       []byte
}

// Success reports whether the response carries a success status.
func (r *SyncResponse) Success() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Transport sends a sync request and returns the raw response. A non-nil
// error means the call itself failed; remote-side rejection arrives as a
// non-success SyncResponse instead.
type Transport interface {
	PushChanges(ctx context.Context, req *SyncRequest) (*SyncResponse, error)
}

// HTTPTransport posts sync requests as JSON to a fixed endpoint.
type HTTPTransport struct {
	client   *http.Client
	endpoint string
	token    string
}

// NewHTTPTransport creates a transport for the given endpoint URL and
// bearer token. A nil client uses http.DefaultClient; timeout and retry
// policy belong to the caller-supplied client.
func NewHTTPTransport(client *http.Client, endpoint, token string) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{client: client, endpoint: endpoint, token: token}
}

// PushChanges implements Transport.
func (t *HTTPTransport) PushChanges(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding sync request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building sync request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if t.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending sync request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading sync response: %w", err)
	}

	return &SyncResponse{StatusCode: resp.StatusCode, Body: raw}, nil
}
