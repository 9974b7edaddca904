// Package upload talks to the external file-scanning service. The core's
// only real obligation here is the polling policy: status checks retry
// with exponential backoff, capped at a small fixed number of attempts,
// and fail fatally past the cap. If the request context ends, no further
// retries occur.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Upload statuses reported by the service.
const (
	StatusPending  = "pending"
	StatusScanning = "scanning"
	StatusReady    = "ready"
	StatusRejected = "rejected"
)

// ErrUploadTimeout is returned when the status poll exhausts its retry
// budget without the upload settling.
var ErrUploadTimeout = errors.New("upload: timed out waiting for upload to settle")

// ErrEmptyStatus is returned when the service answers with an empty
// status — an unexpected response that ends the request rather than being
// retried.
var ErrEmptyStatus = errors.New("upload: service returned an empty status")

// InitiateRequest asks the service to prepare an upload slot.
type InitiateRequest struct {
	FormSlug string `json:"formSlug"`
	PagePath string `json:"pagePath"`
	Filename string `json:"filename"`
}

// Initiated is the service's answer to an initiate call.
type Initiated struct {
	UploadID  string `json:"uploadId"`
	UploadURL string `json:"uploadUrl"`
}

// StatusResult is one status observation.
type StatusResult struct {
	UploadID string `json:"uploadId"`
	Status   string `json:"status"`
	Filename string `json:"filename,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// Settled reports whether the upload has reached a final state.
func (r StatusResult) Settled() bool {
	return r.Status == StatusReady || r.Status == StatusRejected
}

// Service is the upload collaborator interface.
type Service interface {
	Initiate(ctx context.Context, req InitiateRequest) (Initiated, error)
	Status(ctx context.Context, uploadID string) (StatusResult, error)
}

// HTTPService implements Service over the scanning service's JSON API.
type HTTPService struct {
	base   string
	client *http.Client
}

// NewHTTPService creates a client for the service at base. A nil client
// falls back to a default with a 10s timeout.
func NewHTTPService(base string, client *http.Client) *HTTPService {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPService{base: base, client: client}
}

func (s *HTTPService) Initiate(ctx context.Context, req InitiateRequest) (Initiated, error) {
	var out Initiated
	if err := s.postJSON(ctx, s.base+"/initiate", req, &out); err != nil {
		return Initiated{}, err
	}
	if out.UploadID == "" {
		return Initiated{}, fmt.Errorf("upload: initiate: %w", ErrEmptyStatus)
	}
	return out, nil
}

func (s *HTTPService) Status(ctx context.Context, uploadID string) (StatusResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.base+"/status/"+uploadID, nil)
	if err != nil {
		return StatusResult{}, fmt.Errorf("upload: status request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return StatusResult{}, fmt.Errorf("upload: status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return StatusResult{}, fmt.Errorf("upload: status: unexpected HTTP %d", resp.StatusCode)
	}
	var out StatusResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatusResult{}, fmt.Errorf("upload: status decode: %w", err)
	}
	return out, nil
}

func (s *HTTPService) postJSON(ctx context.Context, url string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("upload: encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("upload: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload: post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload: unexpected HTTP %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
