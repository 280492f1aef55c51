package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/TimurManjosov/flagstate/internal/assign"
	"github.com/TimurManjosov/flagstate/internal/snapshot"
)

// Client is an HTTP client for the flagstate API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is the decoded error body returned by the server.
type APIError struct {
	StatusCode int
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	Missing    []string `json:"missing,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("API error (status %d, %s): %s, missing: %v", e.StatusCode, e.Code, e.Message, e.Missing)
	}
	return fmt.Sprintf("API error (status %d, %s): %s", e.StatusCode, e.Code, e.Message)
}

// FeatureState is the server's answer to a state query.
type FeatureState struct {
	Feature string `json:"feature"`
	Active  bool   `json:"active"`
	Value   any    `json:"value,omitempty"`
}

// TxnOp is one operation in a transaction batch.
type TxnOp struct {
	Type     string   `json:"type"`
	Features []string `json:"features"`
	Value    any      `json:"value,omitempty"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(resp.Body)
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = string(data)
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func contextQuery(kind, id string) url.Values {
	q := url.Values{}
	q.Set("kind", kind)
	q.Set("id", id)
	return q
}

// State reads the effective state of a feature for a context. Scope
// dimensions, when given, are sent as scope.<dim> query params.
func (c *Client) State(ctx context.Context, feature, kind, id string, dims map[string]string) (*FeatureState, error) {
	q := contextQuery(kind, id)
	for dim, val := range dims {
		q.Set("scope."+dim, val)
	}

	var result FeatureState
	path := "/v1/features/" + url.PathEscape(feature) + "/state?" + q.Encode()
	if err := c.do(ctx, "GET", path, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ContextFeatures lists every feature with recorded state for a context.
func (c *Client) ContextFeatures(ctx context.Context, kind, id string) (map[string]any, error) {
	var result struct {
		Features map[string]any `json:"features"`
	}
	path := "/v1/contexts/" + url.PathEscape(kind) + "/" + url.PathEscape(id) + "/features"
	if err := c.do(ctx, "GET", path, nil, &result); err != nil {
		return nil, err
	}
	return result.Features, nil
}

// Rollout evaluates percentage inclusion for a context.
func (c *Client) Rollout(ctx context.Context, feature, kind, id string, percentage int, seed string) (bool, error) {
	body := map[string]any{"kind": kind, "id": id, "percentage": percentage}
	if seed != "" {
		body["seed"] = seed
	}
	var result struct {
		Included bool `json:"included"`
	}
	path := "/v1/features/" + url.PathEscape(feature) + "/rollout"
	if err := c.do(ctx, "POST", path, body, &result); err != nil {
		return false, err
	}
	return result.Included, nil
}

// Variant assigns a weighted variant for a context.
func (c *Client) Variant(ctx context.Context, feature, kind, id string, variants []assign.Variant, seed string) (string, error) {
	body := map[string]any{"kind": kind, "id": id, "variants": variants}
	if seed != "" {
		body["seed"] = seed
	}
	var result struct {
		Variant string `json:"variant"`
	}
	path := "/v1/features/" + url.PathEscape(feature) + "/variant"
	if err := c.do(ctx, "POST", path, body, &result); err != nil {
		return "", err
	}
	return result.Variant, nil
}

// Activate turns a feature on for a context. A non-nil value is stored as
// the feature's state; prerequisites gate the activation server-side.
func (c *Client) Activate(ctx context.Context, feature, kind, id string, value any, prerequisites []string) error {
	body := map[string]any{"kind": kind, "id": id}
	if value != nil {
		body["value"] = value
	}
	if len(prerequisites) > 0 {
		body["prerequisites"] = prerequisites
	}
	return c.do(ctx, "POST", "/v1/features/"+url.PathEscape(feature)+"/activate", body, nil)
}

// Deactivate turns a feature off for a context.
func (c *Client) Deactivate(ctx context.Context, feature, kind, id string) error {
	body := map[string]any{"kind": kind, "id": id}
	return c.do(ctx, "POST", "/v1/features/"+url.PathEscape(feature)+"/deactivate", body, nil)
}

// Forget removes a feature's recorded state for a context.
func (c *Client) Forget(ctx context.Context, feature, kind, id string) error {
	q := contextQuery(kind, id)
	return c.do(ctx, "DELETE", "/v1/features/"+url.PathEscape(feature)+"?"+q.Encode(), nil, nil)
}

// Transaction applies a batch of operations atomically.
func (c *Client) Transaction(ctx context.Context, kind, id string, ops []TxnOp) error {
	body := map[string]any{"kind": kind, "id": id, "operations": ops}
	return c.do(ctx, "POST", "/v1/transactions", body, nil)
}

// SnapshotCapture records the current state of a context.
func (c *Client) SnapshotCapture(ctx context.Context, kind, id, label string) (*snapshot.Snapshot, error) {
	body := map[string]any{"kind": kind, "id": id}
	if label != "" {
		body["label"] = label
	}
	var snap snapshot.Snapshot
	if err := c.do(ctx, "POST", "/v1/snapshots", body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SnapshotList returns a context's snapshots, newest first.
func (c *Client) SnapshotList(ctx context.Context, kind, id string) ([]snapshot.Snapshot, error) {
	var result struct {
		Snapshots []snapshot.Snapshot `json:"snapshots"`
	}
	q := contextQuery(kind, id)
	if err := c.do(ctx, "GET", "/v1/snapshots?"+q.Encode(), nil, &result); err != nil {
		return nil, err
	}
	return result.Snapshots, nil
}

// SnapshotRestore rewinds a context to a snapshot. A non-empty features
// list restores only those features.
func (c *Client) SnapshotRestore(ctx context.Context, snapID, kind, id string, features []string) error {
	body := map[string]any{"kind": kind, "id": id}
	if len(features) > 0 {
		body["features"] = features
	}
	return c.do(ctx, "POST", "/v1/snapshots/"+url.PathEscape(snapID)+"/restore", body, nil)
}

// SnapshotDelete discards a snapshot.
func (c *Client) SnapshotDelete(ctx context.Context, snapID string) error {
	return c.do(ctx, "DELETE", "/v1/snapshots/"+url.PathEscape(snapID), nil, nil)
}
