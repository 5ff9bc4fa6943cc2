package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// API is the session backend contract the engine depends on. The HTTP
// implementation below talks to the view endpoints; tests substitute a
// fake.
type API interface {
	CheckView(ctx context.Context, videoID string) (CheckResult, error)
	StartView(ctx context.Context, videoID string, forceNew bool) (StartResult, error)
	ResumeView(ctx context.Context, videoID, viewID string) (ResumeResult, error)
	UpdateView(ctx context.Context, videoID string, upd ProgressUpdate) (UpdateResult, error)
}

// CheckResult reports whether a recent session exists worth resuming.
type CheckResult struct {
	HasResumableSession bool      `json:"hasResumableSession"`
	ViewID              string    `json:"viewId,omitempty"`
	PlayheadPosition    float64   `json:"playheadPosition,omitempty"`
	WatchTimeSeconds    float64   `json:"watchTimeSeconds,omitempty"`
	UpdatedAt           time.Time `json:"updatedAt,omitempty"`
}

// StartResult identifies the session the backend opened or reused.
// Resuming reports whether an existing session's counters carried over.
type StartResult struct {
	ViewID           string  `json:"viewId"`
	PlayheadPosition float64 `json:"playheadPosition"`
	WatchTimeSeconds float64 `json:"watchTimeSeconds"`
	Resuming         bool    `json:"resuming"`
}

type ResumeResult struct {
	ViewID           string  `json:"viewId"`
	PlayheadPosition float64 `json:"playheadPosition"`
	WatchTimeSeconds float64 `json:"watchTimeSeconds"`
}

// ProgressUpdate is one progress snapshot push. UpdateVersion increases
// monotonically per session so the backend can reject pushes that
// arrive out of order.
type ProgressUpdate struct {
	ViewID           string  `json:"viewId"`
	WatchTimeSeconds float64 `json:"watchTimeSeconds"`
	PlayheadPosition float64 `json:"playheadPosition"`
	IsComplete       bool    `json:"isComplete"`
	UpdateVersion    int64   `json:"updateVersion"`
}

// UpdateResult reflects the stored state after an update, including
// completion the backend computed on its own.
type UpdateResult struct {
	WatchTimeSeconds float64 `json:"watchTimeSeconds"`
	PlayheadPosition float64 `json:"playheadPosition"`
	IsComplete       bool    `json:"isComplete"`
	Stale            bool    `json:"stale,omitempty"`
}

// Client is the HTTP implementation of API against the view endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) CheckView(ctx context.Context, videoID string) (CheckResult, error) {
	var out CheckResult
	err := c.post(ctx, fmt.Sprintf("/api/videos/%s/view/check", videoID), nil, &out)
	return out, err
}

func (c *Client) StartView(ctx context.Context, videoID string, forceNew bool) (StartResult, error) {
	var out StartResult
	in := struct {
		ForceNew bool `json:"forceNew"`
	}{ForceNew: forceNew}
	err := c.post(ctx, fmt.Sprintf("/api/videos/%s/view/start", videoID), in, &out)
	return out, err
}

func (c *Client) ResumeView(ctx context.Context, videoID, viewID string) (ResumeResult, error) {
	var out ResumeResult
	in := struct {
		ViewID string `json:"viewId"`
	}{ViewID: viewID}
	err := c.post(ctx, fmt.Sprintf("/api/videos/%s/view/resume", videoID), in, &out)
	return out, err
}

func (c *Client) UpdateView(ctx context.Context, videoID string, upd ProgressUpdate) (UpdateResult, error) {
	var out UpdateResult
	err := c.post(ctx, fmt.Sprintf("/api/videos/%s/view/update", videoID), upd, &out)
	return out, err
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("session: %s returned %d: %s", path, resp.StatusCode, snippet)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
