// Package client is a Go SDK for the rename2pc HTTP control API
// (../api): one method per route, hiding the HTTP request/response
// plumbing behind a clean, typed call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"rename2pc/internal/rename2pc"
	"rename2pc/internal/snapshot"
)

// Client talks to one rename2pc control server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Client with the given timeout, defaulting to 10s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{baseURL: baseURL, httpClient: &http.Client{Timeout: timeout}}
}

// SendLockReq calls POST /txn/lock/:store.
func (c *Client) SendLockReq(ctx context.Context, store rename2pc.StoreId) error {
	return c.postEmpty(ctx, fmt.Sprintf("/txn/lock/%d", store))
}

// StoreHandleLockReq calls POST /txn/lock/:store/resp.
func (c *Client) StoreHandleLockReq(ctx context.Context, store rename2pc.StoreId) error {
	return c.postEmpty(ctx, fmt.Sprintf("/txn/lock/%d/resp", store))
}

// RecvLockResp calls POST /txn/lock/:store/ack with the given outcome.
func (c *Client) RecvLockResp(ctx context.Context, store rename2pc.StoreId, success bool) error {
	return c.postJSON(ctx, fmt.Sprintf("/txn/lock/%d/ack", store), map[string]bool{"success": success})
}

// DecideCommit calls POST /txn/commit.
func (c *Client) DecideCommit(ctx context.Context) error {
	return c.postEmpty(ctx, "/txn/commit")
}

// SendRenameReq calls POST /txn/rename/:store.
func (c *Client) SendRenameReq(ctx context.Context, store rename2pc.StoreId) error {
	return c.postEmpty(ctx, fmt.Sprintf("/txn/rename/%d", store))
}

// StoreHandleRenameReq calls POST /txn/rename/:store/resp.
func (c *Client) StoreHandleRenameReq(ctx context.Context, store rename2pc.StoreId) error {
	return c.postEmpty(ctx, fmt.Sprintf("/txn/rename/%d/resp", store))
}

// RecvRenameResp calls POST /txn/rename/:store/ack.
func (c *Client) RecvRenameResp(ctx context.Context, store rename2pc.StoreId) error {
	return c.postEmpty(ctx, fmt.Sprintf("/txn/rename/%d/ack", store))
}

// SendUnlockReq calls POST /txn/unlock/:store.
func (c *Client) SendUnlockReq(ctx context.Context, store rename2pc.StoreId) error {
	return c.postEmpty(ctx, fmt.Sprintf("/txn/unlock/%d", store))
}

// StoreHandleUnlockReq calls POST /txn/unlock/:store/resp.
func (c *Client) StoreHandleUnlockReq(ctx context.Context, store rename2pc.StoreId) error {
	return c.postEmpty(ctx, fmt.Sprintf("/txn/unlock/%d/resp", store))
}

// RecvUnlockResp calls POST /txn/unlock/:store/ack.
func (c *Client) RecvUnlockResp(ctx context.Context, store rename2pc.StoreId) error {
	return c.postEmpty(ctx, fmt.Sprintf("/txn/unlock/%d/ack", store))
}

// Crash calls POST /txn/crash.
func (c *Client) Crash(ctx context.Context) error {
	return c.postEmpty(ctx, "/txn/crash")
}

// Recover calls POST /txn/recover.
func (c *Client) Recover(ctx context.Context) error {
	return c.postEmpty(ctx, "/txn/recover")
}

// NetLose calls POST /net/lose.
func (c *Client) NetLose(ctx context.Context, m rename2pc.Message) error {
	return c.postJSON(ctx, "/net/lose", m)
}

// NetDuplicate calls POST /net/duplicate.
func (c *Client) NetDuplicate(ctx context.Context, m rename2pc.Message) error {
	return c.postJSON(ctx, "/net/duplicate", m)
}

// State calls GET /state.
func (c *Client) State(ctx context.Context) (snapshot.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/state", nil)
	if err != nil {
		return snapshot.Snapshot{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("GET /state: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return snapshot.Snapshot{}, err
	}
	var snap snapshot.Snapshot
	return snap, json.NewDecoder(resp.Body).Decode(&snap)
}

func (c *Client) postEmpty(ctx context.Context, path string) error {
	return c.postJSON(ctx, path, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// APIError carries the HTTP status and message from a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// ErrStepInapplicable is returned when the server reports 409: the
// requested step was inapplicable in the system's current phase.
var ErrStepInapplicable = errors.New("rename2pc: step inapplicable in current state")

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	var apiErr struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &apiErr)
	msg := apiErr.Error
	if msg == "" {
		msg = string(body)
	}
	if resp.StatusCode == http.StatusConflict {
		return ErrStepInapplicable
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}
