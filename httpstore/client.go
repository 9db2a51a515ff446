// Package httpstore implements remote.BlobStore against a chunkd
// server, making the chunk hooks usable across process boundaries.
package httpstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tidemark/tidemark/pkg/jsonx"
	"github.com/tidemark/tidemark/remote"
	"github.com/tidemark/tidemark/series"
	"go.uber.org/zap"
)

// Client talks to a chunkd server. Safe for concurrent use.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

// Options configures the client.
type Options struct {
	// BaseURL points at the chunkd server, e.g. http://127.0.0.1:8080.
	BaseURL string
	// Timeout bounds every request. Zero means 10s.
	Timeout time.Duration
}

// NewClient constructs a chunk store client.
func NewClient(log *zap.Logger, opts Options) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		base: opts.BaseURL,
		http: &http.Client{Timeout: timeout},
		log:  log.Named("httpstore"),
	}
}

func (c *Client) chunkURL(id remote.MapID, chunkKey int64) string {
	return fmt.Sprintf("%s/api/maps/%s/chunks/%d", c.base, id, chunkKey)
}

type apiError struct {
	Message string `json:"message"`
}

// send runs the request and returns the response body on the expected
// status. Other statuses map through onStatus or carry the server's
// message.
func (c *Client) send(req *http.Request, okStatus int, onStatus map[int]error) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != okStatus {
		if mapped, ok := onStatus[resp.StatusCode]; ok {
			return nil, mapped
		}
		var apiErr apiError
		if err := jsonx.ParseJSONObject(resp.Body, &apiErr); err == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// sendJSON is send plus strict decoding of the response body.
func sendJSON[T any](c *Client, req *http.Request, out *T, okStatus int, onStatus map[int]error) error {
	body, err := c.send(req, okStatus, onStatus)
	if err != nil {
		return err
	}
	if err := jsonx.ParseJSONObject(bytes.NewReader(body), out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type keysResponse struct {
	Version uint64            `json:"version"`
	Chunks  map[string]uint64 `json:"chunks"`
}

type versionResponse struct {
	Version uint64 `json:"version"`
}

type lockResponse struct {
	Token string `json:"token"`
}

// Keys implements remote.BlobStore.
func (c *Client) Keys(ctx context.Context, id remote.MapID, sinceVersion uint64) (uint64, map[int64]uint64, error) {
	u := fmt.Sprintf("%s/api/maps/%s/keys?since=%d", c.base, id, sinceVersion)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, err
	}

	var resp keysResponse
	if err := sendJSON(c, req, &resp, http.StatusOK, nil); err != nil {
		return 0, nil, err
	}
	if resp.Chunks == nil {
		return resp.Version, nil, nil
	}
	chunks := make(map[int64]uint64, len(resp.Chunks))
	for field, cv := range resp.Chunks {
		ck, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return 0, nil, fmt.Errorf("malformed chunk key %q", field)
		}
		chunks[ck] = cv
	}
	return resp.Version, chunks, nil
}

// Get implements remote.BlobStore.
func (c *Client) Get(ctx context.Context, id remote.MapID, chunkKey int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.chunkURL(id, chunkKey), nil)
	if err != nil {
		return nil, err
	}
	return c.send(req, http.StatusOK, map[int]error{
		http.StatusNotFound: remote.ErrChunkNotFound,
	})
}

// Put implements remote.BlobStore.
func (c *Client) Put(ctx context.Context, id remote.MapID, chunkKey int64, payload []byte) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.chunkURL(id, chunkKey), bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	var resp versionResponse
	if err := sendJSON(c, req, &resp, http.StatusOK, nil); err != nil {
		return 0, err
	}
	return resp.Version, nil
}

// Del implements remote.BlobStore.
func (c *Client) Del(ctx context.Context, id remote.MapID, chunkKey int64, dir series.Lookup) (uint64, error) {
	u := c.chunkURL(id, chunkKey) + "?dir=" + url.QueryEscape(dir.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return 0, err
	}

	var resp versionResponse
	if err := sendJSON(c, req, &resp, http.StatusOK, nil); err != nil {
		return 0, err
	}
	return resp.Version, nil
}

// Lock implements remote.BlobStore.
func (c *Client) Lock(ctx context.Context, id remote.MapID, chunkKey int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chunkURL(id, chunkKey)+"/lock", nil)
	if err != nil {
		return "", err
	}

	var resp lockResponse
	err = sendJSON(c, req, &resp, http.StatusOK, map[int]error{
		http.StatusConflict: remote.ErrLockHeld,
	})
	if err != nil {
		return "", err
	}
	return resp.Token, nil
}

// Unlock implements remote.BlobStore.
func (c *Client) Unlock(ctx context.Context, id remote.MapID, chunkKey int64, token string) error {
	u := c.chunkURL(id, chunkKey) + "/lock?token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	_, err = c.send(req, http.StatusOK, map[int]error{
		http.StatusConflict: remote.ErrLockLost,
	})
	return err
}

var _ remote.BlobStore = (*Client)(nil)
