// File: internal/scripts/remote.go
package scripts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/scriptfill/api/schemas"
	"github.com/xkilldash9x/scriptfill/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxErrorBody bounds how much of an error response is kept for the message.
const maxErrorBody = 512

// RemoteStore syncs scripts with a hosted backend over HTTP. The backend
// exposes GET/PUT/DELETE on {base}/scripts/{id} and GET on {base}/scripts.
type RemoteStore struct {
	base    *url.URL
	token   string
	client  *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
	now     func() time.Time
}

var _ Repository = (*RemoteStore)(nil)

// NewRemoteStore returns a store for cfg. A nil client gets one with
// cfg.Timeout.
func NewRemoteStore(cfg config.RemoteConfig, client *http.Client, logger *zap.Logger) (*RemoteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid remote store base URL %q", cfg.BaseURL)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &RemoteStore{
		base:    base,
		token:   cfg.Token,
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		log:     logger.Named("remote_store"),
		now:     time.Now,
	}, nil
}

func (r *RemoteStore) endpoint(id string, query url.Values) string {
	u := r.base.JoinPath("scripts")
	if id != "" {
		u = u.JoinPath(id)
	}
	u.RawQuery = query.Encode()
	return u.String()
}

// do sends one request and decodes a JSON response into out. 404 maps to
// ErrNotFound.
func (r *RemoteStore) do(ctx context.Context, method, target string, in, out interface{}) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("remote store rate limit: %w", err)
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", acceptEncoding)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote store request failed: %w", err)
	}
	if err := decompress(resp); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("failed to decode response: %w", err)
	}
	defer resp.Body.Close()

	r.log.Debug("Remote store response.",
		zap.String("method", method), zap.String("url", target), zap.Int("status", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("remote store returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse remote store response: %w", err)
	}
	return nil
}

func (r *RemoteStore) List(ctx context.Context) ([]schemas.Script, error) {
	var list []schemas.Script
	if err := r.do(ctx, http.MethodGet, r.endpoint("", nil), nil, &list); err != nil {
		return nil, err
	}
	Sort(list)
	return list, nil
}

func (r *RemoteStore) Get(ctx context.Context, id string) (schemas.Script, error) {
	var s schemas.Script
	if err := r.do(ctx, http.MethodGet, r.endpoint(id, nil), nil, &s); err != nil {
		if errors.Is(err, ErrNotFound) {
			return s, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return s, err
	}
	return s, nil
}

func (r *RemoteStore) Put(ctx context.Context, s schemas.Script) (schemas.Script, error) {
	prepared, err := Prepare(s, r.now())
	if err != nil {
		return s, err
	}
	var stored schemas.Script
	if err := r.do(ctx, http.MethodPut, r.endpoint(prepared.ID, nil), prepared, &stored); err != nil {
		return s, err
	}
	if stored.ID == "" {
		stored = prepared
	}
	return stored, nil
}

// Import puts each script in turn and stops at the first failure.
func (r *RemoteStore) Import(ctx context.Context, batch []schemas.Script) (int, error) {
	for i, s := range batch {
		if _, err := r.Put(ctx, s); err != nil {
			return i, fmt.Errorf("script %d: %w", i, err)
		}
	}
	return len(batch), nil
}

func (r *RemoteStore) Delete(ctx context.Context, id string) error {
	if err := r.do(ctx, http.MethodDelete, r.endpoint(id, nil), nil, nil); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return err
	}
	return nil
}

// Search passes the query to the backend and applies the local matching
// rules to the answer, since backends may not fold diacritics.
func (r *RemoteStore) Search(ctx context.Context, query string) ([]schemas.Script, error) {
	var list []schemas.Script
	q := url.Values{}
	if query = strings.TrimSpace(query); query != "" {
		q.Set("q", query)
	}
	if err := r.do(ctx, http.MethodGet, r.endpoint("", q), nil, &list); err != nil {
		return nil, err
	}
	Sort(list)
	return Filter(list, query), nil
}
