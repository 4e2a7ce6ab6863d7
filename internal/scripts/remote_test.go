// File: internal/scripts/remote_test.go
package scripts

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scriptfill/api/schemas"
	"github.com/xkilldash9x/scriptfill/internal/config"
)

// fakeBackend is an in-memory script backend. Responses are compressed with
// the configured encoding.
type fakeBackend struct {
	t        *testing.T
	mu       sync.Mutex
	scripts  map[string]schemas.Script
	encoding string
	queries  []string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	b := &fakeBackend{t: t, scripts: make(map[string]schemas.Script)}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer s3cret" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	id := strings.TrimPrefix(r.URL.Path, "/api/scripts")
	id = strings.TrimPrefix(id, "/")
	switch {
	case r.Method == http.MethodGet && id == "":
		b.queries = append(b.queries, r.URL.Query().Get("q"))
		list := make([]schemas.Script, 0, len(b.scripts))
		for _, s := range b.scripts {
			list = append(list, s)
		}
		b.reply(w, list)
	case r.Method == http.MethodGet:
		s, ok := b.scripts[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		b.reply(w, s)
	case r.Method == http.MethodPut:
		var s schemas.Script
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil || s.ID != id {
			http.Error(w, "bad script", http.StatusBadRequest)
			return
		}
		b.scripts[id] = s
		b.reply(w, s)
	case r.Method == http.MethodDelete:
		if _, ok := b.scripts[id]; !ok {
			http.NotFound(w, r)
			return
		}
		delete(b.scripts, id)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (b *fakeBackend) reply(w http.ResponseWriter, v interface{}) {
	data, err := json.Marshal(v)
	require.NoError(b.t, err)

	var buf bytes.Buffer
	switch b.encoding {
	case "gzip":
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write(data)
		_ = zw.Close()
	case "br":
		bw := brotli.NewWriter(&buf)
		_, _ = bw.Write(data)
		_ = bw.Close()
	default:
		buf.Write(data)
	}
	if b.encoding != "" {
		w.Header().Set("Content-Encoding", b.encoding)
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func newTestRemote(t *testing.T, baseURL string) *RemoteStore {
	t.Helper()
	store, err := NewRemoteStore(config.RemoteConfig{
		BaseURL:   baseURL + "/api/",
		Token:     "s3cret",
		Timeout:   5 * time.Second,
		RateLimit: 1000,
		Burst:     10,
	}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	return store
}

func TestRemoteStore_RoundTrip(t *testing.T) {
	for _, encoding := range []string{"", "gzip", "br"} {
		t.Run("encoding="+encoding, func(t *testing.T) {
			ctx := context.Background()
			backend, srv := newFakeBackend(t)
			backend.mu.Lock()
			backend.encoding = encoding
			backend.mu.Unlock()
			store := newTestRemote(t, srv.URL)

			stored, err := store.Put(ctx, schemas.Script{Title: "Chào", Content: "Xin chào quý khách"})
			require.NoError(t, err)
			require.NotEmpty(t, stored.ID)

			got, err := store.Get(ctx, stored.ID)
			require.NoError(t, err)
			assert.Equal(t, stored.Content, got.Content)

			n, err := store.Import(ctx, []schemas.Script{{ID: "x1", Title: "Bye", Content: "Tạm biệt"}})
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			list, err := store.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 2)

			found, err := store.Search(ctx, " tam biet ")
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, "x1", found[0].ID)
			backend.mu.Lock()
			assert.Equal(t, "tam biet", backend.queries[len(backend.queries)-1])
			backend.mu.Unlock()

			require.NoError(t, store.Delete(ctx, "x1"))
			assert.ErrorIs(t, store.Delete(ctx, "x1"), ErrNotFound)
			_, err = store.Get(ctx, "x1")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestRemoteStore_Errors(t *testing.T) {
	_, srv := newFakeBackend(t)

	t.Run("unauthorized", func(t *testing.T) {
		store, err := NewRemoteStore(config.RemoteConfig{BaseURL: srv.URL + "/api"}, srv.Client(), nil)
		require.NoError(t, err)
		_, err = store.List(context.Background())
		assert.ErrorContains(t, err, "401")
		assert.ErrorContains(t, err, "unauthorized")
	})

	t.Run("invalid script never sent", func(t *testing.T) {
		store := newTestRemote(t, srv.URL)
		_, err := store.Put(context.Background(), schemas.Script{Title: "empty"})
		assert.ErrorIs(t, err, ErrInvalid)
	})

	t.Run("cancelled context", func(t *testing.T) {
		store := newTestRemote(t, srv.URL)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := store.List(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("bad base URL", func(t *testing.T) {
		_, err := NewRemoteStore(config.RemoteConfig{BaseURL: "not a url"}, nil, nil)
		assert.Error(t, err)
	})
}

func TestDecompress(t *testing.T) {
	payload := []byte(`{"id":"a"}`)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write(payload)
	require.NoError(t, zw.Close())

	// Applied as gzip first, then brotli.
	var layered bytes.Buffer
	bw := brotli.NewWriter(&layered)
	_, _ = bw.Write(gz.Bytes())
	require.NoError(t, bw.Close())

	resp := &http.Response{
		Header:        http.Header{"Content-Encoding": {"gzip, br"}, "Content-Length": {"99"}},
		Body:          io.NopCloser(bytes.NewReader(layered.Bytes())),
		ContentLength: 99,
	}
	require.NoError(t, decompress(resp))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, body)
	assert.NoError(t, resp.Body.Close())
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
	assert.Equal(t, int64(-1), resp.ContentLength)
	assert.True(t, resp.Uncompressed)

	bad := &http.Response{
		Header: http.Header{"Content-Encoding": {"zstd"}},
		Body:   io.NopCloser(bytes.NewReader(payload)),
	}
	assert.ErrorContains(t, decompress(bad), "unsupported Content-Encoding layer: zstd")
}
