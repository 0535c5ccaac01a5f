package httpcache

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOtterCacheGetSet(t *testing.T) {
	c, err := NewOtterCache("", time.Hour, discard)
	require.NoError(t, err)

	_, ok := c.Get("https://example.com/a")
	assert.False(t, ok)

	c.Set("https://example.com/a", "application/json", []byte(`{"items":[]}`))
	e, ok := c.Get("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "application/json", e.ContentType)
	assert.Equal(t, `{"items":[]}`, string(e.Data))

	_, ok = c.Get("https://example.com/b")
	assert.False(t, ok)
	assert.NoError(t, c.Close(), "memory-only caches close cleanly")
}

func TestOtterCachePersists(t *testing.T) {
	dir := t.TempDir()
	c, err := NewOtterCache(dir, time.Hour, discard)
	require.NoError(t, err)
	c.Set("https://example.com/a", "text/plain", []byte("hello"))
	require.NoError(t, c.Close())

	reopened, err := NewOtterCache(dir, time.Hour, discard)
	require.NoError(t, err)
	e, ok := reopened.Get("https://example.com/a")
	require.True(t, ok)
	assert.Equal(t, "hello", string(e.Data))
}

func TestOtterCacheDropsExpiredOnLoad(t *testing.T) {
	dir := t.TempDir()
	c, err := NewOtterCache(dir, time.Millisecond, discard)
	require.NoError(t, err)
	c.Set("https://example.com/a", "", []byte("stale"))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, c.Close())

	reopened, err := NewOtterCache(dir, time.Hour, discard)
	require.NoError(t, err)
	_, ok := reopened.Get("https://example.com/a")
	assert.False(t, ok)
}

func TestTransport(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true}`)) //nolint:errcheck // test server
		default:
			http.Error(w, "nope", http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	cache, err := NewOtterCache("", time.Hour, discard)
	require.NoError(t, err)
	client := &http.Client{Transport: NewTransport(cache, nil, discard)}

	get := func(path string) (*http.Response, string) {
		t.Helper()
		resp, err := client.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close() //nolint:errcheck // test
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp, string(body)
	}

	resp, body := get("/ok")
	assert.Equal(t, `{"ok":true}`, body)
	assert.Empty(t, resp.Header.Get(FromCacheHeader))

	resp, body = get("/ok")
	assert.Equal(t, `{"ok":true}`, body)
	assert.Equal(t, "true", resp.Header.Get(FromCacheHeader))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, int32(1), hits.Load(), "second GET is served from cache")

	resp, _ = get("/fail")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp, _ = get("/fail")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, int32(3), hits.Load(), "errors are never cached")

	post, err := client.Post(srv.URL+"/ok", "text/plain", nil)
	require.NoError(t, err)
	require.NoError(t, post.Body.Close())
	assert.Equal(t, int32(4), hits.Load(), "POST bypasses the cache")
}
