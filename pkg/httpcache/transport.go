package httpcache

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
)

// FromCacheHeader is set on responses served from the cache.
const FromCacheHeader = "X-From-Cache"

// Transport is an http.RoundTripper that serves repeated GETs from an
// OtterCache. Only 200 responses are stored.
type Transport struct {
	Cache  *OtterCache
	Base   http.RoundTripper
	Logger *slog.Logger
}

// NewTransport wraps base, or http.DefaultTransport when base is nil.
func NewTransport(cache *OtterCache, base http.RoundTripper, logger *slog.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Cache: cache, Base: base, Logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Cache == nil || req.Method != http.MethodGet || req.Header.Get("Range") != "" {
		return t.Base.RoundTrip(req)
	}

	url := req.URL.String()
	if e, ok := t.Cache.Get(url); ok {
		t.Logger.Debug("cache hit", "host", req.URL.Host, "path", req.URL.Path)
		return cachedResponse(req, e), nil
	}

	resp, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		t.Logger.Debug("failed to close response body", "error", closeErr)
	}
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	t.Cache.Set(url, resp.Header.Get("Content-Type"), body)
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func cachedResponse(req *http.Request, e Entry) *http.Response {
	h := make(http.Header)
	h.Set(FromCacheHeader, "true")
	if e.ContentType != "" {
		h.Set("Content-Type", e.ContentType)
	}
	h.Set("Content-Length", strconv.Itoa(len(e.Data)))
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Data)),
		ContentLength: int64(len(e.Data)),
		Request:       req,
	}
}
