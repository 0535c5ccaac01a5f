// Package imagesearch finds and downloads a scenic photo of a city through the
// Google Custom Search JSON API.
package imagesearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/httpcache"
)

// DefaultBaseURL is the Custom Search endpoint host.
const DefaultBaseURL = "https://www.googleapis.com"

var (
	// ErrNoImages means the search returned nothing with a usable extension.
	ErrNoImages = errors.New("no jpeg or png results")
	// ErrNotImage means the downloaded bytes are not a JPEG or PNG.
	ErrNotImage = errors.New("downloaded file is not a jpeg or png image")
)

var validExt = map[string]bool{"jpeg": true, "jpg": true, "png": true}

// Rand picks among search results.
type Rand interface {
	IntN(n int) int
}

// Image is a chosen search result.
type Image struct {
	Link  string `json:"link"`
	MIME  string `json:"mime"`
	Title string `json:"title"`
}

// Ext returns the text after the last dot of the link, lowercased.
func (i Image) Ext() string {
	dot := strings.LastIndex(i.Link, ".")
	if dot < 0 {
		return ""
	}
	return strings.ToLower(i.Link[dot+1:])
}

type searchResponse struct {
	Items []Image `json:"items"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Client searches for and downloads images.
type Client struct {
	search   *resty.Client
	fetch    *resty.Client
	rng      Rand
	logger   *slog.Logger
	apiKey   string
	engineID string
	attempts uint
	delay    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points searches at another host.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.search.SetBaseURL(url) }
}

// WithCache serves repeated searches from cache.
func WithCache(cache *httpcache.OtterCache) Option {
	return func(c *Client) {
		c.search.SetTransport(httpcache.NewTransport(cache, nil, c.logger))
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetry sets the attempt count and initial backoff for searches and
// downloads.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// New returns a Client for the given API key and search engine id.
func New(apiKey, engineID string, rng Rand, opts ...Option) *Client {
	c := &Client{
		search: resty.New().
			SetBaseURL(DefaultBaseURL).
			SetTimeout(30 * time.Second),
		fetch: resty.New().
			SetTimeout(time.Minute).
			SetHeader("User-Agent", "fourtwenty/1.0"),
		rng:      rng,
		logger:   slog.Default(),
		apiKey:   apiKey,
		engineID: engineID,
		attempts: 3,
		delay:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Query is the search phrase for a place.
func Query(city, country string) string {
	return fmt.Sprintf("scenic %s %s", city, country)
}

// Find searches for city and picks one JPEG or PNG result uniformly.
func (c *Client) Find(ctx context.Context, city, country string) (Image, error) {
	q := Query(city, country)
	var result searchResponse
	err := c.do(ctx, "image search", func() (*resty.Response, error) {
		var apiErr apiError
		return c.search.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"key":        c.apiKey,
				"cx":         c.engineID,
				"q":          q,
				"searchType": "image",
			}).
			SetResult(&result).
			SetError(&apiErr).
			Get("/customsearch/v1")
	})
	if err != nil {
		return Image{}, fmt.Errorf("searching %q: %w", q, err)
	}

	var valid []Image
	for _, item := range result.Items {
		if validExt[item.Ext()] {
			valid = append(valid, item)
		}
	}
	c.logger.Debug("image search", "query", q, "results", len(result.Items), "usable", len(valid))
	if len(valid) == 0 {
		return Image{}, fmt.Errorf("searching %q: %w", q, ErrNoImages)
	}
	return valid[c.rng.IntN(len(valid))], nil
}

// Download saves img as img.<ext> in dir and returns the path. The file is
// removed again unless its bytes sniff as JPEG or PNG.
func (c *Client) Download(ctx context.Context, img Image, dir string) (string, error) {
	ext := img.Ext()
	if !validExt[ext] {
		return "", fmt.Errorf("downloading %s: %w", img.Link, ErrNotImage)
	}
	path := filepath.Join(dir, "img."+ext)

	c.logger.Info("downloading image", "mime", img.MIME, "url", img.Link)
	err := c.do(ctx, "image download", func() (*resty.Response, error) {
		return c.fetch.R().
			SetContext(ctx).
			SetOutput(path).
			Get(img.Link)
	})
	if err != nil {
		removeQuietly(path)
		return "", fmt.Errorf("downloading %s: %w", img.Link, err)
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		removeQuietly(path)
		return "", fmt.Errorf("sniffing %s: %w", path, err)
	}
	if !mt.Is("image/jpeg") && !mt.Is("image/png") {
		removeQuietly(path)
		return "", fmt.Errorf("downloading %s (got %s): %w", img.Link, mt.String(), ErrNotImage)
	}
	return path, nil
}

// do runs call with retries on transport errors, 429 and 5xx.
func (c *Client) do(ctx context.Context, what string, call func() (*resty.Response, error)) error {
	return retry.Do(
		func() error {
			resp, err := call()
			if err != nil {
				return err
			}
			code := resp.StatusCode()
			switch {
			case code == http.StatusOK:
				return nil
			case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
				return fmt.Errorf("HTTP %d", code)
			default:
				if e, ok := resp.Error().(*apiError); ok && e.Error.Message != "" {
					return retry.Unrecoverable(fmt.Errorf("HTTP %d: %s", code, e.Error.Message))
				}
				return retry.Unrecoverable(fmt.Errorf("HTTP %d", code))
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(max(c.delay, time.Millisecond)),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying", "op", what, "attempt", n+1, "error", err)
		}),
	)
}

func removeQuietly(path string) {
	_ = os.Remove(path) //nolint:errcheck // best-effort cleanup of a rejected download
}
