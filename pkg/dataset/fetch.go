package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/go-resty/resty/v2"
)

// Source is a remote reference file and the name it is stored under.
type Source struct {
	URL  string
	File string
}

// GeoNames lists the files the bot needs from the GeoNames export.
var GeoNames = []Source{
	{URL: "https://download.geonames.org/export/dump/cities15000.zip", File: "cities15000.zip"},
	{URL: "https://download.geonames.org/export/dump/countryInfo.txt", File: "countryInfo.txt"},
}

// Fetcher downloads reference files.
type Fetcher struct {
	client *resty.Client
	logger *slog.Logger
	delay  time.Duration
}

// NewFetcher returns a Fetcher. A nil client gets a resty client with a
// two-minute timeout; the cities archive is a few megabytes.
func NewFetcher(client *resty.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = resty.New().
			SetTimeout(2*time.Minute).
			SetHeader("User-Agent", "fourtwenty/1.0")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger, delay: 2 * time.Second}
}

// Fetch downloads every source into dir, replacing existing copies only once a
// download has completed. It returns the local paths in source order.
func (f *Fetcher) Fetch(ctx context.Context, dir string, sources []Source) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	paths := make([]string, 0, len(sources))
	for _, src := range sources {
		path := filepath.Join(dir, src.File)
		if err := f.fetchOne(ctx, src.URL, path); err != nil {
			return paths, fmt.Errorf("downloading %s: %w", src.File, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, url, path string) error {
	tmp := path + ".tmp"
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			f.logger.Debug("failed to remove partial download", "path", tmp, "error", err)
		}
	}()

	start := time.Now()
	err := retry.Do(
		func() error {
			resp, err := f.client.R().
				SetContext(ctx).
				SetOutput(tmp).
				Get(url)
			if err != nil {
				return err
			}
			switch {
			case resp.StatusCode() == http.StatusOK:
				return nil
			case resp.StatusCode() == http.StatusTooManyRequests || resp.StatusCode() >= http.StatusInternalServerError:
				return fmt.Errorf("HTTP %d from %s", resp.StatusCode(), url)
			default:
				return retry.Unrecoverable(fmt.Errorf("HTTP %d from %s", resp.StatusCode(), url))
			}
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(f.delay),
		retry.MaxDelay(time.Minute),
		retry.DelayType(retry.FullJitterBackoffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Info("retrying download", "url", url, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	if st, err := os.Stat(path); err == nil {
		f.logger.Info("downloaded", "url", url, "path", path, "bytes", st.Size(), "duration", time.Since(start))
	}
	return nil
}
