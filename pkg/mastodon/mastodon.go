// Package mastodon publishes statuses with an optional photo to a Mastodon
// account.
package mastodon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/codeGROOVE-dev/retry"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Credentials identify the posting account.
type Credentials struct {
	Server       string
	ClientKey    string
	ClientSecret string
	AccessToken  string
}

// Validate reports the first missing field.
func (c Credentials) Validate() error {
	switch {
	case c.Server == "":
		return errors.New("mastodon server is not set")
	case c.AccessToken == "":
		return errors.New("mastodon access token is not set")
	}
	if _, err := url.ParseRequestURI(c.Server); err != nil {
		return fmt.Errorf("mastodon server %q: %w", c.Server, err)
	}
	return nil
}

// Attachment is an uploaded media item.
type Attachment struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	URL         *string `json:"url"`
	PreviewURL  *string `json:"preview_url"`
	Description string  `json:"description"`
}

// Status is a published post.
type Status struct {
	ID        string       `json:"id"`
	URL       string       `json:"url"`
	Content   string       `json:"content"` // HTML
	CreatedAt time.Time    `json:"created_at"`
	Media     []Attachment `json:"media_attachments"`

	// Text is Content converted to markdown.
	Text string `json:"-"`
}

// Post is what to publish.
type Post struct {
	Text        string
	ImagePath   string // empty for a text-only status
	Description string // alt text for the image
}

type apiError struct {
	Error string `json:"error"`
}

// Client talks to one Mastodon server.
type Client struct {
	http         *resty.Client
	logger       *slog.Logger
	attempts     uint
	delay        time.Duration
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRetry sets the attempt count and initial backoff per request.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithPolling sets how often and how long to wait for media processing.
func WithPolling(interval, timeout time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
		c.pollTimeout = timeout
	}
}

// New returns a Client authenticated with the account's bearer token.
func New(ctx context.Context, creds Credentials, opts ...Option) (*Client, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	server := strings.TrimRight(creds.Server, "/")

	// The app credentials are only used if the server ever asks for a refresh.
	conf := &oauth2.Config{
		ClientID:     creds.ClientKey,
		ClientSecret: creds.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: server + "/oauth/token"},
	}
	hc := conf.Client(ctx, &oauth2.Token{AccessToken: creds.AccessToken, TokenType: "Bearer"})
	hc.Timeout = 2 * time.Minute

	c := &Client{
		http: resty.NewWithClient(hc).
			SetBaseURL(server).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "fourtwenty/1.0"),
		logger:       slog.Default(),
		attempts:     4,
		delay:        time.Second,
		pollInterval: time.Second,
		pollTimeout:  time.Minute,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Publish uploads the image, if any, and posts the status. A retried status
// post carries the same idempotency key, so the server creates it once.
func (c *Client) Publish(ctx context.Context, p Post) (*Status, error) {
	form := url.Values{"status": {p.Text}}
	if p.ImagePath != "" {
		media, err := c.upload(ctx, p.ImagePath, p.Description)
		if err != nil {
			return nil, err
		}
		form.Add("media_ids[]", media.ID)
	}

	key := uuid.NewString()
	var st Status
	if err := c.do(ctx, "post status", func() (*resty.Response, error) {
		return c.http.R().
			SetContext(ctx).
			SetHeader("Idempotency-Key", key).
			SetFormDataFromValues(form).
			SetResult(&st).
			SetError(&apiError{}).
			Post("/api/v1/statuses")
	}); err != nil {
		return nil, fmt.Errorf("posting status: %w", err)
	}

	text, err := md.ConvertString(st.Content)
	if err != nil {
		c.logger.Debug("failed to convert status content", "error", err)
		text = st.Content
	}
	st.Text = strings.TrimSpace(text)
	c.logger.Info("status published", "id", st.ID, "url", st.URL, "media", len(st.Media))
	return &st, nil
}

func (c *Client) upload(ctx context.Context, path, description string) (*Attachment, error) {
	var a Attachment
	if err := c.do(ctx, "upload media", func() (*resty.Response, error) {
		req := c.http.R().
			SetContext(ctx).
			SetFile("file", path).
			SetResult(&a).
			SetError(&apiError{})
		if description != "" {
			req.SetFormData(map[string]string{"description": description})
		}
		return req.Post("/api/v2/media")
	}); err != nil {
		return nil, fmt.Errorf("uploading %s: %w", path, err)
	}
	c.logger.Debug("media uploaded", "id", a.ID, "processed", a.URL != nil)

	if a.URL != nil {
		return &a, nil
	}
	return c.waitProcessed(ctx, a.ID)
}

// waitProcessed polls until the server has a URL for the media.
func (c *Client) waitProcessed(ctx context.Context, id string) (*Attachment, error) {
	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for media %s: %w", id, ctx.Err())
		case <-ticker.C:
		}

		var a Attachment
		if err := c.do(ctx, "media status", func() (*resty.Response, error) {
			return c.http.R().
				SetContext(ctx).
				SetResult(&a).
				SetError(&apiError{}).
				Get("/api/v1/media/" + url.PathEscape(id))
		}); err != nil {
			return nil, fmt.Errorf("checking media %s: %w", id, err)
		}
		if a.URL != nil {
			return &a, nil
		}
		c.logger.Debug("media still processing", "id", id)
	}
}

// do runs call with retries on transport errors, 429 and 5xx. 200, 202 and
// 206 are success; 206 is how the media endpoint reports work in progress.
func (c *Client) do(ctx context.Context, op string, call func() (*resty.Response, error)) error {
	start := time.Now()
	err := retry.Do(
		func() error {
			resp, err := call()
			if err != nil {
				return err
			}
			code := resp.StatusCode()
			switch {
			case code == http.StatusOK || code == http.StatusAccepted || code == http.StatusPartialContent:
				return nil
			case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
				return fmt.Errorf("%s: HTTP %d", op, code)
			default:
				if e, ok := resp.Error().(*apiError); ok && e.Error != "" {
					return retry.Unrecoverable(fmt.Errorf("%s: HTTP %d: %s", op, code, e.Error))
				}
				return retry.Unrecoverable(fmt.Errorf("%s: HTTP %d", op, code))
			}
		},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(time.Minute),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(max(c.delay/2, time.Millisecond)),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("retrying mastodon request", "op", op, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		c.logger.Error("mastodon request failed", "op", op, "error", err, "duration", time.Since(start))
	}
	return err
}
