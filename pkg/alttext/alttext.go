// Package alttext writes accessibility descriptions for the photos attached to
// posts, using Gemini.
package alttext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/gabriel-vasile/mimetype"
	"google.golang.org/genai"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash-lite"

// MaxLen is the longest description Mastodon accepts.
const MaxLen = 1500

// Generator is the part of the genai SDK the client calls.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client describes images.
type Client struct {
	gen    Generator
	logger *slog.Logger
	model  string
	delay  time.Duration
}

// New creates a Gemini API client. It does not contact the API.
func New(ctx context.Context, apiKey, model string, logger *slog.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is empty")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return NewWithGenerator(gc.Models, model, logger), nil
}

// NewWithGenerator wraps an existing generator.
func NewWithGenerator(gen Generator, model string, logger *slog.Logger) *Client {
	model = strings.TrimPrefix(model, "models/")
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{gen: gen, model: model, logger: logger, delay: 100 * time.Millisecond}
}

// Fallback is the description used when none can be generated.
func Fallback(city, country string) string {
	return fmt.Sprintf("A scenic photo of %s, %s.", city, country)
}

func prompt(city, country string) string {
	return fmt.Sprintf("This photo was found by searching for scenery in %s, %s. "+
		"Write alt text for it: one or two plain sentences describing what is visible, "+
		"for someone who cannot see the image. Do not mention the search, do not start "+
		"with \"Image of\" or \"Photo of\", and do not use markdown.", city, country)
}

// Describe returns alt text for the image at path.
func (c *Client) Describe(ctx context.Context, path, city, country string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%s is %s, not an image", path, mt.String())
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: data, MIMEType: mt.String()}},
			{Text: prompt(city, country)},
		},
	}}
	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: 300,
	}

	var resp *genai.GenerateContentResponse
	err = retry.Do(
		func() error {
			var err error
			resp, err = c.gen.GenerateContent(ctx, c.model, contents, config)
			if err != nil && !isTransient(err) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(4),
		retry.Delay(c.delay),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.CombineDelay(retry.BackOffDelay, retry.RandomDelay)),
		retry.MaxJitter(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("retrying gemini call", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("gemini %s: %w", c.model, err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	text = clean(text)
	c.logger.Debug("alt text generated", "model", c.model, "chars", len(text))
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("empty response from gemini")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", errors.New("no content in gemini response")
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("empty text in gemini response")
	}
	return b.String(), nil
}

// clean folds the text onto one line, strips stray markdown emphasis and
// bounds the length.
func clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, "*_\"")
	if r := []rune(s); len(r) > MaxLen {
		s = strings.TrimSpace(string(r[:MaxLen-1])) + "…"
	}
	return s
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"rate limit", "quota", "timeout", "deadline", "unavailable", "internal", "429", "500", "502", "503", "504"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
