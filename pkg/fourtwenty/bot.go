// Package fourtwenty runs one announcement: find somewhere it is 4:20 PM,
// compose the message, and optionally attach a photo and publish it.
package fourtwenty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/alttext"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/compose"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/decor"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/geo"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/imagesearch"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/mastodon"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/tzconvert"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/tzmatch"
)

// ImageFinder finds and downloads a photo of a place.
type ImageFinder interface {
	Find(ctx context.Context, city, country string) (imagesearch.Image, error)
	Download(ctx context.Context, img imagesearch.Image, dir string) (string, error)
}

// Describer writes alt text for an image.
type Describer interface {
	Describe(ctx context.Context, path, city, country string) (string, error)
}

// Publisher posts a status.
type Publisher interface {
	Publish(ctx context.Context, p mastodon.Post) (*mastodon.Status, error)
}

// ErrNoPublisher is returned when a run should publish but has nowhere to.
var ErrNoPublisher = errors.New("no publisher configured")

// RunOptions select the behavior of a single run.
type RunOptions struct {
	Strict    bool // require minute 20, not just the 4 PM hour
	NoPublish bool // compose only; no collaborator is called
}

// Result describes what a run did.
type Result struct {
	At        time.Time        `json:"at"`
	Matched   bool             `json:"matched"`
	Place     tzmatch.Place    `json:"place"`
	Local     time.Time        `json:"local"`
	Message   string           `json:"message,omitempty"`
	ImagePath string           `json:"image_path,omitempty"`
	AltText   string           `json:"alt_text,omitempty"`
	Status    *mastodon.Status `json:"status,omitempty"`
}

// Bot holds the loaded data and collaborators for runs.
type Bot struct {
	selector  *tzmatch.Selector
	conv      tzconvert.Converter
	pool      *decor.Pool
	composer  compose.Composer
	rng       tzmatch.Rand
	now       func() time.Time
	logger    *slog.Logger
	images    ImageFinder
	describer Describer
	publisher Publisher
	workDir   string
}

// Option configures a Bot.
type Option func(*Bot)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) { b.logger = logger }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

// WithComposer replaces compose.Default.
func WithComposer(c compose.Composer) Option {
	return func(b *Bot) { b.composer = c }
}

// WithImages enables photo attachments.
func WithImages(f ImageFinder) Option {
	return func(b *Bot) { b.images = f }
}

// WithDescriber enables generated alt text.
func WithDescriber(d Describer) Option {
	return func(b *Bot) { b.describer = d }
}

// WithPublisher sets where statuses go.
func WithPublisher(p Publisher) Option {
	return func(b *Bot) { b.publisher = p }
}

// WithWorkDir sets where downloaded photos are written.
func WithWorkDir(dir string) Option {
	return func(b *Bot) { b.workDir = dir }
}

// New returns a Bot over idx.
func New(idx *geo.Index, conv tzconvert.Converter, pool *decor.Pool, rng tzmatch.Rand, opts ...Option) *Bot {
	b := &Bot{
		selector: tzmatch.NewSelector(idx, conv, rng),
		conv:     conv,
		pool:     pool,
		composer: compose.Default,
		rng:      rng,
		now:      time.Now,
		logger:   slog.Default(),
		workDir:  ".",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run performs one announcement. Finding no zone at 4:20 is not an error: the
// Result has Matched false and nothing else is done.
func (b *Bot) Run(ctx context.Context, opts RunOptions) (Result, error) {
	res := Result{At: b.now()}

	place, ok, err := b.selector.Select(res.At, opts.Strict)
	if err != nil {
		return res, fmt.Errorf("selecting a place: %w", err)
	}
	if !ok {
		b.logger.Info("no zone reads 4:20 right now", "utc", res.At.UTC().Format(time.TimeOnly), "strict", opts.Strict)
		return res, nil
	}
	res.Matched = true
	res.Place = place
	if local, err := b.conv.Local(place.Zone, res.At); err == nil {
		res.Local = local
	}
	b.logger.Info("found 4:20", "zone", place.Zone, "city", place.City, "country", place.CountryName)

	msg, err := b.composer.Compose(place, b.pool.Draw(b.rng, compose.Glyphs))
	if err != nil {
		return res, fmt.Errorf("composing message: %w", err)
	}
	res.Message = msg

	if opts.NoPublish {
		return res, nil
	}
	if b.publisher == nil {
		return res, ErrNoPublisher
	}

	res.ImagePath = b.fetchImage(ctx, place)
	if res.ImagePath != "" {
		res.AltText = b.describe(ctx, res.ImagePath, place)
	}

	st, err := b.publisher.Publish(ctx, mastodon.Post{
		Text:        res.Message,
		ImagePath:   res.ImagePath,
		Description: res.AltText,
	})
	if err != nil {
		return res, fmt.Errorf("publishing: %w", err)
	}
	res.Status = st
	return res, nil
}

// fetchImage returns the downloaded photo path, or "" when the post should go
// out without one.
func (b *Bot) fetchImage(ctx context.Context, p tzmatch.Place) string {
	if b.images == nil {
		return ""
	}
	img, err := b.images.Find(ctx, p.City, p.CountryName)
	if err != nil {
		b.logger.Warn("image search failed, posting text only", "city", p.City, "error", err)
		return ""
	}
	path, err := b.images.Download(ctx, img, b.workDir)
	if err != nil {
		b.logger.Warn("image download failed, posting text only", "url", img.Link, "error", err)
		return ""
	}
	return path
}

func (b *Bot) describe(ctx context.Context, path string, p tzmatch.Place) string {
	if b.describer == nil {
		return alttext.Fallback(p.City, p.CountryName)
	}
	text, err := b.describer.Describe(ctx, path, p.City, p.CountryName)
	if err != nil {
		b.logger.Warn("alt text generation failed, using fallback", "error", err)
		return alttext.Fallback(p.City, p.CountryName)
	}
	return text
}
