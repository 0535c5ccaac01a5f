package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codeGROOVE-dev/fourtwenty/pkg/alttext"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/config"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/decor"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/display"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/fourtwenty"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/geo"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/httpcache"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/imagesearch"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/mastodon"
	"github.com/codeGROOVE-dev/fourtwenty/pkg/tzconvert"
)

// app carries what every command shares.
type app struct {
	v          *viper.Viper
	configPath string
	verbose    bool
	cfg        config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var noTweet bool

	cmd := &cobra.Command{
		Use:   "fourtwenty",
		Short: "Announce a place where it is 4:20 PM right now",
		Long: "fourtwenty picks a time zone whose local clock reads 4:20 PM, picks a city in it,\n" +
			"and posts a decorated announcement with a scenic photo to Mastodon.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noTweet {
				a.cfg.Run.NoPublish = true
			}
			return a.run(cmd.Context())
		},
	}

	var err error
	if a.v, err = config.New(); err != nil {
		// The defaults are embedded; this only fails on a broken build.
		panic(err)
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default: fourtwenty.yaml if present)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	pf.String("cities", "", "GeoNames cities file or zip archive")
	pf.String("countries", "", "GeoNames countryInfo.txt")
	pf.BoolP("strict", "s", false, "require minute 20, not just the 4 PM hour")

	f := cmd.Flags()
	f.BoolP("no-publish", "n", false, "print the announcement without posting")
	f.BoolVar(&noTweet, "notweet", false, "same as --no-publish")
	f.String("decorations", "", "glyph file (default: built in)")
	f.Bool("verify", false, "check every city's country before running")
	_ = f.MarkHidden("notweet") //nolint:errcheck // flag defined above

	for key, flag := range map[string]string{
		"data.cities":    "cities",
		"data.countries": "countries",
		"run.strict":     "strict",
	} {
		_ = a.v.BindPFlag(key, pf.Lookup(flag)) //nolint:errcheck // flag defined above
	}
	for key, flag := range map[string]string{
		"data.decorations": "decorations",
		"run.noPublish":    "no-publish",
		"run.verify":       "verify",
	} {
		_ = a.v.BindPFlag(key, f.Lookup(flag)) //nolint:errcheck // flag defined above
	}

	cmd.AddCommand(newZonesCmd(a), newFetchCmd(a))
	return cmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(a.verbose)
	return nil
}

func (a *app) loadIndex(conv tzconvert.Converter) (*geo.Index, error) {
	idx, err := geo.Load(a.cfg.Data.Cities, a.cfg.Data.Countries, conv, geo.WithLogger(a.logger))
	if err != nil {
		return nil, fmt.Errorf("%w (run 'fourtwenty fetch-data' to download the GeoNames files)", err)
	}
	a.logger.Debug("loaded gazetteer", "cities", idx.Len(), "zones", len(idx.Zones()), "dropped", idx.Dropped())
	return idx, nil
}

func (a *app) run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Run.Timeout)
	defer cancel()

	conv := tzconvert.NewSystem()
	idx, err := a.loadIndex(conv)
	if err != nil {
		return err
	}
	if a.cfg.Run.Verify {
		if err := idx.Verify(); err != nil {
			return fmt.Errorf("verifying gazetteer: %w", err)
		}
		a.logger.Info("gazetteer verified", "cities", idx.Len())
	}

	pool := decor.Default()
	if a.cfg.Data.Decorations != "" {
		if pool, err = decor.Load(a.cfg.Data.Decorations); err != nil {
			return err
		}
	}

	rng := newRand()
	opts := []fourtwenty.Option{
		fourtwenty.WithLogger(a.logger),
		fourtwenty.WithWorkDir(a.cfg.Run.WorkDir),
	}

	if !a.cfg.Run.NoPublish {
		more, closeFn, err := a.collaborators(ctx, rng)
		if err != nil {
			return err
		}
		defer closeFn()
		opts = append(opts, more...)
	}

	bot := fourtwenty.New(idx, conv, pool, rng, opts...)
	res, err := bot.Run(ctx, fourtwenty.RunOptions{
		Strict:    a.cfg.Run.Strict,
		NoPublish: a.cfg.Run.NoPublish,
	})
	if err != nil {
		return err
	}
	display.PrintResult(os.Stdout, res)
	return nil
}

// collaborators builds the publisher and the optional photo and alt text
// services. The returned func persists the response cache.
func (a *app) collaborators(ctx context.Context, rng imagesearch.Rand) ([]fourtwenty.Option, func(), error) {
	closeFn := func() {}
	pub, err := mastodon.New(ctx, mastodon.Credentials{
		Server:       a.cfg.Mastodon.Server,
		ClientKey:    a.cfg.Mastodon.ClientKey,
		ClientSecret: a.cfg.Mastodon.ClientSecret,
		AccessToken:  a.cfg.Mastodon.AccessToken,
	}, mastodon.WithLogger(a.logger))
	if err != nil {
		return nil, closeFn, err
	}
	opts := []fourtwenty.Option{fourtwenty.WithPublisher(pub)}

	if !a.cfg.ImagesEnabled() {
		a.logger.Warn("image search credentials missing, posting text only")
		return opts, closeFn, nil
	}

	cache, err := httpcache.NewOtterCache(a.cfg.Cache.Dir, a.cfg.Cache.TTL, a.logger)
	if err != nil {
		return nil, closeFn, err
	}
	closeFn = func() {
		if err := cache.Close(); err != nil {
			a.logger.Warn("failed to save response cache", "error", err)
		}
	}
	opts = append(opts, fourtwenty.WithImages(imagesearch.New(a.cfg.Google.APIKey, a.cfg.Google.EngineID, rng,
		imagesearch.WithLogger(a.logger),
		imagesearch.WithCache(cache))))

	if a.cfg.Gemini.APIKey == "" {
		a.logger.Debug("no gemini key, using plain alt text")
		return opts, closeFn, nil
	}
	desc, err := alttext.New(ctx, a.cfg.Gemini.APIKey, a.cfg.Gemini.Model, a.logger)
	if err != nil {
		a.logger.Warn("alt text disabled", "error", err)
		return opts, closeFn, nil
	}
	return append(opts, fourtwenty.WithDescriber(desc)), closeFn, nil
}
