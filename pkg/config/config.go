// Package config assembles settings from built-in defaults, an optional
// fourtwenty.yaml, the environment and command line flags.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// Config is the full run configuration.
type Config struct {
	Data struct {
		Cities      string `mapstructure:"cities"`
		Countries   string `mapstructure:"countries"`
		Decorations string `mapstructure:"decorations"` // empty uses the built-in glyphs
		Dir         string `mapstructure:"dir"`
	} `mapstructure:"data"`
	Run struct {
		Strict    bool          `mapstructure:"strict"`
		NoPublish bool          `mapstructure:"noPublish"`
		Verify    bool          `mapstructure:"verify"`
		Timeout   time.Duration `mapstructure:"timeout"`
		WorkDir   string        `mapstructure:"workDir"`
	} `mapstructure:"run"`
	Mastodon struct {
		Server       string `mapstructure:"server"`
		ClientKey    string `mapstructure:"clientKey"`
		ClientSecret string `mapstructure:"clientSecret"`
		AccessToken  string `mapstructure:"accessToken"`
	} `mapstructure:"mastodon"`
	Google struct {
		APIKey          string `mapstructure:"apiKey"`
		EngineID        string `mapstructure:"engineID"`
		CredentialsFile string `mapstructure:"credentialsFile"`
	} `mapstructure:"google"`
	Gemini struct {
		APIKey string `mapstructure:"apiKey"`
		Model  string `mapstructure:"model"`
	} `mapstructure:"gemini"`
	Cache struct {
		Dir string        `mapstructure:"dir"`
		TTL time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`
}

var envKeys = map[string]string{
	"mastodon.server":       "MASTODON_SERVER",
	"mastodon.clientKey":    "CLIENT_KEY",
	"mastodon.clientSecret": "CLIENT_SECRET",
	"mastodon.accessToken":  "ACCESS_TOKEN",
	"google.apiKey":         "GOOGLE_API_KEY",
	"google.engineID":       "GOOGLE_ENGINE_ID",
	"gemini.apiKey":         "GEMINI_API_KEY",
	"gemini.model":          "GEMINI_MODEL",
	"cache.dir":             "CACHE_DIR",
}

// New returns a viper instance holding the defaults and environment bindings.
// Callers bind their flags to it before calling Load.
func New() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("reading built-in defaults: %w", err)
	}
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return v, nil
}

// Load merges the config file into v and decodes the result. An explicit path
// must exist; otherwise fourtwenty.yaml is looked up in the working directory
// and the user config directory, and its absence is fine.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("fourtwenty")
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "fourtwenty"))
		}
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.loadGoogleCredentials(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type googleCredentials struct {
	Key      string `json:"key"`
	EngineID string `json:"engine_id"`
}

// loadGoogleCredentials fills missing search credentials from the JSON
// credentials file, if there is one.
func (c *Config) loadGoogleCredentials() error {
	if (c.Google.APIKey != "" && c.Google.EngineID != "") || c.Google.CredentialsFile == "" {
		return nil
	}
	data, err := os.ReadFile(c.Google.CredentialsFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", c.Google.CredentialsFile, err)
	}
	var creds googleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return fmt.Errorf("parsing %s: %w", c.Google.CredentialsFile, err)
	}
	if c.Google.APIKey == "" {
		c.Google.APIKey = creds.Key
	}
	if c.Google.EngineID == "" {
		c.Google.EngineID = creds.EngineID
	}
	return nil
}

// ImagesEnabled reports whether image search has credentials.
func (c *Config) ImagesEnabled() bool {
	return c.Google.APIKey != "" && c.Google.EngineID != ""
}
