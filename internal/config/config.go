// Package config loads the llmoptimizer project configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/Harvey-AU/llmoptimizer/internal/render"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// EnvPrefix prefixes environment overrides, e.g. LLMO_BASEURL or
// LLMO_NETWORK_SITEMAP_CONCURRENCY.
const EnvPrefix = "LLMO"

// Output formats.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Candidates lists config file names in lookup order.
var Candidates = []string{
	"llmoptimizer.config.json",
	"llmoptimizer.config.yaml",
	"llmoptimizer.config.yml",
	"llmoptimizer.config.toml",
	".llmoptimizerrc",
	".llmoptimizerrc.json",
}

type Config struct {
	BaseURL            string                         `mapstructure:"baseUrl"`
	ObeyRobots         bool                           `mapstructure:"obeyRobots"`
	MaxPages           int                            `mapstructure:"maxPages"`
	Concurrency        int                            `mapstructure:"concurrency"`
	Network            Network                        `mapstructure:"network"`
	Include            []string                       `mapstructure:"include"`
	Exclude            []string                       `mapstructure:"exclude"`
	Params             map[string][]string            `mapstructure:"params"`
	RouteParams        map[string]map[string][]string `mapstructure:"routeParams"`
	Routes             []string                       `mapstructure:"routes"`
	BuildScan          BuildScan                      `mapstructure:"buildScan"`
	Render             Render                         `mapstructure:"render"`
	Output             Output                         `mapstructure:"output"`
	DetectTechnologies bool                           `mapstructure:"detectTechnologies"`

	// File is the config file that was loaded, empty when none was found.
	File string `mapstructure:"-"`
}

type Network struct {
	DelayMs int           `mapstructure:"delayMs"`
	Sitemap SitemapConfig `mapstructure:"sitemap"`
}

type SitemapConfig struct {
	Concurrency int `mapstructure:"concurrency"`
	DelayMs     int `mapstructure:"delayMs"`
}

type BuildScan struct {
	Dirs []string `mapstructure:"dirs"`
}

type Render struct {
	Theme string `mapstructure:"theme"`
}

type Output struct {
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("baseUrl", "")
	v.SetDefault("obeyRobots", true)
	v.SetDefault("maxPages", 100)
	v.SetDefault("concurrency", 5)
	v.SetDefault("network.delayMs", 0)
	v.SetDefault("network.sitemap.concurrency", 4)
	v.SetDefault("network.sitemap.delayMs", 0)
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("routes", []string{})
	v.SetDefault("buildScan.dirs", []string{})
	v.SetDefault("render.theme", render.ThemeDefault)
	v.SetDefault("output.file", "llms.txt")
	v.SetDefault("output.format", FormatMarkdown)
	v.SetDefault("detectTechnologies", false)
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults are static and always decode
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads the first candidate file in dir, applies LLMO_ environment
// overrides and fills defaults. A candidate that cannot be parsed is skipped
// with a warning.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var loaded string
	for _, name := range Candidates {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		v.SetConfigFile(path)
		v.SetConfigType(configType(name))
		if err := v.ReadInConfig(); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("Skipping unreadable config file")
			continue
		}
		loaded = path
		break
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.File = loaded

	if loaded != "" && configType(loaded) == "json" {
		// Viper folds map keys to lower case; param names are case-sensitive
		if err := restoreParamKeys(loaded, cfg); err != nil {
			log.Warn().Err(err).Str("file", loaded).Msg("Could not restore param key case")
		}
	}

	log.Debug().
		Str("file", loaded).
		Str("base_url", cfg.BaseURL).
		Int("max_pages", cfg.MaxPages).
		Msg("Loaded configuration")

	return cfg, nil
}

func configType(name string) string {
	switch ext := strings.TrimPrefix(filepath.Ext(name), "."); ext {
	case "yaml", "yml":
		return "yaml"
	case "toml":
		return "toml"
	default:
		return "json"
	}
}

func restoreParamKeys(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw struct {
		Params      map[string][]string            `json:"params"`
		RouteParams map[string]map[string][]string `json:"routeParams"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Params != nil {
		cfg.Params = raw.Params
	}
	if raw.RouteParams != nil {
		cfg.RouteParams = raw.RouteParams
	}
	return nil
}

// Validate reports the first invalid setting, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	if c.MaxPages <= 0 {
		return fmt.Errorf("%w: maxPages must be positive, got %d", ErrInvalid, c.MaxPages)
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive, got %d", ErrInvalid, c.Concurrency)
	}
	if c.Network.DelayMs < 0 || c.Network.Sitemap.DelayMs < 0 {
		return fmt.Errorf("%w: delays cannot be negative", ErrInvalid)
	}
	if c.Network.Sitemap.Concurrency < 0 {
		return fmt.Errorf("%w: network.sitemap.concurrency cannot be negative", ErrInvalid)
	}
	switch c.Output.Format {
	case FormatMarkdown, FormatJSON:
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalid, c.Output.Format)
	}
	if !render.ValidTheme(c.Render.Theme) {
		return fmt.Errorf("%w: unknown theme %q", ErrInvalid, c.Render.Theme)
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: baseUrl %q is not an absolute http(s) URL", ErrInvalid, c.BaseURL)
		}
	}
	return nil
}
