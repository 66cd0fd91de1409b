package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.ObeyRobots)
	assert.Equal(t, 100, cfg.MaxPages)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 4, cfg.Network.Sitemap.Concurrency)
	assert.Equal(t, "default", cfg.Render.Theme)
	assert.Equal(t, "llms.txt", cfg.Output.File)
	assert.Equal(t, FormatMarkdown, cfg.Output.Format)
	assert.False(t, cfg.DetectTechnologies)
	assert.NoError(t, cfg.Validate())
}

func TestLoadNoFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, 100, cfg.MaxPages)
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "llmoptimizer.config.json", `{
		"baseUrl": "https://example.com",
		"obeyRobots": false,
		"maxPages": 25,
		"network": {"delayMs": 200, "sitemap": {"concurrency": 2}},
		"include": ["/docs/*"],
		"params": {"postId": ["7", "8"]},
		"routeParams": {"/blog/:postSlug": {"postSlug": ["first"]}},
		"render": {"theme": "compact"},
		"output": {"file": "out/llms.json", "format": "json"}
	}`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "llmoptimizer.config.json"), cfg.File)
	assert.Equal(t, "https://example.com", cfg.BaseURL)
	assert.False(t, cfg.ObeyRobots)
	assert.Equal(t, 25, cfg.MaxPages)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 200, cfg.Network.DelayMs)
	assert.Equal(t, 2, cfg.Network.Sitemap.Concurrency)
	assert.Equal(t, []string{"/docs/*"}, cfg.Include)
	assert.Equal(t, []string{"7", "8"}, cfg.Params["postId"])
	assert.Equal(t, []string{"first"}, cfg.RouteParams["/blog/:postSlug"]["postSlug"])
	assert.Equal(t, "compact", cfg.Render.Theme)
	assert.Equal(t, FormatJSON, cfg.Output.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "llmoptimizer.config.yaml", `
baseUrl: https://example.org
concurrency: 3
exclude:
  - /admin/*
buildScan:
  dirs: [dist]
`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://example.org", cfg.BaseURL)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, []string{"/admin/*"}, cfg.Exclude)
	assert.Equal(t, []string{"dist"}, cfg.BuildScan.Dirs)
}

func TestLoadCandidateOrder(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, ".llmoptimizerrc", `{"maxPages": 9}`)
	writeConfig(t, dir, "llmoptimizer.config.toml", "maxPages = 7\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxPages)
}

func TestLoadSkipsBrokenFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "llmoptimizer.config.json", `{not json`)
	writeConfig(t, dir, ".llmoptimizerrc.json", `{"maxPages": 12}`)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.MaxPages)
	assert.Equal(t, filepath.Join(dir, ".llmoptimizerrc.json"), cfg.File)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "llmoptimizer.config.json", `{"baseUrl": "https://file.example", "maxPages": 10}`)
	t.Setenv("LLMO_BASEURL", "https://env.example")
	t.Setenv("LLMO_NETWORK_SITEMAP_CONCURRENCY", "8")
	t.Setenv("LLMO_OBEYROBOTS", "false")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example", cfg.BaseURL)
	assert.Equal(t, 10, cfg.MaxPages)
	assert.Equal(t, 8, cfg.Network.Sitemap.Concurrency)
	assert.False(t, cfg.ObeyRobots)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero max pages", func(c *Config) { c.MaxPages = 0 }},
		{"negative concurrency", func(c *Config) { c.Concurrency = -1 }},
		{"negative delay", func(c *Config) { c.Network.DelayMs = -5 }},
		{"unknown format", func(c *Config) { c.Output.Format = "html" }},
		{"unknown theme", func(c *Config) { c.Render.Theme = "fancy" }},
		{"relative base url", func(c *Config) { c.BaseURL = "/docs" }},
		{"ftp base url", func(c *Config) { c.BaseURL = "ftp://example.com" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}
