package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Harvey-AU/llmoptimizer/internal/config"
	"github.com/Harvey-AU/llmoptimizer/internal/generate"
	"github.com/Harvey-AU/llmoptimizer/internal/testutil"
)

func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestSelectMode(t *testing.T) {
	tests := []struct {
		name    string
		flags   generateFlags
		baseURL string
		changed []string
		want    string
		wantErr error
	}{
		{"root wins", generateFlags{root: "dist", buildScan: true, sitemap: "https://x.test/sitemap.xml"}, "https://x.test", nil, modeStatic, nil},
		{"build scan", generateFlags{buildScan: true, adapter: true}, "https://x.test", nil, modeBuild, nil},
		{"adapter", generateFlags{adapter: true, sitemap: "https://x.test/s.xml"}, "https://x.test", nil, modeAdapter, nil},
		{"adapter needs url", generateFlags{adapter: true}, "", nil, "", generate.ErrBaseURLRequired},
		{"sitemap", generateFlags{sitemap: "https://x.test/s.xml"}, "https://x.test", nil, modeSitemap, nil},
		{"auto flag", generateFlags{auto: true}, "https://x.test", nil, modeAuto, nil},
		{"url from config", generateFlags{}, "https://x.test", nil, modeURL, nil},
		{"project root only", generateFlags{projectRoot: "site"}, "", []string{"project-root"}, modeAuto, nil},
		{"nothing", generateFlags{}, "", nil, "", errNoMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.BaseURL = tt.baseURL
			got, err := selectMode(&tt.flags, cfg, changedSet(tt.changed...))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyFlags(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"params.json":       `{"postId":["1","2"]}`,
		"route-params.json": `{"/blog/:slug":{"slug":["intro"]}}`,
	})

	cfg := config.Default()
	cfg.MaxPages = 40
	f := &generateFlags{
		url:         "example.com",
		out:         "out/llms.json",
		format:      "json",
		maxPages:    0,
		concurrency: 3,
		noRobots:    true,
		detectTech:  true,
		paramsFile:  filepath.Join(dir, "params.json"),
		routeParams: filepath.Join(dir, "route-params.json"),
		include:     []string{"/docs/*"},
	}
	require.NoError(t, applyFlags(cfg, f, changedSet("concurrency", "include")))

	assert.Equal(t, "https://example.com", cfg.BaseURL)
	assert.Equal(t, "out/llms.json", cfg.Output.File)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, 40, cfg.MaxPages, "unset flag keeps config value")
	assert.Equal(t, 3, cfg.Concurrency)
	assert.False(t, cfg.ObeyRobots)
	assert.True(t, cfg.DetectTechnologies)
	assert.Equal(t, []string{"/docs/*"}, cfg.Include)
	assert.Equal(t, []string{"1", "2"}, cfg.Params["postId"])
	assert.Equal(t, []string{"intro"}, cfg.RouteParams["/blog/:slug"]["slug"])
}

func TestApplyFlagsInvalid(t *testing.T) {
	t.Run("format", func(t *testing.T) {
		err := applyFlags(config.Default(), &generateFlags{format: "yaml"}, changedSet())
		assert.ErrorIs(t, err, config.ErrInvalid)
	})
	t.Run("url", func(t *testing.T) {
		err := applyFlags(config.Default(), &generateFlags{url: "ftp://example.com"}, changedSet())
		assert.ErrorIs(t, err, config.ErrInvalid)
	})
	t.Run("max pages", func(t *testing.T) {
		err := applyFlags(config.Default(), &generateFlags{maxPages: 0}, changedSet("max-pages"))
		assert.ErrorIs(t, err, config.ErrInvalid)
	})
	t.Run("missing params file", func(t *testing.T) {
		err := applyFlags(config.Default(), &generateFlags{paramsFile: filepath.Join(t.TempDir(), "nope.json")}, changedSet())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read")
	})
}

func TestGenerateCommandStatic(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	site := t.TempDir()
	testutil.WriteFiles(t, site, map[string]string{
		"index.html":       "<title>Home</title>",
		"about/index.html": "<title>About</title>",
	})
	out := filepath.Join(t.TempDir(), "llms.txt")

	var stdout bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetArgs([]string{"generate", "--root", site, "--out", out, "--config-dir", t.TempDir(), "--theme", "compact"})
	require.NoError(t, root.Execute())

	assert.Equal(t, "Generated "+out+" with 2 pages.\n", stdout.String())
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "- [Home](file://")
}

func TestGenerateCommandNoMode(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"generate", "--config-dir", t.TempDir()})
	assert.ErrorIs(t, root.Execute(), errNoMode)
}

func TestSetupLogging(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	setupLogging(&Config{Env: "production", LogLevel: "debug"})
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())

	setupLogging(&Config{Env: "development", LogLevel: "nonsense"})
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("OBSERVABILITY_ENABLED", "true")
	t.Setenv("METRICS_ADDR", "")

	cfg := loadEnvConfig()
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.ObservabilityEnabled)
	assert.Equal(t, ":9464", cfg.MetricsAddr)
}
