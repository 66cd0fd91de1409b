package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/Harvey-AU/llmoptimizer/internal/config"
	"github.com/Harvey-AU/llmoptimizer/internal/crawler"
	"github.com/Harvey-AU/llmoptimizer/internal/db"
	"github.com/Harvey-AU/llmoptimizer/internal/generate"
	"github.com/Harvey-AU/llmoptimizer/internal/techdetect"
	"github.com/Harvey-AU/llmoptimizer/internal/util"
)

// errNoMode is returned when the flags and config name nothing to generate from.
var errNoMode = errors.New("specify one of: --url, --sitemap, --root, --build-scan, --adapter or --auto")

// Generation modes, in selection order.
const (
	modeStatic  = "static"
	modeBuild   = "build"
	modeAdapter = "adapter"
	modeSitemap = "sitemap"
	modeURL     = "url"
	modeAuto    = "auto"
)

type generateFlags struct {
	url          string
	sitemap      string
	root         string
	out          string
	format       string
	maxPages     int
	concurrency  int
	include      []string
	exclude      []string
	noRobots     bool
	adapter      bool
	adapterName  string
	projectRoot  string
	paramsFile   string
	routeParams  string
	routes       []string
	buildScan    bool
	buildDirs    []string
	theme        string
	delayMs      int
	detectTech   bool
	auto         bool
	configDir    string
	samplerLimit time.Duration
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "llmoptimizer",
		Short:         "Generate llms.txt summaries for websites",
		Long:          "llmoptimizer discovers a site's pages by crawling, sitemaps, build output or framework routes and writes an llms.txt summary.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCmd())
	return root
}

func newGenerateCmd() *cobra.Command {
	f := &generateFlags{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate llms.txt from a URL, sitemap, static directory or project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.url, "url", "u", "", "root URL to crawl (respecting robots)")
	flags.StringVarP(&f.sitemap, "sitemap", "s", "", "sitemap URL to seed URLs")
	flags.StringVarP(&f.root, "root", "r", "", "static output directory with HTML files")
	flags.StringVarP(&f.out, "out", "o", "", "output file path (default llms.txt)")
	flags.StringVarP(&f.format, "format", "f", "", "output format: markdown|json")
	flags.IntVar(&f.maxPages, "max-pages", 0, "max pages to include (default 100)")
	flags.IntVar(&f.concurrency, "concurrency", 0, "concurrent fetches (default 5)")
	flags.StringSliceVar(&f.include, "include", nil, "include URL patterns or file globs")
	flags.StringSliceVar(&f.exclude, "exclude", nil, "exclude URL patterns or file globs")
	flags.BoolVar(&f.noRobots, "no-robots", false, "do not fetch or obey robots.txt")
	flags.BoolVar(&f.adapter, "adapter", false, "use a framework adapter to infer routes")
	flags.StringVar(&f.adapterName, "adapter-name", "", "force an adapter instead of detecting one (nextjs, nuxt, astro, remix, sveltekit, gatsby, angular)")
	flags.StringVar(&f.projectRoot, "project-root", ".", "project root for adapter detection and build scans")
	flags.StringVar(&f.paramsFile, "params", "", "JSON file mapping param name to sample values")
	flags.StringVar(&f.routeParams, "route-params", "", `JSON file mapping route pattern to param values, e.g. {"/blog/:slug": {"slug": ["a","b"]}}`)
	flags.StringSliceVar(&f.routes, "routes", nil, "explicit route patterns to include, e.g. /blog/:slug")
	flags.BoolVar(&f.buildScan, "build-scan", false, "scan build output folders for HTML (no crawling)")
	flags.StringSliceVar(&f.buildDirs, "build-dirs", nil, "directories to scan for HTML, relative to the project root")
	flags.StringVar(&f.theme, "theme", "", "markdown theme: default|compact|detailed")
	flags.IntVar(&f.delayMs, "delay-ms", 0, "minimum delay between requests in milliseconds")
	flags.BoolVar(&f.detectTech, "detect-tech", false, "fingerprint technologies on fetched pages")
	flags.BoolVar(&f.auto, "auto", false, "try static, build, adapter and crawl strategies in turn")
	flags.StringVar(&f.configDir, "config-dir", ".", "directory searched for llmoptimizer config files")
	flags.DurationVar(&f.samplerLimit, "sampler-timeout", 0, "deadline for parameter sampling (default 1.5s)")

	return cmd
}

// applyFlags overlays explicitly set flags on the loaded config.
func applyFlags(cfg *config.Config, f *generateFlags, changed func(string) bool) error {
	if f.url != "" {
		cfg.BaseURL = f.url
	}
	if f.out != "" {
		cfg.Output.File = f.out
	}
	if f.format != "" {
		cfg.Output.Format = f.format
	}
	if f.theme != "" {
		cfg.Render.Theme = f.theme
	}
	if changed("max-pages") {
		cfg.MaxPages = f.maxPages
	}
	if changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if changed("delay-ms") {
		cfg.Network.DelayMs = f.delayMs
	}
	if changed("include") {
		cfg.Include = f.include
	}
	if changed("exclude") {
		cfg.Exclude = f.exclude
	}
	if changed("routes") {
		cfg.Routes = f.routes
	}
	if changed("build-dirs") {
		cfg.BuildScan.Dirs = f.buildDirs
	}
	if f.noRobots {
		cfg.ObeyRobots = false
	}
	if f.detectTech {
		cfg.DetectTechnologies = true
	}
	if f.paramsFile != "" {
		params := map[string][]string{}
		if err := readJSONFile(f.paramsFile, &params); err != nil {
			return err
		}
		cfg.Params = params
	}
	if f.routeParams != "" {
		routeParams := map[string]map[string][]string{}
		if err := readJSONFile(f.routeParams, &routeParams); err != nil {
			return err
		}
		cfg.RouteParams = routeParams
	}

	if cfg.BaseURL != "" {
		normalised, err := util.NormaliseBaseURL(cfg.BaseURL)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrInvalid, err)
		}
		cfg.BaseURL = normalised
	}
	return cfg.Validate()
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// selectMode picks the strategy: root, build scan, adapter, sitemap, URL,
// then auto when asked for or when only a project root was given.
func selectMode(f *generateFlags, cfg *config.Config, changed func(string) bool) (string, error) {
	switch {
	case f.root != "":
		return modeStatic, nil
	case f.buildScan:
		return modeBuild, nil
	case f.adapter:
		if cfg.BaseURL == "" {
			return "", fmt.Errorf("%w: adapter mode requires --url", generate.ErrBaseURLRequired)
		}
		return modeAdapter, nil
	case f.sitemap != "":
		return modeSitemap, nil
	case f.auto:
		return modeAuto, nil
	case cfg.BaseURL != "":
		return modeURL, nil
	case changed("project-root"):
		return modeAuto, nil
	}
	return "", errNoMode
}

func runGenerate(cmd *cobra.Command, f *generateFlags) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(f.configDir)
	if err != nil {
		return err
	}
	changed := cmd.Flags().Changed
	if err := applyFlags(cfg, f, changed); err != nil {
		return err
	}
	mode, err := selectMode(f, cfg, changed)
	if err != nil {
		return err
	}

	opts := generate.Options{Fetcher: crawler.NewCollyFetcher(nil)}
	if cfg.DetectTechnologies {
		detector, err := techdetect.New()
		if err != nil {
			log.Warn().Err(err).Msg("Technology detection unavailable")
		} else {
			opts.Detector = detector
		}
	}
	if os.Getenv("DATABASE_URL") != "" {
		store, err := db.InitFromEnv(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Run history disabled, could not connect to database")
		} else {
			defer store.Close()
			opts.Store = store
		}
	}

	log.Info().
		Str("mode", mode).
		Str("config_file", cfg.File).
		Str("base_url", cfg.BaseURL).
		Msg("Starting llmoptimizer")

	res, err := runMode(ctx, generate.New(opts), mode, f, cfg)
	if err != nil {
		return err
	}

	suffix := ""
	if mode == modeBuild {
		suffix = " (build scan)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Generated %s with %d pages%s.\n", res.OutFile, len(res.Pages), suffix)
	return nil
}

func runMode(ctx context.Context, g *generate.Generator, mode string, f *generateFlags, cfg *config.Config) (*generate.Result, error) {
	common := generate.CommonOptions{
		OutFile:            cfg.Output.File,
		Format:             cfg.Output.Format,
		Theme:              cfg.Render.Theme,
		Include:            cfg.Include,
		Exclude:            cfg.Exclude,
		DetectTechnologies: cfg.DetectTechnologies,
	}
	delay := time.Duration(cfg.Network.DelayMs) * time.Millisecond
	projectRoot := f.projectRoot
	if abs, err := filepath.Abs(projectRoot); err == nil {
		projectRoot = abs
	}

	switch mode {
	case modeStatic:
		return g.FromStatic(ctx, generate.StaticOptions{CommonOptions: common, RootDir: f.root})
	case modeBuild:
		return g.FromBuild(ctx, generate.BuildOptions{
			CommonOptions: common,
			ProjectRoot:   projectRoot,
			Dirs:          cfg.BuildScan.Dirs,
		})
	case modeAdapter:
		return g.FromAdapter(ctx, generate.AdapterOptions{
			CommonOptions:  common,
			ProjectRoot:    projectRoot,
			BaseURL:        cfg.BaseURL,
			Adapter:        f.adapterName,
			Concurrency:    cfg.Concurrency,
			RequestDelay:   delay,
			ObeyRobots:     cfg.ObeyRobots,
			Params:         cfg.Params,
			RouteParams:    cfg.RouteParams,
			SamplerTimeout: f.samplerLimit,
			Routes:         cfg.Routes,
		})
	case modeSitemap:
		return g.FromSitemap(ctx, generate.SitemapOptions{
			CommonOptions:      common,
			SitemapURL:         f.sitemap,
			BaseURL:            cfg.BaseURL,
			MaxPages:           cfg.MaxPages,
			Concurrency:        cfg.Concurrency,
			RequestDelay:       delay,
			ObeyRobots:         cfg.ObeyRobots,
			SitemapConcurrency: cfg.Network.Sitemap.Concurrency,
			SitemapDelay:       time.Duration(cfg.Network.Sitemap.DelayMs) * time.Millisecond,
		})
	case modeURL:
		return g.FromURL(ctx, generate.URLOptions{
			CommonOptions: common,
			BaseURL:       cfg.BaseURL,
			MaxPages:      cfg.MaxPages,
			Concurrency:   cfg.Concurrency,
			RequestDelay:  delay,
			ObeyRobots:    cfg.ObeyRobots,
		})
	case modeAuto:
		return g.Auto(ctx, generate.AutoOptions{
			CommonOptions:  common,
			RootDir:        f.root,
			ProjectRoot:    projectRoot,
			BuildDirs:      cfg.BuildScan.Dirs,
			BaseURL:        cfg.BaseURL,
			MaxPages:       cfg.MaxPages,
			Concurrency:    cfg.Concurrency,
			RequestDelay:   delay,
			ObeyRobots:     cfg.ObeyRobots,
			Adapter:        f.adapterName,
			Params:         cfg.Params,
			RouteParams:    cfg.RouteParams,
			Routes:         cfg.Routes,
			SamplerTimeout: f.samplerLimit,
		})
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}
