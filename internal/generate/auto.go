package generate

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Harvey-AU/llmoptimizer/internal/extractor"
)

// AutoOptions configure Auto. Each field feeds the strategy that uses it.
type AutoOptions struct {
	CommonOptions
	RootDir      string // static scan; skipped when empty
	ProjectRoot  string // build scan and adapter detection; default "."
	BuildDirs    []string
	BaseURL      string // adapter and crawl; both are skipped when empty
	MaxPages     int
	Concurrency  int
	RequestDelay time.Duration
	ObeyRobots   bool

	Adapter        string
	Params         map[string][]string
	RouteParams    map[string]map[string][]string
	Routes         []string
	Sampler        func(name string) []string
	SamplerTimeout time.Duration
}

// Auto escalates through static scan, build scan, adapter routes and crawl,
// stopping at the first strategy that yields pages. Output is always written,
// even when every strategy comes back empty.
func (g *Generator) Auto(ctx context.Context, opts AutoOptions) (*Result, error) {
	r := g.begin(StrategyAuto)

	pages, strategy, err := g.escalate(ctx, opts)
	if err != nil {
		return nil, err
	}
	if strategy != "" {
		r.strategy = strategy
	} else {
		log.Warn().Str("run_id", r.id).Msg("No strategy produced pages, writing empty output")
	}
	return g.finish(ctx, r, opts.CommonOptions, opts.BaseURL, pages)
}

func (g *Generator) escalate(ctx context.Context, opts AutoOptions) ([]extractor.PageExtract, string, error) {
	if opts.RootDir != "" {
		pages, err := g.scanStatic(ctx, StaticOptions{CommonOptions: opts.CommonOptions, RootDir: opts.RootDir})
		if err != nil {
			log.Warn().Err(err).Str("root", opts.RootDir).Msg("Static scan failed")
		} else if len(pages) > 0 {
			return pages, StrategyStatic, nil
		}
		log.Info().Str("next", StrategyBuild).Msg("Static scan produced no pages")
	}

	pages, err := g.scanBuild(ctx, BuildOptions{
		CommonOptions: opts.CommonOptions,
		ProjectRoot:   opts.ProjectRoot,
		Dirs:          opts.BuildDirs,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Build scan failed")
	} else if len(pages) > 0 {
		return pages, StrategyBuild, nil
	}

	if opts.BaseURL == "" {
		log.Info().Msg("Build scan produced no pages and no base URL is set")
		return nil, "", nil
	}
	log.Info().Str("next", StrategyAdapter).Msg("Build scan produced no pages")

	adapterOpts := AdapterOptions{
		CommonOptions:  opts.CommonOptions,
		ProjectRoot:    opts.ProjectRoot,
		BaseURL:        opts.BaseURL,
		Adapter:        opts.Adapter,
		Concurrency:    opts.Concurrency,
		RequestDelay:   opts.RequestDelay,
		ObeyRobots:     opts.ObeyRobots,
		Params:         opts.Params,
		RouteParams:    opts.RouteParams,
		Sampler:        opts.Sampler,
		SamplerTimeout: opts.SamplerTimeout,
		Routes:         opts.Routes,
	}
	if seeds := g.adapterSeeds(adapterOpts); len(seeds) > 0 {
		pages, err := g.fetchRoutes(ctx, adapterOpts, seeds)
		if err != nil {
			return nil, "", err
		}
		if len(pages) > 0 {
			return pages, StrategyAdapter, nil
		}
	}
	log.Info().Str("next", StrategyURL).Msg("Adapter routes produced no pages")

	pages, err = g.crawlURL(ctx, URLOptions{
		CommonOptions: opts.CommonOptions,
		BaseURL:       opts.BaseURL,
		MaxPages:      opts.MaxPages,
		Concurrency:   opts.Concurrency,
		RequestDelay:  opts.RequestDelay,
		ObeyRobots:    opts.ObeyRobots,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", err
		}
		log.Warn().Err(err).Str("base_url", opts.BaseURL).Msg("Crawl failed")
		return nil, "", nil
	}
	if len(pages) == 0 {
		log.Info().Str("base_url", opts.BaseURL).Msg("Crawl produced no pages")
		return nil, "", nil
	}
	return pages, StrategyURL, nil
}
