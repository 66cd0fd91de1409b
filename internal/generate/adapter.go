package generate

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Harvey-AU/llmoptimizer/internal/adapters"
	"github.com/Harvey-AU/llmoptimizer/internal/crawler"
	"github.com/Harvey-AU/llmoptimizer/internal/extractor"
	"github.com/Harvey-AU/llmoptimizer/internal/routes"
	"github.com/Harvey-AU/llmoptimizer/internal/util"
)

// AdapterOptions configure FromAdapter.
type AdapterOptions struct {
	CommonOptions
	ProjectRoot  string // default "."
	BaseURL      string
	Adapter      string // force an adapter by name instead of detecting one
	Concurrency  int
	RequestDelay time.Duration
	ObeyRobots   bool
	// Params and RouteParams take precedence over values the adapter discovers.
	Params      map[string][]string
	RouteParams map[string]map[string][]string
	// Sampler supplies values for parameters nothing else covers. It runs
	// with SamplerTimeout.
	Sampler        func(name string) []string
	SamplerTimeout time.Duration
	// Routes are extra patterns expanded alongside the adapter's routes.
	Routes []string
}

// FromAdapter fetches the concrete URLs of a framework project's routes.
// When no static route can be derived it falls back to a crawl of BaseURL.
func (g *Generator) FromAdapter(ctx context.Context, opts AdapterOptions) (*Result, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: adapter mode fetches routes from a running site", ErrBaseURLRequired)
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
	}

	seeds := g.adapterSeeds(opts)
	if len(seeds) == 0 {
		log.Warn().
			Str("project_root", opts.ProjectRoot).
			Msg("No static routes found, falling back to crawl")
		return g.FromURL(ctx, URLOptions{
			CommonOptions: opts.CommonOptions,
			BaseURL:       opts.BaseURL,
			MaxPages:      adapterFallbackPages,
			Concurrency:   opts.Concurrency,
			RequestDelay:  opts.RequestDelay,
			ObeyRobots:    opts.ObeyRobots,
		})
	}

	r := g.begin(StrategyAdapter)
	pages, err := g.fetchRoutes(ctx, opts, seeds)
	if err != nil {
		return nil, err
	}
	return g.finish(ctx, r, opts.CommonOptions, opts.BaseURL, pages)
}

// adapterSeeds expands the project's route patterns and returns the static
// paths among them.
func (g *Generator) adapterSeeds(opts AdapterOptions) []string {
	root := opts.ProjectRoot
	if root == "" {
		root = "."
	}

	var a adapters.Adapter
	var ok bool
	if opts.Adapter != "" {
		a, ok = adapters.ByName(opts.Adapter)
		if !ok {
			log.Warn().Str("adapter", opts.Adapter).Msg("Unknown adapter, detecting instead")
		}
	}
	if !ok {
		a, ok = adapters.Detect(root)
	}

	var patterns []string
	params := routes.Params{
		Global:         opts.Params,
		PerRoute:       opts.RouteParams,
		Sampler:        opts.Sampler,
		SamplerTimeout: opts.SamplerTimeout,
	}

	if ok {
		res, err := a.Routes(root)
		if err != nil {
			log.Warn().Err(err).Str("adapter", a.Name()).Msg("Adapter route discovery failed")
		}
		patterns = append(patterns, res.Routes...)

		if d, is := a.(adapters.ParamDiscoverer); is {
			discovered, err := d.DiscoverParams(root)
			if err != nil {
				log.Warn().Err(err).Str("adapter", a.Name()).Msg("Parameter discovery failed")
			}
			params.Global = mergeParams(discovered, opts.Params)
		}
		if d, is := a.(adapters.RouteParamDiscoverer); is {
			discovered, err := d.DiscoverRouteParams(root)
			if err != nil {
				log.Warn().Err(err).Str("adapter", a.Name()).Msg("Route parameter discovery failed")
			}
			params.PerRoute = mergeRouteParams(discovered, opts.RouteParams)
		}

		log.Info().
			Str("adapter", a.Name()).
			Int("routes", len(res.Routes)).
			Msg("Adapter routes discovered")
	}
	patterns = append(patterns, opts.Routes...)

	var static []string
	for _, p := range routes.Expand(patterns, params) {
		if !routes.IsDynamic(p) {
			static = append(static, p)
		}
	}
	return static
}

// mergeParams overlays override on base. Empty override lists do not replace
// discovered values.
func mergeParams(base, override map[string][]string) map[string][]string {
	out := make(map[string][]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		if len(v) > 0 {
			out[k] = v
		}
	}
	return out
}

func mergeRouteParams(base, override map[string]map[string][]string) map[string]map[string][]string {
	out := make(map[string]map[string][]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = mergeParams(out[k], v)
	}
	return out
}

// fetchRoutes fetches each route with a fixed pool of workers pulling from a
// shared index. Only 2xx HTML responses become pages; order follows routes.
func (g *Generator) fetchRoutes(ctx context.Context, opts AdapterOptions, paths []string) ([]extractor.PageExtract, error) {
	c := g.newCrawler()

	urls := make([]string, 0, len(paths))
	for _, p := range paths {
		u, err := util.JoinPath(opts.BaseURL, p)
		if err != nil {
			log.Debug().Err(err).Str("route", p).Msg("Skipping unjoinable route")
			continue
		}
		urls = append(urls, u)
	}

	var robots *crawler.RobotsRules
	if opts.ObeyRobots {
		if origin, err := util.OriginOf(opts.BaseURL); err == nil {
			robots = c.RobotsFor(ctx, origin)
		}
	}
	matcher := crawler.NewMatcher(opts.Include, opts.Exclude)
	gate := crawler.NewGate(opts.RequestDelay)

	results := make([]*extractor.PageExtract, len(urls))
	var next atomic.Int64
	var wg sync.WaitGroup
	for range orDefault(opts.Concurrency, defaultConcurrency) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx := int(next.Add(1) - 1)
				if idx >= len(urls) || ctx.Err() != nil {
					return
				}
				u := urls[idx]
				if !crawler.IsAllowed(robots, u) || !matcher.Allows(u) {
					log.Debug().Str("url", u).Msg("Route filtered out")
					continue
				}
				fetched := c.FetchOne(ctx, gate, u)
				if fetched.HTML == "" || fetched.Status < 200 || fetched.Status >= 300 {
					continue
				}
				pe := g.extractOne(fetched, opts.DetectTechnologies)
				results[idx] = &pe
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages := make([]extractor.PageExtract, 0, len(urls))
	for _, p := range results {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	return pages, nil
}
