package generate

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Harvey-AU/llmoptimizer/internal/crawler"
	"github.com/Harvey-AU/llmoptimizer/internal/extractor"
)

// URLOptions configure FromURL.
type URLOptions struct {
	CommonOptions
	BaseURL      string
	MaxPages     int // default 100
	Concurrency  int // default 5
	RequestDelay time.Duration
	ObeyRobots   bool
}

// SitemapOptions configure FromSitemap.
type SitemapOptions struct {
	CommonOptions
	// SitemapURL is the entry sitemap. When empty, sitemaps are discovered
	// from BaseURL's robots.txt or /sitemap.xml.
	SitemapURL         string
	BaseURL            string
	MaxPages           int
	Concurrency        int
	RequestDelay       time.Duration
	ObeyRobots         bool
	SitemapConcurrency int // default 4
	SitemapDelay       time.Duration
}

// FromURL crawls breadth-first from BaseURL.
func (g *Generator) FromURL(ctx context.Context, opts URLOptions) (*Result, error) {
	if opts.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}
	r := g.begin(StrategyURL)

	pages, err := g.crawlURL(ctx, opts)
	if err != nil {
		return nil, err
	}
	return g.finish(ctx, r, opts.CommonOptions, opts.BaseURL, pages)
}

func (g *Generator) crawlURL(ctx context.Context, opts URLOptions) ([]extractor.PageExtract, error) {
	fetched, err := g.newCrawler().Crawl(ctx, crawler.Options{
		StartURLs:    []string{opts.BaseURL},
		BaseURL:      opts.BaseURL,
		MaxPages:     orDefault(opts.MaxPages, defaultMaxPages),
		Concurrency:  orDefault(opts.Concurrency, defaultConcurrency),
		RequestDelay: opts.RequestDelay,
		ObeyRobots:   opts.ObeyRobots,
		Include:      opts.Include,
		Exclude:      opts.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("crawl of %s failed: %w", opts.BaseURL, err)
	}
	return g.extractFetched(fetched, opts.DetectTechnologies), nil
}

// FromSitemap seeds a crawl with the page URLs of a sitemap tree.
func (g *Generator) FromSitemap(ctx context.Context, opts SitemapOptions) (*Result, error) {
	if opts.SitemapURL == "" && opts.BaseURL == "" {
		return nil, fmt.Errorf("%w: sitemap discovery needs a base URL", ErrBaseURLRequired)
	}
	r := g.begin(StrategySitemap)

	pages, err := g.crawlSitemap(ctx, opts)
	if err != nil {
		return nil, err
	}
	return g.finish(ctx, r, opts.CommonOptions, opts.BaseURL, pages)
}

func (g *Generator) crawlSitemap(ctx context.Context, opts SitemapOptions) ([]extractor.PageExtract, error) {
	c := g.newCrawler()
	maxPages := orDefault(opts.MaxPages, defaultMaxPages)

	entries := []string{opts.SitemapURL}
	if opts.SitemapURL == "" {
		found, err := c.DiscoverSitemaps(ctx, opts.BaseURL)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			log.Warn().Str("base_url", opts.BaseURL).Msg("No sitemap found")
			return nil, nil
		}
		entries = found
	}

	var seeds []string
	seen := make(map[string]struct{})
	for _, entry := range entries {
		if len(seeds) >= maxPages {
			break
		}
		urls, err := c.ResolveSitemap(ctx, crawler.SitemapOptions{
			Entry:       entry,
			BaseURL:     opts.BaseURL,
			Limit:       maxPages - len(seeds),
			Concurrency: orDefault(opts.SitemapConcurrency, 4),
			Delay:       opts.SitemapDelay,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve sitemap %s: %w", entry, err)
		}
		for _, u := range urls {
			if _, ok := seen[u]; !ok {
				seen[u] = struct{}{}
				seeds = append(seeds, u)
			}
		}
	}

	if len(seeds) == 0 {
		log.Warn().Strs("sitemaps", entries).Msg("Sitemap listed no pages")
		return nil, nil
	}
	if len(seeds) > maxPages {
		seeds = seeds[:maxPages]
	}

	base := opts.BaseURL
	if base == "" {
		base = seeds[0]
	}

	fetched, err := c.Crawl(ctx, crawler.Options{
		StartURLs:    seeds,
		BaseURL:      base,
		MaxPages:     maxPages,
		Concurrency:  orDefault(opts.Concurrency, defaultConcurrency),
		RequestDelay: opts.RequestDelay,
		ObeyRobots:   opts.ObeyRobots,
		Include:      opts.Include,
		Exclude:      opts.Exclude,
	})
	if err != nil {
		return nil, fmt.Errorf("crawl of sitemap pages failed: %w", err)
	}
	return g.extractFetched(fetched, opts.DetectTechnologies), nil
}
