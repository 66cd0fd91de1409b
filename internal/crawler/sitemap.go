package crawler

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/antchfx/xmlquery"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/Harvey-AU/llmoptimizer/internal/util"
)

var nestedSitemapURL = regexp.MustCompile(`(?i)\.xml($|\?)`)

const (
	urlsetLocPath  = "//*[local-name()='urlset']/*[local-name()='url']/*[local-name()='loc']"
	indexLocPath   = "//*[local-name()='sitemapindex']/*[local-name()='sitemap']/*[local-name()='loc']"
	defaultSitemap = "/sitemap.xml"
)

// ParseSitemap extracts page URLs and nested sitemap URLs from a urlset or
// sitemapindex document. Unknown elements are ignored. A urlset entry that
// looks like an XML file is reported as a nested sitemap.
func ParseSitemap(data []byte) (pages []string, sitemaps []string, err error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("parse sitemap xml: %w", err)
	}

	locs, err := xmlquery.QueryAll(doc, urlsetLocPath)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range locs {
		loc := strings.TrimSpace(n.InnerText())
		if loc == "" {
			continue
		}
		if nestedSitemapURL.MatchString(loc) {
			sitemaps = append(sitemaps, loc)
		} else {
			pages = append(pages, loc)
		}
	}

	nested, err := xmlquery.QueryAll(doc, indexLocPath)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range nested {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			sitemaps = append(sitemaps, loc)
		}
	}

	return pages, sitemaps, nil
}

// sitemapResult is what one fetched sitemap contributes.
type sitemapResult struct {
	pages    []string
	sitemaps []string
}

// ResolveSitemap follows opts.Entry and any nested sitemaps it references and
// returns the deduplicated page URLs in discovery order. Unreachable or
// malformed sitemaps are skipped. Collection stops at opts.Limit.
func (c *Crawler) ResolveSitemap(ctx context.Context, opts SitemapOptions) ([]string, error) {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var origin string
	if opts.BaseURL != "" {
		o, err := util.OriginOf(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: base url %q: %v", ErrInvalidOptions, opts.BaseURL, err)
		}
		origin = o
	}

	full := func(n int) bool { return opts.Limit > 0 && n >= opts.Limit }

	queue := []string{opts.Entry}
	seen := map[string]struct{}{opts.Entry: {}}
	collected := make(map[string]struct{})
	var out []string

	gate := NewGate(opts.Delay)
	sem := semaphore.NewWeighted(int64(concurrency))
	fetcher := observedFetcher{next: c.fetcher, source: "sitemap"}

	for len(queue) > 0 && !full(len(out)) {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		n := min(len(queue), concurrency)
		batch := queue[:n]
		queue = queue[n:]

		results := make([]sitemapResult, len(batch))
		var wg sync.WaitGroup
		for i, sitemapURL := range batch {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				results[i] = c.fetchSitemap(ctx, fetcher, gate, sitemapURL)
			}()
		}
		wg.Wait()

		for _, r := range results {
			for _, s := range r.sitemaps {
				if _, ok := seen[s]; !ok {
					seen[s] = struct{}{}
					queue = append(queue, s)
				}
			}
			for _, p := range r.pages {
				if full(len(out)) {
					break
				}
				if origin != "" && !sameOriginAs(origin, p) {
					continue
				}
				if _, ok := collected[p]; ok {
					continue
				}
				collected[p] = struct{}{}
				out = append(out, p)
			}
		}
	}

	log.Info().
		Str("entry", opts.Entry).
		Int("urls", len(out)).
		Int("sitemaps", len(seen)).
		Msg("Resolved sitemap")

	return out, nil
}

func (c *Crawler) fetchSitemap(ctx context.Context, fetcher Fetcher, gate *Gate, sitemapURL string) sitemapResult {
	if err := gate.Wait(ctx); err != nil {
		return sitemapResult{}
	}

	resp, err := fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		log.Debug().Err(err).Str("sitemap_url", sitemapURL).Msg("Skipping unreachable sitemap")
		return sitemapResult{}
	}
	if !resp.OK() {
		log.Debug().Int("status", resp.StatusCode).Str("sitemap_url", sitemapURL).Msg("Skipping sitemap with error status")
		return sitemapResult{}
	}

	pages, sitemaps, err := ParseSitemap(resp.Body)
	if err != nil {
		log.Warn().Err(err).Str("sitemap_url", sitemapURL).Msg("Skipping malformed sitemap")
		return sitemapResult{}
	}

	log.Debug().
		Str("sitemap_url", sitemapURL).
		Int("pages", len(pages)).
		Int("nested", len(sitemaps)).
		Msg("Parsed sitemap")

	return sitemapResult{pages: pages, sitemaps: sitemaps}
}

func sameOriginAs(origin, raw string) bool {
	base, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return util.SameOrigin(base, raw)
}

// DiscoverSitemaps finds sitemap URLs for baseURL: the Sitemap lines of its
// robots.txt, or <origin>/sitemap.xml when that answers with a 2xx status.
func (c *Crawler) DiscoverSitemaps(ctx context.Context, baseURL string) ([]string, error) {
	origin, err := util.OriginOf(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base url %q: %v", ErrInvalidOptions, baseURL, err)
	}

	if rules := c.RobotsFor(ctx, origin); rules != nil && len(rules.Sitemaps) > 0 {
		log.Debug().
			Strs("sitemaps", rules.Sitemaps).
			Msg("Sitemaps found in robots.txt")
		return rules.Sitemaps, nil
	}

	candidate := origin + defaultSitemap
	resp, err := observedFetcher{next: c.fetcher, source: "sitemap"}.Fetch(ctx, candidate)
	if err != nil || !resp.OK() {
		log.Debug().Str("sitemap_url", candidate).Msg("No sitemap found at default location")
		return nil, nil
	}
	return []string{candidate}, nil
}
