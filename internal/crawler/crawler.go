package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Harvey-AU/llmoptimizer/internal/cache"
	"github.com/Harvey-AU/llmoptimizer/internal/util"
)

// ErrInvalidOptions is returned by Crawl when the options cannot describe a crawl.
var ErrInvalidOptions = errors.New("invalid crawl options")

// Crawler performs bounded breadth-first crawls and sitemap resolution.
// Robots rules are fetched once per origin and reused for the Crawler's lifetime.
type Crawler struct {
	fetcher Fetcher
	robots  *cache.InMemoryCache[*RobotsRules]
}

// New creates a Crawler. If fetcher is nil a CollyFetcher with default
// configuration is used.
func New(fetcher Fetcher) *Crawler {
	if fetcher == nil {
		fetcher = NewCollyFetcher(nil)
	}
	return &Crawler{
		fetcher: fetcher,
		robots:  cache.NewInMemoryCache[*RobotsRules](),
	}
}

// Fetcher returns the fetcher used by the crawler.
func (c *Crawler) Fetcher() Fetcher {
	return c.fetcher
}

// RobotsFor returns the robots rules of origin, fetching them on first use.
// A nil result means no restrictions.
func (c *Crawler) RobotsFor(ctx context.Context, origin string) *RobotsRules {
	return c.robots.GetOrLoad(origin, func() *RobotsRules {
		return FetchRobots(ctx, observedFetcher{next: c.fetcher, source: "robots"}, origin)
	})
}

// frontier is the crawl's transient queue state. Every dequeued URL is in
// visited; enqueued stops the same URL being queued twice.
type frontier struct {
	mu       sync.Mutex
	visited  map[string]struct{}
	enqueued map[string]struct{}
	queue    []string
}

func newFrontier() *frontier {
	return &frontier{
		visited:  make(map[string]struct{}),
		enqueued: make(map[string]struct{}),
	}
}

// offer queues u if it is new and the queue is below limit. Callers hold mu.
func (f *frontier) offer(u string, limit int) bool {
	if len(f.queue) >= limit {
		return false
	}
	if _, ok := f.visited[u]; ok {
		return false
	}
	if _, ok := f.enqueued[u]; ok {
		return false
	}
	f.queue = append(f.queue, u)
	f.enqueued[u] = struct{}{}
	return true
}

// take dequeues up to n URLs and marks them visited.
func (f *frontier) take(n int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > len(f.queue) {
		n = len(f.queue)
	}
	batch := make([]string, n)
	copy(batch, f.queue[:n])
	f.queue = f.queue[n:]
	for _, u := range batch {
		f.visited[u] = struct{}{}
	}
	return batch
}

func (f *frontier) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// visitFilter decides whether a URL may enter the frontier.
type visitFilter struct {
	base    *url.URL
	robots  *RobotsRules
	matcher *Matcher
}

func (v visitFilter) allows(u string) bool {
	if v.base != nil && !util.SameOrigin(v.base, u) {
		return false
	}
	if !IsAllowed(v.robots, u) {
		return false
	}
	return v.matcher.Allows(u)
}

// Crawl fetches pages breadth-first from opts.StartURLs. At most MaxPages
// results are returned and no URL is fetched twice. Fetch failures appear as
// results with Status 0. Cancelling ctx stops new batches; the pages collected
// so far are returned with ctx.Err().
func (c *Crawler) Crawl(ctx context.Context, opts Options) ([]FetchedPage, error) {
	if opts.MaxPages <= 0 {
		return nil, fmt.Errorf("%w: max pages must be positive, got %d", ErrInvalidOptions, opts.MaxPages)
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	filter := visitFilter{matcher: NewMatcher(opts.Include, opts.Exclude)}
	if opts.BaseURL != "" {
		base, err := url.Parse(opts.BaseURL)
		if err != nil || base.Scheme == "" || base.Host == "" {
			return nil, fmt.Errorf("%w: base url %q is not absolute", ErrInvalidOptions, opts.BaseURL)
		}
		filter.base = base
		if opts.ObeyRobots {
			filter.robots = c.RobotsFor(ctx, util.Origin(base))
		}
	}

	log.Info().
		Str("base_url", opts.BaseURL).
		Int("seeds", len(opts.StartURLs)).
		Int("max_pages", opts.MaxPages).
		Int("concurrency", concurrency).
		Msg("Starting crawl")

	f := newFrontier()
	f.mu.Lock()
	for _, raw := range opts.StartURLs {
		s, ok := CanonicalURL(raw)
		if !ok {
			log.Debug().Str("url", raw).Msg("Skipping invalid start URL")
			continue
		}
		if filter.allows(s) {
			f.offer(s, opts.MaxPages)
		}
	}
	f.mu.Unlock()

	gate := NewGate(opts.RequestDelay)
	fetcher := observedFetcher{next: c.fetcher, source: "page"}
	out := make([]FetchedPage, 0, opts.MaxPages)

	for f.len() > 0 && len(out) < opts.MaxPages {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		remaining := opts.MaxPages - len(out)
		batch := f.take(max(1, min(f.len(), concurrency, remaining)))

		// Links may be queued while results plus in-flight plus queued stay under MaxPages
		queueLimit := remaining - len(batch)

		results := make([]FetchedPage, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, u := range batch {
			g.Go(func() error {
				results[i] = c.fetchPage(gctx, fetcher, gate, u)
				if results[i].HTML == "" || results[i].Status < 200 || results[i].Status >= 300 {
					return nil
				}

				links := HarvestLinks(results[i].HTML, u)

				f.mu.Lock()
				defer f.mu.Unlock()
				for _, link := range links {
					if len(f.queue) >= queueLimit {
						break
					}
					if filter.allows(link) {
						f.offer(link, queueLimit)
					}
				}
				return nil
			})
		}
		_ = g.Wait() // workers never return errors

		out = append(out, results...)
	}

	log.Info().
		Str("base_url", opts.BaseURL).
		Int("pages", len(out)).
		Msg("Crawl complete")

	return out, nil
}

// FetchOne fetches a single page through the crawler's instrumented fetcher,
// waiting on gate first. Failures come back with Status 0.
func (c *Crawler) FetchOne(ctx context.Context, gate *Gate, u string) FetchedPage {
	return c.fetchPage(ctx, observedFetcher{next: c.fetcher, source: "page"}, gate, u)
}

func (c *Crawler) fetchPage(ctx context.Context, fetcher Fetcher, gate *Gate, u string) FetchedPage {
	if err := gate.Wait(ctx); err != nil {
		return FetchedPage{URL: u}
	}

	resp, err := fetcher.Fetch(ctx, u)
	if err != nil {
		log.Debug().Err(err).Str("url", u).Msg("Fetch failed")
		return FetchedPage{URL: u}
	}

	page := FetchedPage{
		URL:         u,
		Status:      resp.StatusCode,
		ContentType: resp.ContentType,
		Header:      resp.Header,
	}
	if resp.IsHTML() {
		page.HTML = string(resp.Body)
	}

	log.Debug().
		Str("url", u).
		Int("status", page.Status).
		Bool("html", page.HTML != "").
		Msg("Fetched page")
	return page
}
