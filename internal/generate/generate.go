// Package generate composes discovery, fetching and extraction into the
// strategies that produce an llms.txt document.
package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Harvey-AU/llmoptimizer/internal/crawler"
	"github.com/Harvey-AU/llmoptimizer/internal/db"
	"github.com/Harvey-AU/llmoptimizer/internal/extractor"
	"github.com/Harvey-AU/llmoptimizer/internal/observability"
	"github.com/Harvey-AU/llmoptimizer/internal/render"
	"github.com/Harvey-AU/llmoptimizer/internal/techdetect"
)

// ErrBaseURLRequired is returned before any I/O by strategies that need a site URL.
var ErrBaseURLRequired = errors.New("base URL is required")

// Strategy names as recorded on results, metrics and stored runs.
const (
	StrategyURL     = "url"
	StrategySitemap = "sitemap"
	StrategyStatic  = "static"
	StrategyBuild   = "build"
	StrategyAdapter = "adapter"
	StrategyPages   = "pages"
	StrategyAuto    = "auto"
)

const (
	defaultOutFile     = "llms.txt"
	defaultMaxPages    = 100
	defaultConcurrency = 5
	// Adapter mode falls back to a crawl of this size when it finds no routes.
	adapterFallbackPages = 100
	isoMillis            = "2006-01-02T15:04:05.000Z"
)

// TechDetector fingerprints a fetched page.
type TechDetector interface {
	Detect(headers http.Header, body []byte) *techdetect.Result
}

// PageStore persists a finished run.
type PageStore interface {
	SaveRun(ctx context.Context, run db.Run, pages []extractor.PageExtract) error
}

// Options wires a Generator's collaborators. Every field is optional.
type Options struct {
	Fetcher  crawler.Fetcher // nil uses a CollyFetcher
	Renderer render.Renderer // used when a call sets no Renderer; nil uses the theme
	Detector TechDetector
	Store    PageStore
	Now      func() time.Time
}

// Generator runs generation strategies. It keeps no state between calls.
type Generator struct {
	opts Options
}

// New creates a Generator.
func New(opts Options) *Generator {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Fetcher == nil {
		opts.Fetcher = crawler.NewCollyFetcher(nil)
	}
	return &Generator{opts: opts}
}

// CommonOptions apply to every strategy.
type CommonOptions struct {
	OutFile            string
	Format             string // "markdown" (default) or "json"
	Theme              string
	Renderer           render.Renderer
	Include            []string
	Exclude            []string
	DetectTechnologies bool // network strategies only
}

// Result describes a written document.
type Result struct {
	RunID    string
	Strategy string
	OutFile  string
	Pages    []extractor.PageExtract
	Site     render.SiteSummary
}

// RawPage is caller-supplied HTML.
type RawPage struct {
	URL  string
	HTML string
}

// PagesOptions configure FromPages.
type PagesOptions struct {
	CommonOptions
	BaseURL string
}

// run tracks one strategy invocation.
type run struct {
	id       string
	strategy string
	start    time.Time
}

func (g *Generator) begin(strategy string) run {
	r := run{id: uuid.NewString(), strategy: strategy, start: time.Now()}
	log.Info().Str("run_id", r.id).Str("strategy", strategy).Msg("Starting generation")
	return r
}

// newCrawler gives each call its own robots cache.
func (g *Generator) newCrawler() *crawler.Crawler {
	return crawler.New(g.opts.Fetcher)
}

// FromPages extracts and renders HTML the caller already has.
func (g *Generator) FromPages(ctx context.Context, pages []RawPage, opts PagesOptions) (*Result, error) {
	r := g.begin(StrategyPages)
	out := make([]extractor.PageExtract, 0, len(pages))
	for _, p := range pages {
		out = append(out, extractor.Extract(p.URL, p.HTML))
	}
	return g.finish(ctx, r, opts.CommonOptions, opts.BaseURL, out)
}

// extractFetched turns 2xx HTML crawl results into page records.
func (g *Generator) extractFetched(fetched []crawler.FetchedPage, detect bool) []extractor.PageExtract {
	out := make([]extractor.PageExtract, 0, len(fetched))
	for _, p := range fetched {
		if p.HTML == "" || p.Status < 200 || p.Status >= 300 {
			continue
		}
		out = append(out, g.extractOne(p, detect))
	}
	return out
}

func (g *Generator) extractOne(p crawler.FetchedPage, detect bool) extractor.PageExtract {
	pe := extractor.Extract(p.URL, p.HTML)
	if detect && g.opts.Detector != nil {
		pe.Technologies = g.opts.Detector.Detect(p.Header, []byte(p.HTML)).Names()
	}
	return pe
}

// finish writes the document, persists the run and records metrics.
func (g *Generator) finish(ctx context.Context, r run, common CommonOptions, baseURL string, pages []extractor.PageExtract) (*Result, error) {
	if pages == nil {
		pages = []extractor.PageExtract{}
	}
	generatedAt := g.opts.Now().UTC()
	site := render.SiteSummary{
		GeneratedAt: generatedAt.Format(isoMillis),
		PageCount:   len(pages),
		Locales:     render.Locales(pages),
	}
	if baseURL != "" {
		site.BaseURL = &baseURL
	}

	outFile := common.OutFile
	if outFile == "" {
		outFile = defaultOutFile
	}
	if err := g.writeOutput(outFile, common, site, pages); err != nil {
		return nil, err
	}

	if g.opts.Store != nil {
		stored := db.Run{
			ID:          r.id,
			BaseURL:     baseURL,
			Strategy:    r.strategy,
			GeneratedAt: generatedAt,
			PageCount:   len(pages),
			Locales:     site.Locales,
			OutFile:     outFile,
		}
		if err := g.opts.Store.SaveRun(ctx, stored, pages); err != nil {
			log.Error().Err(err).Str("run_id", r.id).Msg("Failed to persist generation run")
		}
	}

	duration := time.Since(r.start)
	observability.RecordGeneration(ctx, observability.GenerationMetrics{
		Strategy: r.strategy,
		Pages:    len(pages),
		Duration: duration,
	})

	log.Info().
		Str("run_id", r.id).
		Str("strategy", r.strategy).
		Str("out_file", outFile).
		Int("pages", len(pages)).
		Dur("duration", duration).
		Msg("Generation complete")

	return &Result{RunID: r.id, Strategy: r.strategy, OutFile: outFile, Pages: pages, Site: site}, nil
}

func (g *Generator) writeOutput(outFile string, common CommonOptions, site render.SiteSummary, pages []extractor.PageExtract) error {
	if err := os.MkdirAll(filepath.Dir(outFile), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var data []byte
	if common.Format == "json" {
		encoded, err := render.JSON(site, pages)
		if err != nil {
			return err
		}
		data = encoded
	} else {
		renderer := common.Renderer
		if renderer == nil {
			renderer = g.opts.Renderer
		}
		if renderer == nil {
			renderer = render.Markdown(common.Theme)
		}
		data = []byte(renderer(site, pages))
	}

	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outFile, err)
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
