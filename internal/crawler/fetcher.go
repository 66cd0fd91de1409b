package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/rs/zerolog/log"

	"github.com/Harvey-AU/llmoptimizer/internal/observability"
)

// Fetcher retrieves a single URL. Implementations return a Response for any
// HTTP answer, including non-2xx statuses, and an error only when no response
// was received.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) (*Response, error)

// Fetch calls f(ctx, url).
func (f FetcherFunc) Fetch(ctx context.Context, url string) (*Response, error) {
	return f(ctx, url)
}

// CollyFetcher is the default Fetcher, backed by a colly collector.
type CollyFetcher struct {
	config *Config
	colly  *colly.Collector
}

// NewCollyFetcher creates a fetcher with the given configuration.
// If config is nil, default configuration is used
func NewCollyFetcher(config *Config) *CollyFetcher {
	if config == nil {
		config = DefaultConfig()
	}

	opts := []colly.CollectorOption{
		colly.UserAgent(config.UserAgent),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.IgnoreRobotsTxt(),
	}
	if config.MaxBodySize > 0 {
		opts = append(opts, colly.MaxBodySize(config.MaxBodySize))
	}
	c := colly.NewCollector(opts...)

	var transport http.RoundTripper = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 25,
		IdleConnTimeout:     120 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		ForceAttemptHTTP2:   true,
	}
	if config.Instrument {
		transport = observability.InstrumentTransport(transport)
	}

	c.SetClient(&http.Client{
		Timeout:   config.DefaultTimeout,
		Transport: transport,
	})

	return &CollyFetcher{
		config: config,
		colly:  c,
	}
}

// Fetch performs a GET of targetURL. It respects context cancellation; a
// request abandoned because of ctx keeps running in the background until the
// client timeout fires.
func (f *CollyFetcher) Fetch(ctx context.Context, targetURL string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var res *Response
	var fetchErr error

	collyClone := f.colly.Clone()

	// Add browser-like headers to avoid blocking
	collyClone.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")

		log.Debug().
			Str("url", r.URL.String()).
			Msg("Fetcher sending request")
	})

	collyClone.OnResponse(func(r *colly.Response) {
		header := http.Header{}
		if r.Headers != nil {
			header = r.Headers.Clone()
		}
		res = &Response{
			URL:         targetURL,
			StatusCode:  r.StatusCode,
			ContentType: header.Get("Content-Type"),
			Header:      header,
			Body:        r.Body,
		}
	})

	collyClone.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil && r.StatusCode > 0 && res == nil {
			var header http.Header
			if r.Headers != nil {
				header = r.Headers.Clone()
			}
			res = &Response{
				URL:         targetURL,
				StatusCode:  r.StatusCode,
				ContentType: header.Get("Content-Type"),
				Header:      header,
				Body:        r.Body,
			}
		}
	})

	done := make(chan error, 1)

	// Visit in a goroutine so the caller can abandon it on cancellation
	go func() {
		done <- collyClone.Visit(targetURL)
	}()

	select {
	case err := <-done:
		if res != nil {
			return res, nil
		}
		if err == nil {
			err = fetchErr
		}
		if err == nil {
			err = errors.New("no response received")
		}
		return nil, fmt.Errorf("fetch %s: %w", targetURL, err)
	case <-ctx.Done():
		log.Debug().
			Err(ctx.Err()).
			Str("url", targetURL).
			Msg("Fetch cancelled due to context")
		return nil, ctx.Err()
	}
}

// observedFetcher wraps a Fetcher with a span and fetch metrics.
type observedFetcher struct {
	next   Fetcher
	source string
}

func (o observedFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	ctx, span := observability.StartFetchSpan(ctx, observability.FetchSpanInfo{URL: url, Source: o.source})
	defer span.End()

	start := time.Now()
	resp, err := o.next.Fetch(ctx, url)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	if err != nil {
		span.RecordError(err)
	}
	observability.RecordFetch(ctx, observability.FetchMetrics{
		Source:   o.source,
		Status:   status,
		Duration: time.Since(start),
	})
	return resp, err
}
