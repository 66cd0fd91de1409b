package crawler

import (
	"net/http"
	"strings"
	"time"
)

// Response is the subset of an HTTP response the crawler needs.
type Response struct {
	URL         string
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
}

// OK reports whether the response has a 2xx status.
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// IsHTML reports whether the response declares an HTML content type.
func (r *Response) IsHTML() bool {
	return r != nil && strings.Contains(strings.ToLower(r.ContentType), "text/html")
}

// FetchedPage is one crawl result. Status is 0 when the fetch failed outright.
type FetchedPage struct {
	URL         string      `json:"url"`
	Status      int         `json:"status"`
	ContentType string      `json:"contentType,omitempty"`
	HTML        string      `json:"html,omitempty"`
	Header      http.Header `json:"-"`
}

// Options defines configuration options for a crawl operation
type Options struct {
	StartURLs    []string      // Seed URLs, filtered like discovered links
	BaseURL      string        // Origin restriction and robots.txt source; empty disables both
	MaxPages     int           // Upper bound on returned results
	Concurrency  int           // Number of concurrent fetches per batch
	RequestDelay time.Duration // Minimum gap between request dispatches
	ObeyRobots   bool          // Whether to honour robots.txt for BaseURL's origin
	Include      []string      // At least one must match when non-empty
	Exclude      []string      // None may match
}

// SitemapOptions configures sitemap resolution.
type SitemapOptions struct {
	Entry       string        // First sitemap to fetch
	BaseURL     string        // Keep only page URLs on this origin when set
	Limit       int           // Maximum page URLs to collect (<= 0 means unbounded)
	Concurrency int           // Sitemaps fetched per batch
	Delay       time.Duration // Minimum gap between sitemap requests
}
