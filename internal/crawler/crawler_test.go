package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite serves canned responses and counts fetches per URL.
type fakeSite struct {
	mu      sync.Mutex
	pages   map[string]*Response
	errs    map[string]error
	fetched map[string]int
	// generate builds responses for URLs not in pages
	generate func(u string) *Response
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		pages:   make(map[string]*Response),
		errs:    make(map[string]error),
		fetched: make(map[string]int),
	}
}

func (s *fakeSite) html(u, body string) {
	s.pages[u] = &Response{URL: u, StatusCode: 200, ContentType: "text/html; charset=utf-8", Body: []byte(body)}
}

func (s *fakeSite) Fetch(_ context.Context, u string) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched[u]++
	if err, ok := s.errs[u]; ok {
		return nil, err
	}
	if r, ok := s.pages[u]; ok {
		return r, nil
	}
	if s.generate != nil {
		if r := s.generate(u); r != nil {
			return r, nil
		}
	}
	return &Response{URL: u, StatusCode: 404, ContentType: "text/plain"}, nil
}

func (s *fakeSite) count(u string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetched[u]
}

func anchors(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">link</a>`, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// infiniteSite links every /n page to /n+1 and /n+2 forever.
func infiniteSite() *fakeSite {
	site := newFakeSite()
	site.generate = func(u string) *Response {
		if strings.HasSuffix(u, "/robots.txt") {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimPrefix(u, "https://example.com/p/"))
		if err != nil {
			n = 0
		}
		body := anchors(fmt.Sprintf("/p/%d", n+1), fmt.Sprintf("/p/%d", n+2), "/p/0")
		return &Response{URL: u, StatusCode: 200, ContentType: "text/html", Body: []byte(body)}
	}
	return site
}

func TestCrawlRespectsMaxPages(t *testing.T) {
	for _, maxPages := range []int{1, 2, 5, 17} {
		for _, concurrency := range []int{1, 3, 8} {
			t.Run(fmt.Sprintf("max_%d_conc_%d", maxPages, concurrency), func(t *testing.T) {
				site := infiniteSite()
				c := New(site)

				pages, err := c.Crawl(context.Background(), Options{
					StartURLs:   []string{"https://example.com/p/0"},
					BaseURL:     "https://example.com",
					MaxPages:    maxPages,
					Concurrency: concurrency,
				})
				require.NoError(t, err)
				assert.Len(t, pages, maxPages)
			})
		}
	}
}

func TestCrawlNeverFetchesTwice(t *testing.T) {
	site := newFakeSite()
	site.html("https://example.com/", anchors("/a", "/b", "/c", "/"))
	site.html("https://example.com/a", anchors("/b", "/c", "/", "/a#frag"))
	site.html("https://example.com/b", anchors("/a", "/c"))
	site.html("https://example.com/c", anchors("/a", "/b", "https://example.com/"))

	c := New(site)
	pages, err := c.Crawl(context.Background(), Options{
		StartURLs:   []string{"https://example.com/", "https://example.com/"},
		BaseURL:     "https://example.com",
		MaxPages:    50,
		Concurrency: 4,
	})
	require.NoError(t, err)
	assert.Len(t, pages, 4)

	seen := map[string]bool{}
	for _, p := range pages {
		assert.False(t, seen[p.URL], "duplicate result %s", p.URL)
		seen[p.URL] = true
		assert.Equal(t, 1, site.count(p.URL), "fetched %s more than once", p.URL)
	}
}

func TestCrawlSeedMatchesHarvestedLinks(t *testing.T) {
	site := newFakeSite()
	site.html("https://example.com/", anchors("/", "/a", "https://example.com#top"))
	site.html("https://example.com/a", anchors("/"))

	c := New(site)
	pages, err := c.Crawl(context.Background(), Options{
		StartURLs:   []string{"https://example.com", "https://example.com/#intro", "mailto:hi@example.com"},
		BaseURL:     "https://example.com",
		MaxPages:    10,
		Concurrency: 2,
	})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "https://example.com/", pages[0].URL)
	assert.Equal(t, "https://example.com/a", pages[1].URL)
	assert.Equal(t, 1, site.count("https://example.com/"))
	assert.Zero(t, site.count("https://example.com"))
}

func TestCanonicalURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"https://example.com", "https://example.com/", true},
		{" https://example.com/docs#a ", "https://example.com/docs", true},
		{"http://example.com/?q=1", "http://example.com/?q=1", true},
		{"ftp://example.com/", "", false},
		{"/relative", "", false},
	}
	for _, tt := range tests {
		got, ok := CanonicalURL(tt.raw)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestCrawlRobotsAndOrigin(t *testing.T) {
	site := newFakeSite()
	site.pages["https://example.com/robots.txt"] = &Response{
		StatusCode: 200,
		Body:       []byte("User-agent: *\nDisallow: /private\nAllow: /private/public\n"),
	}
	site.html("https://example.com/", anchors("/private/x", "/private/public/y", "https://other.org/z", "mailto:a@b.c"))
	site.html("https://example.com/private/public/y", anchors())

	c := New(site)
	pages, err := c.Crawl(context.Background(), Options{
		StartURLs:   []string{"https://example.com/"},
		BaseURL:     "https://example.com",
		MaxPages:    10,
		Concurrency: 2,
		ObeyRobots:  true,
	})
	require.NoError(t, err)

	var urls []string
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	assert.ElementsMatch(t, []string{"https://example.com/", "https://example.com/private/public/y"}, urls)
	assert.Zero(t, site.count("https://example.com/private/x"))
	assert.Zero(t, site.count("https://other.org/z"))
	assert.Equal(t, 1, site.count("https://example.com/robots.txt"))
}

func TestCrawlIgnoresRobotsWhenDisabled(t *testing.T) {
	site := newFakeSite()
	site.pages["https://example.com/robots.txt"] = &Response{StatusCode: 200, Body: []byte("User-agent: *\nDisallow: /\n")}
	site.html("https://example.com/", anchors())

	pages, err := New(site).Crawl(context.Background(), Options{
		StartURLs: []string{"https://example.com/"},
		BaseURL:   "https://example.com",
		MaxPages:  5,
	})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Zero(t, site.count("https://example.com/robots.txt"))
}

func TestCrawlIncludeExclude(t *testing.T) {
	site := newFakeSite()
	site.html("https://example.com/docs/", anchors("/docs/a", "/docs/private/b", "/blog/c"))
	site.html("https://example.com/docs/a", anchors())

	pages, err := New(site).Crawl(context.Background(), Options{
		StartURLs:   []string{"https://example.com/docs/"},
		BaseURL:     "https://example.com",
		MaxPages:    10,
		Concurrency: 2,
		Include:     []string{"https://example.com/docs/*"},
		Exclude:     []string{"/private/"},
	})
	require.NoError(t, err)

	var urls []string
	for _, p := range pages {
		urls = append(urls, p.URL)
	}
	assert.ElementsMatch(t, []string{"https://example.com/docs/", "https://example.com/docs/a"}, urls)
}

func TestCrawlRecordsFailures(t *testing.T) {
	site := newFakeSite()
	site.html("https://example.com/", anchors("/broken", "/missing", "/file.pdf"))
	site.errs["https://example.com/broken"] = errors.New("connection reset")
	site.pages["https://example.com/file.pdf"] = &Response{StatusCode: 200, ContentType: "application/pdf", Body: []byte("%PDF")}

	pages, err := New(site).Crawl(context.Background(), Options{
		StartURLs:   []string{"https://example.com/"},
		BaseURL:     "https://example.com",
		MaxPages:    10,
		Concurrency: 3,
	})
	require.NoError(t, err)
	require.Len(t, pages, 4)

	byURL := map[string]FetchedPage{}
	for _, p := range pages {
		byURL[p.URL] = p
	}
	assert.Equal(t, 0, byURL["https://example.com/broken"].Status)
	assert.Equal(t, 404, byURL["https://example.com/missing"].Status)
	assert.Equal(t, "application/pdf", byURL["https://example.com/file.pdf"].ContentType)
	assert.Empty(t, byURL["https://example.com/file.pdf"].HTML)
	assert.NotEmpty(t, byURL["https://example.com/"].HTML)
}

func TestCrawlBreadthFirstBatches(t *testing.T) {
	site := newFakeSite()
	site.html("https://example.com/", anchors("/a", "/b"))
	site.html("https://example.com/a", anchors("/a/deep"))
	site.html("https://example.com/b", anchors())
	site.html("https://example.com/a/deep", anchors())

	pages, err := New(site).Crawl(context.Background(), Options{
		StartURLs:   []string{"https://example.com/"},
		BaseURL:     "https://example.com",
		MaxPages:    10,
		Concurrency: 1,
	})
	require.NoError(t, err)
	require.Len(t, pages, 4)
	assert.Equal(t, "https://example.com/", pages[0].URL)
	assert.Equal(t, "https://example.com/a/deep", pages[3].URL)
}

func TestCrawlInvalidOptions(t *testing.T) {
	c := New(newFakeSite())

	_, err := c.Crawl(context.Background(), Options{StartURLs: []string{"https://example.com"}, MaxPages: 0})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	_, err = c.Crawl(context.Background(), Options{BaseURL: "/relative", MaxPages: 1})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestCrawlCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pages, err := New(infiniteSite()).Crawl(ctx, Options{
		StartURLs: []string{"https://example.com/p/0"},
		MaxPages:  5,
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pages)
}

func TestCrawlRequestDelay(t *testing.T) {
	site := newFakeSite()
	site.html("https://example.com/", anchors("/a", "/b"))

	start := time.Now()
	pages, err := New(site).Crawl(context.Background(), Options{
		StartURLs:    []string{"https://example.com/"},
		BaseURL:      "https://example.com",
		MaxPages:     3,
		Concurrency:  3,
		RequestDelay: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Len(t, pages, 3)
	// Three dispatches need at least two gaps
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestCollyFetcherWithServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><body><a href="/next">next</a></body></html>`)
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "<html><body>gone</body></html>")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Instrument = false
	fetcher := NewCollyFetcher(cfg)

	resp, err := fetcher.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.True(t, resp.IsHTML())
	assert.Contains(t, string(resp.Body), `href="/next"`)

	resp, err = fetcher.Fetch(context.Background(), srv.URL+"/next")
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode)
	assert.False(t, resp.OK())

	pages, err := New(fetcher).Crawl(context.Background(), Options{
		StartURLs:   []string{srv.URL + "/"},
		BaseURL:     srv.URL,
		MaxPages:    10,
		Concurrency: 2,
	})
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestCollyFetcherConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	cfg := DefaultConfig()
	cfg.Instrument = false
	cfg.DefaultTimeout = 2 * time.Second

	_, err := NewCollyFetcher(cfg).Fetch(context.Background(), addr+"/")
	assert.Error(t, err)
}
