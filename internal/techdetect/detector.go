// Package techdetect fingerprints the technologies behind a fetched page
// using wappalyzergo.
package techdetect

import (
	"net/http"
	"sort"
	"sync"

	wappalyzer "github.com/projectdiscovery/wappalyzergo"
	"github.com/rs/zerolog/log"
)

// Result maps each detected technology to its category names, e.g.
// {"Next.js": ["JavaScript frameworks"], "Cloudflare": ["CDN"]}.
type Result struct {
	Technologies map[string][]string `json:"technologies"`
}

// Names returns the detected technology names sorted.
func (r *Result) Names() []string {
	if r == nil || len(r.Technologies) == 0 {
		return nil
	}
	names := make([]string, 0, len(r.Technologies))
	for n := range r.Technologies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether name was detected.
func (r *Result) Has(name string) bool {
	if r == nil {
		return false
	}
	_, ok := r.Technologies[name]
	return ok
}

// Detector wraps a loaded fingerprint database. It is safe for concurrent use.
type Detector struct {
	client *wappalyzer.Wappalyze
	mu     sync.RWMutex
}

var (
	categoryNames     map[int]string
	categoryNamesOnce sync.Once
)

// New loads the fingerprint database.
func New() (*Detector, error) {
	client, err := wappalyzer.New()
	if err != nil {
		return nil, err
	}

	categoryNamesOnce.Do(func() {
		categoryNames = make(map[int]string)
		for id, cat := range wappalyzer.GetCategoriesMapping() {
			categoryNames[id] = cat.Name
		}
	})

	return &Detector{client: client}, nil
}

// Detect fingerprints a page from its response headers and body.
func (d *Detector) Detect(headers http.Header, body []byte) *Result {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := &Result{Technologies: make(map[string][]string)}
	if headers == nil {
		headers = http.Header{}
	}

	for tech, info := range d.client.FingerprintWithCats(headers, body) {
		categories := make([]string, 0, len(info.Cats))
		for _, id := range info.Cats {
			if name, ok := categoryNames[id]; ok {
				categories = append(categories, name)
			}
		}
		sort.Strings(categories)
		result.Technologies[tech] = categories
	}

	log.Debug().
		Int("tech_count", len(result.Technologies)).
		Strs("technologies", result.Names()).
		Msg("Technology detection completed")

	return result
}

// Merge unions page results into one site-level result.
func Merge(results ...*Result) *Result {
	out := &Result{Technologies: make(map[string][]string)}
	for _, r := range results {
		if r == nil {
			continue
		}
		for name, cats := range r.Technologies {
			if _, ok := out.Technologies[name]; !ok {
				out.Technologies[name] = cats
			}
		}
	}
	return out
}
