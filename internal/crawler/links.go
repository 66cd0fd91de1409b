package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Harvey-AU/llmoptimizer/internal/util"
)

// maxHarvestedLinks caps the links taken from a single page.
const maxHarvestedLinks = 200

var anchorHref = regexp.MustCompile(`(?i)<a\s+[^>]*href=["']([^"']+)["'][^>]*>`)

// HarvestLinks pulls anchor hrefs out of raw HTML with a regular expression,
// resolves them against pageURL and keeps unique http(s) URLs in document
// order. It is a cheap approximation for frontier expansion; the extractor
// does the precise parse.
func HarvestLinks(html, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	for _, m := range anchorHref.FindAllStringSubmatch(html, -1) {
		u, err := util.Resolve(base, m[1])
		if err != nil {
			continue
		}
		s, ok := canonicalURL(u)
		if !ok {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		links = append(links, s)
		if len(links) == maxHarvestedLinks {
			break
		}
	}
	return links
}

// CanonicalURL parses raw and returns the form the frontier keys on, so a seed
// and a harvested link naming the same page compare equal.
func CanonicalURL(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return canonicalURL(u)
}

// canonicalURL keeps http(s) URLs only, drops the fragment and maps an empty
// path to "/". u is modified in place.
func canonicalURL(u *url.URL) (string, bool) {
	if !util.IsHTTP(u) || u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" {
		u.Path = "/"
		u.RawPath = ""
	}
	return u.String(), true
}
