package extractor

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/Harvey-AU/llmoptimizer/internal/util"
)

const (
	maxLinks       = 50
	maxImages      = 30
	maxSnippetLen  = 500
	headingsSelect = "h1, h2, h3, h4"
)

// contentContainers are tried in order; the first with text wins.
var contentContainers = []string{"main", `[role="main"]`, "article", "body"}

// Extract parses html into a PageExtract for pageURL. It never fails: a
// document that cannot be parsed yields a record holding only the URL.
func Extract(pageURL, html string) PageExtract {
	pe := PageExtract{
		URL:      pageURL,
		Headings: []Heading{},
		Links:    []Link{},
		JSONLD:   []any{},
		Images:   []Image{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Debug().Err(err).Str("url", pageURL).Msg("Unparsable HTML, returning empty extract")
		return pe
	}

	pe.Title = optional(strings.TrimSpace(doc.Find("head > title").First().Text()))
	pe.Description = attr(doc, `meta[name="description"]`, "content")
	pe.Canonical = attr(doc, `link[rel="canonical"]`, "href")
	pe.Locale = attr(doc, "html", "lang")
	if pe.Locale == nil {
		pe.Locale = attr(doc, `meta[http-equiv="content-language"]`, "content")
	}
	pe.Dir = attr(doc, "html", "dir")
	pe.RobotsMeta = attr(doc, `meta[name="robots"]`, "content")

	pe.Meta = Meta{
		Keywords:  splitKeywords(Str(attr(doc, `meta[name="keywords"]`, "content"))),
		Viewport:  attr(doc, `meta[name="viewport"]`, "content"),
		Charset:   attr(doc, "meta[charset]", "charset"),
		Generator: attr(doc, `meta[name="generator"]`, "content"),
	}

	pe.OG = prefixedMeta(doc, `meta[property^="og:"]`, "property", "og:")
	pe.Twitter = prefixedMeta(doc, `meta[name^="twitter:"]`, "name", "twitter:")

	doc.Find(`link[rel="alternate"][hreflang]`).Each(func(_ int, s *goquery.Selection) {
		lang, _ := s.Attr("hreflang")
		href, _ := s.Attr("href")
		if lang != "" && href != "" {
			pe.Hreflang = append(pe.Hreflang, Hreflang{Lang: lang, Href: href})
		}
	})

	doc.Find(headingsSelect).Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			pe.Headings = append(pe.Headings, Heading{Tag: goquery.NodeName(s), Text: text})
		}
	})

	links := collectLinks(doc)
	pe.InternalLinks, pe.ExternalLinks = classifyLinks(pageURL, links)
	if len(links) > maxLinks {
		links = links[:maxLinks]
	}
	pe.Links = links

	pe.JSONLD = parseJSONLD(doc, pageURL)
	pe.Breadcrumbs = breadcrumbs(pe.JSONLD)

	snippet := contentSnippet(doc)
	pe.ContentSnippet = optional(snippet)
	pe.WordCount = len(strings.Fields(snippet))

	doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		alt, _ := s.Attr("alt")
		if alt == "" {
			pe.ImagesMissingAlt++
		}
		if src == "" {
			return
		}
		pe.ImageCount++
		if len(pe.Images) < maxImages {
			pe.Images = append(pe.Images, Image{Src: src, Alt: optional(alt)})
		}
	})

	return pe
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// attr returns the named attribute of the first match, nil when absent or empty.
func attr(doc *goquery.Document, selector, name string) *string {
	v, _ := doc.Find(selector).First().Attr(name)
	return optional(v)
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func splitKeywords(raw string) []string {
	var out []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func prefixedMeta(doc *goquery.Document, selector, keyAttr, prefix string) map[string]string {
	out := map[string]string{}
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		key, _ := s.Attr(keyAttr)
		key = strings.TrimPrefix(key, prefix)
		content, _ := s.Attr("content")
		if key != "" && content != "" {
			out[key] = content
		}
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

func collectLinks(doc *goquery.Document) []Link {
	var links []Link
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !isFollowableHref(href) {
			return
		}
		rel, _ := s.Attr("rel")
		links = append(links, Link{
			Text: collapse(s.Text()),
			Href: href,
			Rel:  optional(rel),
		})
	})
	if links == nil {
		return []Link{}
	}
	return links
}

func isFollowableHref(href string) bool {
	lower := strings.ToLower(href)
	return strings.HasPrefix(lower, "http:") || strings.HasPrefix(lower, "https:") || strings.HasPrefix(href, "/")
}

// classifyLinks counts links on the page's own origin versus elsewhere.
func classifyLinks(pageURL string, links []Link) (internal, external int) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return 0, 0
	}
	for _, l := range links {
		if util.SameOrigin(base, l.Href) {
			internal++
		} else {
			external++
		}
	}
	return internal, external
}

func contentSnippet(doc *goquery.Document) string {
	for _, sel := range contentContainers {
		text := strings.TrimSpace(doc.Find(sel).Text())
		if text == "" {
			continue
		}
		return truncateRunes(collapse(text), maxSnippetLen)
	}
	return ""
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
