// Package render turns extracted pages into the llms.txt document.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Harvey-AU/llmoptimizer/internal/extractor"
)

// Theme names accepted by Markdown.
const (
	ThemeDefault  = "default"
	ThemeCompact  = "compact"
	ThemeDetailed = "detailed"
)

// SiteSummary aggregates one generation run.
type SiteSummary struct {
	GeneratedAt string   `json:"generatedAt"`
	BaseURL     *string  `json:"baseUrl,omitempty"`
	PageCount   int      `json:"pageCount"`
	Locales     []string `json:"locales,omitempty"`
}

// Renderer produces the document for a site and its pages.
type Renderer func(site SiteSummary, pages []extractor.PageExtract) string

// ValidTheme reports whether name is a built-in theme. The empty name selects
// the default theme.
func ValidTheme(name string) bool {
	switch name {
	case "", ThemeDefault, ThemeCompact, ThemeDetailed:
		return true
	}
	return false
}

// Markdown returns the built-in renderer for theme. Unknown themes render
// with the default theme.
func Markdown(theme string) Renderer {
	switch theme {
	case ThemeCompact:
		return compact
	case ThemeDetailed:
		return detailed
	default:
		return standard
	}
}

// Locales dedupes page locales in first-occurrence order. It returns nil when
// no page has a locale.
func Locales(pages []extractor.PageExtract) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, p := range pages {
		if p.Locale == nil {
			continue
		}
		if _, ok := seen[*p.Locale]; ok {
			continue
		}
		seen[*p.Locale] = struct{}{}
		out = append(out, *p.Locale)
	}
	return out
}

// JSON renders {site, pages} indented with two spaces.
func JSON(site SiteSummary, pages []extractor.PageExtract) ([]byte, error) {
	if pages == nil {
		pages = []extractor.PageExtract{}
	}
	doc := struct {
		Site  SiteSummary             `json:"site"`
		Pages []extractor.PageExtract `json:"pages"`
	}{site, pages}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return data, nil
}

func header(b *strings.Builder, site SiteSummary) {
	name := "Site"
	if site.BaseURL != nil && *site.BaseURL != "" {
		name = *site.BaseURL
	}
	fmt.Fprintf(b, "# %s\n\n", name)
	fmt.Fprintf(b, "> Generated %s. %d pages.", site.GeneratedAt, site.PageCount)
	if len(site.Locales) > 0 {
		fmt.Fprintf(b, " Locales: %s.", strings.Join(site.Locales, ", "))
	}
	b.WriteString("\n\n")
}

func pageTitle(p extractor.PageExtract) string {
	if t := strings.TrimSpace(extractor.Str(p.Title)); t != "" {
		return t
	}
	return p.URL
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func standard(site SiteSummary, pages []extractor.PageExtract) string {
	var b strings.Builder
	header(&b, site)

	for _, p := range pages {
		fmt.Fprintf(&b, "## %s\n\n", pageTitle(p))
		fmt.Fprintf(&b, "URL: %s\n", p.URL)
		if p.Locale != nil {
			fmt.Fprintf(&b, "Locale: %s\n", *p.Locale)
		}
		if d := oneLine(extractor.Str(p.Description)); d != "" {
			fmt.Fprintf(&b, "\n%s\n", d)
		}
		if len(p.Headings) > 0 {
			b.WriteString("\nHeadings:\n")
			for _, h := range p.Headings {
				fmt.Fprintf(&b, "- %s: %s\n", h.Tag, oneLine(h.Text))
			}
		}
		if links := keyLinks(p.Links, 10); len(links) > 0 {
			b.WriteString("\nKey links:\n")
			for _, l := range links {
				fmt.Fprintf(&b, "- [%s](%s)\n", l.Text, l.Href)
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func compact(site SiteSummary, pages []extractor.PageExtract) string {
	var b strings.Builder
	header(&b, site)

	for _, p := range pages {
		fmt.Fprintf(&b, "- [%s](%s)", pageTitle(p), p.URL)
		if d := oneLine(extractor.Str(p.Description)); d != "" {
			fmt.Fprintf(&b, ": %s", d)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func detailed(site SiteSummary, pages []extractor.PageExtract) string {
	var b strings.Builder
	header(&b, site)

	for _, p := range pages {
		fmt.Fprintf(&b, "## %s\n\n", pageTitle(p))
		fmt.Fprintf(&b, "URL: %s\n", p.URL)
		if p.Canonical != nil && *p.Canonical != p.URL {
			fmt.Fprintf(&b, "Canonical: %s\n", *p.Canonical)
		}
		if p.Locale != nil {
			fmt.Fprintf(&b, "Locale: %s\n", *p.Locale)
		}
		if p.LastModified != nil {
			fmt.Fprintf(&b, "Last modified: %s\n", *p.LastModified)
		}
		fmt.Fprintf(&b, "Words: %d, links: %d internal / %d external, images: %d (%d missing alt)\n",
			p.WordCount, p.InternalLinks, p.ExternalLinks, p.ImageCount, p.ImagesMissingAlt)
		if len(p.Technologies) > 0 {
			fmt.Fprintf(&b, "Technologies: %s\n", strings.Join(p.Technologies, ", "))
		}
		if d := oneLine(extractor.Str(p.Description)); d != "" {
			fmt.Fprintf(&b, "\n%s\n", d)
		}
		if len(p.Breadcrumbs) > 0 {
			fmt.Fprintf(&b, "\nBreadcrumbs: %s\n", strings.Join(p.Breadcrumbs, " > "))
		}
		if len(p.Headings) > 0 {
			b.WriteString("\nHeadings:\n")
			for _, h := range p.Headings {
				fmt.Fprintf(&b, "- %s: %s\n", h.Tag, oneLine(h.Text))
			}
		}
		writeSocial(&b, "Open Graph", p.OG)
		writeSocial(&b, "Twitter", p.Twitter)
		if types := jsonLDTypes(p.JSONLD); len(types) > 0 {
			fmt.Fprintf(&b, "\nStructured data: %s\n", strings.Join(types, ", "))
		}
		if links := keyLinks(p.Links, 25); len(links) > 0 {
			b.WriteString("\nLinks:\n")
			for _, l := range links {
				fmt.Fprintf(&b, "- [%s](%s)\n", l.Text, l.Href)
			}
		}
		if len(p.Images) > 0 {
			b.WriteString("\nImages:\n")
			for _, img := range p.Images {
				if img.Alt != nil {
					fmt.Fprintf(&b, "- %s (%s)\n", img.Src, oneLine(*img.Alt))
				} else {
					fmt.Fprintf(&b, "- %s\n", img.Src)
				}
			}
		}
		if s := extractor.Str(p.ContentSnippet); s != "" {
			fmt.Fprintf(&b, "\nSnippet: %s\n", s)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// keyLinks returns up to limit links with visible text, first occurrence of
// each href only.
func keyLinks(links []extractor.Link, limit int) []extractor.Link {
	var out []extractor.Link
	seen := map[string]struct{}{}
	for _, l := range links {
		text := oneLine(l.Text)
		if text == "" {
			continue
		}
		if _, ok := seen[l.Href]; ok {
			continue
		}
		seen[l.Href] = struct{}{}
		out = append(out, extractor.Link{Text: text, Href: l.Href, Rel: l.Rel})
		if len(out) == limit {
			break
		}
	}
	return out
}

var socialKeys = []string{"title", "description", "type", "image", "url", "site_name", "card", "site", "creator"}

func writeSocial(b *strings.Builder, label string, tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	var parts []string
	for _, k := range socialKeys {
		if v, ok := tags[k]; ok && v != "" {
			parts = append(parts, k+"="+oneLine(v))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, "\n%s: %s\n", label, strings.Join(parts, "; "))
	}
}

// jsonLDTypes lists the @type values of top-level JSON-LD nodes and @graph
// members, deduped in order.
func jsonLDTypes(docs []any) []string {
	var out []string
	seen := map[string]struct{}{}
	add := func(t any) {
		var names []string
		switch v := t.(type) {
		case string:
			names = []string{v}
		case []any:
			for _, x := range v {
				if s, ok := x.(string); ok {
					names = append(names, s)
				}
			}
		}
		for _, n := range names {
			if _, ok := seen[n]; !ok && n != "" {
				seen[n] = struct{}{}
				out = append(out, n)
			}
		}
	}

	var visit func(node any)
	visit = func(node any) {
		switch v := node.(type) {
		case []any:
			for _, x := range v {
				visit(x)
			}
		case map[string]any:
			add(v["@type"])
			if g, ok := v["@graph"]; ok {
				visit(g)
			}
		}
	}
	for _, d := range docs {
		visit(d)
	}
	return out
}
