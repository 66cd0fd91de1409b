package extractor

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullPage = `<!doctype html>
<html lang="en-GB" dir="ltr">
<head>
  <meta charset="utf-8">
  <title>  Example   Home </title>
  <meta name="description" content="An example page">
  <meta name="keywords" content="alpha, beta, , gamma ">
  <meta name="viewport" content="width=device-width">
  <meta name="generator" content="Hugo 0.120">
  <meta name="robots" content="index,follow">
  <link rel="canonical" href="https://example.com/">
  <link rel="alternate" hreflang="fr" href="https://example.com/fr/">
  <link rel="alternate" hreflang="de" href="https://example.com/de/">
  <meta property="og:title" content="OG Title">
  <meta property="og:image" content="">
  <meta name="twitter:card" content="summary">
  <script type="application/ld+json">{"@context":"https://schema.org","@type":"BreadcrumbList","itemListElement":[{"@type":"ListItem","position":1,"item":{"@id":"https://example.com/","name":"Home"}},{"@type":"ListItem","position":2,"name":"Docs"}]}</script>
  <script type="application/ld+json">{ not json </script>
  <script type="application/ld+json">{"@type":"Organization","name":"Example","rating":4.50}</script>
</head>
<body>
  <nav><a href="/nav">Nav</a></nav>
  <h2>First   sub</h2>
  <h1>Main heading</h1>
  <h3> </h3>
  <h4>Deep</h4>
  <main>
    <p>Hello   world from
    the main content.</p>
    <a href="/docs" rel="next">Docs   link</a>
    <a href="https://other.org/x">Other</a>
    <a href="relative/path">Relative</a>
    <a href="mailto:me@example.com">Mail</a>
    <img src="/a.png" alt="A">
    <img src="/b.png">
    <img src="" alt="">
  </main>
</body>
</html>`

func TestExtractFullPage(t *testing.T) {
	pe := Extract("https://example.com/", fullPage)

	assert.Equal(t, "https://example.com/", pe.URL)
	assert.Equal(t, "Example   Home", Str(pe.Title))
	assert.Equal(t, "An example page", Str(pe.Description))
	assert.Equal(t, "https://example.com/", Str(pe.Canonical))
	assert.Equal(t, "en-GB", Str(pe.Locale))
	assert.Equal(t, "ltr", Str(pe.Dir))
	assert.Equal(t, "index,follow", Str(pe.RobotsMeta))

	assert.Equal(t, []string{"alpha", "beta", "gamma"}, pe.Meta.Keywords)
	assert.Equal(t, "width=device-width", Str(pe.Meta.Viewport))
	assert.Equal(t, "utf-8", Str(pe.Meta.Charset))
	assert.Equal(t, "Hugo 0.120", Str(pe.Meta.Generator))

	assert.Equal(t, map[string]string{"title": "OG Title"}, pe.OG)
	assert.Equal(t, map[string]string{"card": "summary"}, pe.Twitter)
	assert.Equal(t, []Hreflang{
		{Lang: "fr", Href: "https://example.com/fr/"},
		{Lang: "de", Href: "https://example.com/de/"},
	}, pe.Hreflang)

	assert.Equal(t, []Heading{
		{Tag: "h2", Text: "First sub"},
		{Tag: "h1", Text: "Main heading"},
		{Tag: "h4", Text: "Deep"},
	}, pe.Headings)

	require.Len(t, pe.Links, 3)
	assert.Equal(t, "/nav", pe.Links[0].Href)
	assert.Equal(t, "Docs link", pe.Links[1].Text)
	assert.Equal(t, "next", Str(pe.Links[1].Rel))
	assert.Nil(t, pe.Links[2].Rel)
	assert.Equal(t, 2, pe.InternalLinks)
	assert.Equal(t, 1, pe.ExternalLinks)

	require.Len(t, pe.JSONLD, 2)
	assert.Equal(t, []string{"Home", "Docs"}, pe.Breadcrumbs)

	assert.True(t, strings.HasPrefix(Str(pe.ContentSnippet), "Hello world from the main content."))
	assert.NotContains(t, Str(pe.ContentSnippet), "Nav")
	assert.Equal(t, len(strings.Fields(Str(pe.ContentSnippet))), pe.WordCount)

	assert.Equal(t, []Image{{Src: "/a.png", Alt: ptr("A")}, {Src: "/b.png"}}, pe.Images)
	assert.Equal(t, 2, pe.ImageCount)
	assert.Equal(t, 2, pe.ImagesMissingAlt)
	assert.Nil(t, pe.LastModified)
}

func TestExtractFieldAbsence(t *testing.T) {
	pe := Extract("https://example.com/x", "<html><body><h1>Title</h1></body></html>")

	assert.Nil(t, pe.Title, "title must not fall back to h1")
	assert.Nil(t, pe.Description)
	assert.Nil(t, pe.Canonical)
	assert.Nil(t, pe.Locale)
	assert.Nil(t, pe.OG)
	assert.Nil(t, pe.Twitter)
	assert.Nil(t, pe.Hreflang)
	assert.Nil(t, pe.Breadcrumbs)
	assert.Empty(t, pe.Meta.Keywords)

	data, err := json.Marshal(pe)
	require.NoError(t, err)
	s := string(data)
	assert.NotContains(t, s, `"description"`)
	assert.NotContains(t, s, `"title"`)
	assert.NotContains(t, s, `"og"`)
	assert.Contains(t, s, `"headings":[{"tag":"h1","text":"Title"}]`)
	assert.Contains(t, s, `"links":[]`)
	assert.Contains(t, s, `"jsonLd":[]`)
}

func TestExtractEmptyDescriptionIsAbsent(t *testing.T) {
	pe := Extract("https://example.com/", `<html><head><meta name="description" content=""></head></html>`)
	assert.Nil(t, pe.Description)
}

func TestExtractIsDeterministic(t *testing.T) {
	a, err := json.Marshal(Extract("https://example.com/", fullPage))
	require.NoError(t, err)
	b, err := json.Marshal(Extract("https://example.com/", fullPage))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"rating":4.50`)
}

func TestExtractCaps(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := range 70 {
		fmt.Fprintf(&b, `<a href="/p/%d">p%d</a>`, i, i)
	}
	for i := range 10 {
		fmt.Fprintf(&b, `<a href="https://ext.org/%d">e</a>`, i)
	}
	for i := range 40 {
		fmt.Fprintf(&b, `<img src="/i/%d.png">`, i)
	}
	b.WriteString("</body></html>")

	pe := Extract("https://example.com/", b.String())
	assert.Len(t, pe.Links, 50)
	assert.Equal(t, "/p/0", pe.Links[0].Href)
	assert.Equal(t, 70, pe.InternalLinks)
	assert.Equal(t, 10, pe.ExternalLinks)
	assert.Len(t, pe.Images, 30)
	assert.Equal(t, 40, pe.ImageCount)
	assert.Equal(t, 40, pe.ImagesMissingAlt)
}

func TestExtractSnippetFallbacks(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"role main", `<body><div role="main">Role text</div><p>Body</p></body>`, "Role text"},
		{"article", `<body><main>  </main><article>Article text</article></body>`, "Article text"},
		{"body", `<body><p>Just   body</p></body>`, "Just body"},
		{"empty", `<body>   </body>`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := Extract("https://example.com/", "<html>"+tt.html+"</html>")
			assert.Equal(t, tt.want, Str(pe.ContentSnippet))
			if tt.want == "" {
				assert.Nil(t, pe.ContentSnippet)
				assert.Zero(t, pe.WordCount)
			}
		})
	}
}

func TestExtractSnippetTruncated(t *testing.T) {
	body := strings.Repeat("é ", 400)
	pe := Extract("https://example.com/", "<html><body><main>"+body+"</main></body></html>")
	assert.Equal(t, 500, len([]rune(Str(pe.ContentSnippet))))
	assert.Equal(t, 250, pe.WordCount)
}

func TestExtractLocaleFallback(t *testing.T) {
	pe := Extract("https://example.com/", `<html><head><meta http-equiv="content-language" content="fr"></head></html>`)
	assert.Equal(t, "fr", Str(pe.Locale))
}

func TestExtractFileURLLinks(t *testing.T) {
	pe := Extract("file:///tmp/site/index.html", `<a href="/about">About</a><a href="https://example.com">Ext</a>`)
	assert.Equal(t, 1, pe.InternalLinks)
	assert.Equal(t, 1, pe.ExternalLinks)
}

func ptr(s string) *string { return &s }
