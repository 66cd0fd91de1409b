package extractor

// PageExtract is the normalised record of one HTML page. Optional scalars are
// pointers so that a missing tag and an empty attribute stay distinguishable.
type PageExtract struct {
	URL              string            `json:"url"`
	Locale           *string           `json:"locale,omitempty"`
	Dir              *string           `json:"dir,omitempty"`
	LastModified     *string           `json:"lastModified,omitempty"`
	Title            *string           `json:"title,omitempty"`
	Description      *string           `json:"description,omitempty"`
	Canonical        *string           `json:"canonical,omitempty"`
	OG               map[string]string `json:"og,omitempty"`
	Twitter          map[string]string `json:"twitter,omitempty"`
	Hreflang         []Hreflang        `json:"hreflang,omitempty"`
	Headings         []Heading         `json:"headings"`
	Links            []Link            `json:"links"`
	InternalLinks    int               `json:"internalLinks"`
	ExternalLinks    int               `json:"externalLinks"`
	JSONLD           []any             `json:"jsonLd"`
	WordCount        int               `json:"wordCount"`
	ContentSnippet   *string           `json:"contentSnippet,omitempty"`
	RobotsMeta       *string           `json:"robotsMeta,omitempty"`
	Meta             Meta              `json:"meta"`
	Images           []Image           `json:"images"`
	ImageCount       int               `json:"imageCount"`
	ImagesMissingAlt int               `json:"imagesMissingAlt"`
	Breadcrumbs      []string          `json:"breadcrumbs,omitempty"`
	Technologies     []string          `json:"technologies,omitempty"`
}

// Heading is an h1-h4 element.
type Heading struct {
	Tag  string `json:"tag"`
	Text string `json:"text"`
}

// Link is an anchor with an http(s) or root-relative href.
type Link struct {
	Text string  `json:"text"`
	Href string  `json:"href"`
	Rel  *string `json:"rel,omitempty"`
}

// Hreflang is one alternate-language link.
type Hreflang struct {
	Lang string `json:"lang"`
	Href string `json:"href"`
}

// Image is an img element with a non-empty src.
type Image struct {
	Src string  `json:"src"`
	Alt *string `json:"alt,omitempty"`
}

// Meta groups the remaining document-level meta tags.
type Meta struct {
	Keywords  []string `json:"keywords,omitempty"`
	Viewport  *string  `json:"viewport,omitempty"`
	Charset   *string  `json:"charset,omitempty"`
	Generator *string  `json:"generator,omitempty"`
}

// Str returns the value of an optional field, or "" when absent.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
