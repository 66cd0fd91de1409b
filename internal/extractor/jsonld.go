package extractor

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
)

const breadcrumbType = "BreadcrumbList"

// parseJSONLD decodes every ld+json script on its own so one malformed block
// does not hide the others. Numbers are kept as json.Number to round-trip
// without float formatting drift.
func parseJSONLD(doc *goquery.Document, pageURL string) []any {
	blocks := []any{}
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		dec := json.NewDecoder(strings.NewReader(s.Text()))
		dec.UseNumber()

		var v any
		err := dec.Decode(&v)
		if err == nil {
			if _, trailing := dec.Token(); trailing != io.EOF {
				err = fmt.Errorf("trailing data after JSON value")
			}
		}
		if err != nil {
			log.Debug().
				Err(err).
				Str("url", pageURL).
				Int("block", i).
				Msg("Skipping malformed JSON-LD block")
			return
		}
		blocks = append(blocks, v)
	})
	return blocks
}

// breadcrumbs collects item names from BreadcrumbList entries, including those
// nested in an array or an @graph.
func breadcrumbs(blocks []any) []string {
	var names []string
	var visit func(v any)
	visit = func(v any) {
		switch node := v.(type) {
		case []any:
			for _, e := range node {
				visit(e)
			}
		case map[string]any:
			if graph, ok := node["@graph"]; ok {
				visit(graph)
			}
			if !hasType(node["@type"], breadcrumbType) {
				return
			}
			for _, el := range asList(node["itemListElement"]) {
				if name := breadcrumbName(el); name != "" {
					names = append(names, name)
				}
			}
		}
	}
	for _, b := range blocks {
		visit(b)
	}
	return names
}

func hasType(t any, want string) bool {
	switch v := t.(type) {
	case string:
		return v == want
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func asList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case nil:
		return nil
	default:
		return []any{l}
	}
}

func breadcrumbName(el any) string {
	m, ok := el.(map[string]any)
	if !ok {
		return ""
	}
	if item, ok := m["item"].(map[string]any); ok {
		if name := scalar(item["name"]); name != "" {
			return name
		}
	}
	return scalar(m["name"])
}

func scalar(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case json.Number:
		return s.String()
	case bool, float64:
		return fmt.Sprint(s)
	default:
		return ""
	}
}
