// Package routes expands framework route patterns such as "/blog/:slug" or
// "/docs/:path*" into concrete sample paths.
package routes

import (
	"regexp"
	"strings"
	"time"
)

// catchAllSuffix is appended after a sampled catch-all value to simulate a
// multi-segment tail.
const catchAllSuffix = "/extra"

var dynamicSegment = regexp.MustCompile(`^:(.+?)(\*)?$`)

// defaultSamples are used when no other source supplies values.
var defaultSamples = map[string][]string{
	"id":     {"1", "2"},
	"slug":   {"sample", "example"},
	"lang":   {"en", "es"},
	"locale": {"en", "en-US"},
}

var fallbackSample = []string{"sample"}

// Params are the sources of sample values for dynamic segments, in order of
// precedence: PerRoute, Global, Sampler, then built-in defaults. An empty list
// falls through to the next source.
type Params struct {
	Global   map[string][]string
	PerRoute map[string]map[string][]string
	// Sampler is caller-supplied code; it is run with SamplerTimeout and its
	// panics are recovered.
	Sampler        func(name string) []string
	SamplerTimeout time.Duration
}

// IsDynamic reports whether pattern contains a dynamic segment.
func IsDynamic(pattern string) bool {
	for _, seg := range strings.Split(pattern, "/") {
		if dynamicSegment.MatchString(seg) {
			return true
		}
	}
	return false
}

// Expand turns patterns into concrete paths. Static patterns pass through
// unchanged. The result is deduplicated and keeps first-occurrence order.
func Expand(patterns []string, p Params) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	samples := newSampleCache(p)

	for _, pattern := range patterns {
		if !IsDynamic(pattern) {
			add(pattern)
			continue
		}

		variants := []string{""}
		perRoute := p.PerRoute[pattern]
		for _, seg := range strings.Split(pattern, "/") {
			if seg == "" {
				continue
			}
			m := dynamicSegment.FindStringSubmatch(seg)
			if m == nil {
				for i := range variants {
					variants[i] += "/" + seg
				}
				continue
			}

			name, catchAll := m[1], m[2] != ""
			values := perRoute[name]
			if len(values) == 0 {
				values = samples.get(name)
			}

			next := make([]string, 0, len(variants)*len(values))
			for _, base := range variants {
				for _, v := range values {
					if catchAll {
						v += catchAllSuffix
					}
					next = append(next, base+"/"+v)
				}
			}
			variants = next
		}

		for _, v := range variants {
			if v == "" {
				v = "/"
			}
			add(v)
		}
	}

	return out
}

// ParamNames lists the dynamic segment names of pattern in order.
func ParamNames(pattern string) []string {
	var names []string
	for _, seg := range strings.Split(pattern, "/") {
		if m := dynamicSegment.FindStringSubmatch(seg); m != nil {
			names = append(names, m[1])
		}
	}
	return names
}

// sampleCache resolves Global > Sampler > defaults once per name so the
// sampler runs at most once for each name in an Expand call.
type sampleCache struct {
	params Params
	values map[string][]string
}

func newSampleCache(p Params) *sampleCache {
	return &sampleCache{params: p, values: make(map[string][]string)}
}

func (c *sampleCache) get(name string) []string {
	if v, ok := c.values[name]; ok {
		return v
	}

	v := c.params.Global[name]
	if len(v) == 0 && c.params.Sampler != nil {
		v = callSampler(c.params.Sampler, name, c.params.SamplerTimeout)
	}
	if len(v) == 0 {
		v = defaultSamples[name]
	}
	if len(v) == 0 {
		v = fallbackSample
	}

	c.values[name] = v
	return v
}
