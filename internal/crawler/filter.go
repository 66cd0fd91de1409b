package crawler

import (
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
)

// Matcher applies include/exclude patterns. A pattern containing "*" must match
// the whole input, with "*" standing for any run of characters; any other
// pattern matches when it is a substring of the input.
type Matcher struct {
	include []pattern
	exclude []pattern
}

type pattern struct {
	raw  string
	glob glob.Glob
}

// NewMatcher compiles include and exclude patterns. Patterns that fail to
// compile never match.
func NewMatcher(include, exclude []string) *Matcher {
	return &Matcher{
		include: compilePatterns(include),
		exclude: compilePatterns(exclude),
	}
}

func compilePatterns(raw []string) []pattern {
	out := make([]pattern, 0, len(raw))
	for _, p := range raw {
		compiled := pattern{raw: p}
		if strings.Contains(p, "*") {
			parts := strings.Split(p, "*")
			for i, part := range parts {
				parts[i] = glob.QuoteMeta(part)
			}
			g, err := glob.Compile(strings.Join(parts, "*"))
			if err != nil {
				log.Warn().Err(err).Str("pattern", p).Msg("Ignoring invalid filter pattern")
			}
			compiled.glob = g
		}
		out = append(out, compiled)
	}
	return out
}

func (p pattern) match(input string) bool {
	if strings.Contains(p.raw, "*") {
		return p.glob != nil && p.glob.Match(input)
	}
	return strings.Contains(input, p.raw)
}

// MatchPattern reports whether a single include/exclude pattern matches input.
func MatchPattern(p, input string) bool {
	return compilePatterns([]string{p})[0].match(input)
}

// Allows reports whether input passes the filters: at least one include
// pattern matches (when any are set) and no exclude pattern matches.
func (m *Matcher) Allows(input string) bool {
	if m == nil {
		return true
	}
	if len(m.include) > 0 {
		ok := false
		for _, p := range m.include {
			if p.match(input) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, p := range m.exclude {
		if p.match(input) {
			return false
		}
	}
	return true
}
