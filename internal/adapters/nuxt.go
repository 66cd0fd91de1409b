package adapters

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	vueExt         = regexp.MustCompile(`(?i)\.vue$`)
	nuxtI18nConfig = regexp.MustCompile(`(?s)i18n\s*:\s*\{.*?locales\s*:\s*\[([^\]]+)\]`)
	quotedLocale   = regexp.MustCompile(`['"]([a-zA-Z0-9-]+)['"]`)
)

// Nuxt maps the pages/ convention of Nuxt.
type Nuxt struct{}

func (Nuxt) Name() string { return "nuxt" }

func (Nuxt) Detect(root string) bool { return hasDependency(root, "nuxt") }

func (Nuxt) Routes(root string) (Result, error) {
	var routes []string
	for _, dir := range []string{"pages", "src/pages"} {
		files, err := listFiles(filepath.Join(root, dir), "**.vue")
		if err != nil {
			return Result{}, err
		}
		for _, f := range files {
			routes = append(routes, bracketRoute(stripExt(f, vueExt)))
		}
	}
	return Result{
		Routes:    uniqueRoutes(routes),
		BuildDirs: []string{".output/public", "dist"},
	}, nil
}

// bracketRoute converts a slash path without extension into a route, dropping
// a trailing index and converting [param] segments.
func bracketRoute(noExt string) string {
	parts := strings.Split(noExt, "/")
	if parts[len(parts)-1] == "index" {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		parts[i] = convertBrackets(p)
	}
	return joinRoute(parts)
}

// DiscoverParams finds i18n locales and content slugs.
func (Nuxt) DiscoverParams(root string) (map[string][]string, error) {
	params := map[string][]string{}

	locales := nuxtLocales(root)
	if len(locales) > 0 {
		params["lang"] = locales
		params["locale"] = locales
	}

	params["slug"] = slugsFrom(root, []string{"welcome", "hello-world"},
		"/content/**.{md,mdx,markdown,mdoc}",
		"/src/content/**.{md,mdx,markdown,mdoc}",
		"/pages/blog/*.*",
		"/src/pages/blog/*.*",
	)
	params["id"] = []string{"1", "2", "42"}
	return params, nil
}

func nuxtLocales(root string) []string {
	var locales []string
	for _, f := range []string{"nuxt.config.ts", "nuxt.config.js", "nuxt.config.mjs", "nuxt.config.cjs"} {
		src, err := os.ReadFile(filepath.Join(root, f))
		if err != nil {
			continue
		}
		if m := nuxtI18nConfig.FindSubmatch(src); m != nil {
			for _, q := range quotedLocale.FindAllSubmatch(m[1], -1) {
				locales = append(locales, string(q[1]))
			}
		}
	}

	entries, err := os.ReadDir(filepath.Join(root, "locales"))
	if err == nil {
		for _, e := range entries {
			if base := baseNameNoExt(e.Name()); base != "" {
				locales = append(locales, base)
			}
		}
	}

	locales = uniqueRoutes(locales)
	log.Debug().Strs("locales", locales).Msg("Discovered Nuxt locales")
	return locales
}

// DiscoverRouteParams maps locale and blog routes to discovered samples.
func (n Nuxt) DiscoverRouteParams(root string) (map[string]map[string][]string, error) {
	samples, err := n.DiscoverParams(root)
	if err != nil {
		return nil, err
	}
	out := map[string]map[string][]string{}
	if v := samples["lang"]; len(v) > 0 {
		out["/:lang"] = map[string][]string{"lang": v}
		out["/:lang/*"] = map[string][]string{"lang": v}
	}
	if v := samples["locale"]; len(v) > 0 {
		out["/:locale"] = map[string][]string{"locale": v}
		out["/:locale/*"] = map[string][]string{"locale": v}
	}
	if v := samples["slug"]; len(v) > 0 {
		out["/blog/:slug"] = map[string][]string{"slug": v}
	}
	return out, nil
}
