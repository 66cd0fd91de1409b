package adapters

import (
	"path/filepath"
	"regexp"
)

var astroExts = regexp.MustCompile(`(?i)\.(astro|mdx?)$`)

// Astro maps the src/pages convention of Astro.
type Astro struct{}

func (Astro) Name() string { return "astro" }

func (Astro) Detect(root string) bool { return hasDependency(root, "astro") }

func (Astro) Routes(root string) (Result, error) {
	files, err := listFiles(filepath.Join(root, "src/pages"), "**.{astro,md,mdx}")
	if err != nil {
		return Result{}, err
	}
	routes := make([]string, 0, len(files))
	for _, f := range files {
		routes = append(routes, bracketRoute(stripExt(f, astroExts)))
	}
	return Result{Routes: uniqueRoutes(routes), BuildDirs: []string{"dist"}}, nil
}

// DiscoverRouteParams samples blog slugs from src/pages/blog.
func (Astro) DiscoverRouteParams(root string) (map[string]map[string][]string, error) {
	slugs := slugsFrom(root, []string{"welcome", "getting-started"}, "/src/pages/blog/*.{md,mdx,astro}")
	return map[string]map[string][]string{
		"/blog/:slug": {"slug": slugs},
	}, nil
}
