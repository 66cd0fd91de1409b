package adapters

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	svelteRouteFile = regexp.MustCompile(`\+page\.|\.svelte$`)
	svelteLeaf      = regexp.MustCompile(`^\+(page|layout)(\.|$)`)
)

// SvelteKit maps the src/routes directory convention of SvelteKit.
type SvelteKit struct{}

func (SvelteKit) Name() string { return "sveltekit" }

func (SvelteKit) Detect(root string) bool { return hasDependency(root, "@sveltejs/kit") }

func (SvelteKit) Routes(root string) (Result, error) {
	files, err := listFiles(filepath.Join(root, "src/routes"), "**")
	if err != nil {
		return Result{}, err
	}
	var out []string
	for _, f := range files {
		if strings.HasSuffix(f, ".d.ts") || !svelteRouteFile.MatchString(f) {
			continue
		}
		out = append(out, svelteFileToRoute(f))
	}
	return Result{Routes: uniqueRoutes(out), BuildDirs: []string{"build"}}, nil
}

// svelteFileToRoute maps "blog/[slug]/+page.svelte" to "/blog/:slug". Group
// folders such as "(marketing)" do not appear in the URL.
func svelteFileToRoute(rel string) string {
	parts := strings.Split(strings.TrimLeft(rel, "/"), "/")
	if svelteLeaf.MatchString(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}
	for i, seg := range parts {
		if routeGroup.MatchString(seg) {
			parts[i] = ""
			continue
		}
		parts[i] = convertBrackets(seg)
	}
	return joinRoute(parts)
}
