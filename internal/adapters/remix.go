package adapters

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Harvey-AU/llmoptimizer/internal/routes"
)

var (
	remixExts  = regexp.MustCompile(`(?i)\.(tsx|ts|jsx|js|mdx?)$`)
	remixParam = regexp.MustCompile(`\$(\w+)`)
)

const remixPatterns = "**.{tsx,ts,jsx,js,md,mdx}"

// Remix maps the flat app/routes convention of Remix.
type Remix struct{}

func (Remix) Name() string { return "remix" }

func (Remix) Detect(root string) bool {
	return hasDependency(root, "@remix-run/react", "remix")
}

func (Remix) Routes(root string) (Result, error) {
	files, err := listFiles(filepath.Join(root, "app/routes"), remixPatterns)
	if err != nil {
		return Result{}, err
	}
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, remixFileToRoute(f))
	}
	return Result{Routes: uniqueRoutes(out), BuildDirs: []string{"public"}}, nil
}

// remixFileToRoute turns "blog.$slug.tsx" into "/blog/:slug". Dots become
// segments, a leading underscore marks a pathless layout and index leaves map
// to their parent.
func remixFileToRoute(rel string) string {
	withSlashes := strings.ReplaceAll(stripExt(rel, remixExts), ".", "/")
	parts := strings.Split(withSlashes, "/")
	for i, seg := range parts {
		parts[i] = strings.TrimPrefix(seg, "_")
	}
	if last := parts[len(parts)-1]; last == "index" || last == "" {
		parts = parts[:len(parts)-1]
	}
	for i, p := range parts {
		parts[i] = remixParam.ReplaceAllString(p, ":$1")
	}
	return joinRoute(parts)
}

// DiscoverParams suggests values for every parameter the routes use.
func (Remix) DiscoverParams(root string) (map[string][]string, error) {
	params := map[string][]string{}

	files, err := listFiles(filepath.Join(root, "app/routes"), remixPatterns)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		for _, name := range routes.ParamNames(remixFileToRoute(f)) {
			switch name {
			case "slug":
				params[name] = []string{"welcome", "hello-world"}
			case "id":
				params[name] = []string{"1", "2", "42"}
			default:
				params[name] = []string{"sample"}
			}
		}
	}

	params["slug"] = slugsFrom(root, []string{"welcome", "hello-world"},
		"/app/routes/blog/*.*",
		"/app/routes/blog/**/_index.*",
	)
	return params, nil
}

// DiscoverRouteParams maps the blog route to discovered slugs.
func (r Remix) DiscoverRouteParams(root string) (map[string]map[string][]string, error) {
	samples, err := r.DiscoverParams(root)
	if err != nil {
		return nil, err
	}
	out := map[string]map[string][]string{}
	if v := samples["slug"]; len(v) > 0 {
		out["/blog/:slug"] = map[string][]string{"slug": v}
	}
	return out, nil
}
