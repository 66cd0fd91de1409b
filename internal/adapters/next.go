package adapters

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	nextExts        = regexp.MustCompile(`(?i)\.(tsx|ts|jsx|js|mdx?|mjs|cjs)$`)
	nextOptCatchAll = regexp.MustCompile(`\[\[?\.\.\.(.+?)\]?\]`)
	nextParam       = regexp.MustCompile(`\[(.+?)\]`)
	routeGroup      = regexp.MustCompile(`^\(.*\)$`)
)

// Next maps the pages/ and app/ router conventions of Next.js.
type Next struct{}

func (Next) Name() string { return "nextjs" }

func (Next) Detect(root string) bool { return hasDependency(root, "next") }

func (Next) Routes(root string) (Result, error) {
	var routes []string
	for _, dir := range []string{"pages", "src/pages", "app", "src/app"} {
		appRouter := strings.HasSuffix(dir, "app")
		files, err := listFiles(filepath.Join(root, dir), "**.{tsx,ts,jsx,js,mdx,md}")
		if err != nil {
			return Result{}, err
		}
		for _, f := range files {
			if strings.HasPrefix(f, "api/") || strings.HasPrefix(f, "_") {
				continue
			}
			parts := strings.Split(stripExt(f, nextExts), "/")
			leaf := parts[len(parts)-1]
			if appRouter {
				// Only page files define routes in the app router
				if leaf != "page" {
					continue
				}
				parts = parts[:len(parts)-1]
			} else if leaf == "index" {
				parts = parts[:len(parts)-1]
			}
			for i, p := range parts {
				if routeGroup.MatchString(p) {
					parts[i] = ""
					continue
				}
				p = nextOptCatchAll.ReplaceAllString(p, ":$1*")
				parts[i] = nextParam.ReplaceAllString(p, ":$1")
			}
			routes = append(routes, joinRoute(parts))
		}
	}
	return Result{
		Routes:    uniqueRoutes(routes),
		BuildDirs: []string{"out", ".next/server/pages", ".next/server/app"},
	}, nil
}
