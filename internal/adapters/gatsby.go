package adapters

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Harvey-AU/llmoptimizer/internal/routes"
)

var (
	gatsbyExts        = regexp.MustCompile(`(?i)\.(jsx?|tsx?|mdx?)$`)
	createPageLiteral = regexp.MustCompile(`(?s)createPage\s*\(\s*\{[^}]*?path\s*:\s*(?:'([^']*)'|"([^"]*)")`)
)

// Gatsby maps src/pages files and createPage calls in gatsby-node files.
type Gatsby struct {
	// CreatePages, when set, is plugin code that reports programmatic pages
	// through createPage. It runs with a deadline and its failures are ignored.
	CreatePages func(createPage func(path string))
	// Timeout bounds CreatePages; zero means routes.DefaultSamplerTimeout.
	Timeout time.Duration
}

func (*Gatsby) Name() string { return "gatsby" }

func (*Gatsby) Detect(root string) bool { return hasDependency(root, "gatsby") }

func (g *Gatsby) Routes(root string) (Result, error) {
	var out []string

	files, err := listFiles(filepath.Join(root, "src/pages"), "**.{js,jsx,ts,tsx,md,mdx}")
	if err != nil {
		return Result{}, err
	}
	for _, f := range files {
		parts := strings.Split(stripExt(f, gatsbyExts), "/")
		if parts[len(parts)-1] == "index" {
			parts = parts[:len(parts)-1]
		}
		out = append(out, joinRoute(parts))
	}

	for _, nf := range []string{"gatsby-node.ts", "gatsby-node.js", "gatsby-node.mjs", "gatsby-node.cjs"} {
		src, err := os.ReadFile(filepath.Join(root, nf))
		if err != nil {
			continue
		}
		for _, m := range createPageLiteral.FindAllStringSubmatch(string(src), -1) {
			p := m[1] + m[2]
			if strings.HasPrefix(p, "/") {
				out = append(out, p)
			}
		}
	}

	out = append(out, g.capturePages()...)

	return Result{Routes: uniqueRoutes(out), BuildDirs: []string{"public"}}, nil
}

// capturePages runs the CreatePages hook and collects the paths it reports.
// Paths reported after the deadline are dropped.
func (g *Gatsby) capturePages() []string {
	if g.CreatePages == nil {
		return nil
	}

	var mu sync.Mutex
	var captured []string
	closed := false

	createPage := func(p string) {
		if p == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if !closed {
			captured = append(captured, normaliseRoute(p))
		}
	}

	_, err := routes.CallWithDeadline(func() struct{} {
		g.CreatePages(createPage)
		return struct{}{}
	}, g.Timeout)

	mu.Lock()
	defer mu.Unlock()
	closed = true
	if err != nil {
		log.Warn().Err(err).Msg("Ignoring Gatsby createPages hook failure")
		return nil
	}
	return captured
}

func normaliseRoute(r string) string {
	if !strings.HasPrefix(r, "/") {
		r = "/" + r
	}
	r = strings.TrimRight(r, "/")
	if r == "" {
		return "/"
	}
	return r
}
