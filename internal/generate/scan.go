package generate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/Harvey-AU/llmoptimizer/internal/adapters"
	"github.com/Harvey-AU/llmoptimizer/internal/crawler"
	"github.com/Harvey-AU/llmoptimizer/internal/extractor"
	"github.com/Harvey-AU/llmoptimizer/internal/util"
)

// ErrNotDirectory is returned by FromStatic when RootDir is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// DefaultBuildDirs are scanned when neither the caller nor an adapter names any.
var DefaultBuildDirs = []string{"dist", "build", "out", ".output/public", ".next/server/pages", ".next/server/app", "public"}

var htmlFile = regexp.MustCompile(`(?i)\.html?$`)

const scanWorkers = 8

// StaticOptions configure FromStatic.
type StaticOptions struct {
	CommonOptions
	RootDir string
}

// BuildOptions configure FromBuild.
type BuildOptions struct {
	CommonOptions
	ProjectRoot string   // default "."
	Dirs        []string // relative to ProjectRoot
}

// FromStatic extracts every HTML file under RootDir without network access.
func (g *Generator) FromStatic(ctx context.Context, opts StaticOptions) (*Result, error) {
	r := g.begin(StrategyStatic)
	pages, err := g.scanStatic(ctx, opts)
	if err != nil {
		return nil, err
	}
	return g.finish(ctx, r, opts.CommonOptions, "", pages)
}

func (g *Generator) scanStatic(ctx context.Context, opts StaticOptions) ([]extractor.PageExtract, error) {
	root := opts.RootDir
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("static root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static root %s: %w", root, ErrNotDirectory)
	}
	return scanDir(ctx, abs, crawler.NewMatcher(opts.Include, opts.Exclude))
}

// FromBuild scans build output directories for HTML.
func (g *Generator) FromBuild(ctx context.Context, opts BuildOptions) (*Result, error) {
	r := g.begin(StrategyBuild)
	pages, err := g.scanBuild(ctx, opts)
	if err != nil {
		return nil, err
	}
	return g.finish(ctx, r, opts.CommonOptions, "", pages)
}

func (g *Generator) scanBuild(ctx context.Context, opts BuildOptions) ([]extractor.PageExtract, error) {
	root := opts.ProjectRoot
	if root == "" {
		root = "."
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	candidates := opts.Dirs
	if len(candidates) == 0 {
		res, ok, err := adapters.DetectRoutes(root)
		if err != nil {
			log.Warn().Err(err).Str("root", root).Msg("Adapter route detection failed")
		}
		if ok {
			candidates = res.BuildDirs
		}
	}
	if len(candidates) == 0 {
		candidates = DefaultBuildDirs
	}

	matcher := crawler.NewMatcher(opts.Include, opts.Exclude)
	var pages []extractor.PageExtract
	for _, dir := range candidates {
		abs := filepath.Join(root, filepath.FromSlash(dir))
		info, err := os.Stat(abs)
		if err != nil || !info.IsDir() {
			continue
		}
		found, err := scanDir(ctx, abs, matcher)
		if err != nil {
			return nil, err
		}
		log.Debug().Str("dir", abs).Int("pages", len(found)).Msg("Scanned build directory")
		pages = append(pages, found...)
	}
	return pages, nil
}

// scanDir extracts the HTML files under root in sorted path order. Files are
// filtered by the route they would serve. Unreadable files are skipped.
func scanDir(ctx context.Context, root string, matcher *crawler.Matcher) ([]extractor.PageExtract, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != root && (d.Name() == "node_modules" || strings.HasPrefix(d.Name(), ".")) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !htmlFile.MatchString(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if matcher.Allows(util.ToRoutePath(rel)) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	sort.Strings(files)

	results := make([]*extractor.PageExtract, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanWorkers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = readPage(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pages := make([]extractor.PageExtract, 0, len(files))
	for _, p := range results {
		if p != nil {
			pages = append(pages, *p)
		}
	}
	return pages, nil
}

func readPage(path string) *extractor.PageExtract {
	html, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("file", path).Msg("Skipping unreadable HTML file")
		return nil
	}
	pe := extractor.Extract(util.FileURL(path), string(html))
	if info, err := os.Stat(path); err == nil {
		modified := info.ModTime().UTC().Format(isoMillis)
		pe.LastModified = &modified
	}
	return &pe
}
