package adapters

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
)

// packageJSON holds the parts of package.json adapters care about.
type packageJSON struct {
	Name            string            `json:"name"`
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func readPackageJSON(root string) (*packageJSON, error) {
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if err != nil {
		return nil, err
	}
	var pkg packageJSON
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil, err
	}
	return &pkg, nil
}

// hasDependency reports whether package.json lists any of names as a
// dependency or dev dependency.
func hasDependency(root string, names ...string) bool {
	pkg, err := readPackageJSON(root)
	if err != nil {
		return false
	}
	for _, n := range names {
		if pkg.Dependencies[n] != "" || pkg.DevDependencies[n] != "" {
			return true
		}
	}
	return false
}

// listFiles walks dir and returns slash-separated paths relative to dir that
// match any of the glob patterns, sorted. Dot entries and node_modules are
// skipped. A missing dir yields no files.
func listFiles(dir string, patterns ...string) ([]string, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, err
		}
		globs = append(globs, g)
	}

	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipDir
			}
			return err
		}
		name := d.Name()
		if p != dir && (strings.HasPrefix(name, ".") || name == "node_modules") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		// Patterns are written against "/"+rel so "**.ext" covers every depth
		for _, g := range globs {
			if g.Match("/" + rel) {
				files = append(files, rel)
				break
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	sort.Strings(files)
	log.Trace().Str("dir", dir).Int("files", len(files)).Msg("Listed adapter files")
	return files, nil
}

// uniqueRoutes dedupes routes keeping first-occurrence order.
func uniqueRoutes(routes []string) []string {
	seen := make(map[string]struct{}, len(routes))
	out := make([]string, 0, len(routes))
	for _, r := range routes {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func stripExt(rel string, exts *regexp.Regexp) string {
	return exts.ReplaceAllString(rel, "")
}

// baseNameNoExt returns the file name of rel without its extension.
func baseNameNoExt(rel string) string {
	base := path.Base(rel)
	return strings.TrimSuffix(base, path.Ext(base))
}

// bracketParam converts "[name]" to ":name" and "[...name]" to ":name*".
var bracketParam = regexp.MustCompile(`\[(\.\.\.)?(.+?)\]`)

func convertBrackets(seg string) string {
	return bracketParam.ReplaceAllStringFunc(seg, func(m string) string {
		sub := bracketParam.FindStringSubmatch(m)
		if sub[1] != "" {
			return ":" + sub[2] + "*"
		}
		return ":" + sub[2]
	})
}

// joinRoute builds "/a/b" from segments, dropping empty ones.
func joinRoute(parts []string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return "/" + strings.Join(kept, "/")
}

// slugsFrom adds the base names of files matching patterns under root to seeds.
// Dynamic files such as "[slug].astro" or "$id.tsx" are not slugs.
func slugsFrom(root string, seeds []string, patterns ...string) []string {
	files, err := listFiles(root, patterns...)
	if err != nil {
		log.Debug().Err(err).Str("root", root).Msg("Slug discovery failed")
		return seeds
	}
	out := append([]string(nil), seeds...)
	for _, f := range files {
		base := baseNameNoExt(f)
		if base != "" && base != "index" && !strings.HasPrefix(base, "_") && !strings.ContainsAny(base, "[$") {
			out = append(out, base)
		}
	}
	return uniqueRoutes(out)
}
