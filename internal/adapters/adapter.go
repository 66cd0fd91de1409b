// Package adapters maps web framework project layouts to route patterns and
// build output directories.
package adapters

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Result is what an adapter learns about a project.
type Result struct {
	Routes    []string
	BuildDirs []string
}

// Adapter recognises one framework's project layout.
type Adapter interface {
	Name() string
	Detect(root string) bool
	Routes(root string) (Result, error)
}

// ParamDiscoverer is implemented by adapters that can suggest sample values
// for route parameters by name.
type ParamDiscoverer interface {
	DiscoverParams(root string) (map[string][]string, error)
}

// RouteParamDiscoverer is implemented by adapters that can suggest sample
// values for specific route patterns.
type RouteParamDiscoverer interface {
	DiscoverRouteParams(root string) (map[string]map[string][]string, error)
}

var (
	registryMu sync.RWMutex
	registry   = []Adapter{
		Next{},
		Nuxt{},
		Astro{},
		Remix{},
		SvelteKit{},
		&Gatsby{},
		Angular{},
	}
)

// Register appends an adapter to the detection order.
func Register(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = append(registry, a)
}

// Registered returns the adapters in detection order.
func Registered() []Adapter {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]Adapter, len(registry))
	copy(out, registry)
	return out
}

// Detect returns the first registered adapter that recognises root.
func Detect(root string) (Adapter, bool) {
	for _, a := range Registered() {
		if a.Detect(root) {
			log.Debug().Str("adapter", a.Name()).Str("root", root).Msg("Detected framework")
			return a, true
		}
	}
	return nil, false
}

// ByName returns the registered adapter with the given name.
func ByName(name string) (Adapter, bool) {
	for _, a := range Registered() {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// DetectRoutes runs the first matching adapter. ok is false when no adapter
// recognises root.
func DetectRoutes(root string) (res Result, ok bool, err error) {
	a, found := Detect(root)
	if !found {
		return Result{}, false, nil
	}
	res, err = a.Routes(root)
	return res, true, err
}
