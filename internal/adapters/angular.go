package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// Angular contributes build directories only; its routes live in code.
type Angular struct{}

func (Angular) Name() string { return "angular" }

func (Angular) Detect(root string) bool { return hasDependency(root, "@angular/core") }

func (Angular) Routes(root string) (Result, error) {
	dirs := []string{"dist"}
	if name := angularProject(root); name != "" {
		dirs = append(dirs, "dist/"+name, "dist/"+name+"/browser")
	}
	return Result{Routes: []string{}, BuildDirs: dirs}, nil
}

// angularProject prefers angular.json's defaultProject, then its first
// project, then the package name.
func angularProject(root string) string {
	data, err := os.ReadFile(filepath.Join(root, "angular.json"))
	if err == nil {
		var cfg struct {
			DefaultProject string                     `json:"defaultProject"`
			Projects       map[string]json.RawMessage `json:"projects"`
		}
		if json.Unmarshal(data, &cfg) == nil {
			if cfg.DefaultProject != "" {
				return cfg.DefaultProject
			}
			names := make([]string, 0, len(cfg.Projects))
			for n := range cfg.Projects {
				names = append(names, n)
			}
			sort.Strings(names)
			if len(names) > 0 {
				return names[0]
			}
			return ""
		}
	}

	if pkg, err := readPackageJSON(root); err == nil {
		return pkg.Name
	}
	return ""
}
