package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Registry holds the versioned list of feed sources, loaded once at startup
// from YAML files in the sources directory.
type Registry struct {
	sources []Source
}

func NewRegistry(sourcesDir string) (*Registry, error) {
	if _, err := os.Stat(sourcesDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("sources directory does not exist: %s", sourcesDir)
	}

	files, err := filepath.Glob(filepath.Join(sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}

	yamlFiles, err := filepath.Glob(filepath.Join(sourcesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}
	files = append(files, yamlFiles...)

	r := &Registry{}
	seen := make(map[string]string)

	for _, file := range files {
		if filepath.Base(file) == "categories.yml" || filepath.Base(file) == "categories.yaml" {
			continue
		}

		loaded, err := loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		for _, src := range loaded {
			if err := validate(src); err != nil {
				return nil, fmt.Errorf("invalid source in %s: %w", file, err)
			}
			if prev, ok := seen[src.Name]; ok {
				return nil, fmt.Errorf("duplicate source name %q in %s (already defined in %s)", src.Name, file, prev)
			}
			seen[src.Name] = file
			r.sources = append(r.sources, src)
		}

		slog.Debug("Source registry file loaded", "file", file, "sources", len(loaded))
	}

	// Stable fetch order: priority ascending, name as tiebreak.
	sort.SliceStable(r.sources, func(i, j int) bool {
		if r.sources[i].Priority != r.sources[j].Priority {
			return r.sources[i].Priority < r.sources[j].Priority
		}
		return r.sources[i].Name < r.sources[j].Name
	})

	return r, nil
}

// ByKind returns the registered sources of the given kind in priority order.
func (r *Registry) ByKind(kind Kind) []Source {
	var out []Source
	for _, src := range r.sources {
		if src.Kind == kind {
			out = append(out, src)
		}
	}
	return out
}

// All returns every registered source in priority order.
func (r *Registry) All() []Source {
	return r.sources
}

func (r *Registry) Count() int {
	return len(r.sources)
}

func loadFile(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return file.Sources, nil
}

func validate(src Source) error {
	if src.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if src.URL == "" {
		return fmt.Errorf("source %q: feed URL is required", src.Name)
	}
	if src.Kind != KindArticle && src.Kind != KindVideo {
		return fmt.Errorf("source %q: kind must be %q or %q, got %q", src.Name, KindArticle, KindVideo, src.Kind)
	}
	if src.Priority < 0 {
		return fmt.Errorf("source %q: priority must be non-negative", src.Name)
	}
	return nil
}
