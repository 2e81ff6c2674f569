package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nate11235813/SonifiedLLMKit/internal/engine"
	kiterrors "github.com/nate11235813/SonifiedLLMKit/internal/errors"
)

// Model is one bundled model entry in the manifest.
type Model struct {
	Name          string `yaml:"name"`
	URL           string `yaml:"url"`
	SHA256        string `yaml:"sha256"`
	SizeBytes     int64  `yaml:"size_bytes"`
	MinRAMMB      int    `yaml:"min_ram_mb"`
	ContextLength int    `yaml:"context_length"`
	Quantization  string `yaml:"quantization"`
}

// Spec converts a catalog entry into the engine's load descriptor.
func (m Model) Spec() engine.ModelSpec {
	return engine.ModelSpec{
		Name:          m.Name,
		ContextLength: m.ContextLength,
		Quantization:  m.Quantization,
	}
}

type Manifest struct {
	Models []Model `yaml:"models"`
}

// Parse decodes and validates a YAML manifest. Model names double as
// cache file names, so they must be unique and path-safe.
func Parse(raw []byte) (*Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	seen := make(map[string]bool, len(manifest.Models))
	for i, m := range manifest.Models {
		name := strings.TrimSpace(m.Name)
		if name == "" {
			return nil, fmt.Errorf("manifest entry %d has no name: %w", i, kiterrors.ErrInvalidInput)
		}
		if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
			return nil, fmt.Errorf("model name %q is not path-safe: %w", name, kiterrors.ErrInvalidInput)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate model name %q: %w", name, kiterrors.ErrInvalidInput)
		}
		seen[name] = true
		if strings.TrimSpace(m.URL) == "" {
			return nil, fmt.Errorf("model %q has no url: %w", name, kiterrors.ErrInvalidInput)
		}
		manifest.Models[i].Name = name
	}
	return &manifest, nil
}

// Load reads a manifest file.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return Parse(raw)
}

// Find returns the named model.
func (m *Manifest) Find(name string) (Model, error) {
	for _, model := range m.Models {
		if model.Name == name {
			return model, nil
		}
	}
	return Model{}, fmt.Errorf("model %q: %w", name, kiterrors.ErrNotFound)
}

// Select picks the most capable model whose RAM floor fits the device:
// the largest MinRAMMB not exceeding availableRAMMB, ties broken by name
// for determinism.
func Select(models []Model, availableRAMMB int) (Model, error) {
	candidates := make([]Model, 0, len(models))
	for _, m := range models {
		if m.MinRAMMB <= availableRAMMB {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return Model{}, fmt.Errorf("no model fits %d MB of RAM: %w", availableRAMMB, kiterrors.ErrNotFound)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].MinRAMMB != candidates[j].MinRAMMB {
			return candidates[i].MinRAMMB > candidates[j].MinRAMMB
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0], nil
}
