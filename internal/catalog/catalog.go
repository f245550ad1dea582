// Package catalog holds the built-in lessons and challenge variants.
package catalog

import (
	_ "embed"
	"fmt"

	"dental-quest-service/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type file struct {
	Assessments []domain.Definition `yaml:"assessments"`
}

// Parse decodes a catalog document and rejects duplicate ids.
func Parse(data []byte) ([]domain.Definition, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(f.Assessments))
	for _, def := range f.Assessments {
		if _, dup := seen[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate assessment id %q", domain.ErrConfiguration, def.ID)
		}
		seen[def.ID] = struct{}{}
	}
	return f.Assessments, nil
}

// Builtin returns the embedded catalog.
func Builtin() ([]domain.Definition, error) {
	return Parse(catalogYAML)
}

// ByID indexes definitions for the static loader.
func ByID(defs []domain.Definition) map[string]domain.Definition {
	out := make(map[string]domain.Definition, len(defs))
	for _, def := range defs {
		out[def.ID] = def
	}
	return out
}
