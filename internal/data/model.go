package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ModelEntry describes how an entity kind is built: its model asset and the
// physics body it gets.
type ModelEntry struct {
	Name     string      `yaml:"name"`
	Path     string      `yaml:"path"`
	Material string      `yaml:"material"` // .mtl path; only used with .obj
	Box      [3]float64  `yaml:"box"`      // placeholder geometry until the model loads
	Mass     float64     `yaml:"mass"`
	Gravity  *[3]float64 `yaml:"gravity"` // nil = world gravity
	Damping  float64     `yaml:"damping"`
}

type modelListFile struct {
	Models []ModelEntry `yaml:"models"`
}

// ModelTable holds all model entries indexed by name.
type ModelTable struct {
	models map[string]*ModelEntry
}

// LoadModelTable loads models.yaml.
func LoadModelTable(path string) (*ModelTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model list: %w", err)
	}
	return ParseModelTable(raw)
}

// ParseModelTable decodes a model list document.
func ParseModelTable(raw []byte) (*ModelTable, error) {
	var f modelListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse model list: %w", err)
	}
	t := &ModelTable{models: make(map[string]*ModelEntry, len(f.Models))}
	for i := range f.Models {
		m := &f.Models[i]
		if m.Name == "" {
			return nil, fmt.Errorf("model %d: missing name", i)
		}
		if _, dup := t.models[m.Name]; dup {
			return nil, fmt.Errorf("model %q: duplicate name", m.Name)
		}
		if m.Box == ([3]float64{}) {
			m.Box = [3]float64{1, 1, 1}
		}
		t.models[m.Name] = m
	}
	return t, nil
}

// Get returns the entry for name, or nil if none.
func (t *ModelTable) Get(name string) *ModelEntry {
	if t == nil {
		return nil
	}
	return t.models[name]
}

// Count returns the total number of models loaded.
func (t *ModelTable) Count() int {
	if t == nil {
		return 0
	}
	return len(t.models)
}
