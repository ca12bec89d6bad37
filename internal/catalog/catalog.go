package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry describes one known model's expected footprint.
type Entry struct {
	// Estimated VRAM footprint in MB, used for pre-flight budget checks.
	// Actual consumption after load may differ and is reconciled via
	// telemetry.
	VRAMMB int `yaml:"vram_mb"`
	// chat, embedding or synthesis.
	Type string `yaml:"type"`
	// Optional context window for chat models.
	ContextWindow int `yaml:"context_window,omitempty"`
}

// Catalog is a read-only lookup of (provider, model id) -> footprint,
// loaded once at startup. Unknown models are not an error; callers fall
// back to a conservative default estimate.
type Catalog struct {
	models map[string]map[string]Entry
}

type fileFormat struct {
	Models map[string]map[string]Entry `yaml:"models"`
}

// Load reads the catalog YAML at path. An unreadable or malformed file is
// the caller's only fatal startup condition.
func Load(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if f.Models == nil {
		f.Models = map[string]map[string]Entry{}
	}
	return &Catalog{models: f.Models}, nil
}

// New builds a catalog from an in-memory table (used by tests).
func New(models map[string]map[string]Entry) *Catalog {
	if models == nil {
		models = map[string]map[string]Entry{}
	}
	return &Catalog{models: models}
}

// Lookup returns the entry for (provider, modelID). ok=false means the
// model is unknown, not that the request is invalid.
func (c *Catalog) Lookup(provider, modelID string) (Entry, bool) {
	byModel, ok := c.models[provider]
	if !ok {
		return Entry{}, false
	}
	e, ok := byModel[modelID]
	return e, ok
}

// Len returns the number of catalog entries across all providers.
func (c *Catalog) Len() int {
	n := 0
	for _, byModel := range c.models {
		n += len(byModel)
	}
	return n
}
