package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
models:
  llm-runner:
    llama-3.1-8b:
      vram_mb: 8000
      type: chat
      context_window: 131072
    llama-3.1-70b-q4:
      vram_mb: 18000
      type: chat
      context_window: 131072
  batch-engine:
    bge-large:
      vram_mb: 1500
      type: embedding
  speech-engine:
    tts-v2:
      vram_mb: 2500
      type: synthesis
`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp catalog: %v", err)
	}
	return path
}

func TestLoadAndLookup(t *testing.T) {
	c, err := Load(writeTemp(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 4 {
		t.Fatalf("len=%d want 4", c.Len())
	}

	e, ok := c.Lookup("llm-runner", "llama-3.1-8b")
	if !ok {
		t.Fatalf("expected llama-3.1-8b in catalog")
	}
	if e.VRAMMB != 8000 || e.Type != "chat" || e.ContextWindow != 131072 {
		t.Fatalf("entry=%+v", e)
	}

	e, ok = c.Lookup("batch-engine", "bge-large")
	if !ok || e.VRAMMB != 1500 || e.Type != "embedding" {
		t.Fatalf("entry=%+v ok=%v", e, ok)
	}
}

func TestLookupMisses(t *testing.T) {
	c, err := Load(writeTemp(t, sampleYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := c.Lookup("llm-runner", "unknown-model"); ok {
		t.Fatalf("unexpected hit for unknown model")
	}
	if _, ok := c.Lookup("unknown-provider", "llama-3.1-8b"); ok {
		t.Fatalf("unexpected hit for unknown provider")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadMalformed(t *testing.T) {
	if _, err := Load(writeTemp(t, "models: [not, a, map")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadEmptyFile(t *testing.T) {
	c, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("len=%d want 0", c.Len())
	}
	if _, ok := c.Lookup("llm-runner", "m"); ok {
		t.Fatalf("unexpected hit on empty catalog")
	}
}
