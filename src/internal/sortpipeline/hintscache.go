package sortpipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const hintsCacheMaxAge = 24 * time.Hour

// hintsCacheDoc is the on-disk shape of logs/author_hints_cache.yaml: a
// small document round-tripped between Sort Pipeline runs so --author-hints
// doesn't force a fresh catalog scan on every invocation.
type hintsCacheDoc struct {
	GeneratedAt time.Time `yaml:"generated_at"`
	Names       []string  `yaml:"names"`
}

// loadHintsCache returns the cached author names when path exists and is
// younger than hintsCacheMaxAge. A missing, corrupt, or stale cache yields
// (nil, false) rather than an error — the caller re-derives the hints from
// the catalog in that case.
func loadHintsCache(path string) ([]string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var doc hintsCacheDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, false
	}
	if time.Since(doc.GeneratedAt) > hintsCacheMaxAge {
		return nil, false
	}
	return doc.Names, len(doc.Names) > 0
}

// saveHintsCache writes names to path, stamped with the current time.
func saveHintsCache(path string, names []string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create hints cache dir %s: %w", dir, err)
		}
	}
	doc := hintsCacheDoc{GeneratedAt: time.Now(), Names: names}
	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("marshal hints cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write hints cache %s: %w", path, err)
	}
	return nil
}
