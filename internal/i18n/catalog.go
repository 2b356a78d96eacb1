// Package i18n serves the localized UI and spoken strings.
package i18n

import (
	_ "embed"
	"fmt"
	log "log/slog"

	"gopkg.in/yaml.v3"

	"dhwani/pkg/lang"
)

//go:embed strings.yaml
var builtin []byte

// Catalog maps a string key to its text in every supported language.
type Catalog struct {
	entries map[string]map[lang.Language]string
}

// Load parses the built-in table.
func Load() (*Catalog, error) {
	return Parse(builtin)
}

// MustLoad is Load for program start-up, where a broken table is a build defect.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// Parse reads a YAML table and rejects any key missing a language.
func Parse(data []byte) (*Catalog, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	entries := make(map[string]map[lang.Language]string, len(raw))
	for key, texts := range raw {
		row := make(map[lang.Language]string, len(texts))
		for code, text := range texts {
			l, err := lang.Parse(code)
			if err != nil {
				return nil, fmt.Errorf("catalog key %q: %w", key, err)
			}
			row[l] = text
		}
		for _, l := range lang.All() {
			if row[l] == "" {
				return nil, fmt.Errorf("catalog key %q: missing %s text", key, l)
			}
		}
		entries[key] = row
	}
	return &Catalog{entries: entries}, nil
}

// T returns the text for key in l. Unknown keys come back unchanged.
func (c *Catalog) T(key string, l lang.Language) string {
	row, ok := c.entries[key]
	if !ok {
		log.Warn("Missing catalog key", "key", key)
		return key
	}
	if text, ok := row[l]; ok {
		return text
	}
	return row[lang.Default]
}
