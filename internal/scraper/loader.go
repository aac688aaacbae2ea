package scraper

import (
	"embed"
	"log/slog"
)

//go:embed selectors.json
var embeddedSelectors embed.FS

// LoadConfig tries to load selectors in the following order:
// 1. External file at path, when one is given
// 2. Embedded selectors.json
// 3. Hardcoded defaults
func LoadConfig(path string) SelectorConfig {
	if path != "" {
		if fileSel, err := LoadSelectors(path); err == nil {
			slog.Info("Loaded selectors from external file", "path", path)
			return fileSel
		} else {
			slog.Warn("Failed to load external selectors, trying embedded config", "path", path, "error", err)
		}
	}

	data, err := embeddedSelectors.ReadFile("selectors.json")
	if err == nil {
		sel, parseErr := LoadSelectorsFromBytes(data)
		if parseErr == nil {
			slog.Info("Loaded selectors from embedded config.")
			return sel
		}
		slog.Warn("Embedded selectors failed to parse. Using defaults.", "error", parseErr)
	}

	slog.Info("Using hardcoded default selectors")
	return DefaultSelectors()
}
