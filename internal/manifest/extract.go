package manifest

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"
)

// ExtractScripts writes every embedded setup script to the target directory,
// grouped by language, so operators can copy them into an override directory
// and edit them. Existing files are left untouched.
func (r *Registry) ExtractScripts(targetDir string) (int, error) {
	slog.Info("Extracting setup scripts", "target_dir", targetDir)

	r.mu.RLock()
	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	r.mu.RUnlock()

	extractedCount := 0
	for _, entry := range entries {
		langDir := filepath.Join(targetDir, entry.Language)
		if err := os.MkdirAll(langDir, 0o755); err != nil {
			return extractedCount, fmt.Errorf("failed to create language directory %s: %w", langDir, err)
		}

		for _, scriptPath := range entry.Scripts {
			data, err := afero.ReadFile(r.resources, scriptPath)
			if err != nil {
				slog.Warn("Failed to read script for extraction", "script", scriptPath, "error", err)
				continue
			}

			filePath := filepath.Join(langDir, path.Base(scriptPath))
			if _, err := os.Stat(filePath); err == nil {
				slog.Debug("Skipping existing file", "file", filePath)
				continue
			}

			if err := os.WriteFile(filePath, data, 0o644); err != nil {
				return extractedCount, fmt.Errorf("failed to write script file %s: %w", filePath, err)
			}
			extractedCount++
			slog.Debug("Extracted script", "file", filePath, "language", entry.Language)
		}
	}

	slog.Info("Script extraction completed", "extracted_count", extractedCount, "target_dir", targetDir)
	return extractedCount, nil
}
