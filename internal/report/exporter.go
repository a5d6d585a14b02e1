package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Exporter struct {
	OutputDir string
}

func NewExporter(outputDir string) *Exporter {
	return &Exporter{OutputDir: outputDir}
}

// ExportJSON writes the integrated data as indented JSON and returns the path.
func (e *Exporter) ExportJSON(data *IntegratedData, filename string) (string, error) {
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	b, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.OutputDir, filename)
	return path, os.WriteFile(path, b, 0644)
}

// FallbackPath is where the local copy of a report for r is written.
func (e *Exporter) FallbackPath(r DateRange) string {
	name := fmt.Sprintf("reflection_%s_%s.md", r.Start.Format(DateLayout), r.End.Format(DateLayout))
	return filepath.Join(e.OutputDir, name)
}

// WriteFallback persists rendered report text locally. The path is returned
// even when the write fails so callers can still point the user at it.
func (e *Exporter) WriteFallback(text string, r DateRange) (string, error) {
	path := e.FallbackPath(r)
	if err := os.MkdirAll(e.OutputDir, 0755); err != nil {
		return path, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return path, fmt.Errorf("failed to write fallback report: %w", err)
	}
	return path, nil
}
