// ABOUTME: Export functionality for the ingest history
// ABOUTME: Supports YAML and Markdown export formats
package sqlite

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ExportData represents the complete exportable ingest history
type ExportData struct {
	Version    string      `yaml:"version" json:"version"`
	ExportedAt string      `yaml:"exported_at" json:"exported_at"`
	Tool       string      `yaml:"tool" json:"tool"`
	Runs       []IngestRun `yaml:"runs" json:"runs"`
}

// Export collects up to limit recent runs with their document outcomes
func (l *IngestLog) Export(limit int) (*ExportData, error) {
	data := &ExportData{
		Version:    "1.0",
		ExportedAt: time.Now().Format(time.RFC3339),
		Tool:       "libqa",
		Runs:       []IngestRun{},
	}

	runs, err := l.Recent(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	for _, run := range runs {
		outcomes, err := l.outcomes(run.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list documents for run %s: %w", run.ID, err)
		}
		run.Outcomes = outcomes
		data.Runs = append(data.Runs, run)
	}

	return data, nil
}

// ExportToYAML exports the ingest history to a YAML file
func (l *IngestLog) ExportToYAML(outputPath string, limit int) error {
	data, err := l.Export(limit)
	if err != nil {
		return err
	}

	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}

	return encoder.Close()
}

// ExportToMarkdown exports the ingest history to a Markdown file
func (l *IngestLog) ExportToMarkdown(outputPath string, limit int) error {
	data, err := l.Export(limit)
	if err != nil {
		return err
	}

	file, err := createOutput(outputPath)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	_, _ = fmt.Fprintf(file, "# Ingest History - %s\n\n", time.Now().Format("2006-01-02"))
	_, _ = fmt.Fprintf(file, "Generated: %s\n\n", data.ExportedAt)

	if len(data.Runs) == 0 {
		_, _ = fmt.Fprintln(file, "No ingestion runs recorded.")
		return nil
	}

	for _, run := range data.Runs {
		_, _ = fmt.Fprintf(file, "## %s (%s)\n\n", run.StartedAt.Format(time.RFC3339), run.Status)
		_, _ = fmt.Fprintf(file, "- **Run:** %s\n", run.ID)
		_, _ = fmt.Fprintf(file, "- **Directory:** %s\n", run.Dir)
		_, _ = fmt.Fprintf(file, "- **Documents:** %d\n", run.Documents)
		_, _ = fmt.Fprintf(file, "- **Chunks:** %d\n", run.Chunks)
		if run.Error != "" {
			_, _ = fmt.Fprintf(file, "- **Error:** %s\n", run.Error)
		}
		_, _ = fmt.Fprintln(file)

		if len(run.Outcomes) > 0 {
			_, _ = fmt.Fprintln(file, "| Document | Pages | Chunks | Error |")
			_, _ = fmt.Fprintln(file, "|----------|-------|--------|-------|")
			for _, o := range run.Outcomes {
				_, _ = fmt.Fprintf(file, "| %s | %d | %d | %s |\n", o.Source, o.Pages, o.Chunks, o.Error)
			}
			_, _ = fmt.Fprintln(file)
		}
		_, _ = fmt.Fprintln(file, "---")
		_, _ = fmt.Fprintln(file)
	}

	return nil
}

func createOutput(outputPath string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	file, err := os.Create(outputPath) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return file, nil
}
