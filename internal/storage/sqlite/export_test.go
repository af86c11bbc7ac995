// ABOUTME: Tests for ingest history export
// ABOUTME: Verifies YAML and Markdown export formats
package sqlite

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func seedRun(t *testing.T, log *IngestLog) string {
	t.Helper()
	runID, err := log.StartRun("/srv/pdfs")
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	_ = log.RecordDocument(runID, DocumentOutcome{Source: "policy.pdf", Pages: 2, Chunks: 5})
	if err := log.FinishRun(runID, 1, 5, nil); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}
	return runID
}

func TestExport(t *testing.T) {
	log, _ := newTestLog(t)
	runID := seedRun(t, log)

	data, err := log.Export(10)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if data.Version != "1.0" {
		t.Errorf("Version = %v, want 1.0", data.Version)
	}
	if data.Tool != "libqa" {
		t.Errorf("Tool = %v, want libqa", data.Tool)
	}
	if len(data.Runs) != 1 || data.Runs[0].ID != runID {
		t.Fatalf("Runs = %+v, want run %s", data.Runs, runID)
	}
	if len(data.Runs[0].Outcomes) != 1 {
		t.Errorf("Outcomes = %+v, want 1", data.Runs[0].Outcomes)
	}
}

func TestExportToYAML(t *testing.T) {
	log, _ := newTestLog(t)
	runID := seedRun(t, log)

	outputPath := filepath.Join(t.TempDir(), "out", "history.yaml")
	if err := log.ExportToYAML(outputPath, 10); err != nil {
		t.Fatalf("ExportToYAML() error = %v", err)
	}

	raw, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var parsed struct {
		Tool string `yaml:"tool"`
		Runs []struct {
			ID       string `yaml:"id"`
			Status   string `yaml:"status"`
			Outcomes []struct {
				Source string `yaml:"source"`
			} `yaml:"outcomes"`
		} `yaml:"runs"`
	}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if parsed.Tool != "libqa" {
		t.Errorf("tool = %q, want libqa", parsed.Tool)
	}
	if len(parsed.Runs) != 1 || parsed.Runs[0].ID != runID || parsed.Runs[0].Status != RunSucceeded {
		t.Fatalf("runs = %+v", parsed.Runs)
	}
	if len(parsed.Runs[0].Outcomes) != 1 || parsed.Runs[0].Outcomes[0].Source != "policy.pdf" {
		t.Errorf("outcomes = %+v", parsed.Runs[0].Outcomes)
	}
}

func TestExportToMarkdown(t *testing.T) {
	log, _ := newTestLog(t)
	runID := seedRun(t, log)

	outputPath := filepath.Join(t.TempDir(), "history.md")
	if err := log.ExportToMarkdown(outputPath, 10); err != nil {
		t.Fatalf("ExportToMarkdown() error = %v", err)
	}

	raw, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	content := string(raw)

	for _, want := range []string{"# Ingest History", runID, "| policy.pdf | 2 | 5 |  |", "(succeeded)"} {
		if !strings.Contains(content, want) {
			t.Errorf("markdown missing %q:\n%s", want, content)
		}
	}
}

func TestExportEmptyLog(t *testing.T) {
	log, _ := newTestLog(t)

	outputPath := filepath.Join(t.TempDir(), "history.md")
	if err := log.ExportToMarkdown(outputPath, 10); err != nil {
		t.Fatalf("ExportToMarkdown() error = %v", err)
	}
	raw, _ := os.ReadFile(outputPath)
	if !strings.Contains(string(raw), "No ingestion runs recorded.") {
		t.Errorf("empty export = %q", string(raw))
	}
}
