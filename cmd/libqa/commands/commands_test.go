// ABOUTME: End-to-end tests running subcommands through the root command
// ABOUTME: Uses a temp data directory with the hash embedder and no generator
package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harper/libraryqa/internal/models"
)

const borrowingPolicy = "BORROWING RULES\nUndergraduate students may borrow up to three books for fourteen days.\nBooks can be renewed once at the circulation desk.\n"

// offlineEnv points configuration at a temp data dir with offline backends
func offlineEnv(t *testing.T) string {
	t.Helper()
	dataDir := t.TempDir()
	t.Setenv("LIBQA_DATA_DIR", dataDir)
	t.Setenv("LIBQA_VECTOR_STORE", "")
	t.Setenv("LIBQA_EMBEDDER", "hash")
	t.Setenv("LIBQA_GENERATOR", "none")
	t.Setenv("LIBQA_RULES_FILE", "")
	t.Setenv("LIBQA_LOG_LEVEL", "error")
	return dataDir
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "borrowing.txt"), []byte(borrowingPolicy), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return dir
}

// run executes the root command and returns stdout
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("%v error = %v", args, err)
	}
	return out
}

func TestIngestAskSearch(t *testing.T) {
	offlineEnv(t)
	docs := writeDocs(t)

	out := mustRun(t, "ingest", docs)
	if !strings.Contains(out, "borrowing.txt") || !strings.Contains(out, "Ingested 1 document(s)") {
		t.Errorf("ingest output = %q", out)
	}

	out = mustRun(t, "--format", "json", "ask", "How many books can I borrow?")
	var answer models.Answer
	if err := json.Unmarshal([]byte(out), &answer); err != nil {
		t.Fatalf("Unmarshal() error = %v\n%s", err, out)
	}
	if !answer.Found || !answer.Degraded {
		t.Errorf("answer flags = found %v degraded %v, want both true", answer.Found, answer.Degraded)
	}
	if !strings.Contains(answer.Text, "three books") {
		t.Errorf("answer text = %q", answer.Text)
	}
	if len(answer.Sources) != 1 || answer.Sources[0] != "borrowing.txt" {
		t.Errorf("sources = %v, want [borrowing.txt]", answer.Sources)
	}

	out = mustRun(t, "--format", "json", "search", "books")
	var results []models.ScoredChunk
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("Unmarshal() error = %v\n%s", err, out)
	}
	if len(results) != 1 || results[0].KeywordScore != 6 {
		t.Errorf("keyword results = %+v, want one chunk scoring 6", results)
	}

	out = mustRun(t, "search", "--mode", "similarity", "renew a book")
	if !strings.Contains(out, "borrowing.txt") {
		t.Errorf("similarity output = %q", out)
	}
}

func TestAsk_NotFound(t *testing.T) {
	offlineEnv(t)

	out := mustRun(t, "ask", "When", "does", "the", "library", "open?")
	if !strings.Contains(out, "couldn't find") && !strings.Contains(out, "could not find") {
		t.Errorf("not-found output = %q", out)
	}
}

func TestSearch_Validation(t *testing.T) {
	offlineEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"zero limit", []string{"search", "--limit", "0", "fines"}},
		{"unknown mode", []string{"search", "--mode", "fuzzy", "fines"}},
		{"no query", []string{"search"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestStatsAndClear(t *testing.T) {
	dataDir := offlineEnv(t)
	mustRun(t, "ingest", writeDocs(t))

	out := mustRun(t, "--format", "json", "stats")
	var report statsReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Unmarshal() error = %v\n%s", err, out)
	}
	if report.Store.TotalChunks != 1 || report.Store.Sources["borrowing.txt"] != 1 {
		t.Errorf("store stats = %+v", report.Store)
	}
	if report.LastRun == nil || report.LastRun.Status != "succeeded" {
		t.Errorf("last run = %+v", report.LastRun)
	}
	if report.Database != filepath.Join(dataDir, "libraryqa.db") {
		t.Errorf("database = %q, want under the data dir", report.Database)
	}

	out = mustRun(t, "clear")
	if !strings.Contains(out, "--confirm") {
		t.Errorf("clear without confirm = %q", out)
	}
	out = mustRun(t, "--format", "json", "stats")
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if report.Store.TotalChunks != 1 {
		t.Errorf("unconfirmed clear removed chunks: %d", report.Store.TotalChunks)
	}

	mustRun(t, "clear", "--confirm")
	out = mustRun(t, "--format", "json", "stats")
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if report.Store.TotalChunks != 0 || report.Store.Loaded {
		t.Errorf("after clear stats = %+v", report.Store)
	}
}

func TestIngest_EmptyDirFails(t *testing.T) {
	offlineEnv(t)

	if _, err := run(t, "ingest", t.TempDir()); err == nil {
		t.Error("ingest of an empty directory should fail")
	}
	if _, err := run(t, "ingest", "--workers", "0", t.TempDir()); err == nil {
		t.Error("ingest with zero workers should fail")
	}
}

func TestHistoryAndExport(t *testing.T) {
	offlineEnv(t)
	mustRun(t, "ingest", writeDocs(t))

	out := mustRun(t, "history")
	if !strings.Contains(out, "succeeded") {
		t.Errorf("history output = %q", out)
	}

	path := filepath.Join(t.TempDir(), "history.md")
	mustRun(t, "export", "-f", "markdown", "-o", path)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "# Ingest History") || !strings.Contains(string(data), "borrowing.txt") {
		t.Errorf("markdown export = %q", data)
	}

	if _, err := run(t, "export"); err == nil {
		t.Error("export without --output should fail")
	}
	if _, err := run(t, "export", "-f", "csv", "-o", path); err == nil {
		t.Error("export with unknown format should fail")
	}
}

func TestIngest_ChangeTracking(t *testing.T) {
	offlineEnv(t)
	docs := writeDocs(t)

	out := mustRun(t, "ingest", "--check", docs)
	if !strings.Contains(out, "new") || !strings.Contains(out, "Run 'libqa ingest'") {
		t.Errorf("check before ingest = %q", out)
	}

	out = mustRun(t, "ingest", "--if-changed", docs)
	if !strings.Contains(out, "Ingested 1 document(s)") {
		t.Errorf("first --if-changed output = %q", out)
	}

	out = mustRun(t, "ingest", "--if-changed", docs)
	if !strings.Contains(out, "No changes") {
		t.Errorf("second --if-changed output = %q", out)
	}

	updated := borrowingPolicy + "Reference books cannot be borrowed.\n"
	if err := os.WriteFile(filepath.Join(docs, "borrowing.txt"), []byte(updated), 0644); err != nil {
		t.Fatal(err)
	}

	out = mustRun(t, "--format", "json", "ingest", "--check", docs)
	var changes struct {
		Modified []string `json:"modified"`
	}
	if err := json.Unmarshal([]byte(out), &changes); err != nil {
		t.Fatalf("Unmarshal() error = %v\n%s", err, out)
	}
	if len(changes.Modified) != 1 || changes.Modified[0] != "borrowing.txt" {
		t.Errorf("modified = %v, want [borrowing.txt]", changes.Modified)
	}

	if _, err := run(t, "ingest", "--check", "--if-changed", docs); err == nil {
		t.Error("--check and --if-changed together should fail")
	}
}
