// ABOUTME: Test runner for RAGAS benchmarks - executes scenarios and collects results
// ABOUTME: Ingests each scenario's documents into a fresh store, asks, and scores the answer
package ragas

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/harper/libraryqa/internal/core"
	"github.com/harper/libraryqa/internal/docs"
	"github.com/harper/libraryqa/internal/llm"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/harper/libraryqa/internal/storage"
)

// BenchmarkRunner executes RAGAS benchmark tests
type BenchmarkRunner struct {
	rules     *core.Rules
	embedder  llm.Embedder
	generator llm.Generator
	timeout   time.Duration
	metrics   *MetricsCalculator
	out       io.Writer
	verbose   bool
}

// NewBenchmarkRunner creates a runner. A nil embedder uses hash embeddings;
// a nil generator scores the quoted fallback answers.
func NewBenchmarkRunner(embedder llm.Embedder, generator llm.Generator, out io.Writer, verbose bool) *BenchmarkRunner {
	if embedder == nil {
		embedder = llm.NewHashEmbedder()
	}
	if out == nil {
		out = io.Discard
	}
	return &BenchmarkRunner{
		rules:     core.DefaultRules(),
		embedder:  embedder,
		generator: generator,
		timeout:   60 * time.Second,
		metrics:   NewMetricsCalculator(),
		out:       out,
		verbose:   verbose,
	}
}

// RunTest executes a single benchmark test against an isolated store
func (r *BenchmarkRunner) RunTest(ctx context.Context, scenario TestScenario) (TestResult, error) {
	if r.verbose {
		fmt.Fprintf(r.out, "\n========================================\n")
		fmt.Fprintf(r.out, "RUNNING: %s\n", scenario.Name)
		fmt.Fprintf(r.out, "========================================\n")
		fmt.Fprintf(r.out, "Description: %s\n\n", scenario.Description)
	}

	tmpDir, err := os.MkdirTemp("", "libqa_bench_"+scenario.ID+"_")
	if err != nil {
		return TestResult{}, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	docsDir := filepath.Join(tmpDir, "docs")
	if err := r.writeDocuments(docsDir, scenario.Documents); err != nil {
		return TestResult{}, fmt.Errorf("setup failed: %w", err)
	}

	logger := logging.Discard()
	store, err := storage.NewVectorStore(storage.Options{Dir: filepath.Join(tmpDir, "store"), Logger: logger})
	if err != nil {
		return TestResult{}, err
	}

	ingestor := core.NewIngestor(docs.NewLoader(logger), core.NewSegmenter(r.rules, logger), r.embedder, store, nil, logger)
	report, err := ingestor.Run(ctx, docsDir)
	if err != nil {
		return TestResult{}, fmt.Errorf("ingestion failed: %w", err)
	}
	if r.verbose {
		fmt.Fprintf(r.out, "Ingested %d document(s) into %d chunk(s)\n", report.Documents, report.Chunks)
	}

	retriever := core.NewRetriever(store, r.embedder, r.rules, logger)
	answerer := core.NewAnswerer(retriever, r.generator, nil, r.timeout, logger)

	var retrieved []string
	if result, err := retriever.Retrieve(ctx, scenario.Question); err == nil {
		for _, c := range result.Chunks {
			retrieved = append(retrieved, c.Text)
		}
	}

	answer, err := answerer.Ask(ctx, scenario.Question)
	if err != nil {
		return TestResult{}, fmt.Errorf("question failed: %w", err)
	}

	if r.verbose {
		fmt.Fprintf(r.out, "Q: %s\n", scenario.Question)
		fmt.Fprintf(r.out, "A: %s\n", answer.Text)
		fmt.Fprintf(r.out, "  [DEBUG] Context items (%d), category %s\n", len(retrieved), answer.Category)
	}

	result := r.metrics.EvaluateTest(scenario, answer, retrieved)

	if r.verbose {
		fmt.Fprintf(r.out, "\nFaithfulness: %.2f\n", result.FaithfulnessScore)
		fmt.Fprintf(r.out, "Context Recall: %.2f\n", result.ContextRecallScore)
		fmt.Fprintf(r.out, "Overall Score: %.2f\n", result.OverallScore)
		fmt.Fprintf(r.out, "Status: %s\n", result.Status)
	}

	return result, nil
}

func (r *BenchmarkRunner) writeDocuments(dir string, documents []PolicyDocument) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, doc := range documents {
		if err := os.WriteFile(filepath.Join(dir, doc.Name), []byte(doc.Text), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", doc.Name, err)
		}
	}
	return nil
}

// RunAllTests runs every scenario in order
func (r *BenchmarkRunner) RunAllTests(ctx context.Context) ([]TestResult, error) {
	scenarios := GetAllTests()
	results := make([]TestResult, 0, len(scenarios))

	for _, scenario := range scenarios {
		result, err := r.RunTest(ctx, scenario)
		if err != nil {
			return nil, fmt.Errorf("test %s failed: %w", scenario.ID, err)
		}
		results = append(results, result)
	}

	return results, nil
}

// Summary counts passes and failures
type Summary struct {
	Timestamp  string       `json:"timestamp"`
	TotalTests int          `json:"total_tests"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Results    []TestResult `json:"results"`
}

// Summarize builds the exported summary for results
func Summarize(results []TestResult) Summary {
	summary := Summary{
		Timestamp:  time.Now().Format(time.RFC3339),
		TotalTests: len(results),
		Results:    results,
	}
	for _, result := range results {
		if result.Status == "PASS" {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	return summary
}

// ExportResults exports test results to JSON
func (r *BenchmarkRunner) ExportResults(results []TestResult, outputPath string) error {
	jsonData, err := json.MarshalIndent(Summarize(results), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := os.WriteFile(outputPath, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}

	fmt.Fprintf(r.out, "✓ Results exported to: %s\n", outputPath)
	return nil
}

