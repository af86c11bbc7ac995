// ABOUTME: Command-line benchmark runner for RAGAS tests
// ABOUTME: Runs the library Q&A scenarios and writes JSON results
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/harper/libraryqa/benchmarks/ragas"
	"github.com/harper/libraryqa/internal/app"
	"github.com/harper/libraryqa/internal/config"
	"github.com/harper/libraryqa/internal/logging"
	"github.com/joho/godotenv"
)

func main() {
	testID := flag.String("test", "", "Run a specific test (borrowing, fines, integrity, hours). If empty, runs all tests.")
	outputPath := flag.String("output", "benchmark_results.json", "Output path for JSON results")
	useModels := flag.Bool("models", false, "Use the configured embedder and generator instead of offline backends")
	verbose := flag.Bool("verbose", false, "Enable verbose output")
	flag.Parse()

	logger := logging.New(os.Stderr, "info")

	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file found", "err", err)
	}

	runner := ragas.NewBenchmarkRunner(nil, nil, os.Stdout, *verbose)
	if *useModels {
		cfg, err := config.Load()
		if err != nil {
			logger.Fatal("invalid configuration", "err", err)
		}
		embedder, err := app.NewEmbedder(cfg, logger)
		if err != nil {
			logger.Fatal("failed to create embedder", "err", err)
		}
		generator, err := app.NewGenerator(cfg)
		if err != nil {
			logger.Fatal("failed to create generator", "err", err)
		}
		runner = ragas.NewBenchmarkRunner(embedder, generator, os.Stdout, *verbose)
	}

	fmt.Println("========================================")
	fmt.Println("Library Q&A RAGAS Benchmarks")
	fmt.Println("========================================")

	ctx := context.Background()
	var results []ragas.TestResult

	if *testID == "" {
		var err error
		results, err = runner.RunAllTests(ctx)
		if err != nil {
			logger.Fatal("benchmark failed", "err", err)
		}
	} else {
		scenario, ok := ragas.GetTest(*testID)
		if !ok {
			ids := make([]string, 0)
			for _, s := range ragas.GetAllTests() {
				ids = append(ids, s.ID)
			}
			logger.Fatal("unknown test ID", "id", *testID, "valid", strings.Join(ids, ", "))
		}

		fmt.Printf("Running test: %s\n", scenario.Name)
		result, err := runner.RunTest(ctx, scenario)
		if err != nil {
			logger.Fatal("test failed", "err", err)
		}
		results = []ragas.TestResult{result}
	}

	fmt.Println("\n========================================")
	fmt.Println("BENCHMARK SUMMARY")
	fmt.Println("========================================")

	for _, result := range results {
		fmt.Printf("\n%s: %s\n", result.TestID, result.TestName)
		fmt.Printf("  Faithfulness: %.2f\n", result.FaithfulnessScore)
		fmt.Printf("  Context Recall: %.2f\n", result.ContextRecallScore)
		fmt.Printf("  Overall: %.2f\n", result.OverallScore)
		fmt.Printf("  Status: %s\n", result.Status)
	}

	summary := ragas.Summarize(results)
	fmt.Println("\n========================================")
	fmt.Printf("Total Tests: %d\n", summary.TotalTests)
	fmt.Printf("Passed: %d\n", summary.Passed)
	fmt.Printf("Failed: %d\n", summary.Failed)
	fmt.Println("========================================")

	if err := runner.ExportResults(results, *outputPath); err != nil {
		logger.Fatal("failed to export results", "err", err)
	}

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
