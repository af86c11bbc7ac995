// ABOUTME: Tests for the RAGAS metrics and the offline benchmark run
// ABOUTME: Every built-in scenario must pass with hash embeddings and quoted answers
package ragas

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/harper/libraryqa/internal/models"
)

func TestCalculateFaithfulness(t *testing.T) {
	m := NewMetricsCalculator()

	tests := []struct {
		name      string
		response  string
		expected  []string
		forbidden []string
		want      float64
	}{
		{"perfect", "Borrow up to three books", []string{"three books"}, []string{"8am"}, 1.0},
		{"case insensitive", "FINE OF KSH 5", []string{"Ksh 5"}, nil, 1.0},
		{"missing", "Borrow some books", []string{"three books"}, nil, 0.5},
		{"forbidden", "three books, open 8am", []string{"three books"}, []string{"8am"}, 0.5},
		{"both", "open 8am", []string{"three books"}, []string{"8am"}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, detail := m.CalculateFaithfulness(tt.response, tt.expected, tt.forbidden)
			if got != tt.want {
				t.Errorf("CalculateFaithfulness() = %v (%s), want %v", got, detail, tt.want)
			}
		})
	}
}

func TestCalculateContextRecall(t *testing.T) {
	m := NewMetricsCalculator()

	if got, _ := m.CalculateContextRecall(nil, nil); got != 1.0 {
		t.Errorf("recall with no expectations = %v, want 1", got)
	}

	passages := []string{"Overdue books attract a fine of Ksh 5", "Books can be renewed once"}
	got, _ := m.CalculateContextRecall(passages, []string{"ksh 5", "renewed once", "Turnitin", "8am"})
	if got != 0.5 {
		t.Errorf("CalculateContextRecall() = %v, want 0.5", got)
	}
}

func TestEvaluateTest_CategoryMismatchFails(t *testing.T) {
	m := NewMetricsCalculator()
	scenario := GetBorrowingTest()
	answer := &models.Answer{Text: "You may borrow up to three books.", Category: models.ContentGeneral}

	result := m.EvaluateTest(scenario, answer, []string{"borrow up to three books", "renewed once"})
	if result.FaithfulnessScore != 1.0 || result.ContextRecallScore != 1.0 {
		t.Errorf("scores = %v/%v, want 1/1", result.FaithfulnessScore, result.ContextRecallScore)
	}
	if result.Status != "FAIL" {
		t.Errorf("Status = %s, want FAIL for wrong category", result.Status)
	}
}

func TestRunAllTests_Offline(t *testing.T) {
	runner := NewBenchmarkRunner(nil, nil, nil, false)

	results, err := runner.RunAllTests(context.Background())
	if err != nil {
		t.Fatalf("RunAllTests() error = %v", err)
	}
	if len(results) != len(GetAllTests()) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(GetAllTests()))
	}

	for _, r := range results {
		t.Run(r.TestID, func(t *testing.T) {
			if r.Status != "PASS" {
				t.Errorf("%s: faithfulness %.2f recall %.2f details %v",
					r.TestName, r.FaithfulnessScore, r.ContextRecallScore, r.Details)
			}
			if r.Details["degraded"] != true {
				t.Errorf("offline answers should be quoted, details %v", r.Details)
			}
		})
	}

	path := filepath.Join(t.TempDir(), "results.json")
	if err := runner.ExportResults(results, path); err != nil {
		t.Fatalf("ExportResults() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if summary.TotalTests != len(results) || summary.Passed != len(results) {
		t.Errorf("summary = %d total, %d passed", summary.TotalTests, summary.Passed)
	}
}

func TestGetTest(t *testing.T) {
	if _, ok := GetTest("fines"); !ok {
		t.Error("GetTest(fines) not found")
	}
	if _, ok := GetTest("7a"); ok {
		t.Error("GetTest(7a) should not exist")
	}
}
