// ABOUTME: RAGAS metrics implementation for faithfulness and context recall
// ABOUTME: Simplified deterministic evaluation based on ground truth comparison
package ragas

import (
	"fmt"
	"strings"

	"github.com/harper/libraryqa/internal/models"
)

// MetricsCalculator computes RAGAS scores for benchmark tests
type MetricsCalculator struct{}

// NewMetricsCalculator creates a new metrics calculator
func NewMetricsCalculator() *MetricsCalculator {
	return &MetricsCalculator{}
}

// CalculateFaithfulness computes faithfulness score (0.0-1.0)
// Faithfulness = Does the response match retrieved context? No hallucinations?
func (m *MetricsCalculator) CalculateFaithfulness(
	response string,
	expectedInResponse []string,
	forbiddenInResponse []string,
) (float64, string) {
	responseUpper := strings.ToUpper(response)

	// Check all expected items are present
	missingItems := []string{}
	for _, expected := range expectedInResponse {
		if !strings.Contains(responseUpper, strings.ToUpper(expected)) {
			missingItems = append(missingItems, expected)
		}
	}

	// Check no forbidden items are present
	forbiddenFound := []string{}
	for _, forbidden := range forbiddenInResponse {
		if strings.Contains(responseUpper, strings.ToUpper(forbidden)) {
			forbiddenFound = append(forbiddenFound, forbidden)
		}
	}

	// Calculate score
	// Perfect score (1.0) requires all expected items AND no forbidden items
	if len(missingItems) == 0 && len(forbiddenFound) == 0 {
		return 1.0, "Perfect faithfulness - response matches expected ground truth"
	}

	// Partial failure
	if len(missingItems) > 0 && len(forbiddenFound) > 0 {
		return 0.0, fmt.Sprintf(
			"Faithfulness failure - missing expected items: %v, forbidden items found: %v",
			missingItems, forbiddenFound,
		)
	}

	if len(missingItems) > 0 {
		return 0.5, fmt.Sprintf(
			"Partial faithfulness - missing expected items: %v",
			missingItems,
		)
	}

	if len(forbiddenFound) > 0 {
		return 0.5, fmt.Sprintf(
			"Partial faithfulness - forbidden items found: %v",
			forbiddenFound,
		)
	}

	return 1.0, "Faithfulness verified"
}

// CalculateContextRecall computes context recall score (0.0-1.0)
// Context Recall = Were the right policy passages retrieved?
func (m *MetricsCalculator) CalculateContextRecall(
	retrievedContext []string,
	expectedContextItems []string,
) (float64, string) {
	if len(expectedContextItems) == 0 {
		return 1.0, "No context retrieval required"
	}

	// Join all retrieved context for searching
	allContext := strings.ToUpper(strings.Join(retrievedContext, " "))

	// Check how many expected items were retrieved
	foundCount := 0
	missingItems := []string{}

	for _, expectedItem := range expectedContextItems {
		if strings.Contains(allContext, strings.ToUpper(expectedItem)) {
			foundCount++
		} else {
			missingItems = append(missingItems, expectedItem)
		}
	}

	// Calculate recall as proportion of expected items found
	recall := float64(foundCount) / float64(len(expectedContextItems))

	if recall == 1.0 {
		return 1.0, "Perfect context recall - all expected items retrieved"
	}

	return recall, fmt.Sprintf(
		"Partial context recall (%.2f) - missing items: %v",
		recall, missingItems,
	)
}

// EvaluateTest runs full RAGAS evaluation for a test
func (m *MetricsCalculator) EvaluateTest(
	scenario TestScenario,
	answer *models.Answer,
	retrievedContext []string,
) TestResult {
	finalResponse := answer.Text

	// Calculate faithfulness
	faithfulness, faithfulnessDetail := m.CalculateFaithfulness(
		finalResponse,
		scenario.GroundTruth.ExpectedInResponse,
		scenario.GroundTruth.ForbiddenInResponse,
	)

	// Calculate context recall
	recall, recallDetail := m.CalculateContextRecall(
		retrievedContext,
		scenario.GroundTruth.ExpectedContextItems,
	)

	// Calculate overall score
	overallScore := (faithfulness + recall) / 2.0

	categoryMatch := answer.Category == scenario.GroundTruth.ExpectedCategory

	// Both metrics must reach 0.9 and the question must be routed correctly
	status := "FAIL"
	if faithfulness >= 0.9 && recall >= 0.9 && categoryMatch {
		status = "PASS"
	}

	return TestResult{
		TestID:             scenario.ID,
		TestName:           scenario.Name,
		FaithfulnessScore:  faithfulness,
		ContextRecallScore: recall,
		OverallScore:       overallScore,
		Status:             status,
		Details: map[string]interface{}{
			"faithfulness_detail": faithfulnessDetail,
			"recall_detail":       recallDetail,
			"final_response":      truncateRunes(finalResponse, 200),
			"context_items":       len(retrievedContext),
			"category":            string(answer.Category),
			"category_match":      categoryMatch,
			"degraded":            answer.Degraded,
		},
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
