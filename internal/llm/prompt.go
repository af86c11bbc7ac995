// ABOUTME: Prompt construction and answer cleanup shared by generation backends
// ABOUTME: Keeps the model restricted to the retrieved library context
package llm

import (
	"fmt"
	"regexp"
	"strings"
)

// NoInformationAnswer is returned when the model produces nothing usable
const NoInformationAnswer = "The documents do not contain specific information about this."

var answerPrefix = regexp.MustCompile(`(?i)^(ANSWER|RESPONSE|BASED ON)[:\s]*`)

// BuildPrompt wraps retrieved context and the question in the grounding instructions
func BuildPrompt(question, retrieved string) string {
	return fmt.Sprintf(`You are a library assistant. Answer the question using ONLY the information provided below. DO NOT use any outside knowledge. If the answer is not in the provided information, say "%s"

INFORMATION FROM LIBRARY DOCUMENTS:
%s

QUESTION: %s

RULES:
1. Answer ONLY from the information above
2. Do not add information not found above
3. Be specific and accurate
4. Quote numbers and details exactly as they appear

ANSWER BASED ONLY ON THE INFORMATION ABOVE:`, NoInformationAnswer, retrieved, question)
}

// CleanAnswer strips echoed headings and rejects near-empty output
func CleanAnswer(raw string) string {
	answer := strings.TrimSpace(raw)
	answer = strings.TrimSpace(answerPrefix.ReplaceAllString(answer, ""))
	if len(answer) < 10 {
		return NoInformationAnswer
	}
	return answer
}
