// ABOUTME: Answer returned to a patron for one question
// ABOUTME: Carries the cited sources and whether generation ran in degraded mode
package models

// Answer is the result of asking one question
type Answer struct {
	Question string      `json:"question"`
	Text     string      `json:"answer"`
	Sources  []string    `json:"sources"`
	Category ContentType `json:"category"`
	// Found is false when no stored passage was relevant
	Found bool `json:"found"`
	// Degraded means the text was assembled from passages without a model
	Degraded bool `json:"degraded,omitempty"`
	Cached   bool `json:"cached,omitempty"`
}
