// ABOUTME: Content categories assigned to chunks and inferred from questions
// ABOUTME: Defines the closed ContentType set and its fixed iteration order
package models

import "fmt"

// ContentType is the policy category a chunk or question belongs to
type ContentType string

const (
	ContentFines             ContentType = "fines"
	ContentBorrowing         ContentType = "borrowing"
	ContentAcademicIntegrity ContentType = "academic_integrity"
	ContentHours             ContentType = "hours"
	ContentEResources        ContentType = "eresources"
	ContentMembership        ContentType = "membership"
	ContentReferencing       ContentType = "referencing"
	ContentGeneral           ContentType = "general"
)

// AllContentTypes lists every category in classification priority order.
// General is last because it is the fallback.
var AllContentTypes = []ContentType{
	ContentFines,
	ContentBorrowing,
	ContentAcademicIntegrity,
	ContentHours,
	ContentEResources,
	ContentMembership,
	ContentReferencing,
	ContentGeneral,
}

// IsValid reports whether c is one of the known categories
func (c ContentType) IsValid() bool {
	for _, known := range AllContentTypes {
		if c == known {
			return true
		}
	}
	return false
}

// ParseContentType converts a string into a ContentType.
// "plagiarism" is accepted as an alias for academic_integrity.
func ParseContentType(s string) (ContentType, error) {
	if s == "plagiarism" {
		return ContentAcademicIntegrity, nil
	}
	c := ContentType(s)
	if !c.IsValid() {
		return "", fmt.Errorf("unknown content type %q", s)
	}
	return c, nil
}
