// ABOUTME: Data-driven classification tables for headers, content categories and questions
// ABOUTME: Defaults can be overridden from a YAML rules file without touching code
package core

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/harper/libraryqa/internal/models"
	"gopkg.in/yaml.v3"
)

// Importance weights
const (
	baseImportance     = 0.5
	bodyKeywordWeight  = 0.1
	bodyKeywordCap     = 0.3
	titleKeywordWeight = 0.2
	proceduralWeight   = 0.3
	digitWeight        = 0.1
	definitionWeight   = 0.2
	maxImportance      = 1.0
	minImportance      = 0.0
)

// CategoryKeywords maps a category to the substrings that select it
type CategoryKeywords struct {
	Category models.ContentType `yaml:"category"`
	Keywords []string           `yaml:"keywords"`
}

// HeaderRule is one section header pattern. Rules with NeedsContext only
// apply once the current section has accumulated enough text.
type HeaderRule struct {
	Name         string `yaml:"name"`
	Pattern      string `yaml:"pattern"`
	NeedsContext bool   `yaml:"needs_context"`

	re *regexp.Regexp
}

// Rules holds every table the segmenter and retriever consult.
// Tables are evaluated in order and the first match wins.
type Rules struct {
	HeaderRules        []HeaderRule                                `yaml:"header_rules"`
	ContentCategories  []CategoryKeywords                          `yaml:"content_categories"`
	QuestionCategories []CategoryKeywords                          `yaml:"question_categories"`
	DomainKeywords     []string                                    `yaml:"domain_keywords"`
	ProceduralTerms    []string                                    `yaml:"procedural_terms"`
	DefinitionOpeners  []string                                    `yaml:"definition_openers"`
	CrossAccept        map[models.ContentType][]models.ContentType `yaml:"cross_accept"`
}

// DefaultRules returns the built-in tables
func DefaultRules() *Rules {
	r := &Rules{
		HeaderRules: []HeaderRule{
			{Name: "section_marker", Pattern: `(?i)^SECTION\s+\d+`},
			{Name: "caps_label", Pattern: `^[A-Z][A-Z\s]+:$`},
			{Name: "numbered_title", Pattern: `(?i)^\d+\.\s+[A-Z]`},
			{Name: "roman_numeral", Pattern: `^[IVX]+\.`},
			{Name: "caps_line", Pattern: `^[A-Z\s]{5,30}$`},
			{Name: "question_marker", Pattern: `(?i)^Q:`},
			{Name: "problem_marker", Pattern: `(?i)^PROBLEM\s+\d+`},
			{Name: "how_to", Pattern: `(?i)^HOW TO\s+`},
			{Name: "topic_question", Pattern: `(?i)^(what is|how do|where is|why is|when is|who can|can i)`, NeedsContext: true},
			{Name: "list_marker", Pattern: `^\d+[.)]`, NeedsContext: true},
		},
		ContentCategories: []CategoryKeywords{
			{models.ContentFines, []string{"fine", "overdue", "penalty", "charge"}},
			{models.ContentBorrowing, []string{"borrow", "loan", "renew", "return"}},
			{models.ContentAcademicIntegrity, []string{"plagiarism", "turnitin", "citation"}},
			{models.ContentHours, []string{"hour", "open", "close", "schedule"}},
			{models.ContentEResources, []string{"access", "myloft", "e-resource", "database"}},
			{models.ContentMembership, []string{"staff", "student", "category", "maximum"}},
			{models.ContentReferencing, []string{"apa", "reference", "citation", "format"}},
		},
		QuestionCategories: []CategoryKeywords{
			{models.ContentBorrowing, []string{"borrow", "loan", "renew", "return", "due date", "how many books"}},
			{models.ContentFines, []string{"fine", "overdue", "penalty", "charge", "ksh"}},
			{models.ContentHours, []string{"open", "close", "hour", "time", "schedule"}},
			{models.ContentAcademicIntegrity, []string{"plagiarism", "turnitin", "similarity", "citation"}},
			{models.ContentEResources, []string{"e-resource", "database", "myloft", "past paper", "exam"}},
			{models.ContentMembership, []string{"join", "member", "staff", "student", "category", "id card"}},
			{models.ContentReferencing, []string{"apa", "reference", "citation", "format"}},
		},
		DomainKeywords: []string{
			"borrow", "return", "renew", "fine", "overdue", "loan",
			"circulation", "plagiarism", "citation", "apa", "reference",
			"hours", "open", "close", "staff", "student", "postgraduate",
			"undergraduate", "academic", "book", "journal", "e-resource",
			"myloft", "turnitin", "database", "access", "membership",
		},
		ProceduralTerms:   []string{"step", "procedure", "how to", "guide"},
		DefinitionOpeners: []string{"q:", "what is", "definition of"},
		CrossAccept: map[models.ContentType][]models.ContentType{
			models.ContentBorrowing:         {models.ContentMembership},
			models.ContentFines:             {models.ContentBorrowing},
			models.ContentReferencing:       {models.ContentAcademicIntegrity},
			models.ContentAcademicIntegrity: {models.ContentReferencing},
		},
	}
	// Built-in patterns are known to compile
	if err := r.compile(); err != nil {
		panic(err)
	}
	return r
}

// LoadRules reads a YAML rules file over the defaults. Each table present
// in the file replaces the corresponding default table wholesale.
// An empty path returns the defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var overlay Rules
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	if len(overlay.HeaderRules) > 0 {
		rules.HeaderRules = overlay.HeaderRules
	}
	if len(overlay.ContentCategories) > 0 {
		rules.ContentCategories = overlay.ContentCategories
	}
	if len(overlay.QuestionCategories) > 0 {
		rules.QuestionCategories = overlay.QuestionCategories
	}
	if len(overlay.DomainKeywords) > 0 {
		rules.DomainKeywords = overlay.DomainKeywords
	}
	if len(overlay.ProceduralTerms) > 0 {
		rules.ProceduralTerms = overlay.ProceduralTerms
	}
	if len(overlay.DefinitionOpeners) > 0 {
		rules.DefinitionOpeners = overlay.DefinitionOpeners
	}
	if overlay.CrossAccept != nil {
		rules.CrossAccept = overlay.CrossAccept
	}

	if err := rules.compile(); err != nil {
		return nil, fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	return rules, nil
}

// compile checks categories and compiles header patterns
func (r *Rules) compile() error {
	for i := range r.HeaderRules {
		re, err := regexp.Compile(r.HeaderRules[i].Pattern)
		if err != nil {
			return fmt.Errorf("header rule %q: %w", r.HeaderRules[i].Name, err)
		}
		r.HeaderRules[i].re = re
	}

	for _, table := range [][]CategoryKeywords{r.ContentCategories, r.QuestionCategories} {
		for i := range table {
			ct, err := models.ParseContentType(string(table[i].Category))
			if err != nil {
				return err
			}
			table[i].Category = ct
			table[i].Keywords = lowerAll(table[i].Keywords)
		}
	}

	accept := make(map[models.ContentType][]models.ContentType, len(r.CrossAccept))
	for q, targets := range r.CrossAccept {
		qt, err := models.ParseContentType(string(q))
		if err != nil {
			return err
		}
		for _, target := range targets {
			ct, err := models.ParseContentType(string(target))
			if err != nil {
				return err
			}
			accept[qt] = append(accept[qt], ct)
		}
	}
	r.CrossAccept = accept

	r.DomainKeywords = lowerAll(r.DomainKeywords)
	r.ProceduralTerms = lowerAll(r.ProceduralTerms)
	r.DefinitionOpeners = lowerAll(r.DefinitionOpeners)
	return nil
}

// MatchHeader returns the name of the first header rule matching line.
// sectionLen is the length of the text accumulated in the current section.
func (r *Rules) MatchHeader(line string, sectionLen int) (string, bool) {
	if len([]rune(line)) > maxHeaderLength {
		return "", false
	}
	for _, rule := range r.HeaderRules {
		if rule.NeedsContext && sectionLen <= contextThreshold {
			continue
		}
		if rule.re != nil && rule.re.MatchString(line) {
			return rule.Name, true
		}
	}
	return "", false
}

// ClassifyContent picks the category of a chunk of policy text
func (r *Rules) ClassifyContent(text string) models.ContentType {
	return firstMatch(r.ContentCategories, strings.ToLower(text))
}

// ClassifyQuestion picks the category a question is about
func (r *Rules) ClassifyQuestion(question string) models.ContentType {
	return firstMatch(r.QuestionCategories, strings.ToLower(question))
}

// Accepts reports whether a chunk of category chunk may answer a question of category question
func (r *Rules) Accepts(question, chunk models.ContentType) bool {
	if chunk == "" {
		chunk = models.ContentGeneral
	}
	if chunk == question || chunk == models.ContentGeneral {
		return true
	}
	for _, allowed := range r.CrossAccept[question] {
		if allowed == chunk {
			return true
		}
	}
	return false
}

// Importance scores how useful a chunk is likely to be, in [0, 1]
func (r *Rules) Importance(text, title string) float64 {
	lowerText := strings.ToLower(text)
	lowerTitle := strings.ToLower(title)

	score := baseImportance
	body := 0.0
	for _, keyword := range r.DomainKeywords {
		if strings.Contains(lowerText, keyword) {
			body += bodyKeywordWeight
		}
		if lowerTitle != "" && strings.Contains(lowerTitle, keyword) {
			score += titleKeywordWeight
		}
	}
	if body > bodyKeywordCap {
		body = bodyKeywordCap
	}
	score += body

	if containsAny(lowerText, r.ProceduralTerms) {
		score += proceduralWeight
	}
	if strings.IndexFunc(text, unicode.IsDigit) >= 0 {
		score += digitWeight
	}
	for _, opener := range r.DefinitionOpeners {
		if strings.HasPrefix(lowerText, opener) {
			score += definitionWeight
			break
		}
	}

	if score > maxImportance {
		return maxImportance
	}
	if score < minImportance {
		return minImportance
	}
	return score
}

func firstMatch(table []CategoryKeywords, lower string) models.ContentType {
	for _, entry := range table {
		if containsAny(lower, entry.Keywords) {
			return entry.Category
		}
	}
	return models.ContentGeneral
}

func containsAny(s string, terms []string) bool {
	for _, term := range terms {
		if term != "" && strings.Contains(s, term) {
			return true
		}
	}
	return false
}

func lowerAll(terms []string) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = strings.ToLower(t)
	}
	return out
}
