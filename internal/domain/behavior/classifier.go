package behavior

import (
	"regexp"
	"strings"
)

// ErrorCategory is the fixed error taxonomy.
type ErrorCategory string

const (
	// CategoryConcept - the learner misunderstood a concept or standard.
	CategoryConcept ErrorCategory = "concept"
	// CategoryCalculation - a numeric computation or threshold error.
	CategoryCalculation ErrorCategory = "calculation"
	// CategoryProcess - a step was skipped or done out of order.
	CategoryProcess ErrorCategory = "process"
	// CategoryFormat - a value shape or notation error.
	CategoryFormat ErrorCategory = "format"
)

// Categories lists all taxonomy entries in stable order.
func Categories() []ErrorCategory {
	return []ErrorCategory{CategoryConcept, CategoryCalculation, CategoryProcess, CategoryFormat}
}

// ClassifyInput describes one learner error to classify.
type ClassifyInput struct {
	// Message is the error description (required).
	Message string

	// Field is the form field that produced the error (optional).
	Field string

	// FieldType is the declared field type: number, select, date, text... (optional).
	FieldType string

	// Value is the offending value as entered (optional).
	Value string

	// ValidationRule is the validation rule kind that fired: required,
	// range, pattern, enum... (optional).
	ValidationRule string
}

// Classification is the classifier output: the winning category plus the
// per-category aggregate votes, kept for diagnostics.
type Classification struct {
	Category ErrorCategory             `json:"category"`
	Votes    map[ErrorCategory]float64 `json:"votes"`
}

// Signal weights. Keywords are the strongest signal; declared metadata
// (field type, validation rule) beats shape heuristics.
const (
	weightKeyword        = 3.0
	weightFieldType      = 2.0
	weightValidationRule = 2.0
	weightValueShape     = 1.0
	weightFieldName      = 1.0
)

// Per-category keyword dictionaries matched against the error message.
// Every hit votes with weightKeyword.
var categoryKeywords = map[ErrorCategory][]string{
	CategoryConcept: {
		"concept", "definition", "standard", "classification", "category",
		"hazard class", "misunderstood", "wrong type", "misidentif",
		"criteria", "characteristic",
	},
	CategoryCalculation: {
		"calculation", "calculated", "arithmetic", "sum", "total",
		"exceeds limit", "threshold", "conversion", "concentration",
		"decimal", "rounding", "percentage",
	},
	CategoryProcess: {
		"order", "sequence", "skipped", "skip", "step", "before", "after",
		"procedure", "missing step", "premature", "out of order",
	},
	CategoryFormat: {
		"format", "pattern", "invalid character", "length", "empty",
		"required", "spelling", "notation", "malformed", "whitespace",
	},
}

// Declared field type votes.
var fieldTypeCategories = map[string]ErrorCategory{
	"number":  CategoryCalculation,
	"numeric": CategoryCalculation,
	"decimal": CategoryCalculation,
	"integer": CategoryCalculation,
	"select":  CategoryConcept,
	"enum":    CategoryConcept,
	"choice":  CategoryConcept,
	"radio":   CategoryConcept,
	"date":    CategoryProcess,
	"step":    CategoryProcess,
	"stage":   CategoryProcess,
	"text":    CategoryFormat,
	"code":    CategoryFormat,
}

// Validation rule kind votes.
var validationRuleCategories = map[string]ErrorCategory{
	"range":     CategoryCalculation,
	"min":       CategoryCalculation,
	"max":       CategoryCalculation,
	"precision": CategoryCalculation,
	"numeric":   CategoryCalculation,
	"enum":      CategoryConcept,
	"oneof":     CategoryConcept,
	"required":  CategoryProcess,
	"order":     CategoryProcess,
	"pattern":   CategoryFormat,
	"regex":     CategoryFormat,
	"format":    CategoryFormat,
	"length":    CategoryFormat,
}

// Value shape patterns.
var (
	numericValueRegex = regexp.MustCompile(`^-?\d+([.,]\d+)?$`)
	unitsValueRegex   = regexp.MustCompile(`^-?\d+([.,]\d+)?\s*[a-zA-Zμ%/²³]+`)
	// Standard reference codes like "GB 5085.3-2007" or "HJ/T 298".
	standardCodeRegex = regexp.MustCompile(`^[A-Z]{2,6}[/ ]?T?\s?\d+([.\-]\d+)*`)
)

// Field name fragments that hint at a category.
var fieldNameHints = []struct {
	fragment string
	category ErrorCategory
}{
	{"amount", CategoryCalculation},
	{"concentration", CategoryCalculation},
	{"limit", CategoryCalculation},
	{"threshold", CategoryCalculation},
	{"quantity", CategoryCalculation},
	{"step", CategoryProcess},
	{"stage", CategoryProcess},
	{"sequence", CategoryProcess},
	{"date", CategoryProcess},
	{"code", CategoryFormat},
	{"number", CategoryFormat},
	{"id", CategoryFormat},
	{"type", CategoryConcept},
	{"category", CategoryConcept},
	{"class", CategoryConcept},
	{"hazard", CategoryConcept},
}

// Classifier is the multi-signal weighted-vote error classifier.
// It is stateless; the same input always yields the same category.
type Classifier struct{}

// NewClassifier creates a classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify assigns one taxonomy category to the described error.
// Five signals vote with fixed weights; the category with the highest
// aggregate score wins, ties default to format.
func (c *Classifier) Classify(in ClassifyInput) Classification {
	votes := map[ErrorCategory]float64{
		CategoryConcept:     0,
		CategoryCalculation: 0,
		CategoryProcess:     0,
		CategoryFormat:      0,
	}

	message := strings.ToLower(in.Message)
	for category, keywords := range categoryKeywords {
		for _, keyword := range keywords {
			if strings.Contains(message, keyword) {
				votes[category] += weightKeyword
			}
		}
	}

	if category, ok := fieldTypeCategories[strings.ToLower(strings.TrimSpace(in.FieldType))]; ok {
		votes[category] += weightFieldType
	}

	if category, ok := validationRuleCategories[strings.ToLower(strings.TrimSpace(in.ValidationRule))]; ok {
		votes[category] += weightValidationRule
	}

	// The empty-value heuristic only makes sense when a field is actually
	// present; otherwise an omitted optional value would vote on every call.
	if in.Field != "" || in.Value != "" {
		if category, ok := classifyValueShape(in.Value); ok {
			votes[category] += weightValueShape
		}
	}

	fieldName := strings.ToLower(in.Field)
	if fieldName != "" {
		for _, hint := range fieldNameHints {
			if strings.Contains(fieldName, hint.fragment) {
				votes[hint.category] += weightFieldName
				break
			}
		}
	}

	return Classification{
		Category: pickWinner(votes),
		Votes:    votes,
	}
}

// classifyValueShape applies shape heuristics to the offending value.
func classifyValueShape(value string) (ErrorCategory, bool) {
	trimmed := strings.TrimSpace(value)
	switch {
	case value != "" && trimmed == "":
		// Whitespace-only values are shape problems, not missing data.
		return CategoryFormat, true
	case trimmed == "":
		return CategoryProcess, true
	case standardCodeRegex.MatchString(trimmed):
		return CategoryConcept, true
	case numericValueRegex.MatchString(trimmed):
		return CategoryCalculation, true
	case unitsValueRegex.MatchString(trimmed):
		return CategoryFormat, true
	}
	return "", false
}

// pickWinner returns the category with the highest aggregate score.
// Ties (including the all-zero case) default to format.
func pickWinner(votes map[ErrorCategory]float64) ErrorCategory {
	winner := CategoryFormat
	best := votes[CategoryFormat]

	// Stable iteration order so that a strict winner always beats format
	// and equal scores fall back to format.
	for _, category := range []ErrorCategory{CategoryConcept, CategoryCalculation, CategoryProcess} {
		if votes[category] > best {
			winner = category
			best = votes[category]
		}
	}
	return winner
}
