package model

// Band is the qualitative label derived from an aggregate score.
type Band string

// Bands in ascending order.
const (
	BandNeedsImprovement Band = "needs_improvement"
	BandDeveloping       Band = "developing"
	BandProficient       Band = "proficient"
	BandExcellent        Band = "excellent"
)

// Dimensions holds the four per-answer scores, each expected in [0,100].
type Dimensions struct {
	Accuracy     float64 `json:"accuracy"`
	Completeness float64 `json:"completeness"`
	Clarity      float64 `json:"clarity"`
	Language     float64 `json:"language"`
}

// ErrorSpan is one problem found in an answer.
type ErrorSpan struct {
	Span       string `json:"span"`       // offending text or location
	Kind       string `json:"kind"`       // e.g. grammar, vocabulary, content
	Suggestion string `json:"suggestion"` // suggested correction
}

// Assessment is the scored evaluation of one answer.
type Assessment struct {
	Dimensions     Dimensions  `json:"dimensions"`
	Aggregate      int         `json:"aggregate"`
	Band           Band        `json:"band"`
	Errors         []ErrorSpan `json:"errors"`
	Feedback       string      `json:"feedback,omitempty"`
	ImprovedAnswer string      `json:"improved_answer,omitempty"`
}
