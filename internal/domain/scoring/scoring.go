// Package scoring turns the four assessment dimensions into an aggregate
// score and a qualitative band.
package scoring

import (
	"fmt"
	"math"

	"github.com/okian/readcoach/internal/domain/model"
)

// Score range and dimension names.
const (
	minScore = 0
	maxScore = 100

	DimAccuracy     = "accuracy"
	DimCompleteness = "completeness"
	DimClarity      = "clarity"
	DimLanguage     = "language"
)

// Weights holds one weight per dimension. They are normalized to sum to 1.
type Weights struct {
	Accuracy     float64
	Completeness float64
	Clarity      float64
	Language     float64
}

// EqualWeights is the default policy.
func EqualWeights() Weights {
	return Weights{Accuracy: 1, Completeness: 1, Clarity: 1, Language: 1}
}

func (w Weights) sum() float64 {
	return w.Accuracy + w.Completeness + w.Clarity + w.Language
}

func (w Weights) validate() error {
	for _, v := range []float64{w.Accuracy, w.Completeness, w.Clarity, w.Language} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weights must be finite and non-negative", ErrInvalidWeights)
		}
	}
	if w.sum() == 0 {
		return fmt.Errorf("%w: at least one weight must be positive", ErrInvalidWeights)
	}
	return nil
}

func (w Weights) normalized() Weights {
	s := w.sum()
	return Weights{
		Accuracy:     w.Accuracy / s,
		Completeness: w.Completeness / s,
		Clarity:      w.Clarity / s,
		Language:     w.Language / s,
	}
}

// Option applies a configuration option to the WeightedScorer.
type Option func(*WeightedScorer)

// WithWeights sets explicit dimension weights.
func WithWeights(w Weights) Option {
	return func(s *WeightedScorer) {
		s.weights = w
	}
}

// WithWeightsFromConfig sets weights from a configuration map keyed by
// dimension name. Missing dimensions keep a weight of 1; unknown keys are
// rejected by New.
func WithWeightsFromConfig(weights map[string]float64) Option {
	return func(s *WeightedScorer) {
		if len(weights) == 0 {
			return
		}
		w := EqualWeights()
		for name, v := range weights {
			switch name {
			case DimAccuracy:
				w.Accuracy = v
			case DimCompleteness:
				w.Completeness = v
			case DimClarity:
				w.Clarity = v
			case DimLanguage:
				w.Language = v
			default:
				s.unknown = append(s.unknown, name)
			}
		}
		s.weights = w
	}
}

// WithBands replaces the band table.
func WithBands(bands []Threshold) Option {
	return func(s *WeightedScorer) {
		s.bands = append([]Threshold(nil), bands...)
	}
}

// Scorer computes an Assessment from dimension scores.
type Scorer interface {
	Score(d model.Dimensions) (model.Assessment, error)
}

// WeightedScorer implements Scorer as a fixed weighted mean. It has no
// mutable state after construction and is safe for concurrent use.
type WeightedScorer struct {
	weights Weights
	bands   []Threshold
	unknown []string
}

// New creates a scorer with equal weights and the default band table.
func New(opts ...Option) (*WeightedScorer, error) {
	s := &WeightedScorer{
		weights: EqualWeights(),
		bands:   DefaultBands(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown dimensions %v", ErrInvalidWeights, s.unknown)
	}
	if err := s.weights.validate(); err != nil {
		return nil, err
	}
	if err := validateBands(s.bands); err != nil {
		return nil, err
	}
	s.weights = s.weights.normalized()
	return s, nil
}

// Score clamps each dimension into [0,100], computes the rounded weighted
// aggregate and assigns a band. Non-finite input is malformed.
func (s *WeightedScorer) Score(d model.Dimensions) (model.Assessment, error) {
	dims := []*float64{&d.Accuracy, &d.Completeness, &d.Clarity, &d.Language}
	for _, v := range dims {
		if math.IsNaN(*v) || math.IsInf(*v, 0) {
			return model.Assessment{}, fmt.Errorf("%w: non-finite dimension", ErrMalformedAssessment)
		}
		*v = clamp(*v)
	}

	w := s.weights
	raw := w.Accuracy*d.Accuracy + w.Completeness*d.Completeness + w.Clarity*d.Clarity + w.Language*d.Language
	aggregate := clampInt(int(math.Round(raw)))

	return model.Assessment{
		Dimensions: d,
		Aggregate:  aggregate,
		Band:       bandFor(s.bands, aggregate),
		Errors:     []model.ErrorSpan{},
	}, nil
}

// Band classifies an aggregate with this scorer's table.
func (s *WeightedScorer) Band(aggregate int) model.Band {
	return bandFor(s.bands, aggregate)
}

func clamp(v float64) float64 {
	return math.Max(minScore, math.Min(maxScore, v))
}

func clampInt(v int) int {
	return max(minScore, min(maxScore, v))
}
