// Package analytics reduces a learner's session history and vocabulary into
// trends, activity buckets and a vocabulary growth curve. Every result is a
// pure function of the input.
package analytics

import (
	"maps"
	"math"
	"slices"
	"time"

	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/internal/domain/vocabulary"
)

const (
	defaultRecentWindow    = 5
	defaultStableThreshold = 2.0
)

// Direction describes how recent scores compare with the all-time mean.
type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionDeclining Direction = "declining"
	DirectionStable    Direction = "stable"
	DirectionNoData    Direction = "no_data"
)

// Trend compares the mean of the most recent samples with the mean of all
// samples.
type Trend struct {
	AllTime   float64   `json:"all_time"`
	Recent    float64   `json:"recent"`
	Delta     float64   `json:"delta"`
	Direction Direction `json:"direction"`
	Samples   int       `json:"samples"`
}

// DimensionTrends holds one trend per scoring dimension.
type DimensionTrends struct {
	Accuracy     Trend `json:"accuracy"`
	Completeness Trend `json:"completeness"`
	Clarity      Trend `json:"clarity"`
	Language     Trend `json:"language"`
}

// Bucket counts activity that started within [Start, next bucket).
type Bucket struct {
	Start    time.Time `json:"start"`
	Sessions int       `json:"sessions"`
	Answers  int       `json:"answers"`
}

// GrowthPoint is the number of distinct terms saved up to and including Day.
type GrowthPoint struct {
	Day        time.Time `json:"day"`
	Cumulative int       `json:"cumulative"`
}

// Analytics is the reduced view of a session history.
type Analytics struct {
	Overall          Trend           `json:"overall"`
	Dimensions       DimensionTrends `json:"dimensions"`
	Daily            []Bucket        `json:"daily"`
	Weekly           []Bucket        `json:"weekly"`
	VocabularyGrowth []GrowthPoint   `json:"vocabulary_growth"`
	SessionCount     int             `json:"session_count"`
	AnsweredCount    int             `json:"answered_count"`
	UnansweredCount  int             `json:"unanswered_count"`
	FirstSession     *time.Time      `json:"first_session,omitempty"`
	LastSession      *time.Time      `json:"last_session,omitempty"`
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithRecentWindow sets how many trailing sessions form the recent mean.
func WithRecentWindow(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.window = n
		}
	}
}

// WithStableThreshold sets the absolute delta below which a trend is stable.
func WithStableThreshold(points float64) Option {
	return func(a *Aggregator) {
		if points >= 0 && !math.IsNaN(points) {
			a.threshold = points
		}
	}
}

// WithLocation sets the time zone used for day and week boundaries.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// Aggregator computes Analytics. It is stateless after construction.
type Aggregator struct {
	window    int
	threshold float64
	loc       *time.Location
}

// New creates an Aggregator.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		window:    defaultRecentWindow,
		threshold: defaultStableThreshold,
		loc:       time.UTC,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate reduces sessions and the learner's vocabulary entries, archived
// ones included. Records are ordered by start time before reduction, so the
// result does not depend on input order.
func (a *Aggregator) Aggregate(sessions []model.SessionRecord, entries []model.VocabularyEntry) Analytics {
	out := Analytics{
		Overall: Trend{Direction: DirectionNoData},
		Dimensions: DimensionTrends{
			Accuracy:     Trend{Direction: DirectionNoData},
			Completeness: Trend{Direction: DirectionNoData},
			Clarity:      Trend{Direction: DirectionNoData},
			Language:     Trend{Direction: DirectionNoData},
		},
		Daily:            []Bucket{},
		Weekly:           []Bucket{},
		VocabularyGrowth: a.growth(sessions, entries),
	}
	if len(sessions) == 0 {
		return out
	}

	ordered := slices.Clone(sessions)
	slices.SortStableFunc(ordered, func(x, y model.SessionRecord) int {
		return x.StartedAt.Compare(y.StartedAt)
	})

	var overall, acc, comp, clar, lang []float64
	daily := newBucketer()
	weekly := newBucketer()

	for _, rec := range ordered {
		answered := rec.Answered()
		out.SessionCount++
		out.AnsweredCount += answered
		out.UnansweredCount += len(rec.Slots) - answered

		day := a.dayStart(rec.StartedAt)
		daily.add(day, answered)
		weekly.add(weekStart(day), answered)

		if dims, ok := meanDimensions(rec.Slots); ok {
			overall = append(overall, float64(model.SessionScore(rec.Slots)))
			acc = append(acc, dims.Accuracy)
			comp = append(comp, dims.Completeness)
			clar = append(clar, dims.Clarity)
			lang = append(lang, dims.Language)
		}
	}

	first := ordered[0].StartedAt
	last := ordered[len(ordered)-1].StartedAt
	out.FirstSession = &first
	out.LastSession = &last
	out.Daily = daily.buckets
	out.Weekly = weekly.buckets
	out.Overall = a.trend(overall)
	out.Dimensions = DimensionTrends{
		Accuracy:     a.trend(acc),
		Completeness: a.trend(comp),
		Clarity:      a.trend(clar),
		Language:     a.trend(lang),
	}
	return out
}

// growth plots distinct terms per active day. A term counts from the
// earlier of its entry's creation day and the first session that saved it;
// every day with a session or a new term gets a point.
func (a *Aggregator) growth(sessions []model.SessionRecord, entries []model.VocabularyEntry) []GrowthPoint {
	firstSeen := make(map[string]time.Time)
	days := make(map[int64]time.Time)
	note := func(term string, day time.Time) {
		key, err := vocabulary.Normalize(term)
		if err != nil {
			return
		}
		if d, ok := firstSeen[key]; !ok || day.Before(d) {
			firstSeen[key] = day
		}
	}

	for _, rec := range sessions {
		day := a.dayStart(rec.StartedAt)
		days[day.Unix()] = day
		for _, term := range rec.Vocabulary {
			note(term, day)
		}
	}
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			continue
		}
		day := a.dayStart(e.CreatedAt)
		days[day.Unix()] = day
		note(e.Term, day)
	}

	added := make(map[int64]int, len(firstSeen))
	for _, day := range firstSeen {
		added[day.Unix()]++
	}
	keys := slices.Sorted(maps.Keys(days))
	out := make([]GrowthPoint, 0, len(keys))
	total := 0
	for _, k := range keys {
		total += added[k]
		out = append(out, GrowthPoint{Day: days[k], Cumulative: total})
	}
	return out
}

func (a *Aggregator) trend(series []float64) Trend {
	if len(series) == 0 {
		return Trend{Direction: DirectionNoData}
	}
	all := mean(series)
	recent := mean(series[max(0, len(series)-a.window):])
	delta := recent - all
	t := Trend{
		AllTime: round2(all),
		Recent:  round2(recent),
		Delta:   round2(delta),
		Samples: len(series),
	}
	switch {
	case math.Abs(delta) < a.threshold:
		t.Direction = DirectionStable
	case delta > 0:
		t.Direction = DirectionImproving
	default:
		t.Direction = DirectionDeclining
	}
	return t
}

func (a *Aggregator) dayStart(t time.Time) time.Time {
	t = t.In(a.loc)
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, a.loc)
}

// weekStart returns the Monday of day's week.
func weekStart(day time.Time) time.Time {
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

type bucketer struct {
	buckets []Bucket
}

func newBucketer() *bucketer {
	return &bucketer{buckets: []Bucket{}}
}

// add relies on starts arriving in ascending order.
func (b *bucketer) add(start time.Time, answers int) {
	if n := len(b.buckets); n > 0 && b.buckets[n-1].Start.Equal(start) {
		b.buckets[n-1].Sessions++
		b.buckets[n-1].Answers += answers
		return
	}
	b.buckets = append(b.buckets, Bucket{Start: start, Sessions: 1, Answers: answers})
}

func meanDimensions(slots []model.Slot) (model.Dimensions, bool) {
	var sum model.Dimensions
	n := 0
	for _, s := range slots {
		if s.Assessment == nil {
			continue
		}
		d := s.Assessment.Dimensions
		sum.Accuracy += d.Accuracy
		sum.Completeness += d.Completeness
		sum.Clarity += d.Clarity
		sum.Language += d.Language
		n++
	}
	if n == 0 {
		return model.Dimensions{}, false
	}
	f := float64(n)
	return model.Dimensions{
		Accuracy:     sum.Accuracy / f,
		Completeness: sum.Completeness / f,
		Clarity:      sum.Clarity / f,
		Language:     sum.Language / f,
	}, true
}

func mean(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
