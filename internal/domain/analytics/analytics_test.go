package analytics_test

import (
	"testing"
	"time"

	"github.com/okian/readcoach/internal/domain/analytics"
	"github.com/okian/readcoach/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func assessed(agg int, d float64) model.Slot {
	return model.Slot{
		Question: model.Question{Text: "q"},
		Answer:   "a",
		Status:   model.SlotAnswered,
		Assessment: &model.Assessment{
			Dimensions: model.Dimensions{Accuracy: d, Completeness: d, Clarity: d, Language: d},
			Aggregate:  agg,
		},
	}
}

func unanswered() model.Slot {
	return model.Slot{Question: model.Question{Text: "q"}, Status: model.SlotUnanswered}
}

func record(at time.Time, vocab []string, slots ...model.Slot) model.SessionRecord {
	return model.SessionRecord{ID: at.Format(time.RFC3339), StartedAt: at, EndedAt: at.Add(10 * time.Minute), Slots: slots, Vocabulary: vocab}
}

func TestAggregate_Empty(t *testing.T) {
	Convey("Given no sessions", t, func() {
		a := analytics.New()

		Convey("Then the result is a defined no-data value", func() {
			for _, in := range [][]model.SessionRecord{nil, {}} {
				out := a.Aggregate(in, nil)
				So(out.SessionCount, ShouldEqual, 0)
				So(out.Overall.Direction, ShouldEqual, analytics.DirectionNoData)
				So(out.Dimensions.Language.Direction, ShouldEqual, analytics.DirectionNoData)
				So(out.Daily, ShouldNotBeNil)
				So(out.Daily, ShouldBeEmpty)
				So(out.Weekly, ShouldNotBeNil)
				So(out.VocabularyGrowth, ShouldNotBeNil)
				So(out.FirstSession, ShouldBeNil)
			}
		})
	})
}

func TestAggregate_Trends(t *testing.T) {
	Convey("Given a rising score history", t, func() {
		base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) // Monday
		var history []model.SessionRecord
		for i, agg := range []int{40, 50, 60, 70, 80, 90} {
			history = append(history, record(base.AddDate(0, 0, i), nil, assessed(agg, float64(agg))))
		}

		Convey("When aggregated with a window of 2", func() {
			out := analytics.New(analytics.WithRecentWindow(2)).Aggregate(history, nil)

			Convey("Then the recent mean exceeds the all-time mean", func() {
				So(out.Overall.AllTime, ShouldEqual, 65)
				So(out.Overall.Recent, ShouldEqual, 85)
				So(out.Overall.Delta, ShouldEqual, 20)
				So(out.Overall.Direction, ShouldEqual, analytics.DirectionImproving)
				So(out.Overall.Samples, ShouldEqual, 6)
				So(out.Dimensions.Accuracy.Direction, ShouldEqual, analytics.DirectionImproving)
			})
		})

		Convey("When the history is reversed", func() {
			reversed := make([]model.SessionRecord, len(history))
			for i := range history {
				reversed[i] = history[len(history)-1-i]
			}

			Convey("Then the result is unchanged", func() {
				a := analytics.New(analytics.WithRecentWindow(2))
				So(a.Aggregate(reversed, nil), ShouldResemble, a.Aggregate(history, nil))
			})
		})
	})

	Convey("Given a falling score history", t, func() {
		base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
		history := []model.SessionRecord{
			record(base, nil, assessed(90, 90)),
			record(base.Add(time.Hour), nil, assessed(90, 90)),
			record(base.Add(2*time.Hour), nil, assessed(30, 30)),
		}

		Convey("Then the trend is declining", func() {
			out := analytics.New(analytics.WithRecentWindow(1)).Aggregate(history, nil)
			So(out.Overall.Direction, ShouldEqual, analytics.DirectionDeclining)
			So(out.Overall.Delta, ShouldEqual, -40)
		})
	})

	Convey("Given small movement under the threshold", t, func() {
		base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
		history := []model.SessionRecord{
			record(base, nil, assessed(70, 70)),
			record(base.Add(time.Hour), nil, assessed(72, 72)),
		}

		Convey("Then the trend is stable", func() {
			out := analytics.New(analytics.WithRecentWindow(1), analytics.WithStableThreshold(2)).Aggregate(history, nil)
			So(out.Overall.Delta, ShouldEqual, 1)
			So(out.Overall.Direction, ShouldEqual, analytics.DirectionStable)
		})
	})

	Convey("Given sessions without any assessment", t, func() {
		base := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
		out := analytics.New().Aggregate([]model.SessionRecord{record(base, nil, unanswered(), unanswered())}, nil)

		Convey("Then activity is counted but trends have no data", func() {
			So(out.SessionCount, ShouldEqual, 1)
			So(out.UnansweredCount, ShouldEqual, 2)
			So(out.Overall.Direction, ShouldEqual, analytics.DirectionNoData)
		})
	})
}

func TestAggregate_Buckets(t *testing.T) {
	Convey("Given sessions across two weeks", t, func() {
		sun := time.Date(2025, 3, 9, 22, 0, 0, 0, time.UTC)
		mon := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
		history := []model.SessionRecord{
			record(sun, nil, assessed(80, 80), unanswered()),
			record(sun.Add(30*time.Minute), nil, assessed(80, 80)),
			record(mon, nil, assessed(80, 80), assessed(80, 80)),
		}
		out := analytics.New().Aggregate(history, nil)

		Convey("Then daily buckets group by calendar day", func() {
			So(len(out.Daily), ShouldEqual, 2)
			So(out.Daily[0].Start, ShouldEqual, time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC))
			So(out.Daily[0].Sessions, ShouldEqual, 2)
			So(out.Daily[0].Answers, ShouldEqual, 2)
			So(out.Daily[1].Answers, ShouldEqual, 2)
		})

		Convey("Then weekly buckets start on Monday", func() {
			So(len(out.Weekly), ShouldEqual, 2)
			So(out.Weekly[0].Start, ShouldEqual, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC))
			So(out.Weekly[1].Start, ShouldEqual, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
		})

		Convey("Then totals are counted", func() {
			So(out.SessionCount, ShouldEqual, 3)
			So(out.AnsweredCount, ShouldEqual, 4)
			So(out.UnansweredCount, ShouldEqual, 1)
			So(*out.FirstSession, ShouldEqual, sun)
			So(*out.LastSession, ShouldEqual, mon)
		})

		Convey("When a location shifts the Sunday session into Monday", func() {
			loc := time.FixedZone("UTC+3", 3*3600)
			shifted := analytics.New(analytics.WithLocation(loc)).Aggregate(history, nil)

			Convey("Then all sessions fall into the same week", func() {
				So(len(shifted.Weekly), ShouldEqual, 1)
				So(shifted.Weekly[0].Sessions, ShouldEqual, 3)
			})
		})
	})
}

func TestAggregate_VocabularyGrowth(t *testing.T) {
	Convey("Given sessions that save overlapping words", t, func() {
		d1 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
		history := []model.SessionRecord{
			record(d1, []string{"Apple", "brisk"}),
			record(d1.Add(time.Hour), []string{"apple ", "candid"}),
			record(d1.AddDate(0, 0, 2), []string{"BRISK", "  "}),
			record(d1.AddDate(0, 0, 3), []string{"dour"}),
		}
		out := analytics.New().Aggregate(history, nil)

		Convey("Then the curve counts distinct normalized terms per day", func() {
			So(len(out.VocabularyGrowth), ShouldEqual, 3)
			So(out.VocabularyGrowth[0].Cumulative, ShouldEqual, 3)
			So(out.VocabularyGrowth[1].Cumulative, ShouldEqual, 3)
			So(out.VocabularyGrowth[2].Cumulative, ShouldEqual, 4)
		})

		Convey("Then the curve never decreases", func() {
			for i := 1; i < len(out.VocabularyGrowth); i++ {
				So(out.VocabularyGrowth[i].Cumulative, ShouldBeGreaterThanOrEqualTo, out.VocabularyGrowth[i-1].Cumulative)
			}
		})
	})
}

func TestAggregate_VocabularyGrowthFromEntries(t *testing.T) {
	Convey("Given words saved outside any session", t, func() {
		d1 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
		entries := []model.VocabularyEntry{
			{Term: "serendipity", CreatedAt: d1},
			{Term: "ubiquitous", CreatedAt: d1.Add(2 * time.Hour)},
			{Term: "laconic", CreatedAt: d1.AddDate(0, 0, 1), Archived: true},
		}

		Convey("When there is no session history", func() {
			out := analytics.New().Aggregate(nil, entries)

			Convey("Then every entry is counted, archived ones included", func() {
				So(out.SessionCount, ShouldEqual, 0)
				So(out.VocabularyGrowth, ShouldHaveLength, 2)
				So(out.VocabularyGrowth[0].Day, ShouldEqual, d1.Truncate(24*time.Hour))
				So(out.VocabularyGrowth[0].Cumulative, ShouldEqual, 2)
				So(out.VocabularyGrowth[1].Cumulative, ShouldEqual, 3)
			})
		})

		Convey("When a later session saves one of the same words", func() {
			history := []model.SessionRecord{
				record(d1.AddDate(0, 0, 3), []string{"Serendipity", "gist"}, assessed(80, 80)),
			}
			out := analytics.New().Aggregate(history, entries)

			Convey("Then the word counts once, from its first day", func() {
				So(out.VocabularyGrowth, ShouldHaveLength, 3)
				So(out.VocabularyGrowth[2].Day, ShouldEqual, d1.AddDate(0, 0, 3).Truncate(24*time.Hour))
				So(out.VocabularyGrowth[2].Cumulative, ShouldEqual, 4)
			})
		})
	})
}
