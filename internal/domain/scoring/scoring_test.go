package scoring_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/readcoach/internal/domain/model"
	scoring "github.com/okian/readcoach/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWeightedScorer_Score(t *testing.T) {
	Convey("Given a scorer with default options", t, func() {
		scorer, err := scoring.New()
		So(err, ShouldBeNil)

		Convey("When scoring {80,70,90,100}", func() {
			a, err := scorer.Score(model.Dimensions{Accuracy: 80, Completeness: 70, Clarity: 90, Language: 100})

			Convey("Then the aggregate is 85 and the band proficient", func() {
				So(err, ShouldBeNil)
				So(a.Aggregate, ShouldEqual, 85)
				So(a.Band, ShouldEqual, model.BandProficient)
				So(a.Errors, ShouldNotBeNil)
			})
		})

		Convey("When a dimension overflows the range", func() {
			a, err := scorer.Score(model.Dimensions{Accuracy: 140, Completeness: -20, Clarity: 100, Language: 100})

			Convey("Then it is clamped rather than rejected", func() {
				So(err, ShouldBeNil)
				So(a.Dimensions.Accuracy, ShouldEqual, 100)
				So(a.Dimensions.Completeness, ShouldEqual, 0)
				So(a.Aggregate, ShouldEqual, 75)
			})
		})

		Convey("When a dimension is not finite", func() {
			_, err := scorer.Score(model.Dimensions{Accuracy: math.NaN(), Completeness: 1, Clarity: 1, Language: 1})

			Convey("Then it fails as malformed", func() {
				So(errors.Is(err, scoring.ErrMalformedAssessment), ShouldBeTrue)
			})
		})

		Convey("When scoring every in-range combination on a coarse grid", func() {
			ok := true
			for a := 0.0; a <= 100; a += 12.5 {
				for b := 0.0; b <= 100; b += 12.5 {
					for c := 0.0; c <= 100; c += 25 {
						for d := 0.0; d <= 100; d += 25 {
							res, err := scorer.Score(model.Dimensions{Accuracy: a, Completeness: b, Clarity: c, Language: d})
							if err != nil || res.Aggregate < 0 || res.Aggregate > 100 || res.Band == "" {
								ok = false
							}
						}
					}
				}
			}

			Convey("Then the aggregate stays in range and a band is always assigned", func() {
				So(ok, ShouldBeTrue)
			})
		})
	})

	Convey("Given a scorer with custom weights", t, func() {
		scorer, err := scoring.New(scoring.WithWeights(scoring.Weights{Accuracy: 2, Completeness: 1, Clarity: 1, Language: 0}))
		So(err, ShouldBeNil)

		Convey("Then weights are normalized before use", func() {
			a, err := scorer.Score(model.Dimensions{Accuracy: 100, Completeness: 0, Clarity: 0, Language: 100})
			So(err, ShouldBeNil)
			So(a.Aggregate, ShouldEqual, 50)
			So(a.Band, ShouldEqual, model.BandDeveloping)
		})
	})

	Convey("Given weights from configuration", t, func() {
		Convey("When only some dimensions are set", func() {
			scorer, err := scoring.New(scoring.WithWeightsFromConfig(map[string]float64{"accuracy": 3}))
			So(err, ShouldBeNil)

			Convey("Then the rest keep a weight of one", func() {
				a, _ := scorer.Score(model.Dimensions{Accuracy: 100})
				So(a.Aggregate, ShouldEqual, 50)
			})
		})

		Convey("When an unknown dimension is named", func() {
			_, err := scoring.New(scoring.WithWeightsFromConfig(map[string]float64{"style": 1}))

			Convey("Then construction fails", func() {
				So(errors.Is(err, scoring.ErrInvalidWeights), ShouldBeTrue)
			})
		})

		Convey("When every weight is zero", func() {
			_, err := scoring.New(scoring.WithWeights(scoring.Weights{}))

			Convey("Then construction fails", func() {
				So(errors.Is(err, scoring.ErrInvalidWeights), ShouldBeTrue)
			})
		})
	})
}

func TestBands(t *testing.T) {
	Convey("Given the default band table", t, func() {
		cases := map[int]model.Band{
			-5:  model.BandNeedsImprovement,
			0:   model.BandNeedsImprovement,
			39:  model.BandNeedsImprovement,
			40:  model.BandDeveloping,
			69:  model.BandDeveloping,
			70:  model.BandProficient,
			89:  model.BandProficient,
			90:  model.BandExcellent,
			100: model.BandExcellent,
			120: model.BandExcellent,
		}

		Convey("Then every boundary maps to the expected band", func() {
			for agg, want := range cases {
				So(scoring.BandFor(agg), ShouldEqual, want)
			}
		})
	})

	Convey("Given custom band tables", t, func() {
		Convey("When the table does not start at zero", func() {
			_, err := scoring.New(scoring.WithBands([]scoring.Threshold{{Min: 10, Band: "x"}}))
			So(errors.Is(err, scoring.ErrInvalidBands), ShouldBeTrue)
		})

		Convey("When thresholds are out of order", func() {
			_, err := scoring.New(scoring.WithBands([]scoring.Threshold{
				{Min: 0, Band: "low"}, {Min: 60, Band: "mid"}, {Min: 50, Band: "high"},
			}))
			So(errors.Is(err, scoring.ErrInvalidBands), ShouldBeTrue)
		})

		Convey("When the table is valid", func() {
			scorer, err := scoring.New(scoring.WithBands([]scoring.Threshold{
				{Min: 0, Band: "fail"}, {Min: 50, Band: "pass"},
			}))
			So(err, ShouldBeNil)
			So(scorer.Band(49), ShouldEqual, model.Band("fail"))
			So(scorer.Band(50), ShouldEqual, model.Band("pass"))
		})
	})
}

func TestParseDimensions(t *testing.T) {
	Convey("Given a decoded generation payload", t, func() {
		Convey("When all dimensions are present", func() {
			d, err := scoring.ParseDimensions(map[string]any{
				"accuracy":         80.0,
				"completeness":     "70",
				"clarity":          90,
				"language_quality": 100.0,
			})

			Convey("Then they are parsed, including numeric strings and aliases", func() {
				So(err, ShouldBeNil)
				So(d, ShouldResemble, model.Dimensions{Accuracy: 80, Completeness: 70, Clarity: 90, Language: 100})
			})
		})

		Convey("When a dimension is missing", func() {
			_, err := scoring.ParseDimensions(map[string]any{"accuracy": 1, "clarity": 2, "language": 3})

			Convey("Then it fails as malformed", func() {
				So(errors.Is(err, scoring.ErrMalformedAssessment), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "completeness")
			})
		})

		Convey("When a dimension is not numeric", func() {
			_, err := scoring.ParseDimensions(map[string]any{
				"accuracy": "high", "completeness": 1, "clarity": 2, "language": 3,
			})

			Convey("Then it fails as malformed", func() {
				So(errors.Is(err, scoring.ErrMalformedAssessment), ShouldBeTrue)
			})
		})
	})
}
