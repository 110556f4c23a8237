package llm

import (
	"errors"
	"testing"

	"github.com/okian/readcoach/internal/domain/session"
	. "github.com/smartystreets/goconvey/convey"
)

func TestParseQuestions(t *testing.T) {
	Convey("Given generated question lists", t, func() {
		Convey("When numbering styles are mixed", func() {
			text := "Here are your questions:\n1. What changed?\n2) Why does it matter?\n#3 Who benefits?\n4- How do students collaborate?\n"
			qs, err := parseQuestions(text, 4)

			Convey("Then numbering and preamble are removed", func() {
				So(err, ShouldBeNil)
				So(qs, ShouldResemble, []string{
					"What changed?",
					"Why does it matter?",
					"Who benefits?",
					"How do students collaborate?",
				})
			})
		})

		Convey("When there are more questions than requested", func() {
			qs, err := parseQuestions("1. A?\n2. B?\n3. C?", 2)

			Convey("Then the list is truncated", func() {
				So(err, ShouldBeNil)
				So(qs, ShouldResemble, []string{"A?", "B?"})
			})
		})

		Convey("When there are fewer questions than requested", func() {
			_, err := parseQuestions("1. A?\n", 3)

			Convey("Then a parse error is returned", func() {
				So(errors.Is(err, session.ErrGenerationParse), ShouldBeTrue)
			})
		})

		Convey("When the list is not numbered", func() {
			qs, err := parseQuestions("What?\n\nWhy?", 2)

			Convey("Then each non-empty line is a question", func() {
				So(err, ShouldBeNil)
				So(qs, ShouldResemble, []string{"What?", "Why?"})
			})
		})
	})
}

func TestParseAssessment(t *testing.T) {
	Convey("Given assessment responses", t, func() {
		Convey("When the JSON is wrapped in a code fence", func() {
			text := "```json\n{\"scores\": {\"accuracy\": 80, \"completeness\": \"70\", \"clarity\": 90, \"language\": 100},\n" +
				"\"errors\": [{\"span\": \"goed\", \"kind\": \"grammar\", \"suggestion\": \"went\"}, {\"span\": \"\"}],\n" +
				"\"feedback\": \" Nice. \", \"improved_answer\": \"They went.\"}\n```"
			fb, err := parseAssessment(text)

			Convey("Then every field is extracted", func() {
				So(err, ShouldBeNil)
				So(fb.Dimensions.Accuracy, ShouldEqual, 80)
				So(fb.Dimensions.Completeness, ShouldEqual, 70)
				So(fb.Dimensions.Language, ShouldEqual, 100)
				So(fb.Errors, ShouldHaveLength, 1)
				So(fb.Errors[0].Suggestion, ShouldEqual, "went")
				So(fb.Feedback, ShouldEqual, "Nice.")
				So(fb.ImprovedAnswer, ShouldEqual, "They went.")
			})
		})

		Convey("When scores are at the top level under aliases", func() {
			fb, err := parseAssessment(`{"content_accuracy": 60, "completeness": 60, "clarity": 60, "grammar": 40}`)

			Convey("Then they are accepted", func() {
				So(err, ShouldBeNil)
				So(fb.Dimensions.Accuracy, ShouldEqual, 60)
				So(fb.Dimensions.Language, ShouldEqual, 40)
				So(fb.Errors, ShouldNotBeNil)
			})
		})

		Convey("When a dimension is missing", func() {
			_, err := parseAssessment(`{"scores": {"accuracy": 1, "clarity": 2, "language": 3}}`)

			Convey("Then a parse error is returned", func() {
				So(errors.Is(err, session.ErrGenerationParse), ShouldBeTrue)
			})
		})

		Convey("When the response is prose", func() {
			_, err := parseAssessment("Content: good\nGrammar: fine")

			Convey("Then a parse error is returned", func() {
				So(errors.Is(err, session.ErrGenerationParse), ShouldBeTrue)
			})
		})
	})
}

func TestParseDefinition(t *testing.T) {
	Convey("Given definition responses", t, func() {
		Convey("When the JSON is valid", func() {
			d, err := parseDefinition("```json\n{\"definition\": \"adj: present everywhere\", \"examples\": [\"a\", \" \", \"b\"]}\n```")

			Convey("Then blank examples are dropped", func() {
				So(err, ShouldBeNil)
				So(d.Definition, ShouldEqual, "adj: present everywhere")
				So(d.Examples, ShouldResemble, []string{"a", "b"})
			})
		})

		Convey("When the definition is empty", func() {
			_, err := parseDefinition(`{"definition": "", "examples": []}`)
			So(errors.Is(err, session.ErrGenerationParse), ShouldBeTrue)
		})
	})
}

func TestParseWordList(t *testing.T) {
	Convey("Given vocabulary responses", t, func() {
		Convey("When the response is a JSON array with duplicates", func() {
			words, err := parseWordList(`["revolutionized", "Vast", "vast", " "]`, 5)

			Convey("Then duplicates and blanks are removed", func() {
				So(err, ShouldBeNil)
				So(words, ShouldResemble, []string{"revolutionized", "Vast"})
			})
		})

		Convey("When the response is a bulleted list", func() {
			words, err := parseWordList("- numerous\n- widespread\n3. utilize", 2)

			Convey("Then markers are stripped and the limit applies", func() {
				So(err, ShouldBeNil)
				So(words, ShouldResemble, []string{"numerous", "widespread"})
			})
		})

		Convey("When the response is empty", func() {
			_, err := parseWordList("[]", 5)
			So(errors.Is(err, session.ErrGenerationParse), ShouldBeTrue)
		})
	})
}
