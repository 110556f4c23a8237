package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/internal/domain/scoring"
	"github.com/okian/readcoach/internal/domain/session"
)

var (
	numberedLine = regexp.MustCompile(`^\s*(?:#\s*)?\d+\s*[.):\-]?\s+(.*\S)\s*$`)
	fencedBlock  = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
)

// parseQuestions extracts n questions from a numbered list. Numbering
// such as "1.", "1)", "#1" or "1-" is removed; extra items are dropped.
func parseQuestions(text string, n int) ([]string, error) {
	var numbered, plain []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			numbered = append(numbered, strings.TrimSpace(m[1]))
			continue
		}
		plain = append(plain, line)
	}
	questions := numbered
	if len(questions) == 0 {
		questions = plain
	}
	if len(questions) < n {
		return nil, fmt.Errorf("%w: got %d questions, want %d", session.ErrGenerationParse, len(questions), n)
	}
	return questions[:n], nil
}

// stripFences returns the body of a fenced code block, or text unchanged.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

func decodeJSON(text string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(stripFences(text))))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", session.ErrGenerationParse, err)
	}
	return nil
}

type assessmentPayload struct {
	Scores         map[string]any    `json:"scores"`
	Errors         []model.ErrorSpan `json:"errors"`
	Feedback       string            `json:"feedback"`
	ImprovedAnswer string            `json:"improved_answer"`
}

// parseAssessment validates the assessment JSON. Scores may sit under
// "scores" or at the top level.
func parseAssessment(text string) (session.Feedback, error) {
	var p assessmentPayload
	if err := decodeJSON(text, &p); err != nil {
		return session.Feedback{}, err
	}
	scores := p.Scores
	if scores == nil {
		var flat map[string]any
		if err := decodeJSON(text, &flat); err != nil {
			return session.Feedback{}, err
		}
		scores = flat
	}
	dims, err := scoring.ParseDimensions(scores)
	if err != nil {
		return session.Feedback{}, fmt.Errorf("%w: %w", session.ErrGenerationParse, err)
	}
	spans := make([]model.ErrorSpan, 0, len(p.Errors))
	for _, e := range p.Errors {
		if strings.TrimSpace(e.Span) == "" {
			continue
		}
		spans = append(spans, e)
	}
	return session.Feedback{
		Dimensions:     dims,
		Errors:         spans,
		Feedback:       strings.TrimSpace(p.Feedback),
		ImprovedAnswer: strings.TrimSpace(p.ImprovedAnswer),
	}, nil
}

// parseDefinition validates the definition JSON.
func parseDefinition(text string) (session.Definition, error) {
	var d session.Definition
	if err := decodeJSON(text, &d); err != nil {
		return session.Definition{}, err
	}
	d.Definition = strings.TrimSpace(d.Definition)
	if d.Definition == "" {
		return session.Definition{}, fmt.Errorf("%w: empty definition", session.ErrGenerationParse)
	}
	examples := d.Examples[:0]
	for _, ex := range d.Examples {
		if ex = strings.TrimSpace(ex); ex != "" {
			examples = append(examples, ex)
		}
	}
	d.Examples = examples
	return d, nil
}

// parseWordList accepts a JSON array of strings, falling back to one word
// per line with list markers removed.
func parseWordList(text string, limit int) ([]string, error) {
	var words []string
	if err := decodeJSON(text, &words); err != nil {
		for _, line := range strings.Split(stripFences(text), "\n") {
			line = strings.TrimSpace(line)
			if m := numberedLine.FindStringSubmatch(line); m != nil {
				line = m[1]
			}
			line = strings.Trim(strings.TrimLeft(line, "-*• "), `",`)
			if line != "" {
				words = append(words, line)
			}
		}
	}
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		key := strings.ToLower(w)
		if w == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, w)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no vocabulary in response", session.ErrGenerationParse)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
