package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/internal/domain/scoring"
	"github.com/okian/readcoach/pkg/logger"
	"github.com/okian/readcoach/pkg/metrics"
)

// DefaultPassage is used when a session starts without a passage.
const DefaultPassage = "Technology has revolutionized education in numerous ways over the past few decades. " +
	"From the introduction of computers in classrooms to the widespread use of the internet, " +
	"educational tools have evolved significantly. Today, students can access vast amounts of " +
	"information instantly, collaborate with peers across the globe, and utilize interactive learning platforms."

// MaxQuestionCount bounds the questions generated for one session.
const MaxQuestionCount = 20

const (
	defaultQuestionCount     = 5
	defaultVocabularyMax     = 8
	defaultLookupConcurrency = 4
	defaultLookupBudget      = 60 * time.Second
)

// Feedback is the generator's judgement of one answer before scoring.
type Feedback struct {
	Dimensions     model.Dimensions
	Errors         []model.ErrorSpan
	Feedback       string
	ImprovedAnswer string
}

// Definition is a dictionary-style explanation of a term.
type Definition struct {
	Term       string   `json:"term"`
	Definition string   `json:"definition"`
	Examples   []string `json:"examples"`
}

// Generator is the text-generation service boundary. Output that cannot be
// parsed into the requested shape fails with ErrGenerationParse.
type Generator interface {
	GenerateQuestions(ctx context.Context, passage string, n int) ([]string, error)
	Assess(ctx context.Context, passage, question, answer string) (Feedback, error)
	ExtractVocabulary(ctx context.Context, passage string, limit int) ([]string, error)
	DefineWord(ctx context.Context, term string) (Definition, error)
}

// Transcriber converts recorded speech to text. Failures wrap
// ErrTranscription.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// VocabularyBook saves words encountered in a session.
type VocabularyBook interface {
	AddWord(ctx context.Context, userID, term, definition, example, sourceRef string) (model.VocabularyEntry, error)
}

// SessionStore appends finished session records.
type SessionStore interface {
	Append(ctx context.Context, rec model.SessionRecord) error
}

// Option applies a configuration option to the Orchestrator.
type Option func(*Orchestrator)

// WithTranscriber enables speech answers.
func WithTranscriber(t Transcriber) Option {
	return func(o *Orchestrator) {
		o.transcriber = t
	}
}

// WithVocabularyBook enables vocabulary extraction.
func WithVocabularyBook(b VocabularyBook) Option {
	return func(o *Orchestrator) {
		o.book = b
	}
}

// WithQuestionCount sets how many questions a session gets by default.
func WithQuestionCount(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.questionCount = n
		}
	}
}

// WithDefinitionLookup bounds the definition lookups of one vocabulary
// extraction: at most concurrency run at once and all of them share budget.
// Words whose lookup misses the budget are saved without a definition.
func WithDefinitionLookup(concurrency int, budget time.Duration) Option {
	return func(o *Orchestrator) {
		if concurrency > 0 {
			o.lookupConcurrency = concurrency
		}
		if budget > 0 {
			o.lookupBudget = budget
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *Orchestrator) {
		if gen != nil {
			o.newID = gen
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// Orchestrator drives sessions through generation, answering, assessment
// and persistence. It holds no per-session state.
type Orchestrator struct {
	generator     Generator
	scorer        scoring.Scorer
	store         SessionStore
	transcriber   Transcriber
	book          VocabularyBook
	questionCount int
	now           func() time.Time
	newID         func() string
	logger        logger.Logger

	lookupConcurrency int
	lookupBudget      time.Duration
}

// NewOrchestrator wires the collaborators of a session.
func NewOrchestrator(gen Generator, scorer scoring.Scorer, store SessionStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		generator:     gen,
		scorer:        scorer,
		store:         store,
		questionCount: defaultQuestionCount,
		now:           time.Now,
		newID:         uuid.NewString,

		lookupConcurrency: defaultLookupConcurrency,
		lookupBudget:      defaultLookupBudget,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("session")
	}
	return o
}

// QuestionCount returns the default number of questions per session.
func (o *Orchestrator) QuestionCount() int {
	return o.questionCount
}

// Start creates a session over passage with n questions. An empty passage
// selects DefaultPassage; n <= 0 selects the configured count. Counts above
// MaxQuestionCount fail with ErrInvalidCount.
func (o *Orchestrator) Start(ctx context.Context, userID, passage string, n int) (*Session, error) {
	if n > MaxQuestionCount {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidCount, n, MaxQuestionCount)
	}
	passage = strings.TrimSpace(passage)
	if passage == "" {
		passage = DefaultPassage
	}
	if n <= 0 {
		n = o.questionCount
	}

	texts, err := o.generator.GenerateQuestions(ctx, passage, n)
	if err != nil {
		metrics.RecordGenerationError("questions")
		return nil, fmt.Errorf("generate questions: %w", err)
	}
	if len(texts) != n {
		metrics.RecordGenerationError("questions")
		return nil, fmt.Errorf("%w: got %d questions, want %d", ErrGenerationParse, len(texts), n)
	}
	questions := make([]model.Question, n)
	for i, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			metrics.RecordGenerationError("questions")
			return nil, fmt.Errorf("%w: question %d is empty", ErrGenerationParse, i+1)
		}
		questions[i] = model.Question{Index: i, Text: t}
	}

	s := New(o.newID(), userID, passage, questions, o.now())
	metrics.RecordSessionStarted()
	o.logger.Info(ctx, "session started",
		logger.String("session", s.ID),
		logger.String("user", userID),
		logger.Int("questions", n),
	)
	return s, nil
}

// Submit assesses answer against the current question and records both on
// success. On failure the slot is left as it was and the error, an
// *AnswerError, carries the text so the caller can retry.
func (o *Orchestrator) Submit(ctx context.Context, s *Session, answer string) (model.Assessment, error) {
	text, err := s.PrepareAnswer(answer)
	if err != nil {
		return model.Assessment{}, err
	}
	idx := s.Index()
	q, _ := s.Current()
	rejected := func(err error) error {
		return &AnswerError{Index: idx, Answer: text, Err: err}
	}

	fb, err := o.generator.Assess(ctx, s.Passage, q.Text, text)
	if err != nil {
		metrics.RecordGenerationError("assessment")
		o.logger.Warn(ctx, "assessment failed",
			logger.String("session", s.ID),
			logger.Int("question", idx),
			logger.Error(err),
		)
		return model.Assessment{}, rejected(fmt.Errorf("assess answer: %w", err))
	}

	a, err := o.scorer.Score(fb.Dimensions)
	if err != nil {
		metrics.RecordGenerationError("assessment")
		return model.Assessment{}, rejected(fmt.Errorf("%w: %w", ErrGenerationParse, err))
	}
	if fb.Errors != nil {
		a.Errors = fb.Errors
	}
	a.Feedback = fb.Feedback
	a.ImprovedAnswer = fb.ImprovedAnswer

	if err := s.Answer(text, a); err != nil {
		return model.Assessment{}, err
	}
	metrics.RecordAnswerAssessed(string(a.Band), a.Aggregate)
	o.logger.Debug(ctx, "answer assessed",
		logger.String("session", s.ID),
		logger.Int("question", idx),
		logger.Int("aggregate", a.Aggregate),
		logger.String("band", string(a.Band)),
	)
	return a, nil
}

// Transcribe turns recorded audio into answer text. The caller falls back
// to typed input on failure.
func (o *Orchestrator) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if o.transcriber == nil {
		return "", ErrNoTranscriber
	}
	text, err := o.transcriber.Transcribe(ctx, audio, filename)
	if err != nil {
		metrics.RecordTranscriptionError()
		if !errors.Is(err, ErrTranscription) {
			err = fmt.Errorf("%w: %w", ErrTranscription, err)
		}
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// ExtractVocabulary asks the generator for difficult words in the passage
// and saves each to the learner's vocabulary with the session as source.
// Definitions are looked up concurrently within the lookup budget. Words
// that fail to save are skipped and logged.
func (o *Orchestrator) ExtractVocabulary(ctx context.Context, s *Session, limit int) ([]model.VocabularyEntry, error) {
	if o.book == nil {
		return nil, ErrNoVocabularyBook
	}
	if limit <= 0 {
		limit = defaultVocabularyMax
	}
	words, err := o.generator.ExtractVocabulary(ctx, s.Passage, limit)
	if err != nil {
		metrics.RecordGenerationError("vocabulary")
		return nil, fmt.Errorf("extract vocabulary: %w", err)
	}

	defs := o.defineAll(ctx, words)
	entries := make([]model.VocabularyEntry, 0, len(words))
	for i, w := range words {
		example := ""
		if len(defs[i].Examples) > 0 {
			example = defs[i].Examples[0]
		}
		e, err := o.book.AddWord(ctx, s.UserID, w, defs[i].Definition, example, s.ID)
		if err != nil {
			o.logger.Warn(ctx, "vocabulary word skipped", logger.String("term", w), logger.Error(err))
			continue
		}
		s.AddVocabulary(e.Term)
		entries = append(entries, e)
	}
	return entries, nil
}

// defineAll looks up words in parallel. A failed lookup leaves a zero
// Definition at its index.
func (o *Orchestrator) defineAll(ctx context.Context, words []string) []Definition {
	ctx, cancel := context.WithTimeout(ctx, o.lookupBudget)
	defer cancel()

	defs := make([]Definition, len(words))
	var g errgroup.Group
	g.SetLimit(o.lookupConcurrency)
	for i, w := range words {
		g.Go(func() error {
			def, err := o.generator.DefineWord(ctx, w)
			if err != nil {
				metrics.RecordGenerationError("definition")
				o.logger.Warn(ctx, "definition failed", logger.String("term", w), logger.Error(err))
				return nil
			}
			defs[i] = def
			return nil
		})
	}
	_ = g.Wait()
	return defs
}

// Finish persists the session. Partial sessions are persisted with their
// unanswered slots.
func (o *Orchestrator) Finish(ctx context.Context, s *Session) (model.SessionRecord, error) {
	rec := s.Record(o.now())
	if err := o.store.Append(ctx, rec); err != nil {
		return model.SessionRecord{}, fmt.Errorf("persist session: %w", err)
	}
	unanswered := len(rec.Slots) - rec.Answered()
	metrics.RecordSessionFinished(unanswered)
	o.logger.Info(ctx, "session finished",
		logger.String("session", rec.ID),
		logger.String("user", rec.UserID),
		logger.Int("answered", rec.Answered()),
		logger.Int("unanswered", unanswered),
		logger.Int("score", rec.Score),
	)
	return rec, nil
}
