// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"cmp"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/readcoach/internal/adapters/llm"
	"github.com/okian/readcoach/internal/adapters/reminder"
	repository "github.com/okian/readcoach/internal/adapters/repository"
	"github.com/okian/readcoach/internal/adapters/speech"
	"github.com/okian/readcoach/internal/auth"
	"github.com/okian/readcoach/internal/domain/analytics"
	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/internal/domain/scoring"
	"github.com/okian/readcoach/internal/domain/session"
	"github.com/okian/readcoach/internal/domain/srs"
	"github.com/okian/readcoach/internal/domain/types"
	"github.com/okian/readcoach/internal/domain/vocabulary"
	"github.com/okian/readcoach/pkg/logger"
	"github.com/okian/readcoach/pkg/metrics"
)

// Service implements the API dependencies for the practice coach.
type Service struct {
	mu sync.RWMutex

	// Core components
	docs         repository.DocumentStore
	users        *repository.Users
	history      *repository.Sessions
	entries      *repository.Vocabulary
	book         *vocabulary.Book
	orchestrator *session.Orchestrator
	registry     *session.Registry
	aggregator   *analytics.Aggregator
	auth         *auth.Service
	reminder     *reminder.Reminder
	generator    session.Generator
	transcriber  session.Transcriber

	// Configuration
	dbPath           string
	openAI           llm.Config
	transcribeModel  string
	transcribeLang   string
	transcribeLimit  time.Duration
	questionCount    int
	lookupWorkers    int
	lookupBudget     time.Duration
	vocabularyMax    int
	scoringWeights   map[string]float64
	policy           srs.Policy
	recentWindow     int
	stableThreshold  float64
	location         *time.Location
	reminderInterval time.Duration
	jwtSecret        string
	tokenTTL         time.Duration
	bcryptCost       int
	notifier         reminder.Notifier
	now              func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDBPath selects the sqlite store at path. Empty keeps data in memory.
func WithDBPath(path string) Option {
	return func(s *Service) { s.dbPath = path }
}

// WithDocumentStore injects a document store, bypassing WithDBPath.
func WithDocumentStore(docs repository.DocumentStore) Option {
	return func(s *Service) { s.docs = docs }
}

// WithOpenAI configures the chat completion client.
func WithOpenAI(cfg llm.Config) Option {
	return func(s *Service) {
		s.openAI.APIKey = cfg.APIKey
		s.openAI.BaseURL = cmp.Or(cfg.BaseURL, s.openAI.BaseURL)
		s.openAI.ChatModel = cmp.Or(cfg.ChatModel, s.openAI.ChatModel)
		if cfg.MaxRetries > 0 {
			s.openAI.MaxRetries = cfg.MaxRetries
		}
		if cfg.Timeout > 0 {
			s.openAI.Timeout = cfg.Timeout
		}
	}
}

// WithTranscription sets the speech model, language and per-request timeout.
// A zero timeout keeps the transcriber default.
func WithTranscription(model, language string, timeout time.Duration) Option {
	return func(s *Service) {
		s.transcribeModel = cmp.Or(model, s.transcribeModel)
		s.transcribeLang = cmp.Or(language, s.transcribeLang)
		s.transcribeLimit = timeout
	}
}

// WithDefinitionLookup bounds the parallel definition lookups run for one
// vocabulary extraction.
func WithDefinitionLookup(concurrency int, budget time.Duration) Option {
	return func(s *Service) {
		s.lookupWorkers = concurrency
		s.lookupBudget = budget
	}
}

// WithGenerator replaces the OpenAI-backed generator.
func WithGenerator(g session.Generator) Option {
	return func(s *Service) { s.generator = g }
}

// WithTranscriber replaces the Whisper-backed transcriber.
func WithTranscriber(t session.Transcriber) Option {
	return func(s *Service) { s.transcriber = t }
}

// WithQuestionCount sets the default number of questions per session.
func WithQuestionCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.questionCount = n
		}
	}
}

// WithVocabularyMax caps the words extracted from one passage.
func WithVocabularyMax(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.vocabularyMax = n
		}
	}
}

// WithScoringWeights sets per-dimension weights.
func WithScoringWeights(weights map[string]float64) Option {
	return func(s *Service) { s.scoringWeights = weights }
}

// WithSRSPolicy sets the vocabulary review policy.
func WithSRSPolicy(p srs.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithAnalytics sets the trend window, stable threshold and bucket location.
func WithAnalytics(recentWindow int, stableThreshold float64, loc *time.Location) Option {
	return func(s *Service) {
		s.recentWindow = recentWindow
		s.stableThreshold = stableThreshold
		if loc != nil {
			s.location = loc
		}
	}
}

// WithReminder sets the due-review check period; 0 disables the job.
func WithReminder(interval time.Duration, n reminder.Notifier) Option {
	return func(s *Service) {
		s.reminderInterval = interval
		s.notifier = n
	}
}

// WithAuth sets the token secret and lifetime.
func WithAuth(secret string, ttl time.Duration) Option {
	return func(s *Service) {
		s.jwtSecret = secret
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

// WithBcryptCost overrides the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.bcryptCost = cost }
}

// WithClock overrides time.Now in every component.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		openAI:           llm.DefaultConfig(),
		transcribeModel:  "whisper-1",
		transcribeLang:   "en",
		questionCount:    5,
		vocabularyMax:    8,
		policy:           srs.DefaultPolicy(),
		recentWindow:     5,
		stableThreshold:  2,
		location:         time.UTC,
		reminderInterval: time.Hour,
		tokenTTL:         24 * time.Hour,
		now:              time.Now,
		logger:           nil, // replaced when the service starts
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting practice service...")

	if err := s.openStore(ctx); err != nil {
		return err
	}
	s.users = repository.NewUsers(s.docs)
	s.history = repository.NewSessions(s.docs)
	s.entries = repository.NewVocabulary(s.docs)

	scorer, err := scoring.New(scoring.WithWeightsFromConfig(s.scoringWeights))
	if err != nil {
		return s.abort(fmt.Errorf("scoring: %w", err))
	}
	scheduler, err := srs.New(srs.WithPolicy(s.policy))
	if err != nil {
		return s.abort(fmt.Errorf("srs: %w", err))
	}
	s.book, err = vocabulary.New(s.entries,
		vocabulary.WithScheduler(scheduler),
		vocabulary.WithClock(s.now),
		vocabulary.WithLogger(s.logger.Named("vocabulary")),
	)
	if err != nil {
		return s.abort(fmt.Errorf("vocabulary: %w", err))
	}

	if s.generator == nil {
		if s.openAI.APIKey == "" {
			s.logger.Warn(ctx, "no OpenAI API key configured; generation requests will fail")
		}
		s.generator = llm.New(s.openAI, llm.WithLogger(s.logger.Named("llm")))
	}
	if s.transcriber == nil {
		s.transcriber = speech.New(s.openAI.APIKey, s.openAI.BaseURL,
			speech.WithModel(s.transcribeModel),
			speech.WithLanguage(s.transcribeLang),
			speech.WithTimeout(s.transcribeLimit),
			speech.WithLogger(s.logger.Named("speech")),
		)
	}
	s.orchestrator = session.NewOrchestrator(s.generator, scorer, s.history,
		session.WithTranscriber(s.transcriber),
		session.WithVocabularyBook(s.book),
		session.WithQuestionCount(s.questionCount),
		session.WithDefinitionLookup(s.lookupWorkers, s.lookupBudget),
		session.WithClock(s.now),
		session.WithLogger(s.logger.Named("session")),
	)
	s.registry = session.NewRegistry()
	s.aggregator = analytics.New(
		analytics.WithRecentWindow(s.recentWindow),
		analytics.WithStableThreshold(s.stableThreshold),
		analytics.WithLocation(s.location),
	)

	secret := s.jwtSecret
	if secret == "" {
		secret = randomSecret()
		s.logger.Warn(ctx, "no jwt secret configured; tokens will not survive a restart")
	}
	authOpts := []auth.Option{
		auth.WithTokenTTL(s.tokenTTL),
		auth.WithClock(s.now),
		auth.WithLogger(s.logger.Named("auth")),
	}
	if s.bcryptCost > 0 {
		authOpts = append(authOpts, auth.WithBcryptCost(s.bcryptCost))
	}
	s.auth, err = auth.New(s.users, secret, authOpts...)
	if err != nil {
		return s.abort(fmt.Errorf("auth: %w", err))
	}

	if s.reminderInterval > 0 {
		s.reminder = reminder.New(s.entries, s.book,
			reminder.WithInterval(s.reminderInterval),
			reminder.WithNotifier(s.notifier),
			reminder.WithClock(s.now),
			reminder.WithLogger(s.logger.Named("reminder")),
		)
		// The job outlives the start-up context; Stop ends it.
		if err := s.reminder.Start(context.WithoutCancel(ctx)); err != nil {
			return s.abort(err)
		}
	}

	s.started = true
	s.logger.Info(ctx, "practice service started",
		logger.String("store", s.storeKind()),
		logger.Int("questionCount", s.questionCount),
		logger.Bool("reminder", s.reminder != nil),
	)

	return nil
}

func (s *Service) openStore(ctx context.Context) error {
	if s.docs != nil {
		return nil
	}
	if s.dbPath == "" {
		s.docs = repository.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory store")
		return nil
	}
	store, err := repository.OpenSQLite(ctx, s.dbPath,
		repository.WithClock(s.now),
		repository.WithLogger(s.logger.Named("repository")),
	)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	s.docs = store
	s.logger.Info(ctx, "using sqlite store", logger.String("path", s.dbPath))
	return nil
}

// abort releases the store after a failed Start.
func (s *Service) abort(err error) error {
	if s.docs != nil {
		_ = s.docs.Close()
		s.docs = nil
	}
	return err
}

func (s *Service) storeKind() string {
	if _, ok := s.docs.(*repository.SQLiteStore); ok {
		return "sqlite"
	}
	return "memory"
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Stop gracefully shuts down the service. Active sessions that were never
// finished are dropped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping practice service...")

	if s.reminder != nil {
		s.reminder.Stop()
		s.reminder = nil
	}
	if s.docs != nil {
		if err := s.docs.Close(); err != nil {
			s.logger.Warn(context.Background(), "close store", logger.Error(err))
		}
		s.docs = nil
	}

	s.started = false
	s.logger.Info(context.Background(), "practice service stopped")
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Register creates an account and signs the user in.
func (s *Service) Register(ctx context.Context, username, email, password string) (types.AuthResult, error) {
	if err := s.ready(); err != nil {
		return types.AuthResult{}, err
	}
	u, err := s.auth.Register(ctx, username, email, password)
	if err != nil {
		return types.AuthResult{}, err
	}
	return s.issue(u)
}

// Login verifies credentials and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (types.AuthResult, error) {
	if err := s.ready(); err != nil {
		return types.AuthResult{}, err
	}
	u, err := s.auth.Login(ctx, username, password)
	if err != nil {
		return types.AuthResult{}, err
	}
	return s.issue(u)
}

func (s *Service) issue(u model.User) (types.AuthResult, error) {
	token, exp, err := s.auth.IssueToken(u)
	if err != nil {
		return types.AuthResult{}, err
	}
	return types.AuthResult{User: u, Token: token, ExpiresAt: exp}, nil
}

// Authenticate returns the user ID carried by a valid token.
func (s *Service) Authenticate(_ context.Context, token string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	claims, err := s.auth.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// StartSession generates questions for passage and registers the session.
func (s *Service) StartSession(ctx context.Context, userID, passage string, questions int) (types.SessionView, error) {
	if err := s.ready(); err != nil {
		return types.SessionView{}, err
	}
	sess, err := s.orchestrator.Start(ctx, userID, passage, questions)
	if err != nil {
		return types.SessionView{}, err
	}
	s.registry.Put(sess)
	return viewOf(sess), nil
}

// Session returns the state of an active session.
func (s *Service) Session(_ context.Context, userID, id string) (types.SessionView, error) {
	return s.withSession(userID, id, func(*session.Session) error { return nil })
}

// Next moves to the following question.
func (s *Service) Next(_ context.Context, userID, id string) (types.SessionView, error) {
	return s.withSession(userID, id, func(sess *session.Session) error {
		sess.Next()
		return nil
	})
}

// Prev moves to the preceding question.
func (s *Service) Prev(_ context.Context, userID, id string) (types.SessionView, error) {
	return s.withSession(userID, id, func(sess *session.Session) error {
		sess.Prev()
		return nil
	})
}

// SubmitAnswer answers the current question and returns its assessment.
// When assessment fails the slot is unchanged and the error carries the
// rejected text.
func (s *Service) SubmitAnswer(ctx context.Context, userID, id, answer string) (types.AnswerResult, error) {
	var a model.Assessment
	view, err := s.withSession(userID, id, func(sess *session.Session) error {
		var err error
		a, err = s.orchestrator.Submit(ctx, sess, answer)
		return err
	})
	if err != nil {
		return types.AnswerResult{}, err
	}
	return types.AnswerResult{Assessment: a, Session: view}, nil
}

// Transcribe converts an uploaded recording into answer text. Only files
// with a supported audio extension are accepted.
func (s *Service) Transcribe(ctx context.Context, userID, id string, audio io.Reader, filename string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if _, err := s.registry.Get(userID, id); err != nil {
		return "", err
	}
	if !speech.Supported(filename) {
		return "", fmt.Errorf("%w: %q", speech.ErrUnsupportedFormat, filename)
	}
	return s.orchestrator.Transcribe(ctx, audio, filename)
}

// ExtractVocabulary saves difficult words from the session passage.
func (s *Service) ExtractVocabulary(ctx context.Context, userID, id string, limit int) ([]model.VocabularyEntry, error) {
	if limit <= 0 {
		limit = s.vocabularyMax
	}
	var entries []model.VocabularyEntry
	_, err := s.withSession(userID, id, func(sess *session.Session) error {
		var err error
		entries, err = s.orchestrator.ExtractVocabulary(ctx, sess, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// FinishSession persists the session and removes it from the active set.
// Unanswered questions are kept in the record.
func (s *Service) FinishSession(ctx context.Context, userID, id string) (model.SessionRecord, error) {
	var rec model.SessionRecord
	_, err := s.withSession(userID, id, func(sess *session.Session) error {
		var err error
		rec, err = s.orchestrator.Finish(ctx, sess)
		return err
	})
	if err != nil {
		return model.SessionRecord{}, err
	}
	s.registry.Delete(id)
	return rec, nil
}

func (s *Service) withSession(userID, id string, fn func(*session.Session) error) (types.SessionView, error) {
	if err := s.ready(); err != nil {
		return types.SessionView{}, err
	}
	var view types.SessionView
	err := s.registry.With(userID, id, func(sess *session.Session) error {
		err := fn(sess)
		// The view reflects the answer even when assessment failed.
		view = viewOf(sess)
		return err
	})
	return view, err
}

func viewOf(sess *session.Session) types.SessionView {
	v := types.SessionView{
		ID:         sess.ID,
		Passage:    sess.Passage,
		Index:      sess.Index(),
		Total:      sess.Len(),
		Slots:      sess.Slots(),
		Vocabulary: sess.Vocabulary(),
		Complete:   sess.Complete(),
		StartedAt:  sess.StartedAt,
	}
	if q, ok := sess.Current(); ok {
		v.Current = &q
	}
	return v
}

// History returns the user's finished sessions, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]model.SessionRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	recs, err := s.history.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(recs, func(a, b model.SessionRecord) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return recs, nil
}

// HistoryRecord returns one finished session.
func (s *Service) HistoryRecord(ctx context.Context, userID, id string) (model.SessionRecord, error) {
	if err := s.ready(); err != nil {
		return model.SessionRecord{}, err
	}
	return s.history.Get(ctx, userID, id)
}

// Analytics aggregates the user's finished sessions and saved words.
func (s *Service) Analytics(ctx context.Context, userID string) (analytics.Analytics, error) {
	if err := s.ready(); err != nil {
		return analytics.Analytics{}, err
	}
	recs, err := s.history.List(ctx, userID)
	if err != nil {
		return analytics.Analytics{}, err
	}
	entries, err := s.entries.ListEntries(ctx, userID)
	if err != nil {
		return analytics.Analytics{}, err
	}
	return s.aggregator.Aggregate(recs, entries), nil
}

// AddWord saves term to the user's vocabulary. A missing definition is
// looked up; the word is saved without one if the lookup fails.
func (s *Service) AddWord(ctx context.Context, userID, term, definition, example string) (model.VocabularyEntry, error) {
	if err := s.ready(); err != nil {
		return model.VocabularyEntry{}, err
	}
	if _, err := vocabulary.Normalize(term); err != nil {
		return model.VocabularyEntry{}, err
	}
	if strings.TrimSpace(definition) == "" {
		def, err := s.generator.DefineWord(ctx, term)
		if err != nil {
			metrics.RecordGenerationError("definition")
			s.logger.Warn(ctx, "definition lookup failed", logger.String("term", term), logger.Error(err))
		} else {
			definition = def.Definition
			if example == "" && len(def.Examples) > 0 {
				example = def.Examples[0]
			}
		}
	}
	return s.book.AddWord(ctx, userID, term, definition, example, "")
}

// Vocabulary lists the user's saved words.
func (s *Service) Vocabulary(ctx context.Context, userID string) ([]model.VocabularyEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.book.List(ctx, userID)
}

// DueVocabulary lists entries due for review now.
func (s *Service) DueVocabulary(ctx context.Context, userID string) (types.DueVocabulary, error) {
	if err := s.ready(); err != nil {
		return types.DueVocabulary{}, err
	}
	seq, err := s.book.ListDue(ctx, userID, s.now())
	if err != nil {
		return types.DueVocabulary{}, err
	}
	out := types.DueVocabulary{Entries: slices.Collect(seq)}
	if out.Entries == nil {
		out.Entries = []model.VocabularyEntry{}
	}
	out.Count = len(out.Entries)
	if s.reminder != nil {
		if _, at := s.reminder.Pending(userID); !at.IsZero() {
			out.LastReminder = &at
		}
	}
	return out, nil
}

// ReviewWord records a review outcome and reschedules the entry.
func (s *Service) ReviewWord(ctx context.Context, userID, term, outcome string) (model.VocabularyEntry, error) {
	if err := s.ready(); err != nil {
		return model.VocabularyEntry{}, err
	}
	o, err := srs.ParseOutcome(outcome)
	if err != nil {
		return model.VocabularyEntry{}, err
	}
	return s.book.Review(ctx, userID, term, o)
}

// ArchiveWord hides an entry from listings and reviews.
func (s *Service) ArchiveWord(ctx context.Context, userID, term string) (model.VocabularyEntry, error) {
	if err := s.ready(); err != nil {
		return model.VocabularyEntry{}, err
	}
	return s.book.Archive(ctx, userID, term)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	goroutines := runtime.NumGoroutine()

	stats := map[string]interface{}{
		"started":       s.started,
		"questionCount": s.questionCount,
		"goroutines":    goroutines,
		"memoryBytes":   mem.Alloc,
	}

	if s.started {
		stats["store"] = s.storeKind()
		stats["activeSessions"] = s.registry.Len()
		stats["reminder"] = s.reminder != nil
	}

	metrics.UpdateSystemMemoryUsage(mem.Alloc)
	metrics.UpdateSystemGoroutineCount(goroutines)

	return stats
}
