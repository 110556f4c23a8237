// Package reminder periodically counts vocabulary entries due for review
// and notifies each learner that has some.
package reminder

import (
	"context"
	"fmt"
	"iter"
	"maps"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/okian/readcoach/internal/domain/model"
	"github.com/okian/readcoach/pkg/logger"
	"github.com/okian/readcoach/pkg/metrics"
)

const defaultInterval = time.Hour

// UserLister lists users that own vocabulary.
type UserLister interface {
	Users(ctx context.Context) ([]string, error)
}

// DueLister lists a user's due entries.
type DueLister interface {
	ListDue(ctx context.Context, userID string, now time.Time) (iter.Seq[model.VocabularyEntry], error)
}

// Notifier delivers a reminder. Implementations must be safe to call from
// the scheduler goroutine.
type Notifier interface {
	NotifyDue(ctx context.Context, userID string, due int) error
}

// LogNotifier writes reminders to the log.
type LogNotifier struct {
	Logger logger.Logger
}

// NotifyDue logs the reminder.
func (n LogNotifier) NotifyDue(ctx context.Context, userID string, due int) error {
	n.Logger.Info(ctx, "vocabulary review due", logger.String("user", userID), logger.Int("due", due))
	return nil
}

// Option applies a configuration option to the Reminder.
type Option func(*Reminder)

// WithInterval sets how often due entries are counted.
func WithInterval(d time.Duration) Option {
	return func(r *Reminder) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithNotifier replaces the log notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Reminder) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reminder) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(r *Reminder) {
		if l != nil {
			r.logger = l
		}
	}
}

// Reminder runs the due-review check on a gocron schedule.
type Reminder struct {
	users    UserLister
	due      DueLister
	notifier Notifier
	interval time.Duration
	now      func() time.Time
	logger   logger.Logger

	sched *gocron.Scheduler

	mu      sync.RWMutex
	pending map[string]int
	lastRun time.Time
}

// New creates a Reminder. It does nothing until Start.
func New(users UserLister, due DueLister, opts ...Option) *Reminder {
	r := &Reminder{
		users:    users,
		due:      due,
		interval: defaultInterval,
		now:      time.Now,
		pending:  map[string]int{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("reminder")
	}
	if r.notifier == nil {
		r.notifier = LogNotifier{Logger: r.logger}
	}
	return r
}

// Start schedules RunOnce every interval, starting immediately.
func (r *Reminder) Start(ctx context.Context) error {
	r.sched = gocron.NewScheduler(time.UTC)
	_, err := r.sched.Every(r.interval).SingletonMode().Do(func() {
		if _, err := r.RunOnce(ctx); err != nil {
			r.logger.Error(ctx, "reminder run failed", logger.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule reminder: %w", err)
	}
	r.sched.StartAsync()
	r.logger.Info(ctx, "reminder started", logger.Duration("interval", r.interval))
	return nil
}

// Stop halts the schedule.
func (r *Reminder) Stop() {
	if r.sched != nil {
		r.sched.Stop()
	}
}

// RunOnce counts due entries for every user, notifies those with any and
// returns the counts. A failure for one user does not stop the others.
func (r *Reminder) RunOnce(ctx context.Context) (map[string]int, error) {
	ids, err := r.users.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	now := r.now()
	counts := make(map[string]int, len(ids))
	total := 0
	for _, id := range ids {
		seq, err := r.due.ListDue(ctx, id, now)
		if err != nil {
			r.logger.Warn(ctx, "due listing failed", logger.String("user", id), logger.Error(err))
			continue
		}
		n := 0
		for range seq {
			n++
		}
		if n == 0 {
			continue
		}
		counts[id] = n
		total += n
		if err := r.notifier.NotifyDue(ctx, id, n); err != nil {
			r.logger.Warn(ctx, "reminder not delivered", logger.String("user", id), logger.Error(err))
		}
	}

	r.mu.Lock()
	r.pending = counts
	r.lastRun = now
	r.mu.Unlock()

	metrics.UpdateVocabularyDue(total)
	metrics.RecordReminderRun()
	return maps.Clone(counts), nil
}

// Pending returns the due count of userID at the last run.
func (r *Reminder) Pending(userID string) (int, time.Time) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending[userID], r.lastRun
}
