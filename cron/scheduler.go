package cron

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/job"
)

// Poster is the producer side of a queue. *queue.Queue satisfies it.
type Poster interface {
	Post(ctx context.Context, j *job.Job) (string, error)
	PostToQueue(ctx context.Context, j *job.Job, index int) (string, error)
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithTickInterval sets how often the scheduler checks for due entries.
func WithTickInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.tickInterval = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *Scheduler) { s.now = now }
}

// cronParser supports standard 5-field cron and descriptors like "@every 30s".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	return cronParser.Parse(expr)
}

type scheduled struct {
	entry Entry
	sched cronlib.Schedule
	next  time.Time
}

// Scheduler posts due entries on every tick.
type Scheduler struct {
	poster       Poster
	tickInterval time.Duration
	now          func() time.Time
	logger       *slog.Logger

	mu      sync.Mutex
	entries map[string]*scheduled
}

// NewScheduler creates a Scheduler posting through p.
func NewScheduler(p Poster, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		poster:       p,
		tickInterval: time.Second,
		now:          time.Now,
		logger:       slog.Default(),
		entries:      make(map[string]*scheduled),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers e. Its first run is the first schedule time after now.
func (s *Scheduler) Add(e Entry) error {
	if e.Name == "" || e.Route == "" {
		return fmt.Errorf("%w: cron entry needs name and route", taskq.ErrInvalidConfig)
	}
	sched, err := ParseSchedule(e.Schedule)
	if err != nil {
		return fmt.Errorf("%w: cron %s: %v", taskq.ErrInvalidConfig, e.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.entries[e.Name]; dup {
		return fmt.Errorf("%w: duplicate cron entry %q", taskq.ErrInvalidConfig, e.Name)
	}
	s.entries[e.Name] = &scheduled{entry: e, sched: sched, next: sched.Next(s.now())}
	return nil
}

// Next returns when the named entry fires next.
func (s *Scheduler) Next(name string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return time.Time{}, false
	}
	return e.next, true
}

// Run ticks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	n := len(s.entries)
	s.mu.Unlock()
	s.logger.Info("cron scheduler started",
		slog.Int("entries", n),
		slog.Duration("tick_interval", s.tickInterval),
	)

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cron scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick posts every entry due at the current time and returns how many
// jobs were posted. An entry that missed several runs fires once.
func (s *Scheduler) Tick(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var due []*scheduled
	for _, e := range s.entries {
		if !e.next.After(now) {
			due = append(due, e)
			e.next = e.sched.Next(now)
		}
	}
	s.mu.Unlock()

	posted := 0
	for _, e := range due {
		if s.fire(ctx, e.entry) {
			posted++
		}
	}
	return posted
}

func (s *Scheduler) fire(ctx context.Context, e Entry) bool {
	j := job.New(e.Route, maps.Clone(e.Data))

	var (
		jobID string
		err   error
	)
	if e.Queue != nil {
		jobID, err = s.poster.PostToQueue(ctx, j, *e.Queue)
	} else {
		jobID, err = s.poster.Post(ctx, j)
	}
	if err != nil {
		s.logger.Error("cron post failed",
			slog.String("cron", e.Name),
			slog.String("job", e.Route),
			slog.String("error", err.Error()),
		)
		return false
	}

	s.logger.Info("cron fired",
		slog.String("cron", e.Name),
		slog.String("job", e.Route),
		slog.String("job_id", jobID),
	)
	return true
}
