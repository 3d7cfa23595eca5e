package cron_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/cron"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/multiple"
	"github.com/xraph/taskq/queue"
	"github.com/xraph/taskq/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 8, 59, 30, 0, time.UTC)}
}

func TestScheduler_FiresWhenDue(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	q := queue.New(memory.New())
	s := cron.NewScheduler(q, cron.WithClock(clock.Now))

	if err := s.Add(cron.Entry{
		Name:     "daily-report",
		Schedule: "0 9 * * *",
		Route:    "report/daily",
		Data:     job.Data{"format": "pdf"},
	}); err != nil {
		t.Fatalf("add: %v", err)
	}

	if n := s.Tick(ctx); n != 0 {
		t.Fatalf("posted %d before due, want 0", n)
	}

	clock.Advance(30 * time.Second)
	if n := s.Tick(ctx); n != 1 {
		t.Fatalf("posted %d at 09:00, want 1", n)
	}
	if n := s.Tick(ctx); n != 0 {
		t.Fatalf("posted %d on a second tick, want 0", n)
	}

	next, ok := s.Next("daily-report")
	if !ok {
		t.Fatal("entry not found")
	}
	if want := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("next = %v, want %v", next, want)
	}

	j, err := q.Fetch(ctx)
	if err != nil || j == nil {
		t.Fatalf("fetch = %v, %v", j, err)
	}
	if j.Route != "report/daily" || j.Data["format"] != "pdf" {
		t.Errorf("job = %s %v, want report/daily {format: pdf}", j.Route, j.Data)
	}
}

func TestScheduler_MissedRunsFireOnce(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	q := queue.New(memory.New())
	s := cron.NewScheduler(q, cron.WithClock(clock.Now))

	if err := s.Add(cron.Entry{Name: "tick", Schedule: "@every 1m", Route: "tick"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	clock.Advance(10 * time.Minute)
	if n := s.Tick(ctx); n != 1 {
		t.Errorf("posted %d after 10 missed runs, want 1", n)
	}
	if size, _ := q.Size(ctx); size != 1 {
		t.Errorf("size = %d, want 1", size)
	}
}

func TestScheduler_PostsToMember(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	low := memory.New()
	b, err := multiple.New(nil, memory.New(), low)
	if err != nil {
		t.Fatalf("multiple: %v", err)
	}
	s := cron.NewScheduler(queue.New(b), cron.WithClock(clock.Now))

	idx := 1
	if err := s.Add(cron.Entry{Name: "cleanup", Schedule: "@every 1s", Route: "cleanup", Queue: &idx}); err != nil {
		t.Fatalf("add: %v", err)
	}
	clock.Advance(time.Second)
	s.Tick(ctx)

	if n, _ := low.Size(ctx); n != 1 {
		t.Errorf("member 1 size = %d, want 1", n)
	}
}

func TestScheduler_PostFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	// Immediate queues run the job on post; an unknown route fails.
	s := cron.NewScheduler(queue.NewImmediate(queue.WithRouter(job.NewRouter())), cron.WithClock(clock.Now))

	if err := s.Add(cron.Entry{Name: "broken", Schedule: "@every 1s", Route: "missing"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	clock.Advance(time.Second)
	if n := s.Tick(ctx); n != 0 {
		t.Errorf("posted = %d, want 0", n)
	}
}

func TestScheduler_AddValidation(t *testing.T) {
	s := cron.NewScheduler(queue.New(memory.New()))

	tests := []struct {
		name  string
		entry cron.Entry
	}{
		{"missing name", cron.Entry{Schedule: "@hourly", Route: "x"}},
		{"missing route", cron.Entry{Name: "x", Schedule: "@hourly"}},
		{"bad schedule", cron.Entry{Name: "x", Schedule: "every tuesday", Route: "x"}},
		{"six fields", cron.Entry{Name: "x", Schedule: "0 0 9 * * *", Route: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Add(tt.entry); !errors.Is(err, taskq.ErrInvalidConfig) {
				t.Fatalf("got %v, want ErrInvalidConfig", err)
			}
		})
	}

	ok := cron.Entry{Name: "dup", Schedule: "@hourly", Route: "x"}
	if err := s.Add(ok); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := s.Add(ok); !errors.Is(err, taskq.ErrInvalidConfig) {
		t.Fatalf("duplicate: got %v, want ErrInvalidConfig", err)
	}
}

func TestScheduler_RunStopsOnCancel(t *testing.T) {
	q := queue.New(memory.New())
	s := cron.NewScheduler(q, cron.WithTickInterval(5*time.Millisecond))
	if err := s.Add(cron.Entry{Name: "fast", Schedule: "@every 1s", Route: "fast"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n, _ := q.Size(context.Background()); n < 1 {
		t.Errorf("size = %d after 1.5s of @every 1s, want >= 1", n)
	}
}

type reportArgs struct {
	Format string `json:"format"`
	Pages  int    `json:"pages"`
}

func TestDefinition_Entry(t *testing.T) {
	d := cron.Definition[reportArgs]{
		Name:     "report",
		Schedule: "@daily",
		Route:    "report/daily",
		Data:     reportArgs{Format: "csv", Pages: 2},
	}
	e, err := d.Entry()
	if err != nil {
		t.Fatalf("entry: %v", err)
	}
	if e.Data["format"] != "csv" || e.Data["pages"] != float64(2) {
		t.Errorf("data = %v", e.Data)
	}
}

func TestDefinition_NonObjectData(t *testing.T) {
	d := cron.Definition[[]int]{Name: "bad", Schedule: "@daily", Route: "x", Data: []int{1}}
	if _, err := d.Entry(); err == nil {
		t.Fatal("expected error for non-object data")
	}
}
