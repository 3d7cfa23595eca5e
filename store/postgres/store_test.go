//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/queue"
	pgstore "github.com/xraph/taskq/store/postgres"
)

// setupTestStore creates a Postgres container and returns a migrated Store.
func setupTestStore(t *testing.T, opts ...pgstore.Option) *pgstore.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("taskq_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	s, err := pgstore.New(ctx, connStr, opts...)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	// A second run must find everything applied.
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}
	return s
}

func TestClaim_SkipLockedAtMostOnce(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	const jobs = 30
	for i := 0; i < jobs; i++ {
		if _, err := s.Insert(ctx, []byte{byte(i)}); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]int)
	)
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				m, err := s.Claim(ctx)
				if err != nil {
					t.Errorf("claim: %v", err)
					return
				}
				if m == nil {
					return
				}
				mu.Lock()
				seen[m.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != jobs {
		t.Fatalf("claimed %d rows, want %d", len(seen), jobs)
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("row %s claimed %d times", id, n)
		}
	}
}

func TestQueue_FailingJobIsReleased(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, pgstore.WithOldestFirst(true))

	calls := 0
	router := job.NewRouter()
	router.Handle("flaky", func(context.Context, job.Data) (any, error) {
		calls++
		if calls == 1 {
			return false, nil
		}
		return true, nil
	})
	q := queue.New(s, queue.WithRouter(router))

	if _, err := q.Post(ctx, job.New("flaky", nil)); err != nil {
		t.Fatalf("post: %v", err)
	}
	for i := 0; i < 2; i++ {
		if ok, err := q.Work(ctx); !ok || err != nil {
			t.Fatalf("work #%d = %v, %v", i+1, ok, err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if n, _ := q.Size(ctx); n != 0 {
		t.Errorf("size = %d, want 0", n)
	}
}

func TestRequeue_DeletedRowStaysDeleted(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, pgstore.WithHardDelete(false))

	if _, err := s.Insert(ctx, []byte(`{"route":"late"}`)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	m, err := s.Claim(ctx)
	if err != nil || m == nil {
		t.Fatalf("claim = %v, %v", m, err)
	}
	if err := s.Remove(ctx, m); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.Requeue(ctx, m); err != nil {
		t.Fatalf("requeue: %v", err)
	}

	if n, _ := s.Size(ctx); n != 0 {
		t.Errorf("size = %d, want 0", n)
	}
	if got, _ := s.Claim(ctx); got != nil {
		t.Errorf("deleted row claimed again: %v", got)
	}
}
