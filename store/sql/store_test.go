package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/queue"
	sqlstore "github.com/xraph/taskq/store/sql"
)

// setupSQLite opens a private in-memory SQLite database and migrates the
// queue table.
func setupSQLite(t *testing.T, opts ...sqlstore.Option) *sqlstore.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	sqldb, err := sql.Open("sqlite3", "file:"+name+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	s := sqlstore.New(db, opts...)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestMigrate_Idempotent(t *testing.T) {
	s := setupSQLite(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestClaim_Empty(t *testing.T) {
	s := setupSQLite(t)
	m, err := s.Claim(context.Background())
	if err != nil || m != nil {
		t.Fatalf("got %v, %v; want nil, nil", m, err)
	}
}

func TestClaim_Order(t *testing.T) {
	tests := []struct {
		name  string
		order sqlstore.Order
		want  []string
	}{
		{"newest first", sqlstore.OrderNewestFirst, []string{"c", "b", "a"}},
		{"oldest first", sqlstore.OrderOldestFirst, []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := setupSQLite(t, sqlstore.WithOrder(tt.order))

			for _, p := range []string{"a", "b", "c"} {
				if _, err := s.Insert(ctx, []byte(p)); err != nil {
					t.Fatalf("insert: %v", err)
				}
			}
			for _, want := range tt.want {
				m, err := s.Claim(ctx)
				if err != nil || m == nil {
					t.Fatalf("claim = %v, %v", m, err)
				}
				if string(m.Payload) != want {
					t.Errorf("got %q, want %q", m.Payload, want)
				}
				if m.Header[job.HeaderTimestamp] == "" {
					t.Error("missing timestamp header")
				}
			}
		})
	}
}

func TestRequeue_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t)

	id, _ := s.Insert(ctx, []byte("x"))
	m, _ := s.Claim(ctx)
	if m == nil || m.ID != id {
		t.Fatalf("claim = %v, want id %s", m, id)
	}
	if n, _ := s.Size(ctx); n != 0 {
		t.Fatalf("size after claim = %d, want 0", n)
	}

	if err := s.Requeue(ctx, m); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if n, _ := s.Size(ctx); n != 1 {
		t.Fatalf("size after requeue = %d, want 1", n)
	}

	again, _ := s.Claim(ctx)
	if again == nil || again.ID != id {
		t.Fatalf("reclaim = %v, want id %s", again, id)
	}
}

func TestRemove_HardDelete(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t)

	_, _ = s.Insert(ctx, []byte("x"))
	m, _ := s.Claim(ctx)
	if err := s.Remove(ctx, m); err != nil {
		t.Fatalf("remove: %v", err)
	}

	var rows int
	if err := s.DB().NewRaw("SELECT COUNT(*) FROM ?", bun.Ident(sqlstore.DefaultTable)).Scan(ctx, &rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 0 {
		t.Errorf("rows = %d, want 0", rows)
	}
}

func TestRemove_SoftDelete(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t, sqlstore.WithHardDelete(false), sqlstore.WithTable("soft_jobs"))

	_, _ = s.Insert(ctx, []byte("x"))
	m, _ := s.Claim(ctx)
	if err := s.Remove(ctx, m); err != nil {
		t.Fatalf("remove: %v", err)
	}

	rowID, _ := strconv.ParseInt(m.ID, 10, 64)
	var status int
	err := s.DB().NewRaw("SELECT status FROM ? WHERE id = ?", bun.Ident("soft_jobs"), rowID).Scan(ctx, &status)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if status != sqlstore.StatusDeleted {
		t.Errorf("status = %d, want %d", status, sqlstore.StatusDeleted)
	}
	if got, _ := s.Claim(ctx); got != nil {
		t.Errorf("deleted row claimed again: %v", got)
	}
}

func TestRequeue_DeletedRowStaysDeleted(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t, sqlstore.WithHardDelete(false))

	_, _ = s.Insert(ctx, []byte("x"))
	m, _ := s.Claim(ctx)
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

func TestClaim_LostRace(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t, sqlstore.WithTable("raced_jobs"))
	if _, err := s.Insert(ctx, []byte("x")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// The trigger skips the READY to ACTIVE update the way a competing
	// worker's commit would, so the conditional update touches no row.
	_, err := s.DB().ExecContext(ctx, fmt.Sprintf(
		`CREATE TRIGGER raced_claim BEFORE UPDATE ON raced_jobs
		 WHEN NEW.status = %d AND OLD.status = %d
		 BEGIN SELECT RAISE(IGNORE); END`,
		sqlstore.StatusActive, sqlstore.StatusReady,
	))
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	m, err := s.Claim(ctx)
	if err != nil || m != nil {
		t.Fatalf("claim = %v, %v; want nil, nil", m, err)
	}
	if n, _ := s.Size(ctx); n != 1 {
		t.Errorf("size after lost race = %d, want 1", n)
	}

	if _, err := s.DB().ExecContext(ctx, `DROP TRIGGER raced_claim`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	if m, err := s.Claim(ctx); err != nil || m == nil {
		t.Fatalf("claim after race = %v, %v; want the row", m, err)
	}
}

func TestPurge(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t)

	_, _ = s.Insert(ctx, []byte("a"))
	_, _ = s.Insert(ctx, []byte("b"))
	_, _ = s.Claim(ctx)

	if err := s.Purge(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if n, _ := s.Size(ctx); n != 0 {
		t.Errorf("size = %d, want 0", n)
	}
}

func TestRequeue_InvalidID(t *testing.T) {
	s := setupSQLite(t)
	if err := s.Requeue(context.Background(), &queue.Message{ID: "job_abc"}); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
}

func TestParseOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    sqlstore.Order
		wantErr bool
	}{
		{"", sqlstore.OrderNewestFirst, false},
		{"newest", sqlstore.OrderNewestFirst, false},
		{"oldest", sqlstore.OrderOldestFirst, false},
		{"random", 0, true},
	}
	for _, tt := range tests {
		got, err := sqlstore.ParseOrder(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseOrder(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseOrder(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestQueue_ReleaseOverSQL(t *testing.T) {
	ctx := context.Background()
	s := setupSQLite(t, sqlstore.WithOrder(sqlstore.OrderOldestFirst))

	router := job.NewRouter()
	router.Handle("flaky", func(context.Context, job.Data) (any, error) {
		return nil, errors.New("flaky")
	})
	q := queue.New(s, queue.WithRouter(router))

	if _, err := q.Post(ctx, job.New("flaky", job.Data{"n": 1})); err != nil {
		t.Fatalf("post: %v", err)
	}
	j, err := q.Fetch(ctx)
	if err != nil || j == nil {
		t.Fatalf("fetch = %v, %v", j, err)
	}
	if err := q.Run(ctx, j); err == nil {
		t.Fatal("expected run error")
	}

	again, err := q.Fetch(ctx)
	if err != nil || again == nil {
		t.Fatalf("refetch = %v, %v", again, err)
	}
	if again.ID != j.ID {
		t.Errorf("refetched id = %s, want %s", again.ID, j.ID)
	}
}
