package cli_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/cli"
	"github.com/xraph/taskq/job"
)

type harness struct {
	configPath string
	router     *job.Router
	env        map[string]string
	stderr     bytes.Buffer
	greeted    atomic.Int32
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
logLevel: warn
store:
  driver: sql
  dsn: file:%s
  order: oldest
  migrate: true
`, filepath.Join(dir, "jobs.db"))

	path := filepath.Join(dir, "taskq.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	h := &harness{configPath: path, router: job.NewRouter()}
	h.router.Handle("greet", func(_ context.Context, data job.Data) (any, error) {
		h.greeted.Add(1)
		return "hello " + fmt.Sprint(data["name"]), nil
	})
	h.router.Handle("refuse", func(context.Context, job.Data) (any, error) {
		return false, nil
	})
	return h
}

func (h *harness) lookup(key string) (string, bool) {
	v, ok := h.env[key]
	return v, ok
}

func (h *harness) run(ctx context.Context, args ...string) (string, error) {
	var stdout bytes.Buffer
	h.stderr.Reset()
	root := cli.New(
		cli.WithRouter(h.router),
		cli.WithOutput(&stdout, &h.stderr),
		cli.WithLookupEnv(h.lookup),
	)
	root.SetArgs(append([]string{"--config", h.configPath}, args...))
	err := root.ExecuteContext(ctx)
	return strings.TrimSpace(stdout.String()), err
}

func (h *harness) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := h.run(context.Background(), args...)
	if err != nil {
		t.Fatalf("taskq %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestPostPeekWork(t *testing.T) {
	h := newHarness(t)

	jobID := h.mustRun(t, "post", "greet", `{"name":"ada"}`)
	if jobID == "" {
		t.Fatal("post printed no job id")
	}
	if got := h.mustRun(t, "size"); got != "1" {
		t.Fatalf("got size %q, want 1", got)
	}

	peeked := h.mustRun(t, "peek", "5")
	if !strings.Contains(peeked, `"job":"greet"`) || !strings.Contains(peeked, `"name":"ada"`) {
		t.Errorf("got peek output %q", peeked)
	}
	if got := h.mustRun(t, "size"); got != "1" {
		t.Fatalf("got size %q after peek, want 1", got)
	}

	h.mustRun(t, "work")
	if n := h.greeted.Load(); n != 1 {
		t.Errorf("got %d runs, want 1", n)
	}
	if got := h.mustRun(t, "size"); got != "0" {
		t.Errorf("got size %q after work, want 0", got)
	}

	// An empty queue is not an error.
	h.mustRun(t, "work")
	if n := h.greeted.Load(); n != 1 {
		t.Errorf("got %d runs, want 1", n)
	}
}

func TestRunTask(t *testing.T) {
	h := newHarness(t)

	out := h.mustRun(t, "run-task", "greet", `{"name":"grace"}`)
	if out != `"hello grace"` {
		t.Errorf("got %q, want %q", out, `"hello grace"`)
	}
	if got := h.mustRun(t, "size"); got != "0" {
		t.Errorf("got size %q, want 0", got)
	}

	if _, err := h.run(context.Background(), "run-task", "refuse"); err == nil {
		t.Error("expected error for a job reporting failure")
	}
	_, err := h.run(context.Background(), "run-task", "missing")
	if !errors.Is(err, taskq.ErrRouteNotFound) {
		t.Errorf("got %v, want ErrRouteNotFound", err)
	}
}

func TestPost_InvalidData(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(context.Background(), "post", "greet", `[1,2]`)
	if !errors.Is(err, taskq.ErrInvalidJob) {
		t.Fatalf("got %v, want ErrInvalidJob", err)
	}
}

func TestPost_QueueIndexNeedsComposite(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(context.Background(), "post", "greet", "--queue", "0")
	if !errors.Is(err, taskq.ErrNotComposite) {
		t.Fatalf("got %v, want ErrNotComposite", err)
	}
}

func TestPurge(t *testing.T) {
	h := newHarness(t)
	for range 3 {
		h.mustRun(t, "post", "greet")
	}
	h.mustRun(t, "purge")
	if got := h.mustRun(t, "size"); got != "0" {
		t.Errorf("got size %q after purge, want 0", got)
	}
}

func TestPeek_InvalidCount(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(context.Background(), "peek", "zero")
	if !errors.Is(err, taskq.ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(context.Background(), "--driver", "bogus", "size")
	if !errors.Is(err, taskq.ErrUnknownBackend) {
		t.Fatalf("got %v, want ErrUnknownBackend", err)
	}

	_, err = h.run(context.Background(), "--log-level", "loud", "size")
	if !errors.Is(err, taskq.ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestSchedule_RequiresEntries(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(context.Background(), "schedule")
	if !errors.Is(err, taskq.ErrInvalidConfig) {
		t.Fatalf("got %v, want ErrInvalidConfig", err)
	}
}

func TestListenAndServe_StopOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.run(ctx, "--driver", "memory", "listen", "--http", "127.0.0.1:0"); err != nil {
		t.Errorf("listen: %v", err)
	}
	if _, err := h.run(ctx, "--driver", "memory", "serve", "--http", "127.0.0.1:0"); err != nil {
		t.Errorf("serve: %v", err)
	}
}

func TestAuditFromEnv(t *testing.T) {
	h := newHarness(t)
	h.env = map[string]string{"TASKQ_AUDIT": "true", "TASKQ_LOG_LEVEL": "info"}

	h.mustRun(t, "post", "greet", `{"name":"ada"}`)
	if log := h.stderr.String(); !strings.Contains(log, "action=job.posted") {
		t.Errorf("got log %q, want audit record", log)
	}
}

func TestEventsFromEnv(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub := rdb.Subscribe(ctx, "jobs-events")
	t.Cleanup(func() { _ = sub.Close() })
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	h := newHarness(t)
	h.env = map[string]string{
		"TASKQ_EVENTS_REDIS":   "redis://" + mr.Addr(),
		"TASKQ_EVENTS_CHANNEL": "jobs-events",
	}
	h.mustRun(t, "post", "greet")

	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if !strings.Contains(msg.Payload, `"taskq.job.posted"`) {
		t.Errorf("got payload %q, want posted event", msg.Payload)
	}
}

func TestWork_UntilEmpty(t *testing.T) {
	h := newHarness(t)
	for range 4 {
		h.mustRun(t, "post", "greet", `{"name":"x"}`)
	}

	h.mustRun(t, "work", "--until-empty", "--concurrency", "2")
	if n := h.greeted.Load(); n != 4 {
		t.Errorf("got %d runs, want 4", n)
	}
	if got := h.mustRun(t, "size"); got != "0" {
		t.Errorf("got size %q, want 0", got)
	}
}
