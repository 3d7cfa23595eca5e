package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/xraph/taskq/api"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/multiple"
	"github.com/xraph/taskq/queue"
	"github.com/xraph/taskq/store/memory"
)

type response struct {
	Status   string  `json:"status"`
	JobID    string  `json:"jobId"`
	Route    string  `json:"route"`
	Result   any     `json:"result"`
	Size     *int64  `json:"size"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error"`
}

type fixture struct {
	q   *queue.Queue
	srv *httptest.Server

	mu     sync.Mutex
	called []job.Data
}

func (f *fixture) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.called)
}

func newFixture(t *testing.T, backend queue.Backend) *fixture {
	t.Helper()
	f := &fixture{}

	router := job.NewRouter()
	router.Handle("greet", func(_ context.Context, data job.Data) (any, error) {
		f.mu.Lock()
		f.called = append(f.called, data)
		f.mu.Unlock()
		return "hello " + data["name"].(string), nil
	})
	router.Handle("explode", func(context.Context, job.Data) (any, error) {
		return nil, errors.New("kaboom")
	})

	f.q = queue.New(backend, queue.WithRouter(router))
	f.srv = httptest.NewServer(api.New(f.q).Handler())
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, response) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	var out response
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return res.StatusCode, out
}

func TestPostJob(t *testing.T) {
	f := newFixture(t, memory.New())

	code, res := f.do(t, http.MethodPost, "/jobs", `{"route":"greet","data":{"name":"ada"}}`)
	if code != http.StatusOK {
		t.Fatalf("got status %d, want 200 (%s)", code, res.Error)
	}
	if res.Status != "okay" || res.JobID == "" {
		t.Fatalf("got %+v, want okay with job id", res)
	}

	n, err := f.q.Size(context.Background())
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if n != 1 {
		t.Errorf("got size %d, want 1", n)
	}
	if f.calls() != 0 {
		t.Error("posting must not run the job")
	}
}

func TestPostJob_DataAsString(t *testing.T) {
	f := newFixture(t, memory.New())

	code, _ := f.do(t, http.MethodPost, "/jobs", `{"route":"greet","data":"{\"name\":\"grace\"}"}`)
	if code != http.StatusOK {
		t.Fatalf("got status %d, want 200", code)
	}

	j, err := f.q.Fetch(context.Background())
	if err != nil || j == nil {
		t.Fatalf("fetch: %v %v", j, err)
	}
	if j.Data["name"] != "grace" {
		t.Errorf("got data %v, want name=grace", j.Data)
	}
}

func TestPostJob_BadRequest(t *testing.T) {
	f := newFixture(t, memory.New())

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing route", `{"data":{}}`},
		{"data not object", `{"route":"greet","data":[1,2]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, res := f.do(t, http.MethodPost, "/jobs", tt.body)
			if code != http.StatusBadRequest {
				t.Errorf("got status %d, want 400", code)
			}
			if res.Status != "error" || res.Error == "" {
				t.Errorf("got %+v, want error envelope", res)
			}
		})
	}
}

func TestPostJob_QueueIndex(t *testing.T) {
	a, b := memory.New(), memory.New()
	backend, err := multiple.New(nil, a, b)
	if err != nil {
		t.Fatalf("multiple: %v", err)
	}
	f := newFixture(t, backend)

	code, res := f.do(t, http.MethodPost, "/jobs", `{"route":"greet","data":{"name":"x"},"queue":1}`)
	if code != http.StatusOK {
		t.Fatalf("got status %d, want 200 (%s)", code, res.Error)
	}
	if n, _ := b.Size(context.Background()); n != 1 {
		t.Errorf("got member 1 size %d, want 1", n)
	}
	if n, _ := a.Size(context.Background()); n != 0 {
		t.Errorf("got member 0 size %d, want 0", n)
	}

	code, _ = f.do(t, http.MethodPost, "/jobs", `{"route":"greet","queue":7}`)
	if code != http.StatusBadRequest {
		t.Errorf("got status %d for unknown member, want 400", code)
	}
}

func TestPostJob_QueueIndexNotComposite(t *testing.T) {
	f := newFixture(t, memory.New())

	code, _ := f.do(t, http.MethodPost, "/jobs", `{"route":"greet","queue":0}`)
	if code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400", code)
	}
}

func TestRunJob(t *testing.T) {
	f := newFixture(t, memory.New())

	code, res := f.do(t, http.MethodPost, "/jobs/run", `{"route":"greet","data":{"name":"ada"}}`)
	if code != http.StatusOK {
		t.Fatalf("got status %d, want 200 (%s)", code, res.Error)
	}
	if res.Result != "hello ada" {
		t.Errorf("got result %v, want %q", res.Result, "hello ada")
	}
	if n, _ := f.q.Size(context.Background()); n != 0 {
		t.Errorf("got size %d, want 0", n)
	}
}

func TestRunJob_Errors(t *testing.T) {
	f := newFixture(t, memory.New())

	code, res := f.do(t, http.MethodPost, "/jobs/run", `{"route":"explode"}`)
	if code != http.StatusInternalServerError {
		t.Errorf("got status %d, want 500", code)
	}
	if !strings.Contains(res.Error, "kaboom") {
		t.Errorf("got error %q, want handler error", res.Error)
	}

	code, _ = f.do(t, http.MethodPost, "/jobs/run", `{"route":"missing"}`)
	if code != http.StatusNotFound {
		t.Errorf("got status %d for unknown route, want 404", code)
	}
}

func TestWorkerRun(t *testing.T) {
	f := newFixture(t, memory.New())
	ctx := context.Background()

	code, res := f.do(t, http.MethodPost, "/worker/run", ``)
	if code != http.StatusOK || res.Status != "nojob" {
		t.Fatalf("got %d %+v, want nojob", code, res)
	}

	jobID, err := f.q.Post(ctx, job.New("greet", job.Data{"name": "ada"}))
	if err != nil {
		t.Fatalf("post: %v", err)
	}

	code, res = f.do(t, http.MethodPost, "/worker/run", ``)
	if code != http.StatusOK {
		t.Fatalf("got status %d, want 200 (%s)", code, res.Error)
	}
	if res.Status != "okay" || res.JobID != jobID || res.Route != "greet" {
		t.Errorf("got %+v, want okay for %s greet", res, jobID)
	}
	if n := f.calls(); n != 1 {
		t.Errorf("got %d handler calls, want 1", n)
	}
	if n, _ := f.q.Size(ctx); n != 0 {
		t.Errorf("got size %d, want 0", n)
	}
}

func TestWorkerRun_FailureReleases(t *testing.T) {
	f := newFixture(t, memory.New())
	ctx := context.Background()

	if _, err := f.q.Post(ctx, job.New("explode", nil)); err != nil {
		t.Fatalf("post: %v", err)
	}

	code, res := f.do(t, http.MethodPost, "/worker/run", ``)
	if code != http.StatusInternalServerError {
		t.Errorf("got status %d, want 500", code)
	}
	if res.Status != "error" || res.Route != "explode" {
		t.Errorf("got %+v, want error for explode", res)
	}
	if n, _ := f.q.Size(ctx); n != 1 {
		t.Errorf("got size %d, want 1 (released)", n)
	}
}

func TestSizeAndPurge(t *testing.T) {
	f := newFixture(t, memory.New())
	ctx := context.Background()

	for range 3 {
		if _, err := f.q.Post(ctx, job.New("greet", job.Data{"name": "x"})); err != nil {
			t.Fatalf("post: %v", err)
		}
	}

	code, res := f.do(t, http.MethodGet, "/queue/size", ``)
	if code != http.StatusOK || res.Size == nil || *res.Size != 3 {
		t.Fatalf("got %d %+v, want size 3", code, res)
	}

	code, res = f.do(t, http.MethodDelete, "/queue", ``)
	if code != http.StatusOK || res.Status != "okay" {
		t.Fatalf("got %d %+v, want okay", code, res)
	}

	_, res = f.do(t, http.MethodGet, "/queue/size", ``)
	if res.Size == nil || *res.Size != 0 {
		t.Errorf("got size %v after purge, want 0", res.Size)
	}
}
