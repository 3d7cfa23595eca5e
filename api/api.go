// Package api exposes a queue over HTTP. It lets producers without a
// native client post jobs, and lets an external trigger (a cron hitting a
// URL, a serverless invoker) run one worker cycle per request.
//
// Routes:
//
//	POST   /jobs          post {route, data, queue?}
//	POST   /jobs/run      run {route, data} now, without the backend
//	POST   /worker/run    fetch and run one job
//	GET    /queue/size    pending job count
//	DELETE /queue         purge
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/queue"
)

// API serves a single queue.
type API struct {
	q      *queue.Queue
	logger *slog.Logger
}

// Option configures the API.
type Option func(*API)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *API) { a.logger = l }
}

// New creates an API for q.
func New(q *queue.Queue, opts ...Option) *API {
	a := &API{q: q, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the assembled http.Handler.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.RegisterRoutes(mux)
	return mux
}

// RegisterRoutes registers the API routes on mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /jobs", a.postJob)
	mux.HandleFunc("POST /jobs/run", a.runJob)
	mux.HandleFunc("POST /worker/run", a.workerRun)
	mux.HandleFunc("GET /queue/size", a.size)
	mux.HandleFunc("DELETE /queue", a.purge)
}

// ──────────────────────────────────────────────────
// Responses
// ──────────────────────────────────────────────────

const (
	statusOkay  = "okay"
	statusNoJob = "nojob"
	statusError = "error"
)

// Response is the body of every reply.
type Response struct {
	Status   string  `json:"status,omitempty"`
	JobID    string  `json:"jobId,omitempty"`
	Route    string  `json:"route,omitempty"`
	Result   any     `json:"result,omitempty"`
	Size     *int64  `json:"size,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func (a *API) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.logger.Warn("api: write response", slog.String("error", err.Error()))
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error, extra Response) {
	code := statusCode(err)
	if code >= http.StatusInternalServerError {
		a.logger.Error("api request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	extra.Status = statusError
	extra.Error = err.Error()
	a.writeJSON(w, code, extra)
}

// statusCode maps taskq errors to HTTP status codes.
func statusCode(err error) int {
	var runErr *queue.RunError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, taskq.ErrInvalidJob),
		errors.Is(err, taskq.ErrNotComposite),
		errors.Is(err, taskq.ErrNoSuchQueue):
		return http.StatusBadRequest
	case errors.Is(err, taskq.ErrVetoed):
		return http.StatusConflict
	case errors.Is(err, taskq.ErrRouteNotFound):
		return http.StatusNotFound
	case errors.As(err, &runErr):
		return http.StatusInternalServerError
	case errors.Is(err, taskq.ErrMalformedPayload):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
