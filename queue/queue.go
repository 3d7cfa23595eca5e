package queue

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/codec"
	"github.com/xraph/taskq/ext"
	"github.com/xraph/taskq/id"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/middleware"
)

// Queue orchestrates the job lifecycle over a Backend. It is safe for
// concurrent use when its backend is.
type Queue struct {
	backend          Backend
	codec            codec.Codec
	router           job.Dispatcher
	tasks            job.TaskCodec
	extensions       *ext.Registry
	pending          []ext.Extension
	mws              []middleware.Middleware
	chain            middleware.Middleware
	logger           *slog.Logger
	releaseOnFailure bool
	immediate        bool
}

// New creates a Queue over backend.
func New(backend Backend, opts ...Option) *Queue {
	q := &Queue{
		backend:          backend,
		codec:            codec.JSON{},
		tasks:            job.NewTaskRegistry(),
		logger:           slog.Default(),
		releaseOnFailure: true,
	}
	for _, opt := range opts {
		opt(q)
	}

	q.extensions = ext.NewRegistry(q.logger)
	for _, e := range q.pending {
		q.extensions.Register(e)
	}
	q.pending = nil
	q.chain = middleware.Chain(q.mws...)
	return q
}

// NewImmediate creates a queue without storage. Post runs the job at once;
// Fetch always reports empty and Size is always zero.
func NewImmediate(opts ...Option) *Queue {
	q := New(discard{}, opts...)
	q.immediate = true
	return q
}

// Backend returns the underlying backend.
func (q *Queue) Backend() Backend { return q.backend }

// Extensions returns the queue's extension registry.
func (q *Queue) Extensions() *ext.Registry { return q.extensions }

// ──────────────────────────────────────────────────
// Producer operations
// ──────────────────────────────────────────────────

// Post enqueues j and returns the backend id, which is also stored in j.ID.
// On an immediate queue the job runs before Post returns.
func (q *Queue) Post(ctx context.Context, j *job.Job) (string, error) {
	return q.post(ctx, j, -1)
}

// PostToQueue enqueues j into member index of a composite backend.
func (q *Queue) PostToQueue(ctx context.Context, j *job.Job, index int) (string, error) {
	t, ok := q.backend.(Targeter)
	if !ok {
		return "", taskq.ErrNotComposite
	}
	if index < 0 || index >= t.Len() {
		return "", fmt.Errorf("%w: index %d of %d", taskq.ErrNoSuchQueue, index, t.Len())
	}
	return q.post(ctx, j, index)
}

func (q *Queue) post(ctx context.Context, j *job.Job, index int) (string, error) {
	if err := q.extensions.BeforePost(ctx, j); err != nil {
		return "", err
	}

	if q.immediate {
		j.ID = id.Job()
		if err := q.Run(ctx, j); err != nil {
			return "", err
		}
		q.extensions.EmitAfterPost(ctx, j)
		return j.ID, nil
	}

	payload, err := q.pack(j)
	if err != nil {
		return "", err
	}

	var jobID string
	if index >= 0 {
		jobID, err = q.backend.(Targeter).InsertTo(ctx, index, payload)
	} else {
		jobID, err = q.backend.Insert(ctx, payload)
	}
	if err != nil {
		return "", fmt.Errorf("taskq: post %s: %w", j.Label(), err)
	}

	j.ID = jobID
	if index >= 0 {
		j.SetHeader(job.HeaderQueueIndex, strconv.Itoa(index))
	}
	q.extensions.EmitAfterPost(ctx, j)

	q.logger.Debug("job posted",
		slog.String("job_id", j.ID),
		slog.String("job", j.Label()),
	)
	return jobID, nil
}

// ──────────────────────────────────────────────────
// Consumer operations
// ──────────────────────────────────────────────────

// Fetch claims the next job. It returns nil, nil when there is nothing to
// do. A payload that cannot be decoded yields an error wrapping
// taskq.ErrMalformedPayload; the message stays claimed.
func (q *Queue) Fetch(ctx context.Context) (*job.Job, error) {
	if err := q.extensions.BeforeFetch(ctx); err != nil {
		return nil, err
	}

	m, err := q.backend.Claim(ctx)
	if err != nil {
		return nil, fmt.Errorf("taskq: fetch: %w", err)
	}
	if m == nil {
		return nil, nil
	}

	j, err := q.unpack(m)
	if err != nil {
		q.logger.Error("claimed payload is unreadable",
			slog.String("job_id", m.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	q.extensions.EmitAfterFetch(ctx, j)
	return j, nil
}

// Delete retires a fetched job.
func (q *Queue) Delete(ctx context.Context, j *job.Job) error {
	if err := q.extensions.BeforeDelete(ctx, j); err != nil {
		return err
	}
	if err := q.backend.Remove(ctx, messageOf(j)); err != nil {
		return fmt.Errorf("taskq: delete %s: %w", j.ID, err)
	}
	q.extensions.EmitAfterDelete(ctx, j)
	return nil
}

// Release makes a fetched job claimable again.
func (q *Queue) Release(ctx context.Context, j *job.Job) error {
	if err := q.extensions.BeforeRelease(ctx, j); err != nil {
		return err
	}
	if err := q.backend.Requeue(ctx, messageOf(j)); err != nil {
		return fmt.Errorf("taskq: release %s: %w", j.ID, err)
	}
	q.extensions.EmitAfterRelease(ctx, j)
	return nil
}

// Work fetches one job and runs it. It reports whether a job was found.
func (q *Queue) Work(ctx context.Context) (bool, error) {
	j, err := q.Fetch(ctx)
	if err != nil {
		return false, err
	}
	if j == nil {
		return false, nil
	}
	return true, q.Run(ctx, j)
}

// Peek claims up to n jobs and releases them again, returning what it saw.
func (q *Queue) Peek(ctx context.Context, n int) ([]*job.Job, error) {
	var seen []*job.Job
	for len(seen) < n {
		j, err := q.Fetch(ctx)
		if err != nil {
			q.releaseAll(ctx, seen)
			return seen, err
		}
		if j == nil {
			break
		}
		seen = append(seen, j)
	}
	return seen, q.releaseAll(ctx, seen)
}

func (q *Queue) releaseAll(ctx context.Context, jobs []*job.Job) error {
	var first error
	for _, j := range jobs {
		if err := q.Release(ctx, j); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ──────────────────────────────────────────────────
// Operational
// ──────────────────────────────────────────────────

// Size returns the number of ready jobs.
func (q *Queue) Size(ctx context.Context) (int64, error) {
	n, err := q.backend.Size(ctx)
	if err != nil {
		return 0, fmt.Errorf("taskq: size: %w", err)
	}
	return n, nil
}

// Purge drops every job in the backend.
func (q *Queue) Purge(ctx context.Context) error {
	if err := q.backend.Purge(ctx); err != nil {
		return fmt.Errorf("taskq: purge: %w", err)
	}
	q.logger.Info("queue purged")
	return nil
}

// messageOf rebuilds the backend message for a fetched job.
func messageOf(j *job.Job) *Message {
	payload := j.Raw
	if payload == nil {
		if s := j.Header[job.HeaderSerialized]; s != "" {
			payload, _ = base64.StdEncoding.DecodeString(s)
		}
	}
	return &Message{ID: j.ID, Payload: payload, Header: j.Header}
}
