// Package taskq provides a job queue abstraction for Go. Producers post
// units of work (a route plus data, or a registered callable task) and
// workers claim, execute, and retire them across interchangeable storage
// backends: in-memory, relational (bun), Redis lists, MongoDB, and Amazon
// SQS.
//
// taskq is a library first. Import it, pick a backend, and hold an explicit
// *queue.Queue wherever jobs are produced or consumed.
//
// # Quick Start
//
//	router := job.NewRouter()
//	job.Register(router, job.NewDefinition("send-email",
//	    func(ctx context.Context, in Email) error { return send(ctx, in) },
//	))
//
//	q := queue.New(memory.New(), queue.WithRouter(router))
//	_, _ = q.Post(ctx, job.New("send-email", job.Data{"to": "a@b.c"}))
//
//	// In a worker process:
//	_, err := q.Work(ctx)
//
// # Architecture
//
// Every backend implements the same four primitives (insert, claim, remove,
// requeue) plus size and purge; see queue.Backend. The queue.Queue
// orchestrator adds serialization, lifecycle hooks (package ext), and the
// run/ack/release sequence. The multiple package fans out over several
// backends through a strategy, and the runner package supervises a bounded
// pool of OS worker processes, each running one claim-execute cycle.
package taskq
