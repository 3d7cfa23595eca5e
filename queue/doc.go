// Package queue is the job lifecycle orchestrator. A [Queue] packs jobs into
// envelopes, hands them to a [Backend], claims them back, runs them through
// a route dispatcher or their own task, and then deletes or releases them
// depending on the outcome.
//
// # Backends
//
// A backend implements six primitives over opaque payload bytes:
//
//	Insert(ctx, payload) (id, error)
//	Claim(ctx) (*Message, error)   // nil, nil when empty
//	Remove(ctx, msg) error
//	Requeue(ctx, msg) error
//	Size(ctx) (int64, error)
//	Purge(ctx) error
//
// Claim must hand a given message to at most one caller at a time. How
// that is achieved (conditional update, atomic pop, visibility timeout) is
// the backend's concern; see the store packages.
//
// # Lifecycle
//
// Post, Fetch, Run, Delete and Release each fire a before hook and an after
// hook through the [ext.Registry]. A before hook that returns an error
// vetoes the operation; the caller sees an error matching taskq.ErrVetoed
// and the backend is not touched.
//
// Run treats three outcomes:
//
//   - the handler returns an error (or panics under middleware.Recover):
//     the job is released and a *RunError is returned
//   - the handler returns the boolean false: the job is released and Run
//     returns nil
//   - anything else: the job is deleted
//
// # Immediate queues
//
// [NewImmediate] builds a queue with no storage: Post runs the job at once,
// Fetch is always empty and Size is always zero. It is useful in tests and
// for code paths that want queue semantics without a backend.
package queue
