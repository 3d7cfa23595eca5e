// Package ext defines the lifecycle hook system for taskq.
//
// Extensions are notified around every queue operation and every worker
// process the runner spawns or reaps. Each hook is a separate interface so
// extensions opt in only to the events they care about.
//
// # Implementing an Extension
//
//	type Audit struct{}
//
//	func (a *Audit) Name() string { return "audit" }
//
//	func (a *Audit) OnAfterRun(ctx context.Context, j *job.Job, _ any, err error) error {
//	    log.Printf("job %s finished: %v", j.ID, err)
//	    return nil
//	}
//
// # Vetoes
//
// Before hooks ([BeforePost], [BeforeFetch], [BeforeRun], [BeforeDelete],
// [BeforeRelease]) return an error to veto the operation. The queue then
// reports taskq.ErrVetoed without touching the backend. After hooks are
// informational; their errors are logged and never propagated.
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface.
package ext
