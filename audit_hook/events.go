package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// outcome and becomes the Action field of the audit event.
const (
	ActionJobPosted     = "job.posted"
	ActionJobFetched    = "job.fetched"
	ActionJobCompleted  = "job.completed"
	ActionJobRejected   = "job.rejected"
	ActionJobFailed     = "job.failed"
	ActionJobDeleted    = "job.deleted"
	ActionJobReleased   = "job.released"
	ActionProcessExited = "process.exited"
	ActionProcessFailed = "process.failed"
)

// Audit event categories group related actions.
const (
	CategoryJob     = "taskq.job"
	CategoryProcess = "taskq.process"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob     = "job"
	ResourceProcess = "process"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobPosted,
		ActionJobFetched,
		ActionJobCompleted,
		ActionJobRejected,
		ActionJobFailed,
		ActionJobDeleted,
		ActionJobReleased,
		ActionProcessExited,
		ActionProcessFailed,
	}
}
