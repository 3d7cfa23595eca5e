package job

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/xraph/taskq"
)

// Kind tells how a job is executed.
type Kind int8

const (
	// KindRegular jobs name a route that a Router resolves to a handler.
	KindRegular Kind = 0
	// KindCallable jobs carry a Task that runs directly.
	KindCallable Kind = 1
)

// String returns "regular" or "callable".
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindCallable:
		return "callable"
	default:
		return fmt.Sprintf("kind(%d)", int8(k))
	}
}

// Data is the argument bag passed to a route handler or a task.
type Data map[string]any

// Header carries backend and framework bookkeeping alongside a claimed
// job. It is not part of the execution contract.
type Header map[string]string

// Header keys written by taskq.
const (
	// HeaderSignature holds the base64 task descriptor of a callable job.
	HeaderSignature = "signature"
	// HeaderSerialized holds the base64 payload as it was claimed.
	HeaderSerialized = "serialized"
	// HeaderTimestamp holds the unix time the job was inserted.
	HeaderTimestamp = "timestamp"
	// HeaderQueueIndex holds the composite member a job was claimed from.
	HeaderQueueIndex = "queue_index"
	// HeaderReceiptHandle holds a hosted queue's receipt handle.
	HeaderReceiptHandle = "receipt_handle"
	// HeaderReceiveCount holds a hosted queue's approximate receive count.
	HeaderReceiveCount = "receive_count"
)

// Job is one unit of work. ID and Header are populated by the backend on
// post or claim; ID is backend-local and stable while the job is in flight.
type Job struct {
	ID     string `json:"id,omitempty"`
	Kind   Kind   `json:"kind"`
	Route  string `json:"route,omitempty"`
	Task   Task   `json:"-"`
	Data   Data   `json:"data,omitempty"`
	Header Header `json:"header,omitempty"`

	// Raw is the serialized payload as it was claimed. Backends that
	// implement release by re-inserting (Redis) push it back verbatim.
	Raw []byte `json:"-"`
}

// New creates a regular job for route.
func New(route string, data Data) *Job {
	return &Job{Kind: KindRegular, Route: route, Data: data}
}

// NewCallable creates a callable job. Data is passed to the task's Run.
func NewCallable(t Task, data Data) *Job {
	return &Job{Kind: KindCallable, Task: t, Data: data}
}

// IsCallable reports whether the job can be invoked directly. A callable
// job whose descriptor failed to decode is not.
func (j *Job) IsCallable() bool {
	return j.Kind == KindCallable && j.Task != nil
}

// RunCallable runs the task with the job data. The result follows the
// Succeeded convention.
func (j *Job) RunCallable(ctx context.Context) (any, error) {
	if !j.IsCallable() {
		return nil, fmt.Errorf("%w: %s", taskq.ErrTaskNotExecutable, j.Label())
	}
	return j.Task.Run(ctx, j.Data)
}

// Label identifies the job in logs: the route for regular jobs, the task
// name for callable ones, or a short descriptor digest when the task could
// not be decoded.
func (j *Job) Label() string {
	if j.Kind == KindRegular {
		return j.Route
	}
	if j.Task != nil {
		if n, ok := j.Task.(interface{ TaskName() string }); ok {
			return n.TaskName()
		}
		return fmt.Sprintf("%T", j.Task)
	}
	if sig := j.Header[HeaderSignature]; sig != "" {
		sum := sha256.Sum256([]byte(sig))
		return "callable#" + hex.EncodeToString(sum[:4])
	}
	return "callable"
}

// SetHeader sets a header value, allocating the map on first use.
func (j *Job) SetHeader(key, value string) {
	if j.Header == nil {
		j.Header = make(Header)
	}
	j.Header[key] = value
}

// Succeeded reports whether a handler result means success. Only an
// explicit boolean false means failure; any other value, including nil,
// is success.
func Succeeded(result any) bool {
	b, ok := result.(bool)
	return !ok || b
}
