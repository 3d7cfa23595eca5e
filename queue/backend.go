package queue

import (
	"context"

	"github.com/xraph/taskq/job"
)

// Message is a claimed payload with the bookkeeping the backend needs to
// remove or requeue it later.
type Message struct {
	ID      string
	Payload []byte
	Header  job.Header
}

// SetHeader sets a header value, allocating the map on first use.
func (m *Message) SetHeader(key, value string) {
	if m.Header == nil {
		m.Header = make(job.Header)
	}
	m.Header[key] = value
}

// Backend stores serialized jobs.
type Backend interface {
	// Insert appends payload and returns the backend-local id.
	Insert(ctx context.Context, payload []byte) (string, error)

	// Claim takes the next ready message. It returns nil, nil when the
	// backend is empty or the claim lost a race with another consumer.
	Claim(ctx context.Context) (*Message, error)

	// Remove retires a claimed message.
	Remove(ctx context.Context, m *Message) error

	// Requeue makes a claimed message ready again.
	Requeue(ctx context.Context, m *Message) error

	// Size returns the number of ready messages.
	Size(ctx context.Context) (int64, error)

	// Purge drops every message.
	Purge(ctx context.Context) error
}

// Targeter is implemented by composite backends that can insert into a
// specific member.
type Targeter interface {
	InsertTo(ctx context.Context, index int, payload []byte) (string, error)
	Len() int
}

// discard is the storage of an immediate queue.
type discard struct{}

var _ Backend = discard{}

func (discard) Insert(context.Context, []byte) (string, error) { return "", nil }
func (discard) Claim(context.Context) (*Message, error) { return nil, nil }
func (discard) Remove(context.Context, *Message) error { return nil }
func (discard) Requeue(context.Context, *Message) error { return nil }
func (discard) Size(context.Context) (int64, error) { return 0, nil }
func (discard) Purge(context.Context) error { return nil }
