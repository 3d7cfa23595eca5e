package relayhook

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Lifecycle event types. Each constant maps to one ext lifecycle hook
// outcome and is the Type of the published envelope.
const (
	EventJobPosted     = "taskq.job.posted"
	EventJobCompleted  = "taskq.job.completed"
	EventJobRejected   = "taskq.job.rejected"
	EventJobFailed     = "taskq.job.failed"
	EventJobReleased   = "taskq.job.released"
	EventProcessExited = "taskq.process.exited"
)

// DefaultChannel is the channel events are published to.
const DefaultChannel = "taskq:events"

// AllEvents returns every event type this extension can emit.
func AllEvents() []string {
	return []string{
		EventJobPosted,
		EventJobCompleted,
		EventJobRejected,
		EventJobFailed,
		EventJobReleased,
		EventProcessExited,
	}
}

// Event is the published envelope.
type Event struct {
	Type string    `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data"`
}

// Publisher delivers an encoded event to a channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// PublisherFunc is an adapter to use a plain function as a Publisher.
type PublisherFunc func(ctx context.Context, channel string, payload []byte) error

func (f PublisherFunc) Publish(ctx context.Context, channel string, payload []byte) error {
	return f(ctx, channel, payload)
}

// RedisPublisher publishes with the Redis PUBLISH command.
func RedisPublisher(c redis.Cmdable) Publisher {
	return PublisherFunc(func(ctx context.Context, channel string, payload []byte) error {
		return c.Publish(ctx, channel, payload).Err()
	})
}
