// Package multiple combines several backends into one. Claims go through a
// strategy.Strategy; the member index is stamped into the message header
// under job.HeaderQueueIndex so Remove and Requeue reach the same member.
package multiple

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/queue"
	"github.com/xraph/taskq/strategy"
)

var (
	_ queue.Backend  = (*Backend)(nil)
	_ queue.Targeter = (*Backend)(nil)
)

// Backend is a composite of ordered member backends.
type Backend struct {
	members  []queue.Backend
	strategy strategy.Strategy
}

// New creates a composite over members. A nil strategy selects
// strategy.NewRandom(). Members cannot be composites themselves: the header
// holds a single member index.
func New(s strategy.Strategy, members ...queue.Backend) (*Backend, error) {
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: composite queue needs at least one member", taskq.ErrInvalidConfig)
	}
	for i, m := range members {
		if _, nested := m.(*Backend); nested {
			return nil, fmt.Errorf("%w: member %d is a composite queue", taskq.ErrInvalidConfig, i)
		}
	}
	if s == nil {
		s = strategy.NewRandom()
	}
	return &Backend{members: members, strategy: s}, nil
}

// Len returns the number of members.
func (b *Backend) Len() int { return len(b.members) }

// Member returns member index.
func (b *Backend) Member(index int) (queue.Backend, error) {
	if index < 0 || index >= len(b.members) {
		return nil, fmt.Errorf("%w: index %d of %d", taskq.ErrNoSuchQueue, index, len(b.members))
	}
	return b.members[index], nil
}

// Insert posts into the first member.
func (b *Backend) Insert(ctx context.Context, payload []byte) (string, error) {
	return b.InsertTo(ctx, 0, payload)
}

// InsertTo posts into member index.
func (b *Backend) InsertTo(ctx context.Context, index int, payload []byte) (string, error) {
	m, err := b.Member(index)
	if err != nil {
		return "", err
	}
	return m.Insert(ctx, payload)
}

// Claim asks the strategy for a message and stamps its member index.
func (b *Backend) Claim(ctx context.Context) (*queue.Message, error) {
	m, index, err := b.strategy.Pick(ctx, b.members)
	if err != nil {
		return nil, fmt.Errorf("taskq/multiple: claim: %w", err)
	}
	if m == nil {
		return nil, nil
	}
	m.SetHeader(job.HeaderQueueIndex, strconv.Itoa(index))
	return m, nil
}

// Remove forwards to the member the message was claimed from.
func (b *Backend) Remove(ctx context.Context, m *queue.Message) error {
	member, err := b.owner(m)
	if err != nil {
		return err
	}
	return member.Remove(ctx, m)
}

// Requeue forwards to the member the message was claimed from.
func (b *Backend) Requeue(ctx context.Context, m *queue.Message) error {
	member, err := b.owner(m)
	if err != nil {
		return err
	}
	return member.Requeue(ctx, m)
}

// Size sums the ready count of every member.
func (b *Backend) Size(ctx context.Context) (int64, error) {
	var total int64
	for i, m := range b.members {
		n, err := m.Size(ctx)
		if err != nil {
			return 0, fmt.Errorf("taskq/multiple: size of member %d: %w", i, err)
		}
		total += n
	}
	return total, nil
}

// Purge purges every member and reports all failures.
func (b *Backend) Purge(ctx context.Context) error {
	var errs []error
	for i, m := range b.members {
		if err := m.Purge(ctx); err != nil {
			errs = append(errs, fmt.Errorf("taskq/multiple: purge member %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) owner(m *queue.Message) (queue.Backend, error) {
	raw, ok := m.Header[job.HeaderQueueIndex]
	if !ok {
		return nil, fmt.Errorf("%w: message %s", taskq.ErrMissingQueueIndex, m.ID)
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: message %s has index %q", taskq.ErrMissingQueueIndex, m.ID, raw)
	}
	return b.Member(index)
}
