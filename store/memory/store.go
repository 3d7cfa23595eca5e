// Package memory provides an in-process queue backend. Ready messages are
// claimed in insertion order. It is safe for concurrent use within one
// process but is not shared across processes; use it for tests, immediate
// execution and single-binary deployments.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/xraph/taskq/id"
	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/queue"
)

var _ queue.Backend = (*Store)(nil)

type entry struct {
	id       string
	payload  []byte
	inserted time.Time
}

// Store is an in-memory FIFO backend.
type Store struct {
	mu      sync.Mutex
	ready   []*entry
	claimed map[string]*entry
}

// New returns an empty Store.
func New() *Store {
	return &Store{claimed: make(map[string]*entry)}
}

// Insert appends payload to the tail.
func (s *Store) Insert(_ context.Context, payload []byte) (string, error) {
	e := &entry{
		id:       id.Job(),
		payload:  append([]byte(nil), payload...),
		inserted: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = append(s.ready, e)
	return e.id, nil
}

// Claim pops the head of the ready list.
func (s *Store) Claim(_ context.Context) (*queue.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ready) == 0 {
		return nil, nil
	}
	e := s.ready[0]
	s.ready[0] = nil
	s.ready = s.ready[1:]
	s.claimed[e.id] = e

	return &queue.Message{
		ID:      e.id,
		Payload: e.payload,
		Header: job.Header{
			job.HeaderTimestamp: strconv.FormatInt(e.inserted.Unix(), 10),
		},
	}, nil
}

// Remove forgets the message. Removing an unknown id is not an error.
func (s *Store) Remove(_ context.Context, m *queue.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.claimed[m.ID]; ok {
		delete(s.claimed, m.ID)
		return nil
	}
	for i, e := range s.ready {
		if e.id == m.ID {
			s.ready = append(s.ready[:i], s.ready[i+1:]...)
			break
		}
	}
	return nil
}

// Requeue moves a claimed message back to the tail of the ready list.
func (s *Store) Requeue(_ context.Context, m *queue.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.claimed[m.ID]
	if !ok {
		return nil
	}
	delete(s.claimed, m.ID)
	s.ready = append(s.ready, e)
	return nil
}

// Size returns the number of ready messages.
func (s *Store) Size(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.ready)), nil
}

// Claimed returns the number of messages claimed and not yet removed or
// requeued.
func (s *Store) Claimed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claimed)
}

// Purge drops every message, ready or claimed.
func (s *Store) Purge(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = nil
	s.claimed = make(map[string]*entry)
	return nil
}
