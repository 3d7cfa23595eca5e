package redis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/xraph/taskq/id"
	"github.com/xraph/taskq/queue"
)

var _ queue.Backend = (*Store)(nil)

// record is the list element.
type record struct {
	ID   string `json:"id"`
	Data []byte `json:"data"`
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithKey sets the queue name; the list key is "taskq:<name>".
func WithKey(name string) Option {
	return func(s *Store) { s.key = listKey(name) }
}

// Store is a Redis list backend.
type Store struct {
	client redis.Cmdable
	key    string
	logger *slog.Logger
}

// New creates a new Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client redis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, key: listKey(DefaultList), logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() redis.Cmdable { return s.client }

// Key returns the list key.
func (s *Store) Key() string { return s.key }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Insert pushes a new record to the tail of the list.
func (s *Store) Insert(ctx context.Context, payload []byte) (string, error) {
	rec := record{ID: id.Job(), Data: payload}
	if err := s.push(ctx, rec); err != nil {
		return "", fmt.Errorf("taskq/redis: insert: %w", err)
	}
	return rec.ID, nil
}

// Claim pops the head of the list.
func (s *Store) Claim(ctx context.Context) (*queue.Message, error) {
	raw, err := s.client.LPop(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("taskq/redis: claim: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// The element is gone from the list. Log it so it can be pushed
		// back by hand, then hand the bytes up as a malformed job.
		s.logger.Error("unreadable list element popped",
			slog.String("key", s.key),
			slog.Int("bytes", len(raw)),
			slog.String("element", base64.StdEncoding.EncodeToString(preview(raw))),
			slog.Bool("truncated", len(raw) > maxLoggedElement),
			slog.String("error", err.Error()),
		)
		return &queue.Message{ID: "", Payload: raw}, nil
	}
	return &queue.Message{ID: rec.ID, Payload: rec.Data}, nil
}

// maxLoggedElement bounds how much of an unreadable element is logged.
const maxLoggedElement = 64 << 10

func preview(raw []byte) []byte {
	if len(raw) > maxLoggedElement {
		return raw[:maxLoggedElement]
	}
	return raw
}

// Remove is a no-op: Claim already removed the element.
func (s *Store) Remove(_ context.Context, _ *queue.Message) error { return nil }

// Requeue pushes the original record back to the tail.
func (s *Store) Requeue(ctx context.Context, m *queue.Message) error {
	if err := s.push(ctx, record{ID: m.ID, Data: m.Payload}); err != nil {
		return fmt.Errorf("taskq/redis: requeue %s: %w", m.ID, err)
	}
	return nil
}

// Size returns the list length.
func (s *Store) Size(ctx context.Context) (int64, error) {
	n, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("taskq/redis: size: %w", err)
	}
	return n, nil
}

// Purge deletes the list.
func (s *Store) Purge(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("taskq/redis: purge: %w", err)
	}
	return nil
}

func (s *Store) push(ctx context.Context, rec record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.key, raw).Err()
}
