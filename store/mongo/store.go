package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/queue"
)

var _ queue.Backend = (*Store)(nil)

// DefaultCollection is the collection used when WithCollection is not given.
const DefaultCollection = "taskq_jobs"

// Document status values.
const (
	statusReady   = 0
	statusActive  = 1
	statusDeleted = 2
)

type jobDoc struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	Status    int           `bson:"status"`
	Timestamp int64         `bson:"timestamp"`
	Payload   []byte        `bson:"payload"`
}

// Store is a MongoDB queue backend. The caller owns the client lifecycle.
type Store struct {
	db         *mongod.Database
	col        *mongod.Collection
	oldest     bool
	hardDelete bool
	logger     *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCollection sets the collection name.
func WithCollection(name string) Option {
	return func(s *Store) { s.col = s.db.Collection(name) }
}

// WithOldestFirst makes Claim take the earliest READY document instead of
// the most recent one.
func WithOldestFirst(oldest bool) Option {
	return func(s *Store) { s.oldest = oldest }
}

// WithHardDelete selects between deleting documents (true, the default)
// and marking them DELETED.
func WithHardDelete(hard bool) Option {
	return func(s *Store) { s.hardDelete = hard }
}

// New creates a new MongoDB store in db.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:         db,
		col:        db.Collection(DefaultCollection),
		hardDelete: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Collection returns the underlying collection for advanced usage.
func (s *Store) Collection() *mongod.Collection {
	return s.col
}

// Migrate creates the claim index.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongod.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("taskq/mongo: migrate %s indexes: %w", s.col.Name(), err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Insert adds a READY document and returns its hex id.
func (s *Store) Insert(ctx context.Context, payload []byte) (string, error) {
	doc := jobDoc{
		ID:        bson.NewObjectID(),
		Status:    statusReady,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
	if _, err := s.col.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("taskq/mongo: insert: %w", err)
	}
	return doc.ID.Hex(), nil
}

// Claim moves the next READY document to ACTIVE.
func (s *Store) Claim(ctx context.Context) (*queue.Message, error) {
	dir := -1
	if s.oldest {
		dir = 1
	}

	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "_id", Value: dir}}).
		SetReturnDocument(options.After)

	var doc jobDoc
	err := s.col.FindOneAndUpdate(ctx,
		bson.M{"status": statusReady},
		bson.M{"$set": bson.M{"status": statusActive}},
		opts,
	).Decode(&doc)
	if errors.Is(err, mongod.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("taskq/mongo: claim: %w", err)
	}

	return &queue.Message{
		ID:      doc.ID.Hex(),
		Payload: doc.Payload,
		Header:  job.Header{job.HeaderTimestamp: strconv.FormatInt(doc.Timestamp, 10)},
	}, nil
}

// Remove deletes the document, or marks it DELETED when hard delete is off.
func (s *Store) Remove(ctx context.Context, m *queue.Message) error {
	oid, err := parseID(m.ID)
	if err != nil {
		return err
	}

	if s.hardDelete {
		_, err = s.col.DeleteOne(ctx, bson.M{"_id": oid})
	} else {
		_, err = s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"status": statusDeleted}})
	}
	if err != nil {
		return fmt.Errorf("taskq/mongo: remove %s: %w", m.ID, err)
	}
	return nil
}

// Requeue resets the document to READY.
func (s *Store) Requeue(ctx context.Context, m *queue.Message) error {
	oid, err := parseID(m.ID)
	if err != nil {
		return err
	}
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"status": statusReady}}); err != nil {
		return fmt.Errorf("taskq/mongo: requeue %s: %w", m.ID, err)
	}
	return nil
}

// Size counts READY documents.
func (s *Store) Size(ctx context.Context) (int64, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{"status": statusReady})
	if err != nil {
		return 0, fmt.Errorf("taskq/mongo: size: %w", err)
	}
	return n, nil
}

// Purge deletes every document.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.col.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("taskq/mongo: purge: %w", err)
	}
	return nil
}

func parseID(raw string) (bson.ObjectID, error) {
	oid, err := bson.ObjectIDFromHex(raw)
	if err != nil {
		return bson.ObjectID{}, fmt.Errorf("taskq/mongo: invalid id %q: %w", raw, err)
	}
	return oid, nil
}
