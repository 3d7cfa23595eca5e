// Package sqlstore is a relational queue backend built on bun. It runs on
// PostgreSQL and SQLite.
//
// Each job is one row {id, status, timestamp, payload}. Claim runs in a
// transaction that selects the next READY row and flips it to ACTIVE with a
// conditional update filtered on both id and status. If the update touches
// no row another consumer won the race; the transaction rolls back and
// Claim reports empty instead of retrying.
//
//	db := bun.NewDB(sqldb, pgdialect.New())
//	s := sqlstore.New(db, sqlstore.WithOrder(sqlstore.OrderOldestFirst))
//	if err := s.Migrate(ctx); err != nil { ... }
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/queue"
)

var _ queue.Backend = (*Store)(nil)

// Row status values.
const (
	StatusReady   = 0
	StatusActive  = 1
	StatusDeleted = 2
)

// DefaultTable is the table used when WithTable is not given.
const DefaultTable = "taskq_jobs"

// Order selects which READY row Claim takes.
type Order int

const (
	// OrderNewestFirst claims the most recently inserted row.
	OrderNewestFirst Order = iota
	// OrderOldestFirst claims the earliest inserted row (FIFO).
	OrderOldestFirst
)

func (o Order) String() string {
	if o == OrderOldestFirst {
		return "oldest"
	}
	return "newest"
}

// ParseOrder maps "newest" or "oldest" to an Order. The empty string is
// OrderNewestFirst.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "newest":
		return OrderNewestFirst, nil
	case "oldest":
		return OrderOldestFirst, nil
	default:
		return 0, fmt.Errorf("taskq/sql: unknown order %q", s)
	}
}

// errLostRace aborts a claim transaction whose conditional update matched
// nothing.
var errLostRace = errors.New("taskq/sql: claim lost race")

// Store is a bun-backed queue backend. The caller owns the *bun.DB.
type Store struct {
	db         *bun.DB
	table      string
	order      Order
	hardDelete bool
	logger     *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithTable sets the table name.
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// WithOrder sets the claim order.
func WithOrder(o Order) Option {
	return func(s *Store) { s.order = o }
}

// WithHardDelete selects between deleting rows (true, the default) and
// marking them DELETED.
func WithHardDelete(hard bool) Option {
	return func(s *Store) { s.hardDelete = hard }
}

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New creates a Store over db.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:         db,
		table:      DefaultTable,
		order:      OrderNewestFirst,
		hardDelete: true,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *bun.DB.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the queue table and its status index if they do not
// exist.
func (s *Store) Migrate(ctx context.Context) error {
	var ddl string
	switch s.db.Dialect().Name() {
	case dialect.PG:
		ddl = `CREATE TABLE IF NOT EXISTS ? (
			id BIGSERIAL PRIMARY KEY,
			status SMALLINT NOT NULL DEFAULT 0,
			"timestamp" BIGINT NOT NULL,
			payload BYTEA NOT NULL
		)`
	case dialect.SQLite:
		ddl = `CREATE TABLE IF NOT EXISTS ? (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			status INTEGER NOT NULL DEFAULT 0,
			"timestamp" INTEGER NOT NULL,
			payload BLOB NOT NULL
		)`
	default:
		return fmt.Errorf("taskq/sql: unsupported dialect %s", s.db.Dialect().Name())
	}

	if _, err := s.db.ExecContext(ctx, ddl, bun.Ident(s.table)); err != nil {
		return fmt.Errorf("taskq/sql: create table %s: %w", s.table, err)
	}

	index := s.table + "_status_idx"
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS ? ON ? (status, id)`,
		bun.Ident(index), bun.Ident(s.table)); err != nil {
		return fmt.Errorf("taskq/sql: create index %s: %w", index, err)
	}

	s.logger.Debug("queue table ready", slog.String("table", s.table))
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert adds a READY row and returns its id.
func (s *Store) Insert(ctx context.Context, payload []byte) (string, error) {
	var rowID int64
	err := s.db.NewRaw(`INSERT INTO ? (status, "timestamp", payload) VALUES (?, ?, ?) RETURNING id`,
		bun.Ident(s.table), StatusReady, time.Now().Unix(), payload,
	).Scan(ctx, &rowID)
	if err != nil {
		return "", fmt.Errorf("taskq/sql: insert: %w", err)
	}
	return strconv.FormatInt(rowID, 10), nil
}

// Claim flips the next READY row to ACTIVE inside a transaction.
func (s *Store) Claim(ctx context.Context) (*queue.Message, error) {
	var m *queue.Message

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var (
			rowID   int64
			ts      int64
			payload []byte
		)
		err := tx.NewRaw(`SELECT id, "timestamp", payload FROM ? WHERE status = ? ORDER BY id `+s.direction()+` LIMIT 1`,
			bun.Ident(s.table), StatusReady,
		).Scan(ctx, &rowID, &ts, &payload)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			TableExpr("?", bun.Ident(s.table)).
			Set("status = ?", StatusActive).
			Where("id = ?", rowID).
			Where("status = ?", StatusReady).
			Exec(ctx)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n != 1 {
			return errLostRace
		}

		m = &queue.Message{
			ID:      strconv.FormatInt(rowID, 10),
			Payload: payload,
			Header:  job.Header{job.HeaderTimestamp: strconv.FormatInt(ts, 10)},
		}
		return nil
	})
	if errors.Is(err, errLostRace) {
		s.logger.Debug("claim lost race", slog.String("table", s.table))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("taskq/sql: claim: %w", err)
	}
	return m, nil
}

// Remove deletes the row, or marks it DELETED when hard delete is off.
func (s *Store) Remove(ctx context.Context, m *queue.Message) error {
	rowID, err := parseID(m.ID)
	if err != nil {
		return err
	}

	if s.hardDelete {
		_, err = s.db.NewDelete().
			TableExpr("?", bun.Ident(s.table)).
			Where("id = ?", rowID).
			Exec(ctx)
	} else {
		_, err = s.db.NewUpdate().
			TableExpr("?", bun.Ident(s.table)).
			Set("status = ?", StatusDeleted).
			Where("id = ?", rowID).
			Exec(ctx)
	}
	if err != nil {
		return fmt.Errorf("taskq/sql: remove %d: %w", rowID, err)
	}
	return nil
}

// Requeue resets a claimed row to READY. Deleted rows stay deleted.
func (s *Store) Requeue(ctx context.Context, m *queue.Message) error {
	rowID, err := parseID(m.ID)
	if err != nil {
		return err
	}

	_, err = s.db.NewUpdate().
		TableExpr("?", bun.Ident(s.table)).
		Set("status = ?", StatusReady).
		Where("id = ?", rowID).
		Where("status = ?", StatusActive).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("taskq/sql: requeue %d: %w", rowID, err)
	}
	return nil
}

// Size counts READY rows.
func (s *Store) Size(ctx context.Context) (int64, error) {
	n, err := s.db.NewSelect().
		TableExpr("?", bun.Ident(s.table)).
		Where("status = ?", StatusReady).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("taskq/sql: size: %w", err)
	}
	return int64(n), nil
}

// Purge deletes every row.
func (s *Store) Purge(ctx context.Context) error {
	_, err := s.db.NewDelete().
		TableExpr("?", bun.Ident(s.table)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("taskq/sql: purge: %w", err)
	}
	return nil
}

func (s *Store) direction() string {
	if s.order == OrderOldestFirst {
		return "ASC"
	}
	return "DESC"
}

func parseID(raw string) (int64, error) {
	rowID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("taskq/sql: invalid row id %q: %w", raw, err)
	}
	return rowID, nil
}
