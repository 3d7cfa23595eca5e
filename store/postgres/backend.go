package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/xraph/taskq/job"
	"github.com/xraph/taskq/queue"
)

// Insert adds a READY row and returns its id.
func (s *Store) Insert(ctx context.Context, payload []byte) (string, error) {
	var rowID int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO taskq_jobs (status, "timestamp", payload) VALUES ($1, $2, $3) RETURNING id`,
		statusReady, time.Now().Unix(), payload,
	).Scan(&rowID)
	if err != nil {
		return "", fmt.Errorf("taskq/postgres: insert: %w", err)
	}
	return strconv.FormatInt(rowID, 10), nil
}

// Claim flips the next unlocked READY row to ACTIVE.
func (s *Store) Claim(ctx context.Context) (*queue.Message, error) {
	dir := "DESC"
	if s.oldest {
		dir = "ASC"
	}

	var (
		rowID   int64
		ts      int64
		payload []byte
	)
	err := s.pool.QueryRow(ctx, `
		UPDATE taskq_jobs SET status = $1
		WHERE id = (
			SELECT id FROM taskq_jobs
			WHERE status = $2
			ORDER BY id `+dir+`
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, "timestamp", payload`,
		statusActive, statusReady,
	).Scan(&rowID, &ts, &payload)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		if isUndefinedTable(err) {
			return nil, fmt.Errorf("taskq/postgres: claim: table missing, run Migrate: %w", err)
		}
		return nil, fmt.Errorf("taskq/postgres: claim: %w", err)
	}

	return &queue.Message{
		ID:      strconv.FormatInt(rowID, 10),
		Payload: payload,
		Header:  job.Header{job.HeaderTimestamp: strconv.FormatInt(ts, 10)},
	}, nil
}

// Remove deletes the row, or marks it DELETED when hard delete is off.
func (s *Store) Remove(ctx context.Context, m *queue.Message) error {
	rowID, err := parseID(m.ID)
	if err != nil {
		return err
	}

	if s.hardDelete {
		_, err = s.pool.Exec(ctx, `DELETE FROM taskq_jobs WHERE id = $1`, rowID)
	} else {
		_, err = s.pool.Exec(ctx, `UPDATE taskq_jobs SET status = $1 WHERE id = $2`, statusDeleted, rowID)
	}
	if err != nil {
		return fmt.Errorf("taskq/postgres: remove %d: %w", rowID, err)
	}
	return nil
}

// Requeue resets the row to READY.
func (s *Store) Requeue(ctx context.Context, m *queue.Message) error {
	rowID, err := parseID(m.ID)
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, `UPDATE taskq_jobs SET status = $1 WHERE id = $2 AND status = $3`, statusReady, rowID, statusActive); err != nil {
		return fmt.Errorf("taskq/postgres: requeue %d: %w", rowID, err)
	}
	return nil
}

// Size counts READY rows.
func (s *Store) Size(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM taskq_jobs WHERE status = $1`, statusReady).Scan(&n); err != nil {
		return 0, fmt.Errorf("taskq/postgres: size: %w", err)
	}
	return n, nil
}

// Purge deletes every row.
func (s *Store) Purge(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM taskq_jobs`); err != nil {
		return fmt.Errorf("taskq/postgres: purge: %w", err)
	}
	return nil
}
