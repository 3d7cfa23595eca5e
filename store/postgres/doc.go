// Package postgres is a PostgreSQL-only queue backend on pgx/v5.
//
// It shares the table layout of the bun-based sqlstore ({id, status,
// timestamp, payload} in taskq_jobs), so producers and consumers may mix
// the two. Claim is a single statement: the candidate row is selected
// FOR UPDATE SKIP LOCKED and flipped to ACTIVE in the same UPDATE, so
// concurrent consumers never wait on each other and never see the same row.
//
// Schema changes ship as ordered migrations recorded in taskq_migrations.
package postgres
