package postgres

// migration is one ordered schema change.
type migration struct {
	name string
	sql  string
}

// migrations are applied in slice order and recorded by name.
var migrations = []migration{
	{
		name: "001_create_jobs_table",
		sql: `
			CREATE TABLE IF NOT EXISTS taskq_jobs (
				id          BIGSERIAL PRIMARY KEY,
				status      SMALLINT NOT NULL DEFAULT 0,
				"timestamp" BIGINT NOT NULL,
				payload     BYTEA NOT NULL
			)`,
	},
	{
		name: "002_create_status_index",
		sql:  `CREATE INDEX IF NOT EXISTS taskq_jobs_status_idx ON taskq_jobs (status, id)`,
	},
}
