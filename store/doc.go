// Package store opens queue backends from configuration.
//
// Each backend lives in its own package and implements [queue.Backend]:
//
//   - store/memory: in-process FIFO, for development and tests
//   - store/sql: bun over PostgreSQL or SQLite
//   - store/postgres: pgx-native PostgreSQL with SKIP LOCKED claims
//   - store/redis: Redis list
//   - store/mongo: MongoDB collection
//   - store/sqs: Amazon SQS queue
//
// [Open] maps a [Config] driver tag to a constructor. The "multiple"
// driver builds a composite from nested member configs:
//
//	b, closeFn, err := store.Open(ctx, store.Config{
//	    Driver:   store.DriverMultiple,
//	    Strategy: "weighted",
//	    Weights:  []int{3, 1},
//	    Members: []store.Config{
//	        {Driver: store.DriverRedis, DSN: "redis://localhost:6379/0", Name: "high"},
//	        {Driver: store.DriverRedis, DSN: "redis://localhost:6379/0", Name: "low"},
//	    },
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer closeFn()
//
// Register adds drivers.
package store
