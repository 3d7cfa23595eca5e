// Package redis is a list-based queue backend on go-redis.
//
// Insert RPUSHes a record {id, data} to the tail of one list; Claim LPOPs
// the head, which Redis performs atomically, so each record reaches at most
// one consumer and order is FIFO. Remove is a no-op because the pop already
// took the record out. Requeue RPUSHes the original record again.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client, redisstore.WithKey("emails"))
//	if err := s.Ping(ctx); err != nil { ... }
package redis
