// Package relayhook publishes taskq lifecycle events to a pub/sub channel
// so that other services can react to jobs without polling the queue.
// Events are JSON envelopes {type, time, data}. The stock publisher is a
// Redis channel.
//
// Usage:
//
//	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	hook := relayhook.New(relayhook.RedisPublisher(rdb))
//	q := queue.New(backend, queue.WithExtension(hook))
//
// To restrict which events are emitted:
//
//	hook := relayhook.New(pub,
//	    relayhook.WithEvents(
//	        relayhook.EventJobCompleted,
//	        relayhook.EventJobFailed,
//	    ),
//	)
package relayhook
