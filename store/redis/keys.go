package redis

// All keys are prefixed with "taskq:" to avoid collisions.
const keyPrefix = "taskq:"

// DefaultList is the list name used when WithKey is not given.
const DefaultList = "queue"

// listKey returns the list key for a queue name: taskq:{name}
func listKey(name string) string { return keyPrefix + name }
