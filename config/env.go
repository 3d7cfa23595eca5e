package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "TASKQ_"

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// FromEnv overlays TASKQ_* variables onto c. A nil lookup reads the
// process environment. Only the top-level backend is configurable this
// way; composite trees need a file.
//
//	TASKQ_LOG_LEVEL, TASKQ_LOG_FORMAT, TASKQ_SERIALIZER,
//	TASKQ_RELEASE_ON_FAILURE, TASKQ_AUDIT, TASKQ_JOB_TIMEOUT,
//	TASKQ_STORE_DRIVER, TASKQ_STORE_DSN, TASKQ_STORE_NAME,
//	TASKQ_STORE_DATABASE, TASKQ_STORE_QUEUE_URL, TASKQ_STORE_REGION,
//	TASKQ_STORE_ENDPOINT, TASKQ_MAX_PROCESSES, TASKQ_IDLE_BACKOFF,
//	TASKQ_WORKER_TIMEOUT, TASKQ_WORKER_IDLE_TIMEOUT, TASKQ_HTTP_ADDR,
//	TASKQ_EVENTS_REDIS, TASKQ_EVENTS_CHANNEL
func FromEnv(c *Config, lookup LookupFunc) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := envReader{lookup: lookup}

	e.str("LOG_LEVEL", &c.LogLevel)
	e.str("LOG_FORMAT", &c.LogFormat)
	e.str("SERIALIZER", &c.Serializer)
	e.boolean("RELEASE_ON_FAILURE", &c.ReleaseOnFailure)
	e.boolean("AUDIT", &c.Audit)
	e.duration("JOB_TIMEOUT", &c.JobTimeout)

	e.str("STORE_DRIVER", &c.Store.Driver)
	e.str("STORE_DSN", &c.Store.DSN)
	e.str("STORE_NAME", &c.Store.Name)
	e.str("STORE_DATABASE", &c.Store.Database)
	e.str("STORE_QUEUE_URL", &c.Store.QueueURL)
	e.str("STORE_REGION", &c.Store.Region)
	e.str("STORE_ENDPOINT", &c.Store.Endpoint)

	e.integer("MAX_PROCESSES", &c.Runner.MaxProcesses)
	e.str("IDLE_BACKOFF", &c.Runner.IdleBackoff)
	e.duration("WORKER_TIMEOUT", &c.Runner.Timeout)
	e.duration("WORKER_IDLE_TIMEOUT", &c.Runner.IdleTimeout)

	e.str("HTTP_ADDR", &c.HTTP.Addr)

	e.str("EVENTS_REDIS", &c.Events.Redis)
	e.str("EVENTS_CHANNEL", &c.Events.Channel)

	return e.err
}

type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(name string) (string, bool) {
	v, ok := e.lookup(EnvPrefix + name)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(name string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("taskq/config: %s%s: %w", EnvPrefix, name, err)
	}
}

func (e *envReader) str(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *envReader) boolean(name string, dst *bool) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = b
}

func (e *envReader) integer(name string, dst *int) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = n
}

func (e *envReader) duration(name string, dst *Duration) {
	v, ok := e.get(name)
	if !ok {
		return
	}
	d, err := ParseDuration(v)
	if err != nil {
		e.fail(name, err)
		return
	}
	*dst = d
}
