package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/taskq"
)

// Driver tags understood by Open.
const (
	DriverMemory   = "memory"
	DriverSQL      = "sql"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
	DriverSQS      = "sqs"
	DriverMultiple = "multiple"
)

// SQL dialects for DriverSQL.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Config describes one backend. Fields not used by the driver are ignored.
type Config struct {
	// Driver selects the backend.
	Driver string `json:"driver" yaml:"driver"`

	// DSN is the connection string: a database DSN for sql and postgres,
	// a redis:// URL for redis, a mongodb:// URI for mongo.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty"`

	// Dialect is postgres or sqlite for the sql driver. Empty infers it
	// from the DSN.
	Dialect string `json:"dialect,omitempty" yaml:"dialect,omitempty"`

	// Name is the table (sql), collection (mongo) or list key (redis).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Database is the mongo database name.
	Database string `json:"database,omitempty" yaml:"database,omitempty"`

	// Order is newest (default) or oldest for sql, postgres and mongo.
	Order string `json:"order,omitempty" yaml:"order,omitempty"`

	// SoftDelete marks finished rows DELETED instead of removing them.
	SoftDelete bool `json:"softDelete,omitempty" yaml:"softDelete,omitempty"`

	// Migrate creates tables and indexes on open.
	Migrate bool `json:"migrate,omitempty" yaml:"migrate,omitempty"`

	// QueueURL, Region, Endpoint and WaitTime configure sqs.
	QueueURL string `json:"queueUrl,omitempty" yaml:"queueUrl,omitempty"`
	Region   string `json:"region,omitempty" yaml:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	WaitTime int32  `json:"waitTime,omitempty" yaml:"waitTime,omitempty"`

	// Strategy is random (default) or weighted for multiple.
	Strategy    string   `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Weights     []int    `json:"weights,omitempty" yaml:"weights,omitempty"`
	MaxAttempts int      `json:"maxAttempts,omitempty" yaml:"maxAttempts,omitempty"`
	Members     []Config `json:"members,omitempty" yaml:"members,omitempty"`
}

// Validate reports configuration errors that Open would fail on.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{taskq.ErrInvalidConfig}, args...)...))
	}

	switch c.Driver {
	case DriverMemory:
	case DriverSQL:
		if c.DSN == "" {
			invalid("sql driver requires dsn")
		}
		switch c.Dialect {
		case "", DialectPostgres, DialectSQLite:
		default:
			invalid("unknown sql dialect %q", c.Dialect)
		}
	case DriverPostgres, DriverRedis:
		if c.DSN == "" {
			invalid("%s driver requires dsn", c.Driver)
		}
	case DriverMongo:
		if c.DSN == "" || c.Database == "" {
			invalid("mongo driver requires dsn and database")
		}
	case DriverSQS:
		if c.QueueURL == "" {
			invalid("sqs driver requires queueUrl")
		}
	case DriverMultiple:
		if len(c.Members) == 0 {
			invalid("multiple driver requires members")
		}
		switch c.Strategy {
		case "", "random":
		case "weighted":
			if len(c.Weights) != len(c.Members) {
				invalid("weighted strategy needs %d weights, got %d", len(c.Members), len(c.Weights))
			}
		default:
			invalid("unknown strategy %q", c.Strategy)
		}
		for i, m := range c.Members {
			if m.Driver == DriverMultiple {
				invalid("member %d: composite queues cannot be nested", i)
				continue
			}
			if err := m.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("member %d: %w", i, err))
			}
		}
	case "":
		invalid("driver is required")
	default:
		if !registered(c.Driver) {
			errs = append(errs, fmt.Errorf("%w: %q", taskq.ErrUnknownBackend, c.Driver))
		}
	}

	switch c.Order {
	case "", "newest", "oldest":
	default:
		invalid("unknown order %q", c.Order)
	}

	return errors.Join(errs...)
}

func (c Config) dialect() string {
	if c.Dialect != "" {
		return c.Dialect
	}
	if strings.HasPrefix(c.DSN, "postgres://") || strings.HasPrefix(c.DSN, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}
