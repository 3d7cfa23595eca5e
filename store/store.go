package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	_ "github.com/mattn/go-sqlite3"    // registers the "sqlite3" database/sql driver
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/multiple"
	"github.com/xraph/taskq/queue"
	"github.com/xraph/taskq/store/memory"
	mongostore "github.com/xraph/taskq/store/mongo"
	pgstore "github.com/xraph/taskq/store/postgres"
	redisstore "github.com/xraph/taskq/store/redis"
	sqlstore "github.com/xraph/taskq/store/sql"
	sqsstore "github.com/xraph/taskq/store/sqs"
	"github.com/xraph/taskq/strategy"
)

// CloseFunc releases the connections a backend opened.
type CloseFunc func() error

// OpenFunc builds a backend from its config.
type OpenFunc func(ctx context.Context, cfg Config, logger *slog.Logger) (queue.Backend, CloseFunc, error)

var (
	mu      sync.RWMutex
	drivers = map[string]OpenFunc{
		DriverMemory:   openMemory,
		DriverSQL:      openSQL,
		DriverPostgres: openPostgres,
		DriverRedis:    openRedis,
		DriverMongo:    openMongo,
		DriverSQS:      openSQS,
		DriverMultiple: openMultiple,
	}
)

// Register adds or replaces the constructor for a driver tag.
func Register(driver string, fn OpenFunc) {
	mu.Lock()
	defer mu.Unlock()
	drivers[driver] = fn
}

func registered(driver string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := drivers[driver]
	return ok
}

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	logger *slog.Logger
}

// WithLogger sets the logger passed to the backends.
func WithLogger(l *slog.Logger) Option {
	return func(o *openOptions) { o.logger = l }
}

// Open validates cfg and builds its backend. The returned CloseFunc is
// never nil.
func Open(ctx context.Context, cfg Config, opts ...Option) (queue.Backend, CloseFunc, error) {
	o := &openOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, noClose, err
	}
	return open(ctx, cfg, o.logger)
}

func open(ctx context.Context, cfg Config, logger *slog.Logger) (queue.Backend, CloseFunc, error) {
	mu.RLock()
	fn, ok := drivers[cfg.Driver]
	mu.RUnlock()
	if !ok {
		return nil, noClose, fmt.Errorf("%w: %q", taskq.ErrUnknownBackend, cfg.Driver)
	}

	b, closeFn, err := fn(ctx, cfg, logger.With(slog.String("backend", cfg.Driver)))
	if err != nil {
		return nil, noClose, err
	}
	if closeFn == nil {
		closeFn = noClose
	}
	return b, closeFn, nil
}

func noClose() error { return nil }

// ──────────────────────────────────────────────────
// Drivers
// ──────────────────────────────────────────────────

func openMemory(_ context.Context, _ Config, _ *slog.Logger) (queue.Backend, CloseFunc, error) {
	return memory.New(), noClose, nil
}

func openSQL(ctx context.Context, cfg Config, logger *slog.Logger) (queue.Backend, CloseFunc, error) {
	var db *bun.DB
	switch cfg.dialect() {
	case DialectPostgres:
		sqldb, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("taskq/store: open postgres: %w", err)
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open("sqlite3", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("taskq/store: open sqlite: %w", err)
		}
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	order, err := sqlstore.ParseOrder(cfg.Order)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	opts := []sqlstore.Option{
		sqlstore.WithOrder(order),
		sqlstore.WithHardDelete(!cfg.SoftDelete),
		sqlstore.WithLogger(logger),
	}
	if cfg.Name != "" {
		opts = append(opts, sqlstore.WithTable(cfg.Name))
	}
	s := sqlstore.New(db, opts...)

	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return s, db.Close, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (queue.Backend, CloseFunc, error) {
	s, err := pgstore.New(ctx, cfg.DSN,
		pgstore.WithOldestFirst(cfg.Order == "oldest"),
		pgstore.WithHardDelete(!cfg.SoftDelete),
		pgstore.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, err
		}
	}
	return s, s.Close, nil
}

func openRedis(_ context.Context, cfg Config, logger *slog.Logger) (queue.Backend, CloseFunc, error) {
	ropts, err := redis.ParseURL(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("taskq/store: parse redis url: %w", err)
	}
	client := redis.NewClient(ropts)

	opts := []redisstore.Option{redisstore.WithLogger(logger)}
	if cfg.Name != "" {
		opts = append(opts, redisstore.WithKey(cfg.Name))
	}
	return redisstore.New(client, opts...), client.Close, nil
}

func openMongo(ctx context.Context, cfg Config, logger *slog.Logger) (queue.Backend, CloseFunc, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(cfg.DSN))
	if err != nil {
		return nil, nil, fmt.Errorf("taskq/store: connect mongo: %w", err)
	}
	closeFn := func() error { return client.Disconnect(context.Background()) }

	opts := []mongostore.Option{
		mongostore.WithOldestFirst(cfg.Order == "oldest"),
		mongostore.WithHardDelete(!cfg.SoftDelete),
		mongostore.WithLogger(logger),
	}
	if cfg.Name != "" {
		opts = append(opts, mongostore.WithCollection(cfg.Name))
	}
	s := mongostore.New(client.Database(cfg.Database), opts...)

	if cfg.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = closeFn()
			return nil, nil, err
		}
	}
	return s, closeFn, nil
}

func openSQS(ctx context.Context, cfg Config, logger *slog.Logger) (queue.Backend, CloseFunc, error) {
	client, err := sqsstore.NewClient(ctx, cfg.Region, cfg.Endpoint)
	if err != nil {
		return nil, nil, err
	}
	return sqsstore.New(client, cfg.QueueURL,
		sqsstore.WithWaitTime(cfg.WaitTime),
		sqsstore.WithLogger(logger),
	), noClose, nil
}

func openMultiple(ctx context.Context, cfg Config, logger *slog.Logger) (queue.Backend, CloseFunc, error) {
	var (
		members []queue.Backend
		closers []CloseFunc
	)
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}

	for i, mc := range cfg.Members {
		b, c, err := open(ctx, mc, logger.With(slog.Int("queue_index", i)))
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("taskq/store: member %d: %w", i, err)
		}
		members = append(members, b)
		closers = append(closers, c)
	}

	s, err := newStrategy(cfg)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}

	b, err := multiple.New(s, members...)
	if err != nil {
		_ = closeAll()
		return nil, nil, err
	}
	return b, closeAll, nil
}

func newStrategy(cfg Config) (strategy.Strategy, error) {
	if cfg.Strategy == "weighted" {
		w, err := strategy.NewWeighted(cfg.Weights)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	var opts []strategy.RandomOption
	if cfg.MaxAttempts > 0 {
		opts = append(opts, strategy.WithMaxAttempts(cfg.MaxAttempts))
	}
	return strategy.NewRandom(opts...), nil
}
