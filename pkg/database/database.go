package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/godilite/insighter/pkg/retry"
)

type Options struct {
	Driver          string
	DataSource      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	Init            []InitFunc
}

// InitFunc runs once against a freshly connected pool, e.g. to apply
// migrations.
type InitFunc func(db *sql.DB) error

type Option func(*Options)

func WithDriver(driver string) Option {
	return func(o *Options) { o.Driver = driver }
}

func WithDataSource(dsn string) Option {
	return func(o *Options) { o.DataSource = dsn }
}

func WithMaxOpenConns(count int) Option {
	return func(o *Options) { o.MaxOpenConns = count }
}

func WithMaxIdleConns(count int) Option {
	return func(o *Options) { o.MaxIdleConns = count }
}

func WithConnMaxLifetime(duration time.Duration) Option {
	return func(o *Options) { o.ConnMaxLifetime = duration }
}

func WithConnMaxIdleTime(duration time.Duration) Option {
	return func(o *Options) { o.ConnMaxIdleTime = duration }
}

func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *Options) {
		o.RetryAttempts = attempts
		o.RetryDelay = delay
	}
}

// WithInit registers fn to run after the first successful ping.
func WithInit(fn InitFunc) Option {
	return func(o *Options) { o.Init = append(o.Init, fn) }
}

// New opens a connection pool, retrying the ping with exponential backoff,
// then runs the registered init functions.
func New(opts ...Option) (*sql.DB, error) {
	options := &Options{
		Driver:          "sqlite3",
		DataSource:      ":memory:",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
	}

	for _, opt := range opts {
		opt(options)
	}

	if options.Driver == "" {
		return nil, fmt.Errorf("database driver cannot be empty")
	}
	if options.DataSource == "" {
		return nil, fmt.Errorf("database data source cannot be empty")
	}

	policy := retry.Policy{
		MaxAttempts: options.RetryAttempts,
		BaseDelay:   options.RetryDelay,
		MaxDelay:    8 * options.RetryDelay,
	}

	db, err := retry.Do(context.Background(), policy, func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open(options.Driver, options.DataSource)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(options.MaxOpenConns)
		db.SetMaxIdleConns(options.MaxIdleConns)
		db.SetConnMaxLifetime(options.ConnMaxLifetime)
		db.SetConnMaxIdleTime(options.ConnMaxIdleTime)

		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, fn := range options.Init {
		if err := fn(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("initialize database: %w", err)
		}
	}
	return db, nil
}
