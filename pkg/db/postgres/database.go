package postgres

import (
	"context"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	kpool "github.com/opst/backorder/pkg/db/postgres/pool"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/utils/retry"
)

type Config struct {
	// attempts to connect before giving up
	Attempts int

	// wait before the first retry. It doubles for each retry.
	Backoff time.Duration

	Logger *log.Logger
}

func DefaultConfig() Config {
	return Config{
		Attempts: 5,
		Backoff:  500 * time.Millisecond,
		Logger:   log.Default(),
	}
}

type Option func(*Config) *Config

func WithAttempts(n int, backoff time.Duration) Option {
	return func(c *Config) *Config {
		c.Attempts = n
		c.Backoff = backoff
		return c
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Config) *Config {
		c.Logger = logger
		return c
	}
}

// Connect opens a connection pool to url and waits until the database answers.
func Connect(ctx context.Context, url string, options ...Option) (kpool.Pool, error) {
	c := DefaultConfig()
	for _, opt := range options {
		c = *opt(&c)
	}

	pgpool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	pool := kpool.Wrap(pgpool)

	attempt := 0
	_, err = retry.Blocking(
		ctx, retry.ExponentialBackoff(c.Backoff, 2),
		func() (struct{}, error) {
			attempt += 1
			err := pool.Ping(ctx)
			if err == nil {
				return struct{}{}, nil
			}
			if c.Attempts <= attempt {
				return struct{}{}, err
			}
			c.Logger.Printf("database is not ready (attempt %d/%d): %s", attempt, c.Attempts, err)
			return struct{}{}, retry.ErrRetry
		},
	)
	if err != nil {
		pool.Close()
		return nil, xe.Wrap(err)
	}
	return pool, nil
}
