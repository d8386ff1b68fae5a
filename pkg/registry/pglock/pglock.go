// Package pglock provides a registry.Locker with PostgreSQL advisory locks,
// for orchestrators in separate processes sharing one registry.
package pglock

import (
	"context"
	"hash/fnv"

	kpool "github.com/opst/backorder/pkg/db/postgres/pool"
	xe "github.com/opst/backorder/pkg/errors"
	"github.com/opst/backorder/pkg/registry"
)

type locker struct {
	pool kpool.Pool
	key  int64
}

// KeyOf derives an advisory lock key from a registry root.
func KeyOf(registryRoot string) int64 {
	h := fnv.New64a()
	h.Write([]byte(registryRoot))
	return int64(h.Sum64())
}

// New returns a Locker holding the session-level advisory lock `key`.
func New(pool kpool.Pool, key int64) registry.Locker {
	return &locker{pool: pool, key: key}
}

func (l *locker) Lock(ctx context.Context) (func() error, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, xe.Wrap(err)
	}
	if _, err := conn.Exec(ctx, `select pg_advisory_lock($1)`, l.key); err != nil {
		conn.Release()
		return nil, xe.Wrap(err)
	}

	return func() error {
		defer conn.Release()
		var released bool
		if err := conn.QueryRow(
			context.Background(), `select pg_advisory_unlock($1)`, l.key,
		).Scan(&released); err != nil {
			return xe.Wrap(err)
		}
		if !released {
			return xe.New("advisory lock has been lost before unlock")
		}
		return nil
	}, nil
}
