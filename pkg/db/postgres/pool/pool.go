// Package pool narrows pgxpool down to what journals and locks use,
// so that they can be tested with fakes.
package pool

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Queryer sends SQL. It is a subset of both *pgxpool.Pool and *pgxpool.Conn.
type Queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is a connection held until Release.
//
// Session-level state, like advisory locks, lives on a Conn.
type Conn interface {
	Queryer
	Release()
}

type Pool interface {
	Queryer
	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Close()
}

type pgxPool struct {
	*pgxpool.Pool
}

// Wrap adapts *pgxpool.Pool to Pool.
func Wrap(p *pgxpool.Pool) Pool {
	return pgxPool{Pool: p}
}

func (p pgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
