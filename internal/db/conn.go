// Package db holds the pgx plumbing shared by the Postgres record store:
// the connection interface, connection setup and bulk conditional updates.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Conn is the subset of *pgx.Conn the store uses. pgxmock connections
// satisfy it in tests.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connect opens a single connection with the given runtime parameters
// (e.g. statement_timeout) applied to the session.
func Connect(ctx context.Context, dsn string, params map[string]string) (*pgx.Conn, error) {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "db: parse dsn")
	}
	for k, v := range params {
		cfg.RuntimeParams[k] = v
	}

	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrapf(err, "db: connect to %s", cfg.Host)
	}
	return conn, nil
}
