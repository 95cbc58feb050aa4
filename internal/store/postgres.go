package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-match/internal/db"
	"github.com/sells-group/listing-match/internal/model"
)

// PostgresConn implements Conn over a single pgx connection.
type PostgresConn struct {
	conn   db.Conn
	name   string // raw table name
	quoted string
}

// NewPostgres wraps an open connection.
func NewPostgres(conn db.Conn, table string) *PostgresConn {
	return &PostgresConn{conn: conn, name: table, quoted: db.SanitizeTable(table)}
}

// PostgresDialer dials with the statement timeout disabled; shard queries on
// large departments are expected to run long.
func PostgresDialer(dsn, table string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := db.Connect(ctx, dsn, map[string]string{"statement_timeout": "0"})
		if err != nil {
			return nil, eris.Wrap(err, "postgres: dial")
		}
		return NewPostgres(conn, table), nil
	}
}

// Unresolved implements Conn.
func (s *PostgresConn) Unresolved(ctx context.Context, department string, field model.Field) ([]model.CanonicalRecord, error) {
	query, args := unresolvedSQL(s.quoted, department, field, dollar)
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: fetch unresolved shard %s", department)
	}
	defer rows.Close()

	var out []model.CanonicalRecord
	for rows.Next() {
		r := model.CanonicalRecord{IsActive: true}
		if err := rows.Scan(&r.ID, &r.Name, &r.PostalCode, &r.City, &r.Department); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan record in shard %s", department)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: iterate shard %s", department)
	}
	return out, nil
}

// KnownPhones implements Conn.
func (s *PostgresConn) KnownPhones(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, knownPhonesSQL(s.quoted))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch known phones")
	}
	defer rows.Close()

	var phones []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "postgres: scan known phone")
		}
		phones = append(phones, p)
	}
	return phones, eris.Wrap(rows.Err(), "postgres: iterate known phones")
}

// DepartmentForCity implements Conn.
func (s *PostgresConn) DepartmentForCity(ctx context.Context, city string) (string, error) {
	var dept string
	err := s.conn.QueryRow(ctx, cityDepartmentSQL(s.quoted, dollar), city).Scan(&dept)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: department for city %q", city)
	}
	return dept, nil
}

// Apply implements Conn.
func (s *PostgresConn) Apply(ctx context.Context, r model.MatchResult) (int64, error) {
	query, args, err := applySQL(s.quoted, r, dollar)
	if err != nil {
		return 0, err
	}
	tag, err := s.conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: apply %s to %s", r.Field, r.CanonicalID)
	}
	return tag.RowsAffected(), nil
}

// ApplyPhones implements Conn through a COPY-staged UPDATE ... FROM.
func (s *PostgresConn) ApplyPhones(ctx context.Context, rs []model.MatchResult) (int64, error) {
	rows, err := phoneRows(rs)
	if err != nil {
		return 0, err
	}
	n, err := db.BulkUpdate(ctx, s.conn, db.UpdateConfig{
		Table:   s.name,
		Key:     "id",
		Columns: []string{"phone"},
		Guard:   "phone",
	}, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: apply %d phones", len(rs))
	}
	return n, nil
}

// Migrate implements Conn.
func (s *PostgresConn) Migrate(ctx context.Context) error {
	for _, stmt := range schemaSQL(s.name, "DOUBLE PRECISION") {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "postgres: migrate")
		}
	}
	return nil
}

// Close implements Conn.
func (s *PostgresConn) Close(ctx context.Context) error {
	return s.conn.Close(ctx)
}
