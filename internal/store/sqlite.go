package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/listing-match/internal/db"
	"github.com/sells-group/listing-match/internal/model"
)

// SQLiteConn implements Conn using modernc.org/sqlite. Several connections
// may share one database file; WAL and a long busy timeout serialize writers.
type SQLiteConn struct {
	db     *sql.DB
	name   string
	quoted string
}

// NewSQLite opens the database at path.
func NewSQLite(path, table string) (*SQLiteConn, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	sqlDB.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=60000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return newSQLite(sqlDB, table), nil
}

func newSQLite(sqlDB *sql.DB, table string) *SQLiteConn {
	return &SQLiteConn{db: sqlDB, name: table, quoted: db.SanitizeTable(table)}
}

// SQLiteDialer opens a new handle on the database file for each dial.
func SQLiteDialer(path, table string) Dialer {
	return func(_ context.Context) (Conn, error) {
		conn, err := NewSQLite(path, table)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Unresolved implements Conn.
func (s *SQLiteConn) Unresolved(ctx context.Context, department string, field model.Field) ([]model.CanonicalRecord, error) {
	query, args := unresolvedSQL(s.quoted, department, field, numbered)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: fetch unresolved shard %s", department)
	}
	defer rows.Close()

	var out []model.CanonicalRecord
	for rows.Next() {
		r := model.CanonicalRecord{IsActive: true}
		if err := rows.Scan(&r.ID, &r.Name, &r.PostalCode, &r.City, &r.Department); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan record in shard %s", department)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: iterate shard %s", department)
	}
	return out, nil
}

// KnownPhones implements Conn.
func (s *SQLiteConn) KnownPhones(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, knownPhonesSQL(s.quoted))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch known phones")
	}
	defer rows.Close()

	var phones []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan known phone")
		}
		phones = append(phones, p)
	}
	return phones, eris.Wrap(rows.Err(), "sqlite: iterate known phones")
}

// DepartmentForCity implements Conn.
func (s *SQLiteConn) DepartmentForCity(ctx context.Context, city string) (string, error) {
	var dept string
	err := s.db.QueryRowContext(ctx, cityDepartmentSQL(s.quoted, numbered), city).Scan(&dept)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: department for city %q", city)
	}
	return dept, nil
}

// Apply implements Conn.
func (s *SQLiteConn) Apply(ctx context.Context, r model.MatchResult) (int64, error) {
	query, args, err := applySQL(s.quoted, r, numbered)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: apply %s to %s", r.Field, r.CanonicalID)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// ApplyPhones implements Conn with a single CASE update over the chunk.
func (s *SQLiteConn) ApplyPhones(ctx context.Context, rs []model.MatchResult) (int64, error) {
	rows, err := phoneRows(rs)
	if err != nil || len(rows) == 0 {
		return 0, err
	}

	var b strings.Builder
	args := make([]any, 0, len(rows)*3)
	b.WriteString("UPDATE " + s.quoted + " SET phone = CASE id")
	for _, row := range rows {
		b.WriteString(" WHEN ? THEN ?")
		args = append(args, row[0], row[1])
	}
	b.WriteString(" END WHERE phone IS NULL AND id IN (")
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
		args = append(args, row[0])
	}
	b.WriteString(")")

	res, err := s.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: apply %d phones", len(rs))
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

// Migrate implements Conn.
func (s *SQLiteConn) Migrate(ctx context.Context) error {
	for _, stmt := range schemaSQL(s.name, "REAL") {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrap(err, "sqlite: migrate")
		}
	}
	return nil
}

// Insert adds canonical records. Used to seed local databases.
func (s *SQLiteConn) Insert(ctx context.Context, recs ...model.CanonicalRecord) error {
	query := "INSERT INTO " + s.quoted +
		" (id, name, phone, rating_average, review_count, department, postal_code, city, is_active)" +
		" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	for _, r := range recs {
		if _, err := s.db.ExecContext(ctx, query,
			r.ID, r.Name, r.Phone, r.RatingAverage, r.ReviewCount,
			nullable(r.Department), nullable(r.PostalCode), nullable(r.City), r.IsActive,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert %s", r.ID)
		}
	}
	return nil
}

// Record reads one record back by id.
func (s *SQLiteConn) Record(ctx context.Context, id string) (model.CanonicalRecord, error) {
	var (
		r            model.CanonicalRecord
		phone        sql.NullString
		rating       sql.NullFloat64
		reviews      sql.NullInt64
		dept, cp, cy sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, phone, rating_average, review_count, department, postal_code, city, is_active FROM "+s.quoted+" WHERE id = ?",
		id,
	).Scan(&r.ID, &r.Name, &phone, &rating, &reviews, &dept, &cp, &cy, &r.IsActive)
	if err != nil {
		return r, eris.Wrapf(err, "sqlite: get record %s", id)
	}
	if phone.Valid {
		r.Phone = &phone.String
	}
	if rating.Valid {
		r.RatingAverage = &rating.Float64
	}
	if reviews.Valid {
		n := int(reviews.Int64)
		r.ReviewCount = &n
	}
	r.Department, r.PostalCode, r.City = dept.String, cp.String, cy.String
	return r, nil
}

// Close implements Conn.
func (s *SQLiteConn) Close(_ context.Context) error {
	return s.db.Close()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
