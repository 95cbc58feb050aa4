// Package store reads unresolved canonical records and writes conditional
// enrichment updates. Every write is guarded by "target IS NULL", so applying
// the same results twice leaves the table unchanged the second time.
package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/listing-match/internal/db"
	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/shard"
)

// DefaultTable is the canonical records table.
const DefaultTable = "businesses"

// Conn is one store connection. Implementations are not safe for concurrent
// use; each worker owns its own.
type Conn interface {
	// Unresolved returns active records of one shard whose target field is
	// empty, ordered by id.
	Unresolved(ctx context.Context, department string, field model.Field) ([]model.CanonicalRecord, error)
	// KnownPhones returns every non-empty phone already stored.
	KnownPhones(ctx context.Context) ([]string, error)
	// DepartmentForCity returns the most common department of records in
	// city, or "" when none is known.
	DepartmentForCity(ctx context.Context, city string) (string, error)
	// Apply writes one result and returns the affected row count. Zero means
	// the field was already filled.
	Apply(ctx context.Context, r model.MatchResult) (int64, error)
	// ApplyPhones writes a chunk of phone results in one statement.
	ApplyPhones(ctx context.Context, rs []model.MatchResult) (int64, error)
	// Migrate creates the records table and its indexes.
	Migrate(ctx context.Context) error
	Close(ctx context.Context) error
}

// Dialer opens a fresh connection.
type Dialer func(ctx context.Context) (Conn, error)

// Options selects and configures a store backend.
type Options struct {
	Driver      string // postgres or sqlite
	DatabaseURL string // DSN, or a file path for sqlite
	Table       string
}

// NewDialer returns a Dialer for the configured driver.
func NewDialer(opts Options) (Dialer, error) {
	table := opts.Table
	if table == "" {
		table = DefaultTable
	}
	if opts.DatabaseURL == "" {
		return nil, eris.New("store: database_url is required")
	}

	switch strings.ToLower(opts.Driver) {
	case "", "postgres", "postgresql", "pgx":
		return PostgresDialer(opts.DatabaseURL, table), nil
	case "sqlite", "sqlite3":
		return SQLiteDialer(opts.DatabaseURL, table), nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", opts.Driver)
	}
}

// placeholder renders the n-th (1-based) bind parameter.
type placeholder func(n int) string

func dollar(n int) string { return "$" + strconv.Itoa(n) }

func numbered(n int) string { return "?" + strconv.Itoa(n) }

// unresolvedSQL selects the records a shard still needs. The unknown shard
// matches rows without a department.
func unresolvedSQL(table string, department string, field model.Field, ph placeholder) (string, []any) {
	where := "department = " + ph(1)
	args := []any{department}
	if department == shard.Unknown {
		where = "(department IS NULL OR department = '')"
		args = nil
	}
	return "SELECT id, name, COALESCE(postal_code, ''), COALESCE(city, ''), COALESCE(department, '') FROM " +
		table + " WHERE " + where + " AND is_active AND " + field.Column() + " IS NULL ORDER BY id", args
}

func knownPhonesSQL(table string) string {
	return "SELECT DISTINCT phone FROM " + table + " WHERE phone IS NOT NULL AND phone <> ''"
}

func cityDepartmentSQL(table string, ph placeholder) string {
	return "SELECT department FROM " + table +
		" WHERE lower(city) = lower(" + ph(1) + ") AND department IS NOT NULL AND department <> ''" +
		" GROUP BY department ORDER BY count(*) DESC, department LIMIT 1"
}

// applySQL builds the guarded single-row update for r.
func applySQL(table string, r model.MatchResult, ph placeholder) (string, []any, error) {
	switch r.Field {
	case model.FieldPhone:
		if r.Phone == "" {
			return "", nil, eris.Errorf("store: apply: result for %s has no phone", r.CanonicalID)
		}
		return "UPDATE " + table + " SET phone = " + ph(2) + " WHERE id = " + ph(1) + " AND phone IS NULL",
			[]any{r.CanonicalID, r.Phone}, nil
	case model.FieldRating:
		if r.RatingAverage == nil || r.ReviewCount == nil {
			return "", nil, eris.Errorf("store: apply: result for %s has no rating", r.CanonicalID)
		}
		sql := "UPDATE " + table + " SET rating_average = " + ph(2) + ", review_count = " + ph(3) +
			" WHERE id = " + ph(1) + " AND rating_average IS NULL"
		return sql, []any{r.CanonicalID, *r.RatingAverage, *r.ReviewCount}, nil
	default:
		return "", nil, eris.Errorf("store: apply: unknown field %q", r.Field)
	}
}

// phoneRows validates a phone chunk and flattens it to (id, phone) pairs.
func phoneRows(rs []model.MatchResult) ([][]any, error) {
	rows := make([][]any, 0, len(rs))
	for _, r := range rs {
		if r.Field != model.FieldPhone || r.Phone == "" {
			return nil, eris.Errorf("store: apply phones: %s is not a phone result", r.CanonicalID)
		}
		rows = append(rows, []any{r.CanonicalID, r.Phone})
	}
	return rows, nil
}

// schemaSQL returns the statements creating table. realType is the
// backend's double-precision type.
func schemaSQL(table, realType string) []string {
	index := func(suffix string) string {
		flat := strings.ReplaceAll(table, ".", "_")
		return pgx.Identifier{"idx_" + flat + "_" + suffix}.Sanitize()
	}
	quoted := db.SanitizeTable(table)
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + quoted + ` (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	phone          TEXT,
	rating_average ` + realType + `,
	review_count   INTEGER,
	department     TEXT,
	postal_code    TEXT,
	city           TEXT,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE
)`,
		`CREATE INDEX IF NOT EXISTS ` + index("department") + ` ON ` + quoted + ` (department)`,
		`CREATE INDEX IF NOT EXISTS ` + index("phone") + ` ON ` + quoted + ` (phone)`,
		`CREATE INDEX IF NOT EXISTS ` + index("city") + ` ON ` + quoted + ` (lower(city))`,
	}
}
