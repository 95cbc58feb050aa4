package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpdateConfig defines a bulk conditional update.
type UpdateConfig struct {
	Table   string   // target table, optionally schema-qualified
	Key     string   // column matching rows to targets
	Columns []string // columns written; rows carry Key first, then these
	Guard   string   // rows are only touched while this column IS NULL
}

// BulkUpdate writes rows through a temp table in a single UPDATE ... FROM:
//  1. Creates a temp table shaped like the key and written columns
//  2. COPY rows into it
//  3. UPDATE target rows whose guard column is still NULL
//
// The returned count only includes rows that were actually filled.
func BulkUpdate(ctx context.Context, conn Conn, cfg UpdateConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if cfg.Key == "" {
		return 0, eris.New("db: bulk update: no key column specified")
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: bulk update: no columns specified")
	}
	if cfg.Guard == "" {
		return 0, eris.New("db: bulk update: no guard column specified")
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: bulk update: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tempTable := TempTable(cfg.Table)
	all := append([]string{cfg.Key}, cfg.Columns...)

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE %s ON COMMIT DROP AS SELECT %s FROM %s WITH NO DATA",
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(all),
		SanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: bulk update: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, all, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrapf(err, "db: bulk update: COPY into temp table for %s", cfg.Table)
	}

	sets := make([]string, len(cfg.Columns))
	for i, col := range cfg.Columns {
		c := pgx.Identifier{col}.Sanitize()
		sets[i] = fmt.Sprintf("%s = s.%s", c, c)
	}
	key := pgx.Identifier{cfg.Key}.Sanitize()

	updateSQL := fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM %s AS s WHERE t.%s = s.%s AND t.%s IS NULL",
		SanitizeTable(cfg.Table),
		strings.Join(sets, ", "),
		pgx.Identifier{tempTable}.Sanitize(),
		key, key,
		pgx.Identifier{cfg.Guard}.Sanitize(),
	)

	tag, err := tx.Exec(ctx, updateSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: bulk update: UPDATE FROM for %s", cfg.Table)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: bulk update: commit tx")
	}
	return tag.RowsAffected(), nil
}

// TempTable names the staging table used for bulk updates of table.
func TempTable(table string) string {
	return "_tmp_update_" + strings.ReplaceAll(table, ".", "_")
}

// SanitizeTable quotes an optionally schema-qualified table name.
func SanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
