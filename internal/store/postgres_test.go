package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-match/internal/model"
)

// newMockPostgres creates a PostgresConn backed by pgxmock for unit testing.
func newMockPostgres(t *testing.T) (*PostgresConn, pgxmock.PgxConnIface) {
	t.Helper()
	mock, err := pgxmock.NewConn(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close(context.Background()) }) //nolint:errcheck

	return NewPostgres(mock, "businesses"), mock
}

var recordCols = []string{"id", "name", "postal_code", "city", "department"}

func TestPostgres_Unresolved(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "businesses" WHERE department = $1 AND is_active AND phone IS NULL ORDER BY id`)).
		WithArgs("75").
		WillReturnRows(pgxmock.NewRows(recordCols).
			AddRow("a1", "SARL Dupont Plomberie", "75001", "Paris", "75").
			AddRow("a2", "Martin Electricite", "", "", "75"))

	recs, err := s.Unresolved(context.Background(), "75", model.FieldPhone)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a1", recs[0].ID)
	assert.Equal(t, "75001", recs[0].PostalCode)
	assert.True(t, recs[0].IsActive)
	assert.Equal(t, "Martin Electricite", recs[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Unresolved_UnknownShardRating(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE (department IS NULL OR department = '') AND is_active AND rating_average IS NULL`)).
		WillReturnRows(pgxmock.NewRows(recordCols))

	recs, err := s.Unresolved(context.Background(), "??", model.FieldRating)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Unresolved_QueryError(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT id, name`).
		WithArgs("13").
		WillReturnError(errors.New("conn closed"))

	_, err := s.Unresolved(context.Background(), "13", model.FieldPhone)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch unresolved shard 13")
}

func TestPostgres_KnownPhones(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT DISTINCT phone FROM "businesses"`).
		WillReturnRows(pgxmock.NewRows([]string{"phone"}).
			AddRow("0612345678").
			AddRow("01 23 45 67 89"))

	phones, err := s.KnownPhones(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"0612345678", "01 23 45 67 89"}, phones)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_DepartmentForCity(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE lower(city) = lower($1)`)).
		WithArgs("Lyon").
		WillReturnRows(pgxmock.NewRows([]string{"department"}).AddRow("69"))

	dept, err := s.DepartmentForCity(context.Background(), "Lyon")
	require.NoError(t, err)
	assert.Equal(t, "69", dept)
}

func TestPostgres_DepartmentForCity_NotFound(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectQuery(`SELECT department FROM`).
		WithArgs("Atlantis").
		WillReturnError(pgx.ErrNoRows)

	dept, err := s.DepartmentForCity(context.Background(), "Atlantis")
	require.NoError(t, err)
	assert.Empty(t, dept)
}

func TestPostgres_ApplyPhone(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "businesses" SET phone = $2 WHERE id = $1 AND phone IS NULL`)).
		WithArgs("a1", "0612345678").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := s.Apply(context.Background(), model.MatchResult{CanonicalID: "a1", Field: model.FieldPhone, Phone: "0612345678"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyPhone_AlreadyFilled(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE "businesses" SET phone`).
		WithArgs("a1", "0612345678").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	n, err := s.Apply(context.Background(), model.MatchResult{CanonicalID: "a1", Field: model.FieldPhone, Phone: "0612345678"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestPostgres_ApplyRating(t *testing.T) {
	s, mock := newMockPostgres(t)

	rating, reviews := 4.6, 38
	mock.ExpectExec(regexp.QuoteMeta(`SET rating_average = $2, review_count = $3 WHERE id = $1 AND rating_average IS NULL`)).
		WithArgs("a1", 4.6, 38).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	n, err := s.Apply(context.Background(), model.MatchResult{
		CanonicalID: "a1", Field: model.FieldRating, RatingAverage: &rating, ReviewCount: &reviews,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Apply_ExecError(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`UPDATE`).WillReturnError(errors.New("broken pipe"))

	_, err := s.Apply(context.Background(), model.MatchResult{CanonicalID: "a1", Field: model.FieldPhone, Phone: "0612345678"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply phone to a1")
}

func TestPostgres_ApplyPhones(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_update_businesses"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_update_businesses"}, []string{"id", "phone"}).WillReturnResult(2)
	mock.ExpectExec(`UPDATE "businesses" AS t`).WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	n, err := s.ApplyPhones(context.Background(), []model.MatchResult{
		{CanonicalID: "a1", Field: model.FieldPhone, Phone: "0612345678"},
		{CanonicalID: "a2", Field: model.FieldPhone, Phone: "0698765432"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_ApplyPhones_RejectsRatingResults(t *testing.T) {
	s, mock := newMockPostgres(t)

	_, err := s.ApplyPhones(context.Background(), []model.MatchResult{{CanonicalID: "a1", Field: model.FieldRating}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a phone result")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Migrate(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "businesses"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "idx_businesses_department"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "idx_businesses_phone"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE INDEX IF NOT EXISTS "idx_businesses_city"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_Close(t *testing.T) {
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	mock.ExpectClose()

	s := NewPostgres(mock, "businesses")
	require.NoError(t, s.Close(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
