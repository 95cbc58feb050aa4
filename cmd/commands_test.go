package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/listing-match/internal/model"
	"github.com/sells-group/listing-match/internal/store"
)

const listings = `{"name":"Plomberie Dupont","phone":"+33612345678","postalCode":"75001"}
{"name":"Auto Marine","phone":"0491000002","cp":"13002"}
`

// setup migrates a SQLite store through the CLI, seeds it and writes a
// listing file.
func setup(t *testing.T) (dir, dbPath string) {
	t.Helper()
	dir = t.TempDir()
	dbPath = writeConfig(t, dir, "")

	_, err := execute(t, dir, "migrate")
	require.NoError(t, err)

	st, err := store.NewSQLite(dbPath, store.DefaultTable)
	require.NoError(t, err)
	defer st.Close(context.Background()) //nolint:errcheck
	require.NoError(t, st.Insert(context.Background(),
		model.CanonicalRecord{ID: "a1", Name: "SARL Dupont Plomberie", PostalCode: "75001", Department: "75", IsActive: true},
		model.CanonicalRecord{ID: "c3", Name: "Garage du Port (Auto Marine)", PostalCode: "13002", Department: "13", IsActive: true},
	))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "listings.ndjson"), []byte(listings), 0o644))
	return dir, dbPath
}

func phoneOf(t *testing.T, dbPath, id string) *string {
	t.Helper()
	st, err := store.NewSQLite(dbPath, store.DefaultTable)
	require.NoError(t, err)
	defer st.Close(context.Background()) //nolint:errcheck
	rec, err := st.Record(context.Background(), id)
	require.NoError(t, err)
	return rec.Phone
}

func TestMatchCommand(t *testing.T) {
	dir, dbPath := setup(t)

	out, err := execute(t, dir, "match", "--listings", "listings.ndjson", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Total updated")
	assert.Equal(t, 2, cfg.Match.Workers)

	p := phoneOf(t, dbPath, "a1")
	require.NotNil(t, p)
	assert.Equal(t, "0612345678", *p)
	p = phoneOf(t, dbPath, "c3")
	require.NotNil(t, p)
	assert.Equal(t, "0491000002", *p)
}

func TestMatchCommand_DryRunThenUpload(t *testing.T) {
	dir, dbPath := setup(t)

	out, err := execute(t, dir, "match", "--listings", "listings.ndjson", "--dry-run", "--out", "matches.ndjson")
	require.NoError(t, err)
	assert.Contains(t, out, "Total exported")
	assert.Nil(t, phoneOf(t, dbPath, "a1"), "dry run leaves the store alone")

	data, err := os.ReadFile(filepath.Join(dir, "matches.ndjson"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 2)

	out, err = execute(t, dir, "upload", "matches.ndjson", "--chunk-size", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "UPDATED")

	p := phoneOf(t, dbPath, "a1")
	require.NotNil(t, p)
	assert.Equal(t, "0612345678", *p)
}

func TestMatchCommand_DryRunToStdout(t *testing.T) {
	dir, _ := setup(t)

	out, err := execute(t, dir, "match", "--listings", "listings.ndjson", "--dry-run")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2, "stdout carries only the results")
	assert.Contains(t, out, `"canonical_id":"a1"`)
}

func TestMatchCommand_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "")

	_, err := execute(t, dir, "match")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listings.files is required")
}

func TestMatchCommand_MissingListingFile(t *testing.T) {
	dir, _ := setup(t)

	_, err := execute(t, dir, "match", "--listings", "absent.ndjson")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing: open")
}

func TestUploadCommand_MissingFile(t *testing.T) {
	dir, _ := setup(t)

	_, err := execute(t, dir, "upload", "absent.ndjson")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload: open")
}

func TestUploadCommand_RequiresArg(t *testing.T) {
	dir, _ := setup(t)

	_, err := execute(t, dir, "upload")
	require.Error(t, err)
}

func TestMigrateCommand_RequiresDatabaseURL(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, dir, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestScoreCommand(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "score", "SARL Dupont Plomberie Générale", "Plomberie Dupont", "--postal", "75001", "--listing-postal", "75001")
	require.NoError(t, err)
	assert.Contains(t, out, "dupont plomberie")
	assert.Contains(t, out, "Composite")
	assert.Contains(t, out, "1.000")
	assert.Contains(t, out, "true")
}

func TestScoreCommand_Threshold(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "score", "Boulangerie Martin", "Plomberie Dupont", "--threshold", "0.5")
	require.NoError(t, err)
	assert.Contains(t, out, "0.500")
	assert.Contains(t, out, "false")
}

func TestExplainPair_CommercialName(t *testing.T) {
	e := explainPair(normalizerForTest(t), "Garage du Port (Auto Marine)", "Auto Marine", "13002", "13002", 0.15)
	assert.Equal(t, "commercial name", e.against)
	assert.Equal(t, "auto marine", e.commercial)
	assert.InDelta(t, 1.0, e.composite, 1e-9)
	assert.InDelta(t, 0.15, e.postalBonus, 1e-9)
}

func TestExplainPair_NoPostalBonus(t *testing.T) {
	e := explainPair(normalizerForTest(t), "Dupont Plomberie", "Plomberie Dupont", "75001", "", 0.15)
	assert.Equal(t, "legal name", e.against)
	assert.Zero(t, e.postalBonus)
}
