package migrate

import (
	"database/sql"
	"io/fs"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/oxy-accounts/migrations"
)

func TestEmbeddedMigrations_Parse(t *testing.T) {
	// sql.Open does not connect; the provider only reads the embedded files here.
	db, err := sql.Open("pgx", "postgres://oxy@127.0.0.1:1/oxy?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	require.NoError(t, err)

	sources := p.ListSources()
	require.NotEmpty(t, sources)
	require.EqualValues(t, 1, sources[0].Version)
	require.Equal(t, goose.TypeSQL, sources[0].Type)
}

func TestAccountsMigration_Schema(t *testing.T) {
	body, err := fs.ReadFile(migrations.FS, "00001_accounts.sql")
	require.NoError(t, err)
	text := string(body)
	for _, want := range []string{"-- +goose Up", "-- +goose Down", "CREATE TABLE", "accounts_name_key", "credential"} {
		require.True(t, strings.Contains(text, want), "missing %q", want)
	}
}
