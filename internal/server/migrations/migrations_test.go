package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrations_Embedded(t *testing.T) {
	entries, err := fs.ReadDir(Migrations, ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	b, err := fs.ReadFile(Migrations, "00001_create_users.sql")
	require.NoError(t, err)
	require.True(t, strings.Contains(string(b), "-- +goose Up"))
	require.True(t, strings.Contains(string(b), "username"))
}
