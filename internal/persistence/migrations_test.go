package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644))
}

func TestPendingMigrationsOrderedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0002_assignments.sql")
	writeMigration(t, dir, "0001_init.sql")
	writeMigration(t, dir, "README.md")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))

	pending, err := pendingMigrations(dir, map[string]bool{})
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_assignments.sql"}, pending)
}

func TestPendingMigrationsSkipsApplied(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "0001_init.sql")
	writeMigration(t, dir, "0002_assignments.sql")

	pending, err := pendingMigrations(dir, map[string]bool{"0001_init.sql": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"0002_assignments.sql"}, pending)
}

func TestPendingMigrationsMissingDir(t *testing.T) {
	_, err := pendingMigrations(filepath.Join(t.TempDir(), "absent"), nil)
	assert.Error(t, err)
}
