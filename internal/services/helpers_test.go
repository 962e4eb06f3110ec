package services

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/isdelr/microservicios/internal/database"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T, migrations ...func(*sql.DB) error) *sql.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	for _, migrate := range migrations {
		require.NoError(t, migrate(db))
	}
	return db
}
