package migration

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestManager_Run(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"sql/001_people.sql": {Data: []byte("CREATE TABLE people (id TEXT PRIMARY KEY);")},
		"sql/002_shifts.sql": {Data: []byte("CREATE TABLE shifts (id TEXT PRIMARY KEY, person_id TEXT REFERENCES people(id));\nCREATE INDEX idx_shifts_person ON shifts(person_id);")},
	}

	manager := NewManager(NewExecutor(db), fsys, "sql", quietLogger())
	require.NoError(t, manager.Run(ctx))

	status, err := manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "002", status.CurrentVersion)
	assert.Empty(t, status.Pending)
	require.Len(t, status.Applied, 2)

	_, err = db.ExecContext(ctx, "INSERT INTO shifts (id, person_id) VALUES ('s1', NULL)")
	require.NoError(t, err)

	require.NoError(t, manager.Run(ctx), "re-running must be a no-op")

	t.Run("new files become pending", func(t *testing.T) {
		fsys["sql/003_notes.sql"] = &fstest.MapFile{Data: []byte("ALTER TABLE shifts ADD COLUMN note TEXT;")}
		status, err := manager.Status(ctx)
		require.NoError(t, err)
		require.Len(t, status.Pending, 1)
		assert.Equal(t, "003", status.Pending[0].Version)
		require.NoError(t, manager.Run(ctx))
	})

	t.Run("edited files are detected", func(t *testing.T) {
		fsys["sql/001_people.sql"] = &fstest.MapFile{Data: []byte("CREATE TABLE people (id TEXT PRIMARY KEY, name TEXT);")}
		_, err := manager.Status(ctx)
		assert.ErrorIs(t, err, ErrChecksumMismatch)
	})
}

func TestManager_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"sql/001_ok.sql":     {Data: []byte("CREATE TABLE ok (id TEXT);")},
		"sql/002_broken.sql": {Data: []byte("CREATE TABLE half (id TEXT);\nINSERT INTO missing VALUES (1);")},
	}

	manager := NewManager(NewExecutor(db), fsys, "sql", quietLogger())
	err := manager.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMigrationFailed)

	status, err := manager.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "001", status.CurrentVersion)
	require.Len(t, status.Pending, 1)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'half'").Scan(&count))
	assert.Zero(t, count)
}
