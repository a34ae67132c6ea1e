package journal

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) (*SQLite, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	j, err := NewSQLite(path)
	require.NoError(t, err)

	return j, path
}

func TestSQLiteSchemaCreated(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	assert.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	assert.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type='table'`)
	require.NoError(t, err)
	defer rows.Close()

	found := map[string]bool{}
	for rows.Next() {
		var name string
		assert.NoError(t, rows.Scan(&name))
		found[name] = true
	}
	assert.NoError(t, rows.Err())

	for _, table := range []string{"orders", "closes", "equity", "kills"} {
		assert.True(t, found[table], table)
	}
}

func TestSQLiteReopenKeepsRows(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	require.NoError(t, j.RecordClose(CloseRecord{ID: "C1", Time: time.Now().UTC(), Instrument: "EUR_USD", Reason: "stop_loss"}))
	require.NoError(t, j.Close())

	j2, err := NewSQLite(path)
	require.NoError(t, err)
	defer j2.Close()

	got, err := j2.GetClose("C1")
	require.NoError(t, err)
	assert.Equal(t, "stop_loss", got.Reason)
}

func TestSQLiteRecordKill(t *testing.T) {
	t.Parallel()

	j, path := newTestSQLite(t)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, j.RecordKill(KillRecord{Time: at, OK: true, Closed: 3, RealizedPL: -12.5}))
	require.NoError(t, j.Close())

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var (
		ok     bool
		closed int
		pl     float64
	)
	require.NoError(t, db.QueryRow(`SELECT ok, closed, realized_pl FROM kills`).Scan(&ok, &closed, &pl))
	assert.True(t, ok)
	assert.Equal(t, 3, closed)
	assert.Equal(t, -12.5, pl)
}
