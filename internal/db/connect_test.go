package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_SQLiteCreatesSchema(t *testing.T) {
	ctx := context.Background()
	dbh, err := Open(ctx, DriverSQLite, "file:schema_test?mode=memory&cache=shared")
	require.NoError(t, err)
	defer dbh.Close()

	for _, table := range []string{
		"tenants", "users", "teams", "team_members", "frameworks", "framework_levels", "framework_steps",
		"framework_substeps", "framework_behaviors", "sessions", "session_notes",
		"session_scores", "session_proficiencies", "event_log",
	} {
		var name string
		err := dbh.QueryRowContext(ctx,
			`SELECT name FROM sqlite_master WHERE type='table' AND name=$1`, table).Scan(&name)
		assert.NoError(t, err, table)
	}

	// schema creation is idempotent
	require.NoError(t, ensureSchema(ctx, dbh, DriverSQLite))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), Driver("oracle"), "")
	assert.Error(t, err)
}

func TestSplitSQL(t *testing.T) {
	stmts := splitSQL("CREATE TABLE a (x INT);\n\n  CREATE TABLE b (y INT);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT);", "CREATE TABLE b (y INT);"}, stmts)
	assert.Equal(t, "CREATE TABLE a", firstLine("\n CREATE TABLE a\n(x INT)"))
}
