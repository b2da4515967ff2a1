package sqlrunner

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T) *SQLiteRunner {
	t.Helper()
	r, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSQLiteRunner_ExecAndQuery(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()

	res, err := r.RunSQL(ctx, "CREATE TABLE artists (id INTEGER PRIMARY KEY, name TEXT, data BLOB)")
	require.NoError(t, err)
	assert.False(t, res.IsQuery)

	res, err = r.RunSQL(ctx, "INSERT INTO artists (name, data) VALUES ('AC/DC', x'6869'), ('Accept', NULL)")
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowsAffected)

	res, err = r.RunSQL(ctx, "  select id, name, data from artists order by id")
	require.NoError(t, err)
	assert.True(t, res.IsQuery)
	assert.Equal(t, []string{"id", "name", "data"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "AC/DC", res.Rows[0]["name"])
	assert.Equal(t, "hi", res.Rows[0]["data"])
	assert.Nil(t, res.Rows[1]["data"])
}

func TestSQLiteRunner_WithQuery(t *testing.T) {
	r := newTestRunner(t)
	res, err := r.RunSQL(context.Background(), "WITH t(x) AS (SELECT 1) SELECT x FROM t")
	require.NoError(t, err)
	assert.True(t, res.IsQuery)
	require.Len(t, res.Rows, 1)
	assert.EqualValues(t, 1, res.Rows[0]["x"])
}

func TestSQLiteRunner_EmptyResult(t *testing.T) {
	r := newTestRunner(t)
	ctx := context.Background()
	_, err := r.RunSQL(ctx, "CREATE TABLE t (x INTEGER)")
	require.NoError(t, err)

	res, err := r.RunSQL(ctx, "SELECT * FROM t")
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Equal(t, []string{"x"}, res.Columns)
}

func TestSQLiteRunner_Error(t *testing.T) {
	r := newTestRunner(t)
	_, err := r.RunSQL(context.Background(), "SELECT * FROM missing_table")
	assert.Error(t, err)

	_, err = r.RunSQL(context.Background(), "   ")
	assert.Error(t, err)
}

func TestQueryType(t *testing.T) {
	assert.Equal(t, "SELECT", QueryType("\n select 1"))
	assert.Equal(t, "", QueryType(""))
	assert.True(t, IsQuery("with x as (select 1) select * from x"))
	assert.False(t, IsQuery("UPDATE t SET x = 1"))
}
