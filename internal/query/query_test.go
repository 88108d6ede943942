package query

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("SELECT id, name FROM reports WHERE status = 'completed'"))

	// Forbidden keywords inside identifiers are fine.
	assert.NoError(t, Validate("SELECT created_at, updated_at FROM reports"))
	assert.NoError(t, Validate("SELECT creator FROM report_definitions"))

	assert.ErrorIs(t, Validate("DELETE FROM reports"), ErrForbiddenQuery)
	assert.ErrorIs(t, Validate("select 1; drop table reports"), ErrForbiddenQuery)
	assert.ErrorIs(t, Validate("UPDATE reports SET status = 'x'"), ErrForbiddenQuery)
}

func TestBindPostgres(t *testing.T) {
	stmt, args, err := Bind(
		"SELECT * FROM reports WHERE created_by = @user AND status = @status AND updated_by = @user",
		map[string]any{"user": "alice", "status": "completed"},
		"postgres",
	)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM reports WHERE created_by = $1 AND status = $2 AND updated_by = $3", stmt)
	assert.Equal(t, []any{"alice", "completed", "alice"}, args)
}

func TestBindSQLite(t *testing.T) {
	stmt, args, err := Bind("SELECT * FROM reports WHERE id = @id", map[string]any{"id": 7}, "sqlite")
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM reports WHERE id = ?", stmt)
	assert.Equal(t, []any{7}, args)
}

func TestBindMissingParameter(t *testing.T) {
	_, _, err := Bind("SELECT * FROM reports WHERE id = @id", nil, "sqlite")
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestExecute(t *testing.T) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO items (label) VALUES ('first'), ('second')`)
	require.NoError(t, err)

	executor := NewExecutorFromDB(db, "sqlite")

	rows, err := executor.Execute(context.Background(), "SELECT id, label FROM items WHERE label = @label", map[string]any{"label": "second"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "second", fmt.Sprintf("%s", rows[0]["label"]))
}

func TestExecuteRejectsForbiddenQuery(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()

	executor := NewExecutorFromDB(db, "sqlite")

	_, err = executor.Execute(context.Background(), "DROP TABLE items", nil)
	assert.ErrorIs(t, err, ErrForbiddenQuery)
}
