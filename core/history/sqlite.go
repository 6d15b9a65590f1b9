package history

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS schedule_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT,
	ts INTEGER,
	status TEXT,
	flights TEXT,
	record TEXT
);`

// SQLiteStore persists run records to a SQLite database.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s, err := newSQLStore(db, sqliteSchema, sq.Question)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{sqlStore: s}, nil
}
