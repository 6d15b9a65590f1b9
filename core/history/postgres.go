package history

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS schedule_runs (
	id BIGSERIAL PRIMARY KEY,
	run_id TEXT NOT NULL,
	ts BIGINT NOT NULL,
	status TEXT NOT NULL,
	flights TEXT NOT NULL,
	record TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_schedule_runs_ts ON schedule_runs (ts);`

// PostgresStore persists run records to PostgreSQL.
type PostgresStore struct {
	*sqlStore
}

// NewPostgresStore connects using a lib/pq DSN and ensures schema.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s, err := newSQLStore(db, postgresSchema, sq.Dollar)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{sqlStore: s}, nil
}
