package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const table = "schedule_runs"

// sqlStore is the database/sql backend shared by the SQLite and Postgres stores.
// Flight ids are denormalised into a ",F1,F2," column so a flight filter is a LIKE.
type sqlStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

func newSQLStore(db *sql.DB, schema string, format sq.PlaceholderFormat) (*sqlStore, error) {
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &sqlStore{db: db, builder: sq.StatementBuilder.PlaceholderFormat(format)}, nil
}

func flightColumn(r Record) string {
	return "," + strings.Join(r.Flights(), ",") + ","
}

func (s *sqlStore) Append(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	query, args, err := s.builder.Insert(table).
		Columns("run_id", "ts", "status", "flights", "record").
		Values(rec.RunID, rec.Timestamp.UnixNano(), rec.Status, flightColumn(rec), string(b)).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *sqlStore) selectFor(q Query) sq.SelectBuilder {
	sel := s.builder.Select("record").From(table)
	if !q.Start.IsZero() {
		sel = sel.Where(sq.GtOrEq{"ts": q.Start.UnixNano()})
	}
	if !q.End.IsZero() {
		sel = sel.Where(sq.LtOrEq{"ts": q.End.UnixNano()})
	}
	if q.Status != "" {
		sel = sel.Where(sq.Eq{"status": q.Status})
	}
	if q.FlightID != "" {
		sel = sel.Where(sq.Like{"flights": "%," + q.FlightID + ",%"})
	}
	if q.Limit > 0 {
		return sel.OrderBy("ts DESC", "id DESC").Limit(uint64(q.Limit))
	}
	return sel.OrderBy("ts", "id")
}

func (s *sqlStore) Query(ctx context.Context, q Query) ([]Record, error) {
	query, args, err := s.selectFor(q).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var r Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		res = append(res, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if q.Limit > 0 {
		for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
			res[i], res[j] = res[j], res[i]
		}
	}
	return res, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}
