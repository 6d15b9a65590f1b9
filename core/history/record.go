package history

import (
	"context"
	"time"

	"github.com/kilianp07/cargoplan/core/model"
)

// Record captures one optimization run and the schedule it produced.
type Record struct {
	RunID     string         `json:"run_id"`
	Timestamp time.Time      `json:"timestamp"`
	Trigger   string         `json:"trigger"`
	Status    string         `json:"status"`
	Certified bool           `json:"certified"`
	Objective float64        `json:"objective_value"`
	Changes   model.Changes  `json:"changes"`
	Schedule  model.Schedule `json:"schedule"`
}

// Flights returns the flight ids present in the recorded schedule.
func (r Record) Flights() []string {
	out := make([]string, 0, len(r.Schedule))
	for _, a := range r.Schedule {
		out = append(out, a.FlightID)
	}
	return out
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start    time.Time
	End      time.Time
	FlightID string
	Status   string
	// Limit keeps only the most recent records when positive.
	Limit int
}

// Match reports whether r passes every filter except Limit.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Status != "" && r.Status != q.Status {
		return false
	}
	if q.FlightID != "" {
		for _, id := range r.Flights() {
			if id == q.FlightID {
				return true
			}
		}
		return false
	}
	return true
}

func (q Query) trim(recs []Record) []Record {
	if q.Limit > 0 && len(recs) > q.Limit {
		return recs[len(recs)-q.Limit:]
	}
	return recs
}

// Store persists run records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
