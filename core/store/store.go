// Package store owns the in-memory dataset of one hub, persists the two
// supported mutations through a Repository and records them in an audit log.
package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/planerr"
	"github.com/kilianp07/cargoplan/infra/logger"
)

// Repository is the durable storage behind the store.
type Repository interface {
	Load(ctx context.Context) (model.Dataset, error)
	SaveCrew(ctx context.Context, crew []model.Crew) error
	SaveAircraft(ctx context.Context, aircraft []model.Aircraft) error
}

// Auditor appends one human-readable line per mutation.
type Auditor interface {
	Record(description string) error
}

// Options configure a Store.
type Options struct {
	// StrictIDs rejects mutations aimed at unknown identifiers instead of
	// accepting them as no-ops.
	StrictIDs bool
	Logger    logger.Logger
}

// Mutation describes the outcome of a mutation call.
type Mutation struct {
	Description string
	// Applied is false when the identifier was unknown and the call was a no-op.
	Applied bool
}

// Store is the Domain Data Store. It is safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	data   model.Dataset
	repo   Repository
	audit  Auditor
	strict bool
	log    logger.Logger
}

// Open loads the dataset once. Any load failure is reported as a DataLoad error.
func Open(ctx context.Context, repo Repository, audit Auditor, opts Options) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("store: repository is required")
	}
	data, err := repo.Load(ctx)
	if err != nil {
		if planerr.IsKind(err, planerr.KindDataLoad) {
			return nil, err
		}
		return nil, planerr.DataLoad("store.open", "", err)
	}
	if err := data.Validate(); err != nil {
		return nil, planerr.DataLoad("store.open", "", err)
	}
	s := &Store{data: data, repo: repo, audit: audit, strict: opts.StrictIDs, log: logger.OrNop(opts.Logger)}
	s.log.Infow("dataset loaded", map[string]any{
		"flights":  len(data.Flights),
		"aircraft": len(data.Aircraft),
		"crew":     len(data.Crew),
		"slots":    len(data.Slots),
	})
	return s, nil
}

// Snapshot returns a deep copy of the current dataset.
func (s *Store) Snapshot() model.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

// SetCrewAvailability marks a crew member on or off duty.
func (s *Store) SetCrewAvailability(ctx context.Context, crewID string, available bool) (Mutation, error) {
	const op = "store.set_crew_availability"
	desc := fmt.Sprintf("Crew %s availability changed to %t", crewID, available)
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.data.Crew {
		if c.ID == crewID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s.unknown(op, crewID, desc)
	}
	next := append([]model.Crew(nil), s.data.Crew...)
	next[idx].OnDuty = available
	if err := s.repo.SaveCrew(ctx, next); err != nil {
		return Mutation{}, fmt.Errorf("%s: persist: %w", op, err)
	}
	s.data.Crew = next
	s.record(desc)
	return Mutation{Description: desc, Applied: true}, nil
}

// SetAircraftMaintenance sets the flight hours left before maintenance.
// A value of zero or below grounds the aircraft for the next run.
func (s *Store) SetAircraftMaintenance(ctx context.Context, aircraftID string, hoursUntilDue float64) (Mutation, error) {
	const op = "store.set_aircraft_maintenance"
	desc := fmt.Sprintf("Aircraft %s maintenance due in %s hours", aircraftID, strconv.FormatFloat(hoursUntilDue, 'f', -1, 64))
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, a := range s.data.Aircraft {
		if a.ID == aircraftID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s.unknown(op, aircraftID, desc)
	}
	next := append([]model.Aircraft(nil), s.data.Aircraft...)
	next[idx].MaintenanceDue = hoursUntilDue
	if err := s.repo.SaveAircraft(ctx, next); err != nil {
		return Mutation{}, fmt.Errorf("%s: persist: %w", op, err)
	}
	s.data.Aircraft = next
	s.record(desc)
	return Mutation{Description: desc, Applied: true}, nil
}

// unknown applies the unknown-identifier policy. Callers hold the lock.
func (s *Store) unknown(op, id, desc string) (Mutation, error) {
	if s.strict {
		return Mutation{}, planerr.UnknownEntity(op, id)
	}
	s.log.Warnf("%s: unknown identifier %s, accepted as no-op", op, id)
	s.record(desc)
	return Mutation{Description: desc}, nil
}

func (s *Store) record(desc string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(desc); err != nil {
		s.log.Errorf("audit record failed: %v", err)
	}
}
