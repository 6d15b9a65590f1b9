package store

import (
	"context"
	"errors"
	"testing"

	"github.com/kilianp07/cargoplan/core/model"
	"github.com/kilianp07/cargoplan/core/planerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dataset() model.Dataset {
	return model.Dataset{
		Slots:    model.Slots{model.MustClock("06:00")},
		Aircraft: []model.Aircraft{{ID: "A1", MaintenanceDue: 20}},
		Crew:     []model.Crew{{ID: "C1", OnDuty: true}},
	}
}

type failingRepo struct{}

func (failingRepo) Load(context.Context) (model.Dataset, error) {
	return model.Dataset{}, errors.New("crew.csv: no such file")
}
func (failingRepo) SaveCrew(context.Context, []model.Crew) error         { return nil }
func (failingRepo) SaveAircraft(context.Context, []model.Aircraft) error { return nil }

func open(t *testing.T, strict bool) (*Store, *MemoryRepository, *MemoryAuditor) {
	t.Helper()
	repo := NewMemoryRepository(dataset())
	audit := &MemoryAuditor{}
	s, err := Open(context.Background(), repo, audit, Options{StrictIDs: strict})
	require.NoError(t, err)
	return s, repo, audit
}

func TestOpenFailureIsDataLoad(t *testing.T) {
	_, err := Open(context.Background(), failingRepo{}, nil, Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, planerr.ErrDataLoad)
}

func TestSetCrewAvailability(t *testing.T) {
	s, repo, audit := open(t, false)
	m, err := s.SetCrewAvailability(context.Background(), "C1", false)
	require.NoError(t, err)
	assert.True(t, m.Applied)
	assert.False(t, s.Snapshot().Crew[0].OnDuty)
	assert.Equal(t, 1, repo.Saves)
	assert.Equal(t, []string{"Crew C1 availability changed to false"}, audit.Lines())
}

func TestSetAircraftMaintenance(t *testing.T) {
	s, _, audit := open(t, false)
	m, err := s.SetAircraftMaintenance(context.Background(), "A1", 0)
	require.NoError(t, err)
	assert.True(t, m.Applied)
	assert.False(t, s.Snapshot().Aircraft[0].Usable())
	assert.Equal(t, "Aircraft A1 maintenance due in 0 hours", audit.Lines()[0])

	_, err = s.SetAircraftMaintenance(context.Background(), "A1", 2.5)
	require.NoError(t, err)
	assert.Equal(t, "Aircraft A1 maintenance due in 2.5 hours", audit.Lines()[1])
}

func TestUnknownIDPolicies(t *testing.T) {
	lenient, repo, audit := open(t, false)
	m, err := lenient.SetCrewAvailability(context.Background(), "C404", false)
	require.NoError(t, err)
	assert.False(t, m.Applied)
	assert.Zero(t, repo.Saves)
	assert.Len(t, audit.Lines(), 1)

	strict, repo, audit := open(t, true)
	_, err = strict.SetAircraftMaintenance(context.Background(), "A404", 1)
	require.Error(t, err)
	assert.True(t, planerr.IsKind(err, planerr.KindUnknownEntity))
	assert.Zero(t, repo.Saves)
	assert.Empty(t, audit.Lines())
}

func TestPersistFailureLeavesStateUntouched(t *testing.T) {
	s, repo, audit := open(t, false)
	repo.FailSave = errors.New("disk full")
	_, err := s.SetCrewAvailability(context.Background(), "C1", false)
	require.Error(t, err)
	assert.True(t, s.Snapshot().Crew[0].OnDuty)
	assert.Empty(t, audit.Lines())
}

func TestSnapshotIsIsolated(t *testing.T) {
	s, _, _ := open(t, false)
	snap := s.Snapshot()
	_, err := s.SetCrewAvailability(context.Background(), "C1", false)
	require.NoError(t, err)
	assert.True(t, snap.Crew[0].OnDuty)
}
