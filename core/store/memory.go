package store

import (
	"context"
	"sync"

	"github.com/kilianp07/cargoplan/core/model"
)

// MemoryRepository keeps the dataset in memory. It backs tests and scenario runs.
type MemoryRepository struct {
	mu       sync.Mutex
	data     model.Dataset
	Saves    int
	FailSave error
}

// NewMemoryRepository returns a repository serving a copy of d.
func NewMemoryRepository(d model.Dataset) *MemoryRepository {
	return &MemoryRepository{data: d.Clone()}
}

// Load implements Repository.
func (r *MemoryRepository) Load(context.Context) (model.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.Clone(), nil
}

// SaveCrew implements Repository.
func (r *MemoryRepository) SaveCrew(_ context.Context, crew []model.Crew) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		return r.FailSave
	}
	r.data.Crew = append([]model.Crew(nil), crew...)
	r.Saves++
	return nil
}

// SaveAircraft implements Repository.
func (r *MemoryRepository) SaveAircraft(_ context.Context, aircraft []model.Aircraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailSave != nil {
		return r.FailSave
	}
	r.data.Aircraft = append([]model.Aircraft(nil), aircraft...)
	r.Saves++
	return nil
}

// MemoryAuditor collects audit lines in memory.
type MemoryAuditor struct {
	mu    sync.Mutex
	lines []string
}

// Record implements Auditor.
func (a *MemoryAuditor) Record(desc string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lines = append(a.lines, desc)
	return nil
}

// Lines returns the recorded descriptions.
func (a *MemoryAuditor) Lines() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.lines...)
}
