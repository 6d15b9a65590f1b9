package metrics

import "time"

// RunReport summarises one optimization run.
type RunReport struct {
	RunID      string
	Trigger    string
	Status     string
	Accepted   bool
	Objective  float64
	Nodes      int
	Duration   time.Duration
	Flights    int
	TotalDelay int
	SLAMisses  int
	Changes    int

	AircraftUsed      int
	AircraftAvailable int
	CrewUsed          int
	CrewAvailable     int
	OvertimeMinutes   float64
	Violations        int

	Time time.Time
}

// MutationReport records one crew or aircraft mutation.
type MutationReport struct {
	Entity  string
	ID      string
	Applied bool
	Time    time.Time
}

// Sink records optimization runs for observability purposes.
type Sink interface {
	RecordRun(r RunReport) error
}

// MutationRecorder is implemented by sinks able to record mutations.
type MutationRecorder interface {
	RecordMutation(m MutationReport) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunReport) error           { return nil }
func (NopSink) RecordMutation(MutationReport) error { return nil }

// MultiSink fans reports out to several sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordRun forwards the report to all sinks, returning the first error encountered.
func (m *MultiSink) RecordRun(r RunReport) error {
	for _, s := range m.Sinks {
		if err := s.RecordRun(r); err != nil {
			return err
		}
	}
	return nil
}

// RecordMutation forwards the report to the sinks that support it.
func (m *MultiSink) RecordMutation(r MutationReport) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(MutationRecorder); ok {
			if err := rec.RecordMutation(r); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() {
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() }); ok {
			c.Close()
		}
	}
}
