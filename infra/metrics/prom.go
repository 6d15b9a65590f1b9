package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/cargoplan/core/metrics"
)

// PromSink records optimization runs and mutations in Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	nodes       prometheus.Histogram
	objective   prometheus.Gauge
	delay       prometheus.Gauge
	slaMisses   prometheus.Gauge
	utilization *prometheus.GaugeVec
	overtime    prometheus.Gauge
	violations  prometheus.Gauge
	mutations   *prometheus.CounterVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cargoplan_runs_total",
			Help: "Optimization runs by trigger, engine status and acceptance",
		}, []string{"trigger", "status", "accepted"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cargoplan_run_duration_seconds",
			Help:    "Wall-clock time of one rebuild, solve and extract cycle",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		nodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cargoplan_search_nodes",
			Help:    "Branch and bound nodes explored per run",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
		objective: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cargoplan_objective_value",
			Help: "Objective value of the current baseline schedule",
		}),
		delay: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cargoplan_schedule_delay_minutes",
			Help: "Total delay minutes in the current baseline schedule",
		}),
		slaMisses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cargoplan_sla_misses",
			Help: "Flights departing after their SLA deadline in the current baseline",
		}),
		utilization: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cargoplan_resources",
			Help: "Aircraft and crew counts in the current baseline",
		}, []string{"resource", "state"}),
		overtime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cargoplan_crew_overtime_minutes",
			Help: "Crew overtime minutes in the current baseline",
		}),
		violations: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cargoplan_soft_violations",
			Help: "Gateway, hazmat and volume violations in the current baseline",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cargoplan_mutations_total",
			Help: "Data store mutations by entity and whether the id was known",
		}, []string{"entity", "applied"}),
	}
	var err error
	s.runs, err = register(reg, s.runs)
	if err != nil {
		return nil, err
	}
	if s.duration, err = register(reg, s.duration); err != nil {
		return nil, err
	}
	if s.nodes, err = register(reg, s.nodes); err != nil {
		return nil, err
	}
	if s.objective, err = register(reg, s.objective); err != nil {
		return nil, err
	}
	if s.delay, err = register(reg, s.delay); err != nil {
		return nil, err
	}
	if s.slaMisses, err = register(reg, s.slaMisses); err != nil {
		return nil, err
	}
	if s.utilization, err = register(reg, s.utilization); err != nil {
		return nil, err
	}
	if s.overtime, err = register(reg, s.overtime); err != nil {
		return nil, err
	}
	if s.violations, err = register(reg, s.violations); err != nil {
		return nil, err
	}
	if s.mutations, err = register(reg, s.mutations); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when one with the same
// descriptor exists, so several sinks may share a registerer.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun counts the run and, when accepted, updates the baseline gauges.
func (s *PromSink) RecordRun(r coremetrics.RunReport) error {
	s.runs.WithLabelValues(r.Trigger, r.Status, strconv.FormatBool(r.Accepted)).Inc()
	s.duration.WithLabelValues(r.Status).Observe(r.Duration.Seconds())
	s.nodes.Observe(float64(r.Nodes))
	if !r.Accepted {
		return nil
	}
	s.objective.Set(r.Objective)
	s.delay.Set(float64(r.TotalDelay))
	s.slaMisses.Set(float64(r.SLAMisses))
	s.utilization.WithLabelValues("aircraft", "used").Set(float64(r.AircraftUsed))
	s.utilization.WithLabelValues("aircraft", "available").Set(float64(r.AircraftAvailable))
	s.utilization.WithLabelValues("crew", "used").Set(float64(r.CrewUsed))
	s.utilization.WithLabelValues("crew", "available").Set(float64(r.CrewAvailable))
	s.overtime.Set(r.OvertimeMinutes)
	s.violations.Set(float64(r.Violations))
	return nil
}

// RecordMutation counts a data store mutation.
func (s *PromSink) RecordMutation(m coremetrics.MutationReport) error {
	s.mutations.WithLabelValues(m.Entity, strconv.FormatBool(m.Applied)).Inc()
	return nil
}
