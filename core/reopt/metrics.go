package reopt

import "github.com/prometheus/client_golang/prometheus"

var (
	optimizing       prometheus.Gauge
	runFailures      *prometheus.CounterVec
	validationErrors prometheus.Counter
)

func newCollectors() (prometheus.Gauge, *prometheus.CounterVec, prometheus.Counter) {
	state := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reopt_optimizing",
		Help: "1 while an optimization run is in progress",
	})
	fail := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reopt_run_failures_total",
		Help: "Runs that did not produce a new baseline, by error kind",
	}, []string{"kind"})
	invalid := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reopt_validation_conflicts_total",
		Help: "Conflicts found when re-checking extracted schedules",
	})
	return state, fail, invalid
}

func init() {
	optimizing, runFailures, validationErrors = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers controller metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(optimizing, runFailures, validationErrors)
}

// ResetMetrics replaces the collectors with fresh ones registered on reg.
func ResetMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.Unregister(optimizing)
	reg.Unregister(runFailures)
	reg.Unregister(validationErrors)
	optimizing, runFailures, validationErrors = newCollectors()
	MustRegisterMetrics(reg)
}
