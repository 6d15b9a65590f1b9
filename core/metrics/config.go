package metrics

import "github.com/kilianp07/cargoplan/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// PrometheusAddr enables the /metrics HTTP endpoint when set, e.g. ":9090".
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr"`
}
