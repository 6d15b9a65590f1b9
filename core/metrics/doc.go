// Package metrics defines the sinks that record optimization runs and data
// store mutations. Implementations such as the Prometheus and InfluxDB sinks
// live in infra/metrics and register themselves by name; NewSink returns a
// MultiSink automatically when several sinks are configured.
package metrics
