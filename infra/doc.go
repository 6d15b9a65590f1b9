// Package infra contains technical adapters: the tabular data repository,
// the audit log, the MQTT command listener, metrics exporters and the
// Sentry monitor. These packages depend only on the interfaces defined in
// the core packages.
package infra
