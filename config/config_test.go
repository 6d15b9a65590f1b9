package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := write(t, "config.yaml", `data:
  dir: "fixtures"
  strict_ids: true
planner:
  weights:
    sla_penalty: 250
  min_turnaround_minutes: 30
  hazmat_cargo_types: ["Dangerous Goods"]
solver:
  type: branch_bound
  time_limit: 3s
  node_limit: 200
  conf:
    tolerance: 1e-8
history:
  backend: sqlite
metrics:
  sinks:
    - type: "nop"
  prometheus_addr: ":9100"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  qos:
    reply: 1
http:
  addr: ":8080"
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "fixtures", cfg.Data.Dir)
	assert.True(t, cfg.Data.StrictIDs)
	assert.Equal(t, "flights.csv", cfg.Data.Flights)
	require.NotNil(t, cfg.Planner.Weights.SLAPenalty)
	assert.Equal(t, 250.0, *cfg.Planner.Weights.SLAPenalty)
	assert.Equal(t, 1.0, *cfg.Planner.Weights.DelayPenalty)
	assert.Equal(t, 30, *cfg.Planner.MinTurnaroundMinutes)
	assert.Equal(t, []string{"Dangerous Goods"}, cfg.Planner.HazmatCargoTypes)
	assert.Equal(t, 3*time.Second, cfg.Solver.TimeLimit)
	assert.Equal(t, 200, cfg.Solver.NodeLimit)
	assert.Equal(t, "branch_bound", cfg.Solver.Module().Type)
	assert.Equal(t, "data/history.db", cfg.History.Path)
	require.Len(t, cfg.Metrics.Sinks, 1)
	assert.Equal(t, ":9100", cfg.Metrics.PrometheusAddr)
	assert.Equal(t, byte(1), cfg.MQTT.QoS["reply"])
	assert.Equal(t, "cargoplan/commands", cfg.MQTT.CommandTopic)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 30*time.Second, cfg.HTTP.CommandTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadJSONWithEnvOverride(t *testing.T) {
	path := write(t, "config.json", `{"solver": {"node_limit": 10}}`)
	t.Setenv("K_SOLVER__NODE_LIMIT", "42")
	t.Setenv("K_DATA__DIR", "/srv/data")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Solver.NodeLimit)
	assert.Equal(t, "/srv/data", cfg.Data.Dir)
	assert.Equal(t, 10*time.Second, cfg.Solver.TimeLimit)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Data, cfg.Data)
	assert.Equal(t, "jsonl", cfg.History.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestStrictWeightsSkipDefaults(t *testing.T) {
	path := write(t, "config.yaml", "planner:\n  strict_weights: true\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Nil(t, cfg.Planner.Weights.DelayPenalty)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		name string
		data string
	}{
		"format":  {"config.toml", "x = 1"},
		"engine":  {"config.yaml", "solver:\n  type: quantum\n"},
		"budget":  {"config.yaml", "solver:\n  node_limit: -1\n"},
		"weight":  {"config.yaml", "planner:\n  weights:\n    delay_penalty: -1\n"},
		"history": {"config.yaml", "history:\n  backend: postgres\n"},
		"mqtt":    {"config.yaml", "mqtt:\n  enabled: true\n"},
		"log":     {"config.yaml", "log:\n  level: loud\n"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(write(t, tc.name, tc.data))
			assert.Error(t, err)
		})
	}
}
