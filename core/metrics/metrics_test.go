package metrics

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/cargoplan/core/factory"
)

type recordSink struct {
	runs      int
	mutations int
	err       error
}

func (r *recordSink) RecordRun(RunReport) error {
	r.runs++
	return r.err
}

func (r *recordSink) RecordMutation(MutationReport) error {
	r.mutations++
	return nil
}

type runOnly struct{ runs int }

func (r *runOnly) RecordRun(RunReport) error {
	r.runs++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &runOnly{}
	m := NewMultiSink(s1, s2)
	require.NoError(t, m.RecordRun(RunReport{Status: "optimal"}))
	require.NoError(t, m.RecordMutation(MutationReport{Entity: "crew", ID: "C1"}))
	assert.Equal(t, 1, s1.runs)
	assert.Equal(t, 1, s1.mutations)
	assert.Equal(t, 1, s2.runs)
}

func TestMultiSink_FirstError(t *testing.T) {
	boom := errors.New("boom")
	s1 := &recordSink{err: boom}
	s2 := &recordSink{}
	err := NewMultiSink(s1, s2).RecordRun(RunReport{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s2.runs)
}

func init() {
	_ = RegisterSink("test-record", func(map[string]any) (Sink, error) { return &recordSink{}, nil })
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(nil)
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = NewSink([]factory.ModuleConfig{{Type: "test-record"}})
	require.NoError(t, err)
	assert.IsType(t, &recordSink{}, s)
}

func TestConfigDecodeYAML(t *testing.T) {
	data := `sinks:
  - type: test-record
  - type: test-record
prometheus_addr: ":9090"
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &cfg))
	assert.Equal(t, ":9090", cfg.PrometheusAddr)
	s, err := NewSink(cfg.Sinks)
	require.NoError(t, err)
	multi, ok := s.(*MultiSink)
	require.True(t, ok)
	assert.Len(t, multi.Sinks, 2)
}

func TestConfigDecodeJSON_Invalid(t *testing.T) {
	var cfg Config
	require.NoError(t, json.Unmarshal([]byte(`{"sinks":[{"type":"missing"}]}`), &cfg))
	_, err := NewSink(cfg.Sinks)
	assert.ErrorContains(t, err, "unknown module type")
}
