package factory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engine struct {
	Nodes int
	Limit time.Duration
}

type engineConf struct {
	Nodes int           `json:"nodes"`
	Limit time.Duration `json:"limit"`
}

func newEngine(conf map[string]any) (*engine, error) {
	var c engineConf
	if err := Decode(conf, &c); err != nil {
		return nil, err
	}
	return &engine{Nodes: c.Nodes, Limit: c.Limit}, nil
}

func TestRegistry_Create(t *testing.T) {
	reg := NewRegistry[*engine]()
	require.NoError(t, reg.Register("bb", newEngine))
	inst, err := reg.Create(ModuleConfig{Type: "bb", Conf: map[string]any{"nodes": "250", "limit": "3s"}})
	require.NoError(t, err)
	assert.Equal(t, 250, inst.Nodes)
	assert.Equal(t, 3*time.Second, inst.Limit)

	inst, err = reg.Create(ModuleConfig{Type: "bb"})
	require.NoError(t, err)
	assert.Zero(t, inst.Nodes)
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry[int]()
	require.NoError(t, reg.Register("x", func(map[string]any) (int, error) { return 1, nil }))
	assert.Error(t, reg.Register("x", func(map[string]any) (int, error) { return 2, nil }))
	assert.Error(t, reg.Register("y", nil))
	_, err := reg.Create(ModuleConfig{Type: "z"})
	assert.ErrorContains(t, err, `unknown module type "z"`)
	assert.Panics(t, func() { reg.MustRegister("x", func(map[string]any) (int, error) { return 3, nil }) })
	assert.Equal(t, []string{"x"}, reg.Types())
}
