package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kilianp07/cargoplan/core/factory"
	"github.com/kilianp07/cargoplan/core/reopt"
	"github.com/kilianp07/cargoplan/core/solver/engines"
)

// SolverConfig selects the engine and its budget.
type SolverConfig struct {
	Type         string         `json:"type"`
	Conf         map[string]any `json:"conf"`
	reopt.Config `json:",squash"`
}

func (c *SolverConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "branch_bound"
	}
	c.Config.SetDefaults()
}

func (c SolverConfig) Validate() error {
	known := false
	for _, t := range engines.Registry.Types() {
		if t == c.Type {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("unknown engine %q", c.Type)
	}
	return c.Config.Validate()
}

// Module returns the factory configuration of the engine.
func (c SolverConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Type, Conf: c.Conf}
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	// Addr enables the API when set, e.g. ":8080".
	Addr string `json:"addr"`
	// Token, when set, is required as a bearer token on /api routes.
	Token          string        `json:"token"`
	CommandTimeout time.Duration `json:"command_timeout"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.CommandTimeout == 0 {
		c.CommandTimeout = 30 * time.Second
	}
}

func (c HTTPConfig) Validate() error {
	if c.CommandTimeout < 0 {
		return fmt.Errorf("command_timeout must not be negative")
	}
	return nil
}

// LogConfig sets the minimum log level.
type LogConfig struct {
	Level string `json:"level"`
}

func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c LogConfig) Validate() error {
	if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
		return fmt.Errorf("unknown level %q", c.Level)
	}
	return nil
}
