package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/cargoplan/core/history"
	"github.com/kilianp07/cargoplan/core/metrics"
	"github.com/kilianp07/cargoplan/core/planner"
	"github.com/kilianp07/cargoplan/infra/audit"
	"github.com/kilianp07/cargoplan/infra/csvstore"
	"github.com/kilianp07/cargoplan/infra/monitoring"
	"github.com/kilianp07/cargoplan/infra/mqtt"
)

type Config struct {
	Data    csvstore.Config   `json:"data"`
	Planner planner.Config    `json:"planner"`
	Solver  SolverConfig      `json:"solver"`
	Audit   audit.Config      `json:"audit"`
	History history.Config    `json:"history"`
	Metrics metrics.Config    `json:"metrics"`
	MQTT    mqtt.Config       `json:"mqtt"`
	HTTP    HTTPConfig        `json:"http"`
	Sentry  monitoring.Config `json:"sentry"`
	Log     LogConfig         `json:"log"`
}

// Load reads the file at path and applies K_ environment overrides, e.g.
// K_SOLVER__TIME_LIMIT=30s. An empty path loads the defaults and the
// environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every section defaulted.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Data.SetDefaults()
	c.Planner.SetDefaults()
	c.Solver.SetDefaults()
	c.Audit.SetDefaults()
	c.History.SetDefaults()
	c.MQTT.SetDefaults()
	c.HTTP.SetDefaults()
	c.Log.SetDefaults()
}

// Validate checks every section and prefixes the failing section's name.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"data", c.Data.Validate},
		{"planner", c.Planner.Validate},
		{"solver", c.Solver.Validate},
		{"audit", c.Audit.Validate},
		{"history", c.History.Validate},
		{"mqtt", c.MQTT.Validate},
		{"http", c.HTTP.Validate},
		{"log", c.Log.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}
