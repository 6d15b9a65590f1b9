package history

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/cargoplan/core/factory"
)

// Config selects and configures a history backend.
type Config struct {
	// Backend is one of none, jsonl, rotating, sqlite or postgres.
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	DSN        string `json:"dsn"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "data/history.db"
		default:
			c.Path = "data/history.jsonl"
		}
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

func (c Config) Validate() error {
	if _, err := Registry.lookup(c.Backend); err != nil {
		return err
	}
	if c.Backend == "postgres" && c.DSN == "" {
		return fmt.Errorf("history: postgres backend needs a dsn")
	}
	return nil
}

type registry struct {
	*factory.Registry[Store]
}

func (r registry) lookup(name string) (string, error) {
	for _, t := range r.Types() {
		if t == name {
			return t, nil
		}
	}
	return "", fmt.Errorf("history: unknown backend %q (known: %v)", name, r.Types())
}

// Registry maps backend names to store constructors.
var Registry = registry{factory.NewRegistry[Store]()}

func init() {
	Registry.MustRegister("none", func(map[string]any) (Store, error) { return NopStore{}, nil })
	Registry.MustRegister("jsonl", func(conf map[string]any) (Store, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewJSONLStore(c.Path)
	})
	Registry.MustRegister("rotating", func(conf map[string]any) (Store, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewRotatingJSONLStore(c.Path, c.MaxSizeMB, c.MaxBackups, c.MaxAgeDays)
	})
	Registry.MustRegister("sqlite", func(conf map[string]any) (Store, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewSQLiteStore(c.Path)
	})
	Registry.MustRegister("postgres", func(conf map[string]any) (Store, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return NewPostgresStore(ctx, c.DSN)
	})
}

// New builds the store described by cfg.
func New(cfg Config) (Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return Registry.Create(factory.ModuleConfig{Type: cfg.Backend, Conf: map[string]any{
		"path":         cfg.Path,
		"dsn":          cfg.DSN,
		"max_size_mb":  cfg.MaxSizeMB,
		"max_backups":  cfg.MaxBackups,
		"max_age_days": cfg.MaxAgeDays,
	}})
}
