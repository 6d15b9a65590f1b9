package reopt

import (
	"fmt"
	"time"

	"github.com/kilianp07/cargoplan/core/solver"
)

// Default engine budget.
const (
	DefaultTimeLimit = 10 * time.Second
	DefaultNodeLimit = 5000
)

// Config bounds every engine call made by the controller.
type Config struct {
	TimeLimit time.Duration `json:"time_limit"`
	NodeLimit int           `json:"node_limit"`
}

func (c *Config) SetDefaults() {
	if c.TimeLimit == 0 {
		c.TimeLimit = DefaultTimeLimit
	}
	if c.NodeLimit == 0 {
		c.NodeLimit = DefaultNodeLimit
	}
}

func (c Config) Validate() error {
	if c.TimeLimit < 0 {
		return fmt.Errorf("reopt: time_limit must not be negative")
	}
	if c.NodeLimit < 0 {
		return fmt.Errorf("reopt: node_limit must not be negative")
	}
	return nil
}

// Budget converts the configuration to an engine budget.
func (c Config) Budget() solver.Budget {
	return solver.Budget{TimeLimit: c.TimeLimit, NodeLimit: c.NodeLimit}
}
