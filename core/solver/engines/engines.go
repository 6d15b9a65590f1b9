// Package engines registers the bundled optimization engines so that the
// engine can be selected by name from configuration.
package engines

import (
	"github.com/kilianp07/cargoplan/core/factory"
	"github.com/kilianp07/cargoplan/core/solver"
	"github.com/kilianp07/cargoplan/core/solver/simplex"
)

// Registry holds every selectable engine.
var Registry = factory.NewRegistry[solver.Engine]()

func init() {
	Registry.MustRegister(simplex.Name, func(conf map[string]any) (solver.Engine, error) {
		var c simplex.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return simplex.New(c), nil
	})
}

// New builds the engine described by cfg. An empty type selects the
// branch and bound engine.
func New(cfg factory.ModuleConfig) (solver.Engine, error) {
	if cfg.Type == "" {
		cfg.Type = simplex.Name
	}
	return Registry.Create(cfg)
}
