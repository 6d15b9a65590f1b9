// Package factory provides a small generic registry used to instantiate
// pluggable modules (optimization engines, history backends) from
// configuration. A module is described by a type string and a map of raw
// settings; factories decode the settings into typed structs and return the
// concrete implementation.
//
// Example usage:
//
//	reg := factory.NewRegistry[solver.Engine]()
//	reg.Register("branch_bound", func(conf map[string]any) (solver.Engine, error) {
//	    var c simplex.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return simplex.New(c), nil
//	})
//	eng, err := reg.Create(factory.ModuleConfig{Type: "branch_bound"})
package factory
