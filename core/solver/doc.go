// Package solver defines the boundary between the model builder and an
// optimization engine: a linear model over continuous, integer and binary
// variables, a budget, and the result an engine reports back.
//
// The builder never searches; engines never know what a flight is.
package solver
