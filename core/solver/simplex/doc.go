// Package simplex is the bundled optimization engine. It runs a depth-first
// branch and bound whose node relaxations are solved by a bounded-variable
// primal simplex on a dense gonum tableau. Bounds are propagated through the
// constraints before each relaxation so that most one-hot rows collapse before
// reaching the LP, and the relaxation itself stops as soon as the budget runs
// out.
package simplex
