// Package backend enumerates the solver backends compiled into this
// binary. The bnb backend is always present; others join through build
// tags.
package backend

import (
	"github.com/ArvsGastardo/VWT-DLSU/internal/milp"
	"github.com/ArvsGastardo/VWT-DLSU/internal/milp/bnb"
)

// DefaultName is the backend used when a request names none.
const DefaultName = "bnb"

// Available returns the compiled-in backends keyed by name.
func Available() map[string]milp.Solver {
	m := map[string]milp.Solver{"bnb": bnb.New()}
	register(m)
	return m
}
