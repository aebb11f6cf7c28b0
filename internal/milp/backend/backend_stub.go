//go:build !highs

package backend

import "github.com/ArvsGastardo/VWT-DLSU/internal/milp"

func register(map[string]milp.Solver) {}
