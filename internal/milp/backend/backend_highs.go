//go:build highs

package backend

import (
	"github.com/ArvsGastardo/VWT-DLSU/internal/milp"
	"github.com/ArvsGastardo/VWT-DLSU/internal/milp/highs"
)

func register(m map[string]milp.Solver) {
	m["highs"] = highs.New()
}
