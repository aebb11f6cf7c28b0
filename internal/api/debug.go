package api

import (
    "encoding/json"
    "net/http"
    "os"
    "sort"
    "time"

    "github.com/ArvsGastardo/VWT-DLSU/internal/buildinfo"
)

// DebugJSON reports build identity and the effective, non-secret
// runtime configuration.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
    solvers := make([]string, 0, len(s.Solvers))
    for name := range s.Solvers {
        solvers = append(solvers, name)
    }
    sort.Strings(solvers)
    info := map[string]any{
        "build": buildinfo.Info(),
        "time":  time.Now().UTC().Format(time.RFC3339),
        "config": map[string]any{
            "PORT":                  os.Getenv("PORT"),
            "AUTH_MODE":             os.Getenv("AUTH_MODE"),
            "RATE_RPS":              os.Getenv("RATE_RPS"),
            "RATE_BURST":            os.Getenv("RATE_BURST"),
            "WEBHOOK_MAX_ATTEMPTS":  os.Getenv("WEBHOOK_MAX_ATTEMPTS"),
            "SOLVER_TIME_BUDGET_MS": os.Getenv("SOLVER_TIME_BUDGET_MS"),
            "HAS_DATABASE_URL":      os.Getenv("DATABASE_URL") != "",
            "HAS_REDIS_URL":         os.Getenv("REDIS_URL") != "",
            "SOLVERS":               solvers,
        },
    }
    w.Header().Set("Content-Type", "application/json")
    _ = json.NewEncoder(w).Encode(info)
}
