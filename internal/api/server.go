package api

import (
    "os"
    "strings"

    "github.com/ArvsGastardo/VWT-DLSU/internal/auth"
    "github.com/ArvsGastardo/VWT-DLSU/internal/milp"
    "github.com/ArvsGastardo/VWT-DLSU/internal/milp/backend"
    "github.com/ArvsGastardo/VWT-DLSU/internal/store"
    "github.com/ArvsGastardo/VWT-DLSU/internal/webhooks"
)

// Server carries the shared dependencies every handler needs.
type Server struct {
    Store   store.Store
    Pub     *webhooks.Publisher
    Auth    *auth.Verifier
    Broker  EventBroker
    Solvers map[string]milp.Solver
    Latest  *LatestPlanCache

    limits *solveLimits
}

// NewServer wires a server from the environment: Postgres when
// DATABASE_URL is set, in-memory otherwise; Redis pub/sub when
// REDIS_URL is set, a process-local broker otherwise. Solver backends
// are whatever this binary was compiled with.
func NewServer() (*Server, error) {
    dsn := os.Getenv("DATABASE_URL")
    var sp store.Store
    if strings.TrimSpace(dsn) == "" {
        sp = store.NewMemory()
    } else {
        ps, err := store.NewPostgres(dsn)
        if err != nil {
            return nil, err
        }
        if os.Getenv("DB_MIGRATE") != "false" {
            _ = ps.MigrateDir("db/migrations")
        }
        sp = ps
    }
    var broker EventBroker
    if os.Getenv("REDIS_URL") != "" {
        if rb, err := NewRedisBroker(); err == nil { broker = rb } else { broker = NewBroker() }
    } else {
        broker = NewBroker()
    }
    return &Server{
        Store:   sp,
        Pub:     webhooks.NewPublisher(sp),
        Auth:    auth.NewVerifierFromEnv(),
        Broker:  broker,
        Solvers: backend.Available(),
        Latest:  NewLatestPlanCache(),
        limits:  newSolveLimits(),
    }, nil
}

// NewWebhookWorker creates a background worker for webhook deliveries.
// The caller owns its lifecycle.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
    return webhooks.NewWorker(s.Store)
}
