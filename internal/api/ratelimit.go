package api

import (
    "os"
    "strconv"
    "sync"

    "golang.org/x/time/rate"
)

// solveLimits throttles solve requests per tenant. A solve holds a CPU
// core for up to its whole time budget, so one runaway client must not
// starve the rest.
type solveLimits struct {
    mu    sync.Mutex
    per   map[string]*rate.Limiter
    rps   rate.Limit
    burst int
}

// newSolveLimits reads RATE_RPS and RATE_BURST from the environment.
func newSolveLimits() *solveLimits {
    rps := 5.0
    if v := os.Getenv("RATE_RPS"); v != "" {
        if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
            rps = f
        }
    }
    burst := 10
    if v := os.Getenv("RATE_BURST"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 {
            burst = n
        }
    }
    return &solveLimits{per: map[string]*rate.Limiter{}, rps: rate.Limit(rps), burst: burst}
}

func (l *solveLimits) allow(tenantID string) bool {
    l.mu.Lock()
    lim, ok := l.per[tenantID]
    if !ok {
        lim = rate.NewLimiter(l.rps, l.burst)
        l.per[tenantID] = lim
    }
    l.mu.Unlock()
    return lim.Allow()
}
