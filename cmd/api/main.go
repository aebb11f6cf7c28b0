package main

import (
    "bufio"
    "log"
    "net"
    "net/http"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/joho/godotenv"
    "github.com/prometheus/client_golang/prometheus/promhttp"

    "github.com/ArvsGastardo/VWT-DLSU/internal/api"
    "github.com/ArvsGastardo/VWT-DLSU/internal/metrics"
)

func main() {
    _ = godotenv.Load(".env") // optional; real env wins

    srv, err := api.NewServer()
    if err != nil {
        log.Fatalf("failed to init server: %v", err)
    }
    metrics.RegisterDefault()

    mux := http.NewServeMux()

    // Scenarios and plans
    mux.HandleFunc("/v1/scenarios", srv.ScenariosHandler)
    mux.HandleFunc("/v1/scenarios/", srv.ScenarioByIDHandler) // includes /plans, /relations, /events/stream
    mux.HandleFunc("/v1/plans", srv.PlansHandler)
    mux.HandleFunc("/v1/plans/", srv.PlanByIDHandler)

    // Planner config
    mux.HandleFunc("/v1/planner/config", srv.PlannerConfigHandler)
    mux.HandleFunc("/v1/admin/planner/config", srv.AdminPlannerConfigHandler)

    // Subscriptions
    mux.HandleFunc("/v1/subscriptions", srv.SubscriptionsHandler)
    mux.HandleFunc("/v1/subscriptions/", srv.SubscriptionByIDHandler)

    // Health
    mux.HandleFunc("/healthz", srv.HealthHandler)
    mux.HandleFunc("/readyz", srv.ReadyHandler)

    // Admin
    mux.HandleFunc("/v1/admin/webhook-deliveries", srv.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries/", srv.WebhookDeliveriesHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq", srv.WebhookDLQHandler)
    mux.HandleFunc("/v1/admin/webhook-dlq/", srv.WebhookDLQHandler)
    mux.HandleFunc("/v1/admin/plans/stats", srv.PlanStatsHandler)
    mux.HandleFunc("/v1/admin/solve-stats", srv.SolveStatsHandler)

    // Query facade and event watching
    mux.HandleFunc("/query", srv.QueryHandler)
    mux.HandleFunc("/v1/watch/ws", srv.WatchWSHandler)
    mux.HandleFunc("/v1/watch/stream", func(w http.ResponseWriter, r *http.Request) {
        // bridge to the scenario SSE stream: /v1/scenarios/{id}/events/stream
        id := r.URL.Query().Get("scenarioId")
        if id == "" { http.Error(w, "scenarioId required", http.StatusBadRequest); return }
        r.URL.Path = "/v1/scenarios/" + id + "/events/stream"
        srv.ScenarioByIDHandler(w, r)
    })

    // Docs and consoles
    mux.HandleFunc("/openapi.yaml", srv.OpenAPIHandler)
    mux.HandleFunc("/docs", srv.DocsHandler)
    mux.HandleFunc("/console", srv.SwaggerHandler)
    mux.HandleFunc("/static/", srv.StaticHandler)
    mux.HandleFunc("/field", srv.StaticHandler)
    mux.HandleFunc("/debug/config", srv.DebugJSON)

    // Metrics
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    addr := ":8080"
    if v := os.Getenv("PORT"); v != "" {
        addr = ":" + v
    }

    httpSrv := &http.Server{
        Addr:              addr,
        Handler:           obsMiddleware(mux),
        ReadHeaderTimeout: 5 * time.Second,
    }

    log.Printf("API listening on %s", addr)
    // Start webhook worker
    if srv.Pub != nil {
        worker := srv.NewWebhookWorker()
        worker.Start()
    }
    if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
        log.Fatalf("server error: %v", err)
    }
}

// statusRecorder captures the response code and keeps Flusher and
// Hijacker reachable for the SSE and websocket endpoints.
type statusRecorder struct {
    http.ResponseWriter
    code int
}

func (r *statusRecorder) WriteHeader(c int) { r.code = c; r.ResponseWriter.WriteHeader(c) }

func (r *statusRecorder) Flush() {
    if f, ok := r.ResponseWriter.(http.Flusher); ok { f.Flush() }
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    if hj, ok := r.ResponseWriter.(http.Hijacker); ok { return hj.Hijack() }
    return nil, nil, http.ErrNotSupported
}

func obsMiddleware(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
        next.ServeHTTP(rec, r)
        dur := time.Since(start)
        status := strconv.Itoa(rec.code)
        metrics.HTTPRequests.WithLabelValues(r.Method, metricPath(r.URL.Path), status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, metricPath(r.URL.Path), status).Observe(dur.Seconds())
        log.Printf("%s %s %s %d %v", r.RemoteAddr, r.Method, r.URL.Path, rec.code, dur)
    })
}

// metricPath collapses resource ids so the label set stays bounded.
func metricPath(p string) string {
    parts := strings.Split(p, "/")
    for i, seg := range parts {
        if _, err := uuid.Parse(seg); err == nil {
            parts[i] = ":id"
        }
    }
    return strings.Join(parts, "/")
}
