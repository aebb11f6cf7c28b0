package api

import (
    "context"
    "encoding/json"
    "fmt"
    "io"
    "math/rand"
    "net/http"
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/ArvsGastardo/VWT-DLSU/internal/field"
    "github.com/ArvsGastardo/VWT-DLSU/internal/metrics"
    "github.com/ArvsGastardo/VWT-DLSU/internal/milp/backend"
    "github.com/ArvsGastardo/VWT-DLSU/internal/model"
    "github.com/ArvsGastardo/VWT-DLSU/internal/siteplan"
    "github.com/ArvsGastardo/VWT-DLSU/internal/store"
)

// Built-in plan defaults, overridable per tenant through the planner
// config and per request through the request body.
const (
    defaultSensorRangeM       = 80.0
    defaultCommRangeM         = 120.0
    defaultCapexPerTurbine    = 1650000.0
    defaultOpexPerTurbineYear = 45000.0
    defaultHorizonYears       = 20
    defaultTimeBudgetMs       = 2000

    defaultFieldWidthM  = 1000.0
    defaultFieldHeightM = 1000.0
)

// HealthHandler reports liveness.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pinger interface{ Ping(ctx context.Context) error }

// ReadyHandler reports readiness: stores that can be pinged must
// answer within 500ms.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
    if p, ok := s.Store.(pinger); ok {
        ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
        defer cancel()
        if err := p.Ping(ctx); err != nil {
            writeProblem(w, http.StatusServiceUnavailable, "not ready", "database unreachable", r.URL.Path)
            return
        }
    }
    writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// ScenariosHandler handles POST and GET /v1/scenarios.
func (s *Server) ScenariosHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    switch r.Method {
    case http.MethodPost:
        if !p.CanPlan() {
            writeProblem(w, http.StatusForbidden, "forbidden", "planner role required", r.URL.Path)
            return
        }
        var in model.ScenarioInput
        if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "invalid body", err.Error(), r.URL.Path)
            return
        }
        if err := validateScenarioInput(&in); err != nil {
            writeProblem(w, http.StatusBadRequest, "invalid scenario", err.Error(), r.URL.Path)
            return
        }
        created, err := s.Store.CreateScenario(r.Context(), materializeScenario(p.Tenant, in))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, created)
    case http.MethodGet:
        items, next, err := s.Store.ListScenarios(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), queryInt(r, "limit"))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        if items == nil { items = []model.Scenario{} }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
    default:
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
    }
}

// materializeScenario fills generated geometry and zone membership in,
// so a stored scenario replays identically on every later solve. A
// zero seed is replaced with the clock and the choice is recorded.
func materializeScenario(tenantID string, in model.ScenarioInput) model.Scenario {
    seed := in.Seed
    if seed == 0 { seed = time.Now().UnixNano() }
    rng := rand.New(rand.NewSource(seed))
    sc := model.Scenario{
        TenantID:     tenantID,
        Name:         in.Name,
        Seed:         seed,
        NumRainZones: in.NumRainZones,
        Sites:        in.Sites,
        WaterAreas:   in.WaterAreas,
        ZoneOf:       in.ZoneOf,
    }
    needSites, needAreas := 0, 0
    if len(sc.Sites) == 0 { needSites = in.NumSites }
    if len(sc.WaterAreas) == 0 { needAreas = in.NumWaterAreas }
    if needSites > 0 || needAreas > 0 {
        width, height := in.FieldWidthM, in.FieldHeightM
        if width <= 0 { width = defaultFieldWidthM }
        if height <= 0 { height = defaultFieldHeightM }
        l := field.Generate(rng, needSites, needAreas, in.NumRainZones, width, height)
        if needSites > 0 { sc.Sites = pointsOut(l.Sites) }
        if needAreas > 0 { sc.WaterAreas = pointsOut(l.Areas) }
    }
    if sc.ZoneOf == nil && sc.NumRainZones > 0 && len(sc.Sites) > 0 {
        sc.ZoneOf = field.AssignZones(rng, len(sc.Sites), sc.NumRainZones)
    }
    return sc
}

// ScenarioByIDHandler routes /v1/scenarios/{id} and its subresources.
func (s *Server) ScenarioByIDHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/scenarios/"), "/")
    if rest == "" {
        writeProblem(w, http.StatusNotFound, "not found", "", r.URL.Path)
        return
    }
    parts := strings.Split(rest, "/")
    id := parts[0]
    if len(parts) == 1 {
        switch r.Method {
        case http.MethodGet:
            sc, err := s.Store.GetScenario(r.Context(), p.Tenant, id)
            if err == store.ErrNotFound {
                writeProblem(w, http.StatusNotFound, "not found", "no such scenario", r.URL.Path)
                return
            }
            if err != nil {
                writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
                return
            }
            writeJSON(w, http.StatusOK, sc)
        case http.MethodDelete:
            if !p.CanPlan() {
                writeProblem(w, http.StatusForbidden, "forbidden", "planner role required", r.URL.Path)
                return
            }
            if err := s.Store.DeleteScenario(r.Context(), p.Tenant, id); err != nil {
                if err == store.ErrNotFound {
                    writeProblem(w, http.StatusNotFound, "not found", "no such scenario", r.URL.Path)
                    return
                }
                writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
                return
            }
            w.WriteHeader(http.StatusNoContent)
        default:
            writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        }
        return
    }
    switch strings.Join(parts[1:], "/") {
    case "plans":
        switch r.Method {
        case http.MethodPost:
            s.solveScenario(w, r, p, id)
        case http.MethodGet:
            s.listScenarioPlans(w, r, p, id)
        default:
            writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        }
    case "plans/latest":
        s.latestScenarioPlan(w, r, p, id)
    case "relations":
        s.scenarioRelations(w, r, p, id)
    case "events/stream":
        s.streamScenarioEvents(w, r, p, id)
    default:
        writeProblem(w, http.StatusNotFound, "not found", "", r.URL.Path)
    }
}

// solveScenario runs one blocking solve and persists the outcome. The
// plan id is assigned up front so queued events already carry it.
func (s *Server) solveScenario(w http.ResponseWriter, r *http.Request, p Principal, scenarioID string) {
    if !p.CanPlan() {
        writeProblem(w, http.StatusForbidden, "forbidden", "planner role required", r.URL.Path)
        return
    }
    if !s.limits.allow(p.Tenant) {
        writeProblem(w, http.StatusTooManyRequests, "rate limited", "solve rate exceeded for tenant", r.URL.Path)
        return
    }
    sc, err := s.Store.GetScenario(r.Context(), p.Tenant, scenarioID)
    if err == store.ErrNotFound {
        writeProblem(w, http.StatusNotFound, "not found", "no such scenario", r.URL.Path)
        return
    }
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
        return
    }
    var req model.PlanRequest
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
        writeProblem(w, http.StatusBadRequest, "invalid body", err.Error(), r.URL.Path)
        return
    }
    req = s.planDefaults(r.Context(), p.Tenant, req)
    if err := validatePlanRequest(&req); err != nil {
        writeProblem(w, http.StatusBadRequest, "invalid plan request", err.Error(), r.URL.Path)
        return
    }
    sv, ok := s.Solvers[req.Solver]
    if !ok {
        writeProblem(w, http.StatusBadRequest, "unknown solver", fmt.Sprintf("no backend named %q", req.Solver), r.URL.Path)
        return
    }
    seed := req.Seed
    if seed == 0 { seed = sc.Seed }

    planID := uuid.New().String()
    s.publishPlanEvent(sc, "plan.queued", map[string]any{
        "planId":     planID,
        "scenarioId": sc.ID,
        "solver":     req.Solver,
        "seed":       seed,
    })

    prob := siteplan.Problem{
        Layout:      layoutOf(sc),
        SensorRange: req.SensorRangeM,
        CommRange:   req.CommRangeM,
        Costs: siteplan.Costs{
            CapexPerTurbine:    req.CapexPerTurbine,
            OpexPerTurbineYear: req.OpexPerTurbineYear,
            HorizonYears:       req.HorizonYears,
        },
    }
    solveCtx := r.Context()
    if req.TimeBudgetMs > 0 {
        var cancel context.CancelFunc
        solveCtx, cancel = context.WithTimeout(solveCtx, time.Duration(req.TimeBudgetMs)*time.Millisecond)
        defer cancel()
    }
    out, st, solveErr := siteplan.Solve(solveCtx, sv, prob, seed)

    status := out.Status.String()
    metrics.PlanSolves.WithLabelValues(st.Backend, status).Inc()
    metrics.PlanSolveDuration.WithLabelValues(st.Backend).Observe(st.Elapsed.Seconds())
    metrics.PlanModelRows.Observe(float64(st.Rows))
    siteplan.RecordStats(p.Tenant, sc.ID, st.Backend, st)

    pl := model.Plan{
        ID:            planID,
        TenantID:      p.Tenant,
        ScenarioID:    sc.ID,
        Status:        status,
        SelectedSites: out.SelectedSites,
        ActiveLinks:   out.ActiveLinks,
        TurbineCount:  out.TurbineCount,
        LinkCount:     out.LinkCount,
        Capex:         out.Capex,
        OpexAnnual:    out.OpexAnnual,
        TotalCost:     out.TotalCost,
        SensorRangeM:  req.SensorRangeM,
        CommRangeM:    req.CommRangeM,
        Solver:        st.Backend,
        Seed:          seed,
        ElapsedMs:     st.Elapsed.Milliseconds(),
        ModelVars:     st.Vars,
        ModelRows:     st.Rows,
        RepairedAreas: st.RepairedAreas,
    }
    created, err := s.Store.CreatePlan(r.Context(), pl)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
        return
    }
    _ = s.Store.SaveSolveStats(r.Context(), p.Tenant, sc.ID, st.Backend, map[string]any{
        "planId":        created.ID,
        "status":        status,
        "vars":          st.Vars,
        "rows":          st.Rows,
        "repairedAreas": st.RepairedAreas,
        "elapsedMs":     st.Elapsed.Milliseconds(),
        "seed":          seed,
        "turbineCount":  out.TurbineCount,
    })
    s.Latest.Put(created)

    if status == "optimal" {
        s.publishPlanEvent(sc, "plan.completed", map[string]any{
            "planId":       created.ID,
            "scenarioId":   sc.ID,
            "status":       status,
            "turbineCount": created.TurbineCount,
            "linkCount":    created.LinkCount,
            "totalCost":    created.TotalCost,
            "elapsedMs":    created.ElapsedMs,
        })
    } else {
        data := map[string]any{"planId": created.ID, "scenarioId": sc.ID, "status": status}
        if solveErr != nil { data["error"] = solveErr.Error() }
        s.publishPlanEvent(sc, "plan.failed", data)
    }
    if solveErr != nil {
        writeProblem(w, http.StatusInternalServerError, "solver error", solveErr.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusCreated, created)
}

// publishPlanEvent pushes the event to live subscribers and enqueues
// webhook deliveries for matching subscriptions.
func (s *Server) publishPlanEvent(sc model.Scenario, eventType string, data map[string]any) {
    if s.Broker != nil { s.Broker.Publish(sc.ID, SSEEvent{Type: eventType, Data: data}) }
    if s.Pub != nil { s.Pub.Emit(context.Background(), sc.TenantID, eventType, data) }
}

// planDefaults fills zero request fields from the tenant planner
// config, then from the built-in defaults.
func (s *Server) planDefaults(ctx context.Context, tenantID string, req model.PlanRequest) model.PlanRequest {
    cfg, _ := s.Store.GetPlannerConfig(ctx, tenantID)
    if req.SensorRangeM == 0 { req.SensorRangeM = cfgFloat(cfg, "sensorRangeM", defaultSensorRangeM) }
    if req.CommRangeM == 0 { req.CommRangeM = cfgFloat(cfg, "commRangeM", defaultCommRangeM) }
    if req.CapexPerTurbine == 0 { req.CapexPerTurbine = cfgFloat(cfg, "capexPerTurbine", defaultCapexPerTurbine) }
    if req.OpexPerTurbineYear == 0 { req.OpexPerTurbineYear = cfgFloat(cfg, "opexPerTurbineYear", defaultOpexPerTurbineYear) }
    if req.HorizonYears == 0 { req.HorizonYears = int(cfgFloat(cfg, "horizonYears", defaultHorizonYears)) }
    if req.TimeBudgetMs == 0 { req.TimeBudgetMs = int(cfgFloat(cfg, "timeBudgetMs", float64(defaultBudgetMs()))) }
    if req.Solver == "" { req.Solver = cfgString(cfg, "solver", backend.DefaultName) }
    return req
}

// defaultBudgetMs is the built-in solve budget unless
// SOLVER_TIME_BUDGET_MS overrides it process-wide.
func defaultBudgetMs() int {
    if v := os.Getenv("SOLVER_TIME_BUDGET_MS"); v != "" {
        if n, err := strconv.Atoi(v); err == nil && n > 0 { return n }
    }
    return defaultTimeBudgetMs
}

func cfgFloat(cfg map[string]any, key string, def float64) float64 {
    switch v := cfg[key].(type) {
    case float64:
        if v != 0 { return v }
    case int:
        if v != 0 { return float64(v) }
    }
    return def
}

func cfgString(cfg map[string]any, key, def string) string {
    if v, ok := cfg[key].(string); ok && v != "" { return v }
    return def
}

func (s *Server) listScenarioPlans(w http.ResponseWriter, r *http.Request, p Principal, scenarioID string) {
    items, next, err := s.Store.ListPlans(r.Context(), p.Tenant, scenarioID, r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), queryInt(r, "limit"))
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
        return
    }
    if items == nil { items = []model.Plan{} }
    writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// latestScenarioPlan answers from the cache and falls back to a store
// scan ordered by creation time.
func (s *Server) latestScenarioPlan(w http.ResponseWriter, r *http.Request, p Principal, scenarioID string) {
    if r.Method != http.MethodGet {
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        return
    }
    if pl, ok := s.Latest.Get(p.Tenant, scenarioID); ok {
        writeJSON(w, http.StatusOK, pl)
        return
    }
    var best model.Plan
    found := false
    cursor := ""
    for {
        items, next, err := s.Store.ListPlans(r.Context(), p.Tenant, scenarioID, "", cursor, 500)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        for _, it := range items {
            // RFC3339 strings order like their instants.
            if !found || it.CreatedAt > best.CreatedAt {
                best, found = it, true
            }
        }
        if next == "" { break }
        cursor = next
    }
    if !found {
        writeProblem(w, http.StatusNotFound, "not found", "no plan recorded for scenario", r.URL.Path)
        return
    }
    s.Latest.Put(best)
    writeJSON(w, http.StatusOK, best)
}

// scenarioRelations reports derived coverage, adjacency and zone sets
// so operators can sanity-check ranges before spending solver time.
func (s *Server) scenarioRelations(w http.ResponseWriter, r *http.Request, p Principal, scenarioID string) {
    if r.Method != http.MethodGet {
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        return
    }
    sc, err := s.Store.GetScenario(r.Context(), p.Tenant, scenarioID)
    if err == store.ErrNotFound {
        writeProblem(w, http.StatusNotFound, "not found", "no such scenario", r.URL.Path)
        return
    }
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
        return
    }
    req := s.planDefaults(r.Context(), p.Tenant, model.PlanRequest{
        SensorRangeM: queryFloat(r, "sensorRangeM"),
        CommRangeM:   queryFloat(r, "commRangeM"),
        Seed:         queryInt64(r, "seed"),
    })
    seed := req.Seed
    if seed == 0 { seed = sc.Seed }
    l := layoutOf(sc)
    rel := field.Build(l, req.SensorRangeM, req.CommRangeM, rand.New(rand.NewSource(seed)))
    before := rel.Coverage.Len()
    rel = field.Repair(rel, l)

    coverage := make([][]int, rel.Areas)
    for i := range coverage {
        coverage[i] = intsOrEmpty(rel.Coverage.Row(i))
    }
    adjacency := make([][]int, rel.Sites)
    for j := range adjacency {
        adjacency[j] = intsOrEmpty(rel.Adjacency.Row(j))
    }
    zoneSites := make([][]int, rel.Zones)
    for z := range zoneSites {
        zoneSites[z] = intsOrEmpty(rel.ZoneSites[z])
    }
    writeJSON(w, http.StatusOK, map[string]any{
        "sites":         rel.Sites,
        "waterAreas":    rel.Areas,
        "zones":         rel.Zones,
        "sensorRangeM":  req.SensorRangeM,
        "commRangeM":    req.CommRangeM,
        "coverage":      coverage,
        "adjacency":     adjacency,
        "zoneOf":        intsOrEmpty(rel.ZoneOf),
        "zoneSites":     zoneSites,
        "repairedAreas": rel.Coverage.Len() - before,
    })
}

// streamScenarioEvents serves the scenario event stream over SSE with
// a 15s heartbeat.
func (s *Server) streamScenarioEvents(w http.ResponseWriter, r *http.Request, p Principal, scenarioID string) {
    if r.Method != http.MethodGet {
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        return
    }
    if _, err := s.Store.GetScenario(r.Context(), p.Tenant, scenarioID); err != nil {
        if err == store.ErrNotFound {
            writeProblem(w, http.StatusNotFound, "not found", "no such scenario", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
        return
    }
    fl, ok := w.(http.Flusher)
    if !ok {
        writeProblem(w, http.StatusInternalServerError, "stream unsupported", "response writer cannot flush", r.URL.Path)
        return
    }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("Connection", "keep-alive")

    ch := s.Broker.Subscribe(scenarioID)
    defer s.Broker.Unsubscribe(scenarioID, ch)

    heartbeat := func() {
        fmt.Fprintf(w, "event: heartbeat\n")
        fmt.Fprintf(w, "data: {\"ts\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
        fl.Flush()
    }
    heartbeat()

    notify := r.Context().Done()
    for {
        select {
        case <-notify:
            return
        case evt := <-ch:
            if evt.Type == "" { continue }
            body, _ := json.Marshal(evt.Data)
            fmt.Fprintf(w, "event: %s\n", evt.Type)
            fmt.Fprintf(w, "data: %s\n\n", body)
            fl.Flush()
        case <-time.After(15 * time.Second):
            heartbeat()
        }
    }
}

// PlansHandler handles GET /v1/plans across scenarios.
func (s *Server) PlansHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        return
    }
    p := s.getPrincipal(r)
    items, next, err := s.Store.ListPlans(r.Context(), p.Tenant, r.URL.Query().Get("scenarioId"), r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), queryInt(r, "limit"))
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
        return
    }
    if items == nil { items = []model.Plan{} }
    writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// PlanByIDHandler handles GET /v1/plans/{id}. The reserved id "latest"
// lists the cached latest plan per scenario for the tenant.
func (s *Server) PlanByIDHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        return
    }
    p := s.getPrincipal(r)
    id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/plans/"), "/")
    if id == "" {
        writeProblem(w, http.StatusNotFound, "not found", "", r.URL.Path)
        return
    }
    if id == "latest" {
        writeJSON(w, http.StatusOK, map[string]any{"items": s.Latest.ListByTenant(p.Tenant)})
        return
    }
    pl, err := s.Store.GetPlan(r.Context(), p.Tenant, id)
    if err == store.ErrNotFound {
        writeProblem(w, http.StatusNotFound, "not found", "no such plan", r.URL.Path)
        return
    }
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, pl)
}

// SubscriptionsHandler handles POST and GET /v1/subscriptions.
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() {
        writeProblem(w, http.StatusForbidden, "forbidden", "admin role required", r.URL.Path)
        return
    }
    switch r.Method {
    case http.MethodPost:
        var req model.SubscriptionRequest
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            writeProblem(w, http.StatusBadRequest, "invalid body", err.Error(), r.URL.Path)
            return
        }
        if req.URL == "" || len(req.EventTypes) == 0 {
            writeProblem(w, http.StatusBadRequest, "invalid subscription", "url and eventTypes are required", r.URL.Path)
            return
        }
        req.TenantID = p.Tenant
        sub, err := s.Store.CreateSubscription(r.Context(), req)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusCreated, sub)
    case http.MethodGet:
        subs, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, r.URL.Query().Get("cursor"), queryInt(r, "limit"))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        if subs == nil { subs = []model.Subscription{} }
        writeJSON(w, http.StatusOK, map[string]any{"items": subs, "nextCursor": next})
    default:
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
    }
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}.
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() {
        writeProblem(w, http.StatusForbidden, "forbidden", "admin role required", r.URL.Path)
        return
    }
    if r.Method != http.MethodDelete {
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        return
    }
    id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/"), "/")
    if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
        if err == store.ErrNotFound {
            writeProblem(w, http.StatusNotFound, "not found", "no such subscription", r.URL.Path)
            return
        }
        writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// WebhookDeliveriesHandler handles GET /v1/admin/webhook-deliveries and
// POST /v1/admin/webhook-deliveries/{id}/retry.
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() {
        writeProblem(w, http.StatusForbidden, "forbidden", "admin role required", r.URL.Path)
        return
    }
    rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries"), "/")
    if rest == "" {
        if r.Method != http.MethodGet {
            writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
            return
        }
        items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, r.URL.Query().Get("status"), r.URL.Query().Get("cursor"), queryInt(r, "limit"))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        if items == nil { items = []map[string]any{} }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
        return
    }
    parts := strings.Split(rest, "/")
    if len(parts) == 2 && parts[1] == "retry" && r.Method == http.MethodPost {
        if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, parts[0]); err != nil {
            if err == store.ErrNotFound {
                writeProblem(w, http.StatusNotFound, "not found", "no such delivery", r.URL.Path)
                return
            }
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
        return
    }
    writeProblem(w, http.StatusNotFound, "not found", "", r.URL.Path)
}

// WebhookDLQHandler handles GET /v1/admin/webhook-dlq and
// POST /v1/admin/webhook-dlq/{id}/requeue.
func (s *Server) WebhookDLQHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() {
        writeProblem(w, http.StatusForbidden, "forbidden", "admin role required", r.URL.Path)
        return
    }
    rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-dlq"), "/")
    if rest == "" {
        if r.Method != http.MethodGet {
            writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
            return
        }
        items, next, err := s.Store.ListWebhookDLQ(r.Context(), p.Tenant, r.URL.Query().Get("eventType"), r.URL.Query().Get("cursor"), queryInt(r, "limit"))
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        if items == nil { items = []map[string]any{} }
        writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
        return
    }
    parts := strings.Split(rest, "/")
    if len(parts) == 2 && parts[1] == "requeue" && r.Method == http.MethodPost {
        if err := s.Store.RequeueWebhookDLQ(r.Context(), p.Tenant, parts[0]); err != nil {
            if err == store.ErrNotFound {
                writeProblem(w, http.StatusNotFound, "not found", "no such dlq entry", r.URL.Path)
                return
            }
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusAccepted, map[string]int{"accepted": 1})
        return
    }
    writeProblem(w, http.StatusNotFound, "not found", "", r.URL.Path)
}

// PlanStatsHandler handles GET /v1/admin/plans/stats.
func (s *Server) PlanStatsHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() {
        writeProblem(w, http.StatusForbidden, "forbidden", "admin role required", r.URL.Path)
        return
    }
    if r.Method != http.MethodGet {
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        return
    }
    stats, err := s.Store.PlanStats(r.Context(), p.Tenant, r.URL.Query().Get("scenarioId"))
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
        return
    }
    writeJSON(w, http.StatusOK, stats)
}

// SolveStatsHandler handles GET /v1/admin/solve-stats. When the store
// has nothing, the in-process record of the latest solve answers, so
// memory deployments still expose their numbers.
func (s *Server) SolveStatsHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() {
        writeProblem(w, http.StatusForbidden, "forbidden", "admin role required", r.URL.Path)
        return
    }
    if r.Method != http.MethodGet {
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        return
    }
    scenarioID := r.URL.Query().Get("scenarioId")
    backendName := r.URL.Query().Get("backend")
    items, err := s.Store.ListSolveStats(r.Context(), p.Tenant, scenarioID, backendName)
    if err != nil {
        writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
        return
    }
    if len(items) == 0 && scenarioID != "" {
        name := backendName
        if name == "" { name = backend.DefaultName }
        if st, ok := siteplan.LastStats(p.Tenant, scenarioID, name); ok {
            items = []map[string]any{{
                "backend":       st.Backend,
                "vars":          st.Vars,
                "rows":          st.Rows,
                "repairedAreas": st.RepairedAreas,
                "elapsedMs":     st.Elapsed.Milliseconds(),
            }}
        }
    }
    if items == nil { items = []map[string]any{} }
    writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

// PlannerConfigHandler handles GET /v1/planner/config: the effective
// solve defaults for the caller's tenant.
func (s *Server) PlannerConfigHandler(w http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet {
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
        return
    }
    p := s.getPrincipal(r)
    effective := map[string]any{
        "sensorRangeM":       defaultSensorRangeM,
        "commRangeM":         defaultCommRangeM,
        "capexPerTurbine":    defaultCapexPerTurbine,
        "opexPerTurbineYear": defaultOpexPerTurbineYear,
        "horizonYears":       defaultHorizonYears,
        "timeBudgetMs":       defaultBudgetMs(),
        "solver":             backend.DefaultName,
    }
    if cfg, err := s.Store.GetPlannerConfig(r.Context(), p.Tenant); err == nil {
        for k, v := range cfg { effective[k] = v }
    }
    writeJSON(w, http.StatusOK, map[string]any{"config": effective})
}

// AdminPlannerConfigHandler handles GET and PUT /v1/admin/planner/config:
// the raw tenant overrides.
func (s *Server) AdminPlannerConfigHandler(w http.ResponseWriter, r *http.Request) {
    p := s.getPrincipal(r)
    if !p.IsAdmin() {
        writeProblem(w, http.StatusForbidden, "forbidden", "admin role required", r.URL.Path)
        return
    }
    switch r.Method {
    case http.MethodGet:
        cfg, err := s.Store.GetPlannerConfig(r.Context(), p.Tenant)
        if err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        if cfg == nil { cfg = map[string]any{} }
        writeJSON(w, http.StatusOK, map[string]any{"config": cfg})
    case http.MethodPut:
        var body struct {
            Config map[string]any `json:"config"`
        }
        if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
            writeProblem(w, http.StatusBadRequest, "invalid body", err.Error(), r.URL.Path)
            return
        }
        if err := s.Store.SavePlannerConfig(r.Context(), p.Tenant, body.Config); err != nil {
            writeProblem(w, http.StatusInternalServerError, "store error", err.Error(), r.URL.Path)
            return
        }
        writeJSON(w, http.StatusOK, map[string]any{"config": body.Config})
    default:
        writeProblem(w, http.StatusMethodNotAllowed, "method not allowed", "", r.URL.Path)
    }
}

func layoutOf(sc model.Scenario) field.Layout {
    l := field.Layout{Zones: sc.NumRainZones, ZoneOf: sc.ZoneOf}
    for _, p := range sc.Sites {
        l.Sites = append(l.Sites, field.Point{X: p.X, Y: p.Y})
    }
    for _, p := range sc.WaterAreas {
        l.Areas = append(l.Areas, field.Point{X: p.X, Y: p.Y})
    }
    return l
}

func pointsOut(ps []field.Point) []model.Point {
    out := make([]model.Point, 0, len(ps))
    for _, p := range ps {
        out = append(out, model.Point{X: p.X, Y: p.Y})
    }
    return out
}

func intsOrEmpty(v []int) []int {
    if v == nil { return []int{} }
    return v
}

func queryInt(r *http.Request, key string) int {
    n := 0
    if v := r.URL.Query().Get(key); v != "" { fmt.Sscanf(v, "%d", &n) }
    return n
}

func queryInt64(r *http.Request, key string) int64 {
    var n int64
    if v := r.URL.Query().Get(key); v != "" { fmt.Sscanf(v, "%d", &n) }
    return n
}

func queryFloat(r *http.Request, key string) float64 {
    var f float64
    if v := r.URL.Query().Get(key); v != "" { fmt.Sscanf(v, "%f", &f) }
    return f
}
