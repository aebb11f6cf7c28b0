package api

import (
    "bytes"
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "sync"
    "testing"
    "time"
)

func newTestServer(t *testing.T) *Server {
    t.Helper()
    s, err := NewServer()
    if err != nil { t.Fatalf("NewServer: %v", err) }
    return s
}

// createScenario POSTs body as a planner and returns the scenario id.
func createScenario(t *testing.T, s *Server, body string) string {
    t.Helper()
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/scenarios", bytes.NewReader([]byte(body)))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "planner")
    s.ScenariosHandler(rr, req)
    if rr.Code != http.StatusCreated { t.Fatalf("create scenario: %d body=%s", rr.Code, rr.Body.String()) }
    var sc struct{ ID string `json:"id"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &sc); err != nil { t.Fatalf("decode scenario: %v", err) }
    if sc.ID == "" { t.Fatal("scenario id missing") }
    return sc.ID
}

// solvePlan POSTs a solve request and returns the decoded plan body.
func solvePlan(t *testing.T, s *Server, scenarioID, body string) map[string]any {
    t.Helper()
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/scenarios/"+scenarioID+"/plans", bytes.NewReader([]byte(body)))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "planner")
    s.ScenarioByIDHandler(rr, req)
    if rr.Code != http.StatusCreated { t.Fatalf("solve: %d body=%s", rr.Code, rr.Body.String()) }
    var pl map[string]any
    if err := json.Unmarshal(rr.Body.Bytes(), &pl); err != nil { t.Fatalf("decode plan: %v", err) }
    return pl
}

// A line of three sites where only the middle one bridges the ends:
// ends cover one water area each, the direct end-to-end hop is out of
// comm range.
const bridgeScenario = `{"name":"bridge","sites":[{"x":0,"y":0},{"x":50,"y":0},{"x":100,"y":0}],"waterAreas":[{"x":0,"y":10},{"x":100,"y":10}],"numRainZones":0}`
const bridgeSolve = `{"sensorRangeM":20,"commRangeM":60,"capexPerTurbine":1000,"opexPerTurbineYear":100,"horizonYears":10,"seed":7}`

func TestHealthReady(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
    if rr.Code != 200 { t.Fatalf("health: got %d", rr.Code) }
    rr = httptest.NewRecorder()
    s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
    if rr.Code != 200 { t.Fatalf("ready: got %d", rr.Code) }
}

func TestScenarioCreateGeneratesGeometry(t *testing.T) {
    s := newTestServer(t)
    body := []byte(`{"name":"demo","seed":42,"numSites":6,"numWaterAreas":4,"numRainZones":2}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/scenarios", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "planner")
    s.ScenariosHandler(rr, req)
    if rr.Code != http.StatusCreated { t.Fatalf("create: %d body=%s", rr.Code, rr.Body.String()) }
    var sc struct {
        ID     string           `json:"id"`
        Seed   int64            `json:"seed"`
        Sites  []map[string]any `json:"sites"`
        Areas  []map[string]any `json:"waterAreas"`
        ZoneOf []int            `json:"zoneOf"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &sc); err != nil { t.Fatalf("decode: %v", err) }
    if len(sc.Sites) != 6 { t.Fatalf("sites: got %d, want 6", len(sc.Sites)) }
    if len(sc.Areas) != 4 { t.Fatalf("waterAreas: got %d, want 4", len(sc.Areas)) }
    if len(sc.ZoneOf) != 6 { t.Fatalf("zoneOf: got %d entries, want 6", len(sc.ZoneOf)) }
    if sc.ZoneOf[0] != 0 || sc.ZoneOf[1] != 1 { t.Fatalf("zone seeding broken: %v", sc.ZoneOf) }
    if sc.Seed != 42 { t.Fatalf("seed: got %d, want 42", sc.Seed) }

    // Same seed must reproduce the exact geometry.
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/v1/scenarios", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "planner")
    s.ScenariosHandler(rr, req)
    var sc2 struct{ Sites []map[string]any `json:"sites"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &sc2)
    if sc2.Sites[0]["x"] != sc.Sites[0]["x"] || sc2.Sites[0]["y"] != sc.Sites[0]["y"] {
        t.Fatalf("seeded generation not reproducible: %v vs %v", sc2.Sites[0], sc.Sites[0])
    }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/scenarios?limit=10", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.ScenariosHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("list: %d", rr.Code) }
    var idx struct{ Items []map[string]any `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &idx); err != nil { t.Fatalf("decode list: %v", err) }
    if len(idx.Items) != 2 { t.Fatalf("list items: got %d, want 2", len(idx.Items)) }
}

func TestScenarioCreateValidation(t *testing.T) {
    s := newTestServer(t)
    for _, body := range []string{
        `{"numSites":-1,"numWaterAreas":2,"numRainZones":0}`,
        `{"numRainZones":0}`,
        `{"numSites":4,"numRainZones":0}`,
        `{"sites":[{"x":0,"y":0}],"waterAreas":[{"x":1,"y":1}],"zoneOf":[0,1],"numRainZones":2}`,
    } {
        rr := httptest.NewRecorder()
        req := httptest.NewRequest(http.MethodPost, "/v1/scenarios", bytes.NewReader([]byte(body)))
        req.Header.Set("Content-Type", "application/json")
        req.Header.Set("X-Role", "planner")
        s.ScenariosHandler(rr, req)
        if rr.Code != http.StatusBadRequest { t.Fatalf("body %s: got %d, want 400", body, rr.Code) }
    }
}

func TestScenarioCreateForbiddenForViewer(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/scenarios", bytes.NewReader([]byte(bridgeScenario)))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Role", "viewer")
    s.ScenariosHandler(rr, req)
    if rr.Code != http.StatusForbidden { t.Fatalf("viewer create: got %d, want 403", rr.Code) }
}

func TestSolveBridgeOptimal(t *testing.T) {
    s := newTestServer(t)
    sid := createScenario(t, s, bridgeScenario)
    pl := solvePlan(t, s, sid, bridgeSolve)

    if pl["status"] != "optimal" { t.Fatalf("status: %v", pl["status"]) }
    if pl["turbineCount"].(float64) != 3 { t.Fatalf("turbineCount: %v, want 3", pl["turbineCount"]) }
    if pl["linkCount"].(float64) != 2 { t.Fatalf("linkCount: %v, want 2", pl["linkCount"]) }
    // 3 * (1000 capex + 10y * 100 opex) = 6000
    if pl["totalCost"].(float64) != 6000 { t.Fatalf("totalCost: %v, want 6000", pl["totalCost"]) }

    // The stored plan must be readable back.
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/plans/"+pl["id"].(string), nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.PlanByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("get plan: %d", rr.Code) }
}

func TestSolveDisconnectedInfeasible(t *testing.T) {
    s := newTestServer(t)
    sid := createScenario(t, s, `{"sites":[{"x":0,"y":0},{"x":1000,"y":0}],"waterAreas":[{"x":0,"y":5},{"x":1000,"y":5}],"numRainZones":0}`)
    pl := solvePlan(t, s, sid, `{"sensorRangeM":10,"commRangeM":50,"seed":1}`)
    if pl["status"] != "infeasible" { t.Fatalf("status: %v, want infeasible", pl["status"]) }
    if _, ok := pl["selectedSites"]; ok { t.Fatalf("infeasible plan should carry no sites: %v", pl["selectedSites"]) }
}

func TestSolveValidationAndRBAC(t *testing.T) {
    s := newTestServer(t)
    sid := createScenario(t, s, bridgeScenario)

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/scenarios/"+sid+"/plans", bytes.NewReader([]byte(`{"sensorRangeM":-5}`)))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "planner")
    s.ScenarioByIDHandler(rr, req)
    if rr.Code != http.StatusBadRequest { t.Fatalf("negative range: got %d, want 400", rr.Code) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/v1/scenarios/"+sid+"/plans", bytes.NewReader([]byte(`{"solver":"cplex"}`)))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "planner")
    s.ScenarioByIDHandler(rr, req)
    if rr.Code != http.StatusBadRequest { t.Fatalf("unknown solver: got %d, want 400", rr.Code) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/v1/scenarios/"+sid+"/plans", bytes.NewReader([]byte(bridgeSolve)))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "viewer")
    s.ScenarioByIDHandler(rr, req)
    if rr.Code != http.StatusForbidden { t.Fatalf("viewer solve: got %d, want 403", rr.Code) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/v1/scenarios/no-such-id/plans", bytes.NewReader([]byte(bridgeSolve)))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "planner")
    s.ScenarioByIDHandler(rr, req)
    if rr.Code != http.StatusNotFound { t.Fatalf("missing scenario: got %d, want 404", rr.Code) }
}

func TestSolveEnqueuesWebhook(t *testing.T) {
    s := newTestServer(t)
    subBody := []byte(`{"url":"https://example.invalid/webhook","eventTypes":["plan.completed"],"secret":"shh"}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(subBody))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.SubscriptionsHandler(rr, req)
    if rr.Code != http.StatusCreated { t.Fatalf("create sub: %d", rr.Code) }

    sid := createScenario(t, s, bridgeScenario)
    pl := solvePlan(t, s, sid, bridgeSolve)
    if pl["status"] != "optimal" { t.Fatalf("status: %v", pl["status"]) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/admin/webhook-deliveries?limit=5", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.WebhookDeliveriesHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("deliveries: %d", rr.Code) }
    var dres struct{ Items []map[string]any `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &dres); err != nil { t.Fatalf("decode deliveries: %v", err) }
    if len(dres.Items) == 0 { t.Fatal("expected at least one delivery") }
    if et, _ := dres.Items[0]["eventType"].(string); et != "plan.completed" {
        t.Fatalf("eventType: %v, want plan.completed", dres.Items[0]["eventType"])
    }
}

func TestSolveRecordsStats(t *testing.T) {
    s := newTestServer(t)
    sid := createScenario(t, s, bridgeScenario)
    _ = solvePlan(t, s, sid, bridgeSolve)

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/admin/solve-stats?scenarioId="+sid, nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.SolveStatsHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("solve-stats: %d", rr.Code) }
    var sres struct{ Items []map[string]any `json:"items"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &sres); err != nil { t.Fatalf("decode: %v", err) }
    if len(sres.Items) == 0 { t.Fatal("expected solve stats") }
    if sres.Items[0]["backend"] != "bnb" { t.Fatalf("backend: %v", sres.Items[0]["backend"]) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/admin/plans/stats", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.PlanStatsHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("plan stats: %d", rr.Code) }
    var stats map[string]any
    if err := json.Unmarshal(rr.Body.Bytes(), &stats); err != nil { t.Fatalf("decode stats: %v", err) }
    if stats["plans"].(float64) < 1 { t.Fatalf("plans counted: %v", stats["plans"]) }
}

func TestLatestPlan(t *testing.T) {
    s := newTestServer(t)
    sid := createScenario(t, s, bridgeScenario)
    pl := solvePlan(t, s, sid, bridgeSolve)

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+sid+"/plans/latest", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.ScenarioByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("latest: %d", rr.Code) }
    var got struct{ ID string `json:"id"` }
    _ = json.Unmarshal(rr.Body.Bytes(), &got)
    if got.ID != pl["id"].(string) { t.Fatalf("latest id: %s, want %s", got.ID, pl["id"]) }

    // Drop the cache; the store fallback must find the same plan.
    s.Latest = NewLatestPlanCache()
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+sid+"/plans/latest", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.ScenarioByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("latest after cache drop: %d", rr.Code) }
    _ = json.Unmarshal(rr.Body.Bytes(), &got)
    if got.ID != pl["id"].(string) { t.Fatalf("fallback latest id: %s, want %s", got.ID, pl["id"]) }
}

func TestScenarioRelations(t *testing.T) {
    s := newTestServer(t)
    sid := createScenario(t, s, bridgeScenario)

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+sid+"/relations?sensorRangeM=20&commRangeM=60", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.ScenarioByIDHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("relations: %d body=%s", rr.Code, rr.Body.String()) }
    var rel struct {
        Sites     int     `json:"sites"`
        Coverage  [][]int `json:"coverage"`
        Adjacency [][]int `json:"adjacency"`
        Repaired  int     `json:"repairedAreas"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &rel); err != nil { t.Fatalf("decode: %v", err) }
    if rel.Sites != 3 { t.Fatalf("sites: %d", rel.Sites) }
    if len(rel.Coverage) != 2 || len(rel.Coverage[0]) != 1 || rel.Coverage[0][0] != 0 {
        t.Fatalf("coverage: %v", rel.Coverage)
    }
    if len(rel.Adjacency[1]) != 2 { t.Fatalf("middle site adjacency: %v", rel.Adjacency[1]) }
    if rel.Repaired != 0 { t.Fatalf("repairedAreas: %d", rel.Repaired) }
}

func TestPlannerConfigMerge(t *testing.T) {
    s := newTestServer(t)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPut, "/v1/admin/planner/config", bytes.NewReader([]byte(`{"config":{"sensorRangeM":55}}`)))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "admin")
    s.AdminPlannerConfigHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("put config: %d", rr.Code) }

    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodGet, "/v1/planner/config", nil)
    req.Header.Set("X-Tenant-Id", "t_test")
    s.PlannerConfigHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("get config: %d", rr.Code) }
    var cres struct{ Config map[string]any `json:"config"` }
    if err := json.Unmarshal(rr.Body.Bytes(), &cres); err != nil { t.Fatalf("decode: %v", err) }
    if cres.Config["sensorRangeM"].(float64) != 55 { t.Fatalf("sensorRangeM: %v", cres.Config["sensorRangeM"]) }
    if cres.Config["solver"] != "bnb" { t.Fatalf("solver default: %v", cres.Config["solver"]) }

    // The override must reach solves that leave the field unset.
    sid := createScenario(t, s, bridgeScenario)
    pl := solvePlan(t, s, sid, `{"commRangeM":60,"seed":7}`)
    if pl["sensorRangeM"].(float64) != 55 { t.Fatalf("solve did not pick up config: %v", pl["sensorRangeM"]) }
}

func TestQueryEndpoint(t *testing.T) {
    s := newTestServer(t)
    sid := createScenario(t, s, bridgeScenario)

    body := []byte(`{"query":"query { scenarios { id } }"}`)
    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    s.QueryHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("query scenarios: %d", rr.Code) }
    var qres struct {
        Data struct {
            Scenarios []struct{ ID string `json:"id"` } `json:"scenarios"`
        } `json:"data"`
    }
    if err := json.Unmarshal(rr.Body.Bytes(), &qres); err != nil { t.Fatalf("decode: %v", err) }
    if len(qres.Data.Scenarios) != 1 || qres.Data.Scenarios[0].ID != sid {
        t.Fatalf("scenarios: %+v", qres.Data.Scenarios)
    }

    qb, _ := json.Marshal(map[string]any{
        "query":     "query($id: ID!) { scenario(id: $id) }",
        "variables": map[string]any{"id": sid},
    })
    rr = httptest.NewRecorder()
    req = httptest.NewRequest(http.MethodPost, "/query", bytes.NewReader(qb))
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Tenant-Id", "t_test")
    s.QueryHandler(rr, req)
    if rr.Code != 200 { t.Fatalf("query scenario: %d", rr.Code) }
}

func TestSolveRateLimited(t *testing.T) {
    t.Setenv("RATE_RPS", "0.001")
    t.Setenv("RATE_BURST", "1")
    s := newTestServer(t)
    sid := createScenario(t, s, bridgeScenario)
    _ = solvePlan(t, s, sid, bridgeSolve)

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodPost, "/v1/scenarios/"+sid+"/plans", bytes.NewReader([]byte(bridgeSolve)))
    req.Header.Set("X-Tenant-Id", "t_test")
    req.Header.Set("X-Role", "planner")
    s.ScenarioByIDHandler(rr, req)
    if rr.Code != http.StatusTooManyRequests { t.Fatalf("second solve: got %d, want 429", rr.Code) }
}

// sseRecorder is a minimal ResponseWriter that implements http.Flusher
// and captures writes for SSE tests. The handler writes from its own
// goroutine while the test polls, hence the lock.
type sseRecorder struct {
    mu   sync.Mutex
    hdr  http.Header
    buf  bytes.Buffer
    code int
}

func (r *sseRecorder) Header() http.Header { if r.hdr == nil { r.hdr = http.Header{} }; return r.hdr }
func (r *sseRecorder) WriteHeader(c int) { r.code = c }
func (r *sseRecorder) Write(p []byte) (int, error) { r.mu.Lock(); defer r.mu.Unlock(); return r.buf.Write(p) }
func (r *sseRecorder) Flush() {}

func (r *sseRecorder) body() string { r.mu.Lock(); defer r.mu.Unlock(); return r.buf.String() }

func TestScenarioEventsSSE(t *testing.T) {
    s := newTestServer(t)
    sid := createScenario(t, s, bridgeScenario)

    sseReq := httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+sid+"/events/stream", nil)
    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    sseReq = sseReq.WithContext(ctx)
    sseReq.Header.Set("X-Tenant-Id", "t_test")

    rec := &sseRecorder{}
    done := make(chan struct{})
    go func() {
        s.ScenarioByIDHandler(rec, sseReq)
        close(done)
    }()

    // Give the handler time to subscribe and send the first heartbeat.
    time.Sleep(50 * time.Millisecond)
    s.Broker.Publish(sid, SSEEvent{Type: "plan.completed", Data: map[string]any{"scenarioId": sid}})

    deadline := time.Now().Add(500 * time.Millisecond)
    for time.Now().Before(deadline) {
        if strings.Contains(rec.body(), "event: plan.completed") {
            break
        }
        time.Sleep(10 * time.Millisecond)
    }
    if !strings.Contains(rec.body(), "event: plan.completed") {
        t.Fatalf("SSE did not contain expected event. Body: %s", rec.body())
    }
    if !strings.Contains(rec.body(), "event: heartbeat") {
        t.Fatalf("SSE missing initial heartbeat. Body: %s", rec.body())
    }
    cancel()
    select {
    case <-done:
    case <-time.After(200 * time.Millisecond):
        t.Fatal("handler did not exit after cancel")
    }
}

func TestTenantIsolation(t *testing.T) {
    s := newTestServer(t)
    sid := createScenario(t, s, bridgeScenario)

    rr := httptest.NewRecorder()
    req := httptest.NewRequest(http.MethodGet, "/v1/scenarios/"+sid, nil)
    req.Header.Set("X-Tenant-Id", "t_other")
    s.ScenarioByIDHandler(rr, req)
    if rr.Code != http.StatusNotFound { t.Fatalf("cross-tenant get: got %d, want 404", rr.Code) }
}
