package store

import (
    "context"
    "sync"
    "time"

    "github.com/google/uuid"

    "github.com/ArvsGastardo/VWT-DLSU/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
    mu        sync.Mutex
    scenarios map[string]model.Scenario // id -> scenario
    scnTen    map[string][]string       // tenant -> scenario ids
    plans     map[string]model.Plan     // id -> plan
    plansTen  map[string][]string       // tenant -> plan ids
    subs      map[string][]model.Subscription
    // Webhooks queue state
    deliveries         map[string]*memDelivery // id -> delivery state
    deliveriesByTenant map[string][]string     // tenant -> delivery ids
    dlq                []*memDelivery
    solveMx            map[string]map[string][]map[string]any // tenant -> scenario -> items
    plannerCfg         map[string]map[string]any              // tenant -> config
}

func NewMemory() *Memory {
    return &Memory{
        scenarios: map[string]model.Scenario{},
        scnTen: map[string][]string{},
        plans: map[string]model.Plan{},
        plansTen: map[string][]string{},
        subs: map[string][]model.Subscription{},
        deliveries: map[string]*memDelivery{},
        deliveriesByTenant: map[string][]string{},
        dlq: []*memDelivery{},
        solveMx: map[string]map[string][]map[string]any{},
        plannerCfg: map[string]map[string]any{},
    }
}

// memDelivery augments WebhookDelivery with scheduling/metrics
type memDelivery struct {
    WebhookDelivery
    NextAttemptAt time.Time
    LastError     string
    ResponseCode  int
    LatencyMs     int
    DeliveredAt   *time.Time
}

func (m *Memory) CreateScenario(ctx context.Context, sc model.Scenario) (model.Scenario, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if sc.ID == "" { sc.ID = uuid.New().String() }
    if sc.CreatedAt == "" { sc.CreatedAt = time.Now().UTC().Format(time.RFC3339) }
    m.scenarios[sc.ID] = sc
    m.scnTen[sc.TenantID] = append(m.scnTen[sc.TenantID], sc.ID)
    return sc, nil
}

func (m *Memory) GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    sc, ok := m.scenarios[id]
    if !ok || sc.TenantID != tenantID { return model.Scenario{}, ErrNotFound }
    return sc, nil
}

func (m *Memory) ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.scnTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Scenario{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        out = append(out, m.scenarios[ids[i]])
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) DeleteScenario(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    sc, ok := m.scenarios[id]
    if !ok || sc.TenantID != tenantID { return ErrNotFound }
    delete(m.scenarios, id)
    ids := m.scnTen[tenantID]
    out := make([]string, 0, len(ids))
    for _, v := range ids { if v != id { out = append(out, v) } }
    m.scnTen[tenantID] = out
    return nil
}

func (m *Memory) CreatePlan(ctx context.Context, p model.Plan) (model.Plan, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if p.ID == "" { p.ID = uuid.New().String() }
    if p.CreatedAt == "" { p.CreatedAt = time.Now().UTC().Format(time.RFC3339) }
    m.plans[p.ID] = p
    m.plansTen[p.TenantID] = append(m.plansTen[p.TenantID], p.ID)
    return p, nil
}

func (m *Memory) GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    p, ok := m.plans[id]
    if !ok || p.TenantID != tenantID { return model.Plan{}, ErrNotFound }
    return p, nil
}

func (m *Memory) ListPlans(ctx context.Context, tenantID, scenarioID, status, cursor string, limit int) ([]model.Plan, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    ids := m.plansTen[tenantID]
    start := 0
    if cursor != "" {
        for i, id := range ids {
            if id == cursor { start = i + 1; break }
        }
    }
    if limit <= 0 { limit = 100 }
    out := []model.Plan{}
    var next string
    for i := start; i < len(ids) && len(out) < limit; i++ {
        p := m.plans[ids[i]]
        if scenarioID != "" && p.ScenarioID != scenarioID { continue }
        if status != "" && p.Status != status { continue }
        out = append(out, p)
        next = ids[i]
    }
    if len(out) < limit { next = "" }
    return out, next, nil
}

func (m *Memory) PlanStats(ctx context.Context, tenantID, scenarioID string) (map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    byStatus := map[string]int{}
    total := 0
    best := 0
    var elapsedSum int64
    for _, id := range m.plansTen[tenantID] {
        p := m.plans[id]
        if scenarioID != "" && p.ScenarioID != scenarioID { continue }
        byStatus[p.Status]++
        total++
        elapsedSum += p.ElapsedMs
        if p.Status == "optimal" && (best == 0 || p.TurbineCount < best) { best = p.TurbineCount }
    }
    avg := int64(0)
    if total > 0 { avg = elapsedSum / int64(total) }
    return map[string]any{"plans": total, "byStatus": byStatus, "bestTurbineCount": best, "avgElapsedMs": avg}, nil
}

func (m *Memory) SaveSolveStats(ctx context.Context, tenantID, scenarioID, backend string, stats map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    if m.solveMx[tenantID] == nil { m.solveMx[tenantID] = map[string][]map[string]any{} }
    items := m.solveMx[tenantID][scenarioID]
    found := false
    for i := range items {
        if items[i]["backend"] == backend { items[i] = stats; items[i]["backend"] = backend; found = true; break }
    }
    if !found { stats["backend"] = backend; items = append(items, stats) }
    m.solveMx[tenantID][scenarioID] = items
    return nil
}

func (m *Memory) ListSolveStats(ctx context.Context, tenantID, scenarioID, backend string) ([]map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    items := m.solveMx[tenantID][scenarioID]
    if backend == "" { return append([]map[string]any(nil), items...), nil }
    out := []map[string]any{}
    for _, it := range items { if it["backend"] == backend { out = append(out, it) } }
    return out, nil
}

func (m *Memory) GetPlannerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    if cfg, ok := m.plannerCfg[tenantID]; ok { return cfg, nil }
    return nil, nil
}

func (m *Memory) SavePlannerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    m.mu.Lock(); defer m.mu.Unlock()
    m.plannerCfg[tenantID] = cfg
    return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, EventTypes: req.EventTypes, Secret: req.Secret, CreatedAt: time.Now().UTC().Format(time.RFC3339)}
    m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
    return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    var out []model.Subscription
    for _, s := range m.subs[tenantID] {
        for _, e := range s.EventTypes { if e == eventType { out = append(out, s); break } }
    }
    return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    list := m.subs[tenantID]
    start := 0
    if cursor != "" {
        for i := range list { if list[i].ID == cursor { start = i+1; break } }
    }
    if limit <= 0 { limit = 100 }
    end := start + limit
    if end > len(list) { end = len(list) }
    items := append([]model.Subscription(nil), list[start:end]...)
    next := ""
    if end < len(list) { next = list[end-1].ID }
    return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    arr := m.subs[tenantID]
    out := make([]model.Subscription, 0, len(arr))
    found := false
    for _, s := range arr {
        if s.ID == id { found = true; continue }
        out = append(out, s)
    }
    if !found { return ErrNotFound }
    m.subs[tenantID] = out
    return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    id := uuid.New().String()
    d := &memDelivery{WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending", Attempts: 0}, NextAttemptAt: time.Now()}
    m.deliveries[id] = d
    m.deliveriesByTenant[tenantID] = append(m.deliveriesByTenant[tenantID], id)
    return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    now := time.Now()
    out := []WebhookDelivery{}
    for _, id := range m.iterDeliveryIDs() {
        d := m.deliveries[id]
        if d == nil { continue }
        if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
            out = append(out, d.WebhookDelivery)
            if limit > 0 && len(out) >= limit { break }
        }
    }
    return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return nil }
    d.Attempts++
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    if success {
        d.Status = "delivered"
        now := time.Now()
        d.DeliveredAt = &now
    } else {
        d.Status = "retry"
        d.LastError = lastError
        if nextAttemptAt != nil { d.NextAttemptAt = *nextAttemptAt } else { d.NextAttemptAt = time.Now().Add(1 * time.Minute) }
    }
    return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil { return nil }
    d.Status = "failed"
    d.LastError = lastError
    d.ResponseCode = responseCode
    d.LatencyMs = latencyMs
    m.dlq = append(m.dlq, d)
    return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []map[string]any{}
    ids := m.deliveriesByTenant[tenantID]
    for _, id := range ids {
        d := m.deliveries[id]
        if d == nil { continue }
        if status == "" || d.Status == status {
            item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
            if !d.NextAttemptAt.IsZero() { item["nextAttemptAt"] = d.NextAttemptAt }
            if d.LastError != "" { item["lastError"] = d.LastError }
            out = append(out, item)
        }
    }
    return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    d := m.deliveries[id]
    if d == nil || d.TenantID != tenantID { return ErrNotFound }
    d.Status = "pending"
    d.NextAttemptAt = time.Now()
    return nil
}

func (m *Memory) ListWebhookDLQ(ctx context.Context, tenantID, eventType, cursor string, limit int) ([]map[string]any, string, error) {
    m.mu.Lock(); defer m.mu.Unlock()
    out := []map[string]any{}
    for _, d := range m.dlq {
        if d.TenantID != tenantID { continue }
        if eventType != "" && d.EventType != eventType { continue }
        out = append(out, map[string]any{"id": d.ID, "eventType": d.EventType, "attempts": d.Attempts, "url": d.URL, "lastError": d.LastError, "responseCode": d.ResponseCode})
    }
    return out, "", nil
}

func (m *Memory) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
    m.mu.Lock(); defer m.mu.Unlock()
    keep := make([]*memDelivery, 0, len(m.dlq))
    found := false
    for _, d := range m.dlq {
        if d.ID == id && d.TenantID == tenantID {
            d.Status = "pending"
            d.LastError = ""
            d.NextAttemptAt = time.Now()
            found = true
            continue
        }
        keep = append(keep, d)
    }
    if !found { return ErrNotFound }
    m.dlq = keep
    return nil
}

// helper: iterate delivery IDs by tenant order
func (m *Memory) iterDeliveryIDs() []string {
    ids := []string{}
    for _, lst := range m.deliveriesByTenant {
        ids = append(ids, lst...)
    }
    return ids
}
