package store

import (
    "context"
    "crypto/sha256"
    "database/sql"
    "encoding/hex"
    "encoding/json"
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"
    _ "github.com/jackc/pgx/v5/stdlib"

    "github.com/ArvsGastardo/VWT-DLSU/internal/model"
)

// Postgres implements Store over database/sql with the pgx driver.
type Postgres struct {
    db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
    db, err := sql.Open("pgx", dsn)
    if err != nil { return nil, err }
    if err := db.Ping(); err != nil { return nil, err }
    return &Postgres{db: db}, nil
}

func (p *Postgres) Ping(ctx context.Context) error {
    return p.db.PingContext(ctx)
}

// MigrateDir applies every .sql file in dir in name order. Scripts are
// plain DDL and carry their own IF NOT EXISTS guards, so reruns are safe.
func (p *Postgres) MigrateDir(dir string) error {
    entries, err := os.ReadDir(dir)
    if err != nil { return err }
    var names []string
    for _, e := range entries {
        if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") { continue }
        names = append(names, e.Name())
    }
    sort.Strings(names)
    for _, n := range names {
        b, err := os.ReadFile(filepath.Join(dir, n))
        if err != nil { return err }
        if _, err := p.db.Exec(string(b)); err != nil { return fmt.Errorf("migrate %s: %w", n, err) }
    }
    return nil
}

// Scenarios

func (p *Postgres) CreateScenario(ctx context.Context, sc model.Scenario) (model.Scenario, error) {
    if sc.ID == "" { sc.ID = uuid.New().String() }
    sites, _ := json.Marshal(sc.Sites)
    areas, _ := json.Marshal(sc.WaterAreas)
    zones, _ := json.Marshal(sc.ZoneOf)
    created := time.Now().UTC()
    _, err := p.db.ExecContext(ctx, `INSERT INTO scenarios (id, tenant_id, name, seed, rain_zones, sites, water_areas, zone_of, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
        sc.ID, sc.TenantID, nullIfEmpty(sc.Name), sc.Seed, sc.NumRainZones, sites, areas, zones, created)
    if err != nil { return model.Scenario{}, err }
    sc.CreatedAt = created.Format(time.RFC3339)
    return sc, nil
}

func (p *Postgres) GetScenario(ctx context.Context, tenantID, id string) (model.Scenario, error) {
    row := p.db.QueryRowContext(ctx, `SELECT id::text, COALESCE(name,''), seed, rain_zones, sites, water_areas, zone_of, created_at
        FROM scenarios WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    var sc model.Scenario
    var sites, areas, zones []byte
    var created time.Time
    if err := row.Scan(&sc.ID, &sc.Name, &sc.Seed, &sc.NumRainZones, &sites, &areas, &zones, &created); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Scenario{}, ErrNotFound }
        return model.Scenario{}, err
    }
    sc.TenantID = tenantID
    _ = json.Unmarshal(sites, &sc.Sites)
    _ = json.Unmarshal(areas, &sc.WaterAreas)
    _ = json.Unmarshal(zones, &sc.ZoneOf)
    sc.CreatedAt = created.UTC().Format(time.RFC3339)
    return sc, nil
}

func (p *Postgres) ListScenarios(ctx context.Context, tenantID, cursor string, limit int) ([]model.Scenario, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    q := `SELECT id::text, COALESCE(name,''), seed, rain_zones, sites, water_areas, zone_of, created_at FROM scenarios WHERE tenant_id=$1`
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, q+` AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, q+` ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Scenario{}
    var last string
    for rows.Next() {
        var sc model.Scenario
        var sites, areas, zones []byte
        var created time.Time
        if err := rows.Scan(&sc.ID, &sc.Name, &sc.Seed, &sc.NumRainZones, &sites, &areas, &zones, &created); err != nil { return nil, "", err }
        sc.TenantID = tenantID
        _ = json.Unmarshal(sites, &sc.Sites)
        _ = json.Unmarshal(areas, &sc.WaterAreas)
        _ = json.Unmarshal(zones, &sc.ZoneOf)
        sc.CreatedAt = created.UTC().Format(time.RFC3339)
        out = append(out, sc)
        last = sc.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteScenario(ctx context.Context, tenantID, id string) error {
    // Plans reference scenarios with ON DELETE CASCADE.
    res, err := p.db.ExecContext(ctx, `DELETE FROM scenarios WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// Plans

func (p *Postgres) CreatePlan(ctx context.Context, pl model.Plan) (model.Plan, error) {
    // The handler may assign the id up front so events can carry it.
    if pl.ID == "" { pl.ID = uuid.New().String() }
    sel, _ := json.Marshal(pl.SelectedSites)
    links, _ := json.Marshal(pl.ActiveLinks)
    created := time.Now().UTC()
    _, err := p.db.ExecContext(ctx, `INSERT INTO plans (id, tenant_id, scenario_id, status, selected_sites, active_links,
        turbine_count, link_count, capex, opex_annual, total_cost, sensor_range_m, comm_range_m, solver, seed,
        elapsed_ms, model_vars, model_rows, repaired_areas, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
        pl.ID, pl.TenantID, pl.ScenarioID, pl.Status, sel, links,
        pl.TurbineCount, pl.LinkCount, pl.Capex, pl.OpexAnnual, pl.TotalCost, pl.SensorRangeM, pl.CommRangeM, nullIfEmpty(pl.Solver), pl.Seed,
        pl.ElapsedMs, pl.ModelVars, pl.ModelRows, pl.RepairedAreas, created)
    if err != nil { return model.Plan{}, err }
    pl.CreatedAt = created.Format(time.RFC3339)
    return pl, nil
}

func (p *Postgres) GetPlan(ctx context.Context, tenantID, id string) (model.Plan, error) {
    row := p.db.QueryRowContext(ctx, `SELECT id::text, scenario_id::text, status, selected_sites, active_links,
        turbine_count, link_count, capex, opex_annual, total_cost, sensor_range_m, comm_range_m, COALESCE(solver,''), seed,
        elapsed_ms, model_vars, model_rows, repaired_areas, created_at
        FROM plans WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    var pl model.Plan
    var sel, links []byte
    var created time.Time
    err := row.Scan(&pl.ID, &pl.ScenarioID, &pl.Status, &sel, &links,
        &pl.TurbineCount, &pl.LinkCount, &pl.Capex, &pl.OpexAnnual, &pl.TotalCost, &pl.SensorRangeM, &pl.CommRangeM, &pl.Solver, &pl.Seed,
        &pl.ElapsedMs, &pl.ModelVars, &pl.ModelRows, &pl.RepairedAreas, &created)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return model.Plan{}, ErrNotFound }
        return model.Plan{}, err
    }
    pl.TenantID = tenantID
    _ = json.Unmarshal(sel, &pl.SelectedSites)
    _ = json.Unmarshal(links, &pl.ActiveLinks)
    pl.CreatedAt = created.UTC().Format(time.RFC3339)
    return pl, nil
}

func (p *Postgres) ListPlans(ctx context.Context, tenantID, scenarioID, status, cursor string, limit int) ([]model.Plan, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    base := `SELECT id::text, scenario_id::text, status, selected_sites, active_links,
        turbine_count, link_count, capex, opex_annual, total_cost, sensor_range_m, comm_range_m, COALESCE(solver,''), seed,
        elapsed_ms, model_vars, model_rows, repaired_areas, created_at
        FROM plans WHERE tenant_id=$1`
    args := []any{tenantID}
    idx := 2
    if scenarioID != "" { base += ` AND scenario_id=$` + fmt.Sprint(idx); args = append(args, scenarioID); idx++ }
    if status != "" { base += ` AND status=$` + fmt.Sprint(idx); args = append(args, status); idx++ }
    if cursor != "" { base += ` AND id::text > $` + fmt.Sprint(idx); args = append(args, cursor); idx++ }
    base += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
    args = append(args, limit)
    rows, err := p.db.QueryContext(ctx, base, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []model.Plan{}
    var last string
    for rows.Next() {
        var pl model.Plan
        var sel, links []byte
        var created time.Time
        if err := rows.Scan(&pl.ID, &pl.ScenarioID, &pl.Status, &sel, &links,
            &pl.TurbineCount, &pl.LinkCount, &pl.Capex, &pl.OpexAnnual, &pl.TotalCost, &pl.SensorRangeM, &pl.CommRangeM, &pl.Solver, &pl.Seed,
            &pl.ElapsedMs, &pl.ModelVars, &pl.ModelRows, &pl.RepairedAreas, &created); err != nil { return nil, "", err }
        pl.TenantID = tenantID
        _ = json.Unmarshal(sel, &pl.SelectedSites)
        _ = json.Unmarshal(links, &pl.ActiveLinks)
        pl.CreatedAt = created.UTC().Format(time.RFC3339)
        out = append(out, pl)
        last = pl.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) PlanStats(ctx context.Context, tenantID, scenarioID string) (map[string]any, error) {
    base := `SELECT status, COUNT(*) AS cnt, COALESCE(SUM(elapsed_ms),0) AS elapsed,
        COALESCE(MIN(CASE WHEN status='optimal' THEN turbine_count END),0) AS best
        FROM plans WHERE tenant_id=$1`
    args := []any{tenantID}
    if scenarioID != "" { base += ` AND scenario_id=$2`; args = append(args, scenarioID) }
    base += ` GROUP BY status`
    rows, err := p.db.QueryContext(ctx, base, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    byStatus := map[string]int{}
    total := 0
    best := 0
    var elapsedSum int64
    for rows.Next() {
        var st string
        var cnt int
        var elapsed int64
        var minTurbines int
        if err := rows.Scan(&st, &cnt, &elapsed, &minTurbines); err != nil { return nil, err }
        byStatus[st] = cnt
        total += cnt
        elapsedSum += elapsed
        if st == "optimal" && minTurbines > 0 && (best == 0 || minTurbines < best) { best = minTurbines }
    }
    avg := int64(0)
    if total > 0 { avg = elapsedSum / int64(total) }
    return map[string]any{"plans": total, "byStatus": byStatus, "bestTurbineCount": best, "avgElapsedMs": avg}, nil
}

// Solve stats

func (p *Postgres) SaveSolveStats(ctx context.Context, tenantID, scenarioID, backend string, stats map[string]any) error {
    id := uuid.New().String()
    _, err := p.db.ExecContext(ctx, `INSERT INTO solve_stats (id, tenant_id, scenario_id, backend, stats, created_at) VALUES ($1,$2,$3,$4,$5,now())
        ON CONFLICT (tenant_id, scenario_id, backend) DO UPDATE SET stats=$5, created_at=now()`,
        id, tenantID, scenarioID, backend, toJSON(stats))
    return err
}

func (p *Postgres) ListSolveStats(ctx context.Context, tenantID, scenarioID, backend string) ([]map[string]any, error) {
    base := `SELECT backend, stats FROM solve_stats WHERE tenant_id=$1 AND scenario_id=$2`
    args := []any{tenantID, scenarioID}
    if backend != "" { base += ` AND backend=$3`; args = append(args, backend) }
    rows, err := p.db.QueryContext(ctx, base+` ORDER BY backend`, args...)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []map[string]any{}
    for rows.Next() {
        var be string
        var js []byte
        if err := rows.Scan(&be, &js); err != nil { return nil, err }
        item := map[string]any{}
        _ = json.Unmarshal(js, &item)
        item["backend"] = be
        out = append(out, item)
    }
    return out, nil
}

// Planner config

func (p *Postgres) GetPlannerConfig(ctx context.Context, tenantID string) (map[string]any, error) {
    row := p.db.QueryRowContext(ctx, `SELECT config FROM planner_config WHERE tenant_id=$1`, tenantID)
    var js []byte
    if err := row.Scan(&js); err != nil {
        if errors.Is(err, sql.ErrNoRows) { return nil, nil }
        return nil, err
    }
    var cfg map[string]any
    if err := json.Unmarshal(js, &cfg); err != nil { return nil, err }
    return cfg, nil
}

func (p *Postgres) SavePlannerConfig(ctx context.Context, tenantID string, cfg map[string]any) error {
    _, err := p.db.ExecContext(ctx, `INSERT INTO planner_config (tenant_id, config, updated_at) VALUES ($1, $2, now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=$2, updated_at=now()`, tenantID, toJSON(cfg))
    return err
}

// Subscriptions

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
    id := uuid.New().String()
    ev, _ := json.Marshal(req.EventTypes)
    created := time.Now().UTC()
    _, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
        id, req.TenantID, req.URL, ev, nullIfEmpty(req.Secret), created)
    if err != nil { return model.Subscription{}, err }
    return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, EventTypes: req.EventTypes, Secret: req.Secret, CreatedAt: created.Format(time.RFC3339)}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`,
        tenantID, fmt.Sprintf("[%q]", eventType))
    if err != nil { return nil, err }
    defer rows.Close()
    out := []model.Subscription{}
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.EventTypes)
        out = append(out, s)
    }
    return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    var rows *sql.Rows
    var err error
    if cursor != "" {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
    } else {
        rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, COALESCE(secret,''), events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
    }
    if err != nil { return nil, "", err }
    defer rows.Close()
    var out []model.Subscription
    var last string
    for rows.Next() {
        var s model.Subscription
        var ev []byte
        if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
        s.TenantID = tenantID
        _ = json.Unmarshal(ev, &s.EventTypes)
        out = append(out, s)
        last = s.ID
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// Webhook deliveries

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
    id := uuid.New().String()
    dedup := computeDedupKey(payload)
    _, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now(),$8)
        ON CONFLICT (tenant_id, event_type, url, dedup_key) DO NOTHING`,
        id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload, dedup)
    if err != nil { return "", err }
    return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
    if limit <= 0 { limit = 50 }
    rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
    if err != nil { return nil, err }
    defer rows.Close()
    out := []WebhookDelivery{}
    for rows.Next() {
        var d WebhookDelivery
        if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil { return nil, err }
        out = append(out, d)
    }
    return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
    if success {
        _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
        return err
    }
    next := time.Now().Add(1 * time.Minute)
    if nextAttemptAt != nil { next = *nextAttemptAt }
    _, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, next_attempt_at=$2, last_error=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
        id, next, lastError, responseCode, latencyMs)
    return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
    tx, err := p.db.BeginTx(ctx, nil)
    if err != nil { return err }
    defer func(){ _ = tx.Rollback() }()
    _, err = tx.ExecContext(ctx, `INSERT INTO webhook_dlq (id, tenant_id, delivery_id, event_type, url, secret, payload, last_error, attempts, response_code, latency_ms, created_at)
        SELECT gen_random_uuid(), tenant_id, id, event_type, url, secret, payload, $2, attempts, $3, $4, now() FROM webhook_deliveries WHERE id=$1`,
        id, lastError, responseCode, latencyMs)
    if err != nil { return err }
    _, err = tx.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`,
        id, lastError, responseCode, latencyMs)
    if err != nil { return err }
    return tx.Commit()
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    base := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
    args := []any{tenantID}
    idx := 2
    if status != "" { base += ` AND status=$` + fmt.Sprint(idx); args = append(args, status); idx++ }
    if cursor != "" { base += ` AND id::text > $` + fmt.Sprint(idx); args = append(args, cursor); idx++ }
    base += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
    args = append(args, limit)
    rows, err := p.db.QueryContext(ctx, base, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, typ, st, lastErr, url string
        var attempts int
        var nextAt sql.NullTime
        if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, "", err }
        m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
        if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
        if lastErr != "" { m["lastError"] = lastErr }
        out = append(out, m)
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
    res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    if err != nil { return err }
    if n, _ := res.RowsAffected(); n == 0 { return ErrNotFound }
    return nil
}

// Dead-letter queue

func (p *Postgres) ListWebhookDLQ(ctx context.Context, tenantID, eventType, cursor string, limit int) ([]map[string]any, string, error) {
    if limit <= 0 || limit > 500 { limit = 100 }
    base := `SELECT id::text, delivery_id::text, event_type, url, COALESCE(last_error,''), attempts, created_at, COALESCE(response_code,0), COALESCE(latency_ms,0) FROM webhook_dlq WHERE tenant_id=$1`
    args := []any{tenantID}
    idx := 2
    if eventType != "" { base += ` AND event_type=$` + fmt.Sprint(idx); args = append(args, eventType); idx++ }
    if cursor != "" { base += ` AND id::text > $` + fmt.Sprint(idx); args = append(args, cursor); idx++ }
    base += ` ORDER BY id LIMIT $` + fmt.Sprint(idx)
    args = append(args, limit)
    rows, err := p.db.QueryContext(ctx, base, args...)
    if err != nil { return nil, "", err }
    defer rows.Close()
    out := []map[string]any{}
    var last string
    for rows.Next() {
        var id, delID, et, url, errStr string
        var attempts int
        var created time.Time
        var code, latency int
        if err := rows.Scan(&id, &delID, &et, &url, &errStr, &attempts, &created, &code, &latency); err != nil { return nil, "", err }
        out = append(out, map[string]any{"id": id, "deliveryId": delID, "eventType": et, "url": url, "lastError": errStr, "attempts": attempts, "createdAt": created, "responseCode": code, "latencyMs": latency})
        last = id
    }
    next := ""
    if len(out) == limit { next = last }
    return out, next, nil
}

func (p *Postgres) RequeueWebhookDLQ(ctx context.Context, tenantID, id string) error {
    var delID, et, url, secret string
    var payload []byte
    err := p.db.QueryRowContext(ctx, `SELECT COALESCE(delivery_id::text,''), event_type, url, COALESCE(secret,''), payload FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(&delID, &et, &url, &secret, &payload)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) { return ErrNotFound }
        return err
    }
    // Revive the failed delivery in place when it still exists; the dedup
    // index would reject a fresh insert with the same payload.
    var revived int
    if delID != "" {
        res, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', attempts=0, next_attempt_at=now(), last_error=NULL, updated_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, delID)
        if err != nil { return err }
        if n, _ := res.RowsAffected(); n > 0 { revived = 1 }
    }
    if revived == 0 {
        if _, err := p.EnqueueWebhook(ctx, tenantID, delID, et, url, secret, payload); err != nil { return err }
    }
    _, err = p.db.ExecContext(ctx, `DELETE FROM webhook_dlq WHERE tenant_id=$1 AND id=$2`, tenantID, id)
    return err
}

// Helpers

func nullIfEmpty(s string) any { if s == "" { return nil }; return s }

func toJSON(m map[string]any) any {
    if m == nil { return nil }
    b, _ := json.Marshal(m)
    return b
}

// computeDedupKey keys a delivery by the event id when the payload is the
// standard event envelope, falling back to a digest of the raw bytes.
func computeDedupKey(payload []byte) string {
    var m map[string]any
    if json.Unmarshal(payload, &m) == nil {
        if v, ok := m["id"].(string); ok && v != "" {
            return v
        }
    }
    sum := sha256.Sum256(payload)
    return hex.EncodeToString(sum[:8])
}
