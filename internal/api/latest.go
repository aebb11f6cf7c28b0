package api

import (
    "sort"
    "strings"
    "sync"

    "github.com/ArvsGastardo/VWT-DLSU/internal/model"
)

// LatestPlanCache keeps the most recent plan per tenant and scenario so
// the latest endpoints answer without a store scan. The store stays the
// source of truth; this cache only skips the common read.
type LatestPlanCache struct {
    mu sync.Mutex
    m  map[string]model.Plan // key tenant|scenarioId
}

func NewLatestPlanCache() *LatestPlanCache {
    return &LatestPlanCache{m: map[string]model.Plan{}}
}

func (c *LatestPlanCache) key(tenantID, scenarioID string) string {
    return tenantID + "|" + scenarioID
}

// Put records p as the latest plan of its scenario. Plans without
// tenant or scenario ids are dropped.
func (c *LatestPlanCache) Put(p model.Plan) {
    if p.TenantID == "" || p.ScenarioID == "" { return }
    c.mu.Lock()
    c.m[c.key(p.TenantID, p.ScenarioID)] = p
    c.mu.Unlock()
}

func (c *LatestPlanCache) Get(tenantID, scenarioID string) (model.Plan, bool) {
    c.mu.Lock()
    defer c.mu.Unlock()
    p, ok := c.m[c.key(tenantID, scenarioID)]
    return p, ok
}

// ListByTenant returns the cached latest plan of every scenario the
// tenant has solved this process lifetime, ordered by scenario id.
func (c *LatestPlanCache) ListByTenant(tenantID string) []model.Plan {
    prefix := tenantID + "|"
    c.mu.Lock()
    out := make([]model.Plan, 0, 8)
    for k, p := range c.m {
        if strings.HasPrefix(k, prefix) {
            out = append(out, p)
        }
    }
    c.mu.Unlock()
    sort.Slice(out, func(i, j int) bool { return out[i].ScenarioID < out[j].ScenarioID })
    return out
}
