//go:build postgres_integration

package store

import (
    "os"
    "testing"

    "github.com/ArvsGastardo/VWT-DLSU/internal/model"
)

func TestPostgresConnectivityAndMigrate(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    if err := p.Ping(t.Context()); err != nil { t.Fatalf("Ping: %v", err) }
    if err := p.MigrateDir("../../db/migrations"); err != nil { t.Fatalf("MigrateDir: %v", err) }
    if _, _, err := p.ListScenarios(t.Context(), "t_demo", "", 1); err != nil { t.Fatalf("ListScenarios: %v", err) }
}

func TestPostgresScenarioPlanRoundTrip(t *testing.T) {
    dsn := os.Getenv("DATABASE_URL")
    if dsn == "" { t.Skip("DATABASE_URL not set; skipping integration test") }
    p, err := NewPostgres(dsn)
    if err != nil { t.Fatalf("NewPostgres: %v", err) }
    if err := p.MigrateDir("../../db/migrations"); err != nil { t.Fatalf("MigrateDir: %v", err) }

    sc, err := p.CreateScenario(t.Context(), model.Scenario{
        TenantID:     "t_it",
        Name:         "roundtrip",
        Seed:         42,
        NumRainZones: 2,
        Sites:        []model.Point{{X: 0, Y: 0}, {X: 10, Y: 0}},
        WaterAreas:   []model.Point{{X: 5, Y: 1}},
        ZoneOf:       []int{0, 1},
    })
    if err != nil { t.Fatalf("CreateScenario: %v", err) }
    defer func() { _ = p.DeleteScenario(t.Context(), "t_it", sc.ID) }()

    got, err := p.GetScenario(t.Context(), "t_it", sc.ID)
    if err != nil { t.Fatalf("GetScenario: %v", err) }
    if len(got.Sites) != 2 || len(got.WaterAreas) != 1 || got.NumRainZones != 2 { t.Fatalf("scenario did not round trip: %+v", got) }

    pl, err := p.CreatePlan(t.Context(), model.Plan{
        TenantID:      "t_it",
        ScenarioID:    sc.ID,
        Status:        "optimal",
        SelectedSites: []int{0, 1},
        ActiveLinks:   [][2]int{{0, 1}},
        TurbineCount:  2,
        LinkCount:     1,
        SensorRangeM:  5,
        CommRangeM:    12,
        Solver:        "bnb",
        ElapsedMs:     3,
    })
    if err != nil { t.Fatalf("CreatePlan: %v", err) }
    back, err := p.GetPlan(t.Context(), "t_it", pl.ID)
    if err != nil { t.Fatalf("GetPlan: %v", err) }
    if back.TurbineCount != 2 || back.LinkCount != 1 || len(back.ActiveLinks) != 1 { t.Fatalf("plan did not round trip: %+v", back) }

    stats, err := p.PlanStats(t.Context(), "t_it", sc.ID)
    if err != nil { t.Fatalf("PlanStats: %v", err) }
    if stats["plans"].(int) < 1 { t.Fatalf("expected at least one plan in stats: %+v", stats) }
}
