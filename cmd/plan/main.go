// Package main runs one siting solve from the command line, without
// the API server. Geometry comes from a CSV survey export or from the
// seeded generator.
package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log"
    "math/rand"
    "os"
    "sort"
    "strings"
    "time"

    "github.com/ArvsGastardo/VWT-DLSU/internal/field"
    "github.com/ArvsGastardo/VWT-DLSU/internal/integrations/csvfile"
    "github.com/ArvsGastardo/VWT-DLSU/internal/milp"
    "github.com/ArvsGastardo/VWT-DLSU/internal/milp/backend"
    "github.com/ArvsGastardo/VWT-DLSU/internal/model"
    "github.com/ArvsGastardo/VWT-DLSU/internal/siteplan"
)

func main() {
    var (
        importPath = flag.String("import", "", "CSV survey export (kind,label,x,y[,zone]); overrides the generator flags")
        sites      = flag.Int("sites", 24, "generated candidate sites")
        areas      = flag.Int("areas", 10, "generated water areas")
        zones      = flag.Int("zones", 4, "rain zones")
        seed       = flag.Int64("seed", 0, "layout and zone seed; 0 picks the clock")
        width      = flag.Float64("width", 1000, "field width in meters")
        height     = flag.Float64("height", 1000, "field height in meters")
        sensor     = flag.Float64("sensor", 80, "sensor range in meters")
        comm       = flag.Float64("comm", 120, "communication range in meters")
        capex      = flag.Float64("capex", 1650000, "capex per turbine")
        opex       = flag.Float64("opex", 45000, "opex per turbine per year")
        horizon    = flag.Int("horizon", 20, "planning horizon in years")
        budget     = flag.Duration("budget", 2*time.Second, "solve time budget")
        solver     = flag.String("solver", backend.DefaultName, "solver backend ("+strings.Join(backendNames(), ", ")+")")
        asJSON     = flag.Bool("json", false, "emit the outcome as JSON")
    )
    flag.Parse()

    if *seed == 0 {
        *seed = time.Now().UnixNano()
    }

    var layout field.Layout
    if *importPath != "" {
        in, err := csvfile.Adapter{}.Fetch(*importPath)
        if err != nil {
            log.Fatalf("import: %v", err)
        }
        layout = layoutFromInput(in)
    } else {
        rng := rand.New(rand.NewSource(*seed))
        layout = field.Generate(rng, *sites, *areas, *zones, *width, *height)
    }

    sv, ok := backend.Available()[*solver]
    if !ok {
        log.Fatalf("no backend named %q (have %s)", *solver, strings.Join(backendNames(), ", "))
    }

    prob := siteplan.Problem{
        Layout:      layout,
        SensorRange: *sensor,
        CommRange:   *comm,
        Costs: siteplan.Costs{
            CapexPerTurbine:    *capex,
            OpexPerTurbineYear: *opex,
            HorizonYears:       *horizon,
        },
    }

    ctx, cancel := context.WithTimeout(context.Background(), *budget)
    defer cancel()
    out, st, err := siteplan.Solve(ctx, sv, prob, *seed)
    if err != nil {
        log.Fatalf("solve: %v", err)
    }

    if *asJSON {
        enc := json.NewEncoder(os.Stdout)
        enc.SetIndent("", "  ")
        _ = enc.Encode(map[string]any{
            "status":        out.Status.String(),
            "selectedSites": out.SelectedSites,
            "activeLinks":   out.ActiveLinks,
            "turbineCount":  out.TurbineCount,
            "linkCount":     out.LinkCount,
            "capex":         out.Capex,
            "opexAnnual":    out.OpexAnnual,
            "totalCost":     out.TotalCost,
            "seed":          *seed,
            "backend":       st.Backend,
            "vars":          st.Vars,
            "rows":          st.Rows,
            "repairedAreas": st.RepairedAreas,
            "elapsedMs":     st.Elapsed.Milliseconds(),
        })
    } else {
        fmt.Printf("solved with %s in %s (%d vars, %d rows", st.Backend, st.Elapsed.Round(time.Millisecond), st.Vars, st.Rows)
        if st.RepairedAreas > 0 {
            fmt.Printf(", %d repaired areas", st.RepairedAreas)
        }
        fmt.Printf(")\nstatus: %s\n", out.Status)
        switch out.Status {
        case milp.StatusOptimal:
            fmt.Printf("turbines: %d of %d sites %v\n", out.TurbineCount, len(layout.Sites), out.SelectedSites)
            fmt.Printf("links:    %d", out.LinkCount)
            for _, l := range out.ActiveLinks {
                fmt.Printf("  %d-%d", l[0], l[1])
            }
            fmt.Println()
            fmt.Printf("cost:     %s capex, %s/yr opex, %s over %d years\n",
                money(out.Capex), money(out.OpexAnnual), money(out.TotalCost), *horizon)
        case milp.StatusInfeasible:
            fmt.Println("no connected covering set exists at these ranges; raise -comm or -sensor")
        case milp.StatusNotSolved:
            fmt.Println("time budget exhausted before a proven answer; raise -budget")
        }
    }
    if out.Status != milp.StatusOptimal {
        os.Exit(1)
    }
}

func layoutFromInput(in model.ScenarioInput) field.Layout {
    l := field.Layout{Zones: in.NumRainZones, ZoneOf: in.ZoneOf}
    for _, p := range in.Sites {
        l.Sites = append(l.Sites, field.Point{X: p.X, Y: p.Y})
    }
    for _, p := range in.WaterAreas {
        l.Areas = append(l.Areas, field.Point{X: p.X, Y: p.Y})
    }
    return l
}

func backendNames() []string {
    var names []string
    for name := range backend.Available() {
        names = append(names, name)
    }
    sort.Strings(names)
    return names
}

// money renders a peso amount with thousands grouping.
func money(v float64) string {
    s := fmt.Sprintf("%.0f", v)
    neg := strings.HasPrefix(s, "-")
    if neg {
        s = s[1:]
    }
    var b strings.Builder
    for i := 0; i < len(s); i++ {
        if i > 0 && (len(s)-i)%3 == 0 {
            b.WriteByte(',')
        }
        b.WriteByte(s[i])
    }
    amount := "₱" + b.String()
    if neg {
        amount = "-" + amount
    }
    return amount
}
