package model

// Shared DTOs for the HTTP API and the stores.

type Point struct {
    X float64 `json:"x"`
    Y float64 `json:"y"`
}

// ScenarioInput creates a scenario. Explicit geometry wins; when Sites
// is empty the server generates NumSites/NumWaterAreas points from the
// seed.
type ScenarioInput struct {
    Name          string  `json:"name,omitempty"`
    Seed          int64   `json:"seed,omitempty"`
    NumSites      int     `json:"numSites,omitempty"`
    NumWaterAreas int     `json:"numWaterAreas,omitempty"`
    NumRainZones  int     `json:"numRainZones"`
    FieldWidthM   float64 `json:"fieldWidthM,omitempty"`
    FieldHeightM  float64 `json:"fieldHeightM,omitempty"`

    Sites      []Point `json:"sites,omitempty"`
    WaterAreas []Point `json:"waterAreas,omitempty"`
    ZoneOf     []int   `json:"zoneOf,omitempty"`
}

type Scenario struct {
    ID           string  `json:"id"`
    TenantID     string  `json:"tenantId"`
    Name         string  `json:"name,omitempty"`
    Seed         int64   `json:"seed,omitempty"`
    NumRainZones int     `json:"numRainZones"`
    Sites        []Point `json:"sites"`
    WaterAreas   []Point `json:"waterAreas"`
    ZoneOf       []int   `json:"zoneOf,omitempty"`
    CreatedAt    string  `json:"createdAt,omitempty"`
}

// PlanRequest asks for one solve of a scenario.
type PlanRequest struct {
    SensorRangeM       float64 `json:"sensorRangeM"`
    CommRangeM         float64 `json:"commRangeM"`
    CapexPerTurbine    float64 `json:"capexPerTurbine,omitempty"`
    OpexPerTurbineYear float64 `json:"opexPerTurbineYear,omitempty"`
    HorizonYears       int     `json:"horizonYears,omitempty"`
    TimeBudgetMs       int     `json:"timeBudgetMs,omitempty"`
    Solver             string  `json:"solver,omitempty"`
    Seed               int64   `json:"seed,omitempty"`
}

// Plan is a stored solve result. Site and link sets are only present
// when Status is "optimal".
type Plan struct {
    ID            string   `json:"id"`
    TenantID      string   `json:"tenantId"`
    ScenarioID    string   `json:"scenarioId"`
    Status        string   `json:"status"`
    SelectedSites []int    `json:"selectedSites,omitempty"`
    ActiveLinks   [][2]int `json:"activeLinks,omitempty"`
    TurbineCount  int      `json:"turbineCount"`
    LinkCount     int      `json:"linkCount"`
    Capex         float64  `json:"capex,omitempty"`
    OpexAnnual    float64  `json:"opexAnnual,omitempty"`
    TotalCost     float64  `json:"totalCost,omitempty"`

    SensorRangeM  float64 `json:"sensorRangeM,omitempty"`
    CommRangeM    float64 `json:"commRangeM,omitempty"`
    Solver        string  `json:"solver,omitempty"`
    Seed          int64   `json:"seed,omitempty"`
    ElapsedMs     int64   `json:"elapsedMs,omitempty"`
    ModelVars     int     `json:"modelVars,omitempty"`
    ModelRows     int     `json:"modelRows,omitempty"`
    RepairedAreas int     `json:"repairedAreas,omitempty"`
    CreatedAt     string  `json:"createdAt,omitempty"`
}

type SubscriptionRequest struct {
    TenantID   string   `json:"tenantId"`
    URL        string   `json:"url"`
    EventTypes []string `json:"eventTypes"`
    Secret     string   `json:"secret,omitempty"`
}

type Subscription struct {
    ID         string   `json:"id"`
    TenantID   string   `json:"tenantId"`
    URL        string   `json:"url"`
    EventTypes []string `json:"eventTypes"`
    Secret     string   `json:"secret,omitempty"`
    CreatedAt  string   `json:"createdAt,omitempty"`
}
