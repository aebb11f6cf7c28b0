package api

import (
	"fmt"

	"github.com/ArvsGastardo/VWT-DLSU/internal/model"
)

// maxScenarioSites bounds link variables at roughly 130k, which the
// branch and bound backend still enumerates within a request budget.
const maxScenarioSites = 512

func validateScenarioInput(in *model.ScenarioInput) error {
	if in.NumSites < 0 || in.NumWaterAreas < 0 || in.NumRainZones < 0 {
		return fmt.Errorf("numSites, numWaterAreas and numRainZones must be >= 0")
	}
	if in.Seed < 0 {
		return fmt.Errorf("seed must be >= 0")
	}
	sites := len(in.Sites)
	if sites == 0 {
		sites = in.NumSites
	}
	if sites == 0 {
		return fmt.Errorf("either sites or numSites is required")
	}
	if sites > maxScenarioSites {
		return fmt.Errorf("too many sites: %d (limit %d)", sites, maxScenarioSites)
	}
	if len(in.WaterAreas) == 0 && in.NumWaterAreas == 0 {
		return fmt.Errorf("either waterAreas or numWaterAreas is required")
	}
	if in.ZoneOf != nil {
		if len(in.ZoneOf) != sites {
			return fmt.Errorf("zoneOf must list exactly one zone per site")
		}
		for j, z := range in.ZoneOf {
			if z < 0 || z >= in.NumRainZones {
				return fmt.Errorf("zoneOf[%d] = %d is outside the declared %d rain zones", j, z, in.NumRainZones)
			}
		}
	}
	if in.FieldWidthM < 0 || in.FieldHeightM < 0 {
		return fmt.Errorf("fieldWidthM and fieldHeightM must be >= 0")
	}
	return nil
}

func validatePlanRequest(req *model.PlanRequest) error {
	if req.SensorRangeM <= 0 {
		return fmt.Errorf("sensorRangeM must be > 0")
	}
	if req.CommRangeM <= 0 {
		return fmt.Errorf("commRangeM must be > 0")
	}
	if req.CapexPerTurbine < 0 || req.OpexPerTurbineYear < 0 {
		return fmt.Errorf("capexPerTurbine and opexPerTurbineYear must be >= 0")
	}
	if req.HorizonYears < 0 {
		return fmt.Errorf("horizonYears must be >= 0")
	}
	if req.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if req.Seed < 0 {
		return fmt.Errorf("seed must be >= 0")
	}
	return nil
}
