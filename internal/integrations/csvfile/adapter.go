// Package csvfile reads survey exports with one feature per row:
//
//	kind,label,x,y[,zone]
//
// kind is "site" or "water". Coordinates are meters on the field
// plane. Site rows may carry a rain zone index; either every site has
// one or none does.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ArvsGastardo/VWT-DLSU/internal/model"
)

type Adapter struct{}

func (Adapter) Name() string { return "csv-file" }

// Fetch reads the export at path ref.
func (Adapter) Fetch(ref string) (model.ScenarioInput, error) {
	f, err := os.Open(ref)
	if err != nil {
		return model.ScenarioInput{}, err
	}
	defer f.Close()
	in, err := Parse(f)
	if err != nil {
		return model.ScenarioInput{}, fmt.Errorf("%s: %w", ref, err)
	}
	return in, nil
}

// Parse reads one scenario worth of geometry. The zone count is the
// highest zone index seen plus one.
func Parse(r io.Reader) (model.ScenarioInput, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var in model.ScenarioInput
	var zoned, unzoned int
	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return model.ScenarioInput{}, err
		}
		line++
		if len(rec) == 0 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(rec[0]), "kind") {
			continue
		}
		if len(rec) < 4 {
			return model.ScenarioInput{}, fmt.Errorf("line %d: want kind,label,x,y[,zone]", line)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		if err != nil {
			return model.ScenarioInput{}, fmt.Errorf("line %d: bad x %q", line, rec[2])
		}
		y, err := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		if err != nil {
			return model.ScenarioInput{}, fmt.Errorf("line %d: bad y %q", line, rec[3])
		}
		switch kind := strings.ToLower(strings.TrimSpace(rec[0])); kind {
		case "site":
			in.Sites = append(in.Sites, model.Point{X: x, Y: y})
			if len(rec) >= 5 && strings.TrimSpace(rec[4]) != "" {
				z, err := strconv.Atoi(strings.TrimSpace(rec[4]))
				if err != nil || z < 0 {
					return model.ScenarioInput{}, fmt.Errorf("line %d: bad zone %q", line, rec[4])
				}
				in.ZoneOf = append(in.ZoneOf, z)
				if z+1 > in.NumRainZones {
					in.NumRainZones = z + 1
				}
				zoned++
			} else {
				unzoned++
			}
		case "water":
			in.WaterAreas = append(in.WaterAreas, model.Point{X: x, Y: y})
		default:
			return model.ScenarioInput{}, fmt.Errorf("line %d: unknown kind %q", line, kind)
		}
	}
	if zoned > 0 && unzoned > 0 {
		return model.ScenarioInput{}, fmt.Errorf("zone column must cover all sites or none (%d of %d zoned)", zoned, zoned+unzoned)
	}
	if len(in.Sites) == 0 {
		return model.ScenarioInput{}, fmt.Errorf("no site rows")
	}
	return in, nil
}
