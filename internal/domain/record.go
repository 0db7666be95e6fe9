package domain

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Output column names, in file order.
const (
	ColLatitude     = "latitude"
	ColLongitude    = "longitude"
	ColBiomass      = "biomass"
	ColCanopyHeight = "canopy_height"
	ColRH98         = "rh98"
	ColRH75         = "rh75"
	ColRH50         = "rh50"
	ColRH25         = "rh25"
)

// OutputColumns is the fixed header of every canopy file.
var OutputColumns = []string{
	ColLatitude, ColLongitude, ColBiomass,
	ColCanopyHeight, ColRH98, ColRH75, ColRH50, ColRH25,
}

// BiomassRecord is one input row. Absent or non-numeric values are NaN.
// RawLatitude and RawLongitude keep the cell text of a coordinate that did
// not parse, so it can be written back unchanged.
type BiomassRecord struct {
	Latitude  float64
	Longitude float64
	Biomass   float64

	RawLatitude  string
	RawLongitude string
}

// HasValidBiomass reports whether the row takes part in synthesis.
func (r BiomassRecord) HasValidBiomass() bool {
	return !math.IsNaN(r.Biomass) && r.Biomass > 0
}

// CanopyRecord is a biomass row plus its synthesized height metrics.
type CanopyRecord struct {
	BiomassRecord
	CanopyHeight float64
	RH98         float64
	RH75         float64
	RH50         float64
	RH25         float64

	ProcessedAt time.Time
}

// RelativeHeights returns rh25, rh50, rh75, rh98 in ascending percentile order.
func (r CanopyRecord) RelativeHeights() [4]float64 {
	return [4]float64{r.RH25, r.RH50, r.RH75, r.RH98}
}

// ParseNumeric coerces a CSV cell to float64. Empty, non-numeric and
// non-finite values yield NaN.
func ParseNumeric(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}
