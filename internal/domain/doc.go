// Package domain models GEDI granule searches and the synthetic canopy-height
// records derived from above-ground biomass.
//
// # Granule Searches
//
// GEDI (Global Ecosystem Dynamics Investigation) products are published
// through NASA's Common Metadata Repository (CMR). A search is defined by a
// collection short name (e.g. "GEDI02_A", the L2A elevation and height
// metrics product), a bounding box and a temporal range:
//
//	Bounding box:  west, south, east, north in decimal degrees (WGS-84).
//	               CMR expects "w,s,e,n" in the bounding_box parameter.
//	Temporal:      "YYYY-MM-DD" or RFC 3339. A date-only end bound is
//	               inclusive, so "2021-01-01" means 2021-01-01T23:59:59Z.
//
// Each match is a [Granule]: one downloadable HDF5 file plus metadata owned by
// the provider. The tools here never open granule contents.
//
// # Canopy Synthesis
//
// Biomass rows (Mg/ha) are turned into plausible canopy heights (m) with a
// saturating logarithmic allometry whose parameters vary per row to mimic
// species and site variation:
//
//	a    ~ Normal(15.0, 2.0)
//	b    ~ max(0.01, Normal(0.1, 0.02))
//	base = a · ln(1 + b · biomass)
//	h    = max(0, base + Normal(0, 2.5)·base + Normal(0, 9.0))
//
// Relative heights are fractions of h drawn independently:
//
//	rh98 ∈ U(0.95, 1.00)   rh75 ∈ U(0.75, 0.90)
//	rh50 ∈ U(0.55, 0.70)   rh25 ∈ U(0.30, 0.50)
//
// and clamped to [0, h]. Because the draws are independent the profile is not
// guaranteed to be monotone unless [CanopyModel.OrderedRelativeHeights] is set.
//
// Rows with missing, non-numeric or non-positive biomass produce zeros for
// every derived column. All random draws come from the [rand.Source] passed
// to [NewSynthesizer], so a fixed seed reproduces a run exactly.
package domain
