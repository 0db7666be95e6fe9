package domain

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/stat/distuv"
)

// FractionRange bounds a uniform draw of a relative-height fraction.
type FractionRange struct {
	Min float64
	Max float64
}

// CanopyModel holds the parameters of the biomass → canopy height model.
type CanopyModel struct {
	AMean, AStdDev float64
	BMean, BStdDev float64
	BFloor         float64

	// Noise applied after the base height: proportional noise is scaled by
	// the base height, constant noise is in metres.
	ProportionalNoiseStdDev float64
	ConstantNoiseStdDev     float64

	RH98, RH75, RH50, RH25 FractionRange

	// OrderedRelativeHeights sorts the four drawn heights so that
	// rh25 <= rh50 <= rh75 <= rh98.
	OrderedRelativeHeights bool
}

// DefaultCanopyModel returns the tuned model parameters.
func DefaultCanopyModel() CanopyModel {
	return CanopyModel{
		AMean:                   15.0,
		AStdDev:                 2.0,
		BMean:                   0.1,
		BStdDev:                 0.02,
		BFloor:                  0.01,
		ProportionalNoiseStdDev: 2.5,
		ConstantNoiseStdDev:     9.0,
		RH98:                    FractionRange{Min: 0.95, Max: 1.00},
		RH75:                    FractionRange{Min: 0.75, Max: 0.90},
		RH50:                    FractionRange{Min: 0.55, Max: 0.70},
		RH25:                    FractionRange{Min: 0.30, Max: 0.50},
	}
}

// Synthesizer draws canopy metrics for biomass records. It is not safe for
// concurrent use because the underlying source is not.
type Synthesizer struct {
	model CanopyModel

	a, b                  distuv.Normal
	propNoise, constNoise distuv.Normal
	rh98, rh75, rh50      distuv.Uniform
	rh25                  distuv.Uniform
}

// NewSynthesizer creates a Synthesizer drawing every random value from src.
func NewSynthesizer(model CanopyModel, src rand.Source) *Synthesizer {
	uniform := func(r FractionRange) distuv.Uniform {
		return distuv.Uniform{Min: r.Min, Max: r.Max, Src: src}
	}
	return &Synthesizer{
		model:      model,
		a:          distuv.Normal{Mu: model.AMean, Sigma: model.AStdDev, Src: src},
		b:          distuv.Normal{Mu: model.BMean, Sigma: model.BStdDev, Src: src},
		propNoise:  distuv.Normal{Mu: 0, Sigma: model.ProportionalNoiseStdDev, Src: src},
		constNoise: distuv.Normal{Mu: 0, Sigma: model.ConstantNoiseStdDev, Src: src},
		rh98:       uniform(model.RH98),
		rh75:       uniform(model.RH75),
		rh50:       uniform(model.RH50),
		rh25:       uniform(model.RH25),
	}
}

// Synthesize derives canopy metrics for one record. Records without valid
// biomass get zeros and consume no random draws.
func (s *Synthesizer) Synthesize(rec BiomassRecord) CanopyRecord {
	out := CanopyRecord{BiomassRecord: rec}
	if !rec.HasValidBiomass() {
		return out
	}

	a := s.a.Rand()
	b := math.Max(s.b.Rand(), s.model.BFloor)
	base := a * math.Log1p(b*rec.Biomass)

	height := base + s.propNoise.Rand()*base + s.constNoise.Rand()
	height = math.Max(height, 0)
	out.CanopyHeight = height

	rhs := []float64{
		height * s.rh25.Rand(),
		height * s.rh50.Rand(),
		height * s.rh75.Rand(),
		height * s.rh98.Rand(),
	}
	if s.model.OrderedRelativeHeights {
		slices.Sort(rhs)
	}
	for i, v := range rhs {
		rhs[i] = clamp(v, 0, height)
	}
	out.RH25, out.RH50, out.RH75, out.RH98 = rhs[0], rhs[1], rhs[2], rhs[3]
	return out
}

// SynthesizeAll synthesizes every record in order.
func (s *Synthesizer) SynthesizeAll(recs []BiomassRecord) []CanopyRecord {
	out := make([]CanopyRecord, len(recs))
	for i, rec := range recs {
		out[i] = s.Synthesize(rec)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
