package domain

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func TestSynthesize_InvalidBiomassYieldsZeros(t *testing.T) {
	s := NewSynthesizer(DefaultCanopyModel(), seeded(1))

	tests := []struct {
		name    string
		biomass float64
	}{
		{"missing", math.NaN()},
		{"zero", 0},
		{"negative", -12.5},
		{"non-numeric", ParseNumeric("abc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := s.Synthesize(BiomassRecord{Latitude: 11.6, Longitude: 92.7, Biomass: tt.biomass})
			assert.Zero(t, out.CanopyHeight)
			assert.Zero(t, out.RH98)
			assert.Zero(t, out.RH75)
			assert.Zero(t, out.RH50)
			assert.Zero(t, out.RH25)
			assert.Equal(t, 11.6, out.Latitude)
			assert.Equal(t, 92.7, out.Longitude)
		})
	}
}

func TestSynthesize_InvariantsHoldForValidBiomass(t *testing.T) {
	s := NewSynthesizer(DefaultCanopyModel(), seeded(42))

	for i := range 5000 {
		biomass := 0.5 + float64(i%700)
		out := s.Synthesize(BiomassRecord{Biomass: biomass})

		require.GreaterOrEqual(t, out.CanopyHeight, 0.0, "row %d", i)
		for _, rh := range out.RelativeHeights() {
			require.GreaterOrEqual(t, rh, 0.0, "row %d", i)
			require.LessOrEqual(t, rh, out.CanopyHeight, "row %d", i)
		}
	}
}

func TestSynthesize_HighBiomassUsuallyPositive(t *testing.T) {
	s := NewSynthesizer(DefaultCanopyModel(), seeded(7))

	positive := 0
	const n = 1000
	for range n {
		out := s.Synthesize(BiomassRecord{Latitude: 10, Longitude: 93, Biomass: 1000})
		if out.CanopyHeight > 0 {
			positive++
		}
	}
	// With base heights around 70 m, a floor at zero needs the proportional
	// noise to fall below about -0.4, which happens in roughly a third of draws.
	assert.Greater(t, positive, n/2)
}

func TestSynthesize_RelativeHeightFractions(t *testing.T) {
	model := DefaultCanopyModel()
	model.ProportionalNoiseStdDev = 0
	model.ConstantNoiseStdDev = 0
	s := NewSynthesizer(model, seeded(3))

	for range 200 {
		out := s.Synthesize(BiomassRecord{Biomass: 250})
		require.Positive(t, out.CanopyHeight)
		h := out.CanopyHeight
		assert.InDelta(t, 0.975, out.RH98/h, 0.025+1e-9)
		assert.InDelta(t, 0.825, out.RH75/h, 0.075+1e-9)
		assert.InDelta(t, 0.625, out.RH50/h, 0.075+1e-9)
		assert.InDelta(t, 0.40, out.RH25/h, 0.10+1e-9)
	}
}

func TestSynthesize_BaseHeightWithoutNoise(t *testing.T) {
	model := DefaultCanopyModel()
	model.AStdDev = 0
	model.BStdDev = 0
	model.ProportionalNoiseStdDev = 0
	model.ConstantNoiseStdDev = 0
	s := NewSynthesizer(model, seeded(5))

	out := s.Synthesize(BiomassRecord{Biomass: 200})
	assert.InDelta(t, 15.0*math.Log1p(0.1*200), out.CanopyHeight, 1e-9)
}

func TestSynthesize_BFloor(t *testing.T) {
	model := DefaultCanopyModel()
	model.AStdDev = 0
	model.BMean = -1
	model.BStdDev = 0
	model.ProportionalNoiseStdDev = 0
	model.ConstantNoiseStdDev = 0
	s := NewSynthesizer(model, seeded(9))

	out := s.Synthesize(BiomassRecord{Biomass: 100})
	assert.InDelta(t, 15.0*math.Log1p(0.01*100), out.CanopyHeight, 1e-9)
}

func TestSynthesize_OrderedRelativeHeights(t *testing.T) {
	model := DefaultCanopyModel()
	model.OrderedRelativeHeights = true
	s := NewSynthesizer(model, seeded(11))

	for range 2000 {
		out := s.Synthesize(BiomassRecord{Biomass: 150})
		assert.LessOrEqual(t, out.RH25, out.RH50)
		assert.LessOrEqual(t, out.RH50, out.RH75)
		assert.LessOrEqual(t, out.RH75, out.RH98)
		assert.LessOrEqual(t, out.RH98, out.CanopyHeight)
	}
}

func TestSynthesizeAll_SameSeedIsReproducible(t *testing.T) {
	recs := []BiomassRecord{
		{Latitude: 11.1, Longitude: 92.5, Biomass: 120},
		{Latitude: 11.2, Longitude: 92.6, Biomass: math.NaN()},
		{Latitude: 11.3, Longitude: 92.7, Biomass: 480},
	}

	first := NewSynthesizer(DefaultCanopyModel(), seeded(99)).SynthesizeAll(recs)
	second := NewSynthesizer(DefaultCanopyModel(), seeded(99)).SynthesizeAll(recs)

	if diff := cmp.Diff(first, second, cmpopts.EquateNaNs()); diff != "" {
		t.Fatalf("same seed produced different output (-first +second):\n%s", diff)
	}
}

func TestSynthesizeAll_DifferentSeedsDiverge(t *testing.T) {
	recs := make([]BiomassRecord, 50)
	for i := range recs {
		recs[i] = BiomassRecord{Latitude: 11, Longitude: 92.5, Biomass: 200 + float64(i)}
	}

	first := NewSynthesizer(DefaultCanopyModel(), seeded(99)).SynthesizeAll(recs)
	other := NewSynthesizer(DefaultCanopyModel(), seeded(100)).SynthesizeAll(recs)

	nonZero := 0
	for i := range first {
		if first[i].CanopyHeight > 0 {
			nonZero++
		}
	}
	require.Positive(t, nonZero)
	if cmp.Equal(first, other, cmpopts.EquateNaNs()) {
		t.Fatal("seeds 99 and 100 produced identical output")
	}
}

func TestParseNumeric(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		nan  bool
	}{
		{"123.5", 123.5, false},
		{"  42 ", 42, false},
		{"-3", -3, false},
		{"1e3", 1000, false},
		{"", 0, true},
		{"abc", 0, true},
		{"inf", 0, true},
		{"NaN", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := ParseNumeric(tt.in)
			if tt.nan {
				assert.True(t, math.IsNaN(got))
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
