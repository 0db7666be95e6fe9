package pipeline

import (
	"context"

	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
)

// CanopyTransformer implements Transformer with a domain.Synthesizer.
type CanopyTransformer struct {
	synth *domain.Synthesizer
}

// NewTransformer creates a CanopyTransformer around synth.
func NewTransformer(synth *domain.Synthesizer) *CanopyTransformer {
	return &CanopyTransformer{synth: synth}
}

// Transform synthesizes heights for rec and stamps the processing time.
func (t *CanopyTransformer) Transform(_ context.Context, rec domain.BiomassRecord) (domain.CanopyRecord, error) {
	out := t.synth.Synthesize(rec)
	out.ProcessedAt = domain.Now()
	return out, nil
}
