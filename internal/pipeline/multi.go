package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
)

// MultiLoader fans each batch out to several loaders in order. The first
// failing loader stops the fan-out.
type MultiLoader []BatchLoader

// LoadBatch implements BatchLoader.
func (m MultiLoader) LoadBatch(ctx context.Context, records []domain.CanopyRecord) error {
	for i, l := range m {
		if err := l.LoadBatch(ctx, records); err != nil {
			return fmt.Errorf("loader %d: %w", i, err)
		}
	}
	return nil
}
