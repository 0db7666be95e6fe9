package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
	"github.com/couchcryptid/gedi-canopy-etl/internal/observability"
)

// BatchExtractor reads up to batchSize biomass records from the source.
// It returns io.EOF once the source is exhausted.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.BiomassRecord, error)
}

// Transformer converts a biomass record into a canopy record.
type Transformer interface {
	Transform(ctx context.Context, rec domain.BiomassRecord) (domain.CanopyRecord, error)
}

// BatchLoader writes multiple canopy records to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, records []domain.CanopyRecord) error
}

// Summary counts the rows handled by one run.
type Summary struct {
	RowsRead    int
	ValidRows   int
	RowsWritten int
	Batches     int
}

// Pipeline orchestrates the extract-transform-load loop over a finite input.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// CheckReadiness returns nil once the pipeline has loaded at least one batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not loaded any rows yet")
	}
	return nil
}

// Run executes the batch loop until the extractor reports io.EOF. Any
// extract, transform or load error stops the run and is returned with the
// counts accumulated so far.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	var sum Summary
	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		done, err := p.processBatch(ctx, &sum)
		if err != nil {
			return sum, err
		}
		if done {
			break
		}
	}

	p.logger.Info("pipeline finished",
		"rows_read", sum.RowsRead,
		"valid_rows", sum.ValidRows,
		"rows_written", sum.RowsWritten,
		"batches", sum.Batches,
	)
	return sum, nil
}

// processBatch runs one extract-transform-load cycle. It reports true once
// the input is exhausted.
func (p *Pipeline) processBatch(ctx context.Context, sum *Summary) (bool, error) {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("extract batch: %w", err)
	}
	if len(batch) == 0 {
		return false, nil
	}

	sum.RowsRead += len(batch)
	p.metrics.RowsRead.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))

	out := make([]domain.CanopyRecord, 0, len(batch))
	first := sum.RowsRead - len(batch) + 1
	for i, rec := range batch {
		c, err := p.transformer.Transform(ctx, rec)
		if err != nil {
			return false, fmt.Errorf("transform row %d: %w", first+i, err)
		}
		if rec.HasValidBiomass() {
			sum.ValidRows++
			p.metrics.RowsSynthesized.Inc()
		}
		out = append(out, c)
	}

	if err := p.loader.LoadBatch(ctx, out); err != nil {
		p.metrics.SinkErrors.Inc()
		p.logger.Error("load batch failed", "error", err, "batch_size", len(out))
		return false, fmt.Errorf("load batch: %w", err)
	}

	sum.RowsWritten += len(out)
	sum.Batches++
	p.metrics.RowsWritten.Add(float64(len(out)))
	p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
	p.ready.Store(true)
	p.logger.Debug("batch loaded", "rows", len(out), "rows_written", sum.RowsWritten)
	return false, nil
}
