// Command canopy-synth derives synthetic GEDI-style canopy height metrics from
// a biomass CSV and writes them to a canopy CSV, printing a short preview.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/gedi-canopy-etl/internal/adapter/csvio"
	kafkaadapter "github.com/couchcryptid/gedi-canopy-etl/internal/adapter/kafka"
	"github.com/couchcryptid/gedi-canopy-etl/internal/config"
	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
	"github.com/couchcryptid/gedi-canopy-etl/internal/observability"
	"github.com/couchcryptid/gedi-canopy-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, metrics); err != nil {
		logger.Error("canopy synthesis failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) error {
	fmt.Printf("Reading your data from '%s'...\n", cfg.BiomassInput)
	reader, err := csvio.Open(cfg.BiomassInput)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("\nERROR: The file '%s' was not found.\n", cfg.BiomassInput)
		fmt.Println("Please make sure the input file is in the working directory.")
		return nil
	}
	if err != nil {
		return err
	}
	defer reader.Close()

	writer, err := csvio.Create(cfg.CanopyOutput)
	if err != nil {
		return err
	}

	seed := cfg.CanopySeed
	if !cfg.CanopySeedSet {
		seed = rand.Uint64()
	}
	model := domain.DefaultCanopyModel()
	model.OrderedRelativeHeights = cfg.OrderedRH
	synth := domain.NewSynthesizer(model, rand.New(rand.NewPCG(seed, seed)))
	logger.Info("canopy model ready", "seed", seed, "ordered_rh", model.OrderedRelativeHeights)

	head := &csvio.Head{N: cfg.PreviewRows}
	loaders := pipeline.MultiLoader{writer, head}

	var sink *kafkaadapter.Writer
	if cfg.KafkaSinkEnabled {
		sink = kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, sink)
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	fmt.Println("Calculating believable canopy height metrics...")
	p := pipeline.New(reader, pipeline.NewTransformer(synth), loaders, logger, metrics, cfg.BatchSize)
	sum, runErr := p.Run(ctx)

	if runErr != nil {
		if err := writer.Discard(); err != nil {
			logger.Error("discard partial output", "error", err)
		}
	} else if err := writer.Close(); err != nil {
		runErr = err
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if runErr != nil {
		return runErr
	}

	logger.Info("canopy synthesis complete",
		"input", cfg.BiomassInput,
		"output", cfg.CanopyOutput,
		"rows", sum.RowsWritten,
		"valid_rows", sum.ValidRows,
	)
	fmt.Printf("\nSuccessfully created output file: '%s'\n", cfg.CanopyOutput)
	if cfg.PreviewRows == 0 {
		return nil
	}
	fmt.Println("\n--- Data Preview ---")
	return csvio.Preview(os.Stdout, head.Records, cfg.PreviewRows)
}
