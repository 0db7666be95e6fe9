// Command gedi-download searches NASA CMR for GEDI granules over a region and
// time range and stores every matching data file in the download bucket.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/gedi-canopy-etl/internal/acquisition"
	"github.com/couchcryptid/gedi-canopy-etl/internal/adapter/blobstore"
	"github.com/couchcryptid/gedi-canopy-etl/internal/adapter/earthdata"
	"github.com/couchcryptid/gedi-canopy-etl/internal/adapter/httpadapter"
	"github.com/couchcryptid/gedi-canopy-etl/internal/config"
	"github.com/couchcryptid/gedi-canopy-etl/internal/observability"
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

	store, err := blobstore.Open(ctx, cfg.DownloadURL)
	if err != nil {
		logger.Error("failed to open download destination", "error", err)
		os.Exit(1)
	}

	client := earthdata.NewClient(cfg.CMRBaseURL, cfg.EarthdataToken, cfg.CMRPageSize, cfg.EarthdataTimeout, metrics, logger)
	svc := acquisition.New(client, store, cfg.DownloadConcurrency, logger, metrics)

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, svc, func() any { return svc.Progress() }, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	logger.Info("acquisition starting",
		"short_name", cfg.Query.ShortName,
		"bounding_box", cfg.Query.BoundingBox.String(),
		"temporal", cfg.Query.Temporal.String(),
		"destination", cfg.DownloadURL,
		"concurrency", cfg.DownloadConcurrency,
	)

	res, runErr := svc.Run(ctx, cfg.Query)
	if runErr == nil {
		if err := acquisition.WriteReport(os.Stdout, res); err != nil {
			logger.Error("failed to write report", "error", err)
		}
	} else {
		logger.Error("acquisition failed", "error", runErr,
			"granules", len(res.Granules), "downloaded", res.Downloaded())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if err := store.Close(); err != nil {
		logger.Error("download destination close error", "error", err)
	}

	if runErr != nil {
		os.Exit(1)
	}
}
