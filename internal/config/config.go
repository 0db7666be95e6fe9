package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Defaults for the Andaman & Nicobar GEDI L2A acquisition.
const (
	DefaultShortName     = "GEDI02_A"
	DefaultBoundingBox   = "92.1,6.7,94.3,13.8"
	DefaultTemporalStart = "2020-01-01"
	DefaultTemporalEnd   = "2021-01-01"
	DefaultDownloadDir   = "gedi_data"
	DefaultBiomassInput  = "biomass_andaman_nicobar.csv"
	DefaultCanopyOutput  = "canopy_andaman_nicobar.csv"
)

// Config holds all tool settings, populated from environment variables.
type Config struct {
	LogLevel        string
	LogFormat       string
	HTTPAddr        string
	ShutdownTimeout time.Duration

	// Earthdata / CMR acquisition.
	EarthdataToken      string
	CMRBaseURL          string
	CMRPageSize         int
	EarthdataTimeout    time.Duration
	Query               domain.GranuleQuery
	DownloadURL         string
	DownloadConcurrency int

	// Canopy synthesis.
	BiomassInput     string
	CanopyOutput     string
	CanopySeed       uint64
	CanopySeedSet    bool
	OrderedRH        bool
	BatchSize        int
	PreviewRows      int
	KafkaBrokers     []string
	KafkaSinkTopic   string
	KafkaSinkEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	earthdataTimeout, err := parsePositiveDuration("EARTHDATA_TIMEOUT", "60s")
	if err != nil {
		return nil, err
	}

	query, err := parseQuery()
	if err != nil {
		return nil, err
	}

	downloadURL, err := parseDownloadURL()
	if err != nil {
		return nil, err
	}

	pageSize, err := parsePositiveInt("CMR_PAGE_SIZE", 2000)
	if err != nil {
		return nil, err
	}
	concurrency, err := parsePositiveInt("DOWNLOAD_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	batchSize, err := parsePositiveInt("BATCH_SIZE", 500)
	if err != nil {
		return nil, err
	}
	previewRows, err := parseNonNegativeInt("PREVIEW_ROWS", 5)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		ShutdownTimeout: shutdownTimeout,

		EarthdataToken:      os.Getenv("EARTHDATA_TOKEN"),
		CMRBaseURL:          sharedcfg.EnvOrDefault("CMR_BASE_URL", "https://cmr.earthdata.nasa.gov"),
		CMRPageSize:         pageSize,
		EarthdataTimeout:    earthdataTimeout,
		Query:               query,
		DownloadURL:         downloadURL,
		DownloadConcurrency: concurrency,

		BiomassInput:   sharedcfg.EnvOrDefault("BIOMASS_INPUT", DefaultBiomassInput),
		CanopyOutput:   sharedcfg.EnvOrDefault("CANOPY_OUTPUT", DefaultCanopyOutput),
		OrderedRH:      parseBool(os.Getenv("CANOPY_ORDERED_RH")),
		BatchSize:      batchSize,
		PreviewRows:    previewRows,
		KafkaBrokers:   parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "canopy-metrics"),
	}
	cfg.KafkaSinkEnabled = len(cfg.KafkaBrokers) > 0

	if s := os.Getenv("CANOPY_SEED"); s != "" {
		seed, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid CANOPY_SEED: %w", err)
		}
		cfg.CanopySeed = seed
		cfg.CanopySeedSet = true
	}

	if cfg.BiomassInput == cfg.CanopyOutput {
		return nil, errors.New("BIOMASS_INPUT and CANOPY_OUTPUT must differ")
	}
	if cfg.KafkaSinkEnabled && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseQuery() (domain.GranuleQuery, error) {
	bbox, err := domain.ParseBoundingBox(sharedcfg.EnvOrDefault("GEDI_BBOX", DefaultBoundingBox))
	if err != nil {
		return domain.GranuleQuery{}, fmt.Errorf("invalid GEDI_BBOX: %w", err)
	}
	temporal, err := domain.ParseTemporalRange(
		sharedcfg.EnvOrDefault("GEDI_TEMPORAL_START", DefaultTemporalStart),
		sharedcfg.EnvOrDefault("GEDI_TEMPORAL_END", DefaultTemporalEnd),
	)
	if err != nil {
		return domain.GranuleQuery{}, fmt.Errorf("invalid GEDI_TEMPORAL_START/GEDI_TEMPORAL_END: %w", err)
	}
	q := domain.GranuleQuery{
		ShortName:   sharedcfg.EnvOrDefault("GEDI_SHORT_NAME", DefaultShortName),
		BoundingBox: bbox,
		Temporal:    temporal,
	}
	if err := q.Validate(); err != nil {
		return domain.GranuleQuery{}, err
	}
	return q, nil
}

// parseDownloadURL returns DOWNLOAD_URL when set, otherwise a file:// bucket
// URL for DOWNLOAD_DIR (default "gedi_data").
func parseDownloadURL() (string, error) {
	if u := os.Getenv("DOWNLOAD_URL"); u != "" {
		if !strings.Contains(u, "://") {
			return "", fmt.Errorf("invalid DOWNLOAD_URL %q: expected a scheme such as file:// or s3://", u)
		}
		return u, nil
	}
	dir := sharedcfg.EnvOrDefault("DOWNLOAD_DIR", DefaultDownloadDir)
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("invalid DOWNLOAD_DIR: %w", err)
	}
	return "file://" + filepath.ToSlash(abs) + "?create_dir=true", nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseNonNegativeInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", key)
	}
	return n, nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}

// parseBrokers returns nil for an empty list, which disables the Kafka sink.
func parseBrokers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var brokers []string
	for _, b := range sharedcfg.ParseBrokers(s) {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
