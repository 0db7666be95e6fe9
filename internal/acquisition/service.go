// Package acquisition searches the granule catalog and copies every matching
// data file into a destination bucket.
package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
	"github.com/couchcryptid/gedi-canopy-etl/internal/observability"
)

// Catalog authenticates, searches for granules and streams their data files.
type Catalog interface {
	Login(ctx context.Context) error
	SearchGranules(ctx context.Context, q domain.GranuleQuery) ([]domain.Granule, error)
	Download(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Destination stores downloaded files by key.
type Destination interface {
	Exists(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
}

// Result is the outcome of one acquisition run.
type Result struct {
	Granules []domain.Granule
	Files    []domain.DownloadedFile
}

// Downloaded returns the number of files fetched during the run.
func (r Result) Downloaded() int {
	n := 0
	for _, f := range r.Files {
		if !f.Skipped {
			n++
		}
	}
	return n
}

// Skipped returns the number of files already present at the destination.
func (r Result) Skipped() int {
	return len(r.Files) - r.Downloaded()
}

// Bytes returns the total bytes written during the run.
func (r Result) Bytes() int64 {
	var n int64
	for _, f := range r.Files {
		n += f.Bytes
	}
	return n
}

// Service runs login, search and download against a catalog.
type Service struct {
	catalog     Catalog
	dest        Destination
	concurrency int
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool

	granules   atomic.Int64
	downloaded atomic.Int64
	skipped    atomic.Int64
	failed     atomic.Int64
	bytes      atomic.Int64
}

// Progress is a point-in-time view of a running acquisition.
type Progress struct {
	Granules   int64 `json:"granules"`
	Downloaded int64 `json:"downloaded"`
	Skipped    int64 `json:"skipped"`
	Failed     int64 `json:"failed"`
	Bytes      int64 `json:"bytes"`
}

// Progress reports counts accumulated by the current or last run.
func (s *Service) Progress() Progress {
	return Progress{
		Granules:   s.granules.Load(),
		Downloaded: s.downloaded.Load(),
		Skipped:    s.skipped.Load(),
		Failed:     s.failed.Load(),
		Bytes:      s.bytes.Load(),
	}
}

// New creates a Service. concurrency bounds the number of simultaneous downloads.
func New(catalog Catalog, dest Destination, concurrency int, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Service{
		catalog:     catalog,
		dest:        dest,
		concurrency: concurrency,
		logger:      logger,
		metrics:     metrics,
	}
}

// CheckReadiness returns nil once the catalog login succeeded.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return errors.New("acquisition has not authenticated yet")
	}
	return nil
}

// Run logs in, searches for q and downloads every data file of every match.
// An empty search is not an error. The first failed download cancels the
// remaining ones and is returned.
func (s *Service) Run(ctx context.Context, q domain.GranuleQuery) (Result, error) {
	if err := q.Validate(); err != nil {
		return Result{}, err
	}
	if err := s.catalog.Login(ctx); err != nil {
		return Result{}, fmt.Errorf("login: %w", err)
	}
	s.ready.Store(true)

	granules, err := s.catalog.SearchGranules(ctx, q)
	if err != nil {
		return Result{}, fmt.Errorf("search granules: %w", err)
	}
	s.logger.Info("granule search complete",
		"short_name", q.ShortName,
		"bounding_box", q.BoundingBox.String(),
		"temporal", q.Temporal.String(),
		"granules", len(granules),
	)

	s.granules.Store(int64(len(granules)))
	s.metrics.GranulesFound.Add(float64(len(granules)))

	res := Result{Granules: granules}
	if len(granules) == 0 {
		return res, nil
	}

	files, err := s.downloadAll(ctx, granules)
	res.Files = files
	if err != nil {
		return res, err
	}

	s.logger.Info("acquisition complete",
		"granules", len(granules),
		"downloaded", res.Downloaded(),
		"skipped", res.Skipped(),
		"bytes", res.Bytes(),
	)
	return res, nil
}

type task struct {
	granuleID string
	url       string
	key       string
}

func (s *Service) downloadAll(ctx context.Context, granules []domain.Granule) ([]domain.DownloadedFile, error) {
	var tasks []task
	seen := make(map[string]bool)
	for _, g := range granules {
		if len(g.DataURLs) == 0 {
			s.logger.Warn("granule has no data links", "granule_id", g.ID, "title", g.Title)
			continue
		}
		for _, u := range g.DataURLs {
			key := domain.FileName(u)
			if seen[key] {
				continue
			}
			seen[key] = true
			tasks = append(tasks, task{granuleID: g.ID, url: u, key: key})
		}
	}

	results := make([]domain.DownloadedFile, len(tasks))
	done := make([]bool, len(tasks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, t := range tasks {
		g.Go(func() error {
			f, err := s.fetch(gctx, t)
			if err != nil {
				s.metrics.GranuleDownloads.WithLabelValues("error").Inc()
				s.failed.Add(1)
				return fmt.Errorf("download %s: %w", t.key, err)
			}
			results[i] = f
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	files := make([]domain.DownloadedFile, 0, len(tasks))
	for i, ok := range done {
		if ok {
			files = append(files, results[i])
		}
	}
	return files, err
}

func (s *Service) fetch(ctx context.Context, t task) (domain.DownloadedFile, error) {
	f := domain.DownloadedFile{GranuleID: t.granuleID, URL: t.url, Key: t.key}

	exists, err := s.dest.Exists(ctx, t.key)
	if err != nil {
		return f, err
	}
	if exists {
		s.logger.Debug("file already present, skipping", "key", t.key)
		s.metrics.GranuleDownloads.WithLabelValues("skipped").Inc()
		s.skipped.Add(1)
		f.Skipped = true
		f.DownloadedAt = domain.Now()
		return f, nil
	}

	start := time.Now()
	body, size, err := s.catalog.Download(ctx, t.url)
	if err != nil {
		return f, err
	}
	defer body.Close()

	n, err := s.dest.Save(ctx, t.key, &sizedReader{r: body, want: size})
	if err != nil {
		return f, err
	}

	s.metrics.GranuleDownloads.WithLabelValues("downloaded").Inc()
	s.downloaded.Add(1)
	s.bytes.Add(n)
	s.metrics.DownloadBytes.Add(float64(n))
	s.metrics.DownloadDuration.Observe(time.Since(start).Seconds())
	s.logger.Info("granule file stored", "key", t.key, "bytes", n, "granule_id", t.granuleID)

	f.Bytes = n
	f.DownloadedAt = domain.Now()
	return f, nil
}

// sizedReader turns a body that ends before its advertised length into
// io.ErrUnexpectedEOF, so the destination discards the partial object.
type sizedReader struct {
	r    io.Reader
	want int64
	got  int64
}

func (s *sizedReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	s.got += int64(n)
	if errors.Is(err, io.EOF) && s.want >= 0 && s.got < s.want {
		return n, io.ErrUnexpectedEOF
	}
	return n, err
}
