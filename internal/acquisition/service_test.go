package acquisition_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/gedi-canopy-etl/internal/acquisition"
	"github.com/couchcryptid/gedi-canopy-etl/internal/adapter/blobstore"
	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
	"github.com/couchcryptid/gedi-canopy-etl/internal/observability"
)

// --- mocks ---

type fakeCatalog struct {
	loginErr  error
	searchErr error
	granules  []domain.Granule
	files     map[string]string
	// advertised overrides the reported size for a URL.
	advertised map[string]int64

	mu         sync.Mutex
	downloaded []string
}

func (f *fakeCatalog) Login(_ context.Context) error { return f.loginErr }

func (f *fakeCatalog) SearchGranules(_ context.Context, _ domain.GranuleQuery) ([]domain.Granule, error) {
	return f.granules, f.searchErr
}

func (f *fakeCatalog) Download(_ context.Context, url string) (io.ReadCloser, int64, error) {
	f.mu.Lock()
	f.downloaded = append(f.downloaded, url)
	f.mu.Unlock()

	body, ok := f.files[url]
	if !ok {
		return nil, 0, errors.New("earthdata: resource not found")
	}
	size := int64(len(body))
	if n, ok := f.advertised[url]; ok {
		size = n
	}
	return io.NopCloser(strings.NewReader(body)), size, nil
}

func testQuery(t *testing.T) domain.GranuleQuery {
	t.Helper()
	bbox, err := domain.ParseBoundingBox("92.1,6.7,94.3,13.8")
	require.NoError(t, err)
	tr, err := domain.ParseTemporalRange("2020-01-01", "2021-01-01")
	require.NoError(t, err)
	return domain.GranuleQuery{ShortName: "GEDI02_A", BoundingBox: bbox, Temporal: tr}
}

func granule(id string, urls ...string) domain.Granule {
	return domain.Granule{ID: id, Title: id, DataURLs: urls}
}

func newStore(t *testing.T) *blobstore.Store {
	t.Helper()
	s, err := blobstore.Open(context.Background(), "mem://")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// --- tests ---

func TestService_Run_DownloadsAllFiles(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })

	cat := &fakeCatalog{
		granules: []domain.Granule{
			granule("G1", "https://data.example/GEDI02_A_2020001.h5"),
			granule("G2", "https://data.example/GEDI02_A_2020002.h5"),
			granule("G3", "https://data.example/GEDI02_A_2020003.h5"),
		},
		files: map[string]string{
			"https://data.example/GEDI02_A_2020001.h5": "one",
			"https://data.example/GEDI02_A_2020002.h5": "two!",
			"https://data.example/GEDI02_A_2020003.h5": "three",
		},
	}
	store := newStore(t)
	metrics := observability.NewMetricsForTesting()
	svc := acquisition.New(cat, store, 2, slog.Default(), metrics)

	res, err := svc.Run(context.Background(), testQuery(t))
	require.NoError(t, err)

	assert.Len(t, res.Granules, 3)
	require.Len(t, res.Files, 3)
	assert.Equal(t, 3, res.Downloaded())
	assert.Equal(t, 0, res.Skipped())
	assert.Equal(t, int64(12), res.Bytes())
	assert.Equal(t, "GEDI02_A_2020001.h5", res.Files[0].Key)
	assert.Equal(t, "G1", res.Files[0].GranuleID)
	assert.Equal(t, fakeClock.Now(), res.Files[0].DownloadedAt)

	for _, key := range []string{"GEDI02_A_2020001.h5", "GEDI02_A_2020002.h5", "GEDI02_A_2020003.h5"} {
		ok, err := store.Exists(context.Background(), key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}

	assert.InDelta(t, 3, testutil.ToFloat64(metrics.GranuleDownloads.WithLabelValues("downloaded")), 0)
	assert.InDelta(t, 12, testutil.ToFloat64(metrics.DownloadBytes), 0)
	assert.NoError(t, svc.CheckReadiness(context.Background()))
	assert.Equal(t, acquisition.Progress{Granules: 3, Downloaded: 3, Bytes: 12}, svc.Progress())
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.GranulesFound), 0)
}

func TestService_Run_NoGranules(t *testing.T) {
	cat := &fakeCatalog{}
	svc := acquisition.New(cat, newStore(t), 4, slog.Default(), observability.NewMetricsForTesting())

	res, err := svc.Run(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Empty(t, res.Granules)
	assert.Empty(t, res.Files)
	assert.Empty(t, cat.downloaded)
}

func TestService_Run_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.Save(ctx, "GEDI02_A_2020001.h5", strings.NewReader("cached"))
	require.NoError(t, err)

	cat := &fakeCatalog{
		granules: []domain.Granule{
			granule("G1", "https://data.example/GEDI02_A_2020001.h5"),
			granule("G2", "https://data.example/GEDI02_A_2020002.h5"),
		},
		files: map[string]string{
			"https://data.example/GEDI02_A_2020001.h5": "fresh",
			"https://data.example/GEDI02_A_2020002.h5": "two",
		},
	}
	metrics := observability.NewMetricsForTesting()
	svc := acquisition.New(cat, store, 1, slog.Default(), metrics)

	res, err := svc.Run(ctx, testQuery(t))
	require.NoError(t, err)

	assert.Equal(t, 1, res.Downloaded())
	assert.Equal(t, 1, res.Skipped())
	assert.True(t, res.Files[0].Skipped)
	assert.Equal(t, []string{"https://data.example/GEDI02_A_2020002.h5"}, cat.downloaded)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GranuleDownloads.WithLabelValues("skipped")), 0)

	size, err := store.Size(ctx, "GEDI02_A_2020001.h5")
	require.NoError(t, err)
	assert.Equal(t, int64(len("cached")), size)
}

func TestService_Run_DeduplicatesFileNames(t *testing.T) {
	cat := &fakeCatalog{
		granules: []domain.Granule{
			granule("G1", "https://a.example/GEDI.h5", "https://b.example/GEDI.h5?mirror=1"),
			granule("G2"),
		},
		files: map[string]string{"https://a.example/GEDI.h5": "x"},
	}
	svc := acquisition.New(cat, newStore(t), 4, slog.Default(), observability.NewMetricsForTesting())

	res, err := svc.Run(context.Background(), testQuery(t))
	require.NoError(t, err)
	assert.Len(t, res.Granules, 2)
	assert.Len(t, res.Files, 1)
	assert.Equal(t, []string{"https://a.example/GEDI.h5"}, cat.downloaded)
}

func TestService_Run_LoginError(t *testing.T) {
	errNoToken := errors.New("no token")
	cat := &fakeCatalog{loginErr: errNoToken}
	svc := acquisition.New(cat, newStore(t), 1, slog.Default(), observability.NewMetricsForTesting())

	_, err := svc.Run(context.Background(), testQuery(t))
	require.ErrorIs(t, err, errNoToken)
	assert.Contains(t, err.Error(), "login")
	assert.Error(t, svc.CheckReadiness(context.Background()))
}

func TestService_Run_SearchError(t *testing.T) {
	cat := &fakeCatalog{searchErr: errors.New("status 500")}
	svc := acquisition.New(cat, newStore(t), 1, slog.Default(), observability.NewMetricsForTesting())

	_, err := svc.Run(context.Background(), testQuery(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search granules")
}

func TestService_Run_InvalidQuery(t *testing.T) {
	cat := &fakeCatalog{}
	svc := acquisition.New(cat, newStore(t), 1, slog.Default(), observability.NewMetricsForTesting())

	_, err := svc.Run(context.Background(), domain.GranuleQuery{})
	require.Error(t, err)
}

func TestService_Run_DownloadErrorIsFatal(t *testing.T) {
	cat := &fakeCatalog{
		granules: []domain.Granule{
			granule("G1", "https://data.example/ok.h5"),
			granule("G2", "https://data.example/missing.h5"),
		},
		files: map[string]string{"https://data.example/ok.h5": "ok"},
	}
	metrics := observability.NewMetricsForTesting()
	svc := acquisition.New(cat, newStore(t), 1, slog.Default(), metrics)

	res, err := svc.Run(context.Background(), testQuery(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.h5")
	assert.Len(t, res.Granules, 2)
	assert.LessOrEqual(t, len(res.Files), 1)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.GranuleDownloads.WithLabelValues("error")), 0)
	assert.Equal(t, int64(1), svc.Progress().Failed)
}

func TestService_Run_TruncatedBodyNotStored(t *testing.T) {
	ctx := context.Background()
	url := "https://data.example/truncated.h5"
	cat := &fakeCatalog{
		granules:   []domain.Granule{granule("G1", url)},
		files:      map[string]string{url: "half"},
		advertised: map[string]int64{url: 8},
	}
	store := newStore(t)
	svc := acquisition.New(cat, store, 1, slog.Default(), observability.NewMetricsForTesting())

	_, err := svc.Run(ctx, testQuery(t))
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)

	ok, err := store.Exists(ctx, "truncated.h5")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, acquisition.WriteReport(&buf, acquisition.Result{}))
	assert.Equal(t, "No GEDI data found for the specified region and time.\n", buf.String())

	buf.Reset()
	res := acquisition.Result{Granules: []domain.Granule{granule("G1"), granule("G2")}}
	require.NoError(t, acquisition.WriteReport(&buf, res))
	assert.Equal(t, "Successfully downloaded 2 GEDI files.\n", buf.String())
}
