package earthdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
	"github.com/couchcryptid/gedi-canopy-etl/internal/observability"
)

// DefaultBaseURL is the production CMR endpoint.
const DefaultBaseURL = "https://cmr.earthdata.nasa.gov"

const (
	searchAfterHeader = "CMR-Search-After"
	hitsHeader        = "CMR-Hits"
	dataRelSuffix     = "/data#"
)

// Errors returned by Client. All but ErrNoCredentials map from HTTP status codes.
var (
	ErrNoCredentials = errors.New("earthdata: no token configured")
	ErrUnauthorized  = errors.New("earthdata: unauthorized")
	ErrForbidden     = errors.New("earthdata: access forbidden")
	ErrNotFound      = errors.New("earthdata: resource not found")
	ErrServerError   = errors.New("earthdata: server error")
)

// Client searches CMR for granules and fetches their data files.
// It implements acquisition.Catalog.
type Client struct {
	token          string
	httpClient     *http.Client
	downloadClient *http.Client
	baseURL        string
	pageSize       int
	metrics        *observability.Metrics
	logger         *slog.Logger
}

// NewClient creates an Earthdata client. The timeout applies to search
// requests only; downloads are bounded by the caller's context.
func NewClient(baseURL, token string, pageSize int, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if pageSize <= 0 {
		pageSize = 2000
	}
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		downloadClient: &http.Client{},
		baseURL:        strings.TrimRight(baseURL, "/"),
		pageSize:       pageSize,
		metrics:        metrics,
		logger:         logger,
	}
}

// Login verifies that credentials are available. Earthdata bearer tokens are
// validated by the data servers on first use.
func (c *Client) Login(_ context.Context) error {
	if strings.TrimSpace(c.token) == "" {
		return ErrNoCredentials
	}
	c.logger.Info("earthdata login", "method", "token")
	return nil
}

// SearchGranules returns every granule matching the query, following
// CMR-Search-After pagination.
func (c *Client) SearchGranules(ctx context.Context, q domain.GranuleQuery) ([]domain.Granule, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	params := url.Values{
		"short_name":   {q.ShortName},
		"bounding_box": {q.BoundingBox.String()},
		"temporal[]":   {q.Temporal.String()},
		"page_size":    {strconv.Itoa(c.pageSize)},
	}
	u := c.baseURL + "/search/granules.json?" + params.Encode()

	var granules []domain.Granule
	searchAfter := ""
	for page := 1; ; page++ {
		entries, next, hits, err := c.searchPage(ctx, u, searchAfter)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			granules = append(granules, e.toGranule())
		}
		c.logger.Debug("cmr page fetched", "page", page, "entries", len(entries), "hits", hits)

		if next == "" || len(entries) < c.pageSize {
			break
		}
		searchAfter = next
	}

	c.logger.Info("cmr search complete",
		"short_name", q.ShortName,
		"bounding_box", q.BoundingBox.String(),
		"temporal", q.Temporal.String(),
		"granules", len(granules),
	)
	return granules, nil
}

func (c *Client) searchPage(ctx context.Context, fullURL, searchAfter string) ([]entry, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if searchAfter != "" {
		req.Header.Set(searchAfterHeader, searchAfter)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.CatalogRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		return nil, "", 0, fmt.Errorf("granule search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", 0, fmt.Errorf("%w: status %d: %s", statusError(resp.StatusCode), resp.StatusCode, body)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		c.metrics.CatalogRequests.WithLabelValues("error").Inc()
		return nil, "", 0, fmt.Errorf("decode response: %w", err)
	}
	c.metrics.CatalogRequests.WithLabelValues("success").Inc()

	hits, _ := strconv.Atoi(resp.Header.Get(hitsHeader))
	return sr.Feed.Entry, resp.Header.Get(searchAfterHeader), hits, nil
}

// Download opens a data file for reading. The caller closes the body.
// The returned size is -1 when the server does not report one.
func (c *Client) Download(ctx context.Context, dataURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dataURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.downloadClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("download %s: %w", dataURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, 0, fmt.Errorf("download %s: %w: status %d: %s", dataURL, statusError(resp.StatusCode), resp.StatusCode, body)
	}
	return resp.Body, resp.ContentLength, nil
}

// statusError maps a non-200 status code to a sentinel error.
func statusError(code int) error {
	switch {
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return ErrServerError
	default:
		return fmt.Errorf("earthdata: unexpected status %d", code)
	}
}

// CMR granule search response types.

type searchResponse struct {
	Feed struct {
		Entry []entry `json:"entry"`
	} `json:"feed"`
}

type entry struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	ProducerGranuleID string `json:"producer_granule_id"`
	TimeStart         string `json:"time_start"`
	TimeEnd           string `json:"time_end"`
	GranuleSize       string `json:"granule_size"` // MB, encoded as a string
	Links             []link `json:"links"`
}

type link struct {
	Rel       string `json:"rel"`
	Href      string `json:"href"`
	Inherited bool   `json:"inherited,omitempty"`
}

func (e entry) toGranule() domain.Granule {
	g := domain.Granule{
		ID:    e.ID,
		Title: e.Title,
	}
	if g.Title == "" {
		g.Title = e.ProducerGranuleID
	}
	if t, err := time.Parse(time.RFC3339, e.TimeStart); err == nil {
		g.TimeStart = t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, e.TimeEnd); err == nil {
		g.TimeEnd = t.UTC()
	}
	if v, err := strconv.ParseFloat(e.GranuleSize, 64); err == nil {
		g.SizeMB = v
	}
	for _, l := range e.Links {
		if l.Inherited || !strings.HasSuffix(l.Rel, dataRelSuffix) {
			continue
		}
		if !strings.HasPrefix(l.Href, "https://") && !strings.HasPrefix(l.Href, "http://") {
			continue
		}
		g.DataURLs = append(g.DataURLs, l.Href)
	}
	return g
}
