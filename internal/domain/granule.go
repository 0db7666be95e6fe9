package domain

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// BoundingBox is a WGS-84 rectangle in decimal degrees.
type BoundingBox struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// ParseBoundingBox parses "west,south,east,north".
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, fmt.Errorf("bounding box %q: expected 4 comma-separated values", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, fmt.Errorf("bounding box %q: %w", s, err)
		}
		vals[i] = v
	}
	bbox := BoundingBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	if err := bbox.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return bbox, nil
}

// Validate checks coordinate ranges. West may exceed East for boxes that
// cross the antimeridian.
func (b BoundingBox) Validate() error {
	if b.West < -180 || b.West > 180 || b.East < -180 || b.East > 180 {
		return errors.New("bounding box: longitude out of range [-180, 180]")
	}
	if b.South < -90 || b.South > 90 || b.North < -90 || b.North > 90 {
		return errors.New("bounding box: latitude out of range [-90, 90]")
	}
	if b.South > b.North {
		return errors.New("bounding box: south is greater than north")
	}
	return nil
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(lat, lon float64) bool {
	if lat < b.South || lat > b.North {
		return false
	}
	if b.West <= b.East {
		return lon >= b.West && lon <= b.East
	}
	return lon >= b.West || lon <= b.East
}

// String formats the box the way CMR's bounding_box parameter expects.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s",
		strconv.FormatFloat(b.West, 'f', -1, 64),
		strconv.FormatFloat(b.South, 'f', -1, 64),
		strconv.FormatFloat(b.East, 'f', -1, 64),
		strconv.FormatFloat(b.North, 'f', -1, 64),
	)
}

// TemporalRange is an inclusive UTC time window.
type TemporalRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ParseTemporalRange parses two ISO dates or RFC 3339 timestamps. A date-only
// end bound covers the whole day.
func ParseTemporalRange(start, end string) (TemporalRange, error) {
	s, _, err := parseISOTime(start)
	if err != nil {
		return TemporalRange{}, fmt.Errorf("temporal start: %w", err)
	}
	e, dateOnly, err := parseISOTime(end)
	if err != nil {
		return TemporalRange{}, fmt.Errorf("temporal end: %w", err)
	}
	if dateOnly {
		e = e.Add(24*time.Hour - time.Second)
	}
	if e.Before(s) {
		return TemporalRange{}, fmt.Errorf("temporal range: end %s is before start %s", end, start)
	}
	return TemporalRange{Start: s, End: e}, nil
}

func parseISOTime(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse %q: expected YYYY-MM-DD or RFC 3339", s)
	}
	return t.UTC(), false, nil
}

// String formats the range as CMR's temporal parameter "start,end".
func (r TemporalRange) String() string {
	return r.Start.Format(time.RFC3339) + "," + r.End.Format(time.RFC3339)
}

// GranuleQuery identifies the granules to acquire.
type GranuleQuery struct {
	ShortName   string
	BoundingBox BoundingBox
	Temporal    TemporalRange
}

// Validate checks that the query is complete.
func (q GranuleQuery) Validate() error {
	if strings.TrimSpace(q.ShortName) == "" {
		return errors.New("granule query: short name is required")
	}
	if err := q.BoundingBox.Validate(); err != nil {
		return fmt.Errorf("granule query: %w", err)
	}
	if q.Temporal.End.Before(q.Temporal.Start) {
		return errors.New("granule query: temporal end is before start")
	}
	return nil
}

// Granule is a reference to one matched product file. Its metadata is owned
// by the remote catalog.
type Granule struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	TimeStart time.Time `json:"time_start"`
	TimeEnd   time.Time `json:"time_end"`
	SizeMB    float64   `json:"size_mb,omitempty"`
	DataURLs  []string  `json:"data_urls"`
}

// FileName returns the object name a data URL is stored under.
func FileName(dataURL string) string {
	u := dataURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(u)
}

// DownloadedFile records one stored granule file.
type DownloadedFile struct {
	GranuleID    string    `json:"granule_id"`
	URL          string    `json:"url"`
	Key          string    `json:"key"`
	Bytes        int64     `json:"bytes"`
	Skipped      bool      `json:"skipped,omitempty"`
	DownloadedAt time.Time `json:"downloaded_at"`
}
