package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const andamanBBox = "92.1,6.7,94.3,13.8"

func TestParseBoundingBox(t *testing.T) {
	t.Run("andaman and nicobar", func(t *testing.T) {
		bbox, err := ParseBoundingBox(andamanBBox)
		require.NoError(t, err)
		assert.Equal(t, BoundingBox{West: 92.1, South: 6.7, East: 94.3, North: 13.8}, bbox)
		assert.Equal(t, andamanBBox, bbox.String())
	})

	t.Run("spaces are trimmed", func(t *testing.T) {
		bbox, err := ParseBoundingBox(" -10, -5 , 10,5 ")
		require.NoError(t, err)
		assert.Equal(t, "-10,-5,10,5", bbox.String())
	})

	tests := []struct {
		name string
		in   string
	}{
		{"too few values", "1,2,3"},
		{"not a number", "a,2,3,4"},
		{"longitude out of range", "-190,0,10,10"},
		{"latitude out of range", "0,-95,10,10"},
		{"south above north", "0,20,10,10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBoundingBox(tt.in)
			require.Error(t, err)
		})
	}
}

func TestBoundingBox_Contains(t *testing.T) {
	bbox := BoundingBox{West: 92.1, South: 6.7, East: 94.3, North: 13.8}
	assert.True(t, bbox.Contains(11.62, 92.72))
	assert.False(t, bbox.Contains(5.0, 93.0))
	assert.False(t, bbox.Contains(10.0, 95.0))

	antimeridian := BoundingBox{West: 170, South: -20, East: -170, North: 20}
	assert.True(t, antimeridian.Contains(0, 175))
	assert.True(t, antimeridian.Contains(0, -175))
	assert.False(t, antimeridian.Contains(0, 0))
}

func TestParseTemporalRange(t *testing.T) {
	t.Run("date-only end covers the day", func(t *testing.T) {
		r, err := ParseTemporalRange("2020-01-01", "2021-01-01")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), r.Start)
		assert.Equal(t, time.Date(2021, 1, 1, 23, 59, 59, 0, time.UTC), r.End)
		assert.Equal(t, "2020-01-01T00:00:00Z,2021-01-01T23:59:59Z", r.String())
	})

	t.Run("RFC 3339 bounds are kept", func(t *testing.T) {
		r, err := ParseTemporalRange("2020-01-01T06:00:00Z", "2020-01-02T06:00:00+05:30")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2020, 1, 2, 0, 30, 0, 0, time.UTC), r.End)
	})

	t.Run("end before start", func(t *testing.T) {
		_, err := ParseTemporalRange("2021-01-01", "2020-01-01")
		require.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseTemporalRange("yesterday", "2020-01-01")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "temporal start")
	})
}

func TestGranuleQuery_Validate(t *testing.T) {
	temporal, err := ParseTemporalRange("2020-01-01", "2021-01-01")
	require.NoError(t, err)
	bbox, err := ParseBoundingBox(andamanBBox)
	require.NoError(t, err)

	q := GranuleQuery{ShortName: "GEDI02_A", BoundingBox: bbox, Temporal: temporal}
	require.NoError(t, q.Validate())

	q.ShortName = " "
	require.Error(t, q.Validate())
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "GEDI02_A_2020001.h5",
		FileName("https://e4ftl01.cr.usgs.gov/GEDI/GEDI02_A.002/2020.01.01/GEDI02_A_2020001.h5?x=1"))
	assert.Equal(t, "file.h5", FileName("https://example.com/a/b/file.h5#frag"))
}

func TestNow_UsesInjectedClock(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, time.March, 3, 8, 0, 0, 0, time.FixedZone("IST", 19800)))
	SetClock(fake)
	t.Cleanup(func() { SetClock(nil) })

	assert.Equal(t, time.Date(2024, time.March, 3, 2, 30, 0, 0, time.UTC), Now())
}
