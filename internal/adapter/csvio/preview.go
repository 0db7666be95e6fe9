package csvio

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
)

// Head keeps the first N records loaded into it, for the stdout preview.
// It implements pipeline.BatchLoader.
type Head struct {
	N       int
	Records []domain.CanopyRecord
}

// LoadBatch retains records until N have been collected.
func (h *Head) LoadBatch(_ context.Context, records []domain.CanopyRecord) error {
	if room := h.N - len(h.Records); room > 0 {
		if len(records) > room {
			records = records[:room]
		}
		h.Records = append(h.Records, records...)
	}
	return nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	sepStyle    = lipgloss.NewStyle().Faint(true)
)

// Preview renders the first n records as an aligned table with a row index.
func Preview(w io.Writer, records []domain.CanopyRecord, n int) error {
	if n <= 0 || len(records) == 0 {
		return nil
	}
	if len(records) > n {
		records = records[:n]
	}

	headers := append([]string{""}, domain.OutputColumns...)
	rows := make([][]string, 0, len(records))
	for i, rec := range records {
		rows = append(rows, []string{
			strconv.Itoa(i),
			coordinateCell(rec.Latitude, rec.RawLatitude),
			coordinateCell(rec.Longitude, rec.RawLongitude),
			FormatFloat(rec.Biomass),
			FormatFloat(rec.CanopyHeight),
			FormatFloat(rec.RH98),
			FormatFloat(rec.RH75),
			FormatFloat(rec.RH50),
			FormatFloat(rec.RH25),
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, c := range row {
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}
	// Width includes the horizontal padding.
	for i := range widths {
		widths[i] += 2
	}

	var sb strings.Builder
	sep := sepStyle.Render("|")
	for i, h := range headers {
		if i > 0 {
			sb.WriteString(sep)
		}
		sb.WriteString(headerStyle.Width(widths[i]).Render(h))
	}
	sb.WriteString("\n")

	total := len(headers) - 1
	for _, w := range widths {
		total += w
	}
	sb.WriteString(sepStyle.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")

	for _, row := range rows {
		for i, c := range row {
			if i > 0 {
				sb.WriteString(sep)
			}
			sb.WriteString(cellStyle.Width(widths[i]).Render(c))
		}
		sb.WriteString("\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
