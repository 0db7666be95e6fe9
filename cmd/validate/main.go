// Command validate checks a canopy CSV produced by canopy-synth. It verifies
// the output schema, the zero rule for unusable biomass, the height bounds of
// every relative height metric and, when the biomass input is given, row
// parity between input and output.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -output canopy_andaman_nicobar.csv \
//	  -input biomass_andaman_nicobar.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/couchcryptid/gedi-canopy-etl/internal/adapter/csvio"
	"github.com/couchcryptid/gedi-canopy-etl/internal/config"
	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxErrorsPerPhase caps the detail printed for a single failing phase.
const maxErrorsPerPhase = 20

func main() {
	output := flag.String("output", config.DefaultCanopyOutput, "path to the canopy CSV to validate")
	input := flag.String("input", "", "optional path to the biomass CSV the output was derived from")
	flag.Parse()

	if *output == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*output, *input); code != 0 {
		os.Exit(code)
	}
}

func run(outputPath, inputPath string) int {
	fmt.Println("=== Canopy Output Validation ===")
	fmt.Println()

	header, rows, err := loadCSV(outputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load canopy CSV: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateSchema(header, rows),
		validateZeroRule(rows),
		validateHeightBounds(rows),
		validateCoordinates(rows),
	}

	if inputPath != "" {
		inHeader, inRows, err := loadCSV(inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load biomass CSV: %v\n", err)
			return 1
		}
		phases = append(phases, validateParity(inHeader, inRows, rows))
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Rows: %d canopy, %d with valid biomass\n", len(rows), countValid(rows))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrorsPerPhase {
				fmt.Printf("  ... %d more\n", len(p.errors)-i)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadCSV(path string) ([]string, []csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, fmt.Errorf("empty file %s", path)
	}

	header := all[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	rows := make([]csvRow, 0, len(all)-1)
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[h] = strings.TrimSpace(row[j])
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return header, rows, nil
}

func countValid(rows []csvRow) int {
	n := 0
	for _, r := range rows {
		if b := domain.ParseNumeric(r.fields[domain.ColBiomass]); !math.IsNaN(b) && b > 0 {
			n++
		}
	}
	return n
}

// derived parses the five synthesized columns of a row.
func derived(r csvRow) ([5]float64, error) {
	cols := [5]string{domain.ColCanopyHeight, domain.ColRH98, domain.ColRH75, domain.ColRH50, domain.ColRH25}
	var out [5]float64
	for i, c := range cols {
		v, err := strconv.ParseFloat(r.fields[c], 64)
		if err != nil {
			return out, fmt.Errorf("%s=%q is not a number", c, r.fields[c])
		}
		out[i] = v
	}
	return out, nil
}

// ── Phases ──

func validateSchema(header []string, rows []csvRow) *phase {
	p := &phase{name: "Schema: 8 fixed columns, 6-decimal values"}
	if !slices.Equal(header, domain.OutputColumns) {
		p.errorf("header %v, want %v", header, domain.OutputColumns)
		return p
	}
	for _, r := range rows {
		for _, c := range domain.OutputColumns {
			v, ok := r.fields[c]
			if !ok {
				p.errorf("line %d: missing %s", r.lineNum, c)
				continue
			}
			if v == "" {
				if c == domain.ColLatitude || c == domain.ColLongitude || c == domain.ColBiomass {
					continue
				}
				p.errorf("line %d: empty %s", r.lineNum, c)
				continue
			}
			if (c == domain.ColLatitude || c == domain.ColLongitude) && math.IsNaN(domain.ParseNumeric(v)) {
				continue
			}
			if dot := strings.IndexByte(v, '.'); dot < 0 || len(v)-dot-1 != 6 {
				p.errorf("line %d: %s=%q not formatted with 6 decimals", r.lineNum, c, v)
			}
		}
	}
	return p
}

func validateZeroRule(rows []csvRow) *phase {
	p := &phase{name: "Zero rule: unusable biomass yields zeros"}
	for _, r := range rows {
		b := domain.ParseNumeric(r.fields[domain.ColBiomass])
		if !math.IsNaN(b) && b > 0 {
			continue
		}
		d, err := derived(r)
		if err != nil {
			p.errorf("line %d: %v", r.lineNum, err)
			continue
		}
		for _, v := range d {
			if v != 0 {
				p.errorf("line %d: biomass %q but derived values %v", r.lineNum, r.fields[domain.ColBiomass], d)
				break
			}
		}
	}
	return p
}

func validateHeightBounds(rows []csvRow) *phase {
	p := &phase{name: "Bounds: 0 <= rh <= canopy_height"}
	for _, r := range rows {
		d, err := derived(r)
		if err != nil {
			p.errorf("line %d: %v", r.lineNum, err)
			continue
		}
		height := d[0]
		if height < 0 {
			p.errorf("line %d: negative canopy_height %g", r.lineNum, height)
		}
		for i, rh := range d[1:] {
			if rh < 0 || rh > height {
				p.errorf("line %d: %s=%g outside [0, %g]", r.lineNum, domain.OutputColumns[4+i], rh, height)
			}
		}
	}
	return p
}

func validateCoordinates(rows []csvRow) *phase {
	p := &phase{name: "Coordinates: valid latitude/longitude"}
	for _, r := range rows {
		lat := domain.ParseNumeric(r.fields[domain.ColLatitude])
		lon := domain.ParseNumeric(r.fields[domain.ColLongitude])
		if !math.IsNaN(lat) && (lat < -90 || lat > 90) {
			p.errorf("line %d: latitude %g out of range", r.lineNum, lat)
		}
		if !math.IsNaN(lon) && (lon < -180 || lon > 180) {
			p.errorf("line %d: longitude %g out of range", r.lineNum, lon)
		}
	}
	return p
}

// validateParity checks that every input row appears in order in the output
// with the same biomass and coordinates.
func validateParity(inHeader []string, inRows, outRows []csvRow) *phase {
	p := &phase{name: "Parity: input rows carried to output"}
	if !slices.Contains(inHeader, domain.ColBiomass) {
		p.errorf("input has no %s column", domain.ColBiomass)
		return p
	}

	if len(inRows) != len(outRows) {
		p.errorf("row count: input %d, output %d", len(inRows), len(outRows))
		return p
	}

	for i, in := range inRows {
		out := outRows[i]
		for _, c := range []string{domain.ColLatitude, domain.ColLongitude, domain.ColBiomass} {
			want := "0.000000"
			switch {
			case !slices.Contains(inHeader, c):
			case c == domain.ColBiomass:
				want = csvio.FormatFloat(domain.ParseNumeric(in.fields[c]))
			default:
				want = csvio.CoordinateCell(in.fields[c])
			}
			if out.fields[c] != want {
				p.errorf("line %d: %s=%q, input line %d has %q", out.lineNum, c, out.fields[c], in.lineNum, in.fields[c])
			}
		}
	}
	return p
}
