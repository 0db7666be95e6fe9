// Command genmock writes a reproducible mock biomass CSV for local runs of
// canopy-synth and for the test fixtures under data/mock. Points are spread
// uniformly over a bounding box; biomass follows a log-normal distribution
// with a small share of blank, non-numeric and non-positive cells.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/biomass_andaman_nicobar.csv \
//	  -rows 500 -seed 7
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"strconv"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/couchcryptid/gedi-canopy-etl/internal/config"
	"github.com/couchcryptid/gedi-canopy-etl/internal/domain"
)

// options controls the generated table.
type options struct {
	rows        int
	seed        uint64
	bbox        domain.BoundingBox
	invalidFrac float64
	noCoords    bool
}

// invalidCells are written in place of biomass for the invalid share of rows.
var invalidCells = []string{"", "n/a", "0", "-5.5"}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the biomass CSV")
	rows := flag.Int("rows", 500, "number of data rows")
	seed := flag.Uint64("seed", 7, "random seed")
	bbox := flag.String("bbox", config.DefaultBoundingBox, "bounding box west,south,east,north")
	invalidFrac := flag.Float64("invalid-frac", 0.05, "share of rows with unusable biomass")
	noCoords := flag.Bool("no-coords", false, "omit latitude/longitude columns")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *rows <= 0 {
		return fmt.Errorf("-rows must be positive")
	}
	if *invalidFrac < 0 || *invalidFrac > 1 {
		return fmt.Errorf("-invalid-frac must be within [0, 1]")
	}
	box, err := domain.ParseBoundingBox(*bbox)
	if err != nil {
		return fmt.Errorf("invalid -bbox: %w", err)
	}

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	defer f.Close()

	opts := options{rows: *rows, seed: *seed, bbox: box, invalidFrac: *invalidFrac, noCoords: *noCoords}
	st, err := generate(f, opts)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", *out, err)
	}

	log.Printf("wrote %s: %d rows (%d invalid biomass)", *out, st.rows, st.invalid)
	log.Printf("biomass range: %.2f .. %.2f Mg/ha", st.minBiomass, st.maxBiomass)
	return nil
}

type stats struct {
	rows       int
	invalid    int
	minBiomass float64
	maxBiomass float64
}

func generate(w io.Writer, opts options) (stats, error) {
	src := rand.New(rand.NewPCG(opts.seed, opts.seed^0x9e3779b97f4a7c15))
	lat := distuv.Uniform{Min: opts.bbox.South, Max: opts.bbox.North, Src: src}
	lon := distuv.Uniform{Min: opts.bbox.West, Max: opts.bbox.East, Src: src}
	// Median near 150 Mg/ha, long upper tail.
	biomass := distuv.LogNormal{Mu: 5, Sigma: 0.6, Src: src}
	pick := distuv.Uniform{Min: 0, Max: 1, Src: src}

	cw := csv.NewWriter(w)
	header := []string{domain.ColLatitude, domain.ColLongitude, domain.ColBiomass}
	if opts.noCoords {
		header = []string{domain.ColBiomass}
	}
	if err := cw.Write(header); err != nil {
		return stats{}, fmt.Errorf("write header: %w", err)
	}

	st := stats{minBiomass: math.Inf(1), maxBiomass: math.Inf(-1)}
	for i := range opts.rows {
		var cell string
		if pick.Rand() < opts.invalidFrac {
			cell = invalidCells[i%len(invalidCells)]
			st.invalid++
		} else {
			b := biomass.Rand()
			st.minBiomass = math.Min(st.minBiomass, b)
			st.maxBiomass = math.Max(st.maxBiomass, b)
			cell = strconv.FormatFloat(b, 'f', 2, 64)
		}

		row := []string{cell}
		if !opts.noCoords {
			row = []string{
				strconv.FormatFloat(lat.Rand(), 'f', 5, 64),
				strconv.FormatFloat(lon.Rand(), 'f', 5, 64),
				cell,
			}
		}
		if err := cw.Write(row); err != nil {
			return st, fmt.Errorf("write row %d: %w", i+1, err)
		}
		st.rows++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return st, fmt.Errorf("flush: %w", err)
	}
	if st.invalid == st.rows {
		st.minBiomass, st.maxBiomass = 0, 0
	}
	return st, nil
}
