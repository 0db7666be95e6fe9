package acquisition

import (
	"fmt"
	"io"
)

// NoDataMessage is printed when the search matches nothing.
const NoDataMessage = "No GEDI data found for the specified region and time."

// WriteReport prints the user-facing outcome of a run.
func WriteReport(w io.Writer, res Result) error {
	if len(res.Granules) == 0 {
		_, err := fmt.Fprintln(w, NoDataMessage)
		return err
	}
	_, err := fmt.Fprintf(w, "Successfully downloaded %d GEDI files.\n", len(res.Granules))
	return err
}
