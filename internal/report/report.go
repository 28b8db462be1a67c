// Package report renders the operator-facing anomaly summary.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/seismic-sentinel/internal/domain"
)

// NoAnomalies is printed when the analysis flagged nothing.
const NoAnomalies = "No statistical anomalies found."

// Write prints the anomaly count and, when there are anomalies, a
// timestamp/location/magnitude table in dataset order.
func Write(w io.Writer, a domain.Analysis) error {
	if len(a.Anomalies) == 0 {
		_, err := fmt.Fprintln(w, NoAnomalies)
		return err
	}

	if _, err := fmt.Fprintf(w, "ALERT: %d Anomalies Detected!\n", len(a.Anomalies)); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tLOCATION\tMAGNITUDE")
	for _, r := range a.Anomalies {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Timestamp, r.Location, formatMagnitude(r.Magnitude))
	}
	return tw.Flush()
}

// formatMagnitude prints the value unrounded, keeping at least one decimal.
func formatMagnitude(m float64) string {
	s := strconv.FormatFloat(m, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
