// Command sentinel scrapes the Kandilli Observatory bulletin, flags magnitude
// anomalies, and publishes the dataset for the dashboard.
package main

import (
	"log/slog"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("sentinel failed", "error", err)
		os.Exit(1)
	}
}
