// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle argument parsing, output formatting,
// but delegate business logic to services.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/dispatch/internal/core/scan"
)

var (
	acceptedMark = color.New(color.FgGreen).Sprint("✓")
	rejectedMark = color.New(color.FgRed).Sprint("✗")
)

// printRejection writes the operator-facing verdict for a refused scan.
// The error itself is returned to the caller unchanged.
func printRejection(out io.Writer, err error) error {
	class := scan.Classify(err)
	fmt.Fprintf(out, "%s %s [%s] %v\n", rejectedMark, color.New(color.FgRed, color.Bold).Sprint("REJECTED"), class, err)

	var overScan *scan.OverScanError
	if errors.As(err, &overScan) {
		fmt.Fprintf(out, "  Alert %s raised, invoice %s is blocked until it is reviewed\n",
			color.New(color.FgYellow).Sprint(overScan.AlertID), overScan.InvoiceID)
	}
	return err
}

func yesNo(b bool) string {
	if b {
		return color.New(color.FgGreen).Sprint("yes")
	}
	return "no"
}
