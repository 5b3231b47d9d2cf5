package cli

import (
	"fmt"
	"io"

	"github.com/example/dispatch/internal/core/label"
)

// LabelAdapter exposes the label codecs for troubleshooting scanner output.
type LabelAdapter struct {
	out io.Writer
}

// NewLabelAdapter creates a new LabelAdapter.
func NewLabelAdapter(out io.Writer) *LabelAdapter {
	return &LabelAdapter{out: out}
}

// Canonicalize prints the canonical form of a raw payload.
func (a *LabelAdapter) Canonicalize(raw string) {
	canonical := label.Canonicalize(raw)
	fmt.Fprintf(a.out, "%q\n", canonical)
	if canonical != raw {
		fmt.Fprintf(a.out, "  (normalized from %d to %d bytes)\n", len(raw), len(canonical))
	}
}

// ParseCustomer canonicalizes and parses a customer label.
func (a *LabelAdapter) ParseCustomer(raw string) error {
	return a.parse(raw, label.ParseCustomer)
}

// ParseCarrier canonicalizes and parses a carrier label.
func (a *LabelAdapter) ParseCarrier(raw string) error {
	return a.parse(raw, label.ParseCarrier)
}

func (a *LabelAdapter) parse(raw string, parse func(string) (label.Parsed, error)) error {
	parsed, err := parse(label.Canonicalize(raw))
	if err != nil {
		return printRejection(a.out, err)
	}
	fmt.Fprintf(a.out, "Bin:      %s\n", parsed.BinID)
	fmt.Fprintf(a.out, "Part:     %s\n", parsed.PartCode)
	fmt.Fprintf(a.out, "Quantity: %d\n", parsed.Quantity)
	return nil
}

// Encode prints the legacy digit-triplet form of text.
func (a *LabelAdapter) Encode(text string) {
	fmt.Fprintln(a.out, label.EncodeTriplets(text))
}
