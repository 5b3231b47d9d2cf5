package label

import "strings"

// Customer label layout (1-based character positions, no delimiters).
const (
	customerBinEnd  = 35 // characters 1-35
	customerPartEnd = 50 // characters 36-50
	customerQtyPos  = 50 // character 51, zero-based index
	// CustomerLabelLength is the minimum payload length of a customer label,
	// counted in characters.
	CustomerLabelLength = 51
)

// Parsed is the {bin, part, quantity} tuple recovered from a label.
type Parsed struct {
	BinID    string
	PartCode string
	Quantity int
}

// ParseCustomer decodes a fixed-position customer label. Positions count
// characters, not bytes. Characters beyond position 51 are ignored.
func ParseCustomer(payload string) (Parsed, error) {
	chars := []rune(payload)
	if len(chars) < CustomerLabelLength {
		return Parsed{}, ErrTooShort
	}

	qty := chars[customerQtyPos]
	if qty < '0' || qty > '9' {
		return Parsed{}, ErrInvalidQuantity
	}

	bin := normalizeSegment(string(chars[:customerBinEnd]))
	if bin == "" {
		return Parsed{}, &SegmentError{Segment: "bin"}
	}
	part := normalizeSegment(string(chars[customerBinEnd:customerPartEnd]))
	if part == "" {
		return Parsed{}, &SegmentError{Segment: "part"}
	}

	return Parsed{
		BinID:    bin,
		PartCode: part,
		Quantity: int(qty - '0'),
	}, nil
}

// normalizeSegment collapses internal whitespace runs to a single space and trims.
func normalizeSegment(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
