package label

import "strings"

// Carrier label structural markers. They are plain characters in the
// payload: not escaped and not guaranteed unique.
const (
	MarkerBin      byte = 'S'
	MarkerVendor   byte = 'V'
	MarkerPart     byte = 'P'
	MarkerQuantity byte = 'Q'
)

// ParseCarrier decodes a marker-delimited carrier label.
//
// Every Q followed by a digit is a quantity candidate, tried left to right.
// For a candidate q the part opens at the last P before q. The bin opens at
// the last S between the most recent V before that P and the P itself, or at
// the last S before the P when no V precedes it. The first candidate that
// yields a non-empty part and bin wins. Tie-break order must not change:
// previously issued physical labels depend on it.
func ParseCarrier(payload string) (Parsed, error) {
	if strings.IndexByte(payload, MarkerQuantity) < 0 {
		return Parsed{}, &MissingMarkerError{Marker: MarkerQuantity}
	}
	if strings.IndexByte(payload, MarkerPart) < 0 {
		return Parsed{}, &MissingMarkerError{Marker: MarkerPart}
	}

	for _, q := range quantityCandidates(payload) {
		parsed, ok := tryCandidate(payload, q)
		if ok {
			return parsed, nil
		}
	}

	if strings.IndexByte(payload, MarkerBin) < 0 {
		return Parsed{}, &MissingMarkerError{Marker: MarkerBin}
	}
	return Parsed{}, ErrUnparseable
}

// quantityCandidates returns every index of a Q immediately followed by a digit.
func quantityCandidates(payload string) []int {
	var candidates []int
	for i := 0; i+1 < len(payload); i++ {
		if payload[i] == MarkerQuantity && isDigit(payload[i+1]) {
			candidates = append(candidates, i)
		}
	}
	return candidates
}

func tryCandidate(payload string, q int) (Parsed, bool) {
	p := strings.LastIndexByte(payload[:q], MarkerPart)
	if p < 0 {
		return Parsed{}, false
	}
	part := normalizeSegment(payload[p+1 : q])
	if part == "" {
		return Parsed{}, false
	}
	if q+1 >= len(payload) || !isDigit(payload[q+1]) {
		return Parsed{}, false
	}

	s := binMarkerBefore(payload, p)
	if s < 0 {
		return Parsed{}, false
	}
	bin := normalizeSegment(payload[s+1 : p])
	if bin == "" {
		return Parsed{}, false
	}

	return Parsed{
		BinID:    bin,
		PartCode: part,
		Quantity: int(payload[q+1] - '0'),
	}, true
}

// binMarkerBefore finds the S opening the bin segment that ends at p.
// Returns -1 when no qualifying S exists.
func binMarkerBefore(payload string, p int) int {
	v := strings.LastIndexByte(payload[:p], MarkerVendor)
	if v < 0 {
		return strings.LastIndexByte(payload[:p], MarkerBin)
	}
	i := strings.LastIndexByte(payload[v+1:p], MarkerBin)
	if i < 0 {
		return -1
	}
	return v + 1 + i
}
