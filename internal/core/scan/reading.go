package scan

import "github.com/example/dispatch/internal/core/label"

// Reading is a canonicalized label payload together with its parsed fields.
type Reading struct {
	Payload string
	label.Parsed
}

// ReadCustomer canonicalizes and parses a customer label.
func ReadCustomer(raw string) (Reading, error) {
	payload := label.Canonicalize(raw)
	parsed, err := label.ParseCustomer(payload)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Payload: payload, Parsed: parsed}, nil
}

// ReadCarrier canonicalizes and parses a carrier label.
func ReadCarrier(raw string) (Reading, error) {
	payload := label.Canonicalize(raw)
	parsed, err := label.ParseCarrier(payload)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Payload: payload, Parsed: parsed}, nil
}

// PayloadKeys returns the stored forms a canonical payload may take:
// itself and, for rows written before canonicalization, its legacy
// triplet encoding.
func PayloadKeys(payload string) []string {
	legacy := label.EncodeTriplets(payload)
	if legacy == payload {
		return []string{payload}
	}
	return []string{payload, legacy}
}
