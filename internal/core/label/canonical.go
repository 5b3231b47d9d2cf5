package label

import (
	"fmt"
	"strings"
)

const (
	// minTripletLength is the shortest payload treated as legacy triplet encoding.
	minTripletLength = 6

	// printablePercent is the share of decoded characters that must be
	// printable for a triplet decoding to be accepted.
	printablePercent = 85
)

// Canonicalize normalizes a raw scanner payload into the stable text form
// used both as parser input and as the exact-match key for duplicate detection.
//
// Steps, in order:
//  1. strip ASCII control characters except TAB, CR and LF
//  2. normalize CR-LF to LF
//  3. decode legacy digit-triplet encoding when the decoding is mostly printable
//
// Decoded text is normalized again and decoding repeats while the result is
// itself triplet-encoded, so Canonicalize(Canonicalize(x)) == Canonicalize(x).
func Canonicalize(raw string) string {
	text := normalizeText(raw)
	for {
		decoded, ok := decodeTriplets(text)
		if !ok {
			return text
		}
		text = normalizeText(decoded)
	}
}

// EncodeTriplets is the inverse of the legacy decoding: each character becomes
// a zero-padded three-digit group, clamped to one byte. It exists to compare
// against payloads stored before canonicalization was introduced.
func EncodeTriplets(text string) string {
	var b strings.Builder
	b.Grow(len(text) * 3)
	for _, r := range text {
		v := int(r)
		if v > 255 {
			v = 255
		}
		fmt.Fprintf(&b, "%03d", v)
	}
	return b.String()
}

// IsTripletEncoded reports whether s would be decoded by Canonicalize.
func IsTripletEncoded(s string) bool {
	_, ok := decodeTriplets(s)
	return ok
}

func normalizeText(s string) string {
	s = stripControl(s)
	for strings.Contains(s, "\r\n") {
		s = strings.ReplaceAll(s, "\r\n", "\n")
	}
	return s
}

func stripControl(s string) string {
	clean := true
	for i := 0; i < len(s); i++ {
		if isDroppedControl(s[i]) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if !isDroppedControl(s[i]) {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func isDroppedControl(c byte) bool {
	if c == '\t' || c == '\r' || c == '\n' {
		return false
	}
	return c < 0x20 || c == 0x7f
}

// decodeTriplets decodes s when it looks like legacy triplet encoding and the
// decoded text passes the printable threshold.
func decodeTriplets(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	n := len(trimmed)
	if n < minTripletLength || n%3 != 0 {
		return "", false
	}
	for i := 0; i < n; i++ {
		if trimmed[i] < '0' || trimmed[i] > '9' {
			return "", false
		}
	}

	decoded := make([]rune, 0, n/3)
	printable := 0
	for i := 0; i < n; i += 3 {
		v := int(trimmed[i]-'0')*100 + int(trimmed[i+1]-'0')*10 + int(trimmed[i+2]-'0')
		if v > 255 {
			return "", false
		}
		if isPrintableOrSpace(v) {
			printable++
		}
		decoded = append(decoded, rune(v))
	}

	if printable*100 < printablePercent*len(decoded) {
		return "", false
	}
	return string(decoded), true
}

func isPrintableOrSpace(v int) bool {
	return (v >= 0x20 && v <= 0x7e) || v == '\t' || v == '\r' || v == '\n'
}
