// Package label contains the pure label-payload logic: canonicalization of
// raw scanner output and the two label nomenclature parsers.
// This is part of the Functional Core - no I/O, only pure functions.
package label

import (
	"errors"
	"fmt"
)

// Parse errors. They are caller-visible and only a corrected payload fixes them.
var (
	ErrTooShort        = errors.New("label payload too short")
	ErrInvalidQuantity = errors.New("label quantity is not a single digit")
	ErrEmptySegment    = errors.New("label segment is empty")
	ErrMissingMarker   = errors.New("label marker missing")
	ErrUnparseable     = errors.New("label payload unparseable")
)

// SegmentError reports which segment normalized to an empty string.
type SegmentError struct {
	Segment string // "bin" or "part"
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("%s: %s", ErrEmptySegment, e.Segment)
}

// Is lets errors.Is match ErrEmptySegment.
func (e *SegmentError) Is(target error) bool {
	return target == ErrEmptySegment
}

// MissingMarkerError reports a structural marker absent from a carrier payload.
type MissingMarkerError struct {
	Marker byte
}

func (e *MissingMarkerError) Error() string {
	return fmt.Sprintf("%s: %c", ErrMissingMarker, e.Marker)
}

// Is lets errors.Is match ErrMissingMarker.
func (e *MissingMarkerError) Is(target error) bool {
	return target == ErrMissingMarker
}
