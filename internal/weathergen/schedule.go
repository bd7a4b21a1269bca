package weathergen

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSegmentLength is returned when a segment has fewer than one day.
	ErrInvalidSegmentLength = errors.New("segment length must be at least 1 day")
	// ErrNoSegments is returned when a schedule is built from an empty segment list.
	ErrNoSegments = errors.New("at least one segment is required")
)

// Segment is a contiguous run of days sharing one climate type.
// Slice order is chronological order.
type Segment struct {
	Index       int         `json:"index"`
	LengthDays  int         `json:"lengthDays"`
	ClimateType ClimateType `json:"climateType"`
}

// SegmentBoundary is the inclusive 1-based day range covered by a segment.
type SegmentBoundary struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Days returns the number of days in b.
func (b SegmentBoundary) Days() int {
	return b.End - b.Start + 1
}

// BuildSchedule lays segments end to end starting at day 1.
// Segments shorter than one day are rejected rather than coerced.
func BuildSchedule(segments []Segment) ([]SegmentBoundary, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}
	boundaries := make([]SegmentBoundary, 0, len(segments))
	day := 1
	for i, seg := range segments {
		if seg.LengthDays < 1 {
			return nil, fmt.Errorf("segment %d: %w (got %d)", i, ErrInvalidSegmentLength, seg.LengthDays)
		}
		boundaries = append(boundaries, SegmentBoundary{Start: day, End: day + seg.LengthDays - 1})
		day += seg.LengthDays
	}
	return boundaries, nil
}

// TotalDays returns the horizon length covered by boundaries.
func TotalDays(boundaries []SegmentBoundary) int {
	if len(boundaries) == 0 {
		return 0
	}
	return boundaries[len(boundaries)-1].End
}
