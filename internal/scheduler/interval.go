package scheduler

import (
	"errors"
	"time"
)

// ErrInvalidInterval is returned when an interval does not start before it ends.
var ErrInvalidInterval = errors.New("scheduler: interval start must be before end")

// TimeInterval is a half-open range of instants.
type TimeInterval struct {
	Start time.Time
	End   time.Time
}

// NewTimeInterval validates the bounds and returns the interval.
func NewTimeInterval(start, end time.Time) (TimeInterval, error) {
	if !start.Before(end) {
		return TimeInterval{}, ErrInvalidInterval
	}
	return TimeInterval{Start: start, End: end}, nil
}

// Duration returns the interval length.
func (i TimeInterval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Contains reports whether other lies completely inside i.
func (i TimeInterval) Contains(other TimeInterval) bool {
	return !other.Start.Before(i.Start) && !other.End.After(i.End)
}

// Overlaps reports whether two intervals share a positive stretch of time.
//
// The shared length is measured in whole minutes modulo one hour, so shared
// stretches of exactly 60, 120, ... minutes are not reported. Touching
// boundaries never overlap.
func Overlaps(a, b TimeInterval) bool {
	if a.Start.After(b.End) || a.End.Before(b.Start) {
		return false
	}
	latestStart := a.Start
	if b.Start.After(latestStart) {
		latestStart = b.Start
	}
	earliestEnd := a.End
	if b.End.Before(earliestEnd) {
		earliestEnd = b.End
	}
	shared := earliestEnd.Sub(latestStart)
	if shared <= 0 {
		return false
	}
	minutes := int64(shared/time.Minute) % 60
	return minutes > 0
}
