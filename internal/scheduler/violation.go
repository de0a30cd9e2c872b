package scheduler

import (
	"fmt"
	"time"
)

// ViolationKind names the rule an assignment breaks.
type ViolationKind string

const (
	// ViolationExcludedCategory means the person refuses the booking's category.
	ViolationExcludedCategory ViolationKind = "excluded_category"
	// ViolationOutOfAttendance means the booking lies outside the attendance window.
	ViolationOutOfAttendance ViolationKind = "out_of_attendance"
	// ViolationTimeOverlap means the person already works an overlapping booking.
	ViolationTimeOverlap ViolationKind = "time_overlap"
	// ViolationInsufficientFreeTime means the workload budget would be exceeded.
	ViolationInsufficientFreeTime ViolationKind = "insufficient_free_time"
)

// Violation is a rejected (person, booking) assignment.
type Violation struct {
	Kind       ViolationKind
	PersonID   string
	PersonName string
	BookingID  string
	// Conflicting is set for time overlaps.
	Conflicting *Booking
	// Limit and Projected are set for budget violations.
	Limit     time.Duration
	Projected time.Duration
}

// Error implements the error interface.
func (v *Violation) Error() string {
	if v == nil {
		return ""
	}
	name := v.PersonName
	if name == "" {
		name = v.PersonID
	}
	return fmt.Sprintf("%s: %s", name, v.Message())
}

// Message describes the violation without naming the person.
func (v *Violation) Message() string {
	switch v.Kind {
	case ViolationExcludedCategory:
		return "refuses to work with this activity category"
	case ViolationOutOfAttendance:
		return "will not be at the event at this time"
	case ViolationTimeOverlap:
		if v.Conflicting == nil {
			return "overlaps with another activity"
		}
		return fmt.Sprintf("overlaps with another activity: %s (%s - %s)",
			v.Conflicting.Activity.Name,
			v.Conflicting.Start.Format(time.TimeOnly),
			v.Conflicting.End.Format(time.TimeOnly))
	case ViolationInsufficientFreeTime:
		return "not enough free time"
	}
	return string(v.Kind)
}

// Is lets errors.Is match violations by kind.
func (v *Violation) Is(target error) bool {
	t, ok := target.(*Violation)
	if !ok || v == nil || t == nil {
		return false
	}
	return t.Kind == v.Kind && (t.PersonID == "" || t.PersonID == v.PersonID)
}
