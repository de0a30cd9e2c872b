package application

import (
	"time"

	"github.com/example/event-scheduler/internal/scheduler"
)

// AssignParams adds persons to an existing booking.
type AssignParams struct {
	BookingID string
	PersonIDs []string
}

// Proposal describes a booking that is not persisted yet.
type Proposal struct {
	EventID    string
	ActivityID string
	Start      time.Time
	End        time.Time
	PersonIDs  []string
}

// RescheduleParams moves a booking. An empty ActivityID keeps the current activity.
type RescheduleParams struct {
	BookingID  string
	ActivityID string
	Start      time.Time
	End        time.Time
}

// GridParams tunes grid assembly.
type GridParams struct {
	// Type restricts columns to one activity type. Nil shows every booking.
	Type *scheduler.ActivityType
	// Location converts column times for labels. Nil keeps UTC.
	Location *time.Location
}

func validateProposal(p Proposal) *ValidationError {
	vErr := &ValidationError{}
	if p.EventID == "" {
		vErr.add("event_id", "is required")
	}
	if p.ActivityID == "" {
		vErr.add("activity_id", "is required")
	}
	validateTimes(p.Start, p.End, vErr)
	validatePersonIDs(p.PersonIDs, false, vErr)
	return vErr
}

func validateAssignParams(p AssignParams) *ValidationError {
	vErr := &ValidationError{}
	if p.BookingID == "" {
		vErr.add("booking_id", "is required")
	}
	validatePersonIDs(p.PersonIDs, true, vErr)
	return vErr
}

func validateRescheduleParams(p RescheduleParams) *ValidationError {
	vErr := &ValidationError{}
	if p.BookingID == "" {
		vErr.add("booking_id", "is required")
	}
	validateTimes(p.Start, p.End, vErr)
	return vErr
}

func validateTimes(start, end time.Time, vErr *ValidationError) {
	switch {
	case start.IsZero():
		vErr.add("start", "is required")
	case end.IsZero():
		vErr.add("end", "is required")
	case !start.Before(end):
		vErr.add("end", "must be after start")
	}
}

func validatePersonIDs(ids []string, required bool, vErr *ValidationError) {
	if required && len(ids) == 0 {
		vErr.add("person_ids", "at least one person is required")
		return
	}
	for _, id := range ids {
		if id == "" {
			vErr.add("person_ids", "must not contain empty identifiers")
			return
		}
	}
}

// uniqueStrings drops duplicates and keeps the first occurrence order.
func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
