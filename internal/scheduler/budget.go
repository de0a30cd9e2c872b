package scheduler

import "time"

// CountedWorkload sums the weighted duration of the volunteer bookings of the
// event the person is assigned to, skipping the booking identified by
// excludeID.
func CountedWorkload(personID, eventID, excludeID string, bookings []Booking) time.Duration {
	var total time.Duration
	for _, b := range bookings {
		if b.Type() != ActivityTypeVolunteer || !b.HasPerson(personID) {
			continue
		}
		if eventID != "" && b.EventID != eventID {
			continue
		}
		if excludeID != "" && b.ID == excludeID {
			continue
		}
		total += WeightedDuration(b)
	}
	return total
}

// CheckBudget verifies that adding candidate keeps the person's counted
// workload within their free time limit. Candidates that are not volunteer
// bookings always pass.
func CheckBudget(person Person, eventID string, candidate Booking, existing []Booking) error {
	if v := budgetViolation(person, eventID, candidate, existing); v != nil {
		return v
	}
	return nil
}

func budgetViolation(person Person, eventID string, candidate Booking, existing []Booking) *Violation {
	if candidate.Type() != ActivityTypeVolunteer {
		return nil
	}
	limit := person.FreeTimeLimit
	if limit <= 0 {
		limit = DefaultFreeTimeLimit
	}
	total := WeightedDuration(candidate) + CountedWorkload(person.ID, eventID, candidate.ID, existing)
	if total > limit {
		return &Violation{
			Kind:       ViolationInsufficientFreeTime,
			PersonID:   person.ID,
			PersonName: person.FullName(),
			BookingID:  candidate.ID,
			Limit:      limit,
			Projected:  total,
		}
	}
	return nil
}
