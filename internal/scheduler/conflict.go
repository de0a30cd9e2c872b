package scheduler

// Conflict describes an existing booking that collides with a candidate for
// one person.
type Conflict struct {
	PersonID string
	With     Booking
}

// BookingsOverlap applies Overlaps to two bookings. A booking never overlaps
// itself.
func BookingsOverlap(a, b Booking) bool {
	if a.SameAs(b) {
		return false
	}
	return Overlaps(a.Interval(), b.Interval())
}

// countsForOverlap reports whether the booking takes part in overlap checks.
// Bookings of type other may be stacked freely.
func countsForOverlap(b Booking) bool {
	return b.Type() != ActivityTypeOther
}

// DetectConflicts returns the bookings the person is assigned to that overlap
// the candidate, in the order they appear in existing.
func DetectConflicts(personID string, candidate Booking, existing []Booking) []Conflict {
	if !countsForOverlap(candidate) {
		return nil
	}
	var conflicts []Conflict
	for _, other := range existing {
		if !other.HasPerson(personID) || !countsForOverlap(other) {
			continue
		}
		if candidate.EventID != "" && other.EventID != "" && candidate.EventID != other.EventID {
			continue
		}
		if BookingsOverlap(candidate, other) {
			conflicts = append(conflicts, Conflict{PersonID: personID, With: other})
		}
	}
	return conflicts
}
