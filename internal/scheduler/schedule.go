package scheduler

// PersonSchedule returns the bookings the person is assigned to, optionally
// restricted to one activity type, in chronological order.
func PersonSchedule(personID string, bookings []Booking, t *ActivityType) []Booking {
	var assigned []Booking
	for _, b := range FilterByType(bookings, t) {
		if b.HasPerson(personID) {
			assigned = append(assigned, b)
		}
	}
	return OrderBookings(assigned)
}
