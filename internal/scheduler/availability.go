package scheduler

// Status classifies a person's relationship to one booking.
type Status string

const (
	StatusAssigned         Status = "assigned"
	StatusExcludedCategory Status = "excluded_category"
	StatusOutOfAttendance  Status = "out_of_attendance"
	StatusOverlapping      Status = "overlapping"
	StatusUnknown          Status = "unknown"
	StatusAvailable        Status = "available"
)

// DisplayStatus is the externally visible form of a Status.
type DisplayStatus string

const (
	DisplayAssigned    DisplayStatus = "Assigned"
	DisplayUnavailable DisplayStatus = "Unavailable"
	DisplayAvailable   DisplayStatus = "Available"
	DisplayUnknown     DisplayStatus = "Unknown"
)

// Display collapses the reasons a person cannot take a booking into Unavailable.
func (s Status) Display() DisplayStatus {
	switch s {
	case StatusAssigned:
		return DisplayAssigned
	case StatusExcludedCategory, StatusOutOfAttendance, StatusOverlapping:
		return DisplayUnavailable
	case StatusAvailable:
		return DisplayAvailable
	}
	return DisplayUnknown
}

// Classify reports how person relates to booking given the rest of the
// event's bookings. Checks run in a fixed order and the first match wins:
// assignment, category exclusion, missing attendance window, attendance
// window, overlap.
func Classify(person Person, booking Booking, others []Booking) Status {
	if booking.HasPerson(person.ID) {
		return StatusAssigned
	}
	if person.Excludes(booking.CategoryID()) {
		return StatusExcludedCategory
	}
	if !person.HasAttendanceWindow() {
		return StatusUnknown
	}
	if booking.Start.Before(*person.Arrival) || booking.End.After(*person.Departure) {
		return StatusOutOfAttendance
	}
	if len(DetectConflicts(person.ID, booking, others)) > 0 {
		return StatusOverlapping
	}
	return StatusAvailable
}
