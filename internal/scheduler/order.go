package scheduler

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// DefaultCollation orders names the way the event staff reads them.
var DefaultCollation = language.Russian

// OrderPersons returns a copy of persons sorted by last name, first name and
// ID using the collation rules of tag.
func OrderPersons(persons []Person, tag language.Tag) []Person {
	if tag == language.Und {
		tag = DefaultCollation
	}
	// Collators keep internal buffers and must not be shared between goroutines.
	col := collate.New(tag, collate.IgnoreCase)
	out := make([]Person, len(persons))
	copy(out, persons)
	sort.SliceStable(out, func(i, j int) bool {
		if c := col.CompareString(out[i].LastName, out[j].LastName); c != 0 {
			return c < 0
		}
		if c := col.CompareString(out[i].FirstName, out[j].FirstName); c != 0 {
			return c < 0
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// OrderBookings returns a copy of bookings sorted chronologically by start,
// then end, then ID.
func OrderBookings(bookings []Booking) []Booking {
	out := make([]Booking, len(bookings))
	copy(out, bookings)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if !out[i].End.Equal(out[j].End) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
