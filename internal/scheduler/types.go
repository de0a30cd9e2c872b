package scheduler

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultFreeTimeLimit is the workload budget assigned to people who do not
// declare their own.
const DefaultFreeTimeLimit = 6 * time.Hour

// ActivityType classifies bookings into the schedules an event publishes.
type ActivityType string

const (
	// ActivityTypeOfficial marks bookings of the public programme.
	ActivityTypeOfficial ActivityType = "official"
	// ActivityTypeVolunteer marks bookings counted against a person's free time budget.
	ActivityTypeVolunteer ActivityType = "volunteer"
	// ActivityTypeOther marks rehearsals, contests and similar bookings that never conflict.
	ActivityTypeOther ActivityType = "other"
)

// ActivityTypes lists every known activity type in presentation order.
func ActivityTypes() []ActivityType {
	return []ActivityType{ActivityTypeOfficial, ActivityTypeVolunteer, ActivityTypeOther}
}

// ParseActivityType converts user input into an ActivityType.
func ParseActivityType(value string) (ActivityType, error) {
	candidate := ActivityType(strings.ToLower(strings.TrimSpace(value)))
	if !candidate.Valid() {
		return "", fmt.Errorf("scheduler: unknown activity type %q", value)
	}
	return candidate, nil
}

// Valid reports whether t is one of the declared activity types.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityTypeOfficial, ActivityTypeVolunteer, ActivityTypeOther:
		return true
	}
	return false
}

// Title returns the human facing schedule name.
func (t ActivityType) Title() string {
	switch t {
	case ActivityTypeOfficial:
		return "Официальное расписание"
	case ActivityTypeVolunteer:
		return "Волонтерское расписание"
	case ActivityTypeOther:
		return "Прочее"
	}
	return string(t)
}

// Category groups activities and carries the workload weighting rules.
type Category struct {
	ID              string
	Name            string
	WorksWithPeople bool
	TimeCoefficient decimal.Decimal
	AdditionalTime  time.Duration
	ActivityType    ActivityType
}

// Activity is a reusable piece of work that can be placed on an event timeline.
type Activity struct {
	ID          string
	Name        string
	Description string
	Category    Category
	// NeedPeople is the headcount target; nil means unconstrained.
	NeedPeople *int
}

// Person is somebody who can be assigned to bookings.
type Person struct {
	ID                  string
	FirstName           string
	LastName            string
	Email               string
	NightOwl            bool
	Arrival             *time.Time
	Departure           *time.Time
	FreeTimeLimit       time.Duration
	ExcludedCategoryIDs []string
}

// FullName renders the person's name the way schedules display it.
func (p Person) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// HasAttendanceWindow reports whether both arrival and departure are known.
func (p Person) HasAttendanceWindow() bool {
	return p.Arrival != nil && p.Departure != nil
}

// Excludes reports whether the person refuses to work in the category.
func (p Person) Excludes(categoryID string) bool {
	return slices.Contains(p.ExcludedCategoryIDs, categoryID)
}

// Event is a multi-day gathering that owns bookings.
type Event struct {
	ID        string
	Title     string
	StartDate time.Time
	EndDate   time.Time
}

// Booking places an activity on an event timeline and records who works it.
type Booking struct {
	ID        string
	EventID   string
	Activity  Activity
	Start     time.Time
	End       time.Time
	PersonIDs []string
}

// Interval returns the booking time range.
func (b Booking) Interval() TimeInterval {
	return TimeInterval{Start: b.Start, End: b.End}
}

// Type returns the activity type inherited from the booking's category.
func (b Booking) Type() ActivityType {
	return b.Activity.Category.ActivityType
}

// CategoryID returns the identifier of the category the booking belongs to.
func (b Booking) CategoryID() string {
	return b.Activity.Category.ID
}

// HasPerson reports whether the person is assigned to the booking.
func (b Booking) HasPerson(personID string) bool {
	return slices.Contains(b.PersonIDs, personID)
}

// SameAs reports whether both values describe the same persisted booking.
func (b Booking) SameAs(other Booking) bool {
	return b.ID != "" && b.ID == other.ID
}

// FilterByType returns the bookings whose activity type matches t, keeping
// the input order. A nil filter returns every booking.
func FilterByType(bookings []Booking, t *ActivityType) []Booking {
	if t == nil {
		out := make([]Booking, len(bookings))
		copy(out, bookings)
		return out
	}
	out := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.Type() == *t {
			out = append(out, b)
		}
	}
	return out
}
