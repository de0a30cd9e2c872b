package persistence

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Category groups activities and defines how their bookings are weighted.
type Category struct {
	ID              string
	Name            string
	WorksWithPeople bool
	TimeCoefficient decimal.Decimal
	AdditionalTime  time.Duration
	ActivityType    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MaxTimeCoefficient is the largest weighting coefficient a category can hold.
var MaxTimeCoefficient = decimal.RequireFromString("9.9")

// CheckTimeCoefficient rejects coefficients with more than one fractional
// digit or outside (0, MaxTimeCoefficient]. Zero means unset and passes.
func CheckTimeCoefficient(d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	if !d.IsPositive() || d.GreaterThan(MaxTimeCoefficient) || !d.Truncate(1).Equal(d) {
		return fmt.Errorf("%w: time coefficient %s must be between 0.1 and %s with one decimal place",
			ErrConstraintViolation, d, MaxTimeCoefficient)
	}
	return nil
}

// Activity is a catalog entry that bookings place on an event timeline.
type Activity struct {
	ID          string
	Name        string
	Description string
	CategoryID  string
	NeedPeople  *int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Person is a participant that can be assigned to bookings.
type Person struct {
	ID                  string
	FirstName           string
	LastName            string
	Email               *string
	NightOwl            bool
	Arrival             *time.Time
	Departure           *time.Time
	FreeTimeLimit       time.Duration
	ExcludedCategoryIDs []string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Event is a multi-day gathering.
type Event struct {
	ID        string
	Title     string
	StartDate time.Time
	EndDate   time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Booking places an activity within an event and lists the assigned persons.
type Booking struct {
	ID         string
	EventID    string
	ActivityID string
	Start      time.Time
	End        time.Time
	PersonIDs  []string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
