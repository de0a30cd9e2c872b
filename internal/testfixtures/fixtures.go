// Package testfixtures provides deterministic records, clocks and storage
// harnesses shared by package tests.
package testfixtures

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/event-scheduler/internal/persistence"
)

var (
	referenceTime = time.Date(2024, time.July, 12, 0, 0, 0, 0, time.UTC)

	categorySeq atomic.Uint64
	activitySeq atomic.Uint64
	personSeq   atomic.Uint64
	eventSeq    atomic.Uint64
	bookingSeq  atomic.Uint64
)

// ReferenceTime is midnight UTC of the first day of the fixture event.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns hour:minute on the fixture day.
func At(hour, minute int) time.Time {
	return referenceTime.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// TimePtr returns a pointer to t.
func TimePtr(t time.Time) *time.Time {
	return &t
}

// CategoryOption mutates a category fixture.
type CategoryOption func(*persistence.Category)

// NewCategory builds a volunteer category with a neutral weighting.
func NewCategory(opts ...CategoryOption) persistence.Category {
	n := categorySeq.Add(1)
	category := persistence.Category{
		ID:              sequenceID("category", n),
		Name:            fmt.Sprintf("Category %03d", n),
		TimeCoefficient: decimal.NewFromInt(1),
		ActivityType:    "volunteer",
		CreatedAt:       referenceTime,
		UpdatedAt:       referenceTime,
	}
	for _, opt := range opts {
		opt(&category)
	}
	return category
}

// WithCategoryID overrides the identifier.
func WithCategoryID(id string) CategoryOption {
	return func(c *persistence.Category) { c.ID = id }
}

// WithCategoryName overrides the name.
func WithCategoryName(name string) CategoryOption {
	return func(c *persistence.Category) { c.Name = name }
}

// WithActivityType sets the schedule the category's bookings belong to.
func WithActivityType(activityType string) CategoryOption {
	return func(c *persistence.Category) { c.ActivityType = activityType }
}

// WithWeighting sets the coefficient and the fixed extra time.
func WithWeighting(coefficient string, additional time.Duration) CategoryOption {
	return func(c *persistence.Category) {
		c.TimeCoefficient = decimal.RequireFromString(coefficient)
		c.AdditionalTime = additional
	}
}

// ActivityOption mutates an activity fixture.
type ActivityOption func(*persistence.Activity)

// NewActivity builds an activity of the given category.
func NewActivity(categoryID string, opts ...ActivityOption) persistence.Activity {
	n := activitySeq.Add(1)
	activity := persistence.Activity{
		ID:         sequenceID("activity", n),
		Name:       fmt.Sprintf("Activity %03d", n),
		CategoryID: categoryID,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&activity)
	}
	return activity
}

// WithActivityID overrides the identifier.
func WithActivityID(id string) ActivityOption {
	return func(a *persistence.Activity) { a.ID = id }
}

// WithActivityName overrides the name.
func WithActivityName(name string) ActivityOption {
	return func(a *persistence.Activity) { a.Name = name }
}

// WithNeedPeople sets the headcount target.
func WithNeedPeople(n int) ActivityOption {
	return func(a *persistence.Activity) { a.NeedPeople = IntPtr(n) }
}

// PersonOption mutates a person fixture.
type PersonOption func(*persistence.Person)

// NewPerson builds a person with the default free time budget and no
// attendance window.
func NewPerson(opts ...PersonOption) persistence.Person {
	n := personSeq.Add(1)
	person := persistence.Person{
		ID:            sequenceID("person", n),
		FirstName:     "Person",
		LastName:      fmt.Sprintf("%03d", n),
		FreeTimeLimit: 6 * time.Hour,
		CreatedAt:     referenceTime,
		UpdatedAt:     referenceTime,
	}
	for _, opt := range opts {
		opt(&person)
	}
	return person
}

// WithPersonID overrides the identifier.
func WithPersonID(id string) PersonOption {
	return func(p *persistence.Person) { p.ID = id }
}

// WithName overrides first and last name.
func WithName(first, last string) PersonOption {
	return func(p *persistence.Person) {
		p.FirstName = first
		p.LastName = last
	}
}

// WithEmail sets the contact address.
func WithEmail(email string) PersonOption {
	return func(p *persistence.Person) { p.Email = &email }
}

// WithAttendance sets the arrival and departure instants.
func WithAttendance(arrival, departure time.Time) PersonOption {
	return func(p *persistence.Person) {
		p.Arrival = TimePtr(arrival)
		p.Departure = TimePtr(departure)
	}
}

// WithFreeTimeLimit overrides the workload budget.
func WithFreeTimeLimit(limit time.Duration) PersonOption {
	return func(p *persistence.Person) { p.FreeTimeLimit = limit }
}

// WithExcludedCategories lists categories the person refuses.
func WithExcludedCategories(ids ...string) PersonOption {
	return func(p *persistence.Person) { p.ExcludedCategoryIDs = append([]string(nil), ids...) }
}

// EventOption mutates an event fixture.
type EventOption func(*persistence.Event)

// NewEvent builds a three day event starting at ReferenceTime.
func NewEvent(opts ...EventOption) persistence.Event {
	n := eventSeq.Add(1)
	event := persistence.Event{
		ID:        sequenceID("event", n),
		Title:     fmt.Sprintf("Event %03d", n),
		StartDate: referenceTime,
		EndDate:   referenceTime.AddDate(0, 0, 3),
		CreatedAt: referenceTime,
		UpdatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&event)
	}
	return event
}

// WithEventID overrides the identifier.
func WithEventID(id string) EventOption {
	return func(e *persistence.Event) { e.ID = id }
}

// WithEventDates overrides the first and last day.
func WithEventDates(start, end time.Time) EventOption {
	return func(e *persistence.Event) {
		e.StartDate = start
		e.EndDate = end
	}
}

// BookingOption mutates a booking fixture.
type BookingOption func(*persistence.Booking)

// NewBooking builds a booking of activityID in eventID over [start, end).
func NewBooking(eventID, activityID string, start, end time.Time, opts ...BookingOption) persistence.Booking {
	n := bookingSeq.Add(1)
	booking := persistence.Booking{
		ID:         sequenceID("booking", n),
		EventID:    eventID,
		ActivityID: activityID,
		Start:      start,
		End:        end,
		CreatedAt:  referenceTime,
		UpdatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&booking)
	}
	return booking
}

// WithBookingID overrides the identifier.
func WithBookingID(id string) BookingOption {
	return func(b *persistence.Booking) { b.ID = id }
}

// WithPersons assigns persons to the booking.
func WithPersons(ids ...string) BookingOption {
	return func(b *persistence.Booking) { b.PersonIDs = append([]string(nil), ids...) }
}

// Dataset is a set of records inserted together.
type Dataset struct {
	Categories []persistence.Category
	Activities []persistence.Activity
	Persons    []persistence.Person
	Events     []persistence.Event
	Bookings   []persistence.Booking
}

// Seed inserts the dataset in dependency order within one transaction.
func (d Dataset) Seed(ctx context.Context, store persistence.Store) error {
	return store.WithinTx(ctx, func(ctx context.Context) error {
		for _, c := range d.Categories {
			if err := store.CreateCategory(ctx, c); err != nil {
				return fmt.Errorf("seed category %s: %w", c.ID, err)
			}
		}
		for _, a := range d.Activities {
			if err := store.CreateActivity(ctx, a); err != nil {
				return fmt.Errorf("seed activity %s: %w", a.ID, err)
			}
		}
		for _, p := range d.Persons {
			if err := store.CreatePerson(ctx, p); err != nil {
				return fmt.Errorf("seed person %s: %w", p.ID, err)
			}
		}
		for _, e := range d.Events {
			if err := store.CreateEvent(ctx, e); err != nil {
				return fmt.Errorf("seed event %s: %w", e.ID, err)
			}
		}
		for _, b := range d.Bookings {
			if err := store.CreateBooking(ctx, b); err != nil {
				return fmt.Errorf("seed booking %s: %w", b.ID, err)
			}
		}
		return nil
	})
}

// Festival is a small event with one activity per type and three volunteers.
type Festival struct {
	Event     persistence.Event
	Volunteer persistence.Category
	Official  persistence.Category
	Other     persistence.Category
	Kitchen   persistence.Activity
	Concert   persistence.Activity
	Rehearsal persistence.Activity
	Anna      persistence.Person
	Boris     persistence.Person
	Vera      persistence.Person
	Dataset   Dataset
}

// NewFestival builds a Festival with no bookings. Category weighting of the
// volunteer category is 1.5 with ten extra minutes.
func NewFestival() Festival {
	f := Festival{Event: NewEvent()}
	f.Volunteer = NewCategory(WithCategoryName("Кухня"), WithWeighting("1.5", 10*time.Minute))
	f.Official = NewCategory(WithCategoryName("Концерты"), WithActivityType("official"))
	f.Other = NewCategory(WithCategoryName("Репетиции"), WithActivityType("other"))
	f.Kitchen = NewActivity(f.Volunteer.ID, WithActivityName("Дежурство на кухне"), WithNeedPeople(2))
	f.Concert = NewActivity(f.Official.ID, WithActivityName("Концерт"))
	f.Rehearsal = NewActivity(f.Other.ID, WithActivityName("Репетиция"))
	f.Anna = NewPerson(WithName("Анна", "Петрова"))
	f.Boris = NewPerson(WithName("Борис", "Иванов"), WithFreeTimeLimit(2*time.Hour))
	f.Vera = NewPerson(WithName("Вера", "Смирнова"), WithExcludedCategories(f.Volunteer.ID))
	f.Dataset = Dataset{
		Categories: []persistence.Category{f.Volunteer, f.Official, f.Other},
		Activities: []persistence.Activity{f.Kitchen, f.Concert, f.Rehearsal},
		Persons:    []persistence.Person{f.Anna, f.Boris, f.Vera},
		Events:     []persistence.Event{f.Event},
	}
	return f
}
