package application

import (
	"context"
	"fmt"

	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/scheduler"
)

// Repositories is the storage surface the services read and commit through.
type Repositories interface {
	persistence.CategoryRepository
	persistence.ActivityRepository
	persistence.PersonRepository
	persistence.EventRepository
	persistence.BookingRepository
	persistence.Transactor
}

// eventSnapshot is one event's reference data and bookings converted into
// engine values.
type eventSnapshot struct {
	event      scheduler.Event
	activities map[string]scheduler.Activity
	persons    []scheduler.Person
	personByID map[string]scheduler.Person
	bookings   []scheduler.Booking
}

func loadSnapshot(ctx context.Context, repos Repositories, eventID string) (*eventSnapshot, error) {
	event, err := repos.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", eventID, mapRepoError(err))
	}
	categories, err := repos.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	activities, err := repos.ListActivities(ctx)
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	persons, err := repos.ListPersons(ctx)
	if err != nil {
		return nil, fmt.Errorf("load persons: %w", err)
	}
	bookings, err := repos.ListBookings(ctx, persistence.BookingFilter{EventID: eventID})
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	snap := &eventSnapshot{
		event:      toEvent(event),
		activities: make(map[string]scheduler.Activity, len(activities)),
		persons:    make([]scheduler.Person, 0, len(persons)),
		personByID: make(map[string]scheduler.Person, len(persons)),
		bookings:   make([]scheduler.Booking, 0, len(bookings)),
	}

	categoryByID := make(map[string]scheduler.Category, len(categories))
	for _, c := range categories {
		category, err := toCategory(c)
		if err != nil {
			return nil, err
		}
		categoryByID[c.ID] = category
	}
	for _, a := range activities {
		category, ok := categoryByID[a.CategoryID]
		if !ok {
			return nil, fmt.Errorf("%w: activity %s references unknown category %s", ErrInvalidInput, a.ID, a.CategoryID)
		}
		snap.activities[a.ID] = toActivity(a, category)
	}
	for _, p := range persons {
		person := toPerson(p)
		snap.persons = append(snap.persons, person)
		snap.personByID[person.ID] = person
	}
	for _, b := range bookings {
		booking, err := snap.toBooking(b)
		if err != nil {
			return nil, err
		}
		snap.bookings = append(snap.bookings, booking)
	}
	return snap, nil
}

func (s *eventSnapshot) toBooking(b persistence.Booking) (scheduler.Booking, error) {
	activity, ok := s.activities[b.ActivityID]
	if !ok {
		return scheduler.Booking{}, fmt.Errorf("%w: activity %s", ErrNotFound, b.ActivityID)
	}
	return scheduler.Booking{
		ID:        b.ID,
		EventID:   b.EventID,
		Activity:  activity,
		Start:     b.Start,
		End:       b.End,
		PersonIDs: append([]string(nil), b.PersonIDs...),
	}, nil
}

func (s *eventSnapshot) booking(id string) (scheduler.Booking, bool) {
	for _, b := range s.bookings {
		if b.ID == id {
			return b, true
		}
	}
	return scheduler.Booking{}, false
}

// resolvePersons returns the persons in request order, failing on the first
// unknown identifier.
func (s *eventSnapshot) resolvePersons(ids []string) ([]scheduler.Person, error) {
	out := make([]scheduler.Person, 0, len(ids))
	for _, id := range ids {
		person, ok := s.personByID[id]
		if !ok {
			return nil, fmt.Errorf("%w: person %s", ErrNotFound, id)
		}
		out = append(out, person)
	}
	return out, nil
}

func toCategory(c persistence.Category) (scheduler.Category, error) {
	activityType, err := scheduler.ParseActivityType(c.ActivityType)
	if err != nil {
		return scheduler.Category{}, fmt.Errorf("%w: category %s: %v", ErrInvalidInput, c.ID, err)
	}
	return scheduler.Category{
		ID:              c.ID,
		Name:            c.Name,
		WorksWithPeople: c.WorksWithPeople,
		TimeCoefficient: c.TimeCoefficient,
		AdditionalTime:  c.AdditionalTime,
		ActivityType:    activityType,
	}, nil
}

func toActivity(a persistence.Activity, category scheduler.Category) scheduler.Activity {
	activity := scheduler.Activity{
		ID:          a.ID,
		Name:        a.Name,
		Description: a.Description,
		Category:    category,
	}
	if a.NeedPeople != nil {
		n := *a.NeedPeople
		activity.NeedPeople = &n
	}
	return activity
}

func toPerson(p persistence.Person) scheduler.Person {
	person := scheduler.Person{
		ID:                  p.ID,
		FirstName:           p.FirstName,
		LastName:            p.LastName,
		NightOwl:            p.NightOwl,
		Arrival:             p.Arrival,
		Departure:           p.Departure,
		FreeTimeLimit:       p.FreeTimeLimit,
		ExcludedCategoryIDs: append([]string(nil), p.ExcludedCategoryIDs...),
	}
	if p.Email != nil {
		person.Email = *p.Email
	}
	return person
}

func toEvent(e persistence.Event) scheduler.Event {
	return scheduler.Event{ID: e.ID, Title: e.Title, StartDate: e.StartDate, EndDate: e.EndDate}
}
