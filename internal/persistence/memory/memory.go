// Package memory provides a map backed implementation of persistence.Store
// used by tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/event-scheduler/internal/persistence"
)

// Storage keeps every record in memory. Transactions work on a copy of the
// data that replaces the live state on commit.
type Storage struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	state *state
}

type state struct {
	categories map[string]persistence.Category
	activities map[string]persistence.Activity
	persons    map[string]persistence.Person
	events     map[string]persistence.Event
	bookings   map[string]persistence.Booking
}

type txKey struct{}

type txState struct {
	owner   *Storage
	working *state
}

var _ persistence.Store = (*Storage)(nil)

// New returns an empty Storage.
func New() *Storage {
	return &Storage{state: newState()}
}

func newState() *state {
	return &state{
		categories: make(map[string]persistence.Category),
		activities: make(map[string]persistence.Activity),
		persons:    make(map[string]persistence.Person),
		events:     make(map[string]persistence.Event),
		bookings:   make(map[string]persistence.Booking),
	}
}

// Close is a no-op.
func (s *Storage) Close() error {
	return nil
}

// WithinTx runs fn against a private copy of the data and publishes the copy
// when fn succeeds. Nested calls join the outer transaction.
func (s *Storage) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.txFrom(ctx) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, &txState{owner: s, working: working})); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

func (s *Storage) txFrom(ctx context.Context) *txState {
	if ctx == nil {
		return nil
	}
	tx, _ := ctx.Value(txKey{}).(*txState)
	if tx == nil || tx.owner != s {
		return nil
	}
	return tx
}

func (s *Storage) read(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx := s.txFrom(ctx); tx != nil {
		return fn(tx.working)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

func (s *Storage) write(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if tx := s.txFrom(ctx); tx != nil {
		return fn(tx.working)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.state)
}

func (st *state) clone() *state {
	out := newState()
	for id, c := range st.categories {
		out.categories[id] = c
	}
	for id, a := range st.activities {
		out.activities[id] = cloneActivity(a)
	}
	for id, p := range st.persons {
		out.persons[id] = clonePerson(p)
	}
	for id, e := range st.events {
		out.events[id] = e
	}
	for id, b := range st.bookings {
		out.bookings[id] = cloneBooking(b)
	}
	return out
}

// --- CategoryRepository implementation ---

// CreateCategory stores a new category.
func (s *Storage) CreateCategory(ctx context.Context, category persistence.Category) error {
	if err := persistence.CheckTimeCoefficient(category.TimeCoefficient); err != nil {
		return fmt.Errorf("memory: category %s: %w", category.ID, err)
	}
	return s.write(ctx, func(st *state) error {
		if _, ok := st.categories[category.ID]; ok {
			return fmt.Errorf("memory: category %s: %w", category.ID, persistence.ErrDuplicate)
		}
		st.categories[category.ID] = category
		return nil
	})
}

// UpdateCategory replaces an existing category.
func (s *Storage) UpdateCategory(ctx context.Context, category persistence.Category) error {
	if err := persistence.CheckTimeCoefficient(category.TimeCoefficient); err != nil {
		return fmt.Errorf("memory: category %s: %w", category.ID, err)
	}
	return s.write(ctx, func(st *state) error {
		if _, ok := st.categories[category.ID]; !ok {
			return persistence.ErrNotFound
		}
		st.categories[category.ID] = category
		return nil
	})
}

// GetCategory retrieves a category by ID.
func (s *Storage) GetCategory(ctx context.Context, id string) (persistence.Category, error) {
	var out persistence.Category
	err := s.read(ctx, func(st *state) error {
		category, ok := st.categories[id]
		if !ok {
			return persistence.ErrNotFound
		}
		out = category
		return nil
	})
	return out, err
}

// ListCategories returns all categories ordered by name.
func (s *Storage) ListCategories(ctx context.Context) ([]persistence.Category, error) {
	var out []persistence.Category
	err := s.read(ctx, func(st *state) error {
		out = make([]persistence.Category, 0, len(st.categories))
		for _, c := range st.categories {
			out = append(out, c)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

// --- ActivityRepository implementation ---

// CreateActivity stores a new activity.
func (s *Storage) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.activities[activity.ID]; ok {
			return fmt.Errorf("memory: activity %s: %w", activity.ID, persistence.ErrDuplicate)
		}
		if err := st.checkActivityLocked(activity); err != nil {
			return err
		}
		st.activities[activity.ID] = cloneActivity(activity)
		return nil
	})
}

// UpdateActivity replaces an existing activity.
func (s *Storage) UpdateActivity(ctx context.Context, activity persistence.Activity) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.activities[activity.ID]; !ok {
			return persistence.ErrNotFound
		}
		if err := st.checkActivityLocked(activity); err != nil {
			return err
		}
		st.activities[activity.ID] = cloneActivity(activity)
		return nil
	})
}

// GetActivity retrieves an activity by ID.
func (s *Storage) GetActivity(ctx context.Context, id string) (persistence.Activity, error) {
	var out persistence.Activity
	err := s.read(ctx, func(st *state) error {
		activity, ok := st.activities[id]
		if !ok {
			return persistence.ErrNotFound
		}
		out = cloneActivity(activity)
		return nil
	})
	return out, err
}

// ListActivities returns all activities ordered by name.
func (s *Storage) ListActivities(ctx context.Context) ([]persistence.Activity, error) {
	var out []persistence.Activity
	err := s.read(ctx, func(st *state) error {
		out = make([]persistence.Activity, 0, len(st.activities))
		for _, a := range st.activities {
			out = append(out, cloneActivity(a))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, err
}

func (st *state) checkActivityLocked(activity persistence.Activity) error {
	if _, ok := st.categories[activity.CategoryID]; !ok {
		return fmt.Errorf("memory: activity %s references category %s: %w", activity.ID, activity.CategoryID, persistence.ErrForeignKeyViolation)
	}
	if activity.NeedPeople != nil && *activity.NeedPeople < 0 {
		return fmt.Errorf("memory: activity %s need people is negative: %w", activity.ID, persistence.ErrConstraintViolation)
	}
	return nil
}

// --- PersonRepository implementation ---

// CreatePerson stores a new person.
func (s *Storage) CreatePerson(ctx context.Context, person persistence.Person) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.persons[person.ID]; ok {
			return fmt.Errorf("memory: person %s: %w", person.ID, persistence.ErrDuplicate)
		}
		if err := st.checkPersonLocked(person); err != nil {
			return err
		}
		st.persons[person.ID] = clonePerson(person)
		return nil
	})
}

// UpdatePerson replaces an existing person.
func (s *Storage) UpdatePerson(ctx context.Context, person persistence.Person) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.persons[person.ID]; !ok {
			return persistence.ErrNotFound
		}
		if err := st.checkPersonLocked(person); err != nil {
			return err
		}
		st.persons[person.ID] = clonePerson(person)
		return nil
	})
}

// GetPerson retrieves a person by ID.
func (s *Storage) GetPerson(ctx context.Context, id string) (persistence.Person, error) {
	var out persistence.Person
	err := s.read(ctx, func(st *state) error {
		person, ok := st.persons[id]
		if !ok {
			return persistence.ErrNotFound
		}
		out = clonePerson(person)
		return nil
	})
	return out, err
}

// ListPersons returns all persons ordered by last name, first name and ID.
func (s *Storage) ListPersons(ctx context.Context) ([]persistence.Person, error) {
	var out []persistence.Person
	err := s.read(ctx, func(st *state) error {
		out = make([]persistence.Person, 0, len(st.persons))
		for _, p := range st.persons {
			out = append(out, clonePerson(p))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastName != out[j].LastName {
			return out[i].LastName < out[j].LastName
		}
		if out[i].FirstName != out[j].FirstName {
			return out[i].FirstName < out[j].FirstName
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (st *state) checkPersonLocked(person persistence.Person) error {
	for _, categoryID := range person.ExcludedCategoryIDs {
		if _, ok := st.categories[categoryID]; !ok {
			return fmt.Errorf("memory: person %s excludes unknown category %s: %w", person.ID, categoryID, persistence.ErrForeignKeyViolation)
		}
	}
	if person.FreeTimeLimit < 0 {
		return fmt.Errorf("memory: person %s free time limit is negative: %w", person.ID, persistence.ErrConstraintViolation)
	}
	return nil
}

// --- EventRepository implementation ---

// CreateEvent stores a new event.
func (s *Storage) CreateEvent(ctx context.Context, event persistence.Event) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.events[event.ID]; ok {
			return fmt.Errorf("memory: event %s: %w", event.ID, persistence.ErrDuplicate)
		}
		st.events[event.ID] = event
		return nil
	})
}

// UpdateEvent replaces an existing event.
func (s *Storage) UpdateEvent(ctx context.Context, event persistence.Event) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.events[event.ID]; !ok {
			return persistence.ErrNotFound
		}
		st.events[event.ID] = event
		return nil
	})
}

// GetEvent retrieves an event by ID.
func (s *Storage) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	var out persistence.Event
	err := s.read(ctx, func(st *state) error {
		event, ok := st.events[id]
		if !ok {
			return persistence.ErrNotFound
		}
		out = event
		return nil
	})
	return out, err
}

// ListEvents returns all events ordered by start date.
func (s *Storage) ListEvents(ctx context.Context) ([]persistence.Event, error) {
	var out []persistence.Event
	err := s.read(ctx, func(st *state) error {
		out = make([]persistence.Event, 0, len(st.events))
		for _, e := range st.events {
			out = append(out, e)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, err
}

// LatestEvent returns the event that starts last.
func (s *Storage) LatestEvent(ctx context.Context) (persistence.Event, error) {
	events, err := s.ListEvents(ctx)
	if err != nil {
		return persistence.Event{}, err
	}
	if len(events) == 0 {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return events[len(events)-1], nil
}

// --- BookingRepository implementation ---

// CreateBooking stores a new booking.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	return s.write(ctx, func(st *state) error {
		if _, ok := st.bookings[booking.ID]; ok {
			return fmt.Errorf("memory: booking %s: %w", booking.ID, persistence.ErrDuplicate)
		}
		if err := st.checkBookingLocked(booking); err != nil {
			return err
		}
		st.bookings[booking.ID] = cloneBooking(booking)
		return nil
	})
}

// UpdateBooking replaces an existing booking. The owning event cannot change.
func (s *Storage) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	return s.write(ctx, func(st *state) error {
		current, ok := st.bookings[booking.ID]
		if !ok {
			return persistence.ErrNotFound
		}
		if current.EventID != booking.EventID {
			return fmt.Errorf("memory: booking %s cannot move between events: %w", booking.ID, persistence.ErrConstraintViolation)
		}
		if err := st.checkBookingLocked(booking); err != nil {
			return err
		}
		booking.CreatedAt = current.CreatedAt
		st.bookings[booking.ID] = cloneBooking(booking)
		return nil
	})
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	var out persistence.Booking
	err := s.read(ctx, func(st *state) error {
		booking, ok := st.bookings[id]
		if !ok {
			return persistence.ErrNotFound
		}
		out = cloneBooking(booking)
		return nil
	})
	return out, err
}

// ListBookings returns bookings matching the filter ordered by start, end and ID.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var out []persistence.Booking
	err := s.read(ctx, func(st *state) error {
		out = make([]persistence.Booking, 0, len(st.bookings))
		for _, b := range st.bookings {
			if filter.EventID != "" && b.EventID != filter.EventID {
				continue
			}
			if filter.PersonID != "" && !containsString(b.PersonIDs, filter.PersonID) {
				continue
			}
			out = append(out, cloneBooking(b))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if !out[i].End.Equal(out[j].End) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func (st *state) checkBookingLocked(booking persistence.Booking) error {
	if !booking.Start.Before(booking.End) {
		return fmt.Errorf("memory: booking %s must start before it ends: %w", booking.ID, persistence.ErrConstraintViolation)
	}
	if _, ok := st.events[booking.EventID]; !ok {
		return fmt.Errorf("memory: booking %s references event %s: %w", booking.ID, booking.EventID, persistence.ErrForeignKeyViolation)
	}
	if _, ok := st.activities[booking.ActivityID]; !ok {
		return fmt.Errorf("memory: booking %s references activity %s: %w", booking.ID, booking.ActivityID, persistence.ErrForeignKeyViolation)
	}
	seen := make(map[string]struct{}, len(booking.PersonIDs))
	for _, personID := range booking.PersonIDs {
		if _, ok := st.persons[personID]; !ok {
			return fmt.Errorf("memory: booking %s references person %s: %w", booking.ID, personID, persistence.ErrForeignKeyViolation)
		}
		if _, dup := seen[personID]; dup {
			return fmt.Errorf("memory: booking %s lists person %s twice: %w", booking.ID, personID, persistence.ErrDuplicate)
		}
		seen[personID] = struct{}{}
	}
	return nil
}

func cloneActivity(a persistence.Activity) persistence.Activity {
	if a.NeedPeople != nil {
		v := *a.NeedPeople
		a.NeedPeople = &v
	}
	return a
}

func clonePerson(p persistence.Person) persistence.Person {
	if p.Email != nil {
		v := *p.Email
		p.Email = &v
	}
	if p.Arrival != nil {
		v := *p.Arrival
		p.Arrival = &v
	}
	if p.Departure != nil {
		v := *p.Departure
		p.Departure = &v
	}
	p.ExcludedCategoryIDs = cloneStrings(p.ExcludedCategoryIDs)
	return p
}

func cloneBooking(b persistence.Booking) persistence.Booking {
	b.PersonIDs = cloneStrings(b.PersonIDs)
	return b
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
