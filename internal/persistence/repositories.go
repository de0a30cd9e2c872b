package persistence

import "context"

// CategoryRepository exposes CRUD operations for categories.
type CategoryRepository interface {
	CreateCategory(ctx context.Context, category Category) error
	UpdateCategory(ctx context.Context, category Category) error
	GetCategory(ctx context.Context, id string) (Category, error)
	ListCategories(ctx context.Context) ([]Category, error)
}

// ActivityRepository exposes CRUD operations for activities.
type ActivityRepository interface {
	CreateActivity(ctx context.Context, activity Activity) error
	UpdateActivity(ctx context.Context, activity Activity) error
	GetActivity(ctx context.Context, id string) (Activity, error)
	ListActivities(ctx context.Context) ([]Activity, error)
}

// PersonRepository exposes CRUD operations for persons and their excluded categories.
type PersonRepository interface {
	CreatePerson(ctx context.Context, person Person) error
	UpdatePerson(ctx context.Context, person Person) error
	GetPerson(ctx context.Context, id string) (Person, error)
	ListPersons(ctx context.Context) ([]Person, error)
}

// EventRepository exposes CRUD operations for events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	// LatestEvent returns the event with the latest start date.
	LatestEvent(ctx context.Context) (Event, error)
}

// BookingFilter narrows booking queries. Empty fields match everything.
type BookingFilter struct {
	EventID  string
	PersonID string
}

// BookingRepository stores bookings and their assigned persons.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking) error
	UpdateBooking(ctx context.Context, booking Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
}

// Transactor runs fn inside a single storage transaction. Repository calls
// made with the context passed to fn join that transaction; the transaction
// commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles every repository with transaction support.
type Store interface {
	CategoryRepository
	ActivityRepository
	PersonRepository
	EventRepository
	BookingRepository
	Transactor
	Close() error
}
