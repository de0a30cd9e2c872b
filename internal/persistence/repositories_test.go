package persistence_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/testfixtures"
)

// Every backend must satisfy the same contract.
func forEachStore(t *testing.T, fn func(t *testing.T, store persistence.Store)) {
	t.Helper()
	for name, factory := range testfixtures.StoreFactories() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

func TestCategoryRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		category := testfixtures.NewCategory(testfixtures.WithWeighting("1.5", 15*time.Minute))
		require.NoError(t, store.CreateCategory(ctx, category))

		got, err := store.GetCategory(ctx, category.ID)
		require.NoError(t, err)
		assert.Equal(t, category.Name, got.Name)
		assert.True(t, category.TimeCoefficient.Equal(got.TimeCoefficient))
		assert.Equal(t, 15*time.Minute, got.AdditionalTime)
		assert.Equal(t, "volunteer", got.ActivityType)

		err = store.CreateCategory(ctx, category)
		assert.ErrorIs(t, err, persistence.ErrDuplicate)

		category.Name = "Renamed"
		require.NoError(t, store.UpdateCategory(ctx, category))
		got, err = store.GetCategory(ctx, category.ID)
		require.NoError(t, err)
		assert.Equal(t, "Renamed", got.Name)

		_, err = store.GetCategory(ctx, "missing")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
		assert.ErrorIs(t, store.UpdateCategory(ctx, testfixtures.NewCategory()), persistence.ErrNotFound)
	})
}

func TestCategoryCoefficientPrecision(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		for _, coef := range []string{"1.25", "12.5", "-1.0", "0.05"} {
			err := store.CreateCategory(ctx, testfixtures.NewCategory(testfixtures.WithWeighting(coef, 0)))
			assert.ErrorIs(t, err, persistence.ErrConstraintViolation, "coefficient %s", coef)
		}
		categories, err := store.ListCategories(ctx)
		require.NoError(t, err)
		assert.Empty(t, categories)

		category := testfixtures.NewCategory(testfixtures.WithWeighting("9.9", 0))
		require.NoError(t, store.CreateCategory(ctx, category))
		category.TimeCoefficient = decimal.RequireFromString("1.25")
		assert.ErrorIs(t, store.UpdateCategory(ctx, category), persistence.ErrConstraintViolation)

		got, err := store.GetCategory(ctx, category.ID)
		require.NoError(t, err)
		assert.Equal(t, "9.9", got.TimeCoefficient.String())
	})
}

func TestCheckTimeCoefficient(t *testing.T) {
	cases := map[string]bool{
		"0":    true,
		"0.1":  true,
		"1.50": true,
		"9.9":  true,
		"10":   false,
		"1.25": false,
		"-0.5": false,
	}
	for value, ok := range cases {
		err := persistence.CheckTimeCoefficient(decimal.RequireFromString(value))
		if ok {
			assert.NoError(t, err, value)
		} else {
			assert.ErrorIs(t, err, persistence.ErrConstraintViolation, value)
		}
	}
}

func TestActivityRequiresCategory(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		err := store.CreateActivity(ctx, testfixtures.NewActivity("missing"))
		assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)

		category := testfixtures.NewCategory()
		require.NoError(t, store.CreateCategory(ctx, category))
		activity := testfixtures.NewActivity(category.ID, testfixtures.WithNeedPeople(3))
		require.NoError(t, store.CreateActivity(ctx, activity))

		got, err := store.GetActivity(ctx, activity.ID)
		require.NoError(t, err)
		require.NotNil(t, got.NeedPeople)
		assert.Equal(t, 3, *got.NeedPeople)

		activities, err := store.ListActivities(ctx)
		require.NoError(t, err)
		assert.Len(t, activities, 1)
	})
}

func TestPersonRoundTrip(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		category := testfixtures.NewCategory()
		require.NoError(t, store.CreateCategory(ctx, category))

		person := testfixtures.NewPerson(
			testfixtures.WithName("Анна", "Петрова"),
			testfixtures.WithEmail("anna@example.org"),
			testfixtures.WithAttendance(testfixtures.At(9, 0), testfixtures.At(21, 0)),
			testfixtures.WithFreeTimeLimit(4*time.Hour),
			testfixtures.WithExcludedCategories(category.ID),
		)
		require.NoError(t, store.CreatePerson(ctx, person))

		got, err := store.GetPerson(ctx, person.ID)
		require.NoError(t, err)
		assert.Equal(t, "Анна", got.FirstName)
		require.NotNil(t, got.Email)
		assert.Equal(t, "anna@example.org", *got.Email)
		require.NotNil(t, got.Arrival)
		require.NotNil(t, got.Departure)
		assert.True(t, got.Arrival.Equal(testfixtures.At(9, 0)))
		assert.True(t, got.Departure.Equal(testfixtures.At(21, 0)))
		assert.Equal(t, 4*time.Hour, got.FreeTimeLimit)
		assert.Equal(t, []string{category.ID}, got.ExcludedCategoryIDs)

		person.ExcludedCategoryIDs = nil
		person.Arrival, person.Departure = nil, nil
		require.NoError(t, store.UpdatePerson(ctx, person))
		got, err = store.GetPerson(ctx, person.ID)
		require.NoError(t, err)
		assert.Empty(t, got.ExcludedCategoryIDs)
		assert.Nil(t, got.Arrival)
		assert.Nil(t, got.Departure)
	})
}

func TestLatestEvent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		_, err := store.LatestEvent(ctx)
		assert.ErrorIs(t, err, persistence.ErrNotFound)

		earlier := testfixtures.NewEvent()
		later := testfixtures.NewEvent(testfixtures.WithEventDates(
			testfixtures.ReferenceTime().AddDate(1, 0, 0),
			testfixtures.ReferenceTime().AddDate(1, 0, 3),
		))
		require.NoError(t, store.CreateEvent(ctx, later))
		require.NoError(t, store.CreateEvent(ctx, earlier))

		got, err := store.LatestEvent(ctx)
		require.NoError(t, err)
		assert.Equal(t, later.ID, got.ID)

		events, err := store.ListEvents(ctx)
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})
}

func TestBookingLifecycle(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		f := testfixtures.SeedFestival(t, store)

		booking := testfixtures.NewBooking(f.Event.ID, f.Kitchen.ID, testfixtures.At(10, 0), testfixtures.At(12, 0),
			testfixtures.WithPersons(f.Boris.ID, f.Anna.ID))
		require.NoError(t, store.CreateBooking(ctx, booking))

		got, err := store.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{f.Boris.ID, f.Anna.ID}, got.PersonIDs)
		assert.True(t, got.Start.Equal(testfixtures.At(10, 0)))
		assert.True(t, got.End.Equal(testfixtures.At(12, 0)))

		booking.PersonIDs = []string{f.Anna.ID}
		booking.End = testfixtures.At(13, 0)
		require.NoError(t, store.UpdateBooking(ctx, booking))
		got, err = store.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{f.Anna.ID}, got.PersonIDs)
		assert.True(t, got.End.Equal(testfixtures.At(13, 0)))

		_, err = store.GetBooking(ctx, "missing")
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})
}

func TestBookingSubSecondTimes(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		f := testfixtures.SeedFestival(t, store)

		start := testfixtures.At(10, 0).Add(250 * time.Millisecond)
		end := start.Add(500 * time.Millisecond)
		booking := testfixtures.NewBooking(f.Event.ID, f.Kitchen.ID, start, end)
		require.NoError(t, store.CreateBooking(ctx, booking))

		got, err := store.GetBooking(ctx, booking.ID)
		require.NoError(t, err)
		assert.True(t, got.Start.Equal(start), "start %s", got.Start)
		assert.True(t, got.End.Equal(end), "end %s", got.End)
	})
}

func TestBookingConstraints(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		f := testfixtures.SeedFestival(t, store)

		inverted := testfixtures.NewBooking(f.Event.ID, f.Kitchen.ID, testfixtures.At(12, 0), testfixtures.At(10, 0))
		assert.ErrorIs(t, store.CreateBooking(ctx, inverted), persistence.ErrConstraintViolation)

		orphan := testfixtures.NewBooking(f.Event.ID, "missing", testfixtures.At(10, 0), testfixtures.At(12, 0))
		assert.ErrorIs(t, store.CreateBooking(ctx, orphan), persistence.ErrForeignKeyViolation)

		unknownPerson := testfixtures.NewBooking(f.Event.ID, f.Kitchen.ID, testfixtures.At(10, 0), testfixtures.At(12, 0),
			testfixtures.WithPersons("ghost"))
		assert.ErrorIs(t, store.CreateBooking(ctx, unknownPerson), persistence.ErrForeignKeyViolation)

		_, err := store.GetBooking(ctx, unknownPerson.ID)
		assert.ErrorIs(t, err, persistence.ErrNotFound, "failed booking must not be stored")

		booking := testfixtures.NewBooking(f.Event.ID, f.Kitchen.ID, testfixtures.At(10, 0), testfixtures.At(12, 0))
		require.NoError(t, store.CreateBooking(ctx, booking))
		other := testfixtures.NewEvent()
		require.NoError(t, store.CreateEvent(ctx, other))
		booking.EventID = other.ID
		assert.Error(t, store.UpdateBooking(ctx, booking), "bookings cannot move between events")
	})
}

func TestListBookingsFilters(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		f := testfixtures.SeedFestival(t, store)
		other := testfixtures.NewEvent()
		require.NoError(t, store.CreateEvent(ctx, other))

		late := testfixtures.NewBooking(f.Event.ID, f.Kitchen.ID, testfixtures.At(15, 0), testfixtures.At(16, 0),
			testfixtures.WithPersons(f.Anna.ID))
		early := testfixtures.NewBooking(f.Event.ID, f.Concert.ID, testfixtures.At(9, 0), testfixtures.At(10, 0),
			testfixtures.WithPersons(f.Boris.ID, f.Anna.ID))
		elsewhere := testfixtures.NewBooking(other.ID, f.Kitchen.ID, testfixtures.At(9, 0), testfixtures.At(10, 0),
			testfixtures.WithPersons(f.Anna.ID))
		for _, b := range []persistence.Booking{late, early, elsewhere} {
			require.NoError(t, store.CreateBooking(ctx, b))
		}

		byEvent, err := store.ListBookings(ctx, persistence.BookingFilter{EventID: f.Event.ID})
		require.NoError(t, err)
		require.Len(t, byEvent, 2)
		assert.Equal(t, early.ID, byEvent[0].ID)
		assert.Equal(t, late.ID, byEvent[1].ID)

		byPerson, err := store.ListBookings(ctx, persistence.BookingFilter{PersonID: f.Boris.ID})
		require.NoError(t, err)
		require.Len(t, byPerson, 1)
		assert.Equal(t, []string{f.Boris.ID, f.Anna.ID}, byPerson[0].PersonIDs)

		both, err := store.ListBookings(ctx, persistence.BookingFilter{EventID: other.ID, PersonID: f.Anna.ID})
		require.NoError(t, err)
		require.Len(t, both, 1)
		assert.Equal(t, elsewhere.ID, both[0].ID)

		all, err := store.ListBookings(ctx, persistence.BookingFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 3)
	})
}

func TestWithinTxRollsBack(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		boom := errors.New("boom")
		category := testfixtures.NewCategory()

		err := store.WithinTx(ctx, func(ctx context.Context) error {
			if err := store.CreateCategory(ctx, category); err != nil {
				return err
			}
			if _, err := store.GetCategory(ctx, category.ID); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = store.GetCategory(ctx, category.ID)
		assert.ErrorIs(t, err, persistence.ErrNotFound)
	})
}

func TestWithinTxNestedJoinsOuter(t *testing.T) {
	forEachStore(t, func(t *testing.T, store persistence.Store) {
		ctx := context.Background()
		first, second := testfixtures.NewCategory(), testfixtures.NewCategory()

		err := store.WithinTx(ctx, func(ctx context.Context) error {
			if err := store.CreateCategory(ctx, first); err != nil {
				return err
			}
			if err := store.WithinTx(ctx, func(ctx context.Context) error {
				return store.CreateCategory(ctx, second)
			}); err != nil {
				return err
			}
			return errors.New("abort")
		})
		require.Error(t, err)

		categories, err := store.ListCategories(ctx)
		require.NoError(t, err)
		assert.Empty(t, categories)
	})
}
