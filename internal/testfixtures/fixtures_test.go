package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/event-scheduler/internal/persistence"
)

func TestBuildersProduceUniqueIdentifiers(t *testing.T) {
	a, b := NewPerson(), NewPerson()
	if a.ID == b.ID {
		t.Fatalf("expected unique person ids, got %q twice", a.ID)
	}
	if a.FreeTimeLimit != 6*time.Hour {
		t.Fatalf("unexpected default free time limit %v", a.FreeTimeLimit)
	}
}

func TestBuilderOptions(t *testing.T) {
	category := NewCategory(WithCategoryID("kitchen"), WithWeighting("1.5", 10*time.Minute), WithActivityType("official"))
	if category.ID != "kitchen" || category.ActivityType != "official" {
		t.Fatalf("unexpected category %+v", category)
	}
	if category.TimeCoefficient.String() != "1.5" || category.AdditionalTime != 10*time.Minute {
		t.Fatalf("unexpected weighting %+v", category)
	}

	booking := NewBooking("event", "activity", At(10, 0), At(11, 0), WithPersons("p1", "p2"))
	if len(booking.PersonIDs) != 2 || booking.Start != At(10, 0) {
		t.Fatalf("unexpected booking %+v", booking)
	}
}

func TestSeedFestivalIntoEveryStore(t *testing.T) {
	for name, factory := range StoreFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			f := SeedFestival(t, store)

			persons, err := store.ListPersons(context.Background())
			if err != nil {
				t.Fatalf("list persons: %v", err)
			}
			if len(persons) != 3 {
				t.Fatalf("expected 3 persons, got %d", len(persons))
			}

			vera, err := store.GetPerson(context.Background(), f.Vera.ID)
			if err != nil {
				t.Fatalf("get person: %v", err)
			}
			if len(vera.ExcludedCategoryIDs) != 1 || vera.ExcludedCategoryIDs[0] != f.Volunteer.ID {
				t.Fatalf("unexpected exclusions %v", vera.ExcludedCategoryIDs)
			}
		})
	}
}

func TestSeedRollsBackOnFailure(t *testing.T) {
	store := NewMemoryStore(t)
	f := NewFestival()
	f.Dataset.Bookings = []persistence.Booking{
		NewBooking("missing-event", f.Kitchen.ID, At(10, 0), At(11, 0)),
	}

	if err := f.Dataset.Seed(context.Background(), store); err == nil {
		t.Fatal("expected seeding to fail")
	}
	categories, err := store.ListCategories(context.Background())
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(categories) != 0 {
		t.Fatalf("expected rollback, found %d categories", len(categories))
	}
}
