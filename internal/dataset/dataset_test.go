package dataset

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/testfixtures"
)

const festivalYAML = `
categories:
  - id: kitchen
    name: Кухня
    activity_type: volunteer
    time_coefficient: 1.5
    additional_time: 10m
    works_with_people: true
  - id: stage
    name: Сцена
    activity_type: official
activities:
  - id: dishes
    name: Мытьё посуды
    category: kitchen
    need_people: 2
  - id: opening
    name: Открытие
    category: stage
persons:
  - id: anna
    first_name: Анна
    last_name: Петрова
    email: anna@example.org
    arrival: 2024-07-12 09:00
    departure: 2024-07-14T18:00:00+03:00
    excluded_categories: [stage]
  - id: boris
    first_name: Борис
    last_name: Иванов
    free_time_limit: 2h
events:
  - id: fest
    title: Летний фестиваль
    start_date: 2024-07-12
    end_date: 2024-07-14
bookings:
  - id: b1
    event: fest
    activity: dishes
    start: 2024-07-12 10:00
    end: 2024-07-12 11:30
    persons: [anna, boris]
`

func TestImport(t *testing.T) {
	for name, factory := range testfixtures.StoreFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			ctx := context.Background()

			summary, err := Import(ctx, store, strings.NewReader(festivalYAML), Options{
				DefaultFreeTimeLimit: 5 * time.Hour,
				Now:                  testfixtures.ReferenceTime,
			})
			require.NoError(t, err)
			assert.Equal(t, Summary{Categories: 2, Activities: 2, Persons: 2, Events: 1, Bookings: 1}, summary)

			kitchen, err := store.GetCategory(ctx, "kitchen")
			require.NoError(t, err)
			assert.Equal(t, "1.5", kitchen.TimeCoefficient.String())
			assert.Equal(t, 10*time.Minute, kitchen.AdditionalTime)
			assert.True(t, kitchen.WorksWithPeople)

			anna, err := store.GetPerson(ctx, "anna")
			require.NoError(t, err)
			require.NotNil(t, anna.Departure)
			assert.True(t, anna.Departure.Equal(time.Date(2024, 7, 14, 15, 0, 0, 0, time.UTC)))
			assert.Equal(t, 5*time.Hour, anna.FreeTimeLimit)
			assert.Equal(t, []string{"stage"}, anna.ExcludedCategoryIDs)

			boris, err := store.GetPerson(ctx, "boris")
			require.NoError(t, err)
			assert.Equal(t, 2*time.Hour, boris.FreeTimeLimit)
			assert.Nil(t, boris.Arrival)

			bookings, err := store.ListBookings(ctx, persistence.BookingFilter{EventID: "fest"})
			require.NoError(t, err)
			require.Len(t, bookings, 1)
			assert.Equal(t, []string{"anna", "boris"}, bookings[0].PersonIDs)
			assert.True(t, bookings[0].End.Equal(time.Date(2024, 7, 12, 11, 30, 0, 0, time.UTC)))
		})
	}
}

func TestImportIsAtomic(t *testing.T) {
	store := testfixtures.NewMemoryStore(t)
	doc := festivalYAML + `
  - id: b2
    event: fest
    activity: missing
    start: 2024-07-12 12:00
    end: 2024-07-12 13:00
`
	_, err := Import(context.Background(), store, strings.NewReader(doc), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, persistence.ErrForeignKeyViolation)

	categories, err := store.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, categories)
}

func TestRecordsReportsEveryProblem(t *testing.T) {
	doc, err := Decode(strings.NewReader(`
categories:
  - name: ""
    activity_type: party
    time_coefficient: -2
bookings:
  - event: fest
    activity: dishes
    start: tomorrow
    end: 2024-07-12 10:00
`))
	require.NoError(t, err)

	_, err = doc.Records(Options{NewID: testfixtures.NewIDGenerator("gen").Next})
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"categories[0].time_coefficient",
		"categories[0].activity_type",
		"categories[0].name is required",
		"bookings[0].start must be a timestamp",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestRecordsRejectsCoefficientPrecision(t *testing.T) {
	for _, coef := range []string{"1.25", "12.5", "0", "0.05"} {
		doc := Document{Categories: []CategoryEntry{{
			ID: "kitchen", Name: "Кухня", ActivityType: "volunteer", TimeCoefficient: coef,
		}}}
		_, err := doc.Records(Options{})
		require.Error(t, err, coef)
		assert.Contains(t, err.Error(), "categories[0].time_coefficient", coef)
	}

	doc := Document{Categories: []CategoryEntry{{
		ID: "kitchen", Name: "Кухня", ActivityType: "volunteer", TimeCoefficient: "1.50",
	}}}
	records, err := doc.Records(Options{})
	require.NoError(t, err)
	assert.Equal(t, "1.5", records.Categories[0].TimeCoefficient.String())
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("rooms:\n  - id: a\n"))
	assert.Error(t, err)

	doc, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, doc.Categories)
}

func TestRecordsGeneratesMissingIDsAndAppliesLocation(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*60*60)
	doc := Document{
		Events: []EventEntry{{Title: "Fest", StartDate: "2024-07-12", EndDate: "2024-07-14"}},
	}
	records, err := doc.Records(Options{Location: moscow, NewID: testfixtures.NewIDGenerator("gen").Next})
	require.NoError(t, err)
	require.Len(t, records.Events, 1)
	assert.Equal(t, "gen-001", records.Events[0].ID)
	assert.True(t, records.Events[0].StartDate.Equal(time.Date(2024, 7, 11, 21, 0, 0, 0, time.UTC)))
}
