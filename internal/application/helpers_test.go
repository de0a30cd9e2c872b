package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/testfixtures"
)

type recordedValidation struct {
	operation string
	outcome   string
}

type fakeRecorder struct {
	mu          sync.Mutex
	validations []recordedValidation
	violations  map[string]int
	gridHits    int
	gridMisses  int
}

func (r *fakeRecorder) ObserveValidation(operation, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validations = append(r.validations, recordedValidation{operation, outcome})
}

func (r *fakeRecorder) CountViolation(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.violations == nil {
		r.violations = make(map[string]int)
	}
	r.violations[kind]++
}

func (r *fakeRecorder) ObserveGridBuild(cached bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cached {
		r.gridHits++
	} else {
		r.gridMisses++
	}
}

type testEnv struct {
	store       persistence.Store
	festival    testfixtures.Festival
	assignments *AssignmentService
	grids       *GridService
	recorder    *fakeRecorder
	clock       *testfixtures.Clock
	commits     []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:    testfixtures.NewMemoryStore(t),
		recorder: &fakeRecorder{},
		clock:    testfixtures.NewClock(time.Time{}),
	}
	env.festival = testfixtures.SeedFestival(t, env.store)

	logger := testfixtures.DiscardLogger()
	env.grids = NewGridService(env.store, GridServiceConfig{CacheTTL: time.Minute}, env.clock.Now, logger, env.recorder)
	var mu sync.Mutex
	env.assignments = NewAssignmentService(env.store,
		WithIDGenerator(testfixtures.NewIDGenerator("created").Next),
		WithClock(env.clock.Now),
		WithLogger(logger),
		WithMetrics(env.recorder),
		WithCommitHook(env.grids.InvalidateEvent),
		WithCommitHook(func(eventID string) {
			mu.Lock()
			env.commits = append(env.commits, eventID)
			mu.Unlock()
		}),
	)
	return env
}

// book stores a booking directly, bypassing validation.
func (e *testEnv) book(t *testing.T, activityID string, start, end time.Time, personIDs ...string) persistence.Booking {
	t.Helper()
	b := testfixtures.NewBooking(e.festival.Event.ID, activityID, start, end, testfixtures.WithPersons(personIDs...))
	if err := e.store.CreateBooking(context.Background(), b); err != nil {
		t.Fatalf("store booking: %v", err)
	}
	return b
}

func (e *testEnv) reload(t *testing.T, bookingID string) persistence.Booking {
	t.Helper()
	b, err := e.store.GetBooking(context.Background(), bookingID)
	if err != nil {
		t.Fatalf("reload booking %s: %v", bookingID, err)
	}
	return b
}
