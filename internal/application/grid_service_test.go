package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/scheduler"
	"github.com/example/event-scheduler/internal/testfixtures"
)

func TestBuildScheduleGrid(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	f := env.festival
	kitchen := env.book(t, f.Kitchen.ID, testfixtures.At(10, 0), testfixtures.At(11, 30), f.Anna.ID)
	concert := env.book(t, f.Concert.ID, testfixtures.At(9, 0), testfixtures.At(10, 0), f.Boris.ID)

	grid, err := env.grids.BuildScheduleGrid(context.Background(), f.Event.ID, GridParams{})
	if err != nil {
		t.Fatalf("build grid: %v", err)
	}
	if len(grid.Columns) != 2 || grid.Columns[0].BookingID != concert.ID || grid.Columns[1].BookingID != kitchen.ID {
		t.Fatalf("expected chronological columns, got %+v", grid.Columns)
	}
	wantRows := []string{f.Boris.ID, f.Anna.ID, f.Vera.ID}
	for i, id := range wantRows {
		if grid.Rows[i].PersonID != id {
			t.Fatalf("row %d: expected %s, got %s", i, id, grid.Rows[i].PersonID)
		}
	}

	want := "12.07 10:00 - 11:30 (1 ч. 30 мин. - 2 ч. 25 мин.) Дежурство на кухне Need 1 more (1/2)"
	if got := grid.Columns[1].Label; got != want {
		t.Fatalf("unexpected label\n got: %q\nwant: %q", got, want)
	}

	cell, ok := grid.Cell(f.Vera.ID, kitchen.ID)
	if !ok || cell.Display != scheduler.DisplayUnavailable {
		t.Fatalf("expected Vera to be unavailable for the kitchen, got %+v", cell)
	}
	if cell, _ := grid.Cell(f.Anna.ID, kitchen.ID); cell.Display != scheduler.DisplayAssigned {
		t.Fatalf("expected Anna to be assigned, got %+v", cell)
	}
	if got := grid.Rows[1].WorkloadLabel; got != "2 ч. 25 мин." {
		t.Fatalf("unexpected workload label %q", got)
	}
}

func TestBuildScheduleGrid_CachesUntilCommit(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	f := env.festival
	ctx := context.Background()
	kitchen := env.book(t, f.Kitchen.ID, testfixtures.At(10, 0), testfixtures.At(11, 0))

	if _, err := env.grids.BuildScheduleGrid(ctx, f.Event.ID, GridParams{}); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := env.grids.BuildScheduleGrid(ctx, f.Event.ID, GridParams{}); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if env.recorder.gridHits != 1 || env.recorder.gridMisses != 1 {
		t.Fatalf("expected one hit and one miss, got %d/%d", env.recorder.gridHits, env.recorder.gridMisses)
	}

	if _, _, err := env.assignments.AssignPersons(ctx, AssignParams{BookingID: kitchen.ID, PersonIDs: []string{f.Anna.ID}}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	grid, err := env.grids.BuildScheduleGrid(ctx, f.Event.ID, GridParams{})
	if err != nil {
		t.Fatalf("third build: %v", err)
	}
	if env.recorder.gridMisses != 2 {
		t.Fatalf("expected commit to invalidate the cached grid")
	}
	if cell, _ := grid.Cell(f.Anna.ID, kitchen.ID); cell.Status != scheduler.StatusAssigned {
		t.Fatalf("expected fresh grid to show the assignment, got %+v", cell)
	}

	env.clock.Outlive(time.Minute)
	if _, err := env.grids.BuildScheduleGrid(ctx, f.Event.ID, GridParams{}); err != nil {
		t.Fatalf("fourth build: %v", err)
	}
	if env.recorder.gridMisses != 3 {
		t.Fatalf("expected expired entry to be rebuilt")
	}
}

// interleavingStore runs afterRead once, right after the first transaction
// of the wrapped store returns.
type interleavingStore struct {
	persistence.Store
	afterRead func()
}

func (s *interleavingStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := s.Store.WithinTx(ctx, fn)
	if s.afterRead != nil {
		hook := s.afterRead
		s.afterRead = nil
		hook()
	}
	return err
}

func TestBuildScheduleGrid_CommitDuringBuildIsNotCached(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	f := env.festival
	ctx := context.Background()
	kitchen := env.book(t, f.Kitchen.ID, testfixtures.At(10, 0), testfixtures.At(11, 0))

	store := &interleavingStore{Store: env.store}
	grids := NewGridService(store, GridServiceConfig{CacheTTL: time.Minute}, env.clock.Now, testfixtures.DiscardLogger(), nil)
	assignments := NewAssignmentService(env.store,
		WithClock(env.clock.Now),
		WithLogger(testfixtures.DiscardLogger()),
		WithCommitHook(grids.InvalidateEvent),
	)
	store.afterRead = func() {
		if _, _, err := assignments.AssignPersons(ctx, AssignParams{BookingID: kitchen.ID, PersonIDs: []string{f.Anna.ID}}); err != nil {
			t.Errorf("assign during build: %v", err)
		}
	}

	stale, err := grids.BuildScheduleGrid(ctx, f.Event.ID, GridParams{})
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	if cell, _ := stale.Cell(f.Anna.ID, kitchen.ID); cell.Status == scheduler.StatusAssigned {
		t.Fatalf("expected the first grid to predate the assignment")
	}

	fresh, err := grids.BuildScheduleGrid(ctx, f.Event.ID, GridParams{})
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if cell, _ := fresh.Cell(f.Anna.ID, kitchen.ID); cell.Status != scheduler.StatusAssigned {
		t.Fatalf("expected the grid built after the commit to show the assignment, got %+v", cell)
	}
}

func TestBuildScheduleGrid_TypeFilter(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	f := env.festival
	env.book(t, f.Kitchen.ID, testfixtures.At(10, 0), testfixtures.At(11, 0), f.Anna.ID)
	official := env.book(t, f.Concert.ID, testfixtures.At(12, 0), testfixtures.At(13, 0))

	activityType := scheduler.ActivityTypeOfficial
	grid, err := env.grids.BuildScheduleGrid(context.Background(), f.Event.ID, GridParams{Type: &activityType})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(grid.Columns) != 1 || grid.Columns[0].BookingID != official.ID {
		t.Fatalf("expected only the official booking, got %+v", grid.Columns)
	}
	if grid.Rows[1].Workload != time.Hour+40*time.Minute {
		t.Fatalf("workload must include volunteer bookings outside the filter, got %v", grid.Rows[1].Workload)
	}

	bogus := scheduler.ActivityType("party")
	_, err = env.grids.BuildScheduleGrid(context.Background(), f.Event.ID, GridParams{Type: &bogus})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected validation error for unknown type, got %v", err)
	}
}

func TestBuildScheduleGrid_UnknownEvent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	if _, err := env.grids.BuildScheduleGrid(context.Background(), "missing", GridParams{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPersonSchedule(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	f := env.festival
	ctx := context.Background()
	late := env.book(t, f.Kitchen.ID, testfixtures.At(15, 0), testfixtures.At(16, 0), f.Anna.ID)
	early := env.book(t, f.Concert.ID, testfixtures.At(9, 0), testfixtures.At(10, 0), f.Anna.ID)
	env.book(t, f.Rehearsal.ID, testfixtures.At(11, 0), testfixtures.At(12, 0), f.Boris.ID)

	all, err := env.grids.PersonSchedule(ctx, f.Event.ID, f.Anna.ID, nil)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(all) != 2 || all[0].ID != early.ID || all[1].ID != late.ID {
		t.Fatalf("unexpected schedule %+v", all)
	}

	volunteer := scheduler.ActivityTypeVolunteer
	onlyVolunteer, err := env.grids.PersonSchedule(ctx, f.Event.ID, f.Anna.ID, &volunteer)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(onlyVolunteer) != 1 || onlyVolunteer[0].ID != late.ID {
		t.Fatalf("unexpected filtered schedule %+v", onlyVolunteer)
	}

	if _, err := env.grids.PersonSchedule(ctx, f.Event.ID, "ghost", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown person, got %v", err)
	}
}

func TestLatestEvent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	later := testfixtures.NewEvent(testfixtures.WithEventDates(
		testfixtures.ReferenceTime().AddDate(0, 1, 0),
		testfixtures.ReferenceTime().AddDate(0, 1, 2),
	))
	if err := env.store.CreateEvent(context.Background(), later); err != nil {
		t.Fatalf("create event: %v", err)
	}

	event, err := env.grids.LatestEvent(context.Background())
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if event.ID != later.ID {
		t.Fatalf("expected %s, got %s", later.ID, event.ID)
	}
}
