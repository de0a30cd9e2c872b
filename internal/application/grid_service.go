package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/text/language"

	"github.com/example/event-scheduler/internal/metrics"
	"github.com/example/event-scheduler/internal/scheduler"
)

// GridServiceConfig tunes grid caching and row ordering.
type GridServiceConfig struct {
	CacheTTL        time.Duration
	CacheMaxEntries int
	Collation       language.Tag
}

// GridService builds schedule grids and per-person schedules.
type GridService struct {
	repos     Repositories
	cache     *gridCache
	collation language.Tag
	logger    *slog.Logger
	metrics   metrics.Recorder
}

// NewGridService constructs a grid service. A nil recorder disables metrics.
func NewGridService(repos Repositories, cfg GridServiceConfig, now func() time.Time, logger *slog.Logger, rec metrics.Recorder) *GridService {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &GridService{
		repos:     repos,
		cache:     newGridCache(cfg.CacheTTL, cfg.CacheMaxEntries, now),
		collation: cfg.Collation,
		logger:    defaultLogger(logger),
		metrics:   rec,
	}
}

func (s *GridService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "GridService", operation, attrs...)
}

// InvalidateEvent drops cached grids of the event. It is registered as a
// commit hook of the AssignmentService.
func (s *GridService) InvalidateEvent(eventID string) {
	if s == nil {
		return
	}
	s.cache.InvalidateEvent(eventID)
}

// BuildScheduleGrid returns the availability grid of one event from a single
// consistent read.
func (s *GridService) BuildScheduleGrid(ctx context.Context, eventID string, params GridParams) (grid scheduler.Grid, err error) {
	if s == nil || s.repos == nil {
		err = fmt.Errorf("grid service not configured")
		return
	}
	if eventID == "" {
		vErr := &ValidationError{}
		vErr.add("event_id", "is required")
		err = vErr
		return
	}
	if params.Type != nil && !params.Type.Valid() {
		vErr := &ValidationError{}
		vErr.add("type", fmt.Sprintf("unknown activity type %q", *params.Type))
		err = vErr
		return
	}

	logger := s.loggerWith(ctx, "BuildScheduleGrid", "event_id", eventID)
	key := gridCacheKey(eventID, params)
	if cached, ok := s.cache.Get(key); ok {
		s.metrics.ObserveGridBuild(true, 0)
		logger.DebugContext(ctx, "grid served from cache")
		return cached, nil
	}

	started := time.Now()
	generation := s.cache.Generation(eventID)
	err = s.repos.WithinTx(ctx, func(ctx context.Context) error {
		snap, err := loadSnapshot(ctx, s.repos, eventID)
		if err != nil {
			return err
		}
		grid = scheduler.BuildGrid(snap.event, snap.bookings, snap.persons, scheduler.GridOptions{
			Type:      params.Type,
			Collation: s.collation,
			Location:  params.Location,
		})
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to build grid", "error", err, "error_kind", ErrorKind(err))
		return scheduler.Grid{}, err
	}

	s.metrics.ObserveGridBuild(false, time.Since(started))
	if !s.cache.Store(key, eventID, generation, grid) {
		logger.DebugContext(ctx, "grid not cached, event changed while building")
	}
	logger.DebugContext(ctx, "grid built", "columns", len(grid.Columns), "rows", len(grid.Rows))
	return grid, nil
}

// PersonSchedule lists the person's bookings in the event in chronological
// order, optionally restricted to one activity type.
func (s *GridService) PersonSchedule(ctx context.Context, eventID, personID string, activityType *scheduler.ActivityType) (bookings []scheduler.Booking, err error) {
	if s == nil || s.repos == nil {
		return nil, fmt.Errorf("grid service not configured")
	}
	err = s.repos.WithinTx(ctx, func(ctx context.Context) error {
		snap, err := loadSnapshot(ctx, s.repos, eventID)
		if err != nil {
			return err
		}
		if _, ok := snap.personByID[personID]; !ok {
			return fmt.Errorf("%w: person %s", ErrNotFound, personID)
		}
		bookings = scheduler.PersonSchedule(personID, snap.bookings, activityType)
		return nil
	})
	if err != nil {
		s.loggerWith(ctx, "PersonSchedule", "event_id", eventID, "person_id", personID).
			ErrorContext(ctx, "failed to load person schedule", "error", err, "error_kind", ErrorKind(err))
	}
	return
}

// LatestEvent returns the event with the latest start date. Only the command
// line uses it to pick a default event.
func (s *GridService) LatestEvent(ctx context.Context) (scheduler.Event, error) {
	if s == nil || s.repos == nil {
		return scheduler.Event{}, fmt.Errorf("grid service not configured")
	}
	event, err := s.repos.LatestEvent(ctx)
	if err != nil {
		return scheduler.Event{}, mapRepoError(err)
	}
	return toEvent(event), nil
}
