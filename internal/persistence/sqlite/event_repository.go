package sqlite

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/event-scheduler/internal/persistence"
)

var eventColumns = []string{"id", "title", "start_date", "end_date", "created_at", "updated_at"}

// CreateEvent inserts a new event.
func (s *Storage) CreateEvent(ctx context.Context, event persistence.Event) error {
	if event.ID == "" {
		return persistence.ErrConstraintViolation
	}
	created, updated := s.stamps(event.CreatedAt, event.UpdatedAt)
	_, err := s.exec(ctx, sq.Insert("events").Columns(eventColumns...).Values(
		event.ID,
		event.Title,
		formatTime(event.StartDate),
		formatTime(event.EndDate),
		created,
		updated,
	))
	return err
}

// UpdateEvent overwrites an existing event.
func (s *Storage) UpdateEvent(ctx context.Context, event persistence.Event) error {
	res, err := s.exec(ctx, sq.Update("events").SetMap(map[string]any{
		"title":      event.Title,
		"start_date": formatTime(event.StartDate),
		"end_date":   formatTime(event.EndDate),
		"updated_at": s.timestamp(),
	}).Where(sq.Eq{"id": event.ID}))
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// GetEvent retrieves an event by ID.
func (s *Storage) GetEvent(ctx context.Context, id string) (persistence.Event, error) {
	return s.getEvent(ctx, sq.Select(eventColumns...).From("events").Where(sq.Eq{"id": id}))
}

// LatestEvent returns the event with the latest start date.
func (s *Storage) LatestEvent(ctx context.Context) (persistence.Event, error) {
	return s.getEvent(ctx, sq.Select(eventColumns...).From("events").OrderBy("start_date DESC", "id DESC").Limit(1))
}

func (s *Storage) getEvent(ctx context.Context, builder sq.SelectBuilder) (persistence.Event, error) {
	row, err := s.queryRow(ctx, builder)
	if err != nil {
		return persistence.Event{}, err
	}
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Event{}, persistence.ErrNotFound
	}
	return event, err
}

// ListEvents returns every event ordered by start date.
func (s *Storage) ListEvents(ctx context.Context) ([]persistence.Event, error) {
	rows, err := s.query(ctx, sq.Select(eventColumns...).From("events").OrderBy("start_date", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []persistence.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func scanEvent(row rowScanner) (persistence.Event, error) {
	var (
		event                        persistence.Event
		start, end, created, updated string
	)
	if err := row.Scan(&event.ID, &event.Title, &start, &end, &created, &updated); err != nil {
		return persistence.Event{}, err
	}
	var err error
	if event.StartDate, err = parseTime(start); err != nil {
		return persistence.Event{}, err
	}
	if event.EndDate, err = parseTime(end); err != nil {
		return persistence.Event{}, err
	}
	if event.CreatedAt, err = parseTime(created); err != nil {
		return persistence.Event{}, err
	}
	if event.UpdatedAt, err = parseTime(updated); err != nil {
		return persistence.Event{}, err
	}
	return event, nil
}
