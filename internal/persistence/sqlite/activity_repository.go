package sqlite

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/event-scheduler/internal/persistence"
)

var activityColumns = []string{"id", "name", "description", "category_id", "need_people", "created_at", "updated_at"}

// CreateActivity inserts a new activity.
func (s *Storage) CreateActivity(ctx context.Context, activity persistence.Activity) error {
	if activity.ID == "" {
		return persistence.ErrConstraintViolation
	}
	created, updated := s.stamps(activity.CreatedAt, activity.UpdatedAt)
	_, err := s.exec(ctx, sq.Insert("activities").Columns(activityColumns...).Values(
		activity.ID,
		activity.Name,
		activity.Description,
		activity.CategoryID,
		nullInt(activity.NeedPeople),
		created,
		updated,
	))
	return err
}

// UpdateActivity overwrites an existing activity.
func (s *Storage) UpdateActivity(ctx context.Context, activity persistence.Activity) error {
	res, err := s.exec(ctx, sq.Update("activities").SetMap(map[string]any{
		"name":        activity.Name,
		"description": activity.Description,
		"category_id": activity.CategoryID,
		"need_people": nullInt(activity.NeedPeople),
		"updated_at":  s.timestamp(),
	}).Where(sq.Eq{"id": activity.ID}))
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// GetActivity retrieves an activity by ID.
func (s *Storage) GetActivity(ctx context.Context, id string) (persistence.Activity, error) {
	row, err := s.queryRow(ctx, sq.Select(activityColumns...).From("activities").Where(sq.Eq{"id": id}))
	if err != nil {
		return persistence.Activity{}, err
	}
	activity, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Activity{}, persistence.ErrNotFound
	}
	return activity, err
}

// ListActivities returns every activity ordered by name.
func (s *Storage) ListActivities(ctx context.Context) ([]persistence.Activity, error) {
	rows, err := s.query(ctx, sq.Select(activityColumns...).From("activities").OrderBy("name", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []persistence.Activity
	for rows.Next() {
		activity, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}
	return activities, rows.Err()
}

func scanActivity(row rowScanner) (persistence.Activity, error) {
	var (
		activity             persistence.Activity
		need                 sql.NullInt64
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&activity.ID,
		&activity.Name,
		&activity.Description,
		&activity.CategoryID,
		&need,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Activity{}, err
	}
	if need.Valid {
		v := int(need.Int64)
		activity.NeedPeople = &v
	}
	var err error
	if activity.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Activity{}, err
	}
	if activity.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Activity{}, err
	}
	return activity, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
