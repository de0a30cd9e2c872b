package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/shopspring/decimal"

	"github.com/example/event-scheduler/internal/persistence"
)

var categoryColumns = []string{
	"id", "name", "works_with_people", "time_coefficient", "additional_time_seconds",
	"activity_type", "created_at", "updated_at",
}

// CreateCategory inserts a new category.
func (s *Storage) CreateCategory(ctx context.Context, category persistence.Category) error {
	if category.ID == "" {
		return persistence.ErrConstraintViolation
	}
	if err := persistence.CheckTimeCoefficient(category.TimeCoefficient); err != nil {
		return fmt.Errorf("sqlite: category %s: %w", category.ID, err)
	}
	created, updated := s.stamps(category.CreatedAt, category.UpdatedAt)
	_, err := s.exec(ctx, sq.Insert("categories").Columns(categoryColumns...).Values(
		category.ID,
		category.Name,
		category.WorksWithPeople,
		coefficientText(category.TimeCoefficient),
		seconds(category.AdditionalTime),
		category.ActivityType,
		created,
		updated,
	))
	return err
}

// UpdateCategory overwrites an existing category.
func (s *Storage) UpdateCategory(ctx context.Context, category persistence.Category) error {
	if err := persistence.CheckTimeCoefficient(category.TimeCoefficient); err != nil {
		return fmt.Errorf("sqlite: category %s: %w", category.ID, err)
	}
	res, err := s.exec(ctx, sq.Update("categories").SetMap(map[string]any{
		"name":                    category.Name,
		"works_with_people":       category.WorksWithPeople,
		"time_coefficient":        coefficientText(category.TimeCoefficient),
		"additional_time_seconds": seconds(category.AdditionalTime),
		"activity_type":           category.ActivityType,
		"updated_at":              s.timestamp(),
	}).Where(sq.Eq{"id": category.ID}))
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// GetCategory retrieves a category by ID.
func (s *Storage) GetCategory(ctx context.Context, id string) (persistence.Category, error) {
	row, err := s.queryRow(ctx, sq.Select(categoryColumns...).From("categories").Where(sq.Eq{"id": id}))
	if err != nil {
		return persistence.Category{}, err
	}
	category, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return persistence.Category{}, persistence.ErrNotFound
	}
	return category, err
}

// ListCategories returns every category ordered by name.
func (s *Storage) ListCategories(ctx context.Context) ([]persistence.Category, error) {
	rows, err := s.query(ctx, sq.Select(categoryColumns...).From("categories").OrderBy("name", "id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []persistence.Category
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCategory(row rowScanner) (persistence.Category, error) {
	var (
		category             persistence.Category
		coefficient          string
		additional           int64
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&category.ID,
		&category.Name,
		&category.WorksWithPeople,
		&coefficient,
		&additional,
		&category.ActivityType,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Category{}, err
	}

	coef, err := decimal.NewFromString(coefficient)
	if err != nil {
		return persistence.Category{}, fmt.Errorf("sqlite: category %s coefficient %q: %w", category.ID, coefficient, err)
	}
	category.TimeCoefficient = coef
	category.AdditionalTime = time.Duration(additional) * time.Second
	if category.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Category{}, err
	}
	if category.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Category{}, err
	}
	return category, nil
}

// coefficientText encodes a coefficient already accepted by
// persistence.CheckTimeCoefficient, so StringFixed never rounds.
func coefficientText(d decimal.Decimal) string {
	if d.IsZero() {
		return "1.0"
	}
	return d.StringFixed(1)
}

// stamps fills in missing creation and update times.
func (s *Storage) stamps(created, updated time.Time) (string, string) {
	now := s.now()
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}
	return formatTime(created), formatTime(updated)
}
