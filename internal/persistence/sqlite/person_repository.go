package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/event-scheduler/internal/persistence"
)

var personColumns = []string{
	"id", "first_name", "last_name", "email", "night_owl", "arrival_at", "departure_at",
	"free_time_limit_seconds", "created_at", "updated_at",
}

// CreatePerson inserts a person together with their excluded categories.
func (s *Storage) CreatePerson(ctx context.Context, person persistence.Person) error {
	if person.ID == "" {
		return persistence.ErrConstraintViolation
	}
	created, updated := s.stamps(person.CreatedAt, person.UpdatedAt)
	return s.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.exec(ctx, sq.Insert("persons").Columns(personColumns...).Values(
			person.ID,
			person.FirstName,
			person.LastName,
			nullString(person.Email),
			person.NightOwl,
			formatOptionalTime(person.Arrival),
			formatOptionalTime(person.Departure),
			seconds(person.FreeTimeLimit),
			created,
			updated,
		)); err != nil {
			return err
		}
		return s.replaceExcludedCategories(ctx, person.ID, person.ExcludedCategoryIDs)
	})
}

// UpdatePerson overwrites a person and their excluded categories.
func (s *Storage) UpdatePerson(ctx context.Context, person persistence.Person) error {
	return s.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.exec(ctx, sq.Update("persons").SetMap(map[string]any{
			"first_name":              person.FirstName,
			"last_name":               person.LastName,
			"email":                   nullString(person.Email),
			"night_owl":               person.NightOwl,
			"arrival_at":              formatOptionalTime(person.Arrival),
			"departure_at":            formatOptionalTime(person.Departure),
			"free_time_limit_seconds": seconds(person.FreeTimeLimit),
			"updated_at":              s.timestamp(),
		}).Where(sq.Eq{"id": person.ID}))
		if err != nil {
			return err
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		return s.replaceExcludedCategories(ctx, person.ID, person.ExcludedCategoryIDs)
	})
}

func (s *Storage) replaceExcludedCategories(ctx context.Context, personID string, categoryIDs []string) error {
	if _, err := s.exec(ctx, sq.Delete("person_excluded_categories").Where(sq.Eq{"person_id": personID})); err != nil {
		return err
	}
	if len(categoryIDs) == 0 {
		return nil
	}
	insert := sq.Insert("person_excluded_categories").Columns("person_id", "category_id")
	for _, categoryID := range categoryIDs {
		insert = insert.Values(personID, categoryID)
	}
	_, err := s.exec(ctx, insert)
	return err
}

// GetPerson retrieves a person by ID.
func (s *Storage) GetPerson(ctx context.Context, id string) (persistence.Person, error) {
	persons, err := s.listPersons(ctx, sq.Eq{"id": id})
	if err != nil {
		return persistence.Person{}, err
	}
	if len(persons) == 0 {
		return persistence.Person{}, persistence.ErrNotFound
	}
	return persons[0], nil
}

// ListPersons returns every person ordered by last name, first name and ID.
func (s *Storage) ListPersons(ctx context.Context) ([]persistence.Person, error) {
	return s.listPersons(ctx, nil)
}

func (s *Storage) listPersons(ctx context.Context, where sq.Sqlizer) ([]persistence.Person, error) {
	builder := sq.Select(personColumns...).From("persons").OrderBy("last_name", "first_name", "id")
	if where != nil {
		builder = builder.Where(where)
	}
	rows, err := s.query(ctx, builder)
	if err != nil {
		return nil, err
	}

	var persons []persistence.Person
	for rows.Next() {
		person, err := scanPerson(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		persons = append(persons, person)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(persons) == 0 {
		return persons, nil
	}

	ids := make([]string, len(persons))
	for i, p := range persons {
		ids[i] = p.ID
	}
	excluded, err := s.excludedCategories(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range persons {
		persons[i].ExcludedCategoryIDs = excluded[persons[i].ID]
	}
	return persons, nil
}

func (s *Storage) excludedCategories(ctx context.Context, personIDs []string) (map[string][]string, error) {
	rows, err := s.query(ctx, sq.Select("person_id", "category_id").
		From("person_excluded_categories").
		Where(sq.Eq{"person_id": personIDs}).
		OrderBy("person_id", "category_id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var personID, categoryID string
		if err := rows.Scan(&personID, &categoryID); err != nil {
			return nil, err
		}
		out[personID] = append(out[personID], categoryID)
	}
	return out, rows.Err()
}

func scanPerson(row rowScanner) (persistence.Person, error) {
	var (
		person               persistence.Person
		email                sql.NullString
		arrival, departure   sql.NullString
		limit                int64
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&person.ID,
		&person.FirstName,
		&person.LastName,
		&email,
		&person.NightOwl,
		&arrival,
		&departure,
		&limit,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.Person{}, persistence.ErrNotFound
		}
		return persistence.Person{}, err
	}
	if email.Valid {
		v := email.String
		person.Email = &v
	}
	person.FreeTimeLimit = time.Duration(limit) * time.Second

	var err error
	if person.Arrival, err = parseOptionalTime(arrival); err != nil {
		return persistence.Person{}, err
	}
	if person.Departure, err = parseOptionalTime(departure); err != nil {
		return persistence.Person{}, err
	}
	if person.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Person{}, err
	}
	if person.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Person{}, err
	}
	return person, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
