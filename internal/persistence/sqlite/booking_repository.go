package sqlite

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/example/event-scheduler/internal/persistence"
)

var bookingColumns = []string{"id", "event_id", "activity_id", "start_at", "end_at", "created_at", "updated_at"}

// CreateBooking inserts a booking and its assigned persons.
func (s *Storage) CreateBooking(ctx context.Context, booking persistence.Booking) error {
	if err := validateBooking(booking); err != nil {
		return err
	}
	created, updated := s.stamps(booking.CreatedAt, booking.UpdatedAt)
	return s.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.exec(ctx, sq.Insert("bookings").Columns(bookingColumns...).Values(
			booking.ID,
			booking.EventID,
			booking.ActivityID,
			formatTime(booking.Start),
			formatTime(booking.End),
			created,
			updated,
		)); err != nil {
			return err
		}
		return s.replaceBookingPersons(ctx, booking.ID, booking.PersonIDs)
	})
}

// UpdateBooking overwrites the activity, times and persons of a booking. The
// owning event never changes.
func (s *Storage) UpdateBooking(ctx context.Context, booking persistence.Booking) error {
	if err := validateBooking(booking); err != nil {
		return err
	}
	return s.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.exec(ctx, sq.Update("bookings").SetMap(map[string]any{
			"activity_id": booking.ActivityID,
			"start_at":    formatTime(booking.Start),
			"end_at":      formatTime(booking.End),
			"updated_at":  s.timestamp(),
		}).Where(sq.Eq{"id": booking.ID, "event_id": booking.EventID}))
		if err != nil {
			return err
		}
		if err := expectAffected(res); err != nil {
			return err
		}
		return s.replaceBookingPersons(ctx, booking.ID, booking.PersonIDs)
	})
}

func validateBooking(booking persistence.Booking) error {
	if booking.ID == "" || booking.EventID == "" || booking.ActivityID == "" {
		return fmt.Errorf("sqlite: booking identifiers are required: %w", persistence.ErrConstraintViolation)
	}
	if !booking.Start.Before(booking.End) {
		return fmt.Errorf("sqlite: booking %s must start before it ends: %w", booking.ID, persistence.ErrConstraintViolation)
	}
	return nil
}

func (s *Storage) replaceBookingPersons(ctx context.Context, bookingID string, personIDs []string) error {
	if _, err := s.exec(ctx, sq.Delete("booking_persons").Where(sq.Eq{"booking_id": bookingID})); err != nil {
		return err
	}
	if len(personIDs) == 0 {
		return nil
	}
	insert := sq.Insert("booking_persons").Columns("booking_id", "person_id", "position")
	for i, personID := range personIDs {
		insert = insert.Values(bookingID, personID, i)
	}
	_, err := s.exec(ctx, insert)
	return err
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	bookings, err := s.listBookings(ctx, sq.Eq{"b.id": id})
	if err != nil {
		return persistence.Booking{}, err
	}
	if len(bookings) == 0 {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return bookings[0], nil
}

// ListBookings returns the bookings matching filter ordered by start, end and ID.
func (s *Storage) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	where := sq.And{}
	if filter.EventID != "" {
		where = append(where, sq.Eq{"b.event_id": filter.EventID})
	}
	if filter.PersonID != "" {
		where = append(where, sq.Expr("b.id IN (SELECT booking_id FROM booking_persons WHERE person_id = ?)", filter.PersonID))
	}
	return s.listBookings(ctx, where)
}

func (s *Storage) listBookings(ctx context.Context, where sq.Sqlizer) ([]persistence.Booking, error) {
	columns := make([]string, len(bookingColumns))
	for i, c := range bookingColumns {
		columns[i] = "b." + c
	}
	rows, err := s.query(ctx, sq.Select(columns...).From("bookings b").Where(where).OrderBy("b.start_at", "b.end_at", "b.id"))
	if err != nil {
		return nil, err
	}

	var bookings []persistence.Booking
	for rows.Next() {
		var (
			booking                      persistence.Booking
			start, end, created, updated string
		)
		if err := rows.Scan(&booking.ID, &booking.EventID, &booking.ActivityID, &start, &end, &created, &updated); err != nil {
			rows.Close()
			return nil, err
		}
		if booking.Start, err = parseTime(start); err == nil {
			if booking.End, err = parseTime(end); err == nil {
				if booking.CreatedAt, err = parseTime(created); err == nil {
					booking.UpdatedAt, err = parseTime(updated)
				}
			}
		}
		if err != nil {
			rows.Close()
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(bookings) == 0 {
		return bookings, nil
	}

	ids := make([]string, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID
	}
	persons, err := s.bookingPersons(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i].PersonIDs = persons[bookings[i].ID]
	}
	return bookings, nil
}

func (s *Storage) bookingPersons(ctx context.Context, bookingIDs []string) (map[string][]string, error) {
	rows, err := s.query(ctx, sq.Select("booking_id", "person_id").
		From("booking_persons").
		Where(sq.Eq{"booking_id": bookingIDs}).
		OrderBy("booking_id", "position"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var bookingID, personID string
		if err := rows.Scan(&bookingID, &personID); err != nil {
			return nil, err
		}
		out[bookingID] = append(out[bookingID], personID)
	}
	return out, rows.Err()
}
