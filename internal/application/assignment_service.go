package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/example/event-scheduler/internal/metrics"
	"github.com/example/event-scheduler/internal/persistence"
	"github.com/example/event-scheduler/internal/scheduler"
)

// AssignmentService validates and commits person assignments.
type AssignmentService struct {
	repos       Repositories
	locks       *keyedLocker
	pipeline    scheduler.PipelineOptions
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	metrics     metrics.Recorder
	onCommit    []func(eventID string)
}

// AssignmentOption customizes an AssignmentService.
type AssignmentOption func(*AssignmentService)

// WithPipelineOptions sets the validation pipeline options.
func WithPipelineOptions(opts scheduler.PipelineOptions) AssignmentOption {
	return func(s *AssignmentService) { s.pipeline = opts }
}

// WithIDGenerator overrides the booking identifier source.
func WithIDGenerator(next func() string) AssignmentOption {
	return func(s *AssignmentService) {
		if next != nil {
			s.idGenerator = next
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) AssignmentOption {
	return func(s *AssignmentService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) AssignmentOption {
	return func(s *AssignmentService) { s.logger = defaultLogger(logger) }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(rec metrics.Recorder) AssignmentOption {
	return func(s *AssignmentService) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// WithCommitHook registers fn to run after every committed change with the
// affected event.
func WithCommitHook(fn func(eventID string)) AssignmentOption {
	return func(s *AssignmentService) {
		if fn != nil {
			s.onCommit = append(s.onCommit, fn)
		}
	}
}

// NewAssignmentService wires the service to its storage.
func NewAssignmentService(repos Repositories, opts ...AssignmentOption) *AssignmentService {
	s := &AssignmentService{
		repos:       repos,
		locks:       newKeyedLocker(),
		idGenerator: uuid.NewString,
		now:         time.Now,
		logger:      slog.Default(),
		metrics:     metrics.NopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AssignmentService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AssignmentService", operation, attrs...)
}

func (s *AssignmentService) ready() error {
	if s == nil {
		return fmt.Errorf("AssignmentService is nil")
	}
	if s.repos == nil {
		return fmt.Errorf("assignment repositories not configured")
	}
	return nil
}

// observe records the outcome of one validation run.
func (s *AssignmentService) observe(operation string, started time.Time, result scheduler.ValidationResult, err error) {
	outcome := "accepted"
	switch {
	case err != nil && !errors.As(err, new(*AssignmentError)):
		outcome = "error"
	case !result.Accepted():
		outcome = "rejected"
	}
	s.metrics.ObserveValidation(operation, outcome, time.Since(started))
	for _, v := range result.Violations() {
		s.metrics.CountViolation(string(v.Kind))
	}
}

func (s *AssignmentService) committed(eventID string) {
	for _, fn := range s.onCommit {
		fn(eventID)
	}
}

// ValidateAssignment checks whether the persons could be added to a persisted
// booking. Nothing is written; rejections are reported in the result.
func (s *AssignmentService) ValidateAssignment(ctx context.Context, bookingID string, personIDs []string) (result scheduler.ValidationResult, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "ValidateAssignment", "booking_id", bookingID)
	started := time.Now()
	defer func() {
		s.observe("validate", started, result, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to validate assignment", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "assignment validated", "accepted", result.Accepted())
	}()

	if vErr := validateAssignParams(AssignParams{BookingID: bookingID, PersonIDs: personIDs}); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.repos.WithinTx(ctx, func(ctx context.Context) error {
		snap, candidate, err := s.loadBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		persons, err := snap.resolvePersons(uniqueStrings(personIDs))
		if err != nil {
			return err
		}
		result = scheduler.ValidateAssignment(candidate, persons, snap.bookings, s.pipeline)
		return nil
	})
	return
}

// ValidateProposal checks a booking that does not exist yet against the
// event's persisted bookings. Nothing is written.
func (s *AssignmentService) ValidateProposal(ctx context.Context, proposal Proposal) (result scheduler.ValidationResult, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "ValidateProposal", "event_id", proposal.EventID, "activity_id", proposal.ActivityID)
	started := time.Now()
	defer func() {
		s.observe("validate", started, result, err)
		if err != nil {
			logger.ErrorContext(ctx, "failed to validate proposal", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if vErr := validateProposal(proposal); vErr.HasErrors() {
		err = vErr
		return
	}

	err = s.repos.WithinTx(ctx, func(ctx context.Context) error {
		snap, err := loadSnapshot(ctx, s.repos, proposal.EventID)
		if err != nil {
			return err
		}
		candidate, err := s.proposedBooking(snap, "", proposal)
		if err != nil {
			return err
		}
		persons, err := snap.resolvePersons(candidate.PersonIDs)
		if err != nil {
			return err
		}
		result = scheduler.ValidateAssignment(candidate, persons, snap.bookings, s.pipeline)
		return nil
	})
	return
}

// AssignPersons adds persons to a booking. The booking set is re-read and
// re-validated inside the commit; when any person is rejected nothing is
// written and the error is an *AssignmentError. Persons already assigned are
// left in place.
func (s *AssignmentService) AssignPersons(ctx context.Context, params AssignParams) (booking persistence.Booking, result scheduler.ValidationResult, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "AssignPersons", "booking_id", params.BookingID, "person_ids", params.PersonIDs)
	started := time.Now()
	defer func() {
		s.observe("assign", started, result, err)
		if err != nil {
			logger.WarnContext(ctx, "assignment not committed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "persons assigned", "assigned", len(booking.PersonIDs))
	}()

	if vErr := validateAssignParams(params); vErr.HasErrors() {
		err = vErr
		return
	}
	personIDs := uniqueStrings(params.PersonIDs)

	current, err := s.repos.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	eventID := current.EventID

	unlock := s.locks.Lock(commitLockKeys(eventID, params.BookingID, personIDs)...)
	defer unlock()

	err = s.repos.WithinTx(ctx, func(ctx context.Context) error {
		stored, err := s.repos.GetBooking(ctx, params.BookingID)
		if err != nil {
			return mapRepoError(err)
		}
		snap, candidate, err := s.loadBooking(ctx, params.BookingID)
		if err != nil {
			return err
		}

		var added []string
		for _, id := range personIDs {
			if !candidate.HasPerson(id) {
				added = append(added, id)
			}
		}
		persons, err := snap.resolvePersons(added)
		if err != nil {
			return err
		}
		result = scheduler.ValidateAssignment(candidate, persons, snap.bookings, s.pipeline)
		if err := assignmentError(result); err != nil {
			return err
		}
		if len(added) == 0 {
			booking = stored
			return nil
		}

		stored.PersonIDs = append(stored.PersonIDs, added...)
		stored.UpdatedAt = s.now()
		if err := s.repos.UpdateBooking(ctx, stored); err != nil {
			return mapRepoError(err)
		}
		booking = stored
		return nil
	})
	if err == nil {
		s.committed(eventID)
	}
	return
}

// CreateBooking stores a new booking together with its initial persons.
// Every person is validated against the event first; any rejection aborts the
// whole creation with an *AssignmentError.
func (s *AssignmentService) CreateBooking(ctx context.Context, proposal Proposal) (booking persistence.Booking, result scheduler.ValidationResult, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "CreateBooking", "event_id", proposal.EventID, "activity_id", proposal.ActivityID)
	started := time.Now()
	defer func() {
		s.observe("create", started, result, err)
		if err != nil {
			logger.WarnContext(ctx, "booking not created", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	if vErr := validateProposal(proposal); vErr.HasErrors() {
		err = vErr
		return
	}

	bookingID := s.idGenerator()
	proposal.PersonIDs = uniqueStrings(proposal.PersonIDs)
	unlock := s.locks.Lock(commitLockKeys(proposal.EventID, bookingID, proposal.PersonIDs)...)
	defer unlock()

	err = s.repos.WithinTx(ctx, func(ctx context.Context) error {
		snap, err := loadSnapshot(ctx, s.repos, proposal.EventID)
		if err != nil {
			return err
		}
		candidate, err := s.proposedBooking(snap, bookingID, proposal)
		if err != nil {
			return err
		}
		persons, err := snap.resolvePersons(candidate.PersonIDs)
		if err != nil {
			return err
		}
		result = scheduler.ValidateAssignment(candidate, persons, snap.bookings, s.pipeline)
		if err := assignmentError(result); err != nil {
			return err
		}

		now := s.now()
		record := persistence.Booking{
			ID:         bookingID,
			EventID:    proposal.EventID,
			ActivityID: proposal.ActivityID,
			Start:      proposal.Start,
			End:        proposal.End,
			PersonIDs:  candidate.PersonIDs,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.repos.CreateBooking(ctx, record); err != nil {
			return mapRepoError(err)
		}
		booking = record
		return nil
	})
	if err == nil {
		s.committed(proposal.EventID)
	}
	return
}

// RescheduleBooking moves a booking to new times, optionally switching its
// activity, after re-validating every assigned person against the new slot.
func (s *AssignmentService) RescheduleBooking(ctx context.Context, params RescheduleParams) (booking persistence.Booking, result scheduler.ValidationResult, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "RescheduleBooking", "booking_id", params.BookingID)
	started := time.Now()
	defer func() {
		s.observe("reschedule", started, result, err)
		if err != nil {
			logger.WarnContext(ctx, "booking not rescheduled", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "booking rescheduled")
	}()

	if vErr := validateRescheduleParams(params); vErr.HasErrors() {
		err = vErr
		return
	}

	current, err := s.repos.GetBooking(ctx, params.BookingID)
	if err != nil {
		err = mapRepoError(err)
		return
	}
	eventID := current.EventID

	unlock := s.locks.Lock(commitLockKeys(eventID, params.BookingID, current.PersonIDs)...)
	defer unlock()

	err = s.repos.WithinTx(ctx, func(ctx context.Context) error {
		stored, err := s.repos.GetBooking(ctx, params.BookingID)
		if err != nil {
			return mapRepoError(err)
		}
		if !slices.Equal(stored.PersonIDs, current.PersonIDs) {
			// Persons changed between the lookup and the lock; their keys are not held.
			return fmt.Errorf("%w: booking %s changed concurrently", ErrInvalidInput, params.BookingID)
		}
		snap, err := loadSnapshot(ctx, s.repos, stored.EventID)
		if err != nil {
			return err
		}

		if params.ActivityID != "" {
			stored.ActivityID = params.ActivityID
		}
		stored.Start, stored.End = params.Start, params.End
		candidate, err := snap.toBooking(stored)
		if err != nil {
			return err
		}
		persons, err := snap.resolvePersons(stored.PersonIDs)
		if err != nil {
			return err
		}
		result = scheduler.ValidateAssignment(candidate, persons, snap.bookings, s.pipeline)
		if err := assignmentError(result); err != nil {
			return err
		}

		stored.UpdatedAt = s.now()
		if err := s.repos.UpdateBooking(ctx, stored); err != nil {
			return mapRepoError(err)
		}
		booking = stored
		return nil
	})
	if err == nil {
		s.committed(eventID)
	}
	return
}

// UnassignPerson removes a person from a booking. Removing a person never
// breaks a rule so no validation runs.
func (s *AssignmentService) UnassignPerson(ctx context.Context, bookingID, personID string) (booking persistence.Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "UnassignPerson", "booking_id", bookingID, "person_id", personID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to unassign person", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "person unassigned")
	}()

	current, err := s.repos.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapRepoError(err)
		return
	}

	unlock := s.locks.Lock(commitLockKeys(current.EventID, bookingID, []string{personID})...)
	defer unlock()

	err = s.repos.WithinTx(ctx, func(ctx context.Context) error {
		stored, err := s.repos.GetBooking(ctx, bookingID)
		if err != nil {
			return mapRepoError(err)
		}
		idx := slices.Index(stored.PersonIDs, personID)
		if idx < 0 {
			return fmt.Errorf("%w: person %s is not assigned to booking %s", ErrNotFound, personID, bookingID)
		}
		stored.PersonIDs = slices.Delete(stored.PersonIDs, idx, idx+1)
		stored.UpdatedAt = s.now()
		if err := s.repos.UpdateBooking(ctx, stored); err != nil {
			return mapRepoError(err)
		}
		booking = stored
		return nil
	})
	if err == nil {
		s.committed(current.EventID)
	}
	return
}

// ComputeWeightedDuration returns the workload a booking counts for.
func (s *AssignmentService) ComputeWeightedDuration(ctx context.Context, bookingID string) (time.Duration, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	stored, err := s.repos.GetBooking(ctx, bookingID)
	if err != nil {
		return 0, mapRepoError(err)
	}
	activity, err := s.repos.GetActivity(ctx, stored.ActivityID)
	if err != nil {
		return 0, mapRepoError(err)
	}
	category, err := s.repos.GetCategory(ctx, activity.CategoryID)
	if err != nil {
		return 0, mapRepoError(err)
	}
	schedCategory, err := toCategory(category)
	if err != nil {
		return 0, err
	}
	return scheduler.WeightedDuration(scheduler.Booking{
		ID:       stored.ID,
		EventID:  stored.EventID,
		Activity: toActivity(activity, schedCategory),
		Start:    stored.Start,
		End:      stored.End,
	}), nil
}

// ClassifyAvailability reports how a person relates to a booking.
func (s *AssignmentService) ClassifyAvailability(ctx context.Context, personID, bookingID string) (status scheduler.Status, err error) {
	if err = s.ready(); err != nil {
		return
	}
	err = s.repos.WithinTx(ctx, func(ctx context.Context) error {
		snap, candidate, err := s.loadBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		persons, err := snap.resolvePersons([]string{personID})
		if err != nil {
			return err
		}
		status = scheduler.Classify(persons[0], candidate, snap.bookings)
		return nil
	})
	if err != nil {
		s.loggerWith(ctx, "ClassifyAvailability", "booking_id", bookingID, "person_id", personID).
			ErrorContext(ctx, "failed to classify availability", "error", err, "error_kind", ErrorKind(err))
	}
	return
}

// loadBooking reads a persisted booking and its event snapshot.
func (s *AssignmentService) loadBooking(ctx context.Context, bookingID string) (*eventSnapshot, scheduler.Booking, error) {
	stored, err := s.repos.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, scheduler.Booking{}, mapRepoError(err)
	}
	snap, err := loadSnapshot(ctx, s.repos, stored.EventID)
	if err != nil {
		return nil, scheduler.Booking{}, err
	}
	candidate, ok := snap.booking(bookingID)
	if !ok {
		return nil, scheduler.Booking{}, fmt.Errorf("%w: booking %s", ErrNotFound, bookingID)
	}
	return snap, candidate, nil
}

func (s *AssignmentService) proposedBooking(snap *eventSnapshot, id string, proposal Proposal) (scheduler.Booking, error) {
	return snap.toBooking(persistence.Booking{
		ID:         id,
		EventID:    proposal.EventID,
		ActivityID: proposal.ActivityID,
		Start:      proposal.Start,
		End:        proposal.End,
		PersonIDs:  uniqueStrings(proposal.PersonIDs),
	})
}
