package scheduler

// Stage identifies a step of the assignment validation pipeline.
type Stage string

const (
	StageExcludedCategory Stage = "excluded_category_check"
	StageAttendance       Stage = "attendance_check"
	StageBudget           Stage = "budget_check"
	StageOverlap          Stage = "overlap_check"
	StageAccepted         Stage = "accepted"
)

// PipelineOptions tunes the validation pipeline.
type PipelineOptions struct {
	// EnforceAttendance rejects bookings outside a known attendance window.
	// Unknown windows never reject.
	EnforceAttendance bool
}

// Outcome is the verdict for one person. Stage is the step that rejected the
// person, or StageAccepted.
type Outcome struct {
	PersonID  string
	Stage     Stage
	Violation *Violation
}

// Accepted reports whether the person passed every check.
func (o Outcome) Accepted() bool {
	return o.Violation == nil
}

// ValidationResult aggregates the outcome of every person in one request.
type ValidationResult struct {
	BookingID string
	Outcomes  []Outcome
}

// Accepted reports whether every person passed.
func (r ValidationResult) Accepted() bool {
	for _, o := range r.Outcomes {
		if !o.Accepted() {
			return false
		}
	}
	return true
}

// Violations returns every rejection in request order.
func (r ValidationResult) Violations() []*Violation {
	var out []*Violation
	for _, o := range r.Outcomes {
		if o.Violation != nil {
			out = append(out, o.Violation)
		}
	}
	return out
}

// AcceptedPersonIDs lists the persons that passed, in request order.
func (r ValidationResult) AcceptedPersonIDs() []string {
	var out []string
	for _, o := range r.Outcomes {
		if o.Accepted() {
			out = append(out, o.PersonID)
		}
	}
	return out
}

// EvaluatePerson runs the checks for a single (candidate, person) pair and
// stops at the first violation. existing holds the event's persisted
// bookings; a persisted copy of the candidate is ignored.
func EvaluatePerson(person Person, candidate Booking, existing []Booking, opts PipelineOptions) Outcome {
	outcome := Outcome{PersonID: person.ID}
	reject := func(stage Stage, v *Violation) Outcome {
		v.PersonID = person.ID
		v.PersonName = person.FullName()
		v.BookingID = candidate.ID
		outcome.Stage = stage
		outcome.Violation = v
		return outcome
	}

	if person.Excludes(candidate.CategoryID()) {
		return reject(StageExcludedCategory, &Violation{Kind: ViolationExcludedCategory})
	}

	if opts.EnforceAttendance && person.HasAttendanceWindow() {
		window := TimeInterval{Start: *person.Arrival, End: *person.Departure}
		if !window.Contains(candidate.Interval()) {
			return reject(StageAttendance, &Violation{Kind: ViolationOutOfAttendance})
		}
	}

	if candidate.Type() == ActivityTypeVolunteer {
		if v := budgetViolation(person, candidate.EventID, candidate, existing); v != nil {
			return reject(StageBudget, v)
		}
	}

	if conflicts := DetectConflicts(person.ID, candidate, existing); len(conflicts) > 0 {
		with := conflicts[0].With
		return reject(StageOverlap, &Violation{Kind: ViolationTimeOverlap, Conflicting: &with})
	}

	outcome.Stage = StageAccepted
	return outcome
}

// ValidateAssignment evaluates every person independently against the
// candidate booking. One person's rejection never stops the others from
// being evaluated.
func ValidateAssignment(candidate Booking, persons []Person, existing []Booking, opts PipelineOptions) ValidationResult {
	result := ValidationResult{BookingID: candidate.ID, Outcomes: make([]Outcome, 0, len(persons))}
	for _, person := range persons {
		result.Outcomes = append(result.Outcomes, EvaluatePerson(person, candidate, existing, opts))
	}
	return result
}
