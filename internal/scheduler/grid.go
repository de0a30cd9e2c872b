package scheduler

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
)

// GridOptions controls schedule grid assembly.
type GridOptions struct {
	// Type restricts the columns to one activity type. Nil keeps every booking.
	Type *ActivityType
	// Collation orders rows. The zero tag selects DefaultCollation.
	Collation language.Tag
	// Location converts column times before formatting. Nil keeps the stored zone.
	Location *time.Location
}

// Fill compares an activity's headcount target with its assigned headcount.
type Fill struct {
	Need    int
	Current int
}

// Filled reports whether the assigned headcount matches the target.
func (f Fill) Filled() bool {
	return f.Current == f.Need
}

// Missing returns how many more people are needed. It is negative when the
// booking is overstaffed.
func (f Fill) Missing() int {
	return f.Need - f.Current
}

// String renders the fill indicator.
func (f Fill) String() string {
	ratio := fmt.Sprintf("%d/%d", f.Current, f.Need)
	if f.Filled() {
		return fmt.Sprintf("Filled (%s)", ratio)
	}
	return fmt.Sprintf("Need %d more (%s)", f.Missing(), ratio)
}

// Column describes one booking of the grid.
type Column struct {
	BookingID    string
	ActivityName string
	Type         ActivityType
	Start        time.Time
	End          time.Time
	Raw          time.Duration
	Weighted     time.Duration
	// Fill is nil when the activity has no headcount target.
	Fill  *Fill
	Label string
}

// Cell is the classification of one (person, booking) pair.
type Cell struct {
	PersonID  string
	BookingID string
	Status    Status
	Display   DisplayStatus
}

// Row holds one person's cells in column order plus their counted workload.
type Row struct {
	PersonID      string
	PersonName    string
	Workload      time.Duration
	WorkloadLabel string
	Cells         []Cell
}

// Grid is the person by booking availability matrix of one event.
type Grid struct {
	EventID string
	Type    *ActivityType
	Columns []Column
	Rows    []Row

	rowIndex    map[string]int
	columnIndex map[string]int
}

// Cell looks up the cell for a person and booking.
func (g Grid) Cell(personID, bookingID string) (Cell, bool) {
	r, ok := g.rowIndex[personID]
	if !ok {
		return Cell{}, false
	}
	c, ok := g.columnIndex[bookingID]
	if !ok {
		return Cell{}, false
	}
	return g.Rows[r].Cells[c], true
}

// BuildGrid assembles the schedule grid of one event. Bookings of other
// events are ignored. Workload totals always cover every volunteer booking
// of the event, whichever type filter is applied to the columns.
func BuildGrid(event Event, bookings []Booking, persons []Person, opts GridOptions) Grid {
	eventBookings := make([]Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.EventID == event.ID {
			eventBookings = append(eventBookings, b)
		}
	}
	columnsSource := OrderBookings(FilterByType(eventBookings, opts.Type))
	orderedPersons := OrderPersons(persons, opts.Collation)

	grid := Grid{
		EventID:     event.ID,
		Type:        opts.Type,
		Columns:     make([]Column, len(columnsSource)),
		Rows:        make([]Row, len(orderedPersons)),
		rowIndex:    make(map[string]int, len(orderedPersons)),
		columnIndex: make(map[string]int, len(columnsSource)),
	}

	for i, b := range columnsSource {
		grid.Columns[i] = newColumn(b, opts.Location)
		grid.columnIndex[b.ID] = i
	}

	for r, person := range orderedPersons {
		workload := CountedWorkload(person.ID, event.ID, "", eventBookings)
		row := Row{
			PersonID:      person.ID,
			PersonName:    person.FullName(),
			Workload:      workload,
			WorkloadLabel: HumanDuration(workload),
			Cells:         make([]Cell, len(columnsSource)),
		}
		for c, b := range columnsSource {
			status := Classify(person, b, eventBookings)
			row.Cells[c] = Cell{
				PersonID:  person.ID,
				BookingID: b.ID,
				Status:    status,
				Display:   status.Display(),
			}
		}
		grid.Rows[r] = row
		grid.rowIndex[person.ID] = r
	}

	return grid
}

func newColumn(b Booking, loc *time.Location) Column {
	start, end := b.Start, b.End
	if loc != nil {
		start, end = start.In(loc), end.In(loc)
	}
	col := Column{
		BookingID:    b.ID,
		ActivityName: b.Activity.Name,
		Type:         b.Type(),
		Start:        start,
		End:          end,
		Raw:          RawDuration(b),
		Weighted:     WeightedDuration(b),
	}
	if b.Activity.NeedPeople != nil {
		col.Fill = &Fill{Need: *b.Activity.NeedPeople, Current: len(b.PersonIDs)}
	}
	col.Label = columnLabel(col)
	return col
}

func columnLabel(col Column) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s - %s (%s - %s) %s",
		col.Start.Format("02.01 15:04"),
		col.End.Format("15:04"),
		HumanDuration(col.Raw),
		HumanDuration(col.Weighted),
		col.ActivityName)
	if col.Fill != nil {
		sb.WriteString(" ")
		sb.WriteString(col.Fill.String())
	}
	return sb.String()
}
