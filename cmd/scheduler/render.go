package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/example/event-scheduler/internal/persistence/sqlite/migration"
	"github.com/example/event-scheduler/internal/scheduler"
)

const displayLayout = "02.01 15:04"

func printGrid(w io.Writer, grid scheduler.Grid) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	title := "Все бронирования"
	if grid.Type != nil {
		title = grid.Type.Title()
	}
	fmt.Fprintf(tw, "%s\n", title)

	header := []string{"Person", "Workload"}
	for _, col := range grid.Columns {
		header = append(header, col.Label)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for _, row := range grid.Rows {
		line := []string{row.PersonName, row.WorkloadLabel}
		for _, cell := range row.Cells {
			line = append(line, string(cell.Display))
		}
		fmt.Fprintln(tw, strings.Join(line, "\t"))
	}
	return tw.Flush()
}

func printSchedule(w io.Writer, bookings []scheduler.Booking, loc *time.Location) {
	if len(bookings) == 0 {
		fmt.Fprintln(w, "no bookings")
		return
	}
	var total time.Duration
	for _, b := range bookings {
		weighted := scheduler.WeightedDuration(b)
		total += weighted
		fmt.Fprintf(w, "%s - %s  %s  [%s]  %s\n",
			b.Start.In(loc).Format(displayLayout),
			b.End.In(loc).Format("15:04"),
			b.Activity.Name,
			b.Type(),
			scheduler.HumanDuration(weighted))
	}
	fmt.Fprintf(w, "total: %s\n", scheduler.HumanDuration(total))
}

func printValidation(w io.Writer, result scheduler.ValidationResult) {
	for _, o := range result.Outcomes {
		if o.Accepted() {
			fmt.Fprintf(w, "ok       %s\n", o.PersonID)
			continue
		}
		fmt.Fprintf(w, "rejected %s (%s): %s\n", o.PersonID, o.Stage, o.Violation.Message())
	}
}

func printMigrationStatus(w io.Writer, status migration.Status) {
	current := status.CurrentVersion
	if current == "" {
		current = "none"
	}
	fmt.Fprintf(w, "current version: %s\n", current)
	for _, m := range status.Applied {
		fmt.Fprintf(w, "applied  %s  %s\n", m.Version, m.AppliedAt.UTC().Format(time.RFC3339))
	}
	for _, m := range status.Pending {
		fmt.Fprintf(w, "pending  %s  %s\n", m.Version, m.Description)
	}
}
