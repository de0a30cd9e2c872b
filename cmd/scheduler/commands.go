package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/example/event-scheduler/internal/application"
	"github.com/example/event-scheduler/internal/dataset"
	"github.com/example/event-scheduler/internal/scheduler"
)

// errRejected reports a validation run in which somebody was rejected.
var errRejected = errors.New("assignment rejected")

func eventFlag() cli.Flag {
	return &cli.StringFlag{Name: "event", Usage: "event identifier, defaults to the latest event"}
}

func bookingFlag() cli.Flag {
	return &cli.StringFlag{Name: "booking", Usage: "booking identifier", Required: true}
}

func personsFlag() cli.Flag {
	return &cli.StringSliceFlag{Name: "person", Usage: "person identifier, repeatable"}
}

func typeFlag() cli.Flag {
	return &cli.StringFlag{Name: "type", Usage: "activity type: official, volunteer or other"}
}

func tzFlag() cli.Flag {
	return &cli.StringFlag{Name: "tz", Value: "UTC", Usage: "time zone for reading and printing times"}
}

func activityFlag() cli.Flag {
	return &cli.StringFlag{Name: "activity", Usage: "activity identifier"}
}

func startFlag() cli.Flag {
	return &cli.StringFlag{Name: "start", Usage: "start time such as 2024-07-12 10:00"}
}

func endFlag() cli.Flag {
	return &cli.StringFlag{Name: "end", Usage: "end time such as 2024-07-12 11:30"}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations and print the schema state.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "status", Usage: "only report the schema state"},
		},
		Action: func(c *cli.Context) (err error) {
			rt, err := openRuntime(c, !c.Bool("status"))
			if err != nil {
				return err
			}
			defer func() {
				if cerr := rt.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			status, err := rt.store.MigrationStatus(c.Context)
			if err != nil {
				return err
			}
			printMigrationStatus(c.App.Writer, status)
			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Load categories, activities, persons, events and bookings from a YAML file.",
		ArgsUsage: "FILE",
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			path := c.Args().First()
			if path == "" {
				return errors.New("import: a YAML file is required")
			}
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			defer f.Close()

			loc, err := location(c)
			if err != nil {
				return err
			}
			summary, err := dataset.Import(c.Context, rt.store, f, dataset.Options{
				DefaultFreeTimeLimit: rt.cfg.DefaultFreeTimeLimit,
				Location:             loc,
			})
			if err != nil {
				return err
			}
			rt.logger.InfoContext(c.Context, "dataset imported", "file", path,
				"categories", summary.Categories, "activities", summary.Activities,
				"persons", summary.Persons, "events", summary.Events, "bookings", summary.Bookings)
			fmt.Fprintf(c.App.Writer, "imported %d categories, %d activities, %d persons, %d events, %d bookings\n",
				summary.Categories, summary.Activities, summary.Persons, summary.Events, summary.Bookings)
			return nil
		}),
		Flags: []cli.Flag{tzFlag()},
	}
}

func gridCommand() *cli.Command {
	return &cli.Command{
		Name:  "grid",
		Usage: "Print the person by booking availability grid of an event.",
		Flags: []cli.Flag{eventFlag(), typeFlag(), tzFlag()},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			eventID, err := resolveEvent(c, rt)
			if err != nil {
				return err
			}
			activityType, err := parseTypeFlag(c)
			if err != nil {
				return err
			}
			loc, err := location(c)
			if err != nil {
				return err
			}
			grid, err := rt.grids.BuildScheduleGrid(c.Context, eventID, application.GridParams{Type: activityType, Location: loc})
			if err != nil {
				return err
			}
			return printGrid(c.App.Writer, grid)
		}),
	}
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "Print one person's bookings in chronological order.",
		Flags: []cli.Flag{
			eventFlag(), typeFlag(), tzFlag(),
			&cli.StringFlag{Name: "person", Usage: "person identifier", Required: true},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			eventID, err := resolveEvent(c, rt)
			if err != nil {
				return err
			}
			activityType, err := parseTypeFlag(c)
			if err != nil {
				return err
			}
			loc, err := location(c)
			if err != nil {
				return err
			}
			bookings, err := rt.grids.PersonSchedule(c.Context, eventID, c.String("person"), activityType)
			if err != nil {
				return err
			}
			printSchedule(c.App.Writer, bookings, loc)
			return nil
		}),
	}
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Check whether persons could take a booking without saving anything.",
		Description: "With --booking the stored booking is checked. Otherwise the booking " +
			"described by --event, --activity, --start and --end is checked as a proposal.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "booking", Usage: "stored booking identifier"},
			personsFlag(), eventFlag(), activityFlag(), startFlag(), endFlag(), tzFlag(),
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			var (
				result scheduler.ValidationResult
				err    error
			)
			if bookingID := c.String("booking"); bookingID != "" {
				result, err = rt.assignments.ValidateAssignment(c.Context, bookingID, c.StringSlice("person"))
			} else {
				var proposal application.Proposal
				proposal, err = proposalFromFlags(c, rt)
				if err != nil {
					return err
				}
				result, err = rt.assignments.ValidateProposal(c.Context, proposal)
			}
			if err != nil {
				return err
			}
			printValidation(c.App.Writer, result)
			if !result.Accepted() {
				return errRejected
			}
			return nil
		}),
	}
}

func bookCommand() *cli.Command {
	return &cli.Command{
		Name:  "book",
		Usage: "Create a booking, optionally with assigned persons.",
		Flags: []cli.Flag{eventFlag(), activityFlag(), startFlag(), endFlag(), personsFlag(), tzFlag()},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			proposal, err := proposalFromFlags(c, rt)
			if err != nil {
				return err
			}
			booking, result, err := rt.assignments.CreateBooking(c.Context, proposal)
			if err != nil {
				return reportRejection(c, result, err)
			}
			fmt.Fprintf(c.App.Writer, "created booking %s\n", booking.ID)
			return nil
		}),
	}
}

func assignCommand() *cli.Command {
	return &cli.Command{
		Name:  "assign",
		Usage: "Assign persons to a booking. Nothing is saved if anyone is rejected.",
		Flags: []cli.Flag{bookingFlag(), personsFlag()},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			booking, result, err := rt.assignments.AssignPersons(c.Context, application.AssignParams{
				BookingID: c.String("booking"),
				PersonIDs: c.StringSlice("person"),
			})
			if err != nil {
				return reportRejection(c, result, err)
			}
			fmt.Fprintf(c.App.Writer, "booking %s: %s\n", booking.ID, strings.Join(booking.PersonIDs, ", "))
			return nil
		}),
	}
}

func unassignCommand() *cli.Command {
	return &cli.Command{
		Name:  "unassign",
		Usage: "Remove a person from a booking.",
		Flags: []cli.Flag{
			bookingFlag(),
			&cli.StringFlag{Name: "person", Usage: "person identifier", Required: true},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			booking, err := rt.assignments.UnassignPerson(c.Context, c.String("booking"), c.String("person"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "booking %s: %s\n", booking.ID, strings.Join(booking.PersonIDs, ", "))
			return nil
		}),
	}
}

func rescheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "reschedule",
		Usage: "Move a booking to a new time, revalidating every assigned person.",
		Flags: []cli.Flag{bookingFlag(), activityFlag(), startFlag(), endFlag(), tzFlag()},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			loc, err := location(c)
			if err != nil {
				return err
			}
			start, err := parseTimeFlag(c, "start", loc)
			if err != nil {
				return err
			}
			end, err := parseTimeFlag(c, "end", loc)
			if err != nil {
				return err
			}
			booking, result, err := rt.assignments.RescheduleBooking(c.Context, application.RescheduleParams{
				BookingID:  c.String("booking"),
				ActivityID: c.String("activity"),
				Start:      start,
				End:        end,
			})
			if err != nil {
				return reportRejection(c, result, err)
			}
			fmt.Fprintf(c.App.Writer, "booking %s moved to %s - %s\n", booking.ID,
				booking.Start.In(loc).Format(displayLayout), booking.End.In(loc).Format(displayLayout))
			return nil
		}),
	}
}

func weightedCommand() *cli.Command {
	return &cli.Command{
		Name:  "weighted",
		Usage: "Print the weighted duration of a booking.",
		Flags: []cli.Flag{bookingFlag()},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			d, err := rt.assignments.ComputeWeightedDuration(c.Context, c.String("booking"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s (%s)\n", scheduler.HumanDuration(d), d)
			return nil
		}),
	}
}

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "classify",
		Usage: "Print how a person relates to a booking.",
		Flags: []cli.Flag{
			bookingFlag(),
			&cli.StringFlag{Name: "person", Usage: "person identifier", Required: true},
		},
		Action: withRuntime(func(c *cli.Context, rt *runtime) error {
			status, err := rt.assignments.ClassifyAvailability(c.Context, c.String("person"), c.String("booking"))
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s (%s)\n", status.Display(), status)
			return nil
		}),
	}
}

// reportRejection prints the violations of a rejected commit before
// returning the error.
func reportRejection(c *cli.Context, result scheduler.ValidationResult, err error) error {
	var rejected *application.AssignmentError
	if errors.As(err, &rejected) {
		printValidation(c.App.Writer, result)
	}
	return err
}

func resolveEvent(c *cli.Context, rt *runtime) (string, error) {
	if id := c.String("event"); id != "" {
		return id, nil
	}
	event, err := rt.grids.LatestEvent(c.Context)
	if err != nil {
		return "", fmt.Errorf("resolve latest event: %w", err)
	}
	return event.ID, nil
}

func parseTypeFlag(c *cli.Context) (*scheduler.ActivityType, error) {
	value := c.String("type")
	if value == "" {
		return nil, nil
	}
	t, err := scheduler.ParseActivityType(value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func location(c *cli.Context) (*time.Location, error) {
	name := c.String("tz")
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", name, err)
	}
	return loc, nil
}

var flagTimeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"}

func parseTimeFlag(c *cli.Context, name string, loc *time.Location) (time.Time, error) {
	value := strings.TrimSpace(c.String(name))
	if value == "" {
		return time.Time{}, fmt.Errorf("--%s is required", name)
	}
	for _, layout := range flagTimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("--%s: cannot parse %q, use 2006-01-02 15:04", name, value)
}

func proposalFromFlags(c *cli.Context, rt *runtime) (application.Proposal, error) {
	eventID, err := resolveEvent(c, rt)
	if err != nil {
		return application.Proposal{}, err
	}
	loc, err := location(c)
	if err != nil {
		return application.Proposal{}, err
	}
	start, err := parseTimeFlag(c, "start", loc)
	if err != nil {
		return application.Proposal{}, err
	}
	end, err := parseTimeFlag(c, "end", loc)
	if err != nil {
		return application.Proposal{}, err
	}
	return application.Proposal{
		EventID:    eventID,
		ActivityID: c.String("activity"),
		Start:      start,
		End:        end,
		PersonIDs:  c.StringSlice("person"),
	}, nil
}
