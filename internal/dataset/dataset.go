// Package dataset imports reference data and bookings from YAML documents.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/example/event-scheduler/internal/persistence"
)

// Document is the YAML layout accepted by Import.
type Document struct {
	Categories []CategoryEntry `yaml:"categories"`
	Activities []ActivityEntry `yaml:"activities"`
	Persons    []PersonEntry   `yaml:"persons"`
	Events     []EventEntry    `yaml:"events"`
	Bookings   []BookingEntry  `yaml:"bookings"`
}

type CategoryEntry struct {
	ID              string `yaml:"id"`
	Name            string `yaml:"name"`
	WorksWithPeople bool   `yaml:"works_with_people"`
	TimeCoefficient string `yaml:"time_coefficient"`
	AdditionalTime  string `yaml:"additional_time"`
	ActivityType    string `yaml:"activity_type"`
}

type ActivityEntry struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	NeedPeople  *int   `yaml:"need_people"`
}

type PersonEntry struct {
	ID                 string   `yaml:"id"`
	FirstName          string   `yaml:"first_name"`
	LastName           string   `yaml:"last_name"`
	Email              string   `yaml:"email"`
	NightOwl           bool     `yaml:"night_owl"`
	Arrival            string   `yaml:"arrival"`
	Departure          string   `yaml:"departure"`
	FreeTimeLimit      string   `yaml:"free_time_limit"`
	ExcludedCategories []string `yaml:"excluded_categories"`
}

type EventEntry struct {
	ID        string `yaml:"id"`
	Title     string `yaml:"title"`
	StartDate string `yaml:"start_date"`
	EndDate   string `yaml:"end_date"`
}

type BookingEntry struct {
	ID       string   `yaml:"id"`
	Event    string   `yaml:"event"`
	Activity string   `yaml:"activity"`
	Start    string   `yaml:"start"`
	End      string   `yaml:"end"`
	Persons  []string `yaml:"persons"`
}

// Options tunes the conversion of a Document.
type Options struct {
	// DefaultFreeTimeLimit applies to persons without free_time_limit.
	DefaultFreeTimeLimit time.Duration
	// Location interprets timestamps without a zone. Nil means UTC.
	Location *time.Location
	// Now stamps created records. Nil means time.Now.
	Now func() time.Time
	// NewID fills in missing identifiers. Nil means random UUIDs.
	NewID func() string
}

// Summary counts the records an import stored.
type Summary struct {
	Categories int
	Activities int
	Persons    int
	Events     int
	Bookings   int
}

// Decode reads a Document. Unknown keys are rejected.
func Decode(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("dataset: decode: %w", err)
	}
	return doc, nil
}

// Import decodes r and stores every record in one transaction. Bookings are
// written as given; run them through the assignment service to validate.
func Import(ctx context.Context, store persistence.Store, r io.Reader, opts Options) (Summary, error) {
	doc, err := Decode(r)
	if err != nil {
		return Summary{}, err
	}
	records, err := doc.Records(opts)
	if err != nil {
		return Summary{}, err
	}

	err = store.WithinTx(ctx, func(ctx context.Context) error {
		for _, c := range records.Categories {
			if err := store.CreateCategory(ctx, c); err != nil {
				return fmt.Errorf("dataset: category %s: %w", c.ID, err)
			}
		}
		for _, a := range records.Activities {
			if err := store.CreateActivity(ctx, a); err != nil {
				return fmt.Errorf("dataset: activity %s: %w", a.ID, err)
			}
		}
		for _, p := range records.Persons {
			if err := store.CreatePerson(ctx, p); err != nil {
				return fmt.Errorf("dataset: person %s: %w", p.ID, err)
			}
		}
		for _, e := range records.Events {
			if err := store.CreateEvent(ctx, e); err != nil {
				return fmt.Errorf("dataset: event %s: %w", e.ID, err)
			}
		}
		for _, b := range records.Bookings {
			if err := store.CreateBooking(ctx, b); err != nil {
				return fmt.Errorf("dataset: booking %s: %w", b.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		Categories: len(records.Categories),
		Activities: len(records.Activities),
		Persons:    len(records.Persons),
		Events:     len(records.Events),
		Bookings:   len(records.Bookings),
	}, nil
}

// Records holds converted persistence records.
type Records struct {
	Categories []persistence.Category
	Activities []persistence.Activity
	Persons    []persistence.Person
	Events     []persistence.Event
	Bookings   []persistence.Booking
}

// Records converts the document. Every malformed field is reported together.
func (d Document) Records(opts Options) (Records, error) {
	c := converter{opts: opts}
	if c.opts.Now == nil {
		c.opts.Now = time.Now
	}
	if c.opts.NewID == nil {
		c.opts.NewID = uuid.NewString
	}
	if c.opts.Location == nil {
		c.opts.Location = time.UTC
	}
	if c.opts.DefaultFreeTimeLimit <= 0 {
		c.opts.DefaultFreeTimeLimit = 6 * time.Hour
	}
	now := c.opts.Now().UTC()

	var out Records
	for i, e := range d.Categories {
		field := fmt.Sprintf("categories[%d]", i)
		coefficient := decimal.NewFromInt(1)
		if strings.TrimSpace(e.TimeCoefficient) != "" {
			parsed, err := decimal.NewFromString(strings.TrimSpace(e.TimeCoefficient))
			switch {
			case err != nil || parsed.IsZero():
				c.fail(field+".time_coefficient", "must be a decimal between 0.1 and 9.9")
			case persistence.CheckTimeCoefficient(parsed) != nil:
				c.fail(field+".time_coefficient", "must be between 0.1 and 9.9 with one decimal place")
			default:
				coefficient = parsed
			}
		}
		activityType := strings.ToLower(strings.TrimSpace(e.ActivityType))
		switch activityType {
		case "official", "volunteer", "other":
		default:
			c.fail(field+".activity_type", "must be official, volunteer or other")
		}
		out.Categories = append(out.Categories, persistence.Category{
			ID:              c.id(e.ID),
			Name:            c.required(field+".name", e.Name),
			WorksWithPeople: e.WorksWithPeople,
			TimeCoefficient: coefficient,
			AdditionalTime:  c.duration(field+".additional_time", e.AdditionalTime, 0),
			ActivityType:    activityType,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	for i, e := range d.Activities {
		field := fmt.Sprintf("activities[%d]", i)
		out.Activities = append(out.Activities, persistence.Activity{
			ID:          c.id(e.ID),
			Name:        c.required(field+".name", e.Name),
			Description: e.Description,
			CategoryID:  c.required(field+".category", e.Category),
			NeedPeople:  e.NeedPeople,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	for i, e := range d.Persons {
		field := fmt.Sprintf("persons[%d]", i)
		person := persistence.Person{
			ID:                  c.id(e.ID),
			FirstName:           c.required(field+".first_name", e.FirstName),
			LastName:            strings.TrimSpace(e.LastName),
			NightOwl:            e.NightOwl,
			Arrival:             c.optionalTime(field+".arrival", e.Arrival),
			Departure:           c.optionalTime(field+".departure", e.Departure),
			FreeTimeLimit:       c.duration(field+".free_time_limit", e.FreeTimeLimit, c.opts.DefaultFreeTimeLimit),
			ExcludedCategoryIDs: e.ExcludedCategories,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if email := strings.TrimSpace(e.Email); email != "" {
			person.Email = &email
		}
		out.Persons = append(out.Persons, person)
	}

	for i, e := range d.Events {
		field := fmt.Sprintf("events[%d]", i)
		out.Events = append(out.Events, persistence.Event{
			ID:        c.id(e.ID),
			Title:     c.required(field+".title", e.Title),
			StartDate: c.time(field+".start_date", e.StartDate),
			EndDate:   c.time(field+".end_date", e.EndDate),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	for i, e := range d.Bookings {
		field := fmt.Sprintf("bookings[%d]", i)
		booking := persistence.Booking{
			ID:         c.id(e.ID),
			EventID:    c.required(field+".event", e.Event),
			ActivityID: c.required(field+".activity", e.Activity),
			Start:      c.time(field+".start", e.Start),
			End:        c.time(field+".end", e.End),
			PersonIDs:  e.Persons,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if !booking.Start.IsZero() && !booking.End.IsZero() && !booking.Start.Before(booking.End) {
			c.fail(field+".end", "must be after start")
		}
		out.Bookings = append(out.Bookings, booking)
	}

	if len(c.problems) > 0 {
		return Records{}, fmt.Errorf("dataset: invalid document: %s", strings.Join(c.problems, "; "))
	}
	return out, nil
}

type converter struct {
	opts     Options
	problems []string
}

func (c *converter) fail(field, msg string) {
	c.problems = append(c.problems, field+" "+msg)
}

func (c *converter) id(value string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return c.opts.NewID()
}

func (c *converter) required(field, value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		c.fail(field, "is required")
	}
	return v
}

func (c *converter) duration(field, value string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(value)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		c.fail(field, "must be a non-negative duration such as 1h30m")
		return fallback
	}
	return d
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"}

func (c *converter) time(field, value string) time.Time {
	v := strings.TrimSpace(value)
	if v == "" {
		c.fail(field, "is required")
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, c.opts.Location); err == nil {
			return t.UTC()
		}
	}
	c.fail(field, "must be a timestamp such as 2024-07-12 09:00")
	return time.Time{}
}

func (c *converter) optionalTime(field, value string) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	t := c.time(field, value)
	if t.IsZero() {
		return nil
	}
	return &t
}
