package scheduler

import (
	"time"

	"github.com/shopspring/decimal"
)

const testEventID = "event-1"

var testDay = time.Date(2024, time.July, 12, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func interval(startH, startM, endH, endM int) TimeInterval {
	return TimeInterval{Start: at(startH, startM), End: at(endH, endM)}
}

func newCategory(id string, activityType ActivityType, coef string, additional time.Duration) Category {
	return Category{
		ID:              id,
		Name:            "Category " + id,
		TimeCoefficient: decimal.RequireFromString(coef),
		AdditionalTime:  additional,
		ActivityType:    activityType,
	}
}

func newBooking(id string, category Category, start, end time.Time, persons ...string) Booking {
	return Booking{
		ID:      id,
		EventID: testEventID,
		Activity: Activity{
			ID:       "activity-" + id,
			Name:     "Activity " + id,
			Category: category,
		},
		Start:     start,
		End:       end,
		PersonIDs: persons,
	}
}

func newPerson(id string) Person {
	return Person{
		ID:            id,
		FirstName:     "Name",
		LastName:      "Person " + id,
		FreeTimeLimit: DefaultFreeTimeLimit,
	}
}

func withWindow(p Person, arrival, departure time.Time) Person {
	p.Arrival = &arrival
	p.Departure = &departure
	return p
}

func intPtr(v int) *int {
	return &v
}

var (
	volunteerCategory = newCategory("volunteer", ActivityTypeVolunteer, "1.0", 0)
	officialCategory  = newCategory("official", ActivityTypeOfficial, "1.0", 0)
	otherCategory     = newCategory("other", ActivityTypeOther, "1.0", 0)
)
