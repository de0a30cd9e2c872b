package scheduler

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawDuration returns the booking length truncated to whole seconds.
func RawDuration(b Booking) time.Duration {
	return b.End.Sub(b.Start).Truncate(time.Second)
}

// WeightedDuration returns the booking length adjusted by its category:
// floor(raw seconds * coefficient) plus the category's additional time.
func WeightedDuration(b Booking) time.Duration {
	return weigh(RawDuration(b), b.Activity.Category)
}

func weigh(raw time.Duration, category Category) time.Duration {
	seconds := decimal.NewFromInt(int64(raw / time.Second))
	scaled := seconds.Mul(coefficient(category)).Floor().IntPart()
	additional := int64(category.AdditionalTime / time.Second)
	return time.Duration(scaled+additional) * time.Second
}

// coefficient treats an unset coefficient as neutral.
func coefficient(category Category) decimal.Decimal {
	if category.TimeCoefficient.IsZero() {
		return decimal.NewFromInt(1)
	}
	return category.TimeCoefficient
}

// TotalWeighted sums the weighted duration of bookings.
func TotalWeighted(bookings []Booking) time.Duration {
	var total time.Duration
	for _, b := range bookings {
		total += WeightedDuration(b)
	}
	return total
}
