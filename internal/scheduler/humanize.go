package scheduler

import (
	"fmt"
	"time"
)

// HumanDuration renders a duration in whole minutes, switching to hours and
// minutes once it exceeds one hour: "45 мин.", "60 мин.", "1 ч. 30 мин.".
func HumanDuration(d time.Duration) string {
	minutes := int64(d / time.Minute)
	if minutes > 60 {
		return fmt.Sprintf("%d ч. %d мин.", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%d мин.", minutes)
}
