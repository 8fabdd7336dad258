package job

import (
	"fmt"

	cronlib "github.com/robfig/cron/v3"

	"github.com/carebridge/scheduler"
)

// cronParser supports standard 5-field cron and descriptors like "@every 30m".
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// ParseSchedule parses a cron expression and returns the schedule.
// The runner uses it to advance NextRunAt after each attempt.
func ParseSchedule(expr string) (cronlib.Schedule, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", scheduler.ErrInvalidSchedule, expr, err)
	}
	return sched, nil
}

// ValidateSchedule reports whether expr is a parseable cron expression.
// An empty expression is valid: the job falls back to interval rescheduling.
func ValidateSchedule(expr string) error {
	if expr == "" {
		return nil
	}
	_, err := ParseSchedule(expr)
	return err
}
