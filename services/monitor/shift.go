package monitor

import (
	"time"

	"github.com/robfig/cron/v3"
)

// shiftStart returns the start of the current working day: the most recent
// schedule boundary at or before now. With no schedule configured the day
// starts at midnight UTC.
//
// cron schedules only walk forward, so step back far enough to be sure at
// least one boundary falls in the range and take the last one not after now.
func shiftStart(sched cron.Schedule, now time.Time) time.Time {
	if sched == nil {
		return now.Truncate(24 * time.Hour)
	}

	t := now.Add(-48 * time.Hour)
	start := t
	for {
		next := sched.Next(t)
		if next.After(now) {
			return start
		}
		start = next
		t = next
	}
}
