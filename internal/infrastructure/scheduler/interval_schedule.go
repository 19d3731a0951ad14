package scheduler

import (
	"fmt"
	"time"
)

// minInterval floors the schedule interval. Intervals come from env
// config; a zero value would make the job due on every scheduler tick.
const minInterval = time.Second

// IntervalSchedule runs a job at a fixed interval, anchored to the end of
// the previous run rather than to wall-clock slots.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates an interval schedule, flooring the interval
// at one second.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	if interval < minInterval {
		interval = minInterval
	}
	return &IntervalSchedule{Interval: interval}
}

// Next implements Schedule.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String implements Schedule.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}
