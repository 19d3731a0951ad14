package progress

import (
	"time"

	"github.com/labsim-hub/labsim-progression-engine/internal/domain/shared"
	"github.com/labsim-hub/labsim-progression-engine/pkg/timeutil"
)

// Streak tracks consecutive active training days for a learner. It feeds
// streak-based achievement conditions.
type Streak struct {
	UserID          shared.UserID
	CurrentStreak   int
	BestStreak      int
	LastActiveDate  time.Time
	StreakStartDate time.Time
}

// NewStreak creates an empty streak for a learner.
func NewStreak(userID shared.UserID) *Streak {
	return &Streak{UserID: userID}
}

// RecordActivity registers activity on the given date and extends, keeps or
// resets the streak. Same-day repeats are no-ops.
func (s *Streak) RecordActivity(date time.Time) {
	day := timeutil.StartOfDay(date)

	if s.LastActiveDate.IsZero() {
		s.CurrentStreak = 1
		s.BestStreak = 1
		s.LastActiveDate = day
		s.StreakStartDate = day
		return
	}

	switch {
	case !day.After(s.LastActiveDate):
		return
	case timeutil.IsConsecutiveDay(s.LastActiveDate, day):
		s.CurrentStreak++
		if s.CurrentStreak > s.BestStreak {
			s.BestStreak = s.CurrentStreak
		}
		s.LastActiveDate = day
	default:
		// Gap of more than one day resets the streak.
		s.CurrentStreak = 1
		s.LastActiveDate = day
		s.StreakStartDate = day
	}
}

// IsBroken reports whether the streak has lapsed relative to now.
func (s *Streak) IsBroken(now time.Time) bool {
	if s.LastActiveDate.IsZero() {
		return false
	}
	return !timeutil.IsSameDay(s.LastActiveDate, now) &&
		!timeutil.IsConsecutiveDay(s.LastActiveDate, now)
}
