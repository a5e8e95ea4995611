package utils

import "time"

const dayFormat = "2006-01-02"

// NextStreak decides how today's activity affects a streak. It compares
// calendar days, not 24h windows: activity on consecutive dates extends
// the streak regardless of the hour.
//
// Returns the streak length after today, whether a previous streak was
// broken, and whether the user was already active today (a no-op for
// the caller).
func NextStreak(currentStreak int, lastActivity *time.Time, today time.Time) (next int, broken bool, sameDay bool) {
	todayStr := today.Format(dayFormat)
	yesterdayStr := today.AddDate(0, 0, -1).Format(dayFormat)

	if lastActivity != nil {
		switch lastActivity.Format(dayFormat) {
		case todayStr:
			return currentStreak, false, true
		case yesterdayStr:
			return currentStreak + 1, false, false
		}
	}

	// First activity ever, or a gap of 2+ days.
	return 1, currentStreak > 0, false
}
