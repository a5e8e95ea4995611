package utils

import (
	"testing"
	"time"
)

func TestNextStreakFirstActivity(t *testing.T) {
	today := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	next, broken, sameDay := NextStreak(0, nil, today)
	if next != 1 || broken || sameDay {
		t.Errorf("first activity: got (%d, %v, %v), want (1, false, false)", next, broken, sameDay)
	}
}

func TestNextStreakSameDay(t *testing.T) {
	today := time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	morning := time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

	next, broken, sameDay := NextStreak(4, &morning, today)
	if next != 4 || broken || !sameDay {
		t.Errorf("same day: got (%d, %v, %v), want (4, false, true)", next, broken, sameDay)
	}
}

func TestNextStreakConsecutiveDay(t *testing.T) {
	// Late night yesterday, early today still counts as consecutive.
	today := time.Date(2026, 3, 11, 0, 30, 0, 0, time.UTC)
	yesterday := time.Date(2026, 3, 10, 23, 45, 0, 0, time.UTC)

	next, broken, sameDay := NextStreak(4, &yesterday, today)
	if next != 5 || broken || sameDay {
		t.Errorf("consecutive day: got (%d, %v, %v), want (5, false, false)", next, broken, sameDay)
	}
}

func TestNextStreakGapResets(t *testing.T) {
	today := time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)
	threeDaysAgo := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	next, broken, sameDay := NextStreak(12, &threeDaysAgo, today)
	if next != 1 || !broken || sameDay {
		t.Errorf("gap: got (%d, %v, %v), want (1, true, false)", next, broken, sameDay)
	}
}

func TestNextStreakGapWithoutPriorStreak(t *testing.T) {
	// A zero streak that lapses again is not "broken", there was
	// nothing to lose.
	today := time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)
	lastWeek := time.Date(2026, 3, 6, 12, 0, 0, 0, time.UTC)

	next, broken, _ := NextStreak(0, &lastWeek, today)
	if next != 1 || broken {
		t.Errorf("gap without streak: got (%d, %v), want (1, false)", next, broken)
	}
}

func TestNextStreakMonthBoundary(t *testing.T) {
	today := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	endOfMarch := time.Date(2026, 3, 31, 21, 0, 0, 0, time.UTC)

	next, broken, sameDay := NextStreak(9, &endOfMarch, today)
	if next != 10 || broken || sameDay {
		t.Errorf("month boundary: got (%d, %v, %v), want (10, false, false)", next, broken, sameDay)
	}
}
