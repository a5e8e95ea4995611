package services

import "testing"

func TestLessonXPBreakdown(t *testing.T) {
	cfg := DefaultGamificationConfig()

	tests := []struct {
		name          string
		quizCorrect   bool
		firstTry      bool
		currentStreak int
		want          int
	}{
		{"base only, no streak", false, false, 0, 25},
		{"first lesson of a new streak", true, true, 1, 25 + 15 + 10 + 5},
		{"quiz correct not first try", true, false, 0, 25 + 15},
		{"first try flag ignored without correct quiz", false, true, 0, 25},
		{"ten day streak", false, false, 10, 25 + 50},
		{"streak bonus capped at 30 days", true, true, 31, 25 + 15 + 10 + 150},
		{"long streak still capped", false, false, 365, 25 + 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.LessonXP(tt.quizCorrect, tt.firstTry, tt.currentStreak)
			if got != tt.want {
				t.Errorf("LessonXP(%v, %v, %d) = %d, want %d", tt.quizCorrect, tt.firstTry, tt.currentStreak, got, tt.want)
			}
		})
	}
}

func TestStreakBonus(t *testing.T) {
	cfg := DefaultGamificationConfig()

	if got := cfg.StreakBonus(0); got != 0 {
		t.Errorf("StreakBonus(0) = %d, want 0", got)
	}
	if got := cfg.StreakBonus(-1); got != 0 {
		t.Errorf("StreakBonus(-1) = %d, want 0", got)
	}
	if got := cfg.StreakBonus(30); got != 150 {
		t.Errorf("StreakBonus(30) = %d, want 150", got)
	}
	if got := cfg.StreakBonus(31); got != 150 {
		t.Errorf("StreakBonus(31) = %d, want 150", got)
	}
}

func TestIsStreakMilestone(t *testing.T) {
	cfg := DefaultGamificationConfig()

	for _, days := range cfg.StreakMilestones {
		if !cfg.IsStreakMilestone(days) {
			t.Errorf("IsStreakMilestone(%d) = false, want true", days)
		}
	}
	for _, days := range []int{0, 1, 6, 8, 29, 31, 99, 101} {
		if cfg.IsStreakMilestone(days) {
			t.Errorf("IsStreakMilestone(%d) = true, want false", days)
		}
	}
}
