package stats

import (
	"time"

	"github.com/google/uuid"
)

// UserStats is the per-user counter row. Created lazily on first
// access, never deleted. All counters are monotonically non-decreasing.
type UserStats struct {
	UserID           uuid.UUID  `json:"user_id" db:"user_id"`
	TotalXP          int        `json:"total_xp" db:"total_xp"`
	CurrentStreak    int        `json:"current_streak" db:"current_streak"`
	LongestStreak    int        `json:"longest_streak" db:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date" db:"last_activity_date"`
	LessonsCompleted int        `json:"lessons_completed" db:"lessons_completed"`
	QuizzesPassed    int        `json:"quizzes_passed" db:"quizzes_passed"`
	CoursesCompleted int        `json:"courses_completed" db:"courses_completed"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

// DailyActivity is one row per (user, calendar date), upserted whenever
// a lesson is completed or XP is earned on that date. Display only; the
// streak state on UserStats is authoritative.
type DailyActivity struct {
	UserID           uuid.UUID `json:"user_id" db:"user_id"`
	ActivityDate     time.Time `json:"activity_date" db:"activity_date"`
	LessonsCompleted int       `json:"lessons_completed" db:"lessons_completed"`
	XPEarned         int       `json:"xp_earned" db:"xp_earned"`
}
