package course

import (
	"time"

	"github.com/google/uuid"
)

type Course struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Lesson struct {
	ID       uuid.UUID `json:"id" db:"id"`
	CourseID uuid.UUID `json:"course_id" db:"course_id"`
	Title    string    `json:"title" db:"title"`
	Position int       `json:"position" db:"position"`
}

// Progress is the dashboard view of a user's standing in one course.
type Progress struct {
	CourseID         uuid.UUID  `json:"course_id" db:"course_id"`
	Title            string     `json:"title" db:"title"`
	LessonsTotal     int        `json:"lessons_total" db:"lessons_total"`
	LessonsCompleted int        `json:"lessons_completed" db:"lessons_completed"`
	ProgressPercent  int        `json:"progress_percent"`
	LastActivityAt   *time.Time `json:"last_activity_at" db:"last_activity_at"`
}
