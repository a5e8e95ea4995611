package certificate

import (
	"time"

	"github.com/google/uuid"
)

// Certificate is an immutable completion record, one per (user, course).
// CourseTitle and UserName are snapshots taken at issuance; later
// renames of the course or user must not change them.
type Certificate struct {
	ID                uuid.UUID `json:"id" db:"id"`
	UserID            uuid.UUID `json:"user_id" db:"user_id"`
	CourseID          uuid.UUID `json:"course_id" db:"course_id"`
	CertificateNumber string    `json:"certificate_number" db:"certificate_number"`
	CourseTitle       string    `json:"course_title" db:"course_title"`
	UserName          string    `json:"user_name" db:"user_name"`
	CompletionDate    time.Time `json:"completion_date" db:"completion_date"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
}
