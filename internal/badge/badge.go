package badge

import (
	"time"

	"github.com/google/uuid"
)

type RequirementType string

const (
	RequirementStreak  RequirementType = "streak"
	RequirementXP      RequirementType = "xp"
	RequirementLessons RequirementType = "lessons"
	RequirementCourses RequirementType = "courses"
	RequirementSpecial RequirementType = "special"
)

// Slugs of the time-of-day badges. Special badges are identified by
// slug, not threshold.
const (
	SlugEarlyBird = "early-bird"
	SlugNightOwl  = "night-owl"
)

type Badge struct {
	ID               uuid.UUID       `json:"id" db:"id"`
	Slug             string          `json:"slug" db:"slug"`
	Name             string          `json:"name" db:"name"`
	Description      string          `json:"description" db:"description"`
	Icon             string          `json:"icon" db:"icon"`
	RequirementType  RequirementType `json:"requirement_type" db:"requirement_type"`
	RequirementValue int             `json:"requirement_value" db:"requirement_value"`
	XPReward         int             `json:"xp_reward" db:"xp_reward"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

type UserBadge struct {
	ID       uuid.UUID `json:"id" db:"id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	BadgeID  uuid.UUID `json:"badge_id" db:"badge_id"`
	EarnedAt time.Time `json:"earned_at" db:"earned_at"`
}

type BadgeWithStatus struct {
	Badge
	Unlocked bool       `json:"unlocked"`
	EarnedAt *time.Time `json:"earned_at,omitempty"`
}
