// Package database owns the schema. Migrations are plain SQL constants
// executed in order at boot; every statement is idempotent so a restart
// is always safe.
package database

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

const migration001Users = `
CREATE TABLE IF NOT EXISTS users (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    email VARCHAR(255) NOT NULL UNIQUE,
    username VARCHAR(100) NOT NULL DEFAULT '',
    first_name VARCHAR(100) NOT NULL DEFAULT '',
    last_name VARCHAR(100) NOT NULL DEFAULT '',
    image_url TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS courses (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS lessons (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    title VARCHAR(255) NOT NULL,
    position INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_lessons_course_id ON lessons(course_id);

CREATE TABLE IF NOT EXISTS lesson_progress (
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    lesson_id UUID NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    PRIMARY KEY (user_id, lesson_id)
);
`

const migration002Gamification = `
CREATE TABLE IF NOT EXISTS user_stats (
    user_id UUID PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
    total_xp INTEGER NOT NULL DEFAULT 0,
    current_streak INTEGER NOT NULL DEFAULT 0,
    longest_streak INTEGER NOT NULL DEFAULT 0,
    last_activity_date DATE,
    lessons_completed INTEGER NOT NULL DEFAULT 0,
    quizzes_passed INTEGER NOT NULL DEFAULT 0,
    courses_completed INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_total_xp CHECK (total_xp >= 0),
    CONSTRAINT valid_streaks CHECK (current_streak >= 0 AND longest_streak >= current_streak),
    CONSTRAINT valid_counters CHECK (lessons_completed >= 0 AND quizzes_passed >= 0 AND courses_completed >= 0)
);

CREATE INDEX IF NOT EXISTS idx_user_stats_total_xp ON user_stats(total_xp DESC);

CREATE TABLE IF NOT EXISTS daily_activity (
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    activity_date DATE NOT NULL,
    lessons_completed INTEGER NOT NULL DEFAULT 0,
    xp_earned INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, activity_date)
);

CREATE TABLE IF NOT EXISTS badges (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    slug VARCHAR(50) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon VARCHAR(20) NOT NULL DEFAULT '',
    requirement_type VARCHAR(20) NOT NULL,
    requirement_value INTEGER NOT NULL DEFAULT 0,
    xp_reward INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_requirement_type CHECK (requirement_type IN ('streak', 'xp', 'lessons', 'courses', 'special')),
    CONSTRAINT valid_xp_reward CHECK (xp_reward >= 0)
);

CREATE INDEX IF NOT EXISTS idx_badges_requirement ON badges(requirement_type, requirement_value);

-- The (user_id, badge_id) uniqueness is the hard guarantee against
-- double-grants; everything above it is best effort.
CREATE TABLE IF NOT EXISTS user_badges (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    badge_id UUID NOT NULL REFERENCES badges(id) ON DELETE CASCADE,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_user_badges_user_id ON user_badges(user_id, earned_at DESC);

CREATE TABLE IF NOT EXISTS certificates (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    course_id UUID NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
    certificate_number VARCHAR(40) NOT NULL UNIQUE,
    course_title VARCHAR(255) NOT NULL,
    user_name VARCHAR(255) NOT NULL,
    completion_date DATE NOT NULL DEFAULT CURRENT_DATE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    UNIQUE (user_id, course_id)
);

CREATE INDEX IF NOT EXISTS idx_certificates_user_id ON certificates(user_id);
`

const migration003Notifications = `
CREATE TABLE IF NOT EXISTS notifications (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    type VARCHAR(50) NOT NULL,
    priority VARCHAR(20) NOT NULL DEFAULT 'normal',
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    title VARCHAR(255) NOT NULL,
    body TEXT NOT NULL,
    data JSONB NOT NULL DEFAULT '{}'::jsonb,
    scheduled_for TIMESTAMP WITH TIME ZONE,
    sent_at TIMESTAMP WITH TIME ZONE,
    read_at TIMESTAMP WITH TIME ZONE,
    failed_at TIMESTAMP WITH TIME ZONE,
    failure_reason TEXT,
    retry_count INTEGER NOT NULL DEFAULT 0,
    action_url TEXT,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    expires_at TIMESTAMP WITH TIME ZONE
);

CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_notifications_pending_scheduled ON notifications(scheduled_for) WHERE status = 'pending' AND scheduled_for IS NOT NULL;

CREATE TABLE IF NOT EXISTS notification_preferences (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    push_enabled BOOLEAN NOT NULL DEFAULT true,
    in_app_enabled BOOLEAN NOT NULL DEFAULT true,
    enabled_types JSONB NOT NULL DEFAULT '{}'::jsonb,
    max_notifications_per_hour INTEGER NOT NULL DEFAULT 10,
    device_tokens JSONB NOT NULL DEFAULT '[]'::jsonb,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS notification_rate_limits (
    user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    window_start TIMESTAMP WITH TIME ZONE NOT NULL,
    window_end TIMESTAMP WITH TIME ZONE NOT NULL,
    notification_count INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (user_id, window_start)
);

CREATE TABLE IF NOT EXISTS notification_templates (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    type VARCHAR(50) NOT NULL UNIQUE,
    title_template VARCHAR(255) NOT NULL,
    body_template TEXT NOT NULL,
    default_priority VARCHAR(20) NOT NULL DEFAULT 'normal',
    ttl_hours INTEGER NOT NULL DEFAULT 72,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const seedBadges = `
INSERT INTO badges (slug, name, description, icon, requirement_type, requirement_value, xp_reward) VALUES
    ('streak-3', 'Warming Up', '3 day learning streak', 'flame', 'streak', 3, 15),
    ('streak-7', 'One Week Wonder', '7 day learning streak', 'flame', 'streak', 7, 50),
    ('streak-14', 'Fortnight Fighter', '14 day learning streak', 'flame', 'streak', 14, 100),
    ('streak-30', 'Monthly Master', '30 day learning streak', 'trophy', 'streak', 30, 250),
    ('streak-100', 'Centurion', '100 day learning streak', 'crown', 'streak', 100, 1000),
    ('xp-100', 'First Steps', 'Earn 100 XP', 'star', 'xp', 100, 10),
    ('xp-500', 'Getting Serious', 'Earn 500 XP', 'star', 'xp', 500, 50),
    ('xp-1000', 'Knowledge Seeker', 'Earn 1000 XP', 'medal', 'xp', 1000, 100),
    ('xp-5000', 'Scholar', 'Earn 5000 XP', 'medal', 'xp', 5000, 500),
    ('lessons-1', 'First Lesson', 'Complete your first lesson', 'book', 'lessons', 1, 10),
    ('lessons-10', 'Bookworm', 'Complete 10 lessons', 'book', 'lessons', 10, 50),
    ('lessons-50', 'Dedicated Learner', 'Complete 50 lessons', 'books', 'lessons', 50, 200),
    ('lessons-100', 'Lesson Legend', 'Complete 100 lessons', 'books', 'lessons', 100, 500),
    ('courses-1', 'Course Conqueror', 'Complete your first course', 'graduation', 'courses', 1, 100),
    ('courses-5', 'Curriculum Crusher', 'Complete 5 courses', 'graduation', 'courses', 5, 500),
    ('courses-10', 'Master of Many', 'Complete 10 courses', 'crown', 'courses', 10, 1000),
    ('early-bird', 'Early Bird', 'Complete a lesson before 7 AM', 'sunrise', 'special', 0, 25),
    ('night-owl', 'Night Owl', 'Complete a lesson after 10 PM', 'moon', 'special', 0, 25)
ON CONFLICT (slug) DO NOTHING;
`

const seedNotificationTemplates = `
INSERT INTO notification_templates (type, title_template, body_template, default_priority, ttl_hours) VALUES
    ('badge_unlocked', 'Badge unlocked!', 'You earned the {{badge_name}} badge. +{{xp_reward}} XP', 'normal', 168),
    ('streak_milestone', '{{days}} day streak!', 'You have studied {{days}} days in a row. Keep it going!', 'normal', 48),
    ('streak_risk', 'Your streak is at risk', 'Your {{days}} day streak ends tonight. Complete a lesson to keep it alive.', 'high', 12),
    ('certificate_issued', 'Certificate earned', 'Congratulations! Your certificate for {{course_title}} is ready.', 'high', 720),
    ('level_up', 'Level up!', 'You reached level {{level}}.', 'normal', 72)
ON CONFLICT (type) DO NOTHING;
`

var migrations = []struct {
	name string
	sql  string
}{
	{"001_users_courses", migration001Users},
	{"002_gamification", migration002Gamification},
	{"003_notifications", migration003Notifications},
	{"seed_badges", seedBadges},
	{"seed_notification_templates", seedNotificationTemplates},
}

// RunMigrations applies the schema in order. Safe to call on every boot.
func RunMigrations(ctx context.Context, db *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}
		log.Printf("Migration %s applied", m.name)
	}
	return nil
}
