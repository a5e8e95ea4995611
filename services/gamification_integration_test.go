package services

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"stimmaAPI/internal/badge"
	"stimmaAPI/internal/database"
)

// Integration tests need a real database. Run with:
//
//	DATABASE_URL=postgres://... go test ./services/
//
// Skipped under -short or when DATABASE_URL is unset.
func integrationPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.RunMigrations(ctx, pool); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return pool
}

func createTestUser(t *testing.T, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()

	ctx := context.Background()
	var userID uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO users (email, username, first_name, last_name)
		VALUES ($1, $2, 'Test', 'Learner')
		RETURNING id
	`, uuid.NewString()+"@example.com", "learner-"+uuid.NewString()[:8]).Scan(&userID)
	if err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM users WHERE id = $1`, userID)
	})

	return userID
}

func createTestCourse(t *testing.T, pool *pgxpool.Pool, lessons int) (uuid.UUID, []uuid.UUID) {
	t.Helper()

	ctx := context.Background()
	var courseID uuid.UUID
	err := pool.QueryRow(ctx, `
		INSERT INTO courses (title, description)
		VALUES ('Go Fundamentals', 'intro course')
		RETURNING id
	`).Scan(&courseID)
	if err != nil {
		t.Fatalf("failed to create test course: %v", err)
	}

	lessonIDs := make([]uuid.UUID, 0, lessons)
	for i := 0; i < lessons; i++ {
		var lessonID uuid.UUID
		err := pool.QueryRow(ctx, `
			INSERT INTO lessons (course_id, title, position)
			VALUES ($1, 'Lesson', $2)
			RETURNING id
		`, courseID, i).Scan(&lessonID)
		if err != nil {
			t.Fatalf("failed to create test lesson: %v", err)
		}
		lessonIDs = append(lessonIDs, lessonID)
	}

	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM courses WHERE id = $1`, courseID)
	})

	return courseID, lessonIDs
}

func TestRecordLessonCompletion(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()

	userID := createTestUser(t, pool)
	_, lessonIDs := createTestCourse(t, pool, 3)

	certs := NewCertificateService(pool, "https://example.com/verify")
	svc := NewGamificationService(pool, DefaultGamificationConfig(), certs, nil)

	result, err := svc.RecordLessonCompletion(ctx, userID, lessonIDs[0], true, true)
	if err != nil {
		t.Fatalf("RecordLessonCompletion failed: %v", err)
	}

	// Day one: base 25 + quiz 15 + first-try 10 + streak bonus 5.
	if result.XPEarned != 55 {
		t.Errorf("XPEarned = %d, want 55", result.XPEarned)
	}
	if result.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", result.CurrentStreak)
	}
	if result.LessonsCompleted != 1 {
		t.Errorf("LessonsCompleted = %d, want 1", result.LessonsCompleted)
	}
	if result.Level.Level != 1 {
		t.Errorf("Level = %d, want 1", result.Level.Level)
	}

	// The first-lesson badge must be among the new badges.
	found := false
	for _, b := range result.NewBadges {
		if b.Slug == "lessons-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected lessons-1 badge in %v", result.NewBadges)
	}

	// A second completion the same day keeps the streak at 1.
	result2, err := svc.RecordLessonCompletion(ctx, userID, lessonIDs[1], false, false)
	if err != nil {
		t.Fatalf("second RecordLessonCompletion failed: %v", err)
	}
	if result2.CurrentStreak != 1 {
		t.Errorf("same-day streak = %d, want 1", result2.CurrentStreak)
	}
	if result2.StreakBroken {
		t.Error("same-day completion must not report a broken streak")
	}

	// Held badges are never re-reported.
	for _, b := range result2.NewBadges {
		if b.Slug == "lessons-1" {
			t.Error("lessons-1 badge reported again on second completion")
		}
	}
}

func TestCheckAndAwardBadgesIdempotent(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()

	userID := createTestUser(t, pool)

	certs := NewCertificateService(pool, "https://example.com/verify")
	svc := NewGamificationService(pool, DefaultGamificationConfig(), certs, nil)

	if _, err := svc.ensureStats(ctx, userID); err != nil {
		t.Fatalf("ensureStats failed: %v", err)
	}

	first, err := svc.CheckAndAwardBadges(ctx, userID, badge.RequirementLessons, 1)
	if err != nil {
		t.Fatalf("first evaluation failed: %v", err)
	}
	if len(first) != 1 || first[0].Slug != "lessons-1" {
		t.Fatalf("first evaluation granted %v, want [lessons-1]", first)
	}

	second, err := svc.CheckAndAwardBadges(ctx, userID, badge.RequirementLessons, 1)
	if err != nil {
		t.Fatalf("second evaluation failed: %v", err)
	}
	if len(second) != 0 {
		t.Errorf("second evaluation granted %v, want none", second)
	}

	var count int
	pool.QueryRow(ctx, `SELECT COUNT(*) FROM user_badges WHERE user_id = $1`, userID).Scan(&count)
	if count != 1 {
		t.Errorf("user holds %d badges, want 1", count)
	}
}

func TestStreakResetKeepsLongest(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()

	userID := createTestUser(t, pool)

	certs := NewCertificateService(pool, "https://example.com/verify")
	svc := NewGamificationService(pool, DefaultGamificationConfig(), certs, nil)

	if _, err := svc.ensureStats(ctx, userID); err != nil {
		t.Fatalf("ensureStats failed: %v", err)
	}

	// A five day streak that lapsed three days ago.
	_, err := pool.Exec(ctx, `
		UPDATE user_stats
		SET current_streak = 5, longest_streak = 5, last_activity_date = CURRENT_DATE - 3
		WHERE user_id = $1
	`, userID)
	if err != nil {
		t.Fatalf("failed to seed streak state: %v", err)
	}

	result, err := svc.UpdateStreak(ctx, userID)
	if err != nil {
		t.Fatalf("UpdateStreak failed: %v", err)
	}

	if result.CurrentStreak != 1 {
		t.Errorf("CurrentStreak = %d, want 1", result.CurrentStreak)
	}
	if !result.StreakBroken {
		t.Error("expected StreakBroken after a three day gap")
	}
	if result.LongestStreak != 5 {
		t.Errorf("LongestStreak = %d, want 5 preserved across the reset", result.LongestStreak)
	}
	if result.LongestStreak < result.CurrentStreak {
		t.Errorf("longest %d below current %d", result.LongestStreak, result.CurrentStreak)
	}
}

func TestRecordCourseCompletionIdempotent(t *testing.T) {
	pool := integrationPool(t)
	ctx := context.Background()

	userID := createTestUser(t, pool)
	courseID, _ := createTestCourse(t, pool, 1)

	certs := NewCertificateService(pool, "https://example.com/verify")
	svc := NewGamificationService(pool, DefaultGamificationConfig(), certs, nil)

	first, err := svc.RecordCourseCompletion(ctx, userID, courseID)
	if err != nil {
		t.Fatalf("RecordCourseCompletion failed: %v", err)
	}
	if first.AlreadyCompleted {
		t.Fatal("first completion reported already_completed")
	}
	if first.XPEarned != 100 {
		t.Errorf("XPEarned = %d, want 100", first.XPEarned)
	}
	if !certNumberPattern.MatchString(first.CertificateNumber) {
		t.Errorf("certificate number %q malformed", first.CertificateNumber)
	}

	second, err := svc.RecordCourseCompletion(ctx, userID, courseID)
	if err != nil {
		t.Fatalf("repeat RecordCourseCompletion failed: %v", err)
	}
	if !second.AlreadyCompleted {
		t.Error("repeat completion must report already_completed")
	}
	if second.CertificateID != first.CertificateID {
		t.Errorf("repeat returned certificate %s, want %s", second.CertificateID, first.CertificateID)
	}
	if second.XPEarned != 0 {
		t.Errorf("repeat completion earned %d XP, want 0", second.XPEarned)
	}

	// Verification works without auth context.
	cert, err := certs.GetCertificateByNumber(ctx, first.CertificateNumber)
	if err != nil {
		t.Fatalf("GetCertificateByNumber failed: %v", err)
	}
	if cert == nil || cert.ID != first.CertificateID {
		t.Errorf("verification lookup returned %v", cert)
	}

	missing, err := certs.GetCertificateByNumber(ctx, "STIMMA-2026-0000-0000-FFFFFF")
	if err != nil {
		t.Fatalf("lookup of unknown number errored: %v", err)
	}
	if missing != nil {
		t.Errorf("unknown number returned %v, want nil", missing)
	}
}
