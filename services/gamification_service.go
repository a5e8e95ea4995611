package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"stimmaAPI/internal/badge"
	"stimmaAPI/internal/level"
	"stimmaAPI/internal/stats"
	"stimmaAPI/utils"
)

// GamificationService owns the progress engine: streaks, the XP ledger,
// badge awarding and the lesson/course completion recorders. No step
// runs inside a wrapping transaction; the unique constraints on
// user_badges and certificates are the hard guarantees, counters are
// best effort (see DESIGN.md).
type GamificationService struct {
	db       *pgxpool.Pool
	cfg      GamificationConfig
	certs    *CertificateService
	notifier *NotificationService
}

func NewGamificationService(db *pgxpool.Pool, cfg GamificationConfig, certs *CertificateService, notifier *NotificationService) *GamificationService {
	return &GamificationService{
		db:       db,
		cfg:      cfg,
		certs:    certs,
		notifier: notifier,
	}
}

type StreakResult struct {
	CurrentStreak int            `json:"current_streak"`
	LongestStreak int            `json:"longest_streak"`
	StreakBroken  bool           `json:"streak_broken"`
	NewBadges     []*badge.Badge `json:"new_badges"`
}

type XPResult struct {
	TotalXP   int            `json:"total_xp"`
	Added     int            `json:"added"`
	NewBadges []*badge.Badge `json:"new_badges"`
}

type LessonCompletionResult struct {
	XPEarned         int            `json:"xp_earned"`
	TotalXP          int            `json:"total_xp"`
	CurrentStreak    int            `json:"current_streak"`
	StreakBroken     bool           `json:"streak_broken"`
	LessonsCompleted int            `json:"lessons_completed"`
	Level            level.Progress `json:"level"`
	NewBadges        []*badge.Badge `json:"new_badges"`
}

type CourseCompletionResult struct {
	AlreadyCompleted  bool           `json:"already_completed"`
	CertificateID     uuid.UUID      `json:"certificate_id"`
	CertificateNumber string         `json:"certificate_number,omitempty"`
	XPEarned          int            `json:"xp_earned"`
	CoursesCompleted  int            `json:"courses_completed"`
	NewBadges         []*badge.Badge `json:"new_badges"`
}

// ensureStats returns the user's counter row, creating a zeroed one on
// first access.
func (s *GamificationService) ensureStats(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error) {
	_, err := s.db.Exec(ctx, `INSERT INTO user_stats (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to init user stats: %w", err)
	}

	query := `
	SELECT user_id, total_xp, current_streak, longest_streak, last_activity_date,
	       lessons_completed, quizzes_passed, courses_completed, updated_at
	FROM user_stats
	WHERE user_id = $1
	`

	st := &stats.UserStats{}
	err = s.db.QueryRow(ctx, query, userID).Scan(
		&st.UserID,
		&st.TotalXP,
		&st.CurrentStreak,
		&st.LongestStreak,
		&st.LastActivityDate,
		&st.LessonsCompleted,
		&st.QuizzesPassed,
		&st.CoursesCompleted,
		&st.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return st, nil
}

func (s *GamificationService) ensureDailyActivity(ctx context.Context, userID uuid.UUID, day time.Time) error {
	query := `
	INSERT INTO daily_activity (user_id, activity_date)
	VALUES ($1, $2)
	ON CONFLICT (user_id, activity_date) DO NOTHING
	`

	if _, err := s.db.Exec(ctx, query, userID, day); err != nil {
		return fmt.Errorf("failed to ensure daily activity row: %w", err)
	}
	return nil
}

// UpdateStreak resolves how today's activity affects the user's streak
// and persists the outcome. Calling it again on the same day is a
// no-op.
func (s *GamificationService) UpdateStreak(ctx context.Context, userID uuid.UUID) (*StreakResult, error) {
	st, err := s.ensureStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := time.Now()
	next, broken, sameDay := utils.NextStreak(st.CurrentStreak, st.LastActivityDate, today)

	if sameDay {
		if err := s.ensureDailyActivity(ctx, userID, today); err != nil {
			return nil, err
		}
		return &StreakResult{
			CurrentStreak: st.CurrentStreak,
			LongestStreak: st.LongestStreak,
			StreakBroken:  false,
			NewBadges:     nil,
		}, nil
	}

	longest := st.LongestStreak
	if next > longest {
		longest = next
	}

	query := `
	UPDATE user_stats
	SET current_streak = $2, longest_streak = $3, last_activity_date = $4, updated_at = NOW()
	WHERE user_id = $1
	`

	if _, err := s.db.Exec(ctx, query, userID, next, longest, today); err != nil {
		return nil, fmt.Errorf("failed to update streak: %w", err)
	}

	if err := s.ensureDailyActivity(ctx, userID, today); err != nil {
		return nil, err
	}

	newBadges, err := s.CheckAndAwardBadges(ctx, userID, badge.RequirementStreak, next)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil && s.cfg.IsStreakMilestone(next) {
		utils.NotifyStreakMilestone(s.notifier, userID, next)
	}

	return &StreakResult{
		CurrentStreak: next,
		LongestStreak: longest,
		StreakBroken:  broken,
		NewBadges:     newBadges,
	}, nil
}

// AddXP adds a non-negative delta to the user's total and to today's
// daily activity row, then evaluates XP-threshold badges. The reason is
// an audit label for the log only.
func (s *GamificationService) AddXP(ctx context.Context, userID uuid.UUID, amount int, reason string) (*XPResult, error) {
	if amount < 0 {
		return nil, fmt.Errorf("xp amount must be non-negative, got %d", amount)
	}

	if _, err := s.ensureStats(ctx, userID); err != nil {
		return nil, err
	}

	var totalXP int
	query := `
	UPDATE user_stats
	SET total_xp = total_xp + $2, updated_at = NOW()
	WHERE user_id = $1
	RETURNING total_xp
	`

	if err := s.db.QueryRow(ctx, query, userID, amount).Scan(&totalXP); err != nil {
		return nil, fmt.Errorf("failed to add xp: %w", err)
	}

	upsert := `
	INSERT INTO daily_activity (user_id, activity_date, xp_earned)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, activity_date)
	DO UPDATE SET xp_earned = daily_activity.xp_earned + $3
	`

	if _, err := s.db.Exec(ctx, upsert, userID, time.Now(), amount); err != nil {
		return nil, fmt.Errorf("failed to record daily xp: %w", err)
	}

	log.Printf("XP: user %s +%d (%s), total %d", userID, amount, reason, totalXP)

	if s.notifier != nil {
		before := level.Calculate(totalXP - amount)
		after := level.Calculate(totalXP)
		if after.Level > before.Level {
			utils.NotifyLevelUp(s.notifier, userID, after.Level)
		}
	}

	newBadges, err := s.CheckAndAwardBadges(ctx, userID, badge.RequirementXP, totalXP)
	if err != nil {
		return nil, err
	}

	return &XPResult{
		TotalXP:   totalXP,
		Added:     amount,
		NewBadges: newBadges,
	}, nil
}

// CheckAndAwardBadges grants every catalog badge of the given type
// whose threshold the value now satisfies and the user does not already
// hold, lowest threshold first. The insert is idempotent: a concurrent
// grant of the same badge loses the ON CONFLICT race and is skipped.
// Badge XP rewards top up total_xp directly and do not re-trigger
// XP-badge evaluation within this call.
func (s *GamificationService) CheckAndAwardBadges(ctx context.Context, userID uuid.UUID, reqType badge.RequirementType, value int) ([]*badge.Badge, error) {
	query := `
	SELECT b.id, b.slug, b.name, b.description, b.icon, b.requirement_type, b.requirement_value, b.xp_reward, b.created_at
	FROM badges b
	WHERE b.requirement_type = $2
	  AND b.requirement_value <= $3
	  AND NOT EXISTS (
	      SELECT 1 FROM user_badges ub WHERE ub.user_id = $1 AND ub.badge_id = b.id
	  )
	ORDER BY b.requirement_value ASC
	`

	rows, err := s.db.Query(ctx, query, userID, reqType, value)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch candidate badges: %w", err)
	}
	defer rows.Close()

	var candidates []*badge.Badge
	for rows.Next() {
		b := &badge.Badge{}
		err := rows.Scan(&b.ID, &b.Slug, &b.Name, &b.Description, &b.Icon, &b.RequirementType, &b.RequirementValue, &b.XPReward, &b.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		candidates = append(candidates, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badges: %w", err)
	}

	var granted []*badge.Badge
	for _, b := range candidates {
		ok, err := s.grantBadge(ctx, userID, b)
		if err != nil {
			return nil, err
		}
		if ok {
			granted = append(granted, b)
		}
	}

	return granted, nil
}

// grantBadge inserts the user_badges row if absent and applies the XP
// reward. Returns false when another request granted the badge first.
func (s *GamificationService) grantBadge(ctx context.Context, userID uuid.UUID, b *badge.Badge) (bool, error) {
	result, err := s.db.Exec(ctx, `
	INSERT INTO user_badges (user_id, badge_id)
	VALUES ($1, $2)
	ON CONFLICT (user_id, badge_id) DO NOTHING
	`, userID, b.ID)
	if err != nil {
		return false, fmt.Errorf("failed to grant badge %s: %w", b.Slug, err)
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}

	if b.XPReward > 0 {
		_, err := s.db.Exec(ctx, `UPDATE user_stats SET total_xp = total_xp + $2, updated_at = NOW() WHERE user_id = $1`, userID, b.XPReward)
		if err != nil {
			return false, fmt.Errorf("failed to apply badge xp reward: %w", err)
		}
	}

	log.Printf("Badge: user %s unlocked %s", userID, b.Slug)
	if s.notifier != nil {
		utils.NotifyBadgeUnlocked(s.notifier, userID, b)
	}

	return true, nil
}

// CheckSpecialBadges grants the time-of-day badges. Runs once per
// lesson completion, not on every XP or streak update.
func (s *GamificationService) CheckSpecialBadges(ctx context.Context, userID uuid.UUID) ([]*badge.Badge, error) {
	hour := time.Now().Hour()

	var slugs []string
	if hour < s.cfg.EarlyBirdHour {
		slugs = append(slugs, badge.SlugEarlyBird)
	}
	if hour >= s.cfg.NightOwlHour {
		slugs = append(slugs, badge.SlugNightOwl)
	}

	var granted []*badge.Badge
	for _, slug := range slugs {
		query := `
		SELECT id, slug, name, description, icon, requirement_type, requirement_value, xp_reward, created_at
		FROM badges
		WHERE slug = $1 AND requirement_type = $2
		`

		b := &badge.Badge{}
		err := s.db.QueryRow(ctx, query, slug, badge.RequirementSpecial).Scan(&b.ID, &b.Slug, &b.Name, &b.Description, &b.Icon, &b.RequirementType, &b.RequirementValue, &b.XPReward, &b.CreatedAt)
		if err != nil {
			// Catalog entry missing is a seed problem, not a user error.
			log.Printf("Special badge %s not found in catalog: %v", slug, err)
			continue
		}

		ok, err := s.grantBadge(ctx, userID, b)
		if err != nil {
			return nil, err
		}
		if ok {
			granted = append(granted, b)
		}
	}

	return granted, nil
}

// RecordLessonCompletion is the lesson entry point. The streak is
// resolved first because the XP formula depends on the streak length
// that includes today.
func (s *GamificationService) RecordLessonCompletion(ctx context.Context, userID, lessonID uuid.UUID, quizCorrect, firstTry bool) (*LessonCompletionResult, error) {
	streakRes, err := s.UpdateStreak(ctx, userID)
	if err != nil {
		return nil, err
	}

	amount := s.cfg.LessonXP(quizCorrect, firstTry, streakRes.CurrentStreak)

	// Progress row for course-percentage display. Repeat completions of
	// the same lesson keep the original completion time.
	_, err = s.db.Exec(ctx, `
	INSERT INTO lesson_progress (user_id, lesson_id)
	VALUES ($1, $2)
	ON CONFLICT (user_id, lesson_id) DO NOTHING
	`, userID, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to record lesson progress: %w", err)
	}

	quizInc := 0
	if quizCorrect {
		quizInc = 1
	}

	var lessonsCompleted int
	err = s.db.QueryRow(ctx, `
	UPDATE user_stats
	SET lessons_completed = lessons_completed + 1,
	    quizzes_passed = quizzes_passed + $2,
	    updated_at = NOW()
	WHERE user_id = $1
	RETURNING lessons_completed
	`, userID, quizInc).Scan(&lessonsCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to update lesson counters: %w", err)
	}

	// The daily row exists from the streak step.
	_, err = s.db.Exec(ctx, `
	UPDATE daily_activity
	SET lessons_completed = lessons_completed + 1
	WHERE user_id = $1 AND activity_date = $2
	`, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to update daily lesson count: %w", err)
	}

	xpRes, err := s.AddXP(ctx, userID, amount, "lesson_completion")
	if err != nil {
		return nil, err
	}

	lessonBadges, err := s.CheckAndAwardBadges(ctx, userID, badge.RequirementLessons, lessonsCompleted)
	if err != nil {
		return nil, err
	}

	specialBadges, err := s.CheckSpecialBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Report order: streak, xp, lesson-count, special.
	newBadges := make([]*badge.Badge, 0, len(streakRes.NewBadges)+len(xpRes.NewBadges)+len(lessonBadges)+len(specialBadges))
	newBadges = append(newBadges, streakRes.NewBadges...)
	newBadges = append(newBadges, xpRes.NewBadges...)
	newBadges = append(newBadges, lessonBadges...)
	newBadges = append(newBadges, specialBadges...)

	return &LessonCompletionResult{
		XPEarned:         amount,
		TotalXP:          xpRes.TotalXP,
		CurrentStreak:    streakRes.CurrentStreak,
		StreakBroken:     streakRes.StreakBroken,
		LessonsCompleted: lessonsCompleted,
		Level:            level.Calculate(xpRes.TotalXP),
		NewBadges:        newBadges,
	}, nil
}

// RecordCourseCompletion is the course entry point. A certificate
// already on file makes the whole call a no-op.
func (s *GamificationService) RecordCourseCompletion(ctx context.Context, userID, courseID uuid.UUID) (*CourseCompletionResult, error) {
	existingID, err := s.certs.FindCertificateID(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if existingID != uuid.Nil {
		return &CourseCompletionResult{
			AlreadyCompleted: true,
			CertificateID:    existingID,
		}, nil
	}

	if _, err := s.ensureStats(ctx, userID); err != nil {
		return nil, err
	}

	cert, created, err := s.certs.IssueCertificate(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if !created {
		// Lost the insert race to a concurrent completion.
		return &CourseCompletionResult{
			AlreadyCompleted: true,
			CertificateID:    cert.ID,
		}, nil
	}

	var coursesCompleted int
	err = s.db.QueryRow(ctx, `
	UPDATE user_stats
	SET courses_completed = courses_completed + 1, updated_at = NOW()
	WHERE user_id = $1
	RETURNING courses_completed
	`, userID).Scan(&coursesCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to update course counter: %w", err)
	}

	xpRes, err := s.AddXP(ctx, userID, s.cfg.CourseCompleteXP, "course_completion")
	if err != nil {
		return nil, err
	}

	courseBadges, err := s.CheckAndAwardBadges(ctx, userID, badge.RequirementCourses, coursesCompleted)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		utils.NotifyCertificateIssued(s.notifier, userID, cert.CourseTitle, cert.CertificateNumber)
	}

	newBadges := make([]*badge.Badge, 0, len(xpRes.NewBadges)+len(courseBadges))
	newBadges = append(newBadges, xpRes.NewBadges...)
	newBadges = append(newBadges, courseBadges...)

	return &CourseCompletionResult{
		AlreadyCompleted:  false,
		CertificateID:     cert.ID,
		CertificateNumber: cert.CertificateNumber,
		XPEarned:          xpRes.Added,
		CoursesCompleted:  coursesCompleted,
		NewBadges:         newBadges,
	}, nil
}
