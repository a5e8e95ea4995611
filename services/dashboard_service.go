package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stimmaAPI/internal/badge"
	"stimmaAPI/internal/course"
	"stimmaAPI/internal/level"
	"stimmaAPI/internal/stats"
)

// DashboardService serves the read side: the dashboard aggregate, the
// badge catalog with unlock status and the XP leaderboard.
type DashboardService struct {
	db *pgxpool.Pool
}

func NewDashboardService(db *pgxpool.Pool) *DashboardService {
	return &DashboardService{db: db}
}

type DashboardData struct {
	Stats           *stats.UserStats         `json:"stats"`
	Level           level.Progress           `json:"level"`
	RecentBadges    []*badge.BadgeWithStatus `json:"recent_badges"`
	BadgeCount      int                      `json:"badge_count"`
	Courses         []*course.Progress       `json:"courses"`
	ActivityHistory []*stats.DailyActivity   `json:"activity_history"`
}

type LeaderboardEntry struct {
	Rank     int       `json:"rank"`
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	TotalXP  int       `json:"total_xp"`
	Level    int       `json:"level"`
}

type Leaderboard struct {
	Entries      []*LeaderboardEntry `json:"entries"`
	UserPosition *LeaderboardEntry   `json:"user_position,omitempty"`
}

const (
	recentBadgeLimit    = 5
	courseProgressLimit = 5
	activityHistoryDays = 14
	leaderboardSize     = 50
)

// GetDashboardData assembles everything the dashboard page needs in
// one call. A user with no activity yet gets zeroed stats, not an
// error.
func (s *DashboardService) GetDashboardData(ctx context.Context, userID uuid.UUID) (*DashboardData, error) {
	st, err := s.getStats(ctx, userID)
	if err != nil {
		return nil, err
	}

	recent, total, err := s.getRecentBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	courses, err := s.getCourseProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	history, err := s.getActivityHistory(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &DashboardData{
		Stats:           st,
		Level:           level.Calculate(st.TotalXP),
		RecentBadges:    recent,
		BadgeCount:      total,
		Courses:         courses,
		ActivityHistory: history,
	}, nil
}

func (s *DashboardService) getStats(ctx context.Context, userID uuid.UUID) (*stats.UserStats, error) {
	query := `
	SELECT user_id, total_xp, current_streak, longest_streak, last_activity_date,
	       lessons_completed, quizzes_passed, courses_completed, updated_at
	FROM user_stats
	WHERE user_id = $1
	`

	st := &stats.UserStats{}
	err := s.db.QueryRow(ctx, query, userID).Scan(
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
		if errors.Is(err, pgx.ErrNoRows) {
			return &stats.UserStats{UserID: userID, UpdatedAt: time.Now()}, nil
		}
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	return st, nil
}

func (s *DashboardService) getRecentBadges(ctx context.Context, userID uuid.UUID) ([]*badge.BadgeWithStatus, int, error) {
	query := `
	SELECT b.id, b.slug, b.name, b.description, b.icon, b.requirement_type, b.requirement_value, b.xp_reward, b.created_at,
	       ub.earned_at
	FROM user_badges ub
	JOIN badges b ON b.id = ub.badge_id
	WHERE ub.user_id = $1
	ORDER BY ub.earned_at DESC
	LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, userID, recentBadgeLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get recent badges: %w", err)
	}
	defer rows.Close()

	var badges []*badge.BadgeWithStatus
	for rows.Next() {
		b := &badge.BadgeWithStatus{Unlocked: true}
		err := rows.Scan(&b.ID, &b.Slug, &b.Name, &b.Description, &b.Icon, &b.RequirementType, &b.RequirementValue, &b.XPReward, &b.CreatedAt, &b.EarnedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating badges: %w", err)
	}

	var total int
	err = s.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_badges WHERE user_id = $1`, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count badges: %w", err)
	}

	return badges, total, nil
}

// getCourseProgress lists the courses the user has touched, most
// recently active first.
func (s *DashboardService) getCourseProgress(ctx context.Context, userID uuid.UUID) ([]*course.Progress, error) {
	query := `
	SELECT c.id, c.title,
	       (SELECT COUNT(*) FROM lessons WHERE course_id = c.id) AS lessons_total,
	       COUNT(lp.lesson_id) AS lessons_completed,
	       MAX(lp.completed_at) AS last_activity_at
	FROM courses c
	JOIN lessons l ON l.course_id = c.id
	JOIN lesson_progress lp ON lp.lesson_id = l.id AND lp.user_id = $1
	GROUP BY c.id, c.title
	HAVING COUNT(lp.lesson_id) > 0
	ORDER BY MAX(lp.completed_at) DESC
	LIMIT $2
	`

	rows, err := s.db.Query(ctx, query, userID, courseProgressLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get course progress: %w", err)
	}
	defer rows.Close()

	var courses []*course.Progress
	for rows.Next() {
		p := &course.Progress{}
		err := rows.Scan(&p.CourseID, &p.Title, &p.LessonsTotal, &p.LessonsCompleted, &p.LastActivityAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course progress: %w", err)
		}
		if p.LessonsTotal > 0 {
			p.ProgressPercent = p.LessonsCompleted * 100 / p.LessonsTotal
		}
		courses = append(courses, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating course progress: %w", err)
	}

	return courses, nil
}

func (s *DashboardService) getActivityHistory(ctx context.Context, userID uuid.UUID) ([]*stats.DailyActivity, error) {
	// The window is inclusive of today, so a 14-day history reaches
	// back 13 calendar days.
	query := `
	SELECT user_id, activity_date, lessons_completed, xp_earned
	FROM daily_activity
	WHERE user_id = $1 AND activity_date >= CURRENT_DATE - ($2::int - 1)
	ORDER BY activity_date ASC
	`

	rows, err := s.db.Query(ctx, query, userID, activityHistoryDays)
	if err != nil {
		return nil, fmt.Errorf("failed to get activity history: %w", err)
	}
	defer rows.Close()

	var history []*stats.DailyActivity
	for rows.Next() {
		d := &stats.DailyActivity{}
		if err := rows.Scan(&d.UserID, &d.ActivityDate, &d.LessonsCompleted, &d.XPEarned); err != nil {
			return nil, fmt.Errorf("failed to scan daily activity: %w", err)
		}
		history = append(history, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity history: %w", err)
	}

	return history, nil
}

// GetBadges returns the full catalog with the user's unlock status,
// locked ones included so the UI can show what is still ahead.
func (s *DashboardService) GetBadges(ctx context.Context, userID uuid.UUID) ([]*badge.BadgeWithStatus, error) {
	query := `
	SELECT b.id, b.slug, b.name, b.description, b.icon, b.requirement_type, b.requirement_value, b.xp_reward, b.created_at,
	       ub.earned_at
	FROM badges b
	LEFT JOIN user_badges ub ON ub.badge_id = b.id AND ub.user_id = $1
	ORDER BY b.requirement_type, b.requirement_value
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get badges: %w", err)
	}
	defer rows.Close()

	var badges []*badge.BadgeWithStatus
	for rows.Next() {
		b := &badge.BadgeWithStatus{}
		err := rows.Scan(&b.ID, &b.Slug, &b.Name, &b.Description, &b.Icon, &b.RequirementType, &b.RequirementValue, &b.XPReward, &b.CreatedAt, &b.EarnedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		b.Unlocked = b.EarnedAt != nil
		badges = append(badges, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating badges: %w", err)
	}

	return badges, nil
}

// GetLeaderboard returns the top users by total XP plus the caller's
// own position when they fall outside the top.
func (s *DashboardService) GetLeaderboard(ctx context.Context, userID uuid.UUID) (*Leaderboard, error) {
	query := `
	SELECT rank, user_id, username, total_xp
	FROM (
	    SELECT us.user_id,
	           u.username,
	           us.total_xp,
	           RANK() OVER (ORDER BY us.total_xp DESC) AS rank
	    FROM user_stats us
	    JOIN users u ON u.id = us.user_id
	) ranked
	ORDER BY rank ASC
	LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, leaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}
	defer rows.Close()

	lb := &Leaderboard{}
	inTop := false
	for rows.Next() {
		e := &LeaderboardEntry{}
		if err := rows.Scan(&e.Rank, &e.UserID, &e.Username, &e.TotalXP); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.Level = level.Calculate(e.TotalXP).Level
		if e.UserID == userID {
			inTop = true
			lb.UserPosition = e
		}
		lb.Entries = append(lb.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating leaderboard: %w", err)
	}

	if !inTop {
		pos := &LeaderboardEntry{}
		posQuery := `
		SELECT rank, user_id, username, total_xp
		FROM (
		    SELECT us.user_id,
		           u.username,
		           us.total_xp,
		           RANK() OVER (ORDER BY us.total_xp DESC) AS rank
		    FROM user_stats us
		    JOIN users u ON u.id = us.user_id
		) ranked
		WHERE user_id = $1
		`
		err := s.db.QueryRow(ctx, posQuery, userID).Scan(&pos.Rank, &pos.UserID, &pos.Username, &pos.TotalXP)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("failed to get leaderboard position: %w", err)
			}
			// No stats row yet, leave position empty.
		} else {
			pos.Level = level.Calculate(pos.TotalXP).Level
			lb.UserPosition = pos
		}
	}

	return lb, nil
}
