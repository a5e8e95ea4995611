package services

// GamificationConfig holds every tunable the progress engine uses.
// Values are injected at construction so tests can override them
// without touching globals.
type GamificationConfig struct {
	LessonBaseXP      int
	QuizCorrectXP     int
	FirstTryXP        int
	StreakBonusPerDay int
	StreakBonusCap    int // streak days counted toward the bonus, not a streak limit
	CourseCompleteXP  int

	EarlyBirdHour int // completions strictly before this hour qualify
	NightOwlHour  int // completions at or after this hour qualify

	StreakMilestones []int
}

func DefaultGamificationConfig() GamificationConfig {
	return GamificationConfig{
		LessonBaseXP:      25,
		QuizCorrectXP:     15,
		FirstTryXP:        10,
		StreakBonusPerDay: 5,
		StreakBonusCap:    30,
		CourseCompleteXP:  100,
		EarlyBirdHour:     7,
		NightOwlHour:      22,
		StreakMilestones:  []int{7, 30, 100},
	}
}

// StreakBonus returns the per-lesson bonus for an active streak. The
// bonus grows linearly and stops growing at StreakBonusCap days.
func (c GamificationConfig) StreakBonus(currentStreak int) int {
	days := currentStreak
	if days > c.StreakBonusCap {
		days = c.StreakBonusCap
	}
	if days < 0 {
		days = 0
	}
	return c.StreakBonusPerDay * days
}

// LessonXP computes the XP earned for one lesson completion. The streak
// passed in must be the streak after today's activity was counted.
func (c GamificationConfig) LessonXP(quizCorrect, firstTry bool, currentStreak int) int {
	xp := c.LessonBaseXP
	if quizCorrect {
		xp += c.QuizCorrectXP
		if firstTry {
			xp += c.FirstTryXP
		}
	}
	return xp + c.StreakBonus(currentStreak)
}

func (c GamificationConfig) IsStreakMilestone(days int) bool {
	for _, m := range c.StreakMilestones {
		if m == days {
			return true
		}
	}
	return false
}
