package utils

import (
	"context"
	"log"

	"github.com/google/uuid"

	"stimmaAPI/internal/badge"
	"stimmaAPI/internal/notification"
)

// NotificationCreator is the single method the triggers need from the
// notification service.
type NotificationCreator interface {
	CreateNotification(ctx context.Context, req *notification.CreateNotificationRequest) (*notification.Notification, error)
}

// NotifyBadgeUnlocked fires a badge_unlocked notification. Failures are
// logged and swallowed: a missed push must never fail the completion
// that earned the badge.
func NotifyBadgeUnlocked(notifier NotificationCreator, userID uuid.UUID, b *badge.Badge) {
	if notifier == nil {
		return
	}

	req := &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.TypeBadgeUnlocked,
		Priority: notification.PriorityNormal,
		Data: map[string]any{
			"badge_name": b.Name,
			"badge_slug": b.Slug,
			"xp_reward":  b.XPReward,
		},
	}

	if _, err := notifier.CreateNotification(context.Background(), req); err != nil {
		log.Printf("Failed to create badge notification for user %s: %v", userID, err)
	}
}

func NotifyStreakMilestone(notifier NotificationCreator, userID uuid.UUID, days int) {
	if notifier == nil {
		return
	}

	req := &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.TypeStreakMilestone,
		Priority: notification.PriorityNormal,
		Data:     map[string]any{"days": days},
	}

	if _, err := notifier.CreateNotification(context.Background(), req); err != nil {
		log.Printf("Failed to create streak milestone notification for user %s: %v", userID, err)
	}
}

func NotifyLevelUp(notifier NotificationCreator, userID uuid.UUID, newLevel int) {
	if notifier == nil {
		return
	}

	req := &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.TypeLevelUp,
		Priority: notification.PriorityLow,
		Data:     map[string]any{"level": newLevel},
	}

	if _, err := notifier.CreateNotification(context.Background(), req); err != nil {
		log.Printf("Failed to create level up notification for user %s: %v", userID, err)
	}
}

func NotifyCertificateIssued(notifier NotificationCreator, userID uuid.UUID, courseTitle, certificateNumber string) {
	if notifier == nil {
		return
	}

	req := &notification.CreateNotificationRequest{
		UserID:   userID,
		Type:     notification.TypeCertificateIssued,
		Priority: notification.PriorityHigh,
		Data: map[string]any{
			"course_title":       courseTitle,
			"certificate_number": certificateNumber,
		},
	}

	if _, err := notifier.CreateNotification(context.Background(), req); err != nil {
		log.Printf("Failed to create certificate notification for user %s: %v", userID, err)
	}
}
