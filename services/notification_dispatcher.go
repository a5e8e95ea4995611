package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"stimmaAPI/internal/notification"
)

type PushNotificationProvider interface {
	SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error
}

// NotificationDispatcher runs the delivery side: a small worker pool
// for pushes, a ticker that releases scheduled notifications, an
// hourly streak-risk sweep and a daily cleanup of expired rows.
type NotificationDispatcher struct {
	service      *NotificationService
	pushProvider PushNotificationProvider
	workers      int
	jobQueue     chan *DispatchJob
	stopChan     chan struct{}
	wg           sync.WaitGroup
}

type DispatchJob struct {
	Notification *notification.Notification
	Preferences  *notification.NotificationPreferences
}

func NewNotificationDispatcher(service *NotificationService, provider PushNotificationProvider) *NotificationDispatcher {
	dispatcher := &NotificationDispatcher{
		service:      service,
		pushProvider: provider,
		workers:      5,
		jobQueue:     make(chan *DispatchJob, 100),
		stopChan:     make(chan struct{}),
	}

	dispatcher.startWorkers()

	go dispatcher.processScheduledNotifications()
	go dispatcher.sweepStreakRisk()
	go dispatcher.cleanupExpiredNotifications()

	return dispatcher
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *NotificationDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(job *DispatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	notif := job.Notification
	prefs := job.Preferences

	if prefs.PushEnabled && len(prefs.DeviceTokens) > 0 && d.pushProvider != nil {
		err := d.pushProvider.SendPush(ctx, prefs.DeviceTokens, notif.Title, notif.Body, notif.Data)
		if err != nil {
			log.Printf("Push failed for user %s: %v", notif.UserID, err)
			d.markAsFailed(ctx, notif.ID.String(), err)
			return
		}
	}

	d.markAsSent(ctx, notif.ID.String())
}

// DispatchNotification queues a notification for delivery. Drops the
// job with a log line if the queue stays full for 5 seconds.
func (d *NotificationDispatcher) DispatchNotification(ctx context.Context, notif *notification.Notification, prefs *notification.NotificationPreferences) {
	job := &DispatchJob{
		Notification: notif,
		Preferences:  prefs,
	}

	select {
	case d.jobQueue <- job:
	case <-time.After(5 * time.Second):
		log.Printf("Failed to queue notification %s: queue full", notif.ID)
	}
}

func (d *NotificationDispatcher) processScheduledNotifications() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.processDueNotifications()
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processDueNotifications() {
	ctx := context.Background()

	query := `
		SELECT id, user_id, type, priority, status, title, body, data,
			   scheduled_for, action_url, created_at, expires_at
		FROM notifications
		WHERE status = 'pending'
		  AND scheduled_for IS NOT NULL
		  AND scheduled_for <= NOW()
		  AND (expires_at IS NULL OR expires_at > NOW())
		LIMIT 100
	`

	rows, err := d.service.db.Query(ctx, query)
	if err != nil {
		log.Printf("Failed to fetch scheduled notifications: %v", err)
		return
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		notif := &notification.Notification{}
		var dataStr string

		err := rows.Scan(
			&notif.ID, &notif.UserID, &notif.Type, &notif.Priority, &notif.Status,
			&notif.Title, &notif.Body, &dataStr, &notif.ScheduledFor,
			&notif.ActionURL, &notif.CreatedAt, &notif.ExpiresAt,
		)
		if err != nil {
			log.Printf("Failed to scan scheduled notification: %v", err)
			continue
		}

		prefs, err := d.service.GetUserPreferences(ctx, notif.UserID)
		if err != nil {
			log.Printf("Failed to get preferences for user %s: %v", notif.UserID, err)
			continue
		}

		d.DispatchNotification(ctx, notif, prefs)
		count++
	}

	if count > 0 {
		log.Printf("Processed %d scheduled notifications", count)
	}
}

// sweepStreakRisk reminds users whose streak ends today if they stay
// inactive. Runs hourly but only acts in the evening, and the NOT
// EXISTS clause keeps it to one reminder per user per day.
func (d *NotificationDispatcher) sweepStreakRisk() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if time.Now().Hour() >= 18 {
				d.notifyStreaksAtRisk()
			}
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) notifyStreaksAtRisk() {
	ctx := context.Background()

	query := `
		SELECT us.user_id, us.current_streak
		FROM user_stats us
		WHERE us.current_streak > 0
		  AND us.last_activity_date = CURRENT_DATE - 1
		  AND NOT EXISTS (
		      SELECT 1 FROM notifications n
		      WHERE n.user_id = us.user_id
		        AND n.type = 'streak_risk'
		        AND n.created_at >= CURRENT_DATE
		  )
		LIMIT 500
	`

	rows, err := d.service.db.Query(ctx, query)
	if err != nil {
		log.Printf("Failed to fetch streaks at risk: %v", err)
		return
	}
	defer rows.Close()

	type atRisk struct {
		userID uuid.UUID
		streak int
	}
	var users []atRisk
	for rows.Next() {
		var u atRisk
		if err := rows.Scan(&u.userID, &u.streak); err != nil {
			log.Printf("Failed to scan streak risk row: %v", err)
			continue
		}
		users = append(users, u)
	}
	rows.Close()

	for _, u := range users {
		req := &notification.CreateNotificationRequest{
			UserID:   u.userID,
			Type:     notification.TypeStreakRisk,
			Priority: notification.PriorityHigh,
			Data:     map[string]any{"days": u.streak},
		}
		if _, err := d.service.CreateNotification(ctx, req); err != nil {
			log.Printf("Failed to create streak risk notification for user %s: %v", u.userID, err)
		}
	}

	if len(users) > 0 {
		log.Printf("Sent %d streak risk reminders", len(users))
	}
}

func (d *NotificationDispatcher) cleanupExpiredNotifications() {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.performCleanup()
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) performCleanup() {
	ctx := context.Background()

	query := `
		DELETE FROM notifications
		WHERE expires_at < NOW()
		  AND status IN ('sent', 'read')
	`

	result, err := d.service.db.Exec(ctx, query)
	if err != nil {
		log.Printf("Failed to cleanup expired notifications: %v", err)
		return
	}

	if n := result.RowsAffected(); n > 0 {
		log.Printf("Cleaned up %d expired notifications", n)
	}

	query = `
		DELETE FROM notifications
		WHERE read_at < NOW() - INTERVAL '90 days'
		  AND status = 'read'
	`

	result, err = d.service.db.Exec(ctx, query)
	if err != nil {
		log.Printf("Failed to cleanup old read notifications: %v", err)
		return
	}

	if n := result.RowsAffected(); n > 0 {
		log.Printf("Cleaned up %d old read notifications", n)
	}
}

func (d *NotificationDispatcher) markAsSent(ctx context.Context, notificationID string) {
	query := `
		UPDATE notifications
		SET status = 'sent', sent_at = NOW()
		WHERE id = $1
	`

	if _, err := d.service.db.Exec(ctx, query, notificationID); err != nil {
		log.Printf("Failed to mark notification %s as sent: %v", notificationID, err)
	}
}

func (d *NotificationDispatcher) markAsFailed(ctx context.Context, notificationID string, failErr error) {
	query := `
		UPDATE notifications
		SET status = 'failed', failed_at = NOW(), failure_reason = $2, retry_count = retry_count + 1
		WHERE id = $1
	`

	if _, err := d.service.db.Exec(ctx, query, notificationID, failErr.Error()); err != nil {
		log.Printf("Failed to mark notification %s as failed: %v", notificationID, err)
	}

	// Retry high and urgent notifications up to 3 times, 5 minutes apart.
	var retryCount int
	var priority notification.NotificationPriority
	d.service.db.QueryRow(ctx, "SELECT retry_count, priority FROM notifications WHERE id = $1", notificationID).Scan(&retryCount, &priority)

	if retryCount < 3 && (priority == notification.PriorityHigh || priority == notification.PriorityUrgent) {
		retryTime := time.Now().Add(5 * time.Minute)
		d.service.db.Exec(ctx, "UPDATE notifications SET scheduled_for = $2, status = 'pending' WHERE id = $1", notificationID, retryTime)
		log.Printf("Scheduled retry for notification %s at %s", notificationID, retryTime)
	}
}

// Stop drains the worker pool and stops the background loops.
func (d *NotificationDispatcher) Stop() {
	log.Println("Stopping notification dispatcher...")
	close(d.stopChan)
	d.wg.Wait()
	log.Println("Notification dispatcher stopped")
}

// MockPushProvider logs instead of sending, for tests and local runs
// without FCM credentials.
type MockPushProvider struct{}

func (m *MockPushProvider) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	log.Printf("MOCK PUSH: Sending to %d devices: %s - %s", len(tokens), title, body)
	return nil
}
