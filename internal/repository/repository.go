package repository

import (
	"context"
	"time"

	"warehouse-notify/internal/domain"
)

// ChangeNotifier receives row-level change announcements for the realtime
// bridge. Implemented by realtime.Feed; may be nil on a repo.
type ChangeNotifier interface {
	PublishChange(ctx context.Context, change domain.RowChange)
}

// Repository aggregates the notification pipeline's DB operations.
type Repository interface {
	// Notifications
	CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	GetNotificationByID(ctx context.Context, id int64) (*domain.Notification, error)
	ListNotificationsByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Notification, error)
	ListUnreadNotifications(ctx context.Context, userID string, limit, offset int) ([]*domain.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID string) (int, error)
	MarkNotificationAsRead(ctx context.Context, id int64, userID string) error
	MarkAllNotificationsAsRead(ctx context.Context, userID string) (int64, error)
	HideNotification(ctx context.Context, id int64, userID string) error
	// RecordDeliveryOutcome sets delivered_at or failed_at (never both) plus
	// the per-channel results and aggregate error on one notification row.
	RecordDeliveryOutcome(ctx context.Context, id int64, delivered bool, at time.Time, errMsg string, results []domain.ChannelResult) error

	// Notification intents
	CreateIntent(ctx context.Context, e *domain.NotificationEvent) (*domain.NotificationEvent, error)
	ListPendingIntents(ctx context.Context, limit int) ([]*domain.NotificationEvent, error)
	// TransitionIntent is a single conditional update keyed by id and current
	// status; it reports whether this caller won the transition.
	TransitionIntent(ctx context.Context, id int64, from, to domain.IntentStatus, errMsg string) (bool, error)
	// RequeueStaleIntents returns intents stuck in processing longer than
	// olderThan back to pending so a later tick can pick them up.
	RequeueStaleIntents(ctx context.Context, olderThan time.Duration) (int64, error)

	// Preferences and contacts
	GetPreferences(ctx context.Context, userID string) (*domain.NotificationPreferences, error)
	UpsertPreferences(ctx context.Context, p *domain.NotificationPreferences) (*domain.NotificationPreferences, error)
	GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error)

	// Email queue
	EnqueueEmail(ctx context.Context, item *domain.EmailQueueItem) (*domain.EmailQueueItem, error)
	ListPendingEmails(ctx context.Context, limit int) ([]*domain.EmailQueueItem, error)
	ListRetryableEmails(ctx context.Context, maxAttempts, limit int) ([]*domain.EmailQueueItem, error)
	MarkEmailSent(ctx context.Context, id int64) (bool, error)
	// MarkEmailFailed increments the attempt counter; terminal moves the row
	// to the dead status which no listing ever returns again.
	MarkEmailFailed(ctx context.Context, id int64, errMsg string, terminal bool) (bool, error)
}
