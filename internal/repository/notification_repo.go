package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"warehouse-notify/internal/domain"
	"warehouse-notify/pkg/xerrors"
)

type pgRepo struct {
	db   *pgxpool.Pool
	feed ChangeNotifier
}

// NewRepository wires a pgx-backed repository. feed may be nil; row changes
// are then not announced to the realtime bridge.
func NewRepository(db *pgxpool.Pool, feed ChangeNotifier) Repository {
	return &pgRepo{db: db, feed: feed}
}

func (p *pgRepo) announce(ctx context.Context, change domain.RowChange) {
	if p.feed == nil {
		return
	}
	p.feed.PublishChange(ctx, change)
}

// -----------------------------
// Notifications
// -----------------------------

const notificationCols = `
	id, request_id, user_id, type, title, message, read, visible_in_app,
	sent_at, delivered_at, failed_at, error_message, metadata, created_at
`

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(
		&n.ID,
		&n.RequestID,
		&n.UserID,
		&n.Type,
		&n.Title,
		&n.Message,
		&n.Read,
		&n.VisibleInApp,
		&n.SentAt,
		&n.DeliveredAt,
		&n.FailedAt,
		&n.ErrorMessage,
		&n.Metadata,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (p *pgRepo) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	query := `
		INSERT INTO notifications (
			request_id, user_id, type, title, message, read, visible_in_app,
			sent_at, metadata
		) VALUES ($1, $2, $3, $4, $5, false, true, $6, $7)
		RETURNING ` + notificationCols

	created, err := scanNotification(p.db.QueryRow(ctx, query,
		n.RequestID, n.UserID, n.Type, n.Title, n.Message, n.SentAt, n.Metadata,
	))
	if err != nil {
		if xerrors.ParsePGErrorCode(err) == "23505" {
			return nil, fmt.Errorf("%w: duplicate request id %s", xerrors.ErrInvalidInput, n.RequestID)
		}
		return nil, err
	}

	p.announce(ctx, domain.RowChange{
		Table:  "notifications",
		Op:     domain.ChangeInsert,
		UserID: created.UserID,
		Row:    created,
		RowID:  created.ID,
	})
	return created, nil
}

func (p *pgRepo) GetNotificationByID(ctx context.Context, id int64) (*domain.Notification, error) {
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(p.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	return n, err
}

func (p *pgRepo) listNotifications(ctx context.Context, query string, args ...interface{}) ([]*domain.Notification, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *pgRepo) ListNotificationsByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + notificationCols + `
		FROM notifications
		WHERE user_id = $1 AND visible_in_app = true
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return p.listNotifications(ctx, query, userID, limit, offset)
}

func (p *pgRepo) ListUnreadNotifications(ctx context.Context, userID string, limit, offset int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT ` + notificationCols + `
		FROM notifications
		WHERE user_id = $1 AND visible_in_app = true AND read = false
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	return p.listNotifications(ctx, query, userID, limit, offset)
}

func (p *pgRepo) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1 AND visible_in_app = true AND read = false
	`

	var count int
	if err := p.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (p *pgRepo) MarkNotificationAsRead(ctx context.Context, id int64, userID string) error {
	query := `
		UPDATE notifications
		SET read = true
		WHERE id = $1 AND user_id = $2 AND read = false
	`

	ct, err := p.db.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	p.announce(ctx, domain.RowChange{
		Table:  "notifications",
		Op:     domain.ChangeUpdate,
		UserID: userID,
		RowID:  id,
	})
	return nil
}

func (p *pgRepo) MarkAllNotificationsAsRead(ctx context.Context, userID string) (int64, error) {
	query := `
		UPDATE notifications
		SET read = true
		WHERE user_id = $1 AND read = false
	`

	ct, err := p.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}

	if ct.RowsAffected() > 0 {
		p.announce(ctx, domain.RowChange{
			Table:  "notifications",
			Op:     domain.ChangeUpdate,
			UserID: userID,
		})
	}
	return ct.RowsAffected(), nil
}

func (p *pgRepo) HideNotification(ctx context.Context, id int64, userID string) error {
	query := `
		UPDATE notifications
		SET visible_in_app = false
		WHERE id = $1 AND user_id = $2 AND visible_in_app = true
	`

	ct, err := p.db.Exec(ctx, query, id, userID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}

	p.announce(ctx, domain.RowChange{
		Table:  "notifications",
		Op:     domain.ChangeDelete,
		UserID: userID,
		RowID:  id,
	})
	return nil
}

func (p *pgRepo) RecordDeliveryOutcome(ctx context.Context, id int64, delivered bool, at time.Time, errMsg string, results []domain.ChannelResult) error {
	var query string
	if delivered {
		query = `
			UPDATE notifications
			SET delivered_at = $2,
			    error_message = NULLIF($3, ''),
			    metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object('channel_results', $4::jsonb)
			WHERE id = $1 AND failed_at IS NULL
			RETURNING user_id
		`
	} else {
		query = `
			UPDATE notifications
			SET failed_at = $2,
			    error_message = NULLIF($3, ''),
			    metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object('channel_results', $4::jsonb)
			WHERE id = $1 AND delivered_at IS NULL
			RETURNING user_id
		`
	}

	var userID string
	err := p.db.QueryRow(ctx, query, id, at, errMsg, results).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}
	if err != nil {
		return err
	}

	p.announce(ctx, domain.RowChange{
		Table:  "notifications",
		Op:     domain.ChangeUpdate,
		UserID: userID,
		RowID:  id,
	})
	return nil
}

// -----------------------------
// Notification intents
// -----------------------------

const intentCols = `
	id, event_type, entity_type, entity_id, payload, status, last_error,
	created_at, processed_at
`

func scanIntent(row pgx.Row) (*domain.NotificationEvent, error) {
	var e domain.NotificationEvent
	err := row.Scan(
		&e.ID,
		&e.EventType,
		&e.EntityType,
		&e.EntityID,
		&e.Payload,
		&e.Status,
		&e.LastError,
		&e.CreatedAt,
		&e.ProcessedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (p *pgRepo) CreateIntent(ctx context.Context, e *domain.NotificationEvent) (*domain.NotificationEvent, error) {
	query := `
		INSERT INTO notification_events (event_type, entity_type, entity_id, payload, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + intentCols

	status := e.Status
	if status == "" {
		status = domain.IntentPending
	}
	return scanIntent(p.db.QueryRow(ctx, query,
		e.EventType, e.EntityType, e.EntityID, e.Payload, status,
	))
}

func (p *pgRepo) ListPendingIntents(ctx context.Context, limit int) ([]*domain.NotificationEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + intentCols + `
		FROM notification_events
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`

	rows, err := p.db.Query(ctx, query, domain.IntentPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.NotificationEvent
	for rows.Next() {
		e, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *pgRepo) TransitionIntent(ctx context.Context, id int64, from, to domain.IntentStatus, errMsg string) (bool, error) {
	// processed_at records the time of the latest transition; for a row in
	// processing that is its claim time, which the stale sweep keys off.
	query := `
		UPDATE notification_events
		SET status = $3,
		    last_error = NULLIF($4, ''),
		    processed_at = now()
		WHERE id = $1 AND status = $2
	`

	ct, err := p.db.Exec(ctx, query, id, from, to, errMsg)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// RequeueStaleIntents rescues intents claimed by a worker that died mid-tick.
func (p *pgRepo) RequeueStaleIntents(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE notification_events
		SET status = 'pending', last_error = NULL
		WHERE status = 'processing' AND processed_at < $1
	`

	cutoff := time.Now().UTC().Add(-olderThan)
	ct, err := p.db.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

// -----------------------------
// Preferences and contacts
// -----------------------------

func (p *pgRepo) GetPreferences(ctx context.Context, userID string) (*domain.NotificationPreferences, error) {
	query := `
		SELECT user_id, email_enabled, sms_enabled, push_enabled, whatsapp_enabled,
		       type_preferences, email, phone, whatsapp_number, name, updated_at
		FROM notification_preferences
		WHERE user_id = $1
	`

	var prefs domain.NotificationPreferences
	err := p.db.QueryRow(ctx, query, userID).Scan(
		&prefs.UserID,
		&prefs.EmailEnabled,
		&prefs.SMSEnabled,
		&prefs.PushEnabled,
		&prefs.WhatsAppEnabled,
		&prefs.TypePreferences,
		&prefs.Email,
		&prefs.Phone,
		&prefs.WhatsAppNumber,
		&prefs.Name,
		&prefs.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &prefs, nil
}

func (p *pgRepo) UpsertPreferences(ctx context.Context, prefs *domain.NotificationPreferences) (*domain.NotificationPreferences, error) {
	query := `
		INSERT INTO notification_preferences (
			user_id, email_enabled, sms_enabled, push_enabled, whatsapp_enabled,
			type_preferences, email, phone, whatsapp_number, name, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (user_id) DO UPDATE SET
			email_enabled = EXCLUDED.email_enabled,
			sms_enabled = EXCLUDED.sms_enabled,
			push_enabled = EXCLUDED.push_enabled,
			whatsapp_enabled = EXCLUDED.whatsapp_enabled,
			type_preferences = EXCLUDED.type_preferences,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			whatsapp_number = EXCLUDED.whatsapp_number,
			name = EXCLUDED.name,
			updated_at = now()
		RETURNING user_id, email_enabled, sms_enabled, push_enabled, whatsapp_enabled,
		          type_preferences, email, phone, whatsapp_number, name, updated_at
	`

	var out domain.NotificationPreferences
	err := p.db.QueryRow(ctx, query,
		prefs.UserID, prefs.EmailEnabled, prefs.SMSEnabled, prefs.PushEnabled,
		prefs.WhatsAppEnabled, prefs.TypePreferences, prefs.Email, prefs.Phone,
		prefs.WhatsAppNumber, prefs.Name,
	).Scan(
		&out.UserID,
		&out.EmailEnabled,
		&out.SMSEnabled,
		&out.PushEnabled,
		&out.WhatsAppEnabled,
		&out.TypePreferences,
		&out.Email,
		&out.Phone,
		&out.WhatsAppNumber,
		&out.Name,
		&out.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *pgRepo) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	query := `
		SELECT id, COALESCE(email, ''), COALESCE(phone, ''),
		       COALESCE(whatsapp_number, ''), COALESCE(push_token, ''), COALESCE(name, '')
		FROM user_profiles
		WHERE id = $1
	`

	var u domain.UserProfile
	err := p.db.QueryRow(ctx, query, userID).Scan(
		&u.ID, &u.Email, &u.Phone, &u.WhatsAppNumber, &u.PushToken, &u.Name,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// -----------------------------
// Email queue
// -----------------------------

const emailCols = `
	id, user_id, recipient, subject, body, status, attempts, last_error,
	created_at, sent_at
`

func scanEmail(row pgx.Row) (*domain.EmailQueueItem, error) {
	var e domain.EmailQueueItem
	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.Recipient,
		&e.Subject,
		&e.Body,
		&e.Status,
		&e.Attempts,
		&e.LastError,
		&e.CreatedAt,
		&e.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (p *pgRepo) EnqueueEmail(ctx context.Context, item *domain.EmailQueueItem) (*domain.EmailQueueItem, error) {
	query := `
		INSERT INTO email_queue (user_id, recipient, subject, body, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + emailCols

	status := item.Status
	if status == "" {
		status = domain.EmailPending
	}
	return scanEmail(p.db.QueryRow(ctx, query,
		item.UserID, item.Recipient, item.Subject, item.Body, status,
	))
}

func (p *pgRepo) listEmails(ctx context.Context, query string, args ...interface{}) ([]*domain.EmailQueueItem, error) {
	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.EmailQueueItem
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (p *pgRepo) ListPendingEmails(ctx context.Context, limit int) ([]*domain.EmailQueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + emailCols + `
		FROM email_queue
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	return p.listEmails(ctx, query, domain.EmailPending, limit)
}

func (p *pgRepo) ListRetryableEmails(ctx context.Context, maxAttempts, limit int) ([]*domain.EmailQueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + emailCols + `
		FROM email_queue
		WHERE status = $1 AND attempts < $2
		ORDER BY created_at ASC
		LIMIT $3
	`
	return p.listEmails(ctx, query, domain.EmailFailed, maxAttempts, limit)
}

func (p *pgRepo) MarkEmailSent(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE email_queue
		SET status = $2, sent_at = now()
		WHERE id = $1 AND status IN ($3, $4)
	`

	ct, err := p.db.Exec(ctx, query, id, domain.EmailSent, domain.EmailPending, domain.EmailFailed)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (p *pgRepo) MarkEmailFailed(ctx context.Context, id int64, errMsg string, terminal bool) (bool, error) {
	status := domain.EmailFailed
	if terminal {
		status = domain.EmailDead
	}
	query := `
		UPDATE email_queue
		SET status = $2, attempts = attempts + 1, last_error = $3
		WHERE id = $1 AND status IN ($4, $5)
	`

	ct, err := p.db.Exec(ctx, query, id, status, errMsg, domain.EmailPending, domain.EmailFailed)
	if err != nil {
		return false, err
	}
	if ct.RowsAffected() == 0 {
		log.Printf("⚠️ [EmailQueue] skipped failure update for terminal row id=%d", id)
		return false, nil
	}
	return true, nil
}
