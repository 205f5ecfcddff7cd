package usecase

import (
	"context"
	"sync"
	"time"

	"warehouse-notify/internal/domain"
	"warehouse-notify/pkg/notifier"
	"warehouse-notify/pkg/xerrors"
)

// fakeRepo is an in-memory Repository with the same conditional-update
// semantics as the Postgres implementation.
type fakeRepo struct {
	mu sync.Mutex

	notifications []*domain.Notification
	intents       []*domain.NotificationEvent
	prefs         map[string]*domain.NotificationPreferences
	profiles      map[string]*domain.UserProfile
	emails        []*domain.EmailQueueItem

	nextNotificationID int64
	nextIntentID       int64
	nextEmailID        int64

	prefsErr        error
	createNotifErr  error
	createIntentErr error

	outcomes []recordedOutcome
}

type recordedOutcome struct {
	id        int64
	delivered bool
	errMsg    string
	results   []domain.ChannelResult
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		prefs:    make(map[string]*domain.NotificationPreferences),
		profiles: make(map[string]*domain.UserProfile),
	}
}

func (f *fakeRepo) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createNotifErr != nil {
		return nil, f.createNotifErr
	}
	f.nextNotificationID++
	cp := *n
	cp.ID = f.nextNotificationID
	cp.VisibleInApp = true
	cp.CreatedAt = time.Now().UTC()
	f.notifications = append(f.notifications, &cp)
	return &cp, nil
}

func (f *fakeRepo) GetNotificationByID(ctx context.Context, id int64) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, xerrors.ErrNotFound
}

func (f *fakeRepo) ListNotificationsByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Notification
	for _, n := range f.notifications {
		if n.UserID == userID && n.VisibleInApp {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRepo) ListUnreadNotifications(ctx context.Context, userID string, limit, offset int) ([]*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Notification
	for _, n := range f.notifications {
		if n.UserID == userID && n.VisibleInApp && !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRepo) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	rows, _ := f.ListUnreadNotifications(ctx, userID, 0, 0)
	return len(rows), nil
}

func (f *fakeRepo) MarkNotificationAsRead(ctx context.Context, id int64, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return nil
		}
	}
	return xerrors.ErrNotFound
}

func (f *fakeRepo) MarkAllNotificationsAsRead(ctx context.Context, userID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.notifications {
		if n.UserID == userID && !n.Read {
			n.Read = true
			count++
		}
	}
	return count, nil
}

func (f *fakeRepo) HideNotification(ctx context.Context, id int64, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notifications {
		if n.ID == id && n.UserID == userID {
			n.VisibleInApp = false
			return nil
		}
	}
	return xerrors.ErrNotFound
}

func (f *fakeRepo) RecordDeliveryOutcome(ctx context.Context, id int64, delivered bool, at time.Time, errMsg string, results []domain.ChannelResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, recordedOutcome{id: id, delivered: delivered, errMsg: errMsg, results: results})
	for _, n := range f.notifications {
		if n.ID == id {
			if delivered {
				n.DeliveredAt = &at
				n.FailedAt = nil
			} else {
				n.FailedAt = &at
				n.DeliveredAt = nil
			}
			if errMsg != "" {
				n.ErrorMessage = &errMsg
			}
			return nil
		}
	}
	return xerrors.ErrNotFound
}

func (f *fakeRepo) CreateIntent(ctx context.Context, e *domain.NotificationEvent) (*domain.NotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createIntentErr != nil {
		return nil, f.createIntentErr
	}
	f.nextIntentID++
	cp := *e
	cp.ID = f.nextIntentID
	cp.CreatedAt = time.Now().UTC()
	if cp.Status == "" {
		cp.Status = domain.IntentPending
	}
	f.intents = append(f.intents, &cp)
	return &cp, nil
}

func (f *fakeRepo) ListPendingIntents(ctx context.Context, limit int) ([]*domain.NotificationEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.NotificationEvent
	for _, e := range f.intents {
		if e.Status == domain.IntentPending {
			cp := *e
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) TransitionIntent(ctx context.Context, id int64, from, to domain.IntentStatus, errMsg string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.intents {
		if e.ID == id && e.Status == from {
			e.Status = to
			if errMsg != "" {
				msg := errMsg
				e.LastError = &msg
			}
			now := time.Now().UTC()
			e.ProcessedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) RequeueStaleIntents(ctx context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cutoff := time.Now().UTC().Add(-olderThan)
	var n int64
	for _, e := range f.intents {
		if e.Status == domain.IntentProcessing && e.ProcessedAt != nil && e.ProcessedAt.Before(cutoff) {
			e.Status = domain.IntentPending
			e.LastError = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) GetPreferences(ctx context.Context, userID string) (*domain.NotificationPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prefsErr != nil {
		return nil, f.prefsErr
	}
	p, ok := f.prefs[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) UpsertPreferences(ctx context.Context, p *domain.NotificationPreferences) (*domain.NotificationPreferences, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	cp.UpdatedAt = time.Now().UTC()
	f.prefs[p.UserID] = &cp
	return &cp, nil
}

func (f *fakeRepo) GetProfile(ctx context.Context, userID string) (*domain.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRepo) EnqueueEmail(ctx context.Context, item *domain.EmailQueueItem) (*domain.EmailQueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextEmailID++
	cp := *item
	cp.ID = f.nextEmailID
	cp.Status = domain.EmailPending
	cp.CreatedAt = time.Now().UTC()
	f.emails = append(f.emails, &cp)
	return &cp, nil
}

func (f *fakeRepo) ListPendingEmails(ctx context.Context, limit int) ([]*domain.EmailQueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.EmailQueueItem
	for _, e := range f.emails {
		if e.Status == domain.EmailPending {
			cp := *e
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) ListRetryableEmails(ctx context.Context, maxAttempts, limit int) ([]*domain.EmailQueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.EmailQueueItem
	for _, e := range f.emails {
		if e.Status == domain.EmailFailed && e.Attempts < maxAttempts {
			cp := *e
			out = append(out, &cp)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeRepo) MarkEmailSent(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.emails {
		if e.ID == id && (e.Status == domain.EmailPending || e.Status == domain.EmailFailed) {
			e.Status = domain.EmailSent
			now := time.Now().UTC()
			e.SentAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) MarkEmailFailed(ctx context.Context, id int64, errMsg string, terminal bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.emails {
		if e.ID == id && (e.Status == domain.EmailPending || e.Status == domain.EmailFailed) {
			e.Attempts++
			msg := errMsg
			e.LastError = &msg
			if terminal {
				e.Status = domain.EmailDead
			} else {
				e.Status = domain.EmailFailed
			}
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) intentByID(id int64) *domain.NotificationEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.intents {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (f *fakeRepo) emailByID(id int64) *domain.EmailQueueItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.emails {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// fakeProvider records every Send and answers with a scripted result.
type fakeProvider struct {
	mu      sync.Mutex
	channel domain.Channel
	fail    bool
	failMsg string
	calls   []notifier.SendOptions
}

func newFakeProvider(ch domain.Channel) *fakeProvider {
	return &fakeProvider{channel: ch}
}

func (p *fakeProvider) Channel() domain.Channel { return p.channel }

func (p *fakeProvider) Send(ctx context.Context, opts notifier.SendOptions) notifier.Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, opts)
	if p.fail {
		msg := p.failMsg
		if msg == "" {
			msg = "provider unavailable"
		}
		return notifier.Result{Success: false, Error: msg}
	}
	return notifier.Result{Success: true, MessageID: "msg-1"}
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
