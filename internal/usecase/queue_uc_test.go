package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"warehouse-notify/internal/domain"
	"warehouse-notify/pkg/id"
	"warehouse-notify/pkg/notifier"
)

type queueFixture struct {
	repo  *fakeRepo
	email *fakeProvider
	queue *QueueUsecase
}

func newQueueFixture(t *testing.T) *queueFixture {
	t.Helper()

	repo := newFakeRepo()
	email := newFakeProvider(domain.ChannelEmail)
	sf, err := id.NewSnowflake(1)
	require.NoError(t, err)

	dispatch := NewDispatchUsecase(repo, map[domain.Channel]notifier.Provider{
		domain.ChannelEmail: email,
	}, nil, sf)

	return &queueFixture{
		repo:  repo,
		email: email,
		queue: NewQueueUsecase(repo, dispatch, email, 10, 10, 3, zap.NewNop()),
	}
}

func (f *queueFixture) seedIntent(t *testing.T, payload map[string]interface{}) *domain.NotificationEvent {
	t.Helper()
	intent, err := f.repo.CreateIntent(context.Background(), &domain.NotificationEvent{
		EventType:  domain.EventBookingRequested,
		EntityType: "booking",
		EntityID:   "B1",
		Payload:    payload,
		Status:     domain.IntentPending,
	})
	require.NoError(t, err)
	return intent
}

func TestProcessEventsCompletesDeliverableIntent(t *testing.T) {
	f := newQueueFixture(t)
	f.repo.profiles["U1"] = &domain.UserProfile{ID: "U1", Email: "u1@example.com"}
	intent := f.seedIntent(t, map[string]interface{}{
		"bookingId":        "B1",
		"warehouseOwnerId": "U1",
	})

	summary, err := f.queue.ProcessEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, JobSummary{Processed: 1, Completed: 1}, summary)
	assert.Equal(t, domain.IntentCompleted, f.repo.intentByID(intent.ID).Status)
	assert.Equal(t, 1, f.email.callCount())

	// The realized dispatch produced a notification for the recipient.
	require.NotEmpty(t, f.repo.notifications)
	assert.Equal(t, "U1", f.repo.notifications[0].UserID)
}

func TestProcessEventsRequeuesIntentsAbandonedInProcessing(t *testing.T) {
	f := newQueueFixture(t)
	f.repo.profiles["U1"] = &domain.UserProfile{ID: "U1", Email: "u1@example.com"}
	stale := f.seedIntent(t, map[string]interface{}{
		"bookingId":        "B1",
		"warehouseOwnerId": "U1",
	})

	// Simulate a worker that claimed the intent and died: the row sits in
	// processing with a claim time well past the stale cutoff.
	claimed, err := f.repo.TransitionIntent(context.Background(), stale.ID, domain.IntentPending, domain.IntentProcessing, "")
	require.NoError(t, err)
	require.True(t, claimed)
	old := time.Now().UTC().Add(-staleIntentAge - time.Minute)
	f.repo.intents[0].ProcessedAt = &old

	summary, err := f.queue.ProcessEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, JobSummary{Processed: 1, Completed: 1}, summary)
	assert.Equal(t, domain.IntentCompleted, f.repo.intentByID(stale.ID).Status)
	assert.Equal(t, 1, f.email.callCount())
}

func TestProcessEventsLeavesFreshClaimsAlone(t *testing.T) {
	f := newQueueFixture(t)
	f.repo.profiles["U1"] = &domain.UserProfile{ID: "U1", Email: "u1@example.com"}
	fresh := f.seedIntent(t, map[string]interface{}{
		"bookingId":        "B1",
		"warehouseOwnerId": "U1",
	})

	claimed, err := f.repo.TransitionIntent(context.Background(), fresh.ID, domain.IntentPending, domain.IntentProcessing, "")
	require.NoError(t, err)
	require.True(t, claimed)

	// A recently claimed intent belongs to a live tick and must not be stolen.
	summary, err := f.queue.ProcessEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, JobSummary{}, summary)
	assert.Equal(t, domain.IntentProcessing, f.repo.intentByID(fresh.ID).Status)
	assert.Equal(t, 0, f.email.callCount())
}

func TestProcessEventsIsIdempotentAcrossTicks(t *testing.T) {
	f := newQueueFixture(t)
	f.repo.profiles["U1"] = &domain.UserProfile{ID: "U1", Email: "u1@example.com"}
	f.seedIntent(t, map[string]interface{}{
		"bookingId":        "B1",
		"warehouseOwnerId": "U1",
	})

	first, err := f.queue.ProcessEvents(context.Background())
	require.NoError(t, err)
	second, err := f.queue.ProcessEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, JobSummary{Processed: 1, Completed: 1}, first)
	assert.Equal(t, JobSummary{}, second)
	assert.Equal(t, 1, f.email.callCount())
}

func TestProcessEventsFailsIntentWhenNoChannelDelivers(t *testing.T) {
	f := newQueueFixture(t)
	f.repo.profiles["U1"] = &domain.UserProfile{ID: "U1", Email: "u1@example.com"}
	f.email.fail = true
	intent := f.seedIntent(t, map[string]interface{}{
		"bookingId":        "B1",
		"warehouseOwnerId": "U1",
	})

	summary, err := f.queue.ProcessEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, JobSummary{Processed: 1, Failed: 1}, summary)
	row := f.repo.intentByID(intent.ID)
	assert.Equal(t, domain.IntentFailed, row.Status)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "delivery failed on all channels", *row.LastError)
}

func TestProcessEventsFailsIntentWithoutRecipient(t *testing.T) {
	f := newQueueFixture(t)
	intent := f.seedIntent(t, map[string]interface{}{"bookingId": "B1"})

	summary, err := f.queue.ProcessEvents(context.Background())
	require.NoError(t, err)

	assert.Equal(t, JobSummary{Processed: 1, Failed: 1}, summary)
	assert.Equal(t, domain.IntentFailed, f.repo.intentByID(intent.ID).Status)
	assert.Equal(t, 0, f.email.callCount())
}

func TestProcessEmailQueueSendsPending(t *testing.T) {
	f := newQueueFixture(t)
	item, err := f.repo.EnqueueEmail(context.Background(), &domain.EmailQueueItem{
		UserID:    "U1",
		Recipient: "u1@example.com",
		Subject:   "Invoice Overdue",
		Body:      "Invoice INV-1 is overdue.",
	})
	require.NoError(t, err)

	summary, err := f.queue.ProcessEmailQueue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, EmailJobSummary{Processed: 1, Sent: 1}, summary)
	row := f.repo.emailByID(item.ID)
	assert.Equal(t, domain.EmailSent, row.Status)
	require.NotNil(t, row.SentAt)
	assert.Equal(t, 1, f.email.callCount())

	// A sent row never comes back.
	again, err := f.queue.ProcessEmailQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EmailJobSummary{}, again)
}

func TestProcessEmailQueueRetriesUntilDead(t *testing.T) {
	f := newQueueFixture(t)
	f.email.fail = true
	f.email.failMsg = "smtp handshake failed"
	item, err := f.repo.EnqueueEmail(context.Background(), &domain.EmailQueueItem{
		Recipient: "u1@example.com",
		Subject:   "hello",
		Body:      "hello",
	})
	require.NoError(t, err)

	// maxRetries is 3: attempts 1 and 2 leave the row retryable, attempt 3
	// moves it to dead.
	for i := 1; i <= 3; i++ {
		summary, err := f.queue.ProcessEmailQueue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, EmailJobSummary{Processed: 1, Failed: 1}, summary, "tick %d", i)
	}

	row := f.repo.emailByID(item.ID)
	assert.Equal(t, domain.EmailDead, row.Status)
	assert.Equal(t, 3, row.Attempts)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "smtp handshake failed", *row.LastError)

	// Dead rows are never listed again.
	summary, err := f.queue.ProcessEmailQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EmailJobSummary{}, summary)
	assert.Equal(t, 3, f.email.callCount())
}

func TestProcessEmailQueueWithoutProvider(t *testing.T) {
	repo := newFakeRepo()
	sf, err := id.NewSnowflake(1)
	require.NoError(t, err)
	dispatch := NewDispatchUsecase(repo, nil, nil, sf)
	queue := NewQueueUsecase(repo, dispatch, nil, 10, 10, 3, zap.NewNop())

	item, err := repo.EnqueueEmail(context.Background(), &domain.EmailQueueItem{
		Recipient: "u1@example.com",
	})
	require.NoError(t, err)

	summary, err := queue.ProcessEmailQueue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, EmailJobSummary{Processed: 1, Failed: 1}, summary)
	row := repo.emailByID(item.ID)
	require.NotNil(t, row.LastError)
	assert.Equal(t, "email provider not configured", *row.LastError)
}

func TestProcessEventsHonorsBatchSize(t *testing.T) {
	f := newQueueFixture(t)
	f.repo.profiles["U1"] = &domain.UserProfile{ID: "U1", Email: "u1@example.com"}
	small := NewQueueUsecase(f.repo, f.queue.dispatch, f.email, 2, 10, 3, zap.NewNop())

	for i := 0; i < 5; i++ {
		f.seedIntent(t, map[string]interface{}{
			"bookingId":        "B1",
			"warehouseOwnerId": "U1",
		})
	}

	summary, err := small.ProcessEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
}
