package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"warehouse-notify/internal/domain"
	"warehouse-notify/internal/repository"
	"warehouse-notify/pkg/notifier"
)

// JobSummary reports one event-processor tick.
type JobSummary struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// EmailJobSummary reports one email-queue tick.
type EmailJobSummary struct {
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
}

// QueueUsecase holds the two externally scheduled batch jobs. Both are
// idempotent per row and safe under overlapping ticks: every row transition
// is a single conditional update keyed by id and current status.
type QueueUsecase struct {
	repo          repository.Repository
	dispatch      *DispatchUsecase
	emailProvider notifier.Provider // nil when email credentials are absent
	batchSize     int
	emailBatch    int
	maxRetries    int
	logger        *zap.Logger
}

func NewQueueUsecase(
	repo repository.Repository,
	dispatch *DispatchUsecase,
	emailProvider notifier.Provider,
	batchSize, emailBatch, maxRetries int,
	logger *zap.Logger,
) *QueueUsecase {
	if batchSize <= 0 {
		batchSize = 50
	}
	if emailBatch <= 0 {
		emailBatch = 50
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &QueueUsecase{
		repo:          repo,
		dispatch:      dispatch,
		emailProvider: emailProvider,
		batchSize:     batchSize,
		emailBatch:    emailBatch,
		maxRetries:    maxRetries,
		logger:        logger,
	}
}

// staleIntentAge bounds how long an intent may sit in processing. A claim
// older than this belongs to a worker that died mid-tick and is requeued.
const staleIntentAge = 10 * time.Minute

// ProcessEvents drains up to one batch of pending notification intents,
// realizing each into per-channel deliveries through the dispatcher.
func (uc *QueueUsecase) ProcessEvents(ctx context.Context) (JobSummary, error) {
	requeued, err := uc.repo.RequeueStaleIntents(ctx, staleIntentAge)
	if err != nil {
		return JobSummary{}, fmt.Errorf("requeue stale intents: %w", err)
	}
	if requeued > 0 {
		uc.logger.Warn("requeued intents abandoned in processing", zap.Int64("count", requeued))
	}

	rows, err := uc.repo.ListPendingIntents(ctx, uc.batchSize)
	if err != nil {
		return JobSummary{}, fmt.Errorf("list pending intents: %w", err)
	}

	var summary JobSummary
	for _, row := range rows {
		claimed, err := uc.repo.TransitionIntent(ctx, row.ID, domain.IntentPending, domain.IntentProcessing, "")
		if err != nil {
			return summary, fmt.Errorf("claim intent %d: %w", row.ID, err)
		}
		if !claimed {
			// Another tick got here first.
			continue
		}
		summary.Processed++

		if uc.realizeIntent(ctx, row) {
			summary.Completed++
			if _, err := uc.repo.TransitionIntent(ctx, row.ID, domain.IntentProcessing, domain.IntentCompleted, ""); err != nil {
				uc.logger.Error("intent completion update failed", zap.Int64("intent_id", row.ID), zap.Error(err))
			}
		} else {
			summary.Failed++
			if _, err := uc.repo.TransitionIntent(ctx, row.ID, domain.IntentProcessing, domain.IntentFailed, "delivery failed on all channels"); err != nil {
				uc.logger.Error("intent failure update failed", zap.Int64("intent_id", row.ID), zap.Error(err))
			}
		}
	}

	uc.logger.Info("event batch processed",
		zap.Int("processed", summary.Processed),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (uc *QueueUsecase) realizeIntent(ctx context.Context, row *domain.NotificationEvent) bool {
	r, ok := routes[row.EventType]
	if !ok {
		uc.logger.Warn("intent with unrouted event type", zap.Int64("intent_id", row.ID), zap.String("event_type", string(row.EventType)))
		return false
	}

	evt := domain.DomainEvent{Type: row.EventType, Payload: row.Payload}
	recipient := evt.PayloadString(r.recipientKey)
	if recipient == "" {
		uc.logger.Warn("intent carries no recipient", zap.Int64("intent_id", row.ID), zap.String("event_type", string(row.EventType)))
		return false
	}

	result, err := uc.dispatch.Send(ctx, domain.SendRequest{
		UserID:   recipient,
		Type:     r.notifType,
		Channels: domain.AllChannels,
		Title:    r.title,
		Message:  r.message(evt),
		Metadata: map[string]interface{}{
			"intent_id":  row.ID,
			"event_type": string(row.EventType),
			"entity_id":  row.EntityID,
		},
	})
	if err != nil {
		uc.logger.Error("intent dispatch failed", zap.Int64("intent_id", row.ID), zap.Error(err))
		return false
	}
	return result.Success
}

// ProcessEmailQueue drains one batch of pending email rows plus one batch of
// previously failed rows still under the retry ceiling. A row that fails at
// the ceiling goes dead and is never picked up again.
func (uc *QueueUsecase) ProcessEmailQueue(ctx context.Context) (EmailJobSummary, error) {
	pending, err := uc.repo.ListPendingEmails(ctx, uc.emailBatch)
	if err != nil {
		return EmailJobSummary{}, fmt.Errorf("list pending emails: %w", err)
	}
	retryable, err := uc.repo.ListRetryableEmails(ctx, uc.maxRetries, uc.emailBatch)
	if err != nil {
		return EmailJobSummary{}, fmt.Errorf("list retryable emails: %w", err)
	}

	var summary EmailJobSummary
	for _, row := range append(pending, retryable...) {
		summary.Processed++
		if uc.attemptEmail(ctx, row) {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}

	uc.logger.Info("email queue processed",
		zap.Int("processed", summary.Processed),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

func (uc *QueueUsecase) attemptEmail(ctx context.Context, row *domain.EmailQueueItem) bool {
	if uc.emailProvider == nil {
		uc.failEmail(ctx, row, "email provider not configured")
		return false
	}

	res := uc.emailProvider.Send(ctx, notifier.SendOptions{
		UserID:    row.UserID,
		Recipient: row.Recipient,
		Subject:   row.Subject,
		Body:      row.Body,
		Type:      "queued",
	})
	if !res.Success {
		uc.failEmail(ctx, row, res.Error)
		return false
	}

	updated, err := uc.repo.MarkEmailSent(ctx, row.ID)
	if err != nil {
		uc.logger.Error("email sent-update failed", zap.Int64("email_id", row.ID), zap.Error(err))
		return false
	}
	return updated
}

func (uc *QueueUsecase) failEmail(ctx context.Context, row *domain.EmailQueueItem, errMsg string) {
	terminal := row.Attempts+1 >= uc.maxRetries
	if _, err := uc.repo.MarkEmailFailed(ctx, row.ID, errMsg, terminal); err != nil {
		uc.logger.Error("email failure-update failed", zap.Int64("email_id", row.ID), zap.Error(err))
		return
	}
	if terminal {
		uc.logger.Warn("email retries exhausted",
			zap.Int64("email_id", row.ID),
			zap.String("recipient", row.Recipient),
			zap.Int("attempts", row.Attempts+1))
	}
}
