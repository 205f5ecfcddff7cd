package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"warehouse-notify/internal/domain"
)

// RelaySource hands out stored events that still await stream publication.
// Implemented by repository.EventRecorder.
type RelaySource interface {
	ClaimUnrelayed(ctx context.Context, limit int) ([]domain.DomainEvent, error)
	MarkRelayed(ctx context.Context, eventID string) error
}

// EventPublisher pushes one event envelope to the stream.
// Implemented by stream.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt domain.DomainEvent) error
}

// RelaySummary reports one relay tick.
type RelaySummary struct {
	Processed int `json:"processed"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
}

// RelayUsecase is the outbox leg of the append/publish split: appended events
// are durably stored first, and this externally scheduled job pushes them to
// the event stream with at-least-once semantics. A crash between publish and
// the relayed-mark re-publishes the event on the next tick; consumers must
// dedupe on event id.
type RelayUsecase struct {
	source    RelaySource
	publisher EventPublisher
	batchSize int
	logger    *zap.Logger
}

func NewRelayUsecase(source RelaySource, publisher EventPublisher, batchSize int, logger *zap.Logger) *RelayUsecase {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &RelayUsecase{
		source:    source,
		publisher: publisher,
		batchSize: batchSize,
		logger:    logger,
	}
}

func (uc *RelayUsecase) RelayEvents(ctx context.Context) (RelaySummary, error) {
	events, err := uc.source.ClaimUnrelayed(ctx, uc.batchSize)
	if err != nil {
		return RelaySummary{}, fmt.Errorf("claim unrelayed events: %w", err)
	}

	var summary RelaySummary
	for _, evt := range events {
		summary.Processed++
		if err := uc.publisher.PublishEvent(ctx, evt); err != nil {
			summary.Failed++
			uc.logger.Error("event relay failed",
				zap.String("event_id", evt.ID),
				zap.String("event_type", string(evt.Type)),
				zap.Error(err))
			continue
		}
		summary.Published++
		if err := uc.source.MarkRelayed(ctx, evt.ID); err != nil {
			uc.logger.Error("relay bookkeeping failed", zap.String("event_id", evt.ID), zap.Error(err))
		}
	}

	uc.logger.Info("event relay tick",
		zap.Int("processed", summary.Processed),
		zap.Int("published", summary.Published),
		zap.Int("failed", summary.Failed))
	return summary, nil
}
