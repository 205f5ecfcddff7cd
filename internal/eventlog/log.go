package eventlog

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"warehouse-notify/internal/domain"
	"warehouse-notify/pkg/id"
	"warehouse-notify/pkg/xerrors"
)

const (
	defaultTypeLimit = 100
	defaultAllLimit  = 1000
)

// Recorder writes appended events through to durable storage. A nil Recorder
// keeps the log memory-only (tests, demos).
type Recorder interface {
	RecordEvent(ctx context.Context, evt domain.DomainEvent) error
}

// Subscriber observes published events on the log's internal channel. Unlike
// bus handlers, subscribers may register on domain.EventWildcard.
type Subscriber func(ctx context.Context, evt domain.DomainEvent)

// Log is the append-only domain event log. Append is durable-only; Publish is
// the separate fan-out step, so a caller (or an outbox relay) controls when
// subscribers observe a stored event.
type Log struct {
	mu       sync.RWMutex
	events   []domain.DomainEvent
	versions map[string]int
	subs     map[domain.EventType][]Subscriber
	recorder Recorder
}

func New(recorder Recorder) *Log {
	return &Log{
		versions: make(map[string]int),
		subs:     make(map[domain.EventType][]Subscriber),
		recorder: recorder,
	}
}

func aggregateKey(t domain.AggregateType, id string) string {
	return string(t) + ":" + id
}

// Append validates, assigns ID / Version / OccurredAt and stores the event.
// The stored copy is returned; the input is never mutated. Append does not
// notify subscribers. The durable write happens before the in-memory commit,
// so a failed append leaves no readable event and no version advance.
func (l *Log) Append(ctx context.Context, evt domain.DomainEvent) (domain.DomainEvent, error) {
	if !evt.Type.Valid() {
		return domain.DomainEvent{}, fmt.Errorf("%w: %q", xerrors.ErrUnknownEventType, evt.Type)
	}
	if !evt.AggregateType.Valid() {
		return domain.DomainEvent{}, fmt.Errorf("%w: %q", xerrors.ErrUnknownAggregateType, evt.AggregateType)
	}
	if evt.AggregateID == "" {
		return domain.DomainEvent{}, fmt.Errorf("%w: aggregate id required", xerrors.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := aggregateKey(evt.AggregateType, evt.AggregateID)
	evt.ID = id.NewULID()
	evt.Version = l.versions[key] + 1
	evt.OccurredAt = time.Now().UTC()

	if l.recorder != nil {
		if err := l.recorder.RecordEvent(ctx, evt); err != nil {
			return domain.DomainEvent{}, fmt.Errorf("record event: %w", err)
		}
	}

	l.versions[key] = evt.Version
	l.events = append(l.events, evt)
	return evt, nil
}

// Publish fans evt out to subscribers of its exact type and of the wildcard
// channel. Subscriber panics are caught and logged; Publish never fails and a
// broken subscriber never hides the event from its siblings.
func (l *Log) Publish(ctx context.Context, evt domain.DomainEvent) {
	l.mu.RLock()
	targets := make([]Subscriber, 0, len(l.subs[evt.Type])+len(l.subs[domain.EventWildcard]))
	targets = append(targets, l.subs[evt.Type]...)
	targets = append(targets, l.subs[domain.EventWildcard]...)
	l.mu.RUnlock()

	for _, fn := range targets {
		l.safeNotify(ctx, fn, evt)
	}
}

func (l *Log) safeNotify(ctx context.Context, fn Subscriber, evt domain.DomainEvent) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ [EventLog] subscriber panic on %s: %v", evt.Type, r)
		}
	}()
	fn(ctx, evt)
}

// AppendAndPublish stores the event and immediately notifies subscribers,
// matching callers that want the one-call behavior. Subscriber invocation is
// part of this call's completion.
func (l *Log) AppendAndPublish(ctx context.Context, evt domain.DomainEvent) (domain.DomainEvent, error) {
	stored, err := l.Append(ctx, evt)
	if err != nil {
		return domain.DomainEvent{}, err
	}
	l.Publish(ctx, stored)
	return stored, nil
}

// Subscribe registers a log subscriber; domain.EventWildcard receives every
// published event. Subscriptions live for the life of the log.
func (l *Log) Subscribe(eventType domain.EventType, fn Subscriber) error {
	if fn == nil {
		return xerrors.ErrInvalidInput
	}
	if eventType != domain.EventWildcard && !eventType.Valid() {
		return fmt.Errorf("%w: %q", xerrors.ErrUnknownEventType, eventType)
	}
	l.mu.Lock()
	l.subs[eventType] = append(l.subs[eventType], fn)
	l.mu.Unlock()
	return nil
}

// GetEvents returns the aggregate's events in insertion order, oldest first.
// An empty aggregateType matches any type.
func (l *Log) GetEvents(aggregateID string, aggregateType domain.AggregateType) []domain.DomainEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.DomainEvent
	for _, e := range l.events {
		if e.AggregateID != aggregateID {
			continue
		}
		if aggregateType != "" && e.AggregateType != aggregateType {
			continue
		}
		out = append(out, e)
	}
	return out
}

// GetEventsByType returns the last limit events of that type, oldest to
// newest within the window. limit <= 0 means the default of 100.
func (l *Log) GetEventsByType(eventType domain.EventType, limit int) []domain.DomainEvent {
	if limit <= 0 {
		limit = defaultTypeLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.DomainEvent
	for _, e := range l.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// GetAllEvents returns events with OccurredAt strictly after since (zero time
// means all), bounded to the most recent limit. limit <= 0 means 1000.
func (l *Log) GetAllEvents(since time.Time, limit int) []domain.DomainEvent {
	if limit <= 0 {
		limit = defaultAllLimit
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.DomainEvent
	for _, e := range l.events {
		if !since.IsZero() && !e.OccurredAt.After(since) {
			continue
		}
		out = append(out, e)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// Replay invokes fn once per matching event in stored order. Replay never
// re-publishes; its only side effects are fn's own. A non-nil fn error stops
// the replay and is returned.
func (l *Log) Replay(aggregateID string, aggregateType domain.AggregateType, fn func(evt domain.DomainEvent) error) error {
	for _, e := range l.GetEvents(aggregateID, aggregateType) {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}
