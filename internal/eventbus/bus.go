package eventbus

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"

	"warehouse-notify/internal/domain"
	"warehouse-notify/pkg/xerrors"
)

// DefaultMaxListeners bounds subscriptions per event type.
const DefaultMaxListeners = 50

// Handler reacts to one published domain event. A handler error or panic is
// isolated: it is logged by Emit and never reaches sibling handlers or the
// emitting code path.
type Handler func(ctx context.Context, evt domain.DomainEvent) error

type subscription struct {
	id       string
	priority int
	seq      uint64
	once     bool
	handler  Handler
}

// Bus is an in-process typed publish/subscribe register. Construct one per
// process (or per test) and pass it explicitly; there is no package-level
// instance.
type Bus struct {
	mu           sync.RWMutex
	maxListeners int
	seq          uint64
	subs         map[domain.EventType][]*subscription
}

func New() *Bus {
	return NewWithMaxListeners(DefaultMaxListeners)
}

func NewWithMaxListeners(max int) *Bus {
	if max <= 0 {
		max = DefaultMaxListeners
	}
	return &Bus{
		maxListeners: max,
		subs:         make(map[domain.EventType][]*subscription),
	}
}

// On registers a handler for one event type. Handlers for the same type are
// invoked in descending priority order; ties preserve registration order.
func (b *Bus) On(eventType domain.EventType, handler Handler, priority int) (string, error) {
	return b.register(eventType, handler, priority, false)
}

// Once registers a handler that removes itself after its first invocation,
// whether that invocation succeeds or fails.
func (b *Bus) Once(eventType domain.EventType, handler Handler, priority int) (string, error) {
	return b.register(eventType, handler, priority, true)
}

func (b *Bus) register(eventType domain.EventType, handler Handler, priority int, once bool) (string, error) {
	if handler == nil {
		return "", xerrors.ErrInvalidInput
	}
	if !eventType.Valid() {
		return "", fmt.Errorf("%w: %q", xerrors.ErrUnknownEventType, eventType)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs[eventType]) >= b.maxListeners {
		return "", fmt.Errorf("%w: %q has %d listeners", xerrors.ErrTooManyListeners, eventType, b.maxListeners)
	}

	b.seq++
	sub := &subscription{
		id:       uuid.NewString(),
		priority: priority,
		seq:      b.seq,
		once:     once,
		handler:  handler,
	}
	b.subs[eventType] = append(b.subs[eventType], sub)
	sort.SliceStable(b.subs[eventType], func(i, j int) bool {
		a, c := b.subs[eventType][i], b.subs[eventType][j]
		if a.priority != c.priority {
			return a.priority > c.priority
		}
		return a.seq < c.seq
	})
	return sub.id, nil
}

// Off removes a subscription. Idempotent; reports whether one was found.
func (b *Bus) Off(eventType domain.EventType, subscriptionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[eventType]
	for i, s := range subs {
		if s.id == subscriptionID {
			b.subs[eventType] = append(subs[:i], subs[i+1:]...)
			if len(b.subs[eventType]) == 0 {
				delete(b.subs, eventType)
			}
			return true
		}
	}
	return false
}

// Emit dispatches evt to every subscriber of exactly evt.Type, in priority
// order. Each handler's failure (error or panic) is caught and logged so one
// broken integration cannot block unrelated notification paths; Emit itself
// never fails because of a handler.
func (b *Bus) Emit(ctx context.Context, evt domain.DomainEvent) {
	b.mu.RLock()
	ordered := make([]*subscription, len(b.subs[evt.Type]))
	copy(ordered, b.subs[evt.Type])
	b.mu.RUnlock()

	var failed int
	for _, s := range ordered {
		if s.once {
			// Removal happens before invocation so a re-emit during the
			// handler cannot fire it twice.
			b.Off(evt.Type, s.id)
		}
		if err := b.invoke(ctx, s, evt); err != nil {
			failed++
			log.Printf("⚠️ [EventBus] handler failed for %s (sub=%s): %v", evt.Type, s.id, err)
		}
	}
	if failed > 0 {
		log.Printf("⚠️ [EventBus] %s: %d/%d handlers failed", evt.Type, failed, len(ordered))
	}
}

func (b *Bus) invoke(ctx context.Context, s *subscription, evt domain.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return s.handler(ctx, evt)
}

func (b *Bus) ListenerCount(eventType domain.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}

func (b *Bus) EventNames() []domain.EventType {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]domain.EventType, 0, len(b.subs))
	for t := range b.subs {
		names = append(names, t)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
