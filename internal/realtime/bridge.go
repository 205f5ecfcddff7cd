package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"warehouse-notify/internal/domain"
	"warehouse-notify/pkg/notifier/ws"
)

// NotificationLister is the one read capability the bridge needs from the
// data layer: an initial bulk fetch, newest first.
type NotificationLister interface {
	ListNotificationsByUser(ctx context.Context, userID string, limit, offset int) ([]*domain.Notification, error)
}

const snapshotLimit = 50

// Bridge is the read-side subscription layer: one snapshot on mount, then a
// change feed the client applies row by row (INSERT prepends, UPDATE replaces
// by id, DELETE removes by id).
type Bridge struct {
	feed    *Feed
	lister  NotificationLister
	manager *ws.Manager
}

func NewBridge(feed *Feed, lister NotificationLister, manager *ws.Manager) *Bridge {
	return &Bridge{feed: feed, lister: lister, manager: manager}
}

type bridgeMessage struct {
	Type   string                 `json:"type"` // snapshot, subscribed, change
	Rows   []*domain.Notification `json:"rows,omitempty"`
	Change *domain.RowChange      `json:"change,omitempty"`
}

// ServeConn drives one client connection until it closes. The subscribed
// state flips true only after the pub/sub handshake confirms; the
// subscription is explicitly released on teardown.
func (b *Bridge) ServeConn(ctx context.Context, conn *websocket.Conn, userID string) {
	c := b.manager.Add(userID, conn)
	defer b.manager.Remove(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rows, err := b.lister.ListNotificationsByUser(ctx, userID, snapshotLimit, 0)
	if err != nil {
		log.Printf("⚠️ [Bridge] initial fetch for %s failed: %v", userID, err)
		return
	}
	if err := c.WriteJSON(bridgeMessage{Type: "snapshot", Rows: rows}); err != nil {
		return
	}

	pubsub := b.feed.Subscribe(ctx, "notifications", userID)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		log.Printf("⚠️ [Bridge] subscribe handshake for %s failed: %v", userID, err)
		return
	}
	if err := c.WriteJSON(bridgeMessage{Type: "subscribed"}); err != nil {
		return
	}

	// Reader loop: refresh pong deadlines, detect client close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			c.LastSeen = time.Now()
			return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	feedCh := pubsub.Channel()
	for {
		select {
		case msg, ok := <-feedCh:
			if !ok {
				return
			}
			var change domain.RowChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				log.Printf("⚠️ [Bridge] bad change payload for %s: %v", userID, err)
				continue
			}
			if err := c.WriteJSON(bridgeMessage{Type: "change", Change: &change}); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}
