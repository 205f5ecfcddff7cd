package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"warehouse-notify/internal/domain"
)

// Feed carries row-level changes from the write path to connected clients
// over Redis pub/sub. Delivery order is whatever the transport yields; the
// bridge does not reorder across reconnects.
type Feed struct {
	rdb *redis.Client
}

func NewFeed(rdb *redis.Client) *Feed {
	return &Feed{rdb: rdb}
}

func channelFor(table, userID string) string {
	if userID == "" {
		return "changes:" + table
	}
	return "changes:" + table + ":" + userID
}

// PublishChange announces a change on the owning user's channel, or the
// table-wide channel when the row has no owner. Publish failures are logged
// and swallowed; the write that caused the change has already happened.
func (f *Feed) PublishChange(ctx context.Context, change domain.RowChange) {
	payload, err := json.Marshal(change)
	if err != nil {
		log.Printf("⚠️ [Feed] marshal change for %s: %v", change.Table, err)
		return
	}
	if err := f.rdb.Publish(ctx, channelFor(change.Table, change.UserID), payload).Err(); err != nil {
		log.Printf("⚠️ [Feed] publish change for %s: %v", change.Table, err)
	}
}

// Subscribe opens the change-feed subscription for one table, filtered by
// owning user when userID is set. The caller owns the returned PubSub and
// must Close it on teardown.
func (f *Feed) Subscribe(ctx context.Context, table, userID string) *redis.PubSub {
	return f.rdb.Subscribe(ctx, channelFor(table, userID))
}
