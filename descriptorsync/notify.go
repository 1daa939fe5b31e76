package descriptorsync

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/gridlocator/gridlocator/gridlog"
)

// Channel is the redis pub/sub channel descriptor mutations are
// broadcast on, for external cache-warming observers. This is purely a
// fire-and-forget notification — the cache itself never persists state
// and a missed notification never desyncs the cache
// since Syncer's own etcd watch remains the source of truth.
const Channel = "gridlocator:changes"

// RedisNotifier publishes DescriptorEvents to Channel over
// github.com/redis/go-redis/v9.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier wraps an existing redis client. Publish failures are
// logged and otherwise ignored — a down notification channel must never
// block or fail a cache mutation.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, event DescriptorEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		gridlog.L().Warnw("failed to marshal descriptor event for notification", "error", err)
		return
	}
	if err := n.client.Publish(ctx, Channel, payload).Err(); err != nil {
		gridlog.L().Warnw("failed to publish descriptor event", "error", err)
	}
}
