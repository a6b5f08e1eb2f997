package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/sockheadrps/OBS-Stream-Control-Hub/core/player"
)

// StatusTTL 状态键过期时间，服务停止后不会留下陈旧状态
const StatusTTL = 30 * time.Second

// StatusCache 把最新的播放快照镜像到 Redis
//
// The snapshot is stored under Key and also published on Key+":events" so
// overlays that cannot hold a websocket can still follow playback.
type StatusCache struct {
	rdb redis.Cmdable
	Key string
}

// NewStatusCache 创建状态缓存
func NewStatusCache(rdb redis.Cmdable, key string) *StatusCache {
	if key == "" {
		key = "audio:status"
	}
	return &StatusCache{rdb: rdb, Key: key}
}

// Channel 发布订阅频道名
func (c *StatusCache) Channel() string { return c.Key + ":events" }

// Publish 实现 player.StatusMirror
func (c *StatusCache) Publish(ctx context.Context, s player.Snapshot) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, c.Key, data, StatusTTL)
	pipe.Publish(ctx, c.Channel(), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mirror status to redis: %w", err)
	}
	return nil
}

// Get 读取镜像的快照，没有时返回 false
func (c *StatusCache) Get(ctx context.Context) (player.Snapshot, bool, error) {
	var s player.Snapshot
	data, err := c.rdb.Get(ctx, c.Key).Bytes()
	if err == redis.Nil {
		return s, false, nil
	}
	if err != nil {
		return s, false, fmt.Errorf("get status: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, false, fmt.Errorf("decode status: %w", err)
	}
	return s, true, nil
}

// Subscribe streams mirrored snapshots until ctx is done.
func (c *StatusCache) Subscribe(ctx context.Context, rdb *redis.Client, fn func(player.Snapshot)) error {
	sub := rdb.Subscribe(ctx, c.Channel())
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var s player.Snapshot
			if err := json.Unmarshal([]byte(msg.Payload), &s); err != nil {
				continue
			}
			fn(s)
		}
	}
}
