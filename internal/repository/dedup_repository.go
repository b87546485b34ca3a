package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const dedupKeyPrefix = "quiz:inbound:"

// DedupRepository 记录已经处理过的入站消息 ID，用于丢弃传输层的重复投递。
type DedupRepository interface {
	// MarkSeen 首次看到 messageID 时返回 true，已经见过时返回 false。
	MarkSeen(ctx context.Context, messageID string) (bool, error)
}

type redisDedupRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewDedupRepository 创建一个新的 DedupRepository 实例。
func NewDedupRepository(redisClient *redis.Client, ttl time.Duration) DedupRepository {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisDedupRepository{redisClient: redisClient, ttl: ttl}
}

func (r *redisDedupRepository) MarkSeen(ctx context.Context, messageID string) (bool, error) {
	ok, err := r.redisClient.SetNX(ctx, dedupKeyPrefix+messageID, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark message %s: %w", messageID, err)
	}
	return ok, nil
}
