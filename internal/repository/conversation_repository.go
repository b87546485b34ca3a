package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"quiz-bot-go/internal/model"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	conversationKeyPrefix = "conversation:"
	conversationTTL       = 7 * 24 * time.Hour
)

// ConversationRepository 定义了聊天记录的操作接口。聊天记录只用于后台查看，丢失不影响问卷状态。
type ConversationRepository interface {
	Append(ctx context.Context, phoneNumber string, messages ...model.ChatMessage) error
	GetHistory(ctx context.Context, phoneNumber string) ([]model.ChatMessage, error)
	ListPhoneNumbers(ctx context.Context) ([]string, error)
}

type redisConversationRepository struct {
	redisClient *redis.Client
	limit       int64
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例，每个用户最多保留 limit 条消息。
func NewConversationRepository(redisClient *redis.Client, limit int) ConversationRepository {
	if limit <= 0 {
		limit = 20
	}
	return &redisConversationRepository{redisClient: redisClient, limit: int64(limit)}
}

func conversationKey(phoneNumber string) string {
	return conversationKeyPrefix + phoneNumber
}

// Append 追加消息，只保留最近的 limit 条，并刷新过期时间。
func (r *redisConversationRepository) Append(ctx context.Context, phoneNumber string, messages ...model.ChatMessage) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal chat message: %w", err)
		}
		values = append(values, data)
	}

	key := conversationKey(phoneNumber)
	_, err := r.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -r.limit, -1)
		pipe.Expire(ctx, key, conversationTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append conversation history: %w", err)
	}
	return nil
}

// GetHistory 从 Redis 获取聊天记录，按时间正序。
func (r *redisConversationRepository) GetHistory(ctx context.Context, phoneNumber string) ([]model.ChatMessage, error) {
	raw, err := r.redisClient.LRange(ctx, conversationKey(phoneNumber), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}
	messages := make([]model.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// ListPhoneNumbers 返回所有存在聊天记录的手机号。
func (r *redisConversationRepository) ListPhoneNumbers(ctx context.Context) ([]string, error) {
	keys, err := r.redisClient.Keys(ctx, conversationKeyPrefix+"*").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation keys: %w", err)
	}
	phones := make([]string, 0, len(keys))
	for _, k := range keys {
		phones = append(phones, strings.TrimPrefix(k, conversationKeyPrefix))
	}
	sort.Strings(phones)
	return phones, nil
}
