package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"janus-rag/internal/model"
)

// HistoryCache keeps the recent messages of a chat session in Redis. Writers
// invalidate the entry after persisting; readers repopulate it from the database.
type HistoryCache struct {
	client     redisv9.Cmdable
	historyTTL time.Duration
}

func NewHistoryCache(client redisv9.Cmdable, historyTTL time.Duration) *HistoryCache {
	if historyTTL <= 0 {
		historyTTL = 5 * time.Minute
	}
	return &HistoryCache{
		client:     client,
		historyTTL: historyTTL,
	}
}

func (c *HistoryCache) GetHistory(ctx context.Context, userID uint, sessionID string) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, historyKey(userID, sessionID)).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get history failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached history failed: %w", err)
	}
	return messages, true, nil
}

func (c *HistoryCache) SetHistory(ctx context.Context, userID uint, sessionID string, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal history cache failed: %w", err)
	}
	if err := c.client.Set(ctx, historyKey(userID, sessionID), payload, c.historyTTL).Err(); err != nil {
		return fmt.Errorf("redis set history failed: %w", err)
	}
	return nil
}

func (c *HistoryCache) DeleteHistory(ctx context.Context, userID uint, sessionID string) error {
	if err := c.client.Del(ctx, historyKey(userID, sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete history failed: %w", err)
	}
	return nil
}

func historyKey(userID uint, sessionID string) string {
	return fmt.Sprintf("chat:history:%d:%s", userID, sessionID)
}
