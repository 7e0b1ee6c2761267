package repository

import (
	"context"
	"fmt"
	"slices"

	"gorm.io/gorm"

	"janus-rag/internal/model"
)

const latestPerSessionSQL = `SELECT id, user_id, session_id, role, content, created_at FROM (
    SELECT DISTINCT ON (session_id) id, user_id, session_id, role, content, created_at
    FROM messages
    WHERE user_id = ?
    ORDER BY session_id, created_at DESC, id DESC
) AS latest
ORDER BY created_at DESC, id DESC`

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// CreatePair stores a user message and the model's reply atomically.
func (r *MessageRepository) CreatePair(ctx context.Context, userMsg, modelMsg *model.Message) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(userMsg).Error; err != nil {
			return err
		}
		return tx.Create(modelMsg).Error
	})
	if err != nil {
		return fmt.Errorf("create message pair failed: %w", err)
	}
	return nil
}

func (r *MessageRepository) ListBySession(ctx context.Context, userID uint, sessionID string) ([]model.Message, error) {
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// ListRecentBySession returns the last limit messages, oldest first.
func (r *MessageRepository) ListRecentBySession(ctx context.Context, userID uint, sessionID string, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	var messages []model.Message
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list recent messages failed: %w", err)
	}
	slices.Reverse(messages)
	return messages, nil
}

// LatestPerSession returns the newest message of each of the user's sessions,
// most recently active session first.
func (r *MessageRepository) LatestPerSession(ctx context.Context, userID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.WithContext(ctx).Raw(latestPerSessionSQL, userID).Scan(&messages).Error; err != nil {
		return nil, fmt.Errorf("list latest session messages failed: %w", err)
	}
	return messages, nil
}

func (r *MessageRepository) DeleteSession(ctx context.Context, userID uint, sessionID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Delete(&model.Message{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete session messages failed: %w", res.Error)
	}
	return res.RowsAffected, nil
}
