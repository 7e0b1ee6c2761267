package model

import "time"

type MessageRole string

const (
	MessageRoleUser  MessageRole = "user"
	MessageRoleModel MessageRole = "model"
)

type Message struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	UserID    uint        `gorm:"not null;index:idx_messages_user_session,priority:1" json:"user_id"`
	SessionID string      `gorm:"size:128;not null;index:idx_messages_user_session,priority:2" json:"session_id"`
	Role      MessageRole `gorm:"size:16;not null" json:"role"`
	Content   string      `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time   `json:"created_at"`
}

// SessionSummary describes a session by its most recent message.
type SessionSummary struct {
	SessionID   string      `json:"session_id"`
	LastMessage string      `json:"last_message"`
	Timestamp   time.Time   `json:"timestamp"`
	Role        MessageRole `json:"role"`
}
