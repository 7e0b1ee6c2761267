package app

import (
	"context"
	"time"

	"janus-rag/internal/model"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*model.User, error)
	UpdateRole(ctx context.Context, id uint, role model.Role) error
}

type DocumentStore interface {
	Create(ctx context.Context, doc *model.Document) error
	GetByID(ctx context.Context, id uint) (*model.Document, error)
	ListByUserID(ctx context.Context, userID uint) ([]model.Document, error)
	ListAll(ctx context.Context) ([]model.Document, error)
	Delete(ctx context.Context, id uint) (bool, error)
}

type ChunkStore interface {
	StoreChunks(ctx context.Context, documentID uint, chunks []model.DocumentChunk) error
	SearchSimilar(ctx context.Context, query []float32, limit int, ownerID *uint) ([]model.ScoredChunk, error)
}

type MessageStore interface {
	CreatePair(ctx context.Context, userMsg, modelMsg *model.Message) error
	ListBySession(ctx context.Context, userID uint, sessionID string) ([]model.Message, error)
	ListRecentBySession(ctx context.Context, userID uint, sessionID string, limit int) ([]model.Message, error)
	LatestPerSession(ctx context.Context, userID uint) ([]model.Message, error)
	DeleteSession(ctx context.Context, userID uint, sessionID string) (int64, error)
}

type ObjectStorage interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	PresignedReadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type DocumentEmbedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// HistoryCache is optional; a nil cache means every read goes to the database.
type HistoryCache interface {
	GetHistory(ctx context.Context, userID uint, sessionID string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, userID uint, sessionID string, messages []model.Message) error
	DeleteHistory(ctx context.Context, userID uint, sessionID string) error
}
