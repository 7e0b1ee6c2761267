package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

type Document struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Filename    string    `gorm:"not null" json:"filename"`
	StorageKey  string    `gorm:"not null;uniqueIndex" json:"storage_key"`
	Size        int64     `gorm:"not null" json:"size"`
	ContentType string    `gorm:"size:255" json:"content_type"`
	IsBoe       bool      `gorm:"not null;default:false" json:"is_boe"`
	CreatedAt   time.Time `json:"created_at"`
}

// DocumentChunk is one embedded window of a document's text. ChunkIndex is
// zero-based and contiguous within a document.
type DocumentChunk struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	DocumentID uint            `gorm:"not null;index" json:"document_id"`
	ChunkIndex int             `gorm:"not null" json:"chunk_index"`
	Content    string          `gorm:"type:text;not null" json:"content"`
	Embedding  pgvector.Vector `gorm:"type:vector(2000);not null" json:"-"`
}

// ScoredChunk is a search hit. Distance is cosine distance, lower is closer.
type ScoredChunk struct {
	ChunkID    uint    `json:"chunk_id"`
	DocumentID uint    `json:"document_id"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Filename   string  `json:"filename"`
	Distance   float64 `json:"distance"`
}
