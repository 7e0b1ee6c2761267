package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"janus-rag/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *model.Document) error {
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("create document failed: %w", ErrDuplicate)
		}
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query document failed: %w", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByUserID(ctx context.Context, userID uint) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC, id DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return docs, nil
}

func (r *DocumentRepository) ListAll(ctx context.Context) ([]model.Document, error) {
	var docs []model.Document
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("list all documents failed: %w", err)
	}
	return docs, nil
}

// Delete removes the document row; its chunks go with it through ON DELETE CASCADE.
func (r *DocumentRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.Document{}, id)
	if res.Error != nil {
		return false, fmt.Errorf("delete document failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
