package repository

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"

	"janus-rag/internal/model"
)

const insertBatchSize = 200

const searchSimilarSQL = `SELECT c.id AS chunk_id, c.document_id, c.chunk_index, c.content, d.filename,
       c.embedding <=> ? AS distance
FROM document_chunks AS c
JOIN documents AS d ON d.id = c.document_id
%s
ORDER BY c.embedding <=> ?
LIMIT ?`

const embeddingDimsSQL = `SELECT atttypmod FROM pg_attribute
WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'`

// ChunkRepository stores chunk embeddings and runs nearest-neighbour search
// over the HNSW cosine index.
type ChunkRepository struct {
	db       *gorm.DB
	dims     int
	efSearch int
}

func NewChunkRepository(db *gorm.DB, dims, efSearch int) *ChunkRepository {
	return &ChunkRepository{db: db, dims: dims, efSearch: efSearch}
}

// StoreChunks replaces the document's chunks in a single transaction. Chunk
// indexes must run 0..n-1 and every embedding must have the configured size.
func (r *ChunkRepository) StoreChunks(ctx context.Context, documentID uint, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i := range chunks {
		if chunks[i].ChunkIndex != i {
			return fmt.Errorf("%w: chunk %d has index %d", ErrInvalidChunks, i, chunks[i].ChunkIndex)
		}
		if got := len(chunks[i].Embedding.Slice()); got != r.dims {
			return fmt.Errorf("%w: chunk %d has %d dimensions, want %d", ErrInvalidChunks, i, got, r.dims)
		}
		chunks[i].DocumentID = documentID
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.DocumentChunk{}).Error; err != nil {
			return fmt.Errorf("clear chunks failed: %w", err)
		}
		if err := tx.CreateInBatches(&chunks, insertBatchSize).Error; err != nil {
			return fmt.Errorf("insert chunks failed: %w", err)
		}
		return nil
	})
}

// SearchSimilar returns up to limit chunks ordered by ascending cosine distance.
// A non-nil ownerID restricts the search to that user's documents.
func (r *ChunkRepository) SearchSimilar(ctx context.Context, query []float32, limit int, ownerID *uint) ([]model.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	if len(query) != r.dims {
		return nil, fmt.Errorf("search vector has %d dimensions, want %d", len(query), r.dims)
	}

	vec := pgvector.NewVector(query)
	where := ""
	args := []any{vec}
	if ownerID != nil {
		where = "WHERE d.user_id = ?"
		args = append(args, *ownerID)
	}
	args = append(args, vec, limit)

	var hits []model.ScoredChunk
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.efSearch > 0 {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", r.efSearch)).Error; err != nil {
				return fmt.Errorf("set ef_search failed: %w", err)
			}
		}
		return tx.Raw(fmt.Sprintf(searchSimilarSQL, where), args...).Scan(&hits).Error
	})
	if err != nil {
		return nil, fmt.Errorf("search similar chunks failed: %w", err)
	}
	return hits, nil
}

func (r *ChunkRepository) CountByDocumentID(ctx context.Context, documentID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.DocumentChunk{}).Where("document_id = ?", documentID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return count, nil
}

// CheckDimensions fails when the migrated vector column disagrees with the
// configured embedding size.
func (r *ChunkRepository) CheckDimensions(ctx context.Context) error {
	var typmod int
	if err := r.db.WithContext(ctx).Raw(embeddingDimsSQL).Scan(&typmod).Error; err != nil {
		return fmt.Errorf("read embedding column type failed: %w", err)
	}
	if typmod != r.dims {
		return fmt.Errorf("document_chunks.embedding is vector(%d) but embedding dimensions are %d", typmod, r.dims)
	}
	return nil
}
