package ai

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const MaxBatchSize = 100

var (
	ErrEmptyEmbedding    = errors.New("embedding provider returned no vector")
	ErrDimensionMismatch = errors.New("embedding has fewer dimensions than configured")
	ErrIncompleteBatch   = errors.New("embedding batch returned a different number of vectors")
)

var tracer = otel.Tracer("janus-rag/ai")

type TaskType int

const (
	TaskRetrievalDocument TaskType = iota + 1
	TaskRetrievalQuery
)

// EmbeddingProvider is one call to a hosted embedding API.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string, task TaskType) ([][]float32, error)
}

// BatchError reports which batch of an EmbedDocuments call failed.
type BatchError struct {
	Batch int
	Start int
	End   int
	Err   error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("embedding batch %d [%d:%d] failed: %v", e.Batch, e.Start, e.End, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

type EmbedderConfig struct {
	Dimensions        int
	BatchSize         int
	Concurrency       int
	RequestsPerSecond float64
}

type Embedder struct {
	provider    EmbeddingProvider
	dims        int
	batchSize   int
	concurrency int
	limiter     *rate.Limiter
}

func NewEmbedder(provider EmbeddingProvider, cfg EmbedderConfig) *Embedder {
	if cfg.BatchSize <= 0 || cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Embedder{
		provider:    provider,
		dims:        cfg.Dimensions,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.Concurrency,
		limiter:     rate.NewLimiter(limit, cfg.Concurrency),
	}
}

func (e *Embedder) Dimensions() int {
	return e.dims
}

// EmbedDocuments returns one vector per text, in input order. Any failed batch
// fails the whole call.
func (e *Embedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, span := tracer.Start(ctx, "ai.EmbedDocuments")
	defer span.End()
	span.SetAttributes(attribute.Int("embedding.texts", len(texts)))

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for batch, start := 0, 0; start < len(texts); batch, start = batch+1, start+e.batchSize {
		end := min(start+e.batchSize, len(texts))
		g.Go(func() error {
			if err := e.limiter.Wait(gctx); err != nil {
				return &BatchError{Batch: batch, Start: start, End: end, Err: err}
			}
			vectors, err := e.provider.EmbedTexts(gctx, texts[start:end], TaskRetrievalDocument)
			if err != nil {
				return &BatchError{Batch: batch, Start: start, End: end, Err: err}
			}
			if len(vectors) != end-start {
				return &BatchError{
					Batch: batch, Start: start, End: end,
					Err: fmt.Errorf("%w: got %d for %d texts", ErrIncompleteBatch, len(vectors), end-start),
				}
			}
			for i, vector := range vectors {
				fitted, err := fitDimensions(vector, e.dims)
				if err != nil {
					return &BatchError{Batch: batch, Start: start, End: end, Err: err}
				}
				out[start+i] = fitted
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	return out, nil
}

// EmbedQuery embeds a search query. It never substitutes a zero vector.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "ai.EmbedQuery")
	defer span.End()

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	vectors, err := e.provider.EmbedTexts(ctx, []string{text}, TaskRetrievalQuery)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("embed query failed: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return fitDimensions(vectors[0], e.dims)
}

// fitDimensions truncates longer vectors to dims and renormalises them to unit
// length, which is how Matryoshka-trained models expect to be shortened.
func fitDimensions(vector []float32, dims int) ([]float32, error) {
	switch {
	case len(vector) == 0:
		return nil, ErrEmptyEmbedding
	case len(vector) == dims:
		return vector, nil
	case len(vector) < dims:
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), dims)
	}

	out := make([]float32, dims)
	copy(out, vector[:dims])
	var norm float64
	for _, x := range out {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return out, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range out {
		out[i] *= scale
	}
	return out, nil
}
