package ai

import (
	"context"
	"fmt"
	"sort"
)

// EmbeddingConfig holds API settings for text-embedding (OpenAI-compatible).
type EmbeddingConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
}

// EmbedTexts embeds texts in one request. The task type has no OpenAI
// equivalent and is ignored.
func (c *OpenAICompatibleClient) EmbedTexts(ctx context.Context, texts []string, _ TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := map[string]any{
		"model": c.embedding.Model,
		"input": texts,
	}
	if c.embedding.Dimensions > 0 {
		reqBody["dimensions"] = c.embedding.Dimensions
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.postJSON(ctx, c.embedding.BaseURL, c.embedding.APIKey, "/embeddings", reqBody, &parsed); err != nil {
		return nil, fmt.Errorf("embedding %w", err)
	}

	sort.SliceStable(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})
	result := make([][]float32, len(parsed.Data))
	for i := range parsed.Data {
		result[i] = parsed.Data[i].Embedding
	}
	return result, nil
}
