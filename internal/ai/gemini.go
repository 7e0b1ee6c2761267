package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client         *genai.Client
	chatModel      string
	embeddingModel string
	maxToolRounds  int
}

func NewGeminiClient(ctx context.Context, apiKey, chatModel, embeddingModel string, maxToolRounds int) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client failed: %w", err)
	}
	if maxToolRounds <= 0 {
		maxToolRounds = 5
	}
	return &GeminiClient{
		client:         client,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		maxToolRounds:  maxToolRounds,
	}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func (c *GeminiClient) EmbedTexts(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	em := c.client.EmbeddingModel(c.embeddingModel)
	em.TaskType = geminiTaskType(task)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}

	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed failed: %w", err)
	}
	out := make([][]float32, len(resp.Embeddings))
	for i, embedding := range resp.Embeddings {
		if embedding != nil {
			out[i] = embedding.Values
		}
	}
	return out, nil
}

func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	model := c.client.GenerativeModel(c.chatModel)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	if len(req.Tools) > 0 {
		model.Tools = []*genai.Tool{{FunctionDeclarations: geminiDeclarations(req.Tools)}}
	}

	session := model.StartChat()
	session.History = geminiHistory(req.History)

	result := &CompletionResult{}
	resp, err := session.SendMessage(ctx, genai.Text(req.Message))
	for round := 0; ; round++ {
		if err != nil {
			return nil, fmt.Errorf("gemini send message failed: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return nil, ErrEmptyCompletion
		}
		parts := resp.Candidates[0].Content.Parts

		calls := functionCalls(parts)
		if len(calls) == 0 {
			text := strings.TrimSpace(partsText(parts))
			if text == "" {
				return nil, ErrEmptyCompletion
			}
			result.Text = text
			return result, nil
		}
		if round >= c.maxToolRounds {
			return nil, ErrToolRoundsExceeded
		}

		responses := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			query, _ := call.Args[ToolQueryParam].(string)
			output, err := invokeTool(ctx, req.Tools, call.Name, query)
			if err != nil {
				return nil, err
			}
			result.ToolCalls = append(result.ToolCalls, ToolCall{Name: call.Name, Query: query, Output: output})
			responses = append(responses, genai.FunctionResponse{
				Name:     call.Name,
				Response: map[string]any{"result": output},
			})
		}
		resp, err = session.SendMessage(ctx, responses...)
	}
}

func geminiTaskType(task TaskType) genai.TaskType {
	switch task {
	case TaskRetrievalQuery:
		return genai.TaskTypeRetrievalQuery
	case TaskRetrievalDocument:
		return genai.TaskTypeRetrievalDocument
	default:
		return genai.TaskTypeUnspecified
	}
}

func geminiDeclarations(tools []Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					ToolQueryParam: {Type: genai.TypeString, Description: tool.QueryDescription},
				},
				Required: []string{ToolQueryParam},
			},
		})
	}
	return decls
}

func geminiHistory(turns []Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		role := "user"
		if turn.Role == TurnModel {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(turn.Content)},
		})
	}
	return history
}

func functionCalls(parts []genai.Part) []genai.FunctionCall {
	var calls []genai.FunctionCall
	for _, part := range parts {
		if call, ok := part.(genai.FunctionCall); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

func partsText(parts []genai.Part) string {
	var b strings.Builder
	for _, part := range parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	return b.String()
}
