package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type ChatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function toolCallFunction `json:"function"`
}

type toolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type ChatConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	MaxToolRounds int
}

// OpenAICompatibleClient talks to any /chat/completions + /embeddings API,
// including Gemini's OpenAI compatibility endpoint.
type OpenAICompatibleClient struct {
	httpClient *http.Client
	chat       ChatConfig
	embedding  EmbeddingConfig
}

func NewOpenAICompatibleClient(chat ChatConfig, embedding EmbeddingConfig, timeout time.Duration) *OpenAICompatibleClient {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	if chat.MaxToolRounds <= 0 {
		chat.MaxToolRounds = 5
	}
	return &OpenAICompatibleClient{
		httpClient: &http.Client{Timeout: timeout},
		chat:       chat,
		embedding:  embedding,
	}
}

func (c *OpenAICompatibleClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error) {
	messages := make([]ChatMessage, 0, len(req.History)+2)
	messages = append(messages, ChatMessage{Role: "system", Content: req.SystemInstruction})
	for _, turn := range req.History {
		role := "user"
		if turn.Role == TurnModel {
			role = "assistant"
		}
		messages = append(messages, ChatMessage{Role: role, Content: turn.Content})
	}
	messages = append(messages, ChatMessage{Role: "user", Content: req.Message})

	tools := openAITools(req.Tools)
	result := &CompletionResult{}
	for round := 0; ; round++ {
		reply, err := c.chatCompletion(ctx, messages, tools)
		if err != nil {
			return nil, err
		}
		if len(reply.ToolCalls) == 0 {
			text := strings.TrimSpace(reply.Content)
			if text == "" {
				return nil, ErrEmptyCompletion
			}
			result.Text = text
			return result, nil
		}
		if round >= c.chat.MaxToolRounds {
			return nil, ErrToolRoundsExceeded
		}

		messages = append(messages, reply)
		for _, call := range reply.ToolCalls {
			query := queryArgument(call.Function.Arguments)
			output, err := invokeTool(ctx, req.Tools, call.Function.Name, query)
			if err != nil {
				return nil, err
			}
			result.ToolCalls = append(result.ToolCalls, ToolCall{Name: call.Function.Name, Query: query, Output: output})
			messages = append(messages, ChatMessage{Role: "tool", ToolCallID: call.ID, Content: output})
		}
	}
}

func (c *OpenAICompatibleClient) chatCompletion(ctx context.Context, messages []ChatMessage, tools []map[string]any) (ChatMessage, error) {
	reqBody := map[string]any{
		"model":    c.chat.Model,
		"messages": messages,
		"stream":   false,
	}
	if len(tools) > 0 {
		reqBody["tools"] = tools
	}

	var parsed struct {
		Choices []struct {
			Message ChatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, c.chat.BaseURL, c.chat.APIKey, "/chat/completions", reqBody, &parsed); err != nil {
		return ChatMessage{}, fmt.Errorf("llm %w", err)
	}
	if len(parsed.Choices) == 0 {
		return ChatMessage{}, fmt.Errorf("empty llm choices")
	}
	return parsed.Choices[0].Message, nil
}

func (c *OpenAICompatibleClient) postJSON(ctx context.Context, baseURL, apiKey, path string, body, out any) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request failed: %w", err)
	}

	url := strings.TrimRight(baseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("response status %d: %s", resp.StatusCode, string(raw))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse json failed: %w", err)
	}
	return nil
}

func openAITools(tools []Tool) []map[string]any {
	if len(tools) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(tools))
	for _, tool := range tools {
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        tool.Name,
				"description": tool.Description,
				"parameters": map[string]any{
					"type": "object",
					"properties": map[string]any{
						ToolQueryParam: map[string]any{
							"type":        "string",
							"description": tool.QueryDescription,
						},
					},
					"required": []string{ToolQueryParam},
				},
			},
		})
	}
	return out
}

func queryArgument(arguments string) string {
	var args map[string]any
	if err := json.Unmarshal([]byte(arguments), &args); err != nil {
		return ""
	}
	query, _ := args[ToolQueryParam].(string)
	return query
}
