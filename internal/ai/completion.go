package ai

import (
	"context"
	"errors"
	"fmt"
)

// ToolQueryParam is the single string argument every tool takes.
const ToolQueryParam = "query"

var (
	ErrEmptyCompletion    = errors.New("model returned an empty completion")
	ErrToolRoundsExceeded = errors.New("model exceeded the tool call limit")
)

type TurnRole string

const (
	TurnUser  TurnRole = "user"
	TurnModel TurnRole = "model"
)

type Turn struct {
	Role    TurnRole
	Content string
}

// ToolFunc answers a tool invocation. A returned error aborts the completion.
type ToolFunc func(ctx context.Context, query string) (string, error)

type Tool struct {
	Name             string
	Description      string
	QueryDescription string
	Call             ToolFunc
}

type CompletionRequest struct {
	SystemInstruction string
	History           []Turn
	Message           string
	Tools             []Tool
}

type ToolCall struct {
	Name   string `json:"name"`
	Query  string `json:"query"`
	Output string `json:"-"`
}

type CompletionResult struct {
	Text      string
	ToolCalls []ToolCall
}

// Completer produces a model answer, running tool calls the model requests.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

func invokeTool(ctx context.Context, tools []Tool, name, query string) (string, error) {
	for _, tool := range tools {
		if tool.Name != name {
			continue
		}
		output, err := tool.Call(ctx, query)
		if err != nil {
			return "", fmt.Errorf("tool %s failed: %w", name, err)
		}
		return output, nil
	}
	// reported back to the model instead of failing the turn
	return fmt.Sprintf("Unknown tool %q.", name), nil
}
