package ai

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiHistory_MapsRoles(t *testing.T) {
	history := geminiHistory([]Turn{
		{Role: TurnUser, Content: "question"},
		{Role: TurnModel, Content: "answer"},
	})

	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("answer")}, history[1].Parts)
}

func TestGeminiDeclarations(t *testing.T) {
	decls := geminiDeclarations([]Tool{{Name: "retrieve_documents", Description: "search", QueryDescription: "what to look for"}})

	require.Len(t, decls, 1)
	assert.Equal(t, "retrieve_documents", decls[0].Name)
	assert.Equal(t, genai.TypeObject, decls[0].Parameters.Type)
	assert.Equal(t, []string{ToolQueryParam}, decls[0].Parameters.Required)
	assert.Equal(t, genai.TypeString, decls[0].Parameters.Properties[ToolQueryParam].Type)
}

func TestGeminiParts(t *testing.T) {
	parts := []genai.Part{
		genai.Text("Hello "),
		genai.FunctionCall{Name: "retrieve_documents", Args: map[string]any{"query": "x"}},
		genai.Text("world"),
	}

	assert.Equal(t, "Hello world", partsText(parts))
	calls := functionCalls(parts)
	require.Len(t, calls, 1)
	assert.Equal(t, "retrieve_documents", calls[0].Name)
}

func TestGeminiTaskType(t *testing.T) {
	assert.Equal(t, genai.TaskTypeRetrievalDocument, geminiTaskType(TaskRetrievalDocument))
	assert.Equal(t, genai.TaskTypeRetrievalQuery, geminiTaskType(TaskRetrievalQuery))
}
