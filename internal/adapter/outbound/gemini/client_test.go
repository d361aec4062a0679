package gemini

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/m3y/askdoc/internal/domain"
	"github.com/m3y/askdoc/internal/usecase"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestGenerate_MissingAPIKeyIsConfigurationError(t *testing.T) {
	c := NewClient("", "gemini-2.0-flash", testLogger())

	_, err := c.Generate(context.Background(), "system", nil, []domain.AgentTurn{
		{Role: domain.RoleUser, Text: "q"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, usecase.ErrModelNotConfigured))
}

func TestToDeclarations(t *testing.T) {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"query"},
	}
	decls := toDeclarations([]domain.ToolDescriptor{
		{Name: "search_docs", Description: "Search.", InputSchema: schema},
	})

	require.Len(t, decls, 1)
	assert.Equal(t, "search_docs", decls[0].Name)
	assert.Equal(t, "Search.", decls[0].Description)
	// The MCP schema passes through untouched.
	assert.Equal(t, schema, decls[0].ParametersJsonSchema)
}

func TestToContents(t *testing.T) {
	transcript := []domain.AgentTurn{
		{Role: domain.RoleUser, Text: "What is spec X?"},
		{Role: domain.RoleModel, Text: "Let me check.", Calls: []domain.ToolCall{
			{Name: "search_docs", Args: map[string]interface{}{"query": "spec X"}},
		}},
		{Role: domain.RoleTool, Outcomes: []domain.ToolOutcome{
			{Name: "search_docs", Text: "Spec X defines widgets."},
		}},
	}

	contents := toContents(transcript)
	require.Len(t, contents, 3)

	assert.Equal(t, genai.RoleUser, contents[0].Role)
	require.Len(t, contents[0].Parts, 1)
	assert.Equal(t, "What is spec X?", contents[0].Parts[0].Text)

	assert.Equal(t, genai.RoleModel, contents[1].Role)
	require.Len(t, contents[1].Parts, 2)
	assert.Equal(t, "Let me check.", contents[1].Parts[0].Text)
	require.NotNil(t, contents[1].Parts[1].FunctionCall)
	assert.Equal(t, "search_docs", contents[1].Parts[1].FunctionCall.Name)

	// Tool outcomes ride back on a user-role content as function responses.
	assert.Equal(t, genai.RoleUser, contents[2].Role)
	require.Len(t, contents[2].Parts, 1)
	require.NotNil(t, contents[2].Parts[0].FunctionResponse)
	assert.Equal(t, "search_docs", contents[2].Parts[0].FunctionResponse.Name)
	assert.Equal(t, "Spec X defines widgets.", contents[2].Parts[0].FunctionResponse.Response["output"])
}

func TestToContents_ModelTurnWithoutText(t *testing.T) {
	contents := toContents([]domain.AgentTurn{
		{Role: domain.RoleModel, Calls: []domain.ToolCall{{Name: "search_docs"}}},
	})
	require.Len(t, contents, 1)
	// No empty text part is emitted.
	require.Len(t, contents[0].Parts, 1)
	assert.NotNil(t, contents[0].Parts[0].FunctionCall)
}
