// Package gemini adapts the Google Gemini API to the usecase.ChatModel
// interface. It converts the domain transcript and tool declarations to the
// genai wire form and back; all loop logic stays in the use case.
package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/genai"

	"github.com/m3y/askdoc/internal/domain"
	"github.com/m3y/askdoc/internal/usecase"
)

// Client implements the usecase.ChatModel interface. The underlying genai
// client is created lazily on first use and memoized; a failed construction
// leaves the handle empty so the next call retries.
type Client struct {
	apiKey string
	model  string
	logger *slog.Logger

	mu     sync.Mutex
	client *genai.Client
}

// NewClient creates a Gemini-backed chat model. A missing API key is not an
// error here; it surfaces as usecase.ErrModelNotConfigured on first use so
// the agent loop can short-circuit before any model call.
func NewClient(apiKey, model string, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		model:  model,
		logger: logger.With("component", "gemini_client"),
	}
}

func (c *Client) connect(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: GEMINI_API_KEY is empty", usecase.ErrModelNotConfigured)
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  c.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", usecase.ErrModelNotConfigured, err)
	}
	c.logger.Info("Gemini client initialized.", slog.String("model", c.model))
	c.client = cli
	return cli, nil
}

// Generate performs one request/response exchange with the model.
func (c *Client) Generate(ctx context.Context, system string, tools []domain.ToolDescriptor, transcript []domain.AgentTurn) (domain.ModelReply, error) {
	cli, err := c.connect(ctx)
	if err != nil {
		return domain.ModelReply{}, err
	}

	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if decls := toDeclarations(tools); len(decls) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	resp, err := cli.Models.GenerateContent(ctx, c.model, toContents(transcript), config)
	if err != nil {
		return domain.ModelReply{}, fmt.Errorf("generate content: %w", err)
	}

	reply := domain.ModelReply{Text: resp.Text()}
	for _, fc := range resp.FunctionCalls() {
		reply.Calls = append(reply.Calls, domain.ToolCall{Name: fc.Name, Args: fc.Args})
	}
	return reply, nil
}

// toDeclarations converts tool descriptors to genai function declarations.
// The MCP input schema is already JSON Schema, so it passes through raw.
func toDeclarations(tools []domain.ToolDescriptor) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema,
		})
	}
	return decls
}

// toContents converts the domain transcript to genai contents. Tool outcomes
// travel as function-response parts on a user-role content, which is how the
// Gemini API expects tool results back.
func toContents(transcript []domain.AgentTurn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(transcript))
	for _, turn := range transcript {
		switch turn.Role {
		case domain.RoleUser:
			contents = append(contents, genai.NewContentFromText(turn.Text, genai.RoleUser))

		case domain.RoleModel:
			var parts []*genai.Part
			if turn.Text != "" {
				parts = append(parts, genai.NewPartFromText(turn.Text))
			}
			for _, call := range turn.Calls {
				parts = append(parts, genai.NewPartFromFunctionCall(call.Name, call.Args))
			}
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: parts})

		case domain.RoleTool:
			parts := make([]*genai.Part, 0, len(turn.Outcomes))
			for _, o := range turn.Outcomes {
				parts = append(parts, genai.NewPartFromFunctionResponse(o.Name, map[string]interface{}{
					"output": o.Text,
				}))
			}
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: parts})
		}
	}
	return contents
}
