package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/m3y/askdoc/internal/domain"
)

// Standard errors returned by use cases and adapters.
var (
	// ErrToolCatalogUnavailable indicates the MCP endpoint could not be
	// reached or listed. Without tools the agent cannot retrieve anything,
	// so this is terminal for the current question.
	ErrToolCatalogUnavailable = errors.New("tool catalog unavailable")

	// ErrModelNotConfigured indicates the LLM credential is missing or the
	// client could not be constructed. Terminal, pre-model.
	ErrModelNotConfigured = errors.New("model not configured")
)

// ToolInvocationError reports the failure of a single tool call. The agent
// loop recovers from it by folding the message into the transcript; it never
// aborts the whole answering attempt.
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %q invocation failed: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// ToolCatalog defines the interface for discovering and invoking retrieval
// tools exposed by the MCP endpoint.
type ToolCatalog interface {
	// ListTools returns the current tool declarations. Transport failures
	// wrap ErrToolCatalogUnavailable.
	ListTools(ctx context.Context) ([]domain.ToolDescriptor, error)

	// Invoke executes the named tool with the given arguments. An unknown
	// name or a failed call returns a *ToolInvocationError.
	Invoke(ctx context.Context, name string, args map[string]interface{}) (domain.ToolResult, error)
}

// ChatModel defines the interface for one request/response exchange with the
// LLM. The transcript is converted to the provider's wire form by the adapter.
type ChatModel interface {
	Generate(ctx context.Context, system string, tools []domain.ToolDescriptor, transcript []domain.AgentTurn) (domain.ModelReply, error)
}

// ScopeProvider supplies the auxiliary scope document embedded in the system
// prompt. Implementations may cache; an empty string means no document is
// available and is always acceptable.
type ScopeProvider interface {
	Get(ctx context.Context) string
}

// ReplyPoster delivers the final answer text back to the chat surface.
type ReplyPoster interface {
	Post(ctx context.Context, replyToken, text string) error
}
