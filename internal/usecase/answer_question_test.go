package usecase_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/m3y/askdoc/internal/domain"
	"github.com/m3y/askdoc/internal/usecase"
)

// MockToolCatalog is a mock implementation of the ToolCatalog interface.
type MockToolCatalog struct {
	mock.Mock
}

func (m *MockToolCatalog) ListTools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]domain.ToolDescriptor), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockToolCatalog) Invoke(ctx context.Context, name string, in map[string]interface{}) (domain.ToolResult, error) {
	args := m.Called(ctx, name, in)
	return args.Get(0).(domain.ToolResult), args.Error(1)
}

// MockChatModel is a mock implementation of the ChatModel interface.
type MockChatModel struct {
	mock.Mock
}

func (m *MockChatModel) Generate(ctx context.Context, system string, tools []domain.ToolDescriptor, transcript []domain.AgentTurn) (domain.ModelReply, error) {
	args := m.Called(ctx, system, tools, transcript)
	return args.Get(0).(domain.ModelReply), args.Error(1)
}

// stubScope is a fixed ScopeProvider.
type stubScope struct{ doc string }

func (s stubScope) Get(ctx context.Context) string { return s.doc }

// panicModel always panics, standing in for a bug in the model adapter.
type panicModel struct{}

func (panicModel) Generate(context.Context, string, []domain.ToolDescriptor, []domain.AgentTurn) (domain.ModelReply, error) {
	panic("unexpected adapter bug")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var searchTools = []domain.ToolDescriptor{
	{Name: "search_docs", Description: "Search the documentation.", InputSchema: map[string]interface{}{"type": "object"}},
}

func TestAnswerQuestion_DirectAnswer(t *testing.T) {
	catalog := new(MockToolCatalog)
	model := new(MockChatModel)
	catalog.On("ListTools", mock.Anything).Return(searchTools, nil).Once()
	model.On("Generate", mock.Anything, mock.Anything, searchTools, mock.Anything).
		Return(domain.ModelReply{Text: "42."}, nil).Once()

	uc := usecase.NewAnswerQuestionUseCase(catalog, model, stubScope{}, testLogger())
	ans := uc.Execute(context.Background(), domain.Question{Text: "What is the answer?", CorrelationID: "c-1"})

	assert.True(t, ans.OK)
	assert.Equal(t, "42.", ans.Text)
	catalog.AssertExpectations(t)
	model.AssertExpectations(t)
	catalog.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswerQuestion_OneToolRound(t *testing.T) {
	catalog := new(MockToolCatalog)
	model := new(MockChatModel)
	catalog.On("ListTools", mock.Anything).Return(searchTools, nil).Once()

	queryArgs := map[string]interface{}{"query": "spec X"}
	catalog.On("Invoke", mock.Anything, "search_docs", queryArgs).
		Return(domain.ToolResult{
			Text:    "Spec X defines widgets. [spec](http://docs/x)\n\n",
			Sources: []string{"http://docs/x"},
		}, nil).Once()

	// Round 1: the model asks for one search.
	model.On("Generate", mock.Anything, mock.Anything, searchTools, mock.MatchedBy(func(tr []domain.AgentTurn) bool {
		return len(tr) == 1 && tr[0].Role == domain.RoleUser
	})).Return(domain.ModelReply{Calls: []domain.ToolCall{{Name: "search_docs", Args: queryArgs}}}, nil).Once()

	// Round 2: the tool outcome is in the transcript and the model answers.
	model.On("Generate", mock.Anything, mock.Anything, searchTools, mock.MatchedBy(func(tr []domain.AgentTurn) bool {
		if len(tr) != 3 {
			return false
		}
		last := tr[2]
		return last.Role == domain.RoleTool &&
			len(last.Outcomes) == 1 &&
			strings.Contains(last.Outcomes[0].Text, "Spec X defines widgets") &&
			strings.Contains(last.Outcomes[0].Text, "http://docs/x")
	})).Return(domain.ModelReply{Text: "Spec X defines widgets. Source: http://docs/x"}, nil).Once()

	uc := usecase.NewAnswerQuestionUseCase(catalog, model, stubScope{}, testLogger())
	ans := uc.Execute(context.Background(), domain.Question{Text: "What is spec X?", CorrelationID: "c-2"})

	assert.True(t, ans.OK)
	assert.Equal(t, "Spec X defines widgets. Source: http://docs/x", ans.Text)
	catalog.AssertExpectations(t)
	model.AssertExpectations(t)
}

func TestAnswerQuestion_ToolFailureIsFoldedIntoTranscript(t *testing.T) {
	catalog := new(MockToolCatalog)
	model := new(MockChatModel)
	catalog.On("ListTools", mock.Anything).Return(searchTools, nil).Once()
	catalog.On("Invoke", mock.Anything, "search_docs", mock.Anything).
		Return(domain.ToolResult{}, &usecase.ToolInvocationError{Tool: "search_docs", Err: errors.New("upstream 502")}).Once()

	model.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(tr []domain.AgentTurn) bool {
		return len(tr) == 1
	})).Return(domain.ModelReply{Calls: []domain.ToolCall{{Name: "search_docs"}}}, nil).Once()

	// The loop must continue, with the failure text visible to the model.
	model.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(tr []domain.AgentTurn) bool {
		if len(tr) != 3 {
			return false
		}
		last := tr[2]
		return last.Role == domain.RoleTool &&
			strings.Contains(last.Outcomes[0].Text, "Tool call failed") &&
			strings.Contains(last.Outcomes[0].Text, "upstream 502")
	})).Return(domain.ModelReply{Text: "The search backend is unavailable."}, nil).Once()

	uc := usecase.NewAnswerQuestionUseCase(catalog, model, stubScope{}, testLogger())
	ans := uc.Execute(context.Background(), domain.Question{Text: "anything", CorrelationID: "c-3"})

	assert.True(t, ans.OK)
	assert.Equal(t, "The search backend is unavailable.", ans.Text)
	model.AssertExpectations(t)
}

func TestAnswerQuestion_MultipleCallsKeepRequestOrder(t *testing.T) {
	catalog := new(MockToolCatalog)
	model := new(MockChatModel)
	catalog.On("ListTools", mock.Anything).Return(searchTools, nil).Once()

	var invoked []string
	catalog.On("Invoke", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			invoked = append(invoked, args.String(1))
		}).
		Return(domain.ToolResult{Text: "ok"}, nil).Times(3)

	calls := []domain.ToolCall{
		{Name: "search_docs", Args: map[string]interface{}{"query": "a"}},
		{Name: "search_docs", Args: map[string]interface{}{"query": "a"}}, // identical call repeats, no dedup
		{Name: "search_docs", Args: map[string]interface{}{"query": "b"}},
	}
	model.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ModelReply{Calls: calls}, nil).Once()
	model.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(tr []domain.AgentTurn) bool {
		last := tr[len(tr)-1]
		return last.Role == domain.RoleTool && len(last.Outcomes) == 3
	})).Return(domain.ModelReply{Text: "done"}, nil).Once()

	uc := usecase.NewAnswerQuestionUseCase(catalog, model, stubScope{}, testLogger())
	ans := uc.Execute(context.Background(), domain.Question{Text: "q", CorrelationID: "c-4"})

	require.True(t, ans.OK)
	assert.Equal(t, []string{"search_docs", "search_docs", "search_docs"}, invoked)
	catalog.AssertExpectations(t)
}

func TestAnswerQuestion_CatalogUnavailableSkipsModel(t *testing.T) {
	catalog := new(MockToolCatalog)
	model := new(MockChatModel)
	catalog.On("ListTools", mock.Anything).Return(nil, usecase.ErrToolCatalogUnavailable).Once()

	uc := usecase.NewAnswerQuestionUseCase(catalog, model, stubScope{}, testLogger())
	ans := uc.Execute(context.Background(), domain.Question{Text: "q", CorrelationID: "c-5"})

	assert.False(t, ans.OK)
	assert.NotEmpty(t, ans.Text)
	model.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnswerQuestion_ModelErrorIsTerminalAndGeneric(t *testing.T) {
	catalog := new(MockToolCatalog)
	model := new(MockChatModel)
	catalog.On("ListTools", mock.Anything).Return(searchTools, nil).Once()
	model.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ModelReply{}, errors.New("rpc error: deadline exceeded")).Once()

	uc := usecase.NewAnswerQuestionUseCase(catalog, model, stubScope{}, testLogger())
	ans := uc.Execute(context.Background(), domain.Question{Text: "q", CorrelationID: "c-6"})

	assert.False(t, ans.OK)
	// Internal detail must not leak into the user-visible text.
	assert.NotContains(t, ans.Text, "rpc error")
}

func TestAnswerQuestion_RoundCeilingForcesBestEffortAnswer(t *testing.T) {
	catalog := new(MockToolCatalog)
	model := new(MockChatModel)
	catalog.On("ListTools", mock.Anything).Return(searchTools, nil).Once()
	catalog.On("Invoke", mock.Anything, "search_docs", mock.Anything).
		Return(domain.ToolResult{Text: "partial"}, nil).Times(10)

	// The model never stops asking for tools. The initial exchange plus one
	// per round makes 11 Generate calls in total.
	model.On("Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ModelReply{Text: "still looking", Calls: []domain.ToolCall{{Name: "search_docs"}}}, nil).Times(11)

	uc := usecase.NewAnswerQuestionUseCase(catalog, model, stubScope{}, testLogger())
	ans := uc.Execute(context.Background(), domain.Question{Text: "q", CorrelationID: "c-7"})

	assert.True(t, ans.OK)
	assert.Equal(t, "still looking", ans.Text)
	catalog.AssertExpectations(t)
	model.AssertExpectations(t)
}

func TestAnswerQuestion_PanicIsContained(t *testing.T) {
	catalog := new(MockToolCatalog)
	catalog.On("ListTools", mock.Anything).Return(searchTools, nil).Once()

	uc := usecase.NewAnswerQuestionUseCase(catalog, panicModel{}, stubScope{}, testLogger())

	var ans domain.Answer
	require.NotPanics(t, func() {
		ans = uc.Execute(context.Background(), domain.Question{Text: "q", CorrelationID: "c-8"})
	})
	assert.False(t, ans.OK)
	assert.NotEmpty(t, ans.Text)
}
