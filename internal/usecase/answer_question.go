package usecase

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/m3y/askdoc/internal/domain"
	"github.com/m3y/askdoc/internal/metrics"
)

// maxToolRounds bounds the number of tool-exchange rounds per question. The
// ceiling guarantees termination against a model that never stops requesting
// tool calls; hitting it is not a failure.
const maxToolRounds = 10

// answerUnavailableMsg is the only failure text ever shown to the channel.
// Diagnostic detail goes to the log, never to the user.
const answerUnavailableMsg = "Sorry, I could not produce an answer right now. Please try asking again later."

// AnswerQuestionUseCase converts one question into one answer by driving a
// bounded request/response exchange with the LLM, executing any tool calls
// the model requests via the tool catalog.
type AnswerQuestionUseCase struct {
	catalog ToolCatalog
	model   ChatModel
	scope   ScopeProvider
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewAnswerQuestionUseCase creates a new AnswerQuestionUseCase.
func NewAnswerQuestionUseCase(catalog ToolCatalog, model ChatModel, scope ScopeProvider, logger *slog.Logger) *AnswerQuestionUseCase {
	return &AnswerQuestionUseCase{
		catalog: catalog,
		model:   model,
		scope:   scope,
		logger:  logger.With("usecase", "AnswerQuestion"),
		tracer:  otel.Tracer("askdoc/usecase"),
	}
}

// Execute answers a single question. It never panics or returns an error
// across this boundary: every path yields a domain.Answer, with OK false only
// for pre-flight or unrecovered failures. Per-tool-call failures are folded
// into the transcript so the model can reason about them.
func (uc *AnswerQuestionUseCase) Execute(ctx context.Context, q domain.Question) (ans domain.Answer) {
	log := uc.logger.With(slog.String("correlation_id", q.CorrelationID))

	ctx, span := uc.tracer.Start(ctx, "answer_question")
	defer span.End()

	defer func() {
		outcome := "success"
		if !ans.OK {
			outcome = "failure"
		}
		metrics.QuestionsTotal.WithLabelValues(outcome).Inc()
	}()
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic during answer generation", slog.Any("panic", r))
			ans = domain.Answer{Text: answerUnavailableMsg, OK: false}
		}
	}()

	// Pre-flight: without tools the agent cannot retrieve anything, so a
	// catalog failure short-circuits before any model call.
	tools, err := uc.catalog.ListTools(ctx)
	if err != nil {
		log.Error("Tool discovery failed, aborting before contacting the model", slog.Any("error", err))
		return domain.Answer{Text: answerUnavailableMsg, OK: false}
	}
	system := BuildSystemPrompt(uc.scope.Get(ctx))

	// Fresh transcript per question; the question is the first turn.
	transcript := []domain.AgentTurn{{Role: domain.RoleUser, Text: q.Text}}

	reply, err := uc.model.Generate(ctx, system, tools, transcript)
	if err != nil {
		log.Error("Model exchange failed", slog.Any("error", err))
		return domain.Answer{Text: answerUnavailableMsg, OK: false}
	}

	rounds := 0
	for ; rounds < maxToolRounds; rounds++ {
		if len(reply.Calls) == 0 {
			log.Info("Final answer produced", slog.Int("rounds", rounds))
			metrics.AgentRounds.Observe(float64(rounds))
			return domain.Answer{Text: reply.Text, OK: true}
		}

		transcript = append(transcript, domain.AgentTurn{
			Role:  domain.RoleModel,
			Text:  reply.Text,
			Calls: reply.Calls,
		})

		// Tool calls run in the order the model requested them, results
		// returned in that same order. Identical repeated calls are not
		// deduplicated.
		outcomes := make([]domain.ToolOutcome, 0, len(reply.Calls))
		for _, call := range reply.Calls {
			outcomes = append(outcomes, uc.runToolCall(ctx, log, call))
		}
		transcript = append(transcript, domain.AgentTurn{Role: domain.RoleTool, Outcomes: outcomes})

		reply, err = uc.model.Generate(ctx, system, tools, transcript)
		if err != nil {
			log.Error("Model exchange failed", slog.Any("error", err), slog.Int("rounds", rounds))
			return domain.Answer{Text: answerUnavailableMsg, OK: false}
		}
	}

	// Ceiling reached: whatever text the last response holds is the
	// best-effort answer.
	log.Warn("Tool round ceiling reached, returning best-effort answer", slog.Int("rounds", rounds))
	metrics.AgentRounds.Observe(float64(rounds))
	return domain.Answer{Text: reply.Text, OK: true}
}

// runToolCall executes one requested tool call. A failure never aborts the
// answering attempt; its message becomes the outcome text so the model can
// report or work around it.
func (uc *AnswerQuestionUseCase) runToolCall(ctx context.Context, log *slog.Logger, call domain.ToolCall) domain.ToolOutcome {
	ctx, span := uc.tracer.Start(ctx, "tool_call",
		trace.WithAttributes(attribute.String("tool.name", call.Name)))
	defer span.End()

	result, err := uc.catalog.Invoke(ctx, call.Name, call.Args)
	if err != nil {
		log.Warn("Tool call failed, surfacing the error to the model",
			slog.String("tool", call.Name), slog.Any("error", err))
		metrics.ToolInvocationsTotal.WithLabelValues(call.Name, "error").Inc()
		return domain.ToolOutcome{Name: call.Name, Text: "Tool call failed: " + err.Error()}
	}
	metrics.ToolInvocationsTotal.WithLabelValues(call.Name, "ok").Inc()

	text := result.Text
	if len(result.Sources) > 0 {
		var b strings.Builder
		b.WriteString(text)
		b.WriteString("\nSources:\n")
		for _, src := range result.Sources {
			b.WriteString("- ")
			b.WriteString(src)
			b.WriteString("\n")
		}
		text = b.String()
	}
	return domain.ToolOutcome{Name: call.Name, Text: text}
}
