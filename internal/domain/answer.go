package domain

// Question is one inbound request for an answer, as delivered by the chat
// webhook. ReplyToken is opaque to the core; only the reply poster interprets
// it.
type Question struct {
	Text          string
	CorrelationID string
	ReplyToken    string
}

// Answer is the terminal value returned to the caller for every question.
// OK is false only for pre-flight or unrecovered failures; a best-effort
// answer produced at the round ceiling still reports OK true.
type Answer struct {
	Text string
	OK   bool
}

// TurnRole identifies who produced a transcript turn.
type TurnRole string

const (
	RoleUser  TurnRole = "user"
	RoleModel TurnRole = "model"
	RoleTool  TurnRole = "tool"
)

// ToolCall is one function-call request extracted from a model response.
type ToolCall struct {
	Name string
	Args map[string]interface{}
}

// ToolOutcome carries the result (or the error text) of one executed tool
// call back to the model. Outcomes are appended in the same order the calls
// were requested.
type ToolOutcome struct {
	Name string
	Text string
}

// AgentTurn is the minimal transcript unit exchanged with the LLM: a user
// question, a model response possibly containing tool calls, or a batch of
// tool outcomes. The transcript lives for one question only.
type AgentTurn struct {
	Role     TurnRole
	Text     string
	Calls    []ToolCall
	Outcomes []ToolOutcome
}

// ModelReply is one model response as seen by the agent loop: extractable
// text plus zero or more requested tool calls.
type ModelReply struct {
	Text  string
	Calls []ToolCall
}
