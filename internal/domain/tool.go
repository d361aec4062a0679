package domain

// ToolDescriptor represents a callable retrieval tool discovered from the
// MCP endpoint, normalized into the declaration form the LLM expects.
// Based on MCP Spec 2025-03-26: https://modelcontextprotocol.io/specification/2025-03-26
type ToolDescriptor struct {
	// Name MUST be unique within the catalog; the model requests a call by
	// this exact name.
	Name string `json:"name"`

	// Description provides a natural language explanation of what the tool
	// does. This is crucial for the LLM to understand when to use the tool.
	Description string `json:"description"`

	// InputSchema is the tool's parameter schema in JSON Schema form, kept
	// as a raw map so it can be passed through to the model unchanged.
	InputSchema map[string]interface{} `json:"input_schema"`
}

// ToolResult is the post-processed outcome of one tool invocation.
// It is created per invocation and never persisted.
type ToolResult struct {
	// Text is the concatenation of all text segments returned by the tool,
	// each followed by a blank-line separator.
	Text string `json:"text"`

	// Sources holds every distinct http/https URL found in markdown-style
	// links within the returned text. Duplicates are removed; ordering
	// among survivors carries no meaning.
	Sources []string `json:"sources,omitempty"`
}
