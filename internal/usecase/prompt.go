package usecase

import "strings"

// answerPolicy is the fixed portion of the system instruction. The scope
// document, when present, is appended verbatim by BuildSystemPrompt.
const answerPolicy = `You are a documentation assistant answering questions posted in a chat channel.

Rules:
- Use the available search tools to find passages relevant to the question. Do not answer from memory alone.
- Base your answer only on evidence returned by the tools. If the tools return nothing useful, say that you could not find an answer.
- Cite the source URLs of the passages you used at the end of your answer.
- Answer in the same language the question was asked in.
- Keep the answer short and to the point.`

// BuildSystemPrompt composes the system instruction from the fixed policy
// text and the optional scope document. Pure and deterministic: same input,
// same output, no I/O.
func BuildSystemPrompt(scopeDoc string) string {
	if strings.TrimSpace(scopeDoc) == "" {
		return answerPolicy
	}
	var b strings.Builder
	b.WriteString(answerPolicy)
	b.WriteString("\n\nThe documentation covers the following scope. Prefer searches within it:\n\n")
	b.WriteString(scopeDoc)
	return b.String()
}
