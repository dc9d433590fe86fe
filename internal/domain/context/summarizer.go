package context

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentcore/agentcore/internal/domain/entity"
	agenterrors "github.com/agentcore/agentcore/pkg/errors"
)

// Summarizer condenses the head of a conversation into a single
// <state_snapshot> message when the history grows past a caller-chosen
// trigger, preserving a tail of the most recent messages verbatim.
// Summarization is an LLM call, so it can fail; failure must degrade
// gracefully rather than lose history.
type Summarizer struct {
	// Complete performs the actual LLM call: it receives the rendered
	// head-summarization prompt and returns the model's summary text.
	Complete func(ctx context.Context, prompt string) (string, error)
	// KeepTailMessages is how many of the most recent messages are kept
	// verbatim instead of being folded into the summary.
	KeepTailMessages int
}

func NewSummarizer(complete func(ctx context.Context, prompt string) (string, error), keepTail int) *Summarizer {
	if keepTail <= 0 {
		keepTail = 4
	}
	return &Summarizer{Complete: complete, KeepTailMessages: keepTail}
}

// Summarize splits history into a head (everything but the tail) and a
// tail, asks Complete to summarize the head, and on success replaces the
// head with a single system message carrying the <state_snapshot>
// summary while leaving the tail untouched. On failure, the history is
// left unmodified and the error is returned — the caller (the agent
// loop's guardrails) decides whether to retry, drop the oldest
// non-tail messages instead, or proceed over budget for one more turn.
func (s *Summarizer) Summarize(ctx context.Context, history *entity.MessageHistory) error {
	all := history.Messages()
	if len(all) <= s.KeepTailMessages {
		return nil
	}
	head := all[:len(all)-s.KeepTailMessages]
	tail := all[len(all)-s.KeepTailMessages:]

	prompt := renderSummarizationPrompt(head)
	summary, err := s.Complete(ctx, prompt)
	if err != nil {
		return agenterrors.Wrap(agenterrors.CodeProvider, "summarization failed", err)
	}

	rebuilt := make([]entity.Message, 0, len(tail)+1)
	rebuilt = append(rebuilt, entity.Message{
		Role:    entity.RoleSystem,
		Content: fmt.Sprintf("<state_snapshot>\n%s\n</state_snapshot>", summary),
	})
	rebuilt = append(rebuilt, tail...)

	history.TakeMessages()
	for _, m := range rebuilt {
		switch m.Role {
		case entity.RoleSystem:
			history.AddSystem(m.Content)
		case entity.RoleUser:
			history.AddUser(m.Content)
		case entity.RoleAssistant:
			history.AddAssistant(m.Content, m.ToolCalls)
		case entity.RoleTool:
			if m.ToolResult != nil {
				_ = history.AddToolResult(m.ToolResult.CallID, m.ToolResult.Content, m.ToolResult.IsError)
			}
		}
	}
	return nil
}

// renderSummarizationPrompt builds the head-summarization instruction,
// asking the model to preserve task state, decisions made, and files
// touched, since those are what later turns actually reference.
func renderSummarizationPrompt(head []entity.Message) string {
	var b strings.Builder
	b.WriteString("Summarize the following conversation so far. Preserve: the original task, ")
	b.WriteString("decisions already made, files read or modified, and any pending TODOs. ")
	b.WriteString("Be concise; omit exact tool output bodies.\n\n")
	for _, m := range head {
		switch m.Role {
		case entity.RoleUser:
			fmt.Fprintf(&b, "User: %s\n", m.Content)
		case entity.RoleAssistant:
			fmt.Fprintf(&b, "Assistant: %s\n", m.Content)
			for _, tc := range m.ToolCalls {
				fmt.Fprintf(&b, "  [called %s]\n", tc.Name)
			}
		case entity.RoleTool:
			if m.ToolResult != nil {
				status := "ok"
				if m.ToolResult.IsError {
					status = "error"
				}
				fmt.Fprintf(&b, "  [tool result (%s)]\n", status)
			}
		case entity.RoleSystem:
			fmt.Fprintf(&b, "System: %s\n", m.Content)
		}
	}
	return b.String()
}
