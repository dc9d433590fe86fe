package service

import (
	"fmt"
	"strings"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

// SanitizeMessages fixes orphan tool-call blocks in a message slice. An
// orphan is an assistant message whose ToolCalls have no subsequent tool
// result, which can happen after summarization or error recovery; most
// provider APIs reject such histories outright.
func SanitizeMessages(messages []entity.Message) []entity.Message {
	if len(messages) == 0 {
		return messages
	}

	resultIDs := make(map[string]bool)
	for _, m := range messages {
		if m.Role == entity.RoleTool && m.ToolResult != nil {
			resultIDs[m.ToolResult.CallID] = true
		}
	}

	out := make([]entity.Message, len(messages))
	copy(out, messages)

	// Every assistant message with unanswered calls, the most recent one
	// included, gets its calls stripped: a provider rejects a history that
	// holds a tool call with no matching result.
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].Role != entity.RoleAssistant || len(out[i].ToolCalls) == 0 {
			continue
		}
		answered := true
		for _, tc := range out[i].ToolCalls {
			if !resultIDs[tc.ID] {
				answered = false
				break
			}
		}
		if !answered {
			out[i].ToolCalls = nil
		}
	}
	return out
}

// TruncateOutput trims tool output to maxChars, breaking on a newline
// near the limit when one exists and appending a notice.
func TruncateOutput(output string, maxChars int) string {
	if maxChars <= 0 || len(output) <= maxChars {
		return output
	}

	breakAt := maxChars
	if lastNewline := strings.LastIndex(output[:maxChars], "\n"); lastNewline > maxChars*3/4 {
		breakAt = lastNewline
	}

	remaining := len(output) - breakAt
	return fmt.Sprintf("%s\n\n[... truncated %d characters. Use read_file with line ranges for full content.]",
		output[:breakAt], remaining)
}
