package context

import (
	"fmt"
	"strings"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

// MaskPolicy decides which prior tool results get replaced with a short
// placeholder as the conversation grows, without touching the actual
// message history — masking is presentation-time, applied right before a
// request is sent to a provider.
type MaskPolicy struct {
	// KeepRecentToolResults is how many of the most recent tool results
	// (by position, scanning from the end) are left untouched.
	KeepRecentToolResults int
	// MaskReplacement is the placeholder prefix; the original content
	// length is appended per masked entry for diagnostics.
	MaskReplacement string
}

func DefaultMaskPolicy() MaskPolicy {
	return MaskPolicy{
		KeepRecentToolResults: 3,
		MaskReplacement:       "[Previous output truncated]",
	}
}

// Apply returns a copy of messages with all but the most recent
// KeepRecentToolResults tool-result messages replaced by
// "<placeholder> (N chars)", N being the original content length.
// Entries already carrying the placeholder are left as they are, so
// re-applying the same policy is a no-op and the recorded length always
// refers to the real output. The original slice and its Message values
// are never mutated.
func (p MaskPolicy) Apply(messages []entity.Message) []entity.Message {
	toolResultIdx := make([]int, 0)
	for i, m := range messages {
		if m.Role == entity.RoleTool {
			toolResultIdx = append(toolResultIdx, i)
		}
	}
	maskCount := len(toolResultIdx) - p.KeepRecentToolResults
	if maskCount <= 0 {
		return messages
	}

	masked := make([]entity.Message, len(messages))
	copy(masked, messages)
	for _, i := range toolResultIdx[:maskCount] {
		m := masked[i]
		if m.ToolResult != nil && !strings.HasPrefix(m.ToolResult.Content, p.MaskReplacement) {
			ref := *m.ToolResult
			ref.Content = fmt.Sprintf("%s (%d chars)", p.MaskReplacement, len(m.ToolResult.Content))
			m.ToolResult = &ref
		}
		masked[i] = m
	}
	return masked
}
