package context

import (
	"fmt"
	"strings"
	"testing"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

const seedContent = "tool output with real content"

func seedMessages(toolResults int) []entity.Message {
	var out []entity.Message
	out = append(out, entity.Message{Role: entity.RoleUser, Content: "start"})
	for i := 0; i < toolResults; i++ {
		out = append(out, entity.Message{
			Role:       entity.RoleTool,
			ToolResult: &entity.ToolResultRef{CallID: "c", Content: seedContent},
		})
	}
	return out
}

func TestMaskPolicy_WindowPreserved(t *testing.T) {
	p := MaskPolicy{KeepRecentToolResults: 10, MaskReplacement: "[masked]"}
	messages := seedMessages(15)

	masked := p.Apply(messages)

	want := fmt.Sprintf("[masked] (%d chars)", len(seedContent))
	maskedCount := 0
	for _, m := range masked {
		if m.Role == entity.RoleTool && strings.HasPrefix(m.ToolResult.Content, "[masked]") {
			if m.ToolResult.Content != want {
				t.Fatalf("placeholder must carry the original length: got %q, want %q",
					m.ToolResult.Content, want)
			}
			maskedCount++
		}
	}
	if maskedCount != 5 {
		t.Fatalf("expected oldest 5 masked, got %d", maskedCount)
	}

	// The most recent 10 are intact.
	tail := masked[len(masked)-10:]
	for i, m := range tail {
		if m.ToolResult.Content != seedContent {
			t.Fatalf("recent observation %d was masked", i)
		}
	}
}

func TestMaskPolicy_NoOpUnderWindow(t *testing.T) {
	p := MaskPolicy{KeepRecentToolResults: 10, MaskReplacement: "[masked]"}
	messages := seedMessages(7)

	masked := p.Apply(messages)
	for i := range masked {
		if masked[i].Role == entity.RoleTool && masked[i].ToolResult.Content != seedContent {
			t.Fatal("no message should be masked under the window")
		}
	}
}

func TestMaskPolicy_Idempotent(t *testing.T) {
	p := MaskPolicy{KeepRecentToolResults: 3, MaskReplacement: "[masked]"}
	messages := seedMessages(8)

	once := p.Apply(messages)
	twice := p.Apply(once)

	if len(once) != len(twice) {
		t.Fatal("double masking changed message count")
	}
	for i := range once {
		a, b := once[i], twice[i]
		if a.Role == entity.RoleTool && a.ToolResult.Content != b.ToolResult.Content {
			t.Fatalf("double masking changed message %d: %q vs %q",
				i, a.ToolResult.Content, b.ToolResult.Content)
		}
	}
	// The recorded length still names the original output, not the
	// placeholder itself.
	want := fmt.Sprintf("[masked] (%d chars)", len(seedContent))
	if twice[1].ToolResult.Content != want {
		t.Fatalf("re-masking corrupted the length: got %q, want %q", twice[1].ToolResult.Content, want)
	}
}

func TestMaskPolicy_OriginalUntouched(t *testing.T) {
	p := MaskPolicy{KeepRecentToolResults: 1, MaskReplacement: "[masked]"}
	messages := seedMessages(4)

	_ = p.Apply(messages)
	for i, m := range messages {
		if m.Role == entity.RoleTool && m.ToolResult.Content != seedContent {
			t.Fatalf("Apply mutated the original slice at %d", i)
		}
	}
}
