package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

func TestSanitizeMessages_StripsOrphanCalls(t *testing.T) {
	messages := []entity.Message{
		{Role: entity.RoleUser, Content: "hi"},
		{Role: entity.RoleAssistant, ToolCalls: []entity.ToolCall{{ID: "t1", Name: "bash"}}},
		// No tool result for t1 — summarization ate it.
	}

	out := SanitizeMessages(messages)
	if len(out[1].ToolCalls) != 0 {
		t.Fatal("orphan tool calls must be stripped")
	}
	// Original untouched.
	if len(messages[1].ToolCalls) != 1 {
		t.Fatal("sanitize must not mutate its input")
	}
}

func TestSanitizeMessages_AnsweredCallsSurvive(t *testing.T) {
	messages := []entity.Message{
		{Role: entity.RoleAssistant, ToolCalls: []entity.ToolCall{{ID: "t1", Name: "bash"}}},
		{Role: entity.RoleTool, ToolResult: &entity.ToolResultRef{CallID: "t1", Content: "ok"}},
	}
	out := SanitizeMessages(messages)
	if len(out[0].ToolCalls) != 1 {
		t.Fatal("answered calls must survive sanitation")
	}
}

func TestTruncateOutput(t *testing.T) {
	long := strings.Repeat("line\n", 100)
	out := TruncateOutput(long, 100)
	if len(out) >= len(long) {
		t.Fatal("output should shrink")
	}
	if !strings.Contains(out, "truncated") {
		t.Fatal("truncation must be announced")
	}
	if TruncateOutput("short", 100) != "short" {
		t.Fatal("short output passes through")
	}
}

func TestClassifyError_RetryableKinds(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
	}{
		{fmt.Errorf("429 too many requests"), true},
		{fmt.Errorf("503 service unavailable"), true},
		{fmt.Errorf("connection reset by peer"), true},
		{fmt.Errorf("401 unauthorized"), false},
		{fmt.Errorf("400 invalid_request: schema mismatch"), false},
		{fmt.Errorf("something entirely novel"), false},
		{context.Canceled, false},
	}
	for _, tc := range cases {
		got := ClassifyError(tc.err, "p", "m")
		if got.IsRetryable() != tc.retryable {
			t.Errorf("ClassifyError(%v).IsRetryable() = %v (kind %v), want %v",
				tc.err, got.IsRetryable(), got.Kind, tc.retryable)
		}
	}
}

func TestClassifyError_PassThrough(t *testing.T) {
	orig := &LLMError{Kind: ErrKindAuth, Message: "bad key"}
	wrapped := fmt.Errorf("outer: %w", orig)
	if got := ClassifyError(wrapped, "p", "m"); got != orig {
		t.Fatal("already-classified errors pass through")
	}
	if !errors.Is(wrapped, error(orig)) {
		t.Fatal("wrapping must preserve the chain")
	}
}

func TestIsContextOverflowError(t *testing.T) {
	if !IsContextOverflowError(fmt.Errorf("maximum context length is 128000 tokens")) {
		t.Fatal("overflow phrasing should match")
	}
	if IsContextOverflowError(fmt.Errorf("disk full")) {
		t.Fatal("unrelated errors must not match")
	}
}
