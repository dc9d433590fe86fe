package service

import (
	"testing"

	"go.uber.org/zap"
)

func TestClassifyFeedback(t *testing.T) {
	cases := []struct {
		output  string
		success bool
		want    FeedbackType
	}{
		{"all good", true, FeedbackSuccess},
		{"denied by permission rules", false, FeedbackPermissionDenied},
		{"refused: fork bomb", false, FeedbackPermissionDenied},
		{"command timed out after 120s", false, FeedbackTimeout},
		{"main.go:10: undefined: Foo", false, FeedbackBuildFailure},
		{"--- FAIL: TestThing (0.01s)", false, FeedbackTestFailure},
		{"panic: index out of range", false, FeedbackRuntimeError},
	}
	for _, tc := range cases {
		if got := ClassifyFeedback("bash", tc.output, tc.success); got != tc.want {
			t.Errorf("ClassifyFeedback(%q) = %v, want %v", tc.output, got, tc.want)
		}
	}
}

func TestFeedbackAnalyzer_GivesUpAfterMaxRetries(t *testing.T) {
	a := NewFeedbackAnalyzer(2, zap.NewNop())

	first := a.Analyze("bash", FeedbackRuntimeError)
	if first.Kind != RetryImmediate {
		t.Fatalf("first failure retries immediately, got %v", first.Kind)
	}
	second := a.Analyze("bash", FeedbackRuntimeError)
	if second.Kind != RetryAlternative {
		t.Fatalf("second failure tries an alternative, got %v", second.Kind)
	}
	third := a.Analyze("bash", FeedbackRuntimeError)
	if third.Kind != RetryGiveUp {
		t.Fatalf("beyond the retry ceiling the analyzer gives up, got %v", third.Kind)
	}
}

func TestFeedbackAnalyzer_SuccessResetsCounter(t *testing.T) {
	a := NewFeedbackAnalyzer(1, zap.NewNop())

	a.Analyze("bash", FeedbackRuntimeError)
	if s := a.Analyze("bash", FeedbackSuccess); s.Kind != RetryNone {
		t.Fatalf("success yields no retry, got %v", s.Kind)
	}
	// Counter was cleared; the next failure is a fresh first attempt.
	if s := a.Analyze("bash", FeedbackRuntimeError); s.Kind != RetryImmediate {
		t.Fatalf("counter should reset on success, got %v", s.Kind)
	}
}

func TestFeedbackAnalyzer_PermissionDeniedNeverRetries(t *testing.T) {
	a := NewFeedbackAnalyzer(3, zap.NewNop())
	if s := a.Analyze("bash", FeedbackPermissionDenied); s.Kind != RetryGiveUp {
		t.Fatalf("denied calls must not retry, got %v", s.Kind)
	}
}

func TestEnrichToolResult(t *testing.T) {
	out := EnrichToolResult("failed", RetryStrategy{Kind: RetryModify, Suggestion: "narrow the scope"})
	if out != "failed\n[HINT] narrow the scope" {
		t.Fatalf("unexpected enrichment: %q", out)
	}
	if EnrichToolResult("ok", RetryStrategy{Kind: RetryNone}) != "ok" {
		t.Fatal("no-retry results pass through unchanged")
	}
}
