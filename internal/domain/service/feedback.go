package service

import (
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FeedbackType classifies what a tool's output tells us about the
// attempt, beyond the bare success flag.
type FeedbackType int

const (
	FeedbackSuccess FeedbackType = iota
	FeedbackBuildFailure
	FeedbackTestFailure
	FeedbackRuntimeError
	FeedbackTimeout
	FeedbackPermissionDenied
)

func (f FeedbackType) String() string {
	switch f {
	case FeedbackSuccess:
		return "success"
	case FeedbackBuildFailure:
		return "build_failure"
	case FeedbackTestFailure:
		return "test_failure"
	case FeedbackRuntimeError:
		return "runtime_error"
	case FeedbackTimeout:
		return "timeout"
	case FeedbackPermissionDenied:
		return "permission_denied"
	default:
		return "unknown"
	}
}

// RetryKind is the analyzer's decision about what the loop should do
// after a failed tool call.
type RetryKind int

const (
	RetryNone RetryKind = iota // success, nothing to do
	RetryImmediate
	RetryModify      // retry with the attached suggestion applied
	RetryAlternative // try the attached alternative tool/approach
	RetryGiveUp
)

// RetryStrategy is a tagged decision: Kind selects which of the payload
// fields is meaningful.
type RetryStrategy struct {
	Kind        RetryKind
	Suggestion  string // RetryModify
	Alternative string // RetryAlternative
	Reason      string // RetryGiveUp
}

// ClassifyFeedback examines a finished tool call and assigns a
// FeedbackType. Classification is content-aware but deliberately
// shallow: the model does the real reasoning, this just routes the
// retry decision.
func ClassifyFeedback(toolName, output string, success bool) FeedbackType {
	if success {
		return FeedbackSuccess
	}
	lower := strings.ToLower(output)

	switch {
	case strings.Contains(lower, "permission denied") ||
		strings.Contains(lower, "denied by permission") ||
		strings.Contains(lower, "requires approval") ||
		strings.Contains(lower, "refused:"):
		return FeedbackPermissionDenied
	case strings.Contains(lower, "timed out") ||
		strings.Contains(lower, "timeout") ||
		strings.Contains(lower, "deadline exceeded"):
		return FeedbackTimeout
	case strings.Contains(lower, "compilation failed") ||
		strings.Contains(lower, "build failed") ||
		strings.Contains(lower, "cannot find package") ||
		strings.Contains(lower, "undefined:") ||
		strings.Contains(lower, "syntax error"):
		return FeedbackBuildFailure
	case strings.Contains(lower, "--- fail") ||
		strings.Contains(lower, "test failed") ||
		strings.Contains(lower, "assertion"):
		return FeedbackTestFailure
	default:
		return FeedbackRuntimeError
	}
}

// FeedbackAnalyzer turns feedback classifications into retry decisions,
// bounded by a per-tool retry counter so one stubborn tool cannot spin
// the loop forever.
type FeedbackAnalyzer struct {
	mu         sync.Mutex
	maxRetries int
	attempts   map[string]int // tool name -> failed attempts this run
	logger     *zap.Logger
}

func NewFeedbackAnalyzer(maxRetries int, logger *zap.Logger) *FeedbackAnalyzer {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	return &FeedbackAnalyzer{
		maxRetries: maxRetries,
		attempts:   make(map[string]int),
		logger:     logger,
	}
}

// Analyze decides the retry strategy for a finished tool call. Failed
// calls increment the tool's attempt counter; once the counter passes
// the maximum, every further failure for that tool is a GiveUp.
func (a *FeedbackAnalyzer) Analyze(toolName string, feedback FeedbackType) RetryStrategy {
	if feedback == FeedbackSuccess {
		a.mu.Lock()
		delete(a.attempts, toolName)
		a.mu.Unlock()
		return RetryStrategy{Kind: RetryNone}
	}

	a.mu.Lock()
	a.attempts[toolName]++
	attempts := a.attempts[toolName]
	a.mu.Unlock()

	if attempts > a.maxRetries {
		a.logger.Info("feedback analyzer giving up on tool",
			zap.String("tool", toolName),
			zap.Int("attempts", attempts),
		)
		return RetryStrategy{
			Kind:   RetryGiveUp,
			Reason: fmt.Sprintf("%s failed %d times; stop retrying and report the problem to the user", toolName, attempts),
		}
	}

	switch feedback {
	case FeedbackPermissionDenied:
		// Retrying an identical denied call cannot succeed.
		return RetryStrategy{
			Kind:   RetryGiveUp,
			Reason: "the call was denied by permission rules; ask the user to approve it or choose another approach",
		}
	case FeedbackTimeout:
		return RetryStrategy{
			Kind:       RetryModify,
			Suggestion: "the command timed out; narrow its scope or run it as a background task via the task tool",
		}
	case FeedbackBuildFailure:
		return RetryStrategy{
			Kind:       RetryModify,
			Suggestion: "fix the reported compile errors before re-running the build",
		}
	case FeedbackTestFailure:
		return RetryStrategy{
			Kind:       RetryModify,
			Suggestion: "read the failing test output and fix the code under test, then re-run only the failing tests",
		}
	default: // FeedbackRuntimeError
		if attempts == 1 {
			return RetryStrategy{Kind: RetryImmediate}
		}
		return RetryStrategy{
			Kind:        RetryAlternative,
			Alternative: "a different tool or a simpler command that achieves the same step",
		}
	}
}

// Reset clears all per-tool counters (call at the start of each run).
func (a *FeedbackAnalyzer) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempts = make(map[string]int)
}

// EnrichToolResult appends the analyzer's suggestion to a failed tool
// result so the model sees the advice inline with the failure, which is
// how the decision actually reaches the model.
func EnrichToolResult(output string, strategy RetryStrategy) string {
	switch strategy.Kind {
	case RetryModify:
		return output + "\n[HINT] " + strategy.Suggestion
	case RetryAlternative:
		return output + "\n[HINT] Consider " + strategy.Alternative + "."
	case RetryGiveUp:
		return output + "\n[HINT] " + strategy.Reason
	default:
		return output
	}
}
