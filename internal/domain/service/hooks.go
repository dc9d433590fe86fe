package service

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/agentcore/agentcore/internal/domain/gateway"
)

// AgentHook is the lifecycle extension point for an agent loop run.
// All methods are optional to override meaningfully; embed NoOpHook and
// implement only what you need. Hooks run synchronously and must return
// quickly. BeforeToolCall and AfterToolCall run on the tool-dispatch
// goroutines, so with MaxParallelTools > 1 they can run concurrently;
// the other methods run on the loop's goroutine.
type AgentHook interface {
	BeforeLLMCall(ctx context.Context, req *gateway.CompleteRequest, step int)
	AfterLLMCall(ctx context.Context, resp *gateway.CompleteResponse, step int)
	// BeforeToolCall returning false vetoes the call.
	BeforeToolCall(ctx context.Context, toolName string, args json.RawMessage) bool
	AfterToolCall(ctx context.Context, toolName string, output string, success bool)
	OnError(ctx context.Context, err error, step int)
	OnComplete(ctx context.Context, result *RunResult)
	OnStateChange(from, to AgentState, snap StateSnapshot)
}

// NoOpHook implements AgentHook with no-ops; embed it to override
// selectively.
type NoOpHook struct{}

func (NoOpHook) BeforeLLMCall(context.Context, *gateway.CompleteRequest, int)   {}
func (NoOpHook) AfterLLMCall(context.Context, *gateway.CompleteResponse, int)   {}
func (NoOpHook) BeforeToolCall(context.Context, string, json.RawMessage) bool  { return true }
func (NoOpHook) AfterToolCall(context.Context, string, string, bool)           {}
func (NoOpHook) OnError(context.Context, error, int)                          {}
func (NoOpHook) OnComplete(context.Context, *RunResult)                       {}
func (NoOpHook) OnStateChange(AgentState, AgentState, StateSnapshot)          {}

// HookChain runs multiple hooks in registration order; any hook
// returning false from BeforeToolCall vetoes the call.
type HookChain struct {
	hooks []AgentHook
}

func NewHookChain(hooks ...AgentHook) *HookChain { return &HookChain{hooks: hooks} }

func (c *HookChain) Add(h AgentHook) { c.hooks = append(c.hooks, h) }

func (c *HookChain) BeforeLLMCall(ctx context.Context, req *gateway.CompleteRequest, step int) {
	for _, h := range c.hooks {
		h.BeforeLLMCall(ctx, req, step)
	}
}

func (c *HookChain) AfterLLMCall(ctx context.Context, resp *gateway.CompleteResponse, step int) {
	for _, h := range c.hooks {
		h.AfterLLMCall(ctx, resp, step)
	}
}

func (c *HookChain) BeforeToolCall(ctx context.Context, toolName string, args json.RawMessage) bool {
	for _, h := range c.hooks {
		if !h.BeforeToolCall(ctx, toolName, args) {
			return false
		}
	}
	return true
}

func (c *HookChain) AfterToolCall(ctx context.Context, toolName, output string, success bool) {
	for _, h := range c.hooks {
		h.AfterToolCall(ctx, toolName, output, success)
	}
}

func (c *HookChain) OnError(ctx context.Context, err error, step int) {
	for _, h := range c.hooks {
		h.OnError(ctx, err, step)
	}
}

func (c *HookChain) OnComplete(ctx context.Context, result *RunResult) {
	for _, h := range c.hooks {
		h.OnComplete(ctx, result)
	}
}

func (c *HookChain) OnStateChange(from, to AgentState, snap StateSnapshot) {
	for _, h := range c.hooks {
		h.OnStateChange(from, to, snap)
	}
}

var _ AgentHook = (*HookChain)(nil)

// MetricsHook counts calls for observability, the simplest useful
// built-in hook. ToolCallCount is updated under a mutex because tool
// hooks can run concurrently.
type MetricsHook struct {
	NoOpHook
	LLMCallCount  int
	ToolCallCount int
	ErrorCount    int
	mu            sync.Mutex
}

func (h *MetricsHook) AfterLLMCall(context.Context, *gateway.CompleteResponse, int) { h.LLMCallCount++ }
func (h *MetricsHook) AfterToolCall(context.Context, string, string, bool) {
	h.mu.Lock()
	h.ToolCallCount++
	h.mu.Unlock()
}
func (h *MetricsHook) OnError(context.Context, error, int)                          { h.ErrorCount++ }

// ReflexionHook is the lightweight, hook-shaped cousin of
// ReflexionAgent: it records the last error and, on request, asks the
// model for a short diagnosis to prepend to the next attempt's system
// prompt.
type ReflexionHook struct {
	NoOpHook
	Complete  func(ctx context.Context, prompt string) (string, error)
	lastError error
	reflection string
}

func (h *ReflexionHook) OnError(_ context.Context, err error, _ int) {
	h.lastError = err
}

// Reflect asks the model to diagnose the last failure, if any, storing
// the result for NextAttemptPreamble. Call between attempts, not inside
// the loop itself.
func (h *ReflexionHook) Reflect(ctx context.Context, transcript string) error {
	if h.lastError == nil || h.Complete == nil {
		return nil
	}
	prompt := "The previous attempt failed with: " + h.lastError.Error() +
		"\n\nTranscript:\n" + transcript +
		"\n\nDiagnose what went wrong and what to do differently next attempt, in two sentences."
	text, err := h.Complete(ctx, prompt)
	if err != nil {
		return err
	}
	h.reflection = text
	return nil
}

// NextAttemptPreamble returns the reflection to prepend to the next
// attempt's system prompt, or empty if no failure has occurred yet.
func (h *ReflexionHook) NextAttemptPreamble() string {
	if h.reflection == "" {
		return ""
	}
	return "Note from a previous failed attempt: " + h.reflection
}
