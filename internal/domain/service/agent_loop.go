// Package service drives the multi-turn agent loop and its supporting
// machinery: guardrails, feedback-driven retry, loop detection, hooks,
// and the run state machine.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/cache"
	ctxmgr "github.com/agentcore/agentcore/internal/domain/context"
	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/internal/domain/gateway"
	"github.com/agentcore/agentcore/internal/domain/tool"
)

// LLMClient is the slice of the gateway the loop needs: one-shot
// completion (used for summarization and the retry path) and streaming.
// *gateway.Router satisfies it via RouterClient.
type LLMClient interface {
	Complete(ctx context.Context, req gateway.CompleteRequest) (gateway.CompleteResponse, error)
	Stream(ctx context.Context, req gateway.CompleteRequest, events chan<- gateway.StreamEvent) error
}

// RouterClient adapts *gateway.Router to LLMClient, folding the retry
// policy into Complete so loop code never reasons about backoff.
type RouterClient struct {
	Router      *gateway.Router
	MaxAttempts int
	BaseDelay   time.Duration
}

func (c *RouterClient) Complete(ctx context.Context, req gateway.CompleteRequest) (gateway.CompleteResponse, error) {
	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := c.BaseDelay
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return c.Router.CompleteWithRetry(ctx, req, attempts, delay)
}

func (c *RouterClient) Stream(ctx context.Context, req gateway.CompleteRequest, events chan<- gateway.StreamEvent) error {
	return c.Router.Stream(ctx, req, events)
}

// AgentLoopConfig holds the knobs for one loop instance.
type AgentLoopConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int

	// MaxIterations bounds LLM round-trips per run. The final empty-text
	// summary fallback may add one extra call, so total LLM calls are at
	// most MaxIterations+1.
	MaxIterations int

	MaxOutputChars   int           // per-tool output truncation (default 30000)
	ToolTimeout      time.Duration // per-tool execution deadline
	MaxParallelTools int           // concurrent tool dispatch; results are appended in declared order regardless

	// Feedback-loop retry ceiling per tool.
	MaxToolRetries int

	// Context management.
	ContextMaxTokens int
	ContextWarnRatio float64
	ContextHardRatio float64
	MaskWindow       int // most recent tool results left unmasked

	// Loop detection.
	LoopWindowSize      int
	LoopDetectThreshold int
	LoopNameThreshold   int

	// Budgets. Zero disables.
	MaxTokenBudget int64
	MaxRunDuration time.Duration

	// TodoReminderInterval injects a plan reminder after every N tool
	// calls. Zero disables injection.
	TodoReminderInterval int
}

// DefaultAgentLoopConfig returns production defaults.
func DefaultAgentLoopConfig() AgentLoopConfig {
	return AgentLoopConfig{
		Temperature:          0.7,
		MaxIterations:        25,
		MaxOutputChars:       30_000,
		ToolTimeout:          2 * time.Minute,
		MaxParallelTools:     4,
		MaxToolRetries:       2,
		ContextMaxTokens:     128_000,
		ContextWarnRatio:     0.7,
		ContextHardRatio:     0.85,
		MaskWindow:           10,
		LoopWindowSize:       10,
		LoopDetectThreshold:  5,
		LoopNameThreshold:    8,
		TodoReminderInterval: 6,
	}
}

// RunResult is the final outcome of one loop run.
type RunResult struct {
	FinalContent string
	TotalSteps   int
	TotalTokens  int
	ModelUsed    string
	ToolsUsed    []string
}

// AgentLoop is the top-level reason→act→observe driver. The base loop
// is the ReAct cadence: each iteration streams one model turn (the
// thought plus any requested actions), executes the requested tools
// (the observations), and feeds results back; a turn with no tool
// calls is the finish signal.
type AgentLoop struct {
	llm        LLMClient
	tools      tool.Registry
	config     AgentLoopConfig
	hooks      AgentHook
	toolCache  *cache.ToolResultCache
	compactor  *ctxmgr.Compactor
	summarizer *ctxmgr.Summarizer
	maskPolicy ctxmgr.MaskPolicy
	todos      *TodoStore
	feedback   *FeedbackAnalyzer
	logger     *zap.Logger

	cancelled atomic.Bool
}

func NewAgentLoop(llm LLMClient, tools tool.Registry, config AgentLoopConfig, logger *zap.Logger) *AgentLoop {
	def := DefaultAgentLoopConfig()
	if config.MaxIterations <= 0 {
		config.MaxIterations = def.MaxIterations
	}
	if config.MaxOutputChars <= 0 {
		config.MaxOutputChars = def.MaxOutputChars
	}
	if config.ToolTimeout <= 0 {
		config.ToolTimeout = def.ToolTimeout
	}
	if config.MaxParallelTools <= 0 {
		config.MaxParallelTools = def.MaxParallelTools
	}
	if config.MaxToolRetries <= 0 {
		config.MaxToolRetries = def.MaxToolRetries
	}
	if config.ContextMaxTokens <= 0 {
		config.ContextMaxTokens = def.ContextMaxTokens
	}
	if config.ContextWarnRatio <= 0 {
		config.ContextWarnRatio = def.ContextWarnRatio
	}
	if config.ContextHardRatio <= 0 {
		config.ContextHardRatio = def.ContextHardRatio
	}
	if config.MaskWindow <= 0 {
		config.MaskWindow = def.MaskWindow
	}
	if config.LoopWindowSize <= 0 {
		config.LoopWindowSize = def.LoopWindowSize
	}
	if config.LoopDetectThreshold <= 0 {
		config.LoopDetectThreshold = def.LoopDetectThreshold
	}
	if config.LoopNameThreshold <= 0 {
		config.LoopNameThreshold = def.LoopNameThreshold
	}

	return &AgentLoop{
		llm:    llm,
		tools:  tools,
		config: config,
		hooks:  NoOpHook{},
		toolCache: cache.NewToolResultCache(30*time.Second, 100,
			[]string{"read_file", "glob", "grep"}),
		maskPolicy: ctxmgr.MaskPolicy{
			KeepRecentToolResults: config.MaskWindow,
			MaskReplacement:       "[Previous output truncated]",
		},
		todos:    NewTodoStore(),
		feedback: NewFeedbackAnalyzer(config.MaxToolRetries, logger),
		logger:   logger,
	}
}

// SetHooks replaces the hook chain.
func (a *AgentLoop) SetHooks(h AgentHook) {
	if h != nil {
		a.hooks = h
	}
}

// SetSummarizer installs the head-condensation summarizer; without one,
// over-budget histories fall back to the deterministic truncation
// summary.
func (a *AgentLoop) SetSummarizer(s *ctxmgr.Summarizer) { a.summarizer = s }

// SetCompactor shares the content-compaction arena with tools that
// store large blobs in it.
func (a *AgentLoop) SetCompactor(c *ctxmgr.Compactor) { a.compactor = c }

// Todos exposes the run's plan store for the todo tool and the host UI.
func (a *AgentLoop) Todos() *TodoStore { return a.todos }

// Cancel requests a graceful stop: the loop exits before its next
// iteration or between tool calls.
func (a *AgentLoop) Cancel() { a.cancelled.Store(true) }

// Run executes the loop for one user message against history. Events
// stream on the returned channel until it closes; the RunResult is
// fully populated only after the channel closes.
func (a *AgentLoop) Run(ctx context.Context, history *entity.MessageHistory, userMessage string) (*RunResult, <-chan entity.AgentEvent) {
	eventCh := make(chan entity.AgentEvent, 64)
	result := &RunResult{}

	a.cancelled.Store(false)
	a.feedback.Reset()
	a.toolCache.Clear()

	sm := NewStateMachine(a.logger)
	sm.OnTransition(func(from, to AgentState, snap StateSnapshot) {
		a.hooks.OnStateChange(from, to, snap)
	})

	go func() {
		defer close(eventCh)
		defer func() {
			if r := recover(); r != nil {
				a.logger.Error("agent loop panicked", zap.Any("panic", r), zap.Stack("stack"))
				err := fmt.Errorf("internal error: %v", r)
				a.emitEvent(eventCh, entity.NewErrorEvent(err))
				result.FinalContent = err.Error()
			}
		}()
		a.runLoop(ctx, history, userMessage, result, eventCh, sm)
	}()

	return result, eventCh
}

func (a *AgentLoop) runLoop(
	ctx context.Context,
	history *entity.MessageHistory,
	userMessage string,
	result *RunResult,
	eventCh chan<- entity.AgentEvent,
	sm *StateMachine,
) {
	history.AddUser(userMessage)

	loopDetector := NewLoopDetector(a.config.LoopWindowSize, a.config.LoopDetectThreshold, a.config.LoopNameThreshold, a.logger)
	contextGuard := NewContextGuard(a.config.ContextMaxTokens, a.config.ContextWarnRatio, a.config.ContextHardRatio, a.logger)
	var costGuard *CostGuard
	if a.config.MaxTokenBudget > 0 || a.config.MaxRunDuration > 0 {
		costGuard = NewCostGuard(a.config.MaxTokenBudget, a.config.MaxRunDuration, a.logger)
	}

	toolsUsedSet := make(map[string]bool)
	toolCallsSinceReminder := 0

	// Intermediate assistant narration, kept as a fallback when the
	// final turn's text comes back empty.
	var assistantTexts []string

	fail := func(step int, err error) {
		sm.RecordError()
		_ = sm.Transition(StateError)
		a.hooks.OnError(ctx, err, step)
		a.emitEvent(eventCh, entity.NewErrorEvent(err))
		result.FinalContent = fmt.Sprintf("Error: %v", err)
	}

	for step := 1; step <= a.config.MaxIterations; step++ {
		sm.SetStep(step)
		result.TotalSteps = step

		if err := ctx.Err(); err != nil || a.cancelled.Load() {
			_ = sm.Transition(StateAborted)
			a.emitEvent(eventCh, entity.NewErrorEvent(fmt.Errorf("run cancelled")))
			return
		}

		// Summarize ahead of the call when the history is over budget.
		if check := contextGuard.Check(history); check.NeedCompaction {
			_ = sm.Transition(StateCompacting)
			a.summarizeHistory(ctx, history)
		}

		a.emitEvent(eventCh, entity.NewThinkingEvent())
		if sm.State() != StateStreaming {
			_ = sm.Transition(StateStreaming)
		}

		req := gateway.CompleteRequest{
			Model:       a.config.Model,
			Messages:    a.maskPolicy.Apply(SanitizeMessages(history.Messages())),
			System:      history.SystemPrompt(),
			Tools:       a.toolSpecs(),
			MaxTokens:   a.config.MaxTokens,
			Temperature: a.config.Temperature,
		}
		a.hooks.BeforeLLMCall(ctx, &req, step)

		resp, err := a.callModel(ctx, req, eventCh)
		if err != nil {
			if IsContextOverflowError(err) {
				_ = sm.Transition(StateCompacting)
				a.summarizeHistory(ctx, history)
				_ = sm.Transition(StateStreaming)
				req.Messages = a.maskPolicy.Apply(SanitizeMessages(history.Messages()))
				resp, err = a.callModel(ctx, req, eventCh)
			}
			if err != nil {
				fail(step, err)
				return
			}
		}

		tokens := resp.Usage.InputTokens + resp.Usage.OutputTokens
		result.TotalTokens += tokens
		result.ModelUsed = a.config.Model
		sm.AddTokens(tokens)
		sm.SetModel(a.config.Model)

		if tokens > 0 {
			a.emitEvent(eventCh, entity.NewUsageEvent(resp.Usage.InputTokens, resp.Usage.OutputTokens))
		}
		if costGuard != nil {
			if err := costGuard.AddTokens(int64(tokens)); err != nil {
				fail(step, err)
				return
			}
			if err := costGuard.CheckBudget(); err != nil {
				fail(step, err)
				return
			}
		}

		a.hooks.AfterLLMCall(ctx, &resp, step)

		cleaned := strings.TrimSpace(StripReasoningTags(resp.Text))
		if cleaned != "" {
			assistantTexts = append(assistantTexts, cleaned)
		}

		// A reasoning segment opening with the finish marker ends the
		// run with the bracketed content as the final answer, even if
		// the same turn also requested tools.
		if answer, ok := parseFinishMarker(cleaned); ok {
			history.AddAssistant(answer, nil)
			result.FinalContent = answer
			_ = sm.Transition(StateComplete)
			a.hooks.OnComplete(ctx, result)
			a.emitEvent(eventCh, entity.NewDoneEvent(answer))
			a.collectToolsUsed(result, toolsUsedSet)
			return
		}

		if len(resp.ToolCalls) == 0 {
			finalContent := strings.TrimSpace(StripReasoningTags(resp.Text))

			// Some models spend all their words narrating intermediate
			// steps and return an empty final turn; ask once for a
			// proper summary before falling back to the narration.
			if finalContent == "" && step > 1 {
				history.AddAssistant("Done with tool calls.", nil)
				history.AddUser("Summarize what you just did and the final result, briefly.")
				summaryReq := req
				summaryReq.Messages = SanitizeMessages(history.Messages())
				summaryReq.Tools = nil
				if summaryResp, serr := a.llm.Complete(ctx, summaryReq); serr == nil {
					finalContent = strings.TrimSpace(StripReasoningTags(summaryResp.Text))
				}
			}
			if finalContent == "" && len(assistantTexts) > 0 {
				finalContent = assistantTexts[len(assistantTexts)-1]
			}

			history.AddAssistant(finalContent, nil)
			result.FinalContent = finalContent
			_ = sm.Transition(StateComplete)
			a.hooks.OnComplete(ctx, result)
			a.emitEvent(eventCh, entity.NewDoneEvent(finalContent))
			a.collectToolsUsed(result, toolsUsedSet)
			return
		}

		history.AddAssistant(resp.Text, resp.ToolCalls)
		_ = sm.Transition(StateToolExec)

		var reflectionPrompts []string
		for _, tc := range resp.ToolCalls {
			if prompt := loopDetector.RecordName(tc.Name); prompt != "" {
				reflectionPrompts = append(reflectionPrompts, prompt)
			}
			if prompt := loopDetector.Record(tc.Name, string(tc.Arguments)); prompt != "" {
				reflectionPrompts = append(reflectionPrompts, prompt)
			}
		}

		execResults := a.executeToolCalls(ctx, resp.ToolCalls, eventCh, sm)

		// Results append in declared call order even though dispatch may
		// overlap, so observable history order matches the model's
		// request order.
		for _, r := range execResults {
			toolsUsedSet[r.call.Name] = true
			if err := history.AddToolResult(r.call.ID, r.output, !r.success); err != nil {
				a.logger.Warn("dropping tool result with unknown call id",
					zap.String("tool", r.call.Name), zap.Error(err))
			}
			toolCallsSinceReminder++
		}

		if a.config.TodoReminderInterval > 0 && toolCallsSinceReminder >= a.config.TodoReminderInterval {
			toolCallsSinceReminder = 0
			if reminder := a.todos.TodoReminder(); reminder != "" {
				history.AddSystem(reminder)
			}
		}

		for _, prompt := range reflectionPrompts {
			history.AddSystem(prompt)
		}

		if check := contextGuard.Check(history); check.NeedCompaction {
			_ = sm.Transition(StateCompacting)
			a.summarizeHistory(ctx, history)
		}
	}

	// Iteration budget exhausted with tools still being requested.
	final := "Stopped: reached the iteration limit before the task finished."
	if len(assistantTexts) > 0 {
		final = assistantTexts[len(assistantTexts)-1] + "\n\n" + final
	}
	result.FinalContent = final
	if !sm.IsTerminal() {
		_ = sm.Transition(StateComplete)
	}
	a.hooks.OnComplete(ctx, result)
	a.emitEvent(eventCh, entity.NewDoneEvent(final))
	a.collectToolsUsed(result, toolsUsedSet)
}

// parseFinishMarker recognizes the literal prefix "finish[" (case
// sensitive, after leading whitespace is trimmed) and returns the
// content up to the matching closing bracket.
func parseFinishMarker(text string) (string, bool) {
	const marker = "finish["
	if !strings.HasPrefix(text, marker) {
		return "", false
	}
	rest := text[len(marker):]
	if end := strings.LastIndex(rest, "]"); end >= 0 {
		return strings.TrimSpace(rest[:end]), true
	}
	// An unclosed marker still finishes; take everything after it.
	return strings.TrimSpace(rest), true
}

func (a *AgentLoop) collectToolsUsed(result *RunResult, set map[string]bool) {
	for name := range set {
		result.ToolsUsed = append(result.ToolsUsed, name)
	}
}

// callModel streams one model turn, accumulating text, tool calls, and
// usage while forwarding text deltas as events. Streams are never
// retried mid-flight; a failed stream falls back to the non-streaming
// Complete path, whose retry policy lives in the client.
func (a *AgentLoop) callModel(ctx context.Context, req gateway.CompleteRequest, eventCh chan<- entity.AgentEvent) (gateway.CompleteResponse, error) {
	events := make(chan gateway.StreamEvent, 32)
	streamErr := make(chan error, 1)

	go func() {
		streamErr <- a.llm.Stream(ctx, req, events)
		close(events)
	}()

	var resp gateway.CompleteResponse
	var text strings.Builder
	sawAny := false

	for ev := range events {
		sawAny = true
		switch ev.Type {
		case gateway.StreamText:
			text.WriteString(ev.DeltaText)
			a.emitEvent(eventCh, entity.NewTextEvent(ev.DeltaText))
		case gateway.StreamThinking:
			a.emitEvent(eventCh, entity.NewThinkingEvent())
		case gateway.StreamToolCall:
			if ev.ToolCall != nil {
				resp.ToolCalls = append(resp.ToolCalls, *ev.ToolCall)
			}
		case gateway.StreamUsage:
			resp.Usage = ev.Usage
		case gateway.StreamError:
			if ev.Err != nil {
				<-streamErr
				return gateway.CompleteResponse{}, ev.Err
			}
		}
	}

	if err := <-streamErr; err != nil {
		kind := ClassifyError(err, "", req.Model)
		if !sawAny && kind.IsRetryable() {
			a.logger.Warn("stream failed before first event, falling back to complete", zap.Error(err))
			return a.llm.Complete(ctx, req)
		}
		return gateway.CompleteResponse{}, err
	}

	resp.Text = text.String()
	return resp, nil
}

type toolExecResult struct {
	call    entity.ToolCall
	output  string
	success bool
}

// executeToolCalls dispatches the turn's calls with bounded
// concurrency, emitting ToolStart/ToolComplete events, and returns
// results indexed in declared order.
func (a *AgentLoop) executeToolCalls(ctx context.Context, calls []entity.ToolCall, eventCh chan<- entity.AgentEvent, sm *StateMachine) []toolExecResult {
	results := make([]toolExecResult, len(calls))
	var wg sync.WaitGroup
	sem := make(chan struct{}, a.config.MaxParallelTools)

	for i, tc := range calls {
		a.emitEvent(eventCh, entity.NewToolStartEvent(entity.ToolCallInfo{
			ID: tc.ID, Name: tc.Name, Arguments: string(tc.Arguments),
		}))

		// Slots are taken here, in declared order, so calls start in the
		// order the model requested them; with MaxParallelTools == 1 they
		// also run one after another in that order.
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = toolExecResult{call: tc, output: "context cancelled", success: false}
			continue
		}

		wg.Add(1)
		go func(idx int, call entity.ToolCall) {
			defer wg.Done()
			defer func() { <-sem }()

			output, success, duration := a.executeOne(ctx, call)
			results[idx] = toolExecResult{call: call, output: output, success: success}

			a.hooks.AfterToolCall(ctx, call.Name, output, success)
			a.emitEvent(eventCh, entity.NewToolCompleteEvent(entity.ToolCallInfo{
				ID: call.ID, Name: call.Name, Success: success, Duration: duration,
			}))
		}(i, tc)
	}
	wg.Wait()

	for _, r := range results {
		sm.RecordToolExec(r.call.Name)
	}
	return results
}

// executeOne runs a single tool call end to end: veto hook, cache
// lookup, schema validation, execution under the per-tool deadline,
// feedback classification, and output enrichment/truncation.
func (a *AgentLoop) executeOne(ctx context.Context, call entity.ToolCall) (output string, success bool, duration time.Duration) {
	start := time.Now()

	if !a.hooks.BeforeToolCall(ctx, call.Name, call.Arguments) {
		return fmt.Sprintf("Tool %q was blocked by policy", call.Name), false, time.Since(start)
	}

	if cached, isErr, hit := a.toolCache.Get(call.Name, json.RawMessage(call.Arguments)); hit {
		return cached, !isErr, time.Since(start)
	}

	if err := a.tools.Validate(call.Name, call.Arguments); err != nil {
		return fmt.Sprintf("invalid arguments: %v", err), false, time.Since(start)
	}

	t, ok := a.tools.Get(call.Name)
	if !ok {
		return fmt.Sprintf("unknown tool %q", call.Name), false, time.Since(start)
	}

	toolCtx := ctx
	if a.config.ToolTimeout > 0 {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, a.config.ToolTimeout)
		defer cancel()
	}

	res, err := t.Execute(toolCtx, call.Arguments)
	duration = time.Since(start)

	if err != nil {
		output = fmt.Sprintf("[TOOL_FAILED] %s\n[ERROR] %v", call.Name, err)
		success = false
	} else {
		output = res.Output
		success = !res.IsError
	}

	feedback := ClassifyFeedback(call.Name, output, success)
	strategy := a.feedback.Analyze(call.Name, feedback)
	if !success {
		output = EnrichToolResult(output, strategy)
	}
	output = TruncateOutput(output, a.config.MaxOutputChars)

	if success && err == nil {
		a.toolCache.Put(call.Name, json.RawMessage(call.Arguments), output, false, res.InvolvedPaths)
	}
	// A mutating tool's touched paths invalidate any cached reads that
	// depended on them.
	if err == nil && !a.toolCache.Cacheable(call.Name) {
		for _, p := range res.InvolvedPaths {
			a.toolCache.InvalidateForFile(p)
		}
	}

	return output, success, duration
}

// summarizeHistory shrinks the history, preferring the LLM summarizer
// and falling back to a deterministic truncation summary when the
// summarizer is absent or its call fails.
func (a *AgentLoop) summarizeHistory(ctx context.Context, history *entity.MessageHistory) {
	if a.summarizer != nil {
		if err := a.summarizer.Summarize(ctx, history); err == nil {
			return
		} else {
			a.logger.Warn("llm summarization failed, using truncation summary", zap.Error(err))
		}
	}

	messages := history.Messages()
	if len(messages) <= a.config.MaskWindow {
		return
	}
	var users, assistants, toolResults int
	for _, m := range messages[:len(messages)-a.config.MaskWindow] {
		switch m.Role {
		case entity.RoleUser:
			users++
		case entity.RoleAssistant:
			assistants++
		case entity.RoleTool:
			toolResults++
		}
	}
	tail := make([]entity.Message, a.config.MaskWindow)
	copy(tail, messages[len(messages)-a.config.MaskWindow:])

	history.Summarize(fmt.Sprintf(
		"[Earlier conversation removed to fit the context window: %d user messages, %d assistant messages, %d tool results.]",
		users, assistants, toolResults))
	for _, m := range SanitizeMessages(tail) {
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
}

func (a *AgentLoop) toolSpecs() []gateway.ToolSpec {
	defs := a.tools.List()
	specs := make([]gateway.ToolSpec, 0, len(defs))
	for _, d := range defs {
		specs = append(specs, gateway.ToolSpec{Name: d.Name, Description: d.Description, Schema: d.Schema})
	}
	return specs
}

// emitEvent sends an event without ever blocking the loop; a full
// channel drops the event rather than stalling tool execution.
func (a *AgentLoop) emitEvent(ch chan<- entity.AgentEvent, event entity.AgentEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case ch <- event:
	default:
		a.logger.Warn("event channel full, dropping event", zap.String("type", string(event.Type)))
	}
}
