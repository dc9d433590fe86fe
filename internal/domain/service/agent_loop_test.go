package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/internal/domain/gateway"
	"github.com/agentcore/agentcore/internal/domain/tool"
)

// scriptedClient replays a fixed sequence of turns, one per Stream
// call.
type scriptedClient struct {
	turns []gateway.CompleteResponse
	calls int
}

func (c *scriptedClient) Complete(context.Context, gateway.CompleteRequest) (gateway.CompleteResponse, error) {
	if c.calls >= len(c.turns) {
		return gateway.CompleteResponse{}, fmt.Errorf("no scripted turn %d", c.calls)
	}
	resp := c.turns[c.calls]
	c.calls++
	return resp, nil
}

func (c *scriptedClient) Stream(_ context.Context, _ gateway.CompleteRequest, events chan<- gateway.StreamEvent) error {
	if c.calls >= len(c.turns) {
		return fmt.Errorf("no scripted turn %d", c.calls)
	}
	resp := c.turns[c.calls]
	c.calls++

	if resp.Text != "" {
		events <- gateway.StreamEvent{Type: gateway.StreamText, DeltaText: resp.Text}
	}
	for i := range resp.ToolCalls {
		events <- gateway.StreamEvent{Type: gateway.StreamToolCall, Index: i, ToolCall: &resp.ToolCalls[i]}
	}
	if resp.Usage.InputTokens+resp.Usage.OutputTokens > 0 {
		events <- gateway.StreamEvent{Type: gateway.StreamUsage, Usage: resp.Usage}
	}
	events <- gateway.StreamEvent{Type: gateway.StreamDone}
	return nil
}

// echoTool returns a fixed payload.
type echoTool struct {
	name   string
	output string
	calls  int
}

func (e *echoTool) Def() tool.Def {
	return tool.Def{Name: e.name, Description: "test tool"}
}

func (e *echoTool) Execute(context.Context, json.RawMessage) (tool.Result, error) {
	e.calls++
	return tool.Result{Output: e.output}, nil
}

func newTestLoop(client LLMClient, tools ...tool.Tool) (*AgentLoop, *tool.DynamicToolRegistry) {
	registry := tool.NewDynamicToolRegistry()
	for _, tl := range tools {
		if err := registry.Register(tl); err != nil {
			panic(err)
		}
	}
	cfg := DefaultAgentLoopConfig()
	cfg.Model = "test-model"
	return NewAgentLoop(client, registry, cfg, zap.NewNop()), registry
}

func drain(events <-chan entity.AgentEvent) []entity.AgentEvent {
	var out []entity.AgentEvent
	for ev := range events {
		out = append(out, ev)
	}
	return out
}

func TestAgentLoop_SingleTurnText(t *testing.T) {
	client := &scriptedClient{turns: []gateway.CompleteResponse{
		{Text: "Hello"},
	}}
	loop, _ := newTestLoop(client)

	history := entity.NewMessageHistory(nil)
	history.SetSystemPrompt("be brief")

	result, events := loop.Run(context.Background(), history, "Hi")
	evs := drain(events)

	if result.FinalContent != "Hello" {
		t.Fatalf("expected Hello, got %q", result.FinalContent)
	}
	if history.Len() != 2 {
		t.Fatalf("expected User+Assistant, got %d messages", history.Len())
	}
	messages := history.Messages()
	if messages[0].Role != entity.RoleUser || messages[0].Content != "Hi" {
		t.Fatalf("first message should be the user turn: %+v", messages[0])
	}
	if messages[1].Role != entity.RoleAssistant || messages[1].Content != "Hello" {
		t.Fatalf("second message should be the assistant turn: %+v", messages[1])
	}

	var sawThinking, sawText, sawDone bool
	for _, ev := range evs {
		switch ev.Type {
		case entity.EventThinking:
			sawThinking = true
		case entity.EventText:
			sawText = true
		case entity.EventDone:
			sawDone = true
			if ev.Full != "Hello" {
				t.Fatalf("done event should carry the full response, got %q", ev.Full)
			}
		}
	}
	if !sawThinking || !sawText || !sawDone {
		t.Fatalf("expected thinking/text/done events, got %+v", evs)
	}
}

func TestAgentLoop_SingleToolCall(t *testing.T) {
	client := &scriptedClient{turns: []gateway.CompleteResponse{
		{ToolCalls: []entity.ToolCall{{ID: "t1", Name: "read", Arguments: json.RawMessage(`{"file_path":"/tmp/a"}`)}}},
		{Text: "File says abc"},
	}}
	reader := &echoTool{name: "read", output: "abc"}
	loop, _ := newTestLoop(client, reader)

	history := entity.NewMessageHistory(nil)
	result, events := loop.Run(context.Background(), history, "Read /tmp/a")
	evs := drain(events)

	if result.FinalContent != "File says abc" {
		t.Fatalf("expected final text, got %q", result.FinalContent)
	}
	if reader.calls != 1 {
		t.Fatalf("tool should run once, ran %d times", reader.calls)
	}

	// History: User, Assistant(tool_calls), Tool(t1), Assistant(text).
	messages := history.Messages()
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}
	if len(messages[1].ToolCalls) != 1 || messages[1].ToolCalls[0].ID != "t1" {
		t.Fatalf("assistant turn should carry the call: %+v", messages[1])
	}
	if messages[2].Role != entity.RoleTool || messages[2].ToolResult.Content != "abc" {
		t.Fatalf("tool turn should carry the result: %+v", messages[2])
	}

	var sawStart, sawComplete bool
	for _, ev := range evs {
		if ev.Type == entity.EventToolStart {
			sawStart = true
		}
		if ev.Type == entity.EventToolComplete && ev.ToolCall != nil && ev.ToolCall.Success {
			sawComplete = true
		}
	}
	if !sawStart || !sawComplete {
		t.Fatal("expected tool start and successful completion events")
	}
}

func TestAgentLoop_SerialToolOrder(t *testing.T) {
	var order []string
	mk := func(name string) tool.Tool {
		return &funcTool{name: name, fn: func() tool.Result {
			order = append(order, name)
			return tool.Result{Output: name}
		}}
	}
	client := &scriptedClient{turns: []gateway.CompleteResponse{
		{ToolCalls: []entity.ToolCall{
			{ID: "a", Name: "first", Arguments: json.RawMessage(`{}`)},
			{ID: "b", Name: "second", Arguments: json.RawMessage(`{}`)},
		}},
		{Text: "done"},
	}}
	loop, _ := newTestLoop(client, mk("first"), mk("second"))
	loop.config.MaxParallelTools = 1 // serial dispatch keeps observable order deterministic

	history := entity.NewMessageHistory(nil)
	_, events := loop.Run(context.Background(), history, "go")
	drain(events)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("tools must run in declared order, got %v", order)
	}

	// Results land in history in declared order regardless of dispatch.
	messages := history.Messages()
	if messages[2].ToolResult.CallID != "a" || messages[3].ToolResult.CallID != "b" {
		t.Fatalf("results out of order: %+v %+v", messages[2].ToolResult, messages[3].ToolResult)
	}
}

type funcTool struct {
	name string
	fn   func() tool.Result
}

func (f *funcTool) Def() tool.Def { return tool.Def{Name: f.name} }
func (f *funcTool) Execute(context.Context, json.RawMessage) (tool.Result, error) {
	return f.fn(), nil
}

func TestAgentLoop_MaxIterations(t *testing.T) {
	// The model asks for a tool every turn, forever.
	endless := make([]gateway.CompleteResponse, 10)
	for i := range endless {
		endless[i] = gateway.CompleteResponse{ToolCalls: []entity.ToolCall{
			{ID: fmt.Sprintf("t%d", i), Name: "noop", Arguments: json.RawMessage(`{}`)},
		}}
	}
	client := &scriptedClient{turns: endless}
	noop := &echoTool{name: "noop", output: "ok"}
	loop, _ := newTestLoop(client, noop)
	loop.config.MaxIterations = 3

	history := entity.NewMessageHistory(nil)
	result, events := loop.Run(context.Background(), history, "loop forever")
	drain(events)

	if client.calls > 4 {
		t.Fatalf("LLM calls must be bounded by iterations+1, got %d", client.calls)
	}
	if result.FinalContent == "" {
		t.Fatal("an exhausted run still reports an outcome")
	}
}

func TestAgentLoop_FinishMarkerEndsRun(t *testing.T) {
	// The marker wins even when the same turn requests a tool.
	client := &scriptedClient{turns: []gateway.CompleteResponse{
		{
			Text:      "finish[the answer is 42]",
			ToolCalls: []entity.ToolCall{{ID: "t1", Name: "noop", Arguments: json.RawMessage(`{}`)}},
		},
	}}
	noop := &echoTool{name: "noop", output: "ok"}
	loop, _ := newTestLoop(client, noop)

	history := entity.NewMessageHistory(nil)
	result, events := loop.Run(context.Background(), history, "compute")
	drain(events)

	if result.FinalContent != "the answer is 42" {
		t.Fatalf("expected the bracketed content, got %q", result.FinalContent)
	}
	if noop.calls != 0 {
		t.Fatal("tools requested alongside the finish marker must not run")
	}
	if client.calls != 1 {
		t.Fatalf("no further LLM calls after the marker, got %d", client.calls)
	}
}

func TestAgentLoop_UnknownToolBecomesErrorResult(t *testing.T) {
	client := &scriptedClient{turns: []gateway.CompleteResponse{
		{ToolCalls: []entity.ToolCall{{ID: "x", Name: "missing", Arguments: json.RawMessage(`{}`)}}},
		{Text: "recovered"},
	}}
	loop, _ := newTestLoop(client)

	history := entity.NewMessageHistory(nil)
	result, events := loop.Run(context.Background(), history, "use a tool that does not exist")
	drain(events)

	if result.FinalContent != "recovered" {
		t.Fatalf("loop should continue past a failed tool, got %q", result.FinalContent)
	}
	messages := history.Messages()
	if messages[2].Role != entity.RoleTool || !messages[2].ToolResult.IsError {
		t.Fatalf("unknown tool should produce an error observation: %+v", messages[2])
	}
}

func TestAgentLoop_Cancel(t *testing.T) {
	client := &scriptedClient{turns: []gateway.CompleteResponse{{Text: "never seen"}}}
	loop, _ := newTestLoop(client)
	loop.Cancel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	history := entity.NewMessageHistory(nil)
	_, events := loop.Run(ctx, history, "hi")
	evs := drain(events)

	for _, ev := range evs {
		if ev.Type == entity.EventDone {
			t.Fatal("a cancelled run must not complete")
		}
	}
}
