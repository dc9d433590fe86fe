package entity

import "time"

// AgentEventType enumerates the variants of the event stream the agent
// loop emits to the host UI.
type AgentEventType string

const (
	EventThinking     AgentEventType = "thinking"
	EventText         AgentEventType = "text"
	EventToolStart    AgentEventType = "tool_start"
	EventToolComplete AgentEventType = "tool_complete"
	EventUsage        AgentEventType = "usage"
	EventDone         AgentEventType = "done"
	EventError        AgentEventType = "error"
)

// ToolCallInfo is the ToolStart/ToolComplete payload.
type ToolCallInfo struct {
	ID        string
	Name      string
	Arguments string
	Success   bool // meaningful only on ToolComplete
	Duration  time.Duration
}

// Usage is the token-accounting payload.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// AgentEvent is one item on the agent's event stream. Ordering within a
// single run is FIFO; the zero value of fields not relevant to Type is
// ignored by consumers.
type AgentEvent struct {
	Type      AgentEventType
	Text      string
	ToolCall  *ToolCallInfo
	Usage     *Usage
	Full      string // Done payload
	Err       error
	Timestamp time.Time
}

func NewThinkingEvent() AgentEvent {
	return AgentEvent{Type: EventThinking, Timestamp: time.Now()}
}

func NewTextEvent(chunk string) AgentEvent {
	return AgentEvent{Type: EventText, Text: chunk, Timestamp: time.Now()}
}

func NewToolStartEvent(info ToolCallInfo) AgentEvent {
	return AgentEvent{Type: EventToolStart, ToolCall: &info, Timestamp: time.Now()}
}

func NewToolCompleteEvent(info ToolCallInfo) AgentEvent {
	return AgentEvent{Type: EventToolComplete, ToolCall: &info, Timestamp: time.Now()}
}

func NewUsageEvent(in, out int) AgentEvent {
	return AgentEvent{Type: EventUsage, Usage: &Usage{InputTokens: in, OutputTokens: out}, Timestamp: time.Now()}
}

func NewDoneEvent(full string) AgentEvent {
	return AgentEvent{Type: EventDone, Full: full, Timestamp: time.Now()}
}

func NewErrorEvent(err error) AgentEvent {
	return AgentEvent{Type: EventError, Err: err, Timestamp: time.Now()}
}
