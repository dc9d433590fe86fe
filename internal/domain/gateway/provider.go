// Package gateway abstracts over LLM backends behind one polymorphic
// Provider interface, a fallback/circuit-breaker router, and a
// tokenizer factory.
package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

// StreamEventType tags which variant a StreamEvent carries.
type StreamEventType int

const (
	StreamText StreamEventType = iota
	StreamThinking
	StreamToolCallStart
	StreamToolCallDelta
	StreamToolCall
	StreamUsage
	StreamDone
	StreamError
)

// StreamEvent is one incremental piece of a streamed completion. Only
// the fields relevant to Type are populated: DeltaText for
// StreamText/StreamThinking, Index+Name+ID for StreamToolCallStart,
// Index+ArgsDelta for StreamToolCallDelta, ToolCall for a completed
// StreamToolCall, Usage for StreamUsage, Err for StreamError.
type StreamEvent struct {
	Type      StreamEventType
	DeltaText string
	Index     int
	ID        string
	Name      string
	ArgsDelta string
	ToolCall  *entity.ToolCall
	Usage     entity.Usage
	Err       error
}

// CompleteRequest is what callers send to a Provider.
type CompleteRequest struct {
	Model       string
	Messages    []entity.Message
	System      string
	Tools       []ToolSpec
	MaxTokens   int
	Temperature float64
}

// ToolSpec is the wire-agnostic shape a Provider turns into its
// vendor's tool-definition format.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// CompleteResponse is a non-streamed completion result.
type CompleteResponse struct {
	Text      string
	ToolCalls []entity.ToolCall
	Usage     entity.Usage
	StopReason string
}

// Metadata describes a provider's static capabilities.
type Metadata struct {
	Name   string
	Models []string
}

// Provider is the polymorphic interface every backend implements:
// complete, stream, count tokens, report metadata, and allow a runtime
// model override.
type Provider interface {
	Complete(ctx context.Context, req CompleteRequest) (CompleteResponse, error)
	Stream(ctx context.Context, req CompleteRequest, events chan<- StreamEvent) error
	CountTokens(messages []entity.Message, system string) int
	Metadata() Metadata
	SetModel(model string)
	SupportsModel(model string) bool
	IsAvailable(ctx context.Context) bool
}

// Config is what a factory needs to construct a Provider.
type Config struct {
	Name     string
	Type     string
	BaseURL  string
	APIKey   string
	Models   []string
	Priority int
}

// Factory builds a Provider from Config. Providers register their
// factory in an init() function in their own file, so linking a
// provider in is enough to make its type name resolvable.
type Factory func(cfg Config) Provider

var (
	factoryMu sync.RWMutex
	factories = map[string]Factory{}
)

// RegisterFactory registers a provider factory under typeName.
func RegisterFactory(typeName string, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[typeName] = factory
}

// CreateProvider instantiates a Provider using the factory registered
// for cfg.Type ("http" if unset).
func CreateProvider(cfg Config) (Provider, error) {
	t := cfg.Type
	if t == "" {
		t = "http"
	}

	factoryMu.RLock()
	factory, ok := factories[t]
	factoryMu.RUnlock()
	if !ok {
		available := make([]string, 0, len(factories))
		factoryMu.RLock()
		for k := range factories {
			available = append(available, k)
		}
		factoryMu.RUnlock()
		return nil, fmt.Errorf("unknown provider type %q (available: %v)", t, available)
	}
	return factory(cfg), nil
}
