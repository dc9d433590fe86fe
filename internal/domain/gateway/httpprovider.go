package gateway

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

func init() {
	RegisterFactory("http", func(cfg Config) Provider { return NewHTTPProvider(cfg) })
}

// HTTPProvider speaks a generic OpenAI-compatible chat-completions
// wire format, the lowest common denominator most self-hosted and
// third-party gateways expose.
type HTTPProvider struct {
	name    string
	baseURL string
	apiKey  string
	models  []string
	client  *http.Client
	model   atomic.Value // string
}

func NewHTTPProvider(cfg Config) *HTTPProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 300 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   5,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}
	p := &HTTPProvider{
		name:    cfg.Name,
		baseURL: baseURL,
		apiKey:  cfg.APIKey,
		models:  cfg.Models,
		client:  &http.Client{Transport: transport},
	}
	if len(cfg.Models) > 0 {
		p.model.Store(cfg.Models[0])
	}
	return p
}

var _ Provider = (*HTTPProvider)(nil)

func (p *HTTPProvider) Metadata() Metadata { return Metadata{Name: p.name, Models: p.models} }

func (p *HTTPProvider) SetModel(model string) { p.model.Store(model) }

func (p *HTTPProvider) SupportsModel(model string) bool {
	if len(p.models) == 0 {
		return true
	}
	for _, m := range p.models {
		if m == model {
			return true
		}
	}
	return false
}

func (p *HTTPProvider) IsAvailable(_ context.Context) bool {
	return p.apiKey != "" && p.baseURL != ""
}

func (p *HTTPProvider) CountTokens(messages []entity.Message, system string) int {
	return GetTokenizerFactory().TokenizerFor(p.currentModel()).Count(messages, system)
}

func (p *HTTPProvider) currentModel() string {
	if v, ok := p.model.Load().(string); ok {
		return v
	}
	return ""
}

type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

func buildWireRequest(req CompleteRequest, stream bool) wireRequest {
	wire := wireRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
	if req.System != "" {
		wire.Messages = append(wire.Messages, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case entity.RoleTool:
			if m.ToolResult != nil {
				wire.Messages = append(wire.Messages, wireMessage{
					Role: "tool", Content: m.ToolResult.Content, ToolCallID: m.ToolResult.CallID,
				})
			}
		default:
			wm := wireMessage{Role: string(m.Role), Content: m.Content}
			for _, tc := range m.ToolCalls {
				wtc := wireToolCall{ID: tc.ID, Type: "function"}
				wtc.Function.Name = tc.Name
				wtc.Function.Arguments = tc.Arguments
				wm.ToolCalls = append(wm.ToolCalls, wtc)
			}
			wire.Messages = append(wire.Messages, wm)
		}
	}
	for _, t := range req.Tools {
		wt := wireTool{Type: "function"}
		wt.Function.Name = t.Name
		wt.Function.Description = t.Description
		wt.Function.Parameters = t.Schema
		wire.Tools = append(wire.Tools, wt)
	}
	return wire
}

type wireChoice struct {
	Message struct {
		Content   string         `json:"content"`
		ToolCalls []wireToolCall `json:"tool_calls"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type wireResponse struct {
	Choices []wireChoice `json:"choices"`
	Usage   struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *HTTPProvider) Complete(ctx context.Context, req CompleteRequest) (CompleteResponse, error) {
	body, err := json.Marshal(buildWireRequest(req, false))
	if err != nil {
		return CompleteResponse{}, fmt.Errorf("httpprovider: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return CompleteResponse{}, fmt.Errorf("httpprovider: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return CompleteResponse{}, fmt.Errorf("httpprovider: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return CompleteResponse{}, fmt.Errorf("httpprovider: status %d", resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return CompleteResponse{}, fmt.Errorf("httpprovider: decode response: %w", err)
	}
	if len(wire.Choices) == 0 {
		return CompleteResponse{}, fmt.Errorf("httpprovider: empty choices")
	}

	choice := wire.Choices[0]
	out := CompleteResponse{
		Text:       choice.Message.Content,
		StopReason: choice.FinishReason,
		Usage: entity.Usage{
			InputTokens:  wire.Usage.PromptTokens,
			OutputTokens: wire.Usage.CompletionTokens,
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, entity.ToolCall{
			ID: tc.ID, Name: tc.Function.Name, Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

// Stream issues a server-sent-events request and forwards each delta
// as a StreamEvent, checking ctx between reads so cancellation does not
// wait for the next chunk to arrive.
func (p *HTTPProvider) Stream(ctx context.Context, req CompleteRequest, events chan<- StreamEvent) error {
	body, err := json.Marshal(buildWireRequest(req, true))
	if err != nil {
		return fmt.Errorf("httpprovider: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("httpprovider: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("httpprovider: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("httpprovider: status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	// Tool call fragments arrive indexed; arguments accumulate across
	// deltas and the completed call is emitted once the stream ends.
	type partialCall struct {
		id   string
		name string
		args strings.Builder
	}
	partials := map[int]*partialCall{}

	finish := func() {
		indexes := make([]int, 0, len(partials))
		for i := range partials {
			indexes = append(indexes, i)
		}
		sort.Ints(indexes)
		for _, i := range indexes {
			pc := partials[i]
			events <- StreamEvent{Type: StreamToolCall, Index: i, ToolCall: &entity.ToolCall{
				ID: pc.id, Name: pc.name, Arguments: json.RawMessage(pc.args.String()),
			}}
		}
		events <- StreamEvent{Type: StreamDone}
	}

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			finish()
			return nil
		}

		var chunk wireStreamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		if chunk.Usage != nil {
			events <- StreamEvent{Type: StreamUsage, Usage: entity.Usage{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
			}}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			events <- StreamEvent{Type: StreamText, DeltaText: delta.Content}
		}
		for _, tc := range delta.ToolCalls {
			pc, ok := partials[tc.Index]
			if !ok {
				pc = &partialCall{id: tc.ID, name: tc.Function.Name}
				partials[tc.Index] = pc
				events <- StreamEvent{Type: StreamToolCallStart, Index: tc.Index, ID: tc.ID, Name: tc.Function.Name}
			}
			if pc.id == "" {
				pc.id = tc.ID
			}
			if pc.name == "" {
				pc.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				pc.args.WriteString(tc.Function.Arguments)
				events <- StreamEvent{Type: StreamToolCallDelta, Index: tc.Index, ArgsDelta: tc.Function.Arguments}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("httpprovider: stream read: %w", err)
	}
	finish()
	return nil
}

type wireStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}
