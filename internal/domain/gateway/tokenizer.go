package gateway

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

// Tokenizer counts tokens for a given model's wire format.
type Tokenizer interface {
	Count(messages []entity.Message, system string) int
}

// TokenBudget is the context-window ceiling associated with a model
// family.
type TokenBudget struct {
	MaxContextTokens int
	MaxOutputTokens  int
}

// tiktokenTokenizer wraps a real BPE encoder.
type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

func (t *tiktokenTokenizer) Count(messages []entity.Message, system string) int {
	total := len(t.enc.Encode(system, nil, nil))
	for _, m := range messages {
		total += len(t.enc.Encode(m.Content, nil, nil)) + 4
		for _, tc := range m.ToolCalls {
			total += len(t.enc.Encode(tc.Name, nil, nil))
			total += len(t.enc.Encode(string(tc.Arguments), nil, nil))
		}
		if m.ToolResult != nil {
			total += len(t.enc.Encode(m.ToolResult.Content, nil, nil))
		}
	}
	return total
}

// heuristicTokenizer falls back to the 4-bytes-per-token estimate when
// no BPE encoding is registered for a model family (tiktoken-go only
// ships OpenAI-family encodings; every other vendor's model_id falls
// through to this).
type heuristicTokenizer struct{}

func (heuristicTokenizer) Count(messages []entity.Message, system string) int {
	return entity.EstimateTokensHeuristic(messages, system)
}

// modelRule maps a model_id substring to a Tokenizer constructor and a
// TokenBudget, matched longest-substring-first so a more specific rule
// (e.g. "gpt-4-32k") wins over a broader one ("gpt-4").
type modelRule struct {
	substr  string
	budget  TokenBudget
	encoder string // tiktoken encoding name, empty for heuristic
}

var defaultRules = []modelRule{
	{substr: "gpt-4-32k", budget: TokenBudget{MaxContextTokens: 32768, MaxOutputTokens: 4096}, encoder: "cl100k_base"},
	{substr: "gpt-4o", budget: TokenBudget{MaxContextTokens: 128000, MaxOutputTokens: 16384}, encoder: "o200k_base"},
	{substr: "gpt-4", budget: TokenBudget{MaxContextTokens: 8192, MaxOutputTokens: 4096}, encoder: "cl100k_base"},
	{substr: "gpt-3.5", budget: TokenBudget{MaxContextTokens: 16385, MaxOutputTokens: 4096}, encoder: "cl100k_base"},
	{substr: "claude-3-opus", budget: TokenBudget{MaxContextTokens: 200000, MaxOutputTokens: 4096}},
	{substr: "claude-3-5-sonnet", budget: TokenBudget{MaxContextTokens: 200000, MaxOutputTokens: 8192}},
	{substr: "claude", budget: TokenBudget{MaxContextTokens: 200000, MaxOutputTokens: 4096}},
	{substr: "gemini-1.5-pro", budget: TokenBudget{MaxContextTokens: 2000000, MaxOutputTokens: 8192}},
	{substr: "gemini", budget: TokenBudget{MaxContextTokens: 1000000, MaxOutputTokens: 8192}},
}

// TokenizerFactory is a process-wide singleton mapping model_id to a
// cached Tokenizer and TokenBudget, resolved via longest-substring
// match over modelRule so a more specific rule wins over a broader
// family rule.
type TokenizerFactory struct {
	mu         sync.Mutex
	tokenizers map[string]Tokenizer
	rules      []modelRule
}

var (
	factoryOnce sync.Once
	factoryInst *TokenizerFactory
)

// GetTokenizerFactory returns the process-wide TokenizerFactory,
// constructing it on first use.
func GetTokenizerFactory() *TokenizerFactory {
	factoryOnce.Do(func() {
		factoryInst = &TokenizerFactory{
			tokenizers: make(map[string]Tokenizer),
			rules:      defaultRules,
		}
	})
	return factoryInst
}

func (f *TokenizerFactory) resolveRule(modelID string) modelRule {
	best := modelRule{budget: TokenBudget{MaxContextTokens: 8192, MaxOutputTokens: 2048}}
	bestLen := -1
	for _, r := range f.rules {
		if strings.Contains(modelID, r.substr) && len(r.substr) > bestLen {
			best = r
			bestLen = len(r.substr)
		}
	}
	return best
}

// TokenizerFor returns the cached Tokenizer for modelID, constructing
// one on first request. A model whose encoder can't be loaded (no
// tiktoken-go registration for that family) silently falls back to the
// heuristic tokenizer rather than failing the caller.
func (f *TokenizerFactory) TokenizerFor(modelID string) Tokenizer {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t, ok := f.tokenizers[modelID]; ok {
		return t
	}

	rule := f.resolveRule(modelID)
	var t Tokenizer = heuristicTokenizer{}
	if rule.encoder != "" {
		if enc, err := tiktoken.GetEncoding(rule.encoder); err == nil {
			t = &tiktokenTokenizer{enc: enc}
		}
	}
	f.tokenizers[modelID] = t
	return t
}

// BudgetFor returns the TokenBudget resolved for modelID.
func (f *TokenizerFactory) BudgetFor(modelID string) TokenBudget {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveRule(modelID).budget
}
