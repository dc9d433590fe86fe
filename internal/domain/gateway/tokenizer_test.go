package gateway

import (
	"strings"
	"testing"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

func TestTokenizerFactory_BudgetResolution(t *testing.T) {
	f := GetTokenizerFactory()

	cases := []struct {
		model       string
		wantContext int
	}{
		{"claude-3-opus-20240229", 200000},
		{"claude-3-5-sonnet-latest", 200000},
		{"gpt-4o-mini", 128000},
		{"gpt-4-32k-0613", 32768},
		{"gemini-1.5-pro-002", 2000000},
		{"entirely-unknown-model", 8192},
	}
	for _, tc := range cases {
		if got := f.BudgetFor(tc.model); got.MaxContextTokens != tc.wantContext {
			t.Errorf("BudgetFor(%q).MaxContextTokens = %d, want %d", tc.model, got.MaxContextTokens, tc.wantContext)
		}
	}
}

func TestTokenizerFactory_LongestSubstringWins(t *testing.T) {
	f := GetTokenizerFactory()
	// "gpt-4-32k" must beat the shorter "gpt-4" match.
	if got := f.BudgetFor("openai/gpt-4-32k"); got.MaxContextTokens != 32768 {
		t.Fatalf("expected the more specific rule, got %d", got.MaxContextTokens)
	}
}

func TestTokenizerFactory_CachesHandles(t *testing.T) {
	f := GetTokenizerFactory()
	a := f.TokenizerFor("claude-3-opus")
	b := f.TokenizerFor("claude-3-opus")
	if a != b {
		t.Fatal("tokenizer handles must be cached per model id")
	}
}

func TestHeuristicTokenizer_CountsAllSections(t *testing.T) {
	tok := GetTokenizerFactory().TokenizerFor("unknown-model")

	empty := tok.Count(nil, "")
	withSystem := tok.Count(nil, strings.Repeat("a", 400))
	if withSystem <= empty {
		t.Fatal("system prompt must contribute tokens")
	}

	messages := []entity.Message{{Role: entity.RoleUser, Content: strings.Repeat("b", 400)}}
	withMessages := tok.Count(messages, "")
	if withMessages <= empty {
		t.Fatal("message content must contribute tokens")
	}
}
