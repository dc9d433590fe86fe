package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/internal/domain/gateway"
)

// TreeSearchConfig bounds the reasoning tree.
type TreeSearchConfig struct {
	Branches    int // candidate paths per expansion (K)
	Depth       int // reasoning steps per path (D)
	MaxParallel int // concurrent branch evaluations
}

func DefaultTreeSearchConfig() TreeSearchConfig {
	return TreeSearchConfig{Branches: 3, Depth: 2, MaxParallel: 3}
}

// candidatePath is one explored chain of reasoning steps plus its
// judge-assigned score.
type candidatePath struct {
	steps []string
	score float64
}

// TreeSearchAgent explores K candidate reasoning paths to depth D
// before acting: each path is extended step by step with independent
// completions, every finished path is scored by a judge prompt, and
// the winning path is handed to the base loop as the plan for the
// actual tool-using run. Branch evaluation is parallel; the action
// phase is an ordinary base-loop run, with that loop's own tool
// dispatch.
type TreeSearchAgent struct {
	loop   *AgentLoop
	llm    LLMClient
	model  string
	config TreeSearchConfig
	logger *zap.Logger
}

func NewTreeSearchAgent(loop *AgentLoop, llm LLMClient, model string, config TreeSearchConfig, logger *zap.Logger) *TreeSearchAgent {
	def := DefaultTreeSearchConfig()
	if config.Branches <= 0 {
		config.Branches = def.Branches
	}
	if config.Depth <= 0 {
		config.Depth = def.Depth
	}
	if config.MaxParallel <= 0 {
		config.MaxParallel = def.MaxParallel
	}
	return &TreeSearchAgent{loop: loop, llm: llm, model: model, config: config, logger: logger}
}

// Run explores the reasoning tree, then executes the base loop with the
// best path injected as a plan preamble.
func (t *TreeSearchAgent) Run(ctx context.Context, history *entity.MessageHistory, userMessage string) (*RunResult, <-chan entity.AgentEvent) {
	best, err := t.search(ctx, userMessage)
	if err != nil {
		t.logger.Warn("tree search failed, running without a plan", zap.Error(err))
		return t.loop.Run(ctx, history, userMessage)
	}

	if len(best.steps) > 0 {
		var b strings.Builder
		b.WriteString("Plan selected after considering alternatives:\n")
		for i, step := range best.steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
		history.AddSystem(b.String())
	}
	return t.loop.Run(ctx, history, userMessage)
}

// search expands K paths to depth D in parallel and returns the
// highest-scoring one.
func (t *TreeSearchAgent) search(ctx context.Context, task string) (candidatePath, error) {
	paths := make([]candidatePath, t.config.Branches)
	errs := make([]error, t.config.Branches)

	var wg sync.WaitGroup
	sem := make(chan struct{}, t.config.MaxParallel)

	for k := 0; k < t.config.Branches; k++ {
		wg.Add(1)
		go func(branch int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			path, err := t.expandPath(ctx, task, branch)
			if err != nil {
				errs[branch] = err
				return
			}
			score, err := t.scorePath(ctx, task, path)
			if err != nil {
				errs[branch] = err
				return
			}
			paths[branch] = candidatePath{steps: path, score: score}
		}(k)
	}
	wg.Wait()

	best := candidatePath{score: -1}
	var lastErr error
	for k := range paths {
		if errs[k] != nil {
			lastErr = errs[k]
			continue
		}
		if paths[k].score > best.score {
			best = paths[k]
		}
	}
	if best.score < 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no candidate path produced")
		}
		return candidatePath{}, lastErr
	}

	t.logger.Info("tree search selected path",
		zap.Float64("score", best.score),
		zap.Int("steps", len(best.steps)),
	)
	return best, nil
}

// expandPath grows one candidate path step by step. Branch diversity
// comes from the angle hint, not sampling temperature, so even a
// deterministic backend explores distinct approaches.
func (t *TreeSearchAgent) expandPath(ctx context.Context, task string, branch int) ([]string, error) {
	angles := []string{
		"the most direct approach",
		"the most cautious approach, verifying assumptions first",
		"an approach that minimizes changes to existing files",
		"an approach that favors existing tools over new code",
	}
	angle := angles[branch%len(angles)]

	steps := make([]string, 0, t.config.Depth)
	for d := 0; d < t.config.Depth; d++ {
		var b strings.Builder
		fmt.Fprintf(&b, "Task: %s\n\nYou are planning %s.\n", task, angle)
		if len(steps) > 0 {
			b.WriteString("Steps so far:\n")
			for i, s := range steps {
				fmt.Fprintf(&b, "%d. %s\n", i+1, s)
			}
		}
		b.WriteString("\nState the single next concrete step, one sentence, no numbering.")

		resp, err := t.llm.Complete(ctx, gateway.CompleteRequest{
			Model:    t.model,
			Messages: []entity.Message{{Role: entity.RoleUser, Content: b.String()}},
		})
		if err != nil {
			return nil, err
		}
		step := strings.TrimSpace(StripReasoningTags(resp.Text))
		if step == "" {
			break
		}
		steps = append(steps, step)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("branch %d produced no steps", branch)
	}
	return steps, nil
}

// scorePath asks a judge prompt to rate a finished path 0-10 and
// normalizes to 0-1. Unparseable verdicts score 0 rather than erroring,
// so one noisy judgment cannot sink the whole search.
func (t *TreeSearchAgent) scorePath(ctx context.Context, task string, steps []string) (float64, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Task: %s\n\nProposed plan:\n", task)
	for i, s := range steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	b.WriteString("\nRate how likely this plan is to accomplish the task, 0 to 10. Reply with only the number.")

	resp, err := t.llm.Complete(ctx, gateway.CompleteRequest{
		Model:    t.model,
		Messages: []entity.Message{{Role: entity.RoleUser, Content: b.String()}},
	})
	if err != nil {
		return 0, err
	}

	text := strings.TrimSpace(resp.Text)
	if i := strings.IndexAny(text, "0123456789"); i >= 0 {
		j := i
		for j < len(text) && (text[j] == '.' || (text[j] >= '0' && text[j] <= '9')) {
			j++
		}
		if score, err := strconv.ParseFloat(text[i:j], 64); err == nil {
			if score > 10 {
				score = 10
			}
			return score / 10, nil
		}
	}
	return 0, nil
}
