package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
	"github.com/agentcore/agentcore/internal/domain/gateway"
)

// Reflection is the model's structured self-critique of one attempt.
type Reflection struct {
	SuccessAssessment string  `json:"success_assessment"`
	QualityScore      float64 `json:"quality_score"`
	NeedsRetry        bool    `json:"needs_retry"`
	Positive          string  `json:"positive"`
	Improvement       string  `json:"improvement"`
}

// ReflexionAgent wraps the base loop with a post-execution critique
// step: after each attempt the model grades its own result; a failing
// grade triggers a fresh attempt whose context carries every prior
// reflection, up to MaxRetries attempts.
type ReflexionAgent struct {
	loop       *AgentLoop
	llm        LLMClient
	model      string
	maxRetries int
	// QualityThreshold below which an attempt retries even when the
	// model does not ask for one.
	QualityThreshold float64
	logger           *zap.Logger
}

func NewReflexionAgent(loop *AgentLoop, llm LLMClient, model string, maxRetries int, logger *zap.Logger) *ReflexionAgent {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	return &ReflexionAgent{
		loop:             loop,
		llm:              llm,
		model:            model,
		maxRetries:       maxRetries,
		QualityThreshold: 0.5,
		logger:           logger,
	}
}

// Run executes up to maxRetries+1 attempts. Each retry starts from a
// fresh history seeded with the original system prompt plus the
// accumulated reflections, so a failed approach is not silently
// repeated. Events from every attempt are forwarded to the returned
// channel in order; an event that arrives while the channel is full is
// dropped.
func (r *ReflexionAgent) Run(ctx context.Context, systemPrompt, userMessage string) (*RunResult, <-chan entity.AgentEvent) {
	out := make(chan entity.AgentEvent, 64)
	final := &RunResult{}

	go func() {
		defer close(out)

		var reflections []Reflection
		for attempt := 0; attempt <= r.maxRetries; attempt++ {
			history := entity.NewMessageHistory(nil)
			history.SetSystemPrompt(r.buildSystemPrompt(systemPrompt, reflections))

			result, events := r.loop.Run(ctx, history, userMessage)
			for ev := range events {
				select {
				case out <- ev:
				default:
				}
			}
			tokensSoFar := final.TotalTokens
			*final = *result
			final.TotalTokens += tokensSoFar

			reflection, err := r.reflect(ctx, userMessage, result.FinalContent)
			if err != nil {
				r.logger.Warn("reflection call failed, accepting attempt as-is", zap.Error(err))
				return
			}
			r.logger.Info("reflection",
				zap.Int("attempt", attempt+1),
				zap.Float64("quality", reflection.QualityScore),
				zap.Bool("needs_retry", reflection.NeedsRetry),
			)

			if !reflection.NeedsRetry && reflection.QualityScore >= r.QualityThreshold {
				return
			}
			reflections = append(reflections, reflection)
		}
	}()

	return final, out
}

func (r *ReflexionAgent) buildSystemPrompt(base string, reflections []Reflection) string {
	if len(reflections) == 0 {
		return base
	}
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nLessons from earlier attempts at this task:\n")
	for i, refl := range reflections {
		fmt.Fprintf(&b, "%d. What worked: %s. What to change: %s\n", i+1, refl.Positive, refl.Improvement)
	}
	return b.String()
}

// reflect asks the model to grade the attempt and parses the JSON
// critique. A response that is not valid JSON degrades to a
// no-retry-needed reflection rather than failing the run.
func (r *ReflexionAgent) reflect(ctx context.Context, task, outcome string) (Reflection, error) {
	prompt := fmt.Sprintf(
		"Task: %s\n\nOutcome: %s\n\n"+
			"Grade this outcome. Reply with a single JSON object with keys "+
			"success_assessment (string), quality_score (0.0-1.0), needs_retry (bool), "+
			"positive (string), improvement (string). No other text.",
		task, outcome)

	resp, err := r.llm.Complete(ctx, gateway.CompleteRequest{
		Model:    r.model,
		Messages: []entity.Message{{Role: entity.RoleUser, Content: prompt}},
	})
	if err != nil {
		return Reflection{}, err
	}

	var reflection Reflection
	text := strings.TrimSpace(resp.Text)
	// Tolerate a fenced reply.
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &reflection); err != nil {
		r.logger.Debug("unparseable reflection, treating as acceptable", zap.String("text", resp.Text))
		return Reflection{SuccessAssessment: "unparseable reflection", QualityScore: 1, NeedsRetry: false}, nil
	}
	return reflection, nil
}
