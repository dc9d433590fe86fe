package service

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/agentcore/agentcore/internal/domain/entity"
)

// Guardrail sentinel errors.
var (
	ErrTokenBudgetExceeded = fmt.Errorf("token budget exceeded")
	ErrTimeBudgetExceeded  = fmt.Errorf("run time budget exceeded")
	ErrContextOverflow     = fmt.Errorf("context window overflow")
)

// CostGuard prevents token/time budget overruns. Thread-safe; can be
// read from multiple goroutines.
type CostGuard struct {
	maxTokens     int64
	currentTokens atomic.Int64
	maxDuration   time.Duration
	startTime     time.Time
	logger        *zap.Logger
}

func NewCostGuard(maxTokens int64, maxDuration time.Duration, logger *zap.Logger) *CostGuard {
	return &CostGuard{
		maxTokens:   maxTokens,
		maxDuration: maxDuration,
		startTime:   time.Now(),
		logger:      logger,
	}
}

// AddTokens accumulates token usage; returns ErrTokenBudgetExceeded once
// the budget is crossed.
func (g *CostGuard) AddTokens(n int64) error {
	current := g.currentTokens.Add(n)
	if g.maxTokens > 0 && current > g.maxTokens {
		g.logger.Warn("token budget exceeded",
			zap.Int64("current", current),
			zap.Int64("max", g.maxTokens),
		)
		return ErrTokenBudgetExceeded
	}
	return nil
}

// CheckBudget returns ErrTimeBudgetExceeded once the wall-clock budget
// is crossed.
func (g *CostGuard) CheckBudget() error {
	if g.maxDuration > 0 && time.Since(g.startTime) > g.maxDuration {
		return ErrTimeBudgetExceeded
	}
	return nil
}

// Usage returns the current token count and elapsed time.
func (g *CostGuard) Usage() (tokens int64, elapsed time.Duration) {
	return g.currentTokens.Load(), time.Since(g.startTime)
}

// ContextGuard monitors context window usage and signals when
// summarization should run.
type ContextGuard struct {
	maxTokens int
	warnRatio float64
	hardRatio float64
	logger    *zap.Logger
}

func NewContextGuard(maxTokens int, warnRatio, hardRatio float64, logger *zap.Logger) *ContextGuard {
	return &ContextGuard{
		maxTokens: maxTokens,
		warnRatio: warnRatio,
		hardRatio: hardRatio,
		logger:    logger,
	}
}

// ContextCheckResult holds the result of a context window check.
type ContextCheckResult struct {
	EstimatedTokens int
	MaxTokens       int
	Ratio           float64
	NeedCompaction  bool // hard threshold exceeded
	Warning         bool // warn threshold exceeded
}

// Check reads the history's cached token estimate and returns compaction
// signals.
func (g *ContextGuard) Check(history *entity.MessageHistory) ContextCheckResult {
	estimated := history.EstimateTokens()
	ratio := float64(estimated) / float64(g.maxTokens)

	result := ContextCheckResult{
		EstimatedTokens: estimated,
		MaxTokens:       g.maxTokens,
		Ratio:           ratio,
	}

	if ratio > g.hardRatio {
		result.NeedCompaction = true
		g.logger.Warn("context window exceeds hard threshold",
			zap.Int("tokens", estimated),
			zap.Int("max", g.maxTokens),
			zap.Float64("ratio", ratio),
		)
	} else if ratio > g.warnRatio {
		result.Warning = true
		g.logger.Info("context window approaching limit",
			zap.Int("tokens", estimated),
			zap.Int("max", g.maxTokens),
			zap.Float64("ratio", ratio),
		)
	}
	return result
}

// LoopDetector detects repeated tool call patterns with two strategies:
// name frequency in a sliding window, and exact name+args repetition.
// Neither terminates the loop; both return reflection prompts for
// injection so the model can self-correct.
type LoopDetector struct {
	recentCalls   []string // "name|argsHash" signatures
	windowSize    int
	threshold     int
	nameThreshold int
	nameHistory   []string
	logger        *zap.Logger
}

func NewLoopDetector(windowSize, threshold, nameThreshold int, logger *zap.Logger) *LoopDetector {
	return &LoopDetector{
		recentCalls:   make([]string, 0, windowSize),
		windowSize:    windowSize,
		threshold:     threshold,
		nameThreshold: nameThreshold,
		logger:        logger,
	}
}

// RecordName tracks tool-name frequency in the sliding window, ignoring
// arguments. Catches interleaved retry patterns a consecutive check
// would miss (bash, search, bash, bash, ...).
func (d *LoopDetector) RecordName(toolName string) string {
	d.nameHistory = append(d.nameHistory, toolName)
	if len(d.nameHistory) > d.windowSize {
		d.nameHistory = d.nameHistory[1:]
	}

	count := 0
	for _, name := range d.nameHistory {
		if name == toolName {
			count++
		}
	}
	if count >= d.nameThreshold {
		d.logger.Warn("same tool dominates sliding window",
			zap.String("tool", toolName),
			zap.Int("count_in_window", count),
			zap.Int("threshold", d.nameThreshold),
		)
		return fmt.Sprintf(
			"[SYSTEM] The tool %s has been called %d times in the last %d calls. "+
				"You are likely stuck in a retry loop. Stop calling tools and tell the user "+
				"what you were attempting, what went wrong, and what you suggest they do.",
			toolName, count, len(d.nameHistory),
		)
	}
	return ""
}

// Record adds a name+args signature to the sliding window and returns a
// reflection prompt once the exact same call repeats threshold times in
// a row.
func (d *LoopDetector) Record(toolName, argsFingerprint string) string {
	sig := toolName
	if argsFingerprint != "" {
		sig = toolName + "|" + argsFingerprint
	}

	d.recentCalls = append(d.recentCalls, sig)
	if len(d.recentCalls) > d.windowSize {
		d.recentCalls = d.recentCalls[1:]
	}
	if len(d.recentCalls) < d.threshold {
		return ""
	}

	tail := d.recentCalls[len(d.recentCalls)-d.threshold:]
	for _, s := range tail {
		if s != tail[0] {
			return ""
		}
	}

	d.logger.Warn("exact tool call loop detected",
		zap.String("tool", toolName),
		zap.Int("consecutive_calls", d.threshold),
	)
	return fmt.Sprintf(
		"[SYSTEM] The tool %s was called %d times with identical arguments; the result "+
			"will not change. Stop repeating the call and either try a different approach "+
			"or report the outcome to the user.",
		toolName, d.threshold,
	)
}

// Reset clears tracking state (call at the start of each run).
func (d *LoopDetector) Reset() {
	d.recentCalls = d.recentCalls[:0]
	d.nameHistory = d.nameHistory[:0]
}
