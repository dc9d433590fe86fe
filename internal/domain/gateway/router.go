package gateway

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type providerStats struct {
	TotalCalls   int64
	FailureCount int64
	LastLatency  time.Duration
}

// Router fans out to a prioritized list of registered providers,
// skipping ones whose circuit is open or that don't support the
// requested model, and falling through to the next on error. Fallback
// and retry are separate named methods so retry policy stays a
// caller-visible parameter.
type Router struct {
	mu        sync.RWMutex
	providers []Provider
	stats     map[string]*providerStats
	breakers  map[string]*CircuitBreaker
	logger    *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		stats:    make(map[string]*providerStats),
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger.With(zap.String("component", "gateway-router")),
	}
}

// AddProvider appends a provider, tried in insertion order.
func (r *Router) AddProvider(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := p.Metadata().Name
	r.providers = append(r.providers, p)
	r.stats[name] = &providerStats{}
	r.breakers[name] = NewCircuitBreaker(5, 30*time.Second)
}

// CompleteWithFallback tries providers in order until one supports the
// model, is available, has a closed/half-open circuit, and succeeds.
func (r *Router) CompleteWithFallback(ctx context.Context, req CompleteRequest) (CompleteResponse, error) {
	providers := r.snapshot()
	var lastErr error

	for _, p := range providers {
		name := p.Metadata().Name
		if !p.SupportsModel(req.Model) || !p.IsAvailable(ctx) {
			continue
		}
		if cb := r.breaker(name); cb != nil && !cb.Allow() {
			r.logger.Debug("provider circuit open, skipping", zap.String("provider", name))
			continue
		}

		start := time.Now()
		resp, err := p.Complete(ctx, req)
		r.recordCall(name, time.Since(start), err)

		if err != nil {
			lastErr = err
			r.logger.Warn("provider failed, trying next", zap.String("provider", name), zap.Error(err))
			continue
		}
		return resp, nil
	}

	if lastErr != nil {
		return CompleteResponse{}, fmt.Errorf("all providers failed, last error: %w", lastErr)
	}
	return CompleteResponse{}, fmt.Errorf("no provider available for model %q", req.Model)
}

// CompleteWithRetry retries CompleteWithFallback up to maxAttempts times
// with exponential backoff, but only while the failure is retryable
// (network, 5xx, 429). Auth, 4xx, and schema errors surface immediately:
// backing off on those just replays a request the provider already
// rejected for good.
func (r *Router) CompleteWithRetry(ctx context.Context, req CompleteRequest, maxAttempts int, baseDelay time.Duration) (CompleteResponse, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		resp, err := r.CompleteWithFallback(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !Retryable(err) {
			r.logger.Debug("non-retryable provider error, not backing off", zap.Error(err))
			return CompleteResponse{}, lastErr
		}
		if attempt == maxAttempts-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<uint(attempt))
		select {
		case <-ctx.Done():
			return CompleteResponse{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return CompleteResponse{}, fmt.Errorf("exhausted %d attempts: %w", maxAttempts, lastErr)
}

// Stream routes to the first available streaming-capable provider, no
// fallback mid-stream: once bytes have started flowing to the caller,
// switching providers would require re-issuing the whole request.
func (r *Router) Stream(ctx context.Context, req CompleteRequest, events chan<- StreamEvent) error {
	providers := r.snapshot()
	var lastErr error

	for _, p := range providers {
		name := p.Metadata().Name
		if !p.SupportsModel(req.Model) || !p.IsAvailable(ctx) {
			continue
		}
		if cb := r.breaker(name); cb != nil && !cb.Allow() {
			continue
		}

		start := time.Now()
		err := p.Stream(ctx, req, events)
		r.recordCall(name, time.Since(start), err)
		if err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("all streaming providers failed, last error: %w", lastErr)
	}
	return fmt.Errorf("no streaming provider available for model %q", req.Model)
}

func (r *Router) snapshot() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, len(r.providers))
	copy(out, r.providers)
	return out
}

func (r *Router) breaker(name string) *CircuitBreaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.breakers[name]
}

func (r *Router) recordCall(name string, latency time.Duration, err error) {
	r.mu.Lock()
	if s, ok := r.stats[name]; ok {
		s.TotalCalls++
		s.LastLatency = latency
		if err != nil {
			s.FailureCount++
		}
	}
	cb := r.breakers[name]
	r.mu.Unlock()

	if cb == nil {
		return
	}
	if err != nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
}

// ProviderStatus summarizes a provider's health for diagnostics.
type ProviderStatus struct {
	Name          string
	Models        []string
	Available     bool
	TotalCalls    int64
	FailureCount  int64
	LastLatencyMs float64
	CircuitState  string
}

func (r *Router) ListProviders(ctx context.Context) []ProviderStatus {
	providers := r.snapshot()
	out := make([]ProviderStatus, 0, len(providers))
	for _, p := range providers {
		meta := p.Metadata()
		r.mu.RLock()
		s := r.stats[meta.Name]
		cb := r.breakers[meta.Name]
		r.mu.RUnlock()

		status := ProviderStatus{Name: meta.Name, Models: meta.Models, Available: p.IsAvailable(ctx)}
		if s != nil {
			status.TotalCalls = s.TotalCalls
			status.FailureCount = s.FailureCount
			status.LastLatencyMs = float64(s.LastLatency) / float64(time.Millisecond)
		}
		if cb != nil {
			status.CircuitState = cb.State().String()
		}
		out = append(out, status)
	}
	return out
}
