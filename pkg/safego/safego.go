// Package safego launches goroutines that cannot take the process down
// with them: a panicking worker is logged and unwound instead of
// crashing the agent loop, the orchestrator, or an executor.
package safego

import (
	"go.uber.org/zap"
)

// Go launches fn in a new goroutine with panic recovery. name identifies
// the goroutine in logs.
func Go(logger *zap.Logger, name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("goroutine panicked",
					zap.String("goroutine", name),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
			}
		}()
		fn()
	}()
}
