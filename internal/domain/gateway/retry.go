package gateway

import (
	"context"
	"errors"
	"strings"
)

// Retryable reports whether a provider error is worth retrying at the
// transport layer: network failures and 429/5xx responses clear up on
// their own; auth failures, 4xx responses, and schema errors do not,
// and neither does anything the classifier cannot recognize —
// re-sending a request the provider rejected for a permanent reason
// only burns the backoff budget.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	matchAny := func(patterns ...string) bool {
		for _, p := range patterns {
			if strings.Contains(errStr, p) {
				return true
			}
		}
		return false
	}

	// Permanent classes first: a "400 bad request" must not fall through
	// to the broader transient patterns below.
	switch {
	case matchAny("unauthorized", "invalid api key", "401", "403", "authentication"):
		return false
	case matchAny("bad request", "invalid argument", "model not found", "400", "404",
		"invalid_request", "schema"):
		return false
	case matchAny("content filter", "content policy"):
		return false
	}

	return matchAny("429", "rate limit", "too many requests",
		"500", "502", "503", "504", "529",
		"timeout", "timed out", "connection reset", "connection refused",
		"no such host", "broken pipe", "eof", "network")
}
