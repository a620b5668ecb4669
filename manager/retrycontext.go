package manager

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

// OperationKind distinguishes the two recordable LLM operations.
type OperationKind string

const (
	OperationChat      OperationKind = "chat"
	OperationEmbedding OperationKind = "embedding"
)

// OperationContext is the ephemeral retry envelope of §4.9/§3: at most one
// is held at a time, capturing the exact call signature of a failed
// recording so it can be replayed verbatim.
type OperationContext struct {
	Kind      OperationKind
	Params    any
	Response  any
	Options   any
	CapturedAt time.Time
}

// RetryContextHolder is a single-cell, last-writer-wins store for the most
// recent failed recording call. Never promoted to a queue: an older
// context may no longer be safe to replay because server-side state has
// moved on (§9 design note).
type RetryContextHolder struct {
	mu  sync.Mutex
	ctx *OperationContext
}

// NewRetryContextHolder returns an empty holder.
func NewRetryContextHolder() *RetryContextHolder { return &RetryContextHolder{} }

// Push stores oc, discarding any previously held context.
func (h *RetryContextHolder) Push(oc OperationContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	oc.CapturedAt = time.Now()
	h.ctx = &oc
}

// Peek returns the currently held context, if any.
func (h *RetryContextHolder) Peek() (OperationContext, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ctx == nil {
		return OperationContext{}, false
	}
	return *h.ctx, true
}

// Clear discards the held context, if any.
func (h *RetryContextHolder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ctx = nil
}

// RetryPolicy bounds the exponential backoff replay loop of §4.9, grounded
// on graph/retry.go's ExponentialBackoffRetry (jittered exponential
// backoff capped at a hard ceiling).
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy returns the manager's default retry bounds.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// Replay retries fn up to policy.MaxRetries times with exponential
// backoff and jitter, clearing h on success.
func (h *RetryContextHolder) Replay(ctx context.Context, policy RetryPolicy, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := policy.BaseDelay * time.Duration(math.Pow(2, float64(attempt-2)))
			//nolint:gosec // jitter does not need a CSPRNG
			jitter := time.Duration(float64(delay) * 0.25 * (2*rand.Float64() - 1))
			delay += jitter
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := fn(ctx); err != nil {
			lastErr = err
			continue
		}

		h.Clear()
		return nil
	}
	return lastErr
}
