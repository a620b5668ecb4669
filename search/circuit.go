package search

import (
	"sync"
	"time"

	"github.com/mrorigo/memcore/memerr"
)

// CircuitState is one strategy's failure-tracking state (§4.8). Grounded on
// graph/retry.go's CircuitBreaker, generalized from wrapping one Node to
// wrapping one named Strategy, and extended with the retry/fallback
// category distinction spec'd in §7 — the teacher's breaker has no such
// concept.
type CircuitState struct {
	mu sync.Mutex

	consecutiveFailures int
	open                bool
	lastTripAt          time.Time
	probeAllowed        bool
	lastCategory        memerr.ErrorCategory

	failureThreshold int
	cooldown         time.Duration
}

// NewCircuitState returns a closed circuit with the given trip threshold
// and cooldown.
func NewCircuitState(failureThreshold int, cooldown time.Duration) *CircuitState {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitState{failureThreshold: failureThreshold, cooldown: cooldown}
}

// Allow reports whether a dispatch may proceed, transitioning open→half-open
// once the cooldown has elapsed. Only one probe is admitted until its
// outcome is recorded.
func (c *CircuitState) Allow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return true
	}
	if time.Since(c.lastTripAt) >= c.cooldown {
		if c.probeAllowed {
			return false
		}
		c.probeAllowed = true
		return true
	}
	return false
}

// RecordSuccess closes the circuit and clears the failure count. A success
// during a half-open probe closes the circuit outright (single-probe
// discipline per §4.8).
func (c *CircuitState) RecordSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures = 0
	c.open = false
	c.probeAllowed = false
}

// RecordFailure tracks a failure and trips the circuit at threshold.
func (c *CircuitState) RecordFailure(category memerr.ErrorCategory) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveFailures++
	c.lastCategory = category
	c.lastTripAt = time.Now()

	if c.probeAllowed || c.consecutiveFailures >= c.failureThreshold {
		c.open = true
		c.probeAllowed = false
	}
}

// Reset forces the circuit closed, for operator use.
func (c *CircuitState) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consecutiveFailures = 0
	c.open = false
	c.probeAllowed = false
}

// Trip forces the circuit open, for operator use.
func (c *CircuitState) Trip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.lastTripAt = time.Now()
}

// IsOpen reports the current open/closed flag without side effects.
func (c *CircuitState) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// ShouldRetry implements §4.8's shouldRetry: transient categories retry,
// validation/configuration categories never do.
func ShouldRetry(category memerr.ErrorCategory) bool {
	switch category {
	case memerr.CategoryStorage, memerr.CategoryTimeout, memerr.CategoryNetwork, memerr.CategoryTemporary:
		return true
	default:
		return false
	}
}

// FallbackFor implements the orchestrator's degradation mapping:
// fts→like, like→recent, else recent.
func FallbackFor(strategyName string) string {
	switch strategyName {
	case "fts":
		return "like"
	case "like":
		return "recent"
	default:
		return "recent"
	}
}

// Notifier is invoked for every failure passed to Breaker.RecordFailure.
// The orchestrator's retry and fallback dispatches record their failures
// the same way, so failures during recovery are notified too.
type Notifier func(strategyName string, category memerr.ErrorCategory, err error)

// Breaker owns one CircuitState per strategy name.
type Breaker struct {
	mu       sync.Mutex
	states   map[string]*CircuitState
	notify   Notifier
	failThr  int
	cooldown time.Duration
}

// NewBreaker returns a Breaker with the given default trip threshold and
// cooldown, applied to every strategy the first time it is seen.
func NewBreaker(failureThreshold int, cooldown time.Duration, notify Notifier) *Breaker {
	return &Breaker{
		states:   make(map[string]*CircuitState),
		notify:   notify,
		failThr:  failureThreshold,
		cooldown: cooldown,
	}
}

func (b *Breaker) stateFor(name string) *CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.states[name]
	if !ok {
		s = NewCircuitState(b.failThr, b.cooldown)
		b.states[name] = s
	}
	return s
}

// Allow reports whether strategyName may currently be dispatched.
func (b *Breaker) Allow(strategyName string) bool {
	return b.stateFor(strategyName).Allow()
}

// RecordSuccess closes strategyName's circuit.
func (b *Breaker) RecordSuccess(strategyName string) {
	b.stateFor(strategyName).RecordSuccess()
}

// RecordFailure tracks err against strategyName and notifies.
func (b *Breaker) RecordFailure(strategyName string, err error) {
	category := memerr.Classify(err)
	b.stateFor(strategyName).RecordFailure(category)
	if b.notify != nil {
		b.notify(strategyName, category, err)
	}
}

// Reset force-closes strategyName's circuit.
func (b *Breaker) Reset(strategyName string) {
	b.stateFor(strategyName).Reset()
}

// Trip force-opens strategyName's circuit.
func (b *Breaker) Trip(strategyName string) {
	b.stateFor(strategyName).Trip()
}

// IsOpen reports strategyName's open flag.
func (b *Breaker) IsOpen(strategyName string) bool {
	return b.stateFor(strategyName).IsOpen()
}
