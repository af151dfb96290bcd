package domain

import "time"

// CircuitBreaker tracks consecutive tick failures and enforces a trading
// pause. Unlike a kill switch it recovers on its own: after the cooldown
// elapses the breaker closes and ticking resumes. This bounds retry
// amplification against a degraded dependency without a manual restart.
type CircuitBreaker struct {
	ConsecutiveFailures int
	MaxFailures         int
	CooldownUntil       time.Time
	Cooldown            time.Duration
	Trips               int
}

// NewCircuitBreaker builds a breaker that opens after maxFailures
// consecutive failures and stays open for cooldown.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) CircuitBreaker {
	return CircuitBreaker{MaxFailures: maxFailures, Cooldown: cooldown}
}

// Allow reports whether ticking may proceed at the given time.
func (cb *CircuitBreaker) Allow(now time.Time) bool {
	return now.After(cb.CooldownUntil) || now.Equal(cb.CooldownUntil)
}

// RecordFailure counts a failed tick and may open the breaker.
// Returns true if this failure tripped it.
func (cb *CircuitBreaker) RecordFailure(now time.Time) bool {
	cb.ConsecutiveFailures++
	if cb.ConsecutiveFailures >= cb.MaxFailures {
		cb.CooldownUntil = now.Add(cb.Cooldown)
		cb.ConsecutiveFailures = 0
		cb.Trips++
		return true
	}
	return false
}

// RecordSuccess resets the consecutive failure counter.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.ConsecutiveFailures = 0
}
