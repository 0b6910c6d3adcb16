package live

import "time"

// reconnectPolicy is the bounded linear-backoff state machine for unexpected
// connection loss. It is deliberately separated from socket I/O so the bound
// and backoff growth are testable in isolation.
type reconnectPolicy struct {
	maxAttempts  int
	baseInterval time.Duration
	attempt      int
}

func newReconnectPolicy(maxAttempts int, baseInterval time.Duration) *reconnectPolicy {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxReconnects
	}
	if baseInterval <= 0 {
		baseInterval = defaultReconnectInterval
	}
	return &reconnectPolicy{maxAttempts: maxAttempts, baseInterval: baseInterval}
}

// next consumes one attempt. It returns the delay before the attempt and
// whether the attempt may be made at all. Once the budget is exhausted it
// keeps returning false until reset.
func (p *reconnectPolicy) next() (time.Duration, bool) {
	if p.attempt >= p.maxAttempts {
		return 0, false
	}
	p.attempt++
	return time.Duration(p.attempt) * p.baseInterval, true
}

// reset clears the attempt counter. Called on every successful connection.
func (p *reconnectPolicy) reset() {
	p.attempt = 0
}
