package resilience

import "time"

// Policy configures retries and the per-operation circuit breaker.
type Policy struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

func DefaultPolicy() Policy {
	return Policy{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Second,
		RetryMultiplier:     2.0,

		BreakerEnabled:          true,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func (p Policy) normalize() Policy {
	def := DefaultPolicy()

	if p.RetryMaxAttempts <= 0 {
		p.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if p.RetryInitialBackoff <= 0 {
		p.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if p.RetryMaxBackoff < p.RetryInitialBackoff {
		p.RetryMaxBackoff = p.RetryInitialBackoff
	}
	if p.RetryMultiplier < 1.0 {
		p.RetryMultiplier = def.RetryMultiplier
	}
	if p.BreakerMinRequests == 0 {
		p.BreakerMinRequests = def.BreakerMinRequests
	}
	if p.BreakerFailureRatio <= 0 || p.BreakerFailureRatio > 1 {
		p.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if p.BreakerOpenTimeout <= 0 {
		p.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if p.BreakerHalfOpenMaxCalls == 0 {
		p.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	return p
}

// backoff returns the wait before attempt+1.
func (p Policy) backoff(attempt int) time.Duration {
	wait := float64(p.RetryInitialBackoff)
	for i := 1; i < attempt; i++ {
		wait *= p.RetryMultiplier
		if time.Duration(wait) >= p.RetryMaxBackoff {
			return p.RetryMaxBackoff
		}
	}
	return time.Duration(wait)
}
