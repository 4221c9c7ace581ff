package retry

import (
	"math"
	"time"
)

// Wait computes the pause before retry number attempt (starting at 1).
type Wait interface {
	Delay(attempt int) time.Duration
}

// Fixed waits the same duration before every retry.
type Fixed time.Duration

// Delay returns f.
func (f Fixed) Delay(int) time.Duration { return time.Duration(f) }

// Exponential multiplies the pause by Factor after each retry, capped at Max.
type Exponential struct {
	Initial time.Duration
	Factor  float64 // Values below 1 are treated as 2
	Max     time.Duration
}

// Delay returns Initial * Factor^(attempt-1), capped at Max when Max > 0.
func (e Exponential) Delay(attempt int) time.Duration {
	factor := e.Factor
	if factor < 1 {
		factor = 2
	}
	d := float64(e.Initial) * math.Pow(factor, float64(max(attempt-1, 0)))
	if e.Max > 0 && d > float64(e.Max) {
		return e.Max
	}
	return time.Duration(d)
}
