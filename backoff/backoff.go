// Package backoff computes how long a poller waits after consecutive idle
// ticks. The runner asks for Delay(n) where n counts the empty polls since
// the last non-empty one. All strategies are stateless.
package backoff

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/xraph/taskq"
)

// Strategy computes the wait after idle tick n (1-indexed).
type Strategy interface {
	Delay(n int) time.Duration
}

// ──────────────────────────────────────────────────
// Constant
// ──────────────────────────────────────────────────

// Constant always waits Interval.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// ──────────────────────────────────────────────────
// Linear
// ──────────────────────────────────────────────────

// Linear waits min(Initial * n, Max).
type Linear struct {
	Initial time.Duration
	Max     time.Duration
}

// NewLinear creates a linear strategy.
func NewLinear(initial, maxDelay time.Duration) *Linear {
	return &Linear{Initial: initial, Max: maxDelay}
}

func (l *Linear) Delay(n int) time.Duration {
	d := l.Initial * time.Duration(n)
	if l.Max > 0 && d > l.Max {
		return l.Max
	}
	return d
}

// ──────────────────────────────────────────────────
// Exponential
// ──────────────────────────────────────────────────

// Exponential waits min(Initial * 2^(n-1), Max).
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay}
}

func (e *Exponential) Delay(n int) time.Duration {
	return capped(e.Initial, e.Max, n)
}

// ──────────────────────────────────────────────────
// ExponentialWithJitter (full jitter)
// ──────────────────────────────────────────────────

// ExponentialWithJitter waits a random duration in
// [0, min(Initial * 2^(n-1), Max)], so many idle supervisors sharing one
// backend do not poll in lockstep.
type ExponentialWithJitter struct {
	Initial time.Duration
	Max     time.Duration
}

// NewExponentialWithJitter creates an exponential strategy with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) *ExponentialWithJitter {
	return &ExponentialWithJitter{Initial: initial, Max: maxDelay}
}

func (e *ExponentialWithJitter) Delay(n int) time.Duration {
	return time.Duration(rand.Float64() * float64(capped(e.Initial, e.Max, n))) //nolint:gosec // jitter needs no crypto rand
}

func capped(initial, maxDelay time.Duration, n int) time.Duration {
	if n < 1 {
		n = 1
	}
	d := float64(initial) * math.Pow(2, float64(n-1))
	if maxDelay > 0 && d > float64(maxDelay) {
		return maxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// ──────────────────────────────────────────────────
// Defaults and parsing
// ──────────────────────────────────────────────────

// DefaultIdleWait is the idle wait of DefaultStrategy.
const DefaultIdleWait = time.Second

// DefaultStrategy waits DefaultIdleWait after every idle tick.
func DefaultStrategy() Strategy {
	return NewConstant(DefaultIdleWait)
}

// Parse builds a strategy from a compact description:
//
//	constant:1s
//	linear:500ms:10s
//	exponential:500ms:30s
//	jitter:500ms:30s
//
// A bare duration such as "2s" is a constant strategy.
func Parse(s string) (Strategy, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 1 {
		d, err := time.ParseDuration(parts[0])
		if err != nil {
			return nil, fmt.Errorf("%w: backoff %q: %v", taskq.ErrInvalidConfig, s, err)
		}
		return NewConstant(d), nil
	}

	durs := make([]time.Duration, 0, 2)
	for _, p := range parts[1:] {
		d, err := time.ParseDuration(p)
		if err != nil {
			return nil, fmt.Errorf("%w: backoff %q: %v", taskq.ErrInvalidConfig, s, err)
		}
		durs = append(durs, d)
	}

	switch {
	case parts[0] == "constant" && len(durs) == 1:
		return NewConstant(durs[0]), nil
	case parts[0] == "linear" && len(durs) == 2:
		return NewLinear(durs[0], durs[1]), nil
	case parts[0] == "exponential" && len(durs) == 2:
		return NewExponential(durs[0], durs[1]), nil
	case parts[0] == "jitter" && len(durs) == 2:
		return NewExponentialWithJitter(durs[0], durs[1]), nil
	default:
		return nil, fmt.Errorf("%w: backoff %q", taskq.ErrInvalidConfig, s)
	}
}
