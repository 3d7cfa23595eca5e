package strategy

import (
	"context"
	"math/rand/v2"

	"github.com/xraph/taskq/queue"
)

// DefaultMaxAttempts is the number of members Random tries before giving up.
const DefaultMaxAttempts = 5

// Random picks a member uniformly at random and retries with a fresh pick
// when it is empty, up to MaxAttempts times. A member may be tried more than
// once.
type Random struct {
	maxAttempts int
	src         source
}

var _ Strategy = (*Random)(nil)

// RandomOption configures Random.
type RandomOption func(*Random)

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) RandomOption {
	return func(r *Random) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithRandRandom seeds Random with a fixed generator.
func WithRandRandom(rnd *rand.Rand) RandomOption {
	return func(r *Random) { r.src.rnd = rnd }
}

// NewRandom creates a Random strategy.
func NewRandom(opts ...RandomOption) *Random {
	r := &Random{maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Pick implements Strategy.
func (r *Random) Pick(ctx context.Context, members []queue.Backend) (*queue.Message, int, error) {
	if len(members) == 0 {
		return nil, -1, nil
	}
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		index := r.src.intN(len(members))
		m, err := members[index].Claim(ctx)
		if err != nil {
			return nil, -1, err
		}
		if m != nil {
			return m, index, nil
		}
	}
	return nil, -1, nil
}
