package strategy

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/xraph/taskq"
	"github.com/xraph/taskq/queue"
)

// Weighted draws a starting member with probability proportional to its
// weight and then scans forward to the last member, returning the first
// message found. Weights are parallel to the member list; members after the
// last weight can only be reached by the forward scan.
type Weighted struct {
	weights []int
	sum     int
	src     source
}

var _ Strategy = (*Weighted)(nil)

// WeightedOption configures Weighted.
type WeightedOption func(*Weighted)

// WithWeightedRand seeds Weighted with a fixed generator.
func WithWeightedRand(rnd *rand.Rand) WeightedOption {
	return func(w *Weighted) { w.src.rnd = rnd }
}

// NewWeighted creates a Weighted strategy. Weights must not be negative.
func NewWeighted(weights []int, opts ...WeightedOption) (*Weighted, error) {
	w := &Weighted{weights: append([]int(nil), weights...)}
	for i, v := range weights {
		if v < 0 {
			return nil, fmt.Errorf("%w: weight %d is negative (%d)", taskq.ErrInvalidConfig, i, v)
		}
		w.sum += v
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Weights returns a copy of the configured weights.
func (w *Weighted) Weights() []int {
	return append([]int(nil), w.weights...)
}

// Pick implements Strategy.
func (w *Weighted) Pick(ctx context.Context, members []queue.Backend) (*queue.Message, int, error) {
	for index := w.start(); index < len(members); index++ {
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

// start draws n in [1, sum] and walks the weights subtracting each until
// the remainder drops to zero or below.
func (w *Weighted) start() int {
	if w.sum == 0 {
		return 0
	}
	n := w.src.intN(w.sum) + 1
	for i, v := range w.weights {
		n -= v
		if n <= 0 {
			return i
		}
	}
	return len(w.weights) - 1
}
