// Package strategy selects which member of a composite backend to claim
// from. Both strategies stop at the first non-empty member and report the
// member index so the composite can route a later remove or requeue back to
// the same member.
package strategy

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/xraph/taskq/queue"
)

// Strategy claims one message from a list of member backends.
type Strategy interface {
	// Pick returns the claimed message and the index of the member it came
	// from. It returns nil, -1, nil when every attempted member was empty.
	Pick(ctx context.Context, members []queue.Backend) (*queue.Message, int, error)
}

// source draws random integers, from a seeded generator when one is
// configured.
type source struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// intN returns a value in [0, n).
func (s *source) intN(n int) int {
	if s.rnd == nil {
		return rand.IntN(n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.IntN(n)
}
