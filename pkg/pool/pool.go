// Package pool implements the bounded, FIFO-fair admission gate and the
// free list of reusable execution-instance slots that back it.
//
// The semaphore decides HOW MANY callers may proceed concurrently; the free
// list decides WHICH instance index each admitted caller gets. The two are
// deliberately separate locks: the free-list mutex is held only for an O(1)
// push or pop, so contention concentrates entirely on the gate.
package pool

import (
	"fmt"
	"sync"
)

// Pool hands out exclusive ownership of instance indices 0..n-1 to at most n
// concurrent callers, admitted in FIFO order.
type Pool struct {
	sem  *TicketSemaphore
	size int
	mu   sync.Mutex
	free []int
}

// New creates a pool over n instance slots.
func New(n int) *Pool {
	p := &Pool{
		sem:  NewTicketSemaphore(n),
		size: n,
		free: make([]int, 0, n),
	}
	for i := 0; i < n; i++ {
		p.free = append(p.free, i)
	}
	return p
}

// Checkout blocks until admitted, then removes and returns an available
// instance index. The caller owns that index exclusively until Release.
func (p *Pool) Checkout() int {
	p.sem.Acquire()

	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		// Outstanding admissions always equal checked-out instances, so an
		// admitted caller can never observe an empty free list. Reaching
		// this is a bookkeeping bug, not a runtime condition.
		panic("pool: free list empty while holding an admitted ticket")
	}
	idx := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return idx
}

// Release returns idx to the free list and admits the next waiting caller.
// Must be called exactly once per Checkout, regardless of how the work on
// the instance turned out.
func (p *Pool) Release(idx int) {
	p.mu.Lock()
	p.free = append(p.free, idx)
	p.mu.Unlock()

	p.sem.Release()
}

// Available reports how many slots are currently free. Snapshot only; the
// value may be stale the moment it is returned.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Size returns the configured number of slots.
func (p *Pool) Size() int {
	return p.size
}

// String implements fmt.Stringer for log lines.
func (p *Pool) String() string {
	return fmt.Sprintf("pool(%d/%d free)", p.Available(), p.Size())
}
