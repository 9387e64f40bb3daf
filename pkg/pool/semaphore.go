package pool

import "sync"

// TicketSemaphore is a counting admission gate with strict FIFO ordering.
// Each Acquire takes a monotonically increasing ticket and blocks until the
// ticket becomes current; Release advances the current pointer by one and
// wakes every waiter so each can re-check its own ticket.
//
// Callers are admitted in exact ticket order: a later arrival can never be
// admitted while an earlier one is still waiting.
type TicketSemaphore struct {
	mu      sync.Mutex
	cond    *sync.Cond
	ticket  int64 // next ticket to hand out
	current int64 // tickets below this value are admitted
}

// NewTicketSemaphore creates a semaphore admitting at most n concurrent
// holders. n must be >= 1.
func NewTicketSemaphore(n int) *TicketSemaphore {
	if n < 1 {
		panic("pool: semaphore capacity must be >= 1")
	}
	s := &TicketSemaphore{current: int64(n)}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Acquire blocks the calling goroutine until its ticket is admitted.
func (s *TicketSemaphore) Acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.ticket
	s.ticket++

	// Wake-all on release means spurious wakeups are possible; each waiter
	// re-checks its own ticket, so they are harmless.
	for t >= s.current {
		s.cond.Wait()
	}
}

// Release admits the next waiting ticket. It must be called exactly once per
// successful Acquire, including on every failure path downstream.
func (s *TicketSemaphore) Release() {
	s.mu.Lock()
	s.current++
	s.mu.Unlock()
	s.cond.Broadcast()
}
