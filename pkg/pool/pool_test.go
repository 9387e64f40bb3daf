package pool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSemaphoreAdmitsUpToCapacity(t *testing.T) {
	s := NewTicketSemaphore(3)
	done := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		go func() {
			s.Acquire()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("acquire %d did not complete within capacity", i)
		}
	}
}

// Capacity 2, three callers arriving in order: C1 and C2 admitted
// immediately, C3 blocked until one of them releases.
func TestSemaphoreThirdCallerBlocksUntilRelease(t *testing.T) {
	s := NewTicketSemaphore(2)

	s.Acquire() // C1
	s.Acquire() // C2

	admitted := make(chan struct{})
	go func() {
		s.Acquire() // C3
		close(admitted)
	}()

	select {
	case <-admitted:
		t.Fatal("third caller admitted while both slots held")
	case <-time.After(50 * time.Millisecond):
	}

	s.Release() // C1 done
	select {
	case <-admitted:
	case <-time.After(2 * time.Second):
		t.Fatal("third caller not admitted after release")
	}

	s.Release()
	s.Release()
}

// With capacity 1 the semaphore degenerates to a FIFO queue: waiters must be
// admitted in exactly the order they called Acquire.
func TestSemaphoreFIFOOrder(t *testing.T) {
	const waiters = 16
	s := NewTicketSemaphore(1)
	s.Acquire() // hold the only slot so every goroutine below queues up

	var mu sync.Mutex
	var order []int
	started := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if id == 0 {
				close(started)
			} else {
				<-started
				// Tickets are taken inside Acquire, so stagger the calls to
				// pin down arrival order.
				time.Sleep(time.Duration(id) * 5 * time.Millisecond)
			}
			s.Acquire()
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			s.Release()
		}(i)
	}

	<-started
	time.Sleep(time.Duration(waiters) * 6 * time.Millisecond)
	s.Release() // open the gate
	wg.Wait()

	for i, id := range order {
		if id != i {
			t.Fatalf("admission order %v not FIFO at position %d", order, i)
		}
	}
}

func TestPoolExclusiveIndices(t *testing.T) {
	const (
		n     = 4
		calls = 200
	)
	p := New(n)

	var inUse [n]atomic.Bool
	var concurrent, peak atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx := p.Checkout()
			if idx < 0 || idx >= n {
				t.Errorf("index %d out of range", idx)
			}
			if !inUse[idx].CompareAndSwap(false, true) {
				t.Errorf("index %d handed to two concurrent callers", idx)
			}
			c := concurrent.Add(1)
			for {
				old := peak.Load()
				if c <= old || peak.CompareAndSwap(old, c) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			concurrent.Add(-1)
			inUse[idx].Store(false)
			p.Release(idx)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got > n {
		t.Fatalf("observed %d concurrent checkouts, capacity %d", got, n)
	}
	if free := p.Available(); free != n {
		t.Fatalf("free list has %d entries after all releases, want %d", free, n)
	}
}

func TestPoolReleaseRestoresFreeList(t *testing.T) {
	p := New(2)
	a := p.Checkout()
	b := p.Checkout()
	if a == b {
		t.Fatalf("both checkouts returned index %d", a)
	}
	if free := p.Available(); free != 0 {
		t.Fatalf("free list %d with both slots out, want 0", free)
	}
	p.Release(a)
	p.Release(b)
	if free := p.Available(); free != 2 {
		t.Fatalf("free list %d after releases, want 2", free)
	}
}

func TestNewSemaphoreRejectsZeroCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for capacity 0")
		}
	}()
	NewTicketSemaphore(0)
}
