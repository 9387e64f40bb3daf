// Package dashboard tracks live pool state and pushes it to connected
// WebSocket clients.
package dashboard

import (
	"sync"
	"time"

	"github.com/kunal/gpu-tile-runner/pkg/gpu"
)

// InstanceState is one instance's view in the pool snapshot.
type InstanceState struct {
	Index        int     `json:"index"`
	Busy         bool    `json:"busy"`
	Frames       int64   `json:"frames"`
	Failures     int64   `json:"failures"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// PoolState is the JSON payload pushed to dashboard clients.
type PoolState struct {
	SessionID     string          `json:"session_id"`
	Backend       string          `json:"backend"`
	PoolSize      int             `json:"pool_size"`
	Busy          int             `json:"busy"`
	FramesTotal   int64           `json:"frames_total"`
	FailuresTotal int64           `json:"failures_total"`
	Instances     []InstanceState `json:"instances"`
	Device        *gpu.Info       `json:"device,omitempty"`
}

// Tracker records per-instance call activity. It implements the runner's
// Observer contract; updates arrive from whichever goroutine holds the
// instance, snapshots from the broadcast loop.
type Tracker struct {
	mu        sync.RWMutex
	instances []InstanceState
}

// NewTracker creates a tracker for a pool of n instances.
func NewTracker(n int) *Tracker {
	instances := make([]InstanceState, n)
	for i := range instances {
		instances[i].Index = i
	}
	return &Tracker{instances: instances}
}

// CallStarted marks the instance busy.
func (t *Tracker) CallStarted(instance int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.instances[instance].Busy = true
}

// CallFinished records the call outcome and updates the latency moving
// average (EMA, alpha 0.3).
func (t *Tracker) CallFinished(instance int, elapsed time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := &t.instances[instance]
	st.Busy = false
	if err != nil {
		st.Failures++
	} else {
		st.Frames++
	}
	ms := float64(elapsed.Microseconds()) / 1000
	if st.AvgLatencyMs == 0 {
		st.AvgLatencyMs = ms
	} else {
		st.AvgLatencyMs = st.AvgLatencyMs*0.7 + ms*0.3
	}
}

// Snapshot returns a copy of the per-instance states with pool totals.
func (t *Tracker) Snapshot() ([]InstanceState, int, int64, int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]InstanceState, len(t.instances))
	copy(out, t.instances)

	var busy int
	var frames, failures int64
	for _, st := range out {
		if st.Busy {
			busy++
		}
		frames += st.Frames
		failures += st.Failures
	}
	return out, busy, frames, failures
}
