package dashboard

import (
	"context"
	"time"

	"github.com/kunal/gpu-tile-runner/pkg/gpu"
)

// Feed periodically snapshots the tracker and broadcasts the pool state.
type Feed struct {
	tracker     *Tracker
	broadcaster *Broadcaster
	probe       *gpu.Probe

	SessionID string
	Backend   string
	DeviceID  int
	Interval  time.Duration
}

// NewFeed wires the snapshot loop. probe may be nil.
func NewFeed(tracker *Tracker, broadcaster *Broadcaster, probe *gpu.Probe) *Feed {
	return &Feed{
		tracker:     tracker,
		broadcaster: broadcaster,
		probe:       probe,
		Interval:    500 * time.Millisecond,
	}
}

// Run broadcasts until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.broadcaster.Broadcast(f.snapshot())
		}
	}
}

func (f *Feed) snapshot() *PoolState {
	instances, busy, frames, failures := f.tracker.Snapshot()
	state := &PoolState{
		SessionID:     f.SessionID,
		Backend:       f.Backend,
		PoolSize:      len(instances),
		Busy:          busy,
		FramesTotal:   frames,
		FailuresTotal: failures,
		Instances:     instances,
	}
	if f.probe != nil {
		if info, err := f.probe.DeviceInfo(f.DeviceID); err == nil {
			state.Device = info
		}
	}
	return state
}
