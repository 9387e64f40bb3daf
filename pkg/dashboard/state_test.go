package dashboard

import (
	"errors"
	"testing"
	"time"
)

func TestTrackerRecordsOutcomes(t *testing.T) {
	tr := NewTracker(2)

	tr.CallStarted(0)
	instances, busy, _, _ := tr.Snapshot()
	if !instances[0].Busy || busy != 1 {
		t.Fatalf("instance 0 not marked busy: %+v", instances)
	}

	tr.CallFinished(0, 10*time.Millisecond, nil)
	tr.CallStarted(1)
	tr.CallFinished(1, 20*time.Millisecond, errors.New("device fault"))

	instances, busy, frames, failures := tr.Snapshot()
	if busy != 0 {
		t.Fatalf("busy = %d after all calls finished", busy)
	}
	if frames != 1 || failures != 1 {
		t.Fatalf("frames=%d failures=%d, want 1/1", frames, failures)
	}
	if instances[0].AvgLatencyMs == 0 {
		t.Fatal("latency average never updated")
	}
}

func TestTrackerLatencyEMA(t *testing.T) {
	tr := NewTracker(1)
	tr.CallFinished(0, 100*time.Millisecond, nil)
	tr.CallFinished(0, 200*time.Millisecond, nil)

	instances, _, _, _ := tr.Snapshot()
	got := instances[0].AvgLatencyMs
	// 100*0.7 + 200*0.3
	if got < 129 || got > 131 {
		t.Fatalf("EMA = %.2f, want ~130", got)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	tr := NewTracker(1)
	instances, _, _, _ := tr.Snapshot()
	instances[0].Frames = 99

	fresh, _, frames, _ := tr.Snapshot()
	if fresh[0].Frames != 0 || frames != 0 {
		t.Fatal("snapshot aliases tracker state")
	}
}
