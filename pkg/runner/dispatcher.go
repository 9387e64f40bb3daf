package runner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/kunal/gpu-tile-runner/pkg/video"
)

// Job is one frame request: a sequence number and the input frames for that
// position (one per clip).
type Job struct {
	Seq    uint64
	Inputs []*video.Frame
}

// Result pairs a job's sequence number with its output frame or failure.
// A failed job carries no frame; retrying is the caller's decision.
type Result struct {
	Seq   uint64
	Frame *video.Frame
	Err   error
}

// Dispatcher drives a session with a fixed number of worker goroutines, one
// in-flight call per worker. The session itself spawns nothing; all
// parallelism lives here, on the host side of the boundary.
type Dispatcher struct {
	sess    *Session
	workers int
}

// NewDispatcher sizes the worker count. More workers than pool slots is
// legal and simply queues the excess on the admission gate.
func NewDispatcher(sess *Session, workers int) (*Dispatcher, error) {
	if workers < 1 {
		return nil, fmt.Errorf("runner: worker count %d must be >= 1", workers)
	}
	return &Dispatcher{sess: sess, workers: workers}, nil
}

// Run consumes jobs until the channel closes or ctx is cancelled, emitting
// one Result per job. The returned channel closes after the last worker
// exits. Per-frame failures are reported in their Result, never by stopping
// the run.
func (d *Dispatcher) Run(ctx context.Context, jobs <-chan Job) <-chan Result {
	results := make(chan Result, d.workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case job, ok := <-jobs:
					if !ok {
						return nil
					}
					frame, err := d.sess.Process(job.Inputs)
					select {
					case results <- Result{Seq: job.Seq, Frame: frame, Err: err}:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}

	go func() {
		g.Wait()
		close(results)
	}()
	return results
}
