// Command tilebench drives a local session with synthetic frames and
// reports throughput and latency percentiles. It always uses the in-process
// simulation backend, so it measures the pool, geometry and orchestration
// overhead rather than any real device.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/kunal/gpu-tile-runner/pkg/engine"
	"github.com/kunal/gpu-tile-runner/pkg/runner"
	"github.com/kunal/gpu-tile-runner/pkg/video"
)

func main() {
	frameW := flag.Int("frame-w", 1280, "Frame width")
	frameH := flag.Int("frame-h", 720, "Frame height")
	tileW := flag.Int("tile-w", 0, "Tile width (0 = whole frame)")
	tileH := flag.Int("tile-h", 0, "Tile height (0 = tile-w)")
	pad := flag.Int("pad", 0, "Tile padding")
	streams := flag.Int("streams", 2, "Instance pool size")
	workers := flag.Int("workers", 4, "Dispatcher workers")
	frames := flag.Int("frames", 200, "Frames to process")
	scale := flag.Int("scale", 2, "Simulated upscale factor")
	useGraph := flag.Bool("graph", false, "Use graph replay")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	eng, err := engine.NewSimulated(engine.SimOptions{
		Channels:   3,
		WScale:     *scale,
		HScale:     *scale,
		SampleSize: 4,
	}, logger)
	if err != nil {
		logger.Error("create engine", "error", err)
		os.Exit(1)
	}

	sess, err := runner.New(runner.Params{
		FrameWidth:  *frameW,
		FrameHeight: *frameH,
		TileWidth:   *tileW,
		TileHeight:  *tileH,
		Pad:         *pad,
		NumStreams:  *streams,
		UseGraph:    *useGraph,
	}, eng, nil, logger)
	if err != nil {
		logger.Error("create session", "error", err)
		os.Exit(1)
	}
	defer sess.Close()

	disp, err := runner.NewDispatcher(sess, *workers)
	if err != nil {
		logger.Error("create dispatcher", "error", err)
		os.Exit(1)
	}

	input := video.NewFrame(*frameW, *frameH, 3, sess.SampleSize())
	for p := range input.Planes {
		for i := range input.Planes[p] {
			input.Planes[p][i] = byte(i + p)
		}
	}

	submitted := make([]time.Time, *frames)
	jobs := make(chan runner.Job, *workers)
	start := time.Now()
	results := disp.Run(context.Background(), jobs)

	go func() {
		for seq := 0; seq < *frames; seq++ {
			submitted[seq] = time.Now()
			jobs <- runner.Job{Seq: uint64(seq), Inputs: []*video.Frame{input}}
		}
		close(jobs)
	}()

	var done, failed int
	latencies := make([]time.Duration, 0, *frames)
	for res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		done++
		latencies = append(latencies, time.Since(submitted[res.Seq]))
	}
	elapsed := time.Since(start)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	outW, outH := sess.OutputSize()

	fmt.Printf("frames:      %d ok, %d failed\n", done, failed)
	fmt.Printf("geometry:    %dx%d -> %dx%d, streams=%d, workers=%d, graph=%v\n",
		*frameW, *frameH, outW, outH, *streams, *workers, *useGraph)
	fmt.Printf("wall time:   %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("throughput:  %.1f frames/sec\n", float64(done)/elapsed.Seconds())
	if n := len(latencies); n > 0 {
		fmt.Printf("latency p50: %v  p99: %v  max: %v\n",
			latencies[n/2].Round(time.Microsecond),
			latencies[n*99/100].Round(time.Microsecond),
			latencies[n-1].Round(time.Microsecond))
	}
}
