package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kunal/gpu-tile-runner/pkg/engine"
	"github.com/kunal/gpu-tile-runner/pkg/metrics"
	"github.com/kunal/gpu-tile-runner/pkg/runner"
	"github.com/kunal/gpu-tile-runner/pkg/video"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	eng, err := engine.NewSimulated(engine.SimOptions{
		Channels:   1,
		WScale:     2,
		HScale:     2,
		SampleSize: 1,
	}, nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	reg := prometheus.NewRegistry()
	sess, err := runner.New(runner.Params{
		FrameWidth:  16,
		FrameHeight: 12,
		NumStreams:  2,
	}, eng, metrics.New(reg), nil)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return New(":0", sess, reg, nil, nil)
}

func encodeFrame(f *video.Frame) ClipInput {
	clip := ClipInput{Planes: make([]string, len(f.Planes))}
	for i, p := range f.Planes {
		clip.Planes[i] = base64.StdEncoding.EncodeToString(p)
	}
	return clip
}

func postProcess(t *testing.T, srv *Server, req ProcessRequest) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/process", bytes.NewReader(body))
	srv.Handler().ServeHTTP(rec, r)
	return rec
}

func TestProcessEndpoint(t *testing.T) {
	srv := newTestServer(t)

	in := video.NewFrame(16, 12, 1, 1)
	for i := range in.Planes[0] {
		in.Planes[0][i] = byte(i)
	}

	rec := postProcess(t, srv, ProcessRequest{
		Width:      16,
		Height:     12,
		SampleSize: 1,
		Clips:      []ClipInput{encodeFrame(in)},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	var resp ProcessResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Width != 32 || resp.Height != 24 {
		t.Fatalf("output %dx%d, want 32x24", resp.Width, resp.Height)
	}
	if resp.RequestID == "" {
		t.Fatal("missing request id")
	}
	plane, err := base64.StdEncoding.DecodeString(resp.Planes[0])
	if err != nil {
		t.Fatalf("decode plane: %v", err)
	}
	if len(plane) != 32*24 {
		t.Fatalf("plane has %d bytes, want %d", len(plane), 32*24)
	}
	// Nearest-neighbour upscale: output (0,0) matches input (0,0).
	if plane[0] != in.Planes[0][0] {
		t.Fatalf("plane[0] = %d, want %d", plane[0], in.Planes[0][0])
	}
}

func TestProcessRejectsBadRequests(t *testing.T) {
	srv := newTestServer(t)

	cases := []struct {
		name string
		req  ProcessRequest
		code int
	}{
		{
			name: "no clips",
			req:  ProcessRequest{Width: 16, Height: 12, SampleSize: 1},
			code: http.StatusBadRequest,
		},
		{
			name: "short plane",
			req: ProcessRequest{
				Width: 16, Height: 12, SampleSize: 1,
				Clips: []ClipInput{{Planes: []string{
					base64.StdEncoding.EncodeToString(make([]byte, 7)),
				}}},
			},
			code: http.StatusBadRequest,
		},
		{
			name: "dimension mismatch",
			req: ProcessRequest{
				Width: 8, Height: 8, SampleSize: 1,
				Clips: []ClipInput{encodeFrame(video.NewFrame(8, 8, 1, 1))},
			},
			code: http.StatusUnprocessableEntity,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postProcess(t, srv, tc.req)
			if rec.Code != tc.code {
				t.Fatalf("status %d, want %d: %s", rec.Code, tc.code, rec.Body.String())
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Error == "" {
				t.Fatal("empty error message")
			}
		})
	}
}

func TestProcessRejectsMalformedJSON(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/v1/process", bytes.NewReader([]byte("{not json")))
	srv.Handler().ServeHTTP(rec, r)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/healthz status %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status %d", rec.Code)
	}
}
