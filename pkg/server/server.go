// Package server exposes the processing session over HTTP: a JSON
// inference endpoint, Prometheus metrics, health, and the WebSocket
// dashboard feed.
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kunal/gpu-tile-runner/pkg/dashboard"
	"github.com/kunal/gpu-tile-runner/pkg/runner"
	"github.com/kunal/gpu-tile-runner/pkg/video"
)

// ProcessRequest is the JSON body of POST /v1/process. Each input clip
// carries its planes as base64-encoded tightly packed rows.
type ProcessRequest struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	SampleSize int         `json:"sample_size"`
	Clips      []ClipInput `json:"clips"`
}

// ClipInput is one input clip's plane data.
type ClipInput struct {
	Planes []string `json:"planes"`
}

// ProcessResponse is the JSON body returned on success.
type ProcessResponse struct {
	RequestID  string   `json:"request_id"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	SampleSize int      `json:"sample_size"`
	Planes     []string `json:"planes"`
	ElapsedMs  float64  `json:"elapsed_ms"`
}

type errorResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error"`
	Instance  *int   `json:"instance,omitempty"`
}

// Server serves one session over HTTP.
type Server struct {
	sess  *runner.Session
	bcast *dashboard.Broadcaster
	log   *slog.Logger
	http  *http.Server
}

// New builds the server. bcast may be nil to disable /ws.
func New(addr string, sess *runner.Session, reg *prometheus.Registry, bcast *dashboard.Broadcaster, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		sess:  sess,
		bcast: bcast,
		log:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/process", s.handleProcess)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if bcast != nil {
		mux.HandleFunc("GET /ws", bcast.HandleWS)
	}

	s.http = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe blocks until the listener fails or Shutdown is called.
func (s *Server) ListenAndServe() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the route table, used by tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	log := s.log.With("request_id", id)

	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, id, fmt.Errorf("decode request: %w", err))
		return
	}

	inputs, err := decodeClips(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, id, err)
		return
	}

	start := time.Now()
	out, err := s.sess.Process(inputs)
	if err != nil {
		status := http.StatusUnprocessableEntity
		var infErr *runner.InferenceError
		if errors.As(err, &infErr) {
			status = http.StatusInternalServerError
		}
		log.Warn("process failed", "error", err)
		resp := errorResponse{RequestID: id, Error: err.Error()}
		if infErr != nil {
			resp.Instance = &infErr.Instance
		}
		writeJSON(w, status, resp)
		return
	}

	planes := make([]string, out.PlaneCount())
	for i, p := range out.Planes {
		planes[i] = base64.StdEncoding.EncodeToString(p)
	}
	writeJSON(w, http.StatusOK, ProcessResponse{
		RequestID:  id,
		Width:      out.Width,
		Height:     out.Height,
		SampleSize: out.SampleSize,
		Planes:     planes,
		ElapsedMs:  float64(time.Since(start).Microseconds()) / 1000,
	})
}

// decodeClips turns the wire request into frames, validating sizes before
// any work is admitted to the pool.
func decodeClips(req *ProcessRequest) ([]*video.Frame, error) {
	if len(req.Clips) == 0 {
		return nil, fmt.Errorf("request has no clips")
	}
	sampleSize := req.SampleSize
	if sampleSize == 0 {
		sampleSize = 4
	}
	rowBytes := req.Width * sampleSize
	planeBytes := req.Height * rowBytes

	inputs := make([]*video.Frame, len(req.Clips))
	for ci, clip := range req.Clips {
		f := &video.Frame{
			Width:      req.Width,
			Height:     req.Height,
			Stride:     rowBytes,
			SampleSize: sampleSize,
			Planes:     make([][]byte, len(clip.Planes)),
		}
		for pi, enc := range clip.Planes {
			data, err := base64.StdEncoding.DecodeString(enc)
			if err != nil {
				return nil, fmt.Errorf("clip %d plane %d: %w", ci, pi, err)
			}
			if len(data) != planeBytes {
				return nil, fmt.Errorf("clip %d plane %d: %d bytes, want %d",
					ci, pi, len(data), planeBytes)
			}
			f.Planes[pi] = data
		}
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("clip %d: %w", ci, err)
		}
		inputs[ci] = f
	}
	return inputs, nil
}

func writeError(w http.ResponseWriter, status int, id string, err error) {
	writeJSON(w, status, errorResponse{RequestID: id, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
