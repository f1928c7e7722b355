// Package server exposes the kouyu HTTP surface: scored attempt uploads, the
// live practice WebSocket, health probes, and Prometheus metrics.
//
//   - POST /v1/attempts — multipart upload of one recorded clip, scored
//     synchronously.
//   - GET  /v1/practice — WebSocket practice session with server-side silence
//     auto-stop.
//   - GET  /healthz     — liveness probe; always 200.
//   - GET  /readyz      — readiness probe; 200 only when every registered
//     checker passes.
//   - GET  /metrics     — Prometheus exposition.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kouyulab/kouyu/internal/observe"
	"github.com/kouyulab/kouyu/internal/recognize"
	"github.com/kouyulab/kouyu/pkg/audio"
	"github.com/kouyulab/kouyu/pkg/capture"
	"github.com/kouyulab/kouyu/pkg/provider/stt"
)

// maxClipBytes caps the size of an uploaded clip. A minute of 48 kHz stereo
// PCM16 WAV is ~23 MiB; anything past that is not a practice attempt.
const maxClipBytes = 32 << 20

// checkTimeout is the maximum time a single readiness check may take before
// its context is cancelled.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check must return nil when the
// dependency is healthy and respect context cancellation.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// HTTPChecker builds a Checker that considers the dependency ready when a GET
// to url answers with a 2xx status. Used to probe the whisper.cpp backend.
func HTTPChecker(name, url string) Checker {
	client := &http.Client{Timeout: checkTimeout}
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return err
			}
			resp, err := client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("status %d", resp.StatusCode)
			}
			return nil
		},
	}
}

// Config tunes the server's practice sessions.
type Config struct {
	// Silence configures the auto-stop detector for WebSocket sessions.
	Silence capture.SilenceConfig

	// Checkers are evaluated sequentially on each /readyz request.
	Checkers []Checker

	// Warmer, when set, reports backend model loading as progress events on
	// each practice socket.
	Warmer stt.Warmer
}

// Server is the kouyu HTTP handler set. Construct with New and mount via
// Handler.
type Server struct {
	orch    *recognize.Orchestrator
	metrics *observe.Metrics
	cfg     Config
}

// New creates a Server that scores attempts through orch. metrics may be nil,
// in which case the process-wide default instruments are used.
func New(orch *recognize.Orchestrator, metrics *observe.Metrics, cfg Config) *Server {
	if metrics == nil {
		metrics = observe.Default()
	}
	return &Server{orch: orch, metrics: metrics, cfg: cfg}
}

// Handler returns the routed HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/attempts", s.instrument("/v1/attempts", s.handleAttempt))
	// The practice socket hijacks the connection, so it bypasses the
	// response-recording middleware.
	mux.HandleFunc("GET /v1/practice", s.handlePractice)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request duration and status for one route.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next(rec, r)
		s.metrics.HTTPRequestDuration.Record(r.Context(), time.Since(start).Seconds(),
			metric.WithAttributes(
				attribute.String("route", route),
				attribute.String("status", strconv.Itoa(rec.status)),
			))
	}
}

// attemptResponse is the JSON body returned for a scored attempt.
type attemptResponse struct {
	Transcript string   `json:"transcript"`
	Score      int      `json:"score"`
	Passed     bool     `json:"passed"`
	Feedback   string   `json:"feedback"`
	Matched    []string `json:"matched"`
	Missed     []string `json:"missed"`
	Extra      []string `json:"extra"`
	Similarity float64  `json:"similarity"`
}

func newAttemptResponse(att recognize.Attempt) attemptResponse {
	return attemptResponse{
		Transcript: att.Transcript,
		Score:      att.Result.Score,
		Passed:     att.Result.Passed,
		Feedback:   string(att.Result.Feedback),
		Matched:    runeStrings(att.Result.Matched),
		Missed:     runeStrings(att.Result.Missed),
		Extra:      runeStrings(att.Result.Extra),
		Similarity: att.Result.Similarity,
	}
}

func runeStrings(runes []rune) []string {
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}

// handleAttempt scores one uploaded clip. The multipart form carries the clip
// under "audio" and the expected phrase under "expected".
func (s *Server) handleAttempt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxClipBytes)
	if err := r.ParseMultipartForm(maxClipBytes); err != nil {
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}

	expected := r.FormValue("expected")
	if expected == "" {
		writeError(w, http.StatusBadRequest, "expected phrase is required")
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	encoded, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read audio file")
		return
	}

	att, err := s.orch.ScoreClip(r.Context(), encoded, expected)
	switch {
	case errors.Is(err, audio.ErrDecodeFailure):
		writeError(w, http.StatusBadRequest, "audio file is not decodable WAV")
		return
	case err != nil:
		slog.Error("attempt scoring failed", "err", err)
		writeError(w, http.StatusInternalServerError, "scoring failed")
		return
	}

	writeJSON(w, http.StatusOK, newAttemptResponse(att))
}

// probeResult is the JSON response body for the health endpoints.
type probeResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// handleHealthz is a liveness probe. A running process that can serve HTTP is
// considered alive.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, probeResult{Status: "ok"})
}

// handleReadyz evaluates every configured checker, each under its own
// deadline, and reports 503 when any fails.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(s.cfg.Checkers))
	allOK := true

	for _, c := range s.cfg.Checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			allOK = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	res := probeResult{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !allOK {
		res.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
