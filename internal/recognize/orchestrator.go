// Package recognize wires the capture, resampling, transcription, and
// scoring stages into one pipeline: Recorder → Resampler → Transcriber →
// hallucination filter → Scorer.
//
// The orchestrator owns the degradation policy. Resampling an empty clip and
// any transcription failure (including timeout) collapse to an empty
// transcript, which is still scored — the learner always receives a score
// and feedback tier rather than an error page. Only decode failures, which
// indicate a genuinely broken upload, are surfaced.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/kouyulab/kouyu/internal/observe"
	"github.com/kouyulab/kouyu/internal/score"
	"github.com/kouyulab/kouyu/pkg/audio"
	"github.com/kouyulab/kouyu/pkg/capture"
	"github.com/kouyulab/kouyu/pkg/provider/stt"
)

// Stage timeout defaults. Whisper inference on CPU is slow; resampling is
// pure computation and 30 s only guards against pathological inputs.
const (
	DefaultResampleTimeout   = 30 * time.Second
	DefaultTranscribeTimeout = 60 * time.Second
)

// Config tunes the orchestrator's stage timeouts. Zero values select the
// defaults.
type Config struct {
	ResampleTimeout   time.Duration
	TranscribeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.ResampleTimeout <= 0 {
		c.ResampleTimeout = DefaultResampleTimeout
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = DefaultTranscribeTimeout
	}
	return c
}

// Attempt is the outcome of one scored practice attempt.
type Attempt struct {
	// Transcript is the cleaned transcript that was scored. Empty means
	// nothing was detected (or transcription degraded).
	Transcript string

	// Result is the grading outcome for Transcript against the expected
	// phrase.
	Result score.Result
}

// Orchestrator runs the recognition pipeline. It is stateless with respect
// to capture sessions — any number of goroutines may score clips
// concurrently through one Orchestrator.
type Orchestrator struct {
	transcriber stt.Transcriber
	metrics     *observe.Metrics
	cfg         Config
}

// New creates an Orchestrator using transcriber for speech recognition.
// metrics may be nil, in which case the process-wide default instruments are
// used.
func New(transcriber stt.Transcriber, metrics *observe.Metrics, cfg Config) *Orchestrator {
	if metrics == nil {
		metrics = observe.Default()
	}
	return &Orchestrator{
		transcriber: transcriber,
		metrics:     metrics,
		cfg:         cfg.withDefaults(),
	}
}

// ScoreClip runs the full pipeline over one encoded audio clip: resample,
// transcribe (with the expected phrase as decoding hint), filter degenerate
// model output, and grade against expected.
//
// A zero-length clip or an [audio.ErrEmptyBuffer] decode outcome scores an
// empty transcript. A decode failure is returned as an error wrapping
// [audio.ErrDecodeFailure]. Transcription failures and timeouts are logged,
// counted, and degraded to an empty transcript — never returned.
func (o *Orchestrator) ScoreClip(ctx context.Context, encoded []byte, expected string) (Attempt, error) {
	transcript, err := o.transcribeClip(ctx, encoded, expected)
	if err != nil {
		return Attempt{}, err
	}

	res := score.Score(transcript, expected)

	o.metrics.Attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tier", string(res.Feedback)),
		attribute.Bool("passed", res.Passed),
	))
	o.metrics.ScoreDistribution.Record(ctx, float64(res.Score))

	slog.Info("attempt scored",
		"score", res.Score,
		"passed", res.Passed,
		"tier", res.Feedback,
		"transcript_len", len([]rune(transcript)),
	)
	return Attempt{Transcript: transcript, Result: res}, nil
}

// Finish stops the live session on recorder and scores whatever was
// captured. The recorder releases the capture source regardless of what the
// rest of the pipeline does; a stop that fails after release is degraded to
// an empty clip.
func (o *Orchestrator) Finish(ctx context.Context, recorder *capture.Recorder, expected string) (Attempt, error) {
	encoded, err := recorder.Stop(ctx)
	if err != nil {
		// The source is already released; losing the final flush degrades
		// to "nothing captured" rather than an error to the learner.
		slog.Warn("recorder stop failed, scoring empty attempt", "err", err)
		encoded = nil
	}
	return o.ScoreClip(ctx, encoded, expected)
}

// transcribeClip produces the cleaned transcript for a clip, applying the
// degradation policy described on ScoreClip.
func (o *Orchestrator) transcribeClip(ctx context.Context, encoded []byte, expected string) (string, error) {
	if len(encoded) == 0 {
		return "", nil
	}

	buf, err := o.resample(ctx, encoded)
	switch {
	case errors.Is(err, audio.ErrEmptyBuffer):
		return "", nil
	case errors.Is(err, errResampleTimeout):
		// Same degradation as a failed transcription: empty result, not a
		// crash.
		o.metrics.TranscriptionErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", "resample_timeout")))
		slog.Warn("resample timed out, scoring empty attempt", "err", err)
		return "", nil
	case err != nil:
		return "", fmt.Errorf("recognize: resample: %w", err)
	}
	if buf.Empty() {
		return "", nil
	}

	start := time.Now()
	tctx, cancel := context.WithTimeout(ctx, o.cfg.TranscribeTimeout)
	defer cancel()

	res, err := o.transcriber.Transcribe(tctx, buf, expected)
	elapsed := time.Since(start)

	if err != nil {
		reason := "failure"
		if errors.Is(err, context.DeadlineExceeded) || tctx.Err() != nil {
			reason = "timeout"
		}
		o.metrics.TranscriptionDuration.Record(ctx, elapsed.Seconds(),
			metric.WithAttributes(attribute.String("status", reason)))
		o.metrics.TranscriptionErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("reason", reason)))
		slog.Warn("transcription degraded to empty transcript", "reason", reason, "err", err)
		return "", nil
	}

	o.metrics.TranscriptionDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("status", "ok")))

	return CleanTranscript(res.Text), nil
}

// resample runs the decode+resample stage under its own deadline. The work
// is pure computation, so the deadline is enforced by racing a worker
// goroutine against the context rather than by interrupting it.
func (o *Orchestrator) resample(ctx context.Context, encoded []byte) (audio.SampleBuffer, error) {
	rctx, cancel := context.WithTimeout(ctx, o.cfg.ResampleTimeout)
	defer cancel()

	type outcome struct {
		buf audio.SampleBuffer
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()

	go func() {
		buf, err := audio.Resample(encoded)
		done <- outcome{buf: buf, err: err}
	}()

	select {
	case out := <-done:
		o.metrics.ResampleDuration.Record(ctx, time.Since(start).Seconds())
		return out.buf, out.err
	case <-rctx.Done():
		return audio.SampleBuffer{}, fmt.Errorf("%w: %v", errResampleTimeout, rctx.Err())
	}
}

// errResampleTimeout marks a resample stage that overran its deadline; the
// pipeline degrades it to an empty transcript.
var errResampleTimeout = errors.New("resample timed out")
