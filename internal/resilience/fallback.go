// Package resilience provides failover across transcription backends.
//
// The recognition pipeline prefers the local whisper.cpp server; when it
// fails repeatedly (server down, model unloaded) the chain degrades to a
// cloud recognizer. Each entry tracks its own consecutive-failure count and
// is benched for a cooldown period once that count crosses the limit, so a
// dead backend stops adding latency to every attempt.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kouyulab/kouyu/pkg/audio"
	"github.com/kouyulab/kouyu/pkg/provider/stt"
)

// ErrAllFailed is returned when every backend in the chain fails or is
// benched.
var ErrAllFailed = errors.New("resilience: all transcription backends failed")

const (
	defaultMaxFailures = 3
	defaultCooldown    = 30 * time.Second
)

// Option is a functional option for configuring a TranscriberFallback.
type Option func(*TranscriberFallback)

// WithMaxFailures sets how many consecutive failures bench a backend.
// Default: 3.
func WithMaxFailures(n int) Option {
	return func(f *TranscriberFallback) {
		f.maxFailures = n
	}
}

// WithCooldown sets how long a benched backend is skipped before it is
// retried. Default: 30 s.
func WithCooldown(d time.Duration) Option {
	return func(f *TranscriberFallback) {
		f.cooldown = d
	}
}

// entry pairs a named backend with its failure-tracking state.
type entry struct {
	name      string
	backend   stt.Transcriber
	failures  int
	downUntil time.Time
}

// TranscriberFallback implements [stt.Transcriber] with ordered failover
// across multiple backends. Safe for concurrent use.
type TranscriberFallback struct {
	mu          sync.Mutex
	entries     []*entry
	maxFailures int
	cooldown    time.Duration
	now         func() time.Time
}

// Compile-time interface assertion.
var _ stt.Transcriber = (*TranscriberFallback)(nil)

// NewTranscriberFallback creates a chain with primary as the preferred
// backend. Register further backends with [TranscriberFallback.AddFallback].
func NewTranscriberFallback(primaryName string, primary stt.Transcriber, opts ...Option) *TranscriberFallback {
	f := &TranscriberFallback{
		entries:     []*entry{{name: primaryName, backend: primary}},
		maxFailures: defaultMaxFailures,
		cooldown:    defaultCooldown,
		now:         time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// AddFallback appends a backend. Fallbacks are tried in registration order,
// after the primary.
func (f *TranscriberFallback) AddFallback(name string, backend stt.Transcriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, &entry{name: name, backend: backend})
}

// Transcribe tries each healthy backend in order until one succeeds. Benched
// backends are skipped until their cooldown elapses. Returns [ErrAllFailed]
// wrapping the last error when no backend succeeds. A context cancellation
// aborts the chain immediately — switching backends cannot outrun the
// caller's deadline.
func (f *TranscriberFallback) Transcribe(ctx context.Context, buf audio.SampleBuffer, hint string) (stt.Result, error) {
	var lastErr error

	for i := 0; ; i++ {
		e := f.nextEntry(i)
		if e == nil {
			break
		}
		if e == skipped {
			continue
		}

		res, err := e.backend.Transcribe(ctx, buf, hint)
		if err == nil {
			f.recordSuccess(e)
			return res, nil
		}
		lastErr = err
		f.recordFailure(e)

		if ctx.Err() != nil {
			// The deadline is spent; trying another backend is pointless.
			return stt.Result{}, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
		}
		slog.Warn("transcription backend failed, trying next", "backend", e.name, "err", err)
	}

	if lastErr == nil {
		lastErr = errors.New("every backend is in cooldown")
	}
	return stt.Result{}, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// skipped is a sentinel returned by nextEntry for benched backends.
var skipped = &entry{}

// nextEntry returns the i-th entry if it is healthy, the skipped sentinel if
// it is benched, or nil past the end of the chain.
func (f *TranscriberFallback) nextEntry(i int) *entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.entries) {
		return nil
	}
	e := f.entries[i]
	if !e.downUntil.IsZero() && f.now().Before(e.downUntil) {
		slog.Debug("skipping benched transcription backend", "backend", e.name)
		return skipped
	}
	return e
}

func (f *TranscriberFallback) recordSuccess(e *entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.failures = 0
	e.downUntil = time.Time{}
}

func (f *TranscriberFallback) recordFailure(e *entry) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.failures++
	if e.failures >= f.maxFailures {
		e.downUntil = f.now().Add(f.cooldown)
		e.failures = 0
		slog.Warn("transcription backend benched", "backend", e.name, "cooldown", f.cooldown)
	}
}
