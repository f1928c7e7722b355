// Package whisper provides a local whisper.cpp-backed transcriber.
//
// It talks to a running whisper-server binary, which exposes a REST API at
// POST /inference accepting multipart WAV uploads. The expected-phrase hint
// is forwarded as the decoding prompt, which biases whisper towards the
// vocabulary of the phrase being practised.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080",
//	    whisper.WithLanguage("zh"),
//	)
//	res, err := p.Transcribe(ctx, buf, "你好")
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kouyulab/kouyu/pkg/audio"
	"github.com/kouyulab/kouyu/pkg/provider/stt"
)

const (
	defaultLanguage    = "zh"
	defaultHTTPTimeout = 60 * time.Second

	// warmPollInterval is the cadence at which Warm polls the server's
	// health endpoint while the model is still loading.
	warmPollInterval = 500 * time.Millisecond
)

// Compile-time assertions that Provider implements the stt interfaces.
var (
	_ stt.Transcriber = (*Provider)(nil)
	_ stt.Warmer      = (*Provider)(nil)
)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base", "small"). When empty the server uses whichever model it was
// started with — this is the default.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server.
// Defaults to "zh".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithHTTPClient replaces the HTTP client, mainly so tests can point the
// provider at an httptest server with a short timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements stt.Transcriber backed by a whisper.cpp HTTP server.
// It is stateless per request and safe for concurrent use.
type Provider struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a Provider that connects to the whisper.cpp server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe encodes buf as a 16-bit PCM WAV file and POSTs it to the
// whisper.cpp /inference endpoint as multipart/form-data. hint is forwarded
// as the "prompt" field.
func (p *Provider) Transcribe(ctx context.Context, buf audio.SampleBuffer, hint string) (stt.Result, error) {
	if buf.Empty() {
		return stt.Result{}, errors.New("whisper: refusing to transcribe an empty sample buffer")
	}

	wav := audio.EncodeWAV(audio.Float32ToPCM16(buf.Samples), buf.SampleRate, 1)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: write wav data: %w", err)
	}

	if p.language != "" {
		if err := mw.WriteField("language", p.language); err != nil {
			return stt.Result{}, fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return stt.Result{}, fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if hint != "" {
		if err := mw.WriteField("prompt", hint); err != nil {
			return stt.Result{}, fmt.Errorf("whisper: write prompt field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Result{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Result{}, fmt.Errorf("whisper: server returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return stt.Result{}, fmt.Errorf("whisper: decode response: %w", err)
	}

	return stt.Result{Text: strings.TrimSpace(decoded.Text)}, nil
}

// Warm polls the server's /health endpoint until it reports ready, emitting
// a "downloading" progress event while the model is still loading (the
// whisper server answers 503 during load) and a final "done" event once it
// answers 200. Percent is -1 throughout: the server does not expose load
// progress.
func (p *Provider) Warm(ctx context.Context, onProgress func(stt.Progress)) error {
	report := func(status string) {
		if onProgress != nil {
			onProgress(stt.Progress{Status: status, File: p.model, Percent: -1})
		}
	}

	reportedLoading := false
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.serverURL+"/health", nil)
		if err != nil {
			return fmt.Errorf("whisper: create health request: %w", err)
		}
		resp, err := p.httpClient.Do(req)
		if err == nil {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				report("done")
				return nil
			}
		}
		if err != nil && ctx.Err() != nil {
			return fmt.Errorf("whisper: warm-up cancelled: %w", ctx.Err())
		}

		if !reportedLoading {
			report("downloading")
			reportedLoading = true
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("whisper: warm-up cancelled: %w", ctx.Err())
		case <-time.After(warmPollInterval):
		}
	}
}
