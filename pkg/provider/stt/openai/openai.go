// Package openai provides a cloud transcriber backed by the OpenAI audio
// transcription API. It is the streaming-recognizer fallback used when the
// local whisper.cpp server is unavailable.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/kouyulab/kouyu/pkg/audio"
	"github.com/kouyulab/kouyu/pkg/provider/stt"
)

const defaultLanguage = "zh"

// Compile-time assertion that Provider implements stt.Transcriber.
var _ stt.Transcriber = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithModel selects the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = openai.AudioModel(model)
	}
}

// WithLanguage sets the ISO-639-1 language code for recognition.
// Defaults to "zh".
func WithLanguage(lang string) Option {
	return func(p *Provider) {
		p.language = lang
	}
}

// WithBaseURL overrides the API endpoint, e.g. for a compatible proxy.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = baseURL
	}
}

// Provider implements stt.Transcriber backed by the OpenAI API.
// Safe for concurrent use.
type Provider struct {
	client   openai.Client
	model    openai.AudioModel
	language string
	baseURL  string
}

// New creates a Provider authenticated with apiKey. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}
	p := &Provider{
		model:    openai.AudioModelWhisper1,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(p)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if p.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(p.baseURL))
	}
	p.client = openai.NewClient(clientOpts...)
	return p, nil
}

// Transcribe uploads buf as a WAV file to the transcription endpoint. hint
// is forwarded as the prompt parameter, which the API uses as a decoding
// bias towards the expected phrase.
func (p *Provider) Transcribe(ctx context.Context, buf audio.SampleBuffer, hint string) (stt.Result, error) {
	if buf.Empty() {
		return stt.Result{}, errors.New("openai: refusing to transcribe an empty sample buffer")
	}

	wav := audio.EncodeWAV(audio.Float32ToPCM16(buf.Samples), buf.SampleRate, 1)

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "audio.wav", "audio/wav"),
		Model: p.model,
	}
	if p.language != "" {
		params.Language = openai.String(p.language)
	}
	if hint != "" {
		params.Prompt = openai.String(hint)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return stt.Result{}, fmt.Errorf("openai: transcription request: %w", err)
	}

	return stt.Result{Text: strings.TrimSpace(resp.Text)}, nil
}
