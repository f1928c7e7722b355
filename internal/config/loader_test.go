package config_test

import (
	"strings"
	"testing"

	"github.com/kouyulab/kouyu/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
  log_level: debug
capture:
  flush_interval_ms: 250
  silence:
    threshold: 15
    duration_ms: 1500
    poll_interval_ms: 100
recognition:
  whisper:
    server_url: "http://localhost:9000"
    model: ggml-base
    language: zh
  openai:
    api_key: sk-test
    model: whisper-1
  resample_timeout_s: 30
  transcribe_timeout_s: 60
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("ListenAddr=%q, want :8080", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel=%q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Capture.Silence.DurationMs != 1500 {
		t.Errorf("Silence.DurationMs=%d, want 1500", cfg.Capture.Silence.DurationMs)
	}
	if cfg.Recognition.Whisper.ServerURL != "http://localhost:9000" {
		t.Errorf("Whisper.ServerURL=%q", cfg.Recognition.Whisper.ServerURL)
	}
	if cfg.Recognition.OpenAI.APIKey != "sk-test" {
		t.Errorf("OpenAI.APIKey=%q", cfg.Recognition.OpenAI.APIKey)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_adress: ":8080"
recognition:
  whisper:
    server_url: "http://localhost:9000"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for misspelled field, got nil")
	}
}

func TestValidate_WhisperURLRequired(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  listen_addr: ":8080"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for missing whisper server_url, got nil")
	}
	if !strings.Contains(err.Error(), "server_url") {
		t.Errorf("error should mention server_url, got: %v", err)
	}
}

func TestValidate_WhisperURLMustBeAbsolute(t *testing.T) {
	t.Parallel()
	yaml := `
recognition:
  whisper:
    server_url: "localhost:9000"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for relative whisper server_url, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: verbose
recognition:
  whisper:
    server_url: "http://localhost:9000"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_SilenceThresholdRange(t *testing.T) {
	t.Parallel()
	yaml := `
capture:
  silence:
    threshold: 300
recognition:
  whisper:
    server_url: "http://localhost:9000"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range threshold, got nil")
	}
	if !strings.Contains(err.Error(), "threshold") {
		t.Errorf("error should mention threshold, got: %v", err)
	}
}

func TestValidate_ReportsAllFailures(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
capture:
  silence:
    duration_ms: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined errors, got nil")
	}
	for _, want := range []string{"log_level", "duration_ms", "server_url"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestValidate_ZeroTimeoutsAreDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
recognition:
  whisper:
    server_url: "http://localhost:9000"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Recognition.ResampleTimeoutS != 0 || cfg.Recognition.TranscribeTimeoutS != 0 {
		t.Error("zero timeouts should load as zero and defer to pipeline defaults")
	}
}
