package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown fields are rejected so typos fail loudly instead of silently
// falling back to defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Capture.FlushIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("capture.flush_interval_ms %d must not be negative", cfg.Capture.FlushIntervalMs))
	}
	if s := cfg.Capture.Silence; s.Threshold < 0 || s.Threshold > 255 {
		errs = append(errs, fmt.Errorf("capture.silence.threshold %d is out of range [0, 255]", s.Threshold))
	}
	if cfg.Capture.Silence.DurationMs < 0 {
		errs = append(errs, fmt.Errorf("capture.silence.duration_ms %d must not be negative", cfg.Capture.Silence.DurationMs))
	}
	if cfg.Capture.Silence.PollIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("capture.silence.poll_interval_ms %d must not be negative", cfg.Capture.Silence.PollIntervalMs))
	}

	if cfg.Recognition.Whisper.ServerURL == "" {
		errs = append(errs, errors.New("recognition.whisper.server_url is required"))
	} else if u, err := url.Parse(cfg.Recognition.Whisper.ServerURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("recognition.whisper.server_url %q is not an absolute URL", cfg.Recognition.Whisper.ServerURL))
	}
	if cfg.Recognition.ResampleTimeoutS < 0 {
		errs = append(errs, fmt.Errorf("recognition.resample_timeout_s %d must not be negative", cfg.Recognition.ResampleTimeoutS))
	}
	if cfg.Recognition.TranscribeTimeoutS < 0 {
		errs = append(errs, fmt.Errorf("recognition.transcribe_timeout_s %d must not be negative", cfg.Recognition.TranscribeTimeoutS))
	}

	return errors.Join(errs...)
}
