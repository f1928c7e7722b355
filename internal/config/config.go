// Package config provides the configuration schema and loader for the kouyu
// pronunciation practice server.
package config

// LogLevel controls log verbosity for the kouyu server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for kouyu.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Capture     CaptureConfig     `yaml:"capture"`
	Recognition RecognitionConfig `yaml:"recognition"`
}

// ServerConfig holds network and logging settings for the kouyu server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// CaptureConfig tunes recording sessions started over the practice socket.
type CaptureConfig struct {
	// FlushIntervalMs is how often a live source flushes encoded chunks,
	// in milliseconds. 0 selects the built-in default.
	FlushIntervalMs int `yaml:"flush_interval_ms"`

	// Silence configures silence-based auto-stop.
	Silence SilenceConfig `yaml:"silence"`
}

// SilenceConfig tunes the silence detector used for auto-stop.
type SilenceConfig struct {
	// Threshold is the volume level (0-255) at or below which audio counts
	// as silence. 0 selects the built-in default.
	Threshold int `yaml:"threshold"`

	// DurationMs is how long silence must persist after speech before the
	// detector fires, in milliseconds. 0 selects the built-in default.
	DurationMs int `yaml:"duration_ms"`

	// PollIntervalMs is how often the volume level is sampled, in
	// milliseconds. 0 selects the built-in default.
	PollIntervalMs int `yaml:"poll_interval_ms"`
}

// RecognitionConfig holds speech-to-text backend settings and pipeline
// stage timeouts.
type RecognitionConfig struct {
	// Whisper configures the primary local whisper.cpp backend.
	Whisper WhisperConfig `yaml:"whisper"`

	// OpenAI configures the optional cloud fallback backend. Fallback is
	// enabled when APIKey is non-empty.
	OpenAI OpenAIConfig `yaml:"openai"`

	// ResampleTimeoutS bounds the decode+resample stage, in seconds.
	// 0 selects the built-in default.
	ResampleTimeoutS int `yaml:"resample_timeout_s"`

	// TranscribeTimeoutS bounds a single transcription call, in seconds.
	// 0 selects the built-in default.
	TranscribeTimeoutS int `yaml:"transcribe_timeout_s"`
}

// WhisperConfig points at a running whisper.cpp server.
type WhisperConfig struct {
	// ServerURL is the base URL of the whisper.cpp server
	// (e.g., "http://localhost:9000").
	ServerURL string `yaml:"server_url"`

	// Model names the model file the server was started with; forwarded so
	// multi-model servers pick the right one. May be empty.
	Model string `yaml:"model"`

	// Language is the ISO 639-1 decoding language. Empty means the
	// provider's default ("zh").
	Language string `yaml:"language"`
}

// OpenAIConfig holds credentials for the cloud transcription fallback.
type OpenAIConfig struct {
	// APIKey authenticates against the OpenAI API. Empty disables the
	// fallback entirely.
	APIKey string `yaml:"api_key"`

	// Model selects the transcription model (e.g., "whisper-1").
	// Empty means the provider's default.
	Model string `yaml:"model"`
}
