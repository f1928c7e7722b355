// Command kouyu is the Mandarin pronunciation practice server: it records or
// receives audio clips, transcribes them against a local whisper.cpp backend
// (with an optional cloud fallback), and grades the transcript against the
// expected phrase.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/kouyulab/kouyu/internal/config"
	"github.com/kouyulab/kouyu/internal/observe"
	"github.com/kouyulab/kouyu/internal/recognize"
	"github.com/kouyulab/kouyu/internal/resilience"
	"github.com/kouyulab/kouyu/internal/server"
	"github.com/kouyulab/kouyu/pkg/capture"
	"github.com/kouyulab/kouyu/pkg/provider/stt"
	openaistt "github.com/kouyulab/kouyu/pkg/provider/stt/openai"
	"github.com/kouyulab/kouyu/pkg/provider/stt/whisper"
)

const defaultListenAddr = ":8080"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// Local development keeps the OpenAI key in a .env file; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "kouyu: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "kouyu: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}

	slog.Info("kouyu starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"log_level", cfg.Server.LogLevel,
		"whisper_url", cfg.Recognition.Whisper.ServerURL,
		"cloud_fallback", cfg.Recognition.OpenAI.APIKey != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	transcriber, warmer, err := buildTranscriber(ctx, cfg)
	if err != nil {
		slog.Error("failed to build transcriber", "err", err)
		return 1
	}

	orch := recognize.New(transcriber, observe.Default(), recognize.Config{
		ResampleTimeout:   time.Duration(cfg.Recognition.ResampleTimeoutS) * time.Second,
		TranscribeTimeout: time.Duration(cfg.Recognition.TranscribeTimeoutS) * time.Second,
	})

	srv := server.New(orch, observe.Default(), server.Config{
		Silence: capture.SilenceConfig{
			Threshold:    cfg.Capture.Silence.Threshold,
			Duration:     time.Duration(cfg.Capture.Silence.DurationMs) * time.Millisecond,
			PollInterval: time.Duration(cfg.Capture.Silence.PollIntervalMs) * time.Millisecond,
		},
		Checkers: []server.Checker{
			server.HTTPChecker("whisper", strings.TrimSuffix(cfg.Recognition.Whisper.ServerURL, "/")+"/health"),
		},
		Warmer: warmer,
	})

	httpServer := &http.Server{
		Addr:              listenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", listenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildTranscriber assembles the transcription chain: the local whisper.cpp
// backend first, the OpenAI cloud backend as fallback when a key is
// configured. The local backend doubles as the Warmer reported to practice
// clients.
func buildTranscriber(ctx context.Context, cfg *config.Config) (stt.Transcriber, stt.Warmer, error) {
	var whisperOpts []whisper.Option
	if cfg.Recognition.Whisper.Model != "" {
		whisperOpts = append(whisperOpts, whisper.WithModel(cfg.Recognition.Whisper.Model))
	}
	if cfg.Recognition.Whisper.Language != "" {
		whisperOpts = append(whisperOpts, whisper.WithLanguage(cfg.Recognition.Whisper.Language))
	}
	local, err := whisper.New(cfg.Recognition.Whisper.ServerURL, whisperOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("whisper provider: %w", err)
	}

	// Wait for the local model to load; the server stays usable even when
	// warming fails because the fallback chain covers the cold window.
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := local.Warm(warmCtx, func(p stt.Progress) {
		slog.Info("whisper model warming", "status", p.Status, "file", p.File)
	}); err != nil {
		slog.Warn("whisper model warm-up incomplete", "err", err)
	}

	apiKey := cfg.Recognition.OpenAI.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return local, local, nil
	}

	var cloudOpts []openaistt.Option
	if cfg.Recognition.OpenAI.Model != "" {
		cloudOpts = append(cloudOpts, openaistt.WithModel(cfg.Recognition.OpenAI.Model))
	}
	cloud, err := openaistt.New(apiKey, cloudOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("openai provider: %w", err)
	}

	chain := resilience.NewTranscriberFallback("whisper", local)
	chain.AddFallback("openai", cloud)
	return chain, local, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
