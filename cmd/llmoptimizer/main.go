package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Harvey-AU/llmoptimizer/internal/observability"
)

const serviceName = "llmoptimizer"

// Config holds the process environment. Project settings live in
// internal/config and are loaded per command.
type Config struct {
	Env                  string
	LogLevel             string
	SentryDSN            string
	ObservabilityEnabled bool
	MetricsAddr          string
	OTLPEndpoint         string
	OTLPHeaders          string
	OTLPInsecure         bool
}

func loadEnvConfig() *Config {
	return &Config{
		Env:                  getEnvWithDefault("APP_ENV", "development"),
		LogLevel:             getEnvWithDefault("LOG_LEVEL", "info"),
		SentryDSN:            os.Getenv("SENTRY_DSN"),
		ObservabilityEnabled: getEnvWithDefault("OBSERVABILITY_ENABLED", "false") == "true",
		MetricsAddr:          getEnvWithDefault("METRICS_ADDR", ":9464"),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OTLPHeaders:          os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"),
		OTLPInsecure:         getEnvWithDefault("OTEL_EXPORTER_OTLP_INSECURE", "false") == "true",
	}
}

func main() {
	// Load .env files - .env.local takes priority for development
	_ = godotenv.Load(".env.local", ".env")

	config := loadEnvConfig()
	setupLogging(config)

	if config.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              config.SentryDSN,
			Environment:      config.Env,
			AttachStacktrace: true,
			Debug:            config.Env == "development",
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialise Sentry")
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := startObservability(ctx, config)
	defer shutdown()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		sentry.CaptureException(err)
		log.Error().Err(err).Msg("Generation failed")
		// Deferred flushes do not run after os.Exit
		shutdown()
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}

// startObservability initialises telemetry when enabled and serves /metrics
// for the lifetime of the command. The returned func is safe to call twice.
func startObservability(ctx context.Context, config *Config) func() {
	noop := func() {}
	if !config.ObservabilityEnabled {
		return noop
	}

	providers, err := observability.Init(ctx, observability.Config{
		Enabled:        true,
		ServiceName:    serviceName,
		Environment:    config.Env,
		OTLPEndpoint:   strings.TrimSpace(config.OTLPEndpoint),
		OTLPHeaders:    observability.ParseHeaders(config.OTLPHeaders),
		OTLPInsecure:   config.OTLPInsecure,
		MetricsAddress: config.MetricsAddr,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialise observability providers")
		return noop
	}

	var metricsSrv *http.Server
	if providers.MetricsHandler != nil && config.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", providers.MetricsHandler)
		metricsSrv = &http.Server{
			Addr:              config.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			log.Info().Str("addr", config.MetricsAddr).Msg("Metrics server listening")
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				sentry.CaptureException(err)
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	done := false
	return func() {
		if done {
			return
		}
		done = true

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warn().Err(err).Msg("Graceful shutdown of metrics server failed")
			}
		}
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Failed to flush telemetry providers cleanly")
		}
	}
}

// getEnvWithDefault retrieves an environment variable or returns a default value if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// setupLogging configures the logging system. Logs go to stderr so the
// command's own output stays clean.
func setupLogging(config *Config) {
	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)

	if config.Env == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		log.Logger = zerolog.New(os.Stderr).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger()
	}
}
