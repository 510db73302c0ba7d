package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonpn/plex-2-discord/internal/config"
	"github.com/gordonpn/plex-2-discord/internal/httpapi"
	"github.com/gordonpn/plex-2-discord/internal/logging"
	"github.com/gordonpn/plex-2-discord/internal/metrics"
	"github.com/gordonpn/plex-2-discord/internal/monitor"
	"github.com/gordonpn/plex-2-discord/internal/notifications"
	"github.com/gordonpn/plex-2-discord/internal/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logging.New(logging.Config{})
		bootstrap.Fatal().Err(err).Msg("config error")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	m := metrics.InitializeMetrics(cfg.PushgatewayURL, cfg.JobName)

	notifier := notifications.NewDiscordNotifier(&http.Client{Timeout: 15 * time.Second}, cfg.DiscordWebhook)
	dispatcher := notifications.NewDispatcher(notifications.DispatcherConfig{
		WorkerCount: cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
	}, notifier, m, logger)
	dispatcher.Start()
	defer dispatcher.Stop()

	availability := monitor.New(monitor.Config{
		Interval:           cfg.CheckInterval,
		NotifyAfterRetries: cfg.NotifyAfterRetries,
		InitialStatus:      monitor.ParseStatus(cfg.InitialState),
		ProbeTimeout:       monitor.DefaultProbeTimeout,
	}, monitor.NewHTTPProber(&http.Client{}, cfg.PlexURL), dispatcher, m, logger)
	if err := availability.Start(); err != nil {
		logger.Fatal().Err(err).Msg("monitor start failed")
	}

	libraryRelay := relay.New(relay.Config{MaxSummaryLength: cfg.MaxSummaryLength}, dispatcher, m, logger)
	router := httpapi.NewRouter(httpapi.Options{Port: cfg.Port, Version: cfg.Version}, libraryRelay, availability, m, logger)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("version", cfg.Version).
			Str("plex", redactURL(cfg.PlexURL)).
			Int("max_summary_length", cfg.MaxSummaryLength).
			Msg("plex-2-discord listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	sig := <-signals
	logger.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	availability.Stop(shutdownCtx)
	_ = server.Shutdown(shutdownCtx)
}

// redactURL keeps scheme and host so tokens in the path or query stay out of logs.
func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return "unknown"
	}
	return parsed.Scheme + "://" + parsed.Host
}
