package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/gordonpn/plex-2-discord/internal/metrics"
	"github.com/gordonpn/plex-2-discord/internal/monitor"
	"github.com/gordonpn/plex-2-discord/internal/notifications"
	"github.com/gordonpn/plex-2-discord/internal/plex"
)

const (
	maxWebhookBytes     = 32 << 20
	maxWebhookMemory    = 8 << 20
	webhookAcknowledged = "Webhook received successfully"
)

type EventRelay interface {
	Handle(event plex.Event) (notifications.Message, bool)
}

type StatusSource interface {
	Snapshot() monitor.State
}

type Options struct {
	Port    string
	Version string
}

type Handlers struct {
	options Options
	relay   EventRelay
	status  StatusSource
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

func NewRouter(options Options, relay EventRelay, status StatusSource, m *metrics.Metrics, logger zerolog.Logger) http.Handler {
	handlers := &Handlers{
		options: options,
		relay:   relay,
		status:  status,
		metrics: m,
		logger:  logger.With().Str("component", "http").Logger(),
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)

	router.Get("/", handlers.root)
	router.Get("/healthz", handlers.healthz)
	router.Post("/webhook", handlers.webhook)
	router.Method(http.MethodGet, "/metrics", m.Handler())

	return router
}

func (handlers *Handlers) healthz(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
	_, _ = writer.Write([]byte("ok"))
}

func (handlers *Handlers) root(writer http.ResponseWriter, _ *http.Request) {
	state := handlers.status.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "plex-2-discord is running on port %s\n", handlers.options.Port)
	if handlers.options.Version != "" {
		fmt.Fprintf(&b, "version: %s\n", handlers.options.Version)
	}
	fmt.Fprintf(&b, "plex: %s\n", state.Status)
	fmt.Fprintf(&b, "last check: %s\n", formatTime(state.LastCheckedAt))
	fmt.Fprintf(&b, "last offline: %s\n", formatTime(state.LastWentOfflineAt))

	writePlain(writer, http.StatusOK, b.String())
}

func (handlers *Handlers) webhook(writer http.ResponseWriter, request *http.Request) {
	request.Body = http.MaxBytesReader(writer, request.Body, maxWebhookBytes)

	event, err := plex.ParseRequest(request, maxWebhookMemory)
	if request.MultipartForm != nil {
		defer request.MultipartForm.RemoveAll()
	}
	if err != nil {
		handlers.metrics.RecordWebhook("invalid")
		handlers.logger.Warn().Err(err).Str("remote", request.RemoteAddr).Msg("rejecting webhook")

		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writePlain(writer, status, "invalid payload")
		return
	}

	handlers.relay.Handle(event)
	writePlain(writer, http.StatusOK, webhookAcknowledged)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}

func writePlain(writer http.ResponseWriter, status int, body string) {
	writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	writer.WriteHeader(status)
	_, _ = writer.Write([]byte(body))
}
