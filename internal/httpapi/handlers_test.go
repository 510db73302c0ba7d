package httpapi

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/gordonpn/plex-2-discord/internal/metrics"
	"github.com/gordonpn/plex-2-discord/internal/monitor"
	"github.com/gordonpn/plex-2-discord/internal/notifications"
	"github.com/gordonpn/plex-2-discord/internal/relay"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []notifications.Message
}

func (f *fakeSender) Send(msg notifications.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
}

type fixedStatus struct {
	state monitor.State
}

func (f fixedStatus) Snapshot() monitor.State { return f.state }

func newTestRouter(sender notifications.Sender, status StatusSource, m *metrics.Metrics) http.Handler {
	r := relay.New(relay.Config{MaxSummaryLength: 200}, sender, m, zerolog.Nop())
	return NewRouter(Options{Port: "3666", Version: "1.4.0"}, r, status, m, zerolog.Nop())
}

func webhookRequest(t *testing.T, payload string, thumb []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("payload", payload); err != nil {
		t.Fatal(err)
	}
	if thumb != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="thumb"; filename="thumb"`)
		h.Set("Content-Type", "image/jpeg")
		part, err := writer.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(thumb)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/webhook", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestWebhookRelaysLibraryNew(t *testing.T) {
	sender := &fakeSender{}
	router := newTestRouter(sender, fixedStatus{}, metrics.NewMetrics("", ""))

	payload := `{"event":"library.new","Metadata":{"type":"show","librarySectionTitle":"TV Shows","title":"Severance","summary":"` + strings.Repeat("s", 250) + `"}}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, webhookRequest(t, payload, []byte("jpeg")))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "Webhook received successfully" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.sent))
	}

	msg := sender.sent[0]
	if msg.Content != "New show was just uploaded to TV Shows library!" {
		t.Errorf("Content = %q", msg.Content)
	}
	if len(msg.Embed.Description) != 200 {
		t.Errorf("description length = %d, want 200", len(msg.Embed.Description))
	}
	if msg.Attachment == nil || string(msg.Attachment.Data) != "jpeg" || msg.Attachment.Filename != "thumb.jpg" {
		t.Errorf("Attachment = %+v", msg.Attachment)
	}
	if msg.Embed.ThumbnailURL != "attachment://thumb.jpg" {
		t.Errorf("ThumbnailURL = %q", msg.Embed.ThumbnailURL)
	}
}

func TestWebhookWithoutThumbnail(t *testing.T) {
	sender := &fakeSender{}
	router := newTestRouter(sender, fixedStatus{}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, webhookRequest(t, `{"event":"library.new","Metadata":{"type":"movie","librarySectionTitle":"Movies","title":"Heat"}}`, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(sender.sent))
	}
	if sender.sent[0].Attachment != nil || sender.sent[0].Embed.ThumbnailURL != "" {
		t.Errorf("message without thumbnail = %+v", sender.sent[0])
	}
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	sender := &fakeSender{}
	m := metrics.NewMetrics("", "")
	router := newTestRouter(sender, fixedStatus{}, m)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, webhookRequest(t, `{"event":"media.play","Metadata":{"type":"movie"}}`, []byte("jpeg")))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for ignored event", rec.Code)
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %d, want 0", len(sender.sent))
	}
	if got := testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("ignored")); got != 1 {
		t.Errorf("ignored counter = %v, want 1", got)
	}
}

func TestWebhookRejectsMalformedPayload(t *testing.T) {
	tests := []struct {
		name string
		req  func(t *testing.T) *http.Request
	}{
		{"not json", func(t *testing.T) *http.Request { return webhookRequest(t, "{oops", nil) }},
		{"empty payload", func(t *testing.T) *http.Request { return webhookRequest(t, "", nil) }},
		{"json body", func(t *testing.T) *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"event":"library.new"}`))
			req.Header.Set("Content-Type", "application/json")
			return req
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			m := metrics.NewMetrics("", "")
			router := newTestRouter(sender, fixedStatus{}, m)

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, tt.req(t))

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(sender.sent) != 0 {
				t.Errorf("sent = %d, want 0", len(sender.sent))
			}
			if got := testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("invalid")); got != 1 {
				t.Errorf("invalid counter = %v, want 1", got)
			}
		})
	}
}

func TestRootStatus(t *testing.T) {
	checked := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	status := fixedStatus{state: monitor.State{
		Status:            monitor.StatusOffline,
		LastCheckedAt:     checked,
		LastWentOfflineAt: checked.Add(-5 * time.Minute),
	}}
	router := newTestRouter(&fakeSender{}, status, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"plex-2-discord is running on port 3666",
		"version: 1.4.0",
		"plex: offline",
		"last check: 2026-10-17T12:00:00Z",
		"last offline: 2026-10-17T11:55:00Z",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q:\n%s", want, body)
		}
	}
}

func TestRootStatusBeforeFirstProbe(t *testing.T) {
	router := newTestRouter(&fakeSender{}, fixedStatus{state: monitor.NewState(monitor.StatusUnknown)}, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "plex: unknown") || !strings.Contains(body, "last check: never") {
		t.Errorf("body = %q", body)
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	m := metrics.NewMetrics("", "")
	router := newTestRouter(&fakeSender{}, fixedStatus{}, m)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "plex2discord_server_online") {
		t.Errorf("metrics = %d\n%s", rec.Code, rec.Body.String())
	}
}
