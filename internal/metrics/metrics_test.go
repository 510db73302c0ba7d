package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.RecordWebhook("relayed")
	m.RecordNotification("library", time.Second, nil)
	m.RecordNotificationDropped("status")
	m.RecordProbe(time.Second, true)
	m.RecordState(nil, 0)
	m.RecordTransition("online")
	if err := m.Push(t.Context()); err != nil {
		t.Errorf("Push() on nil = %v", err)
	}
}

func TestRecordCounters(t *testing.T) {
	m := NewMetrics("", "")

	m.RecordWebhook("relayed")
	m.RecordWebhook("relayed")
	m.RecordWebhook("ignored")
	m.RecordNotification("library", 10*time.Millisecond, nil)
	m.RecordNotification("status", 10*time.Millisecond, errors.New("boom"))
	m.RecordNotificationDropped("status")
	m.RecordProbe(time.Millisecond, false)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"webhooks relayed", testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("relayed")), 2},
		{"webhooks ignored", testutil.ToFloat64(m.WebhooksTotal.WithLabelValues("ignored")), 1},
		{"library ok", testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("library", "ok")), 1},
		{"status error", testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("status", "error")), 1},
		{"status dropped", testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("status", "dropped")), 1},
		{"probe failure", testutil.ToFloat64(m.ProbesTotal.WithLabelValues("failure")), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestRecordState(t *testing.T) {
	m := NewMetrics("", "")
	if got := testutil.ToFloat64(m.ServerOnline); got != -1 {
		t.Errorf("initial ServerOnline = %v, want -1", got)
	}

	online, offline := true, false
	m.RecordState(&offline, 3)
	if got := testutil.ToFloat64(m.ServerOnline); got != 0 {
		t.Errorf("ServerOnline = %v, want 0", got)
	}
	if got := testutil.ToFloat64(m.ConsecutiveFailures); got != 3 {
		t.Errorf("ConsecutiveFailures = %v, want 3", got)
	}

	m.RecordState(&online, 0)
	if got := testutil.ToFloat64(m.ServerOnline); got != 1 {
		t.Errorf("ServerOnline = %v, want 1", got)
	}
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := NewMetrics("", "")
	m.RecordTransition("offline")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `plex2discord_transitions_total{to="offline"} 1`) {
		t.Errorf("exposition missing transition counter:\n%s", rec.Body.String())
	}
}

func TestPushWithoutGatewayIsNoop(t *testing.T) {
	m := InitializeMetrics("", "")
	if err := m.Push(t.Context()); err != nil {
		t.Errorf("Push() = %v, want nil", err)
	}
}

func TestPushToGateway(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics(srv.URL, "plex-2-discord")
	m.RecordProbe(time.Millisecond, true)
	if err := m.Push(t.Context()); err != nil {
		t.Fatalf("Push() = %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if !strings.HasPrefix(gotPath, "/metrics/job/plex-2-discord") {
		t.Errorf("path = %s", gotPath)
	}
}
