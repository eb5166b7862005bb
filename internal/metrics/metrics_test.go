package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestMetrics_IncAndSnapshot(t *testing.T) {
	m := New()
	m.Inc(EventJoin)
	m.Inc(EventJoin)
	m.Add(EventRelayed, 3)

	if got := m.Get(EventJoin); got != 2 {
		t.Fatalf("Get(%q)=%d, want 2", EventJoin, got)
	}

	snap := m.Snapshot()
	snap[EventJoin] = 100
	if got := m.Get(EventJoin); got != 2 {
		t.Fatalf("snapshot mutation leaked into registry: got %d", got)
	}
	if snap[EventRelayed] != 3 {
		t.Fatalf("snapshot[%q]=%d, want 3", EventRelayed, snap[EventRelayed])
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.Inc(EventJoin)
	if got := m.Get(EventJoin); got != 0 {
		t.Fatalf("nil Get=%d, want 0", got)
	}
	if snap := m.Snapshot(); len(snap) != 0 {
		t.Fatalf("nil Snapshot=%v, want empty", snap)
	}
}

func TestPrometheusHandler(t *testing.T) {
	m := New()
	m.Inc(EventPairing)
	m.Inc(`we"ird`)

	h := PrometheusHandler(m, Gauge{
		Name:  "caller_rooms",
		Help:  "Rooms currently tracked.",
		Value: func() float64 { return 4 },
	})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", rec.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	for _, want := range []string{
		`caller_signaling_events_total{event="pairing"} 1`,
		`caller_signaling_events_total{event="we\"ird"} 1`,
		"# TYPE caller_rooms gauge",
		"caller_rooms 4",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("body missing %q:\n%s", want, text)
		}
	}
}
