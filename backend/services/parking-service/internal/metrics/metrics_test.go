package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecorderExposition(t *testing.T) {
	r := NewRecorder()
	r.TickCompleted(20*time.Millisecond, 2)
	r.Edge("occupied")
	r.Edge("occupied")
	r.Anomaly("no_open_session")
	r.Billed(30)
	r.Billed(0)
	r.SensorFailure()

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	text := string(body)

	for _, want := range []string{
		"parking_reconcile_ticks_total 1",
		`parking_occupancy_edges_total{edge="occupied"} 2`,
		`parking_consistency_anomalies_total{kind="no_open_session"} 1`,
		"parking_billed_amount_total 30",
		"parking_sensor_failures_total 1",
		"parking_occupied_slots 2",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in exposition", want)
		}
	}
}
