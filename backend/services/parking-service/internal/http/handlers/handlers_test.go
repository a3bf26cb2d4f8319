package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"smartparking/backend/services/parking-service/internal/models"
	"smartparking/backend/services/parking-service/internal/repository"
	"smartparking/backend/services/parking-service/internal/service"
)

type stubGateway struct {
	occupied map[string]bool
}

func (g *stubGateway) Slots() []string { return []string{"A1", "A2"} }

func (g *stubGateway) Observe(context.Context) map[string]bool {
	out := make(map[string]bool, len(g.occupied))
	for k, v := range g.occupied {
		out[k] = v
	}
	return out
}

type fixture struct {
	gateway *stubGateway
	store   *repository.MemoryStore
	now     time.Time
	svc     *service.ParkingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gateway: &stubGateway{occupied: map[string]bool{}},
		store:   repository.NewMemoryStore(),
		now:     time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC),
	}
	reconciler := service.NewReconciler(service.ReconcilerDeps{
		Gateway: f.gateway,
		Store:   f.store,
		Billing: service.NewBillingCalculator(15),
		Static:  []service.StaticSlot{{Name: "B1"}},
		Now:     func() time.Time { return f.now },
		Logger:  zap.NewNop(),
	})
	f.svc = service.NewParkingService(reconciler, f.store, true, zap.NewNop())
	return f
}

func do(handler http.HandlerFunc, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestLayoutReflectsReservationsAndOccupancy(t *testing.T) {
	f := newFixture(t)
	h := NewParkingHandler(f.svc, zap.NewNop())

	if rec := do(h.HandleReserve, http.MethodPost, "/api/reserve", `{"slot":"A2","phone":"555"}`); rec.Code != http.StatusOK {
		t.Fatalf("reserve: %d %s", rec.Code, rec.Body)
	}
	f.gateway.occupied["A1"] = true

	rec := do(h.HandleLayout, http.MethodGet, "/api/parking-layout", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("layout: %d", rec.Code)
	}
	var layout []models.SlotState
	if err := json.Unmarshal(rec.Body.Bytes(), &layout); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(layout) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(layout))
	}
	if !layout[0].Occupied || !layout[1].Reserved || layout[2].Type != models.SlotStatic {
		t.Fatalf("unexpected layout %+v", layout)
	}
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t)
	h := NewParkingHandler(f.svc, zap.NewNop())

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing slot", `{"phone":"555"}`, http.StatusBadRequest},
		{"missing holder", `{"slot":"A1"}`, http.StatusBadRequest},
		{"unconfigured slot", `{"slot":"Z9","phone":"555"}`, http.StatusOK},
		{"holder alias", `{"slot":"A1","holder":"alice"}`, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := do(h.HandleReserve, http.MethodPost, "/api/reserve", tc.body); rec.Code != tc.want {
				t.Fatalf("got %d, want %d: %s", rec.Code, tc.want, rec.Body)
			}
		})
	}

	for i := 0; i < 2; i++ {
		if rec := do(h.HandleCancelReservation, http.MethodPost, "/api/cancel-reserve", `{"slot":"A1"}`); rec.Code != http.StatusOK {
			t.Fatalf("cancel %d: %d", i, rec.Code)
		}
	}
}

func TestPayAndHistory(t *testing.T) {
	f := newFixture(t)
	ph := NewParkingHandler(f.svc, zap.NewNop())
	pay := NewPayHandler(f.svc, zap.NewNop())
	history := NewHistoryHandler(f.svc, zap.NewNop())
	active := NewActiveSessionsHandler(f.svc, zap.NewNop())

	do(ph.HandleReserve, http.MethodPost, "/api/reserve", `{"slot":"A1","phone":"555"}`)
	f.gateway.occupied["A1"] = true
	do(ph.HandleReconcile, http.MethodPost, "/internal/reconcile", "")

	rec := do(active, http.MethodGet, "/api/sessions/active", "")
	var body struct {
		Sessions []models.Session `json:"sessions"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if len(body.Sessions) != 1 {
		t.Fatalf("expected one active session, got %s", rec.Body)
	}
	id := body.Sessions[0].ID

	if rec := do(pay, http.MethodPost, "/api/pay", `{"log_id":"`+id+`"}`); rec.Code != http.StatusConflict {
		t.Fatalf("paying an open session: got %d", rec.Code)
	}
	if rec := do(pay, http.MethodPost, "/api/pay", `{"log_id":"missing"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("paying unknown session: got %d", rec.Code)
	}
	if rec := do(pay, http.MethodPost, "/api/pay", `{}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("paying without id: got %d", rec.Code)
	}

	f.now = f.now.Add(61 * time.Second)
	f.gateway.occupied["A1"] = false
	rec = do(ph.HandleReconcile, http.MethodPost, "/internal/reconcile", "")
	var report models.TickReport
	_ = json.Unmarshal(rec.Body.Bytes(), &report)
	if len(report.Closed) != 1 {
		t.Fatalf("expected close in report, got %s", rec.Body)
	}

	if rec := do(pay, http.MethodPost, "/api/pay", `{"session_id":"`+id+`"}`); rec.Code != http.StatusOK {
		t.Fatalf("pay: %d %s", rec.Code, rec.Body)
	}

	rec = do(history, http.MethodGet, "/api/history?phone=555", "")
	var sessions []models.Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("expected one session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.Status != models.SessionClosed || s.PaymentStatus != models.PaymentPaid || *s.DurationMinutes != 2 || *s.Cost != 30 {
		t.Fatalf("unexpected history entry %+v", s)
	}

	rec = do(history, http.MethodGet, "/api/history?phone=nobody", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body)
	}
	if rec := do(history, http.MethodGet, "/api/history?limit=abc", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad limit rejected, got %d", rec.Code)
	}
}

func TestPayRejectsCancelledSession(t *testing.T) {
	f := newFixture(t)
	pay := NewPayHandler(f.svc, zap.NewNop())

	id, err := f.store.Insert(context.Background(), &models.Session{
		SlotID:        "A1",
		Holder:        models.GuestHolder,
		EntryTime:     f.now,
		Status:        models.SessionOpen,
		PaymentStatus: models.PaymentUnpaid,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := f.store.Update(context.Background(), id, models.SessionUpdate{ExitTime: f.now, Status: models.SessionCancelled}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	rec := do(pay, http.MethodPost, "/api/pay", `{"log_id":"`+id+`"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected conflict, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "session is not closed") {
		t.Fatalf("unexpected error body %s", rec.Body)
	}
}

func TestHealth(t *testing.T) {
	tick := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	rec := do(NewHealthHandler(func() time.Time { return tick }), http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"last_tick"`) {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body)
	}
}
