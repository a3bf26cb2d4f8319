package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartparking/backend/services/parking-service/internal/models"
)

func newOpenSession(slot, holder string, entry time.Time) *models.Session {
	return &models.Session{
		SlotID:        slot,
		Holder:        holder,
		EntryTime:     entry,
		Status:        models.SessionOpen,
		PaymentStatus: models.PaymentUnpaid,
	}
}

func TestMemoryStoreFindOpenSessionPicksLatest(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	if _, err := store.FindOpenSession(ctx, "A1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found on empty store, got %v", err)
	}

	older, _ := store.Insert(ctx, newOpenSession("A1", "111", base))
	newer, _ := store.Insert(ctx, newOpenSession("A1", "222", base.Add(time.Minute)))
	_, _ = store.Insert(ctx, newOpenSession("A2", "333", base.Add(2*time.Minute)))

	got, err := store.FindOpenSession(ctx, "A1")
	if err != nil {
		t.Fatalf("find open: %v", err)
	}
	if got.ID != newer {
		t.Fatalf("expected newest open session %s, got %s", newer, got.ID)
	}

	cost := 15.0
	duration := int64(1)
	if err := store.Update(ctx, newer, models.SessionUpdate{
		ExitTime:        base.Add(2 * time.Minute),
		DurationMinutes: &duration,
		Cost:            &cost,
		Status:          models.SessionClosed,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err = store.FindOpenSession(ctx, "A1")
	if err != nil || got.ID != older {
		t.Fatalf("expected fallback to older open session, got %v %v", got, err)
	}
}

func TestMemoryStoreFindByHolder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	for i, holder := range []string{"555", "guest", "555", "555"} {
		if _, err := store.Insert(ctx, newOpenSession("A1", holder, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	mine, err := store.FindByHolder(ctx, "555", 0)
	if err != nil {
		t.Fatalf("find by holder: %v", err)
	}
	if len(mine) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(mine))
	}
	for i := 1; i < len(mine); i++ {
		if mine[i].EntryTime.After(mine[i-1].EntryTime) {
			t.Fatal("expected newest first ordering")
		}
	}

	all, _ := store.FindByHolder(ctx, "", 2)
	if len(all) != 2 {
		t.Fatalf("expected limit to apply, got %d", len(all))
	}
	if all[0].Holder != "555" || !all[0].EntryTime.Equal(base.Add(3*time.Minute)) {
		t.Fatalf("unexpected first entry %+v", all[0])
	}
}

func TestMemoryStoreMarkPaid(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	id, _ := store.Insert(ctx, newOpenSession("A1", "555", time.Now().UTC()))

	if err := store.MarkPaid(ctx, "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.MarkPaid(ctx, id); !errors.Is(err, ErrSessionNotClosed) {
		t.Fatalf("expected not closed, got %v", err)
	}

	if err := store.Update(ctx, id, models.SessionUpdate{ExitTime: time.Now().UTC(), Status: models.SessionClosed}); err != nil {
		t.Fatalf("close: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.MarkPaid(ctx, id); err != nil {
			t.Fatalf("mark paid attempt %d: %v", i, err)
		}
	}
	got, _ := store.Get(ctx, id)
	if got.PaymentStatus != models.PaymentPaid {
		t.Fatalf("expected paid, got %s", got.PaymentStatus)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	id, _ := store.Insert(ctx, newOpenSession("A1", "555", time.Now().UTC()))

	got, _ := store.Get(ctx, id)
	got.Status = models.SessionClosed

	again, _ := store.Get(ctx, id)
	if again.Status != models.SessionOpen {
		t.Fatal("mutating a returned session leaked into the store")
	}
	if err := store.Update(ctx, "missing", models.SessionUpdate{}); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}
