package service

import "smartparking/backend/services/parking-service/internal/models"

// ReservationTable maps a slot to the holder intending to park there.
// It is not safe for concurrent use; the Reconciler serializes access under its state lock.
type ReservationTable struct {
	holds map[string]string
}

// NewReservationTable returns an empty table.
func NewReservationTable() *ReservationTable {
	return &ReservationTable{holds: make(map[string]string)}
}

// Reserve records holder for slot, replacing any earlier reservation.
func (t *ReservationTable) Reserve(slot, holder string) {
	t.holds[slot] = holder
}

// Cancel drops the reservation for slot if there is one.
func (t *ReservationTable) Cancel(slot string) {
	delete(t.holds, slot)
}

// Holder returns the current holder without consuming the reservation.
func (t *ReservationTable) Holder(slot string) (string, bool) {
	holder, ok := t.holds[slot]
	return holder, ok
}

// Resolve attributes an occupancy start: it returns and consumes the reservation for slot,
// or returns models.GuestHolder and leaves the table untouched.
func (t *ReservationTable) Resolve(slot string) string {
	holder, ok := t.holds[slot]
	if !ok {
		return models.GuestHolder
	}
	delete(t.holds, slot)
	return holder
}

// Snapshot copies the table.
func (t *ReservationTable) Snapshot() map[string]string {
	out := make(map[string]string, len(t.holds))
	for slot, holder := range t.holds {
		out[slot] = holder
	}
	return out
}
