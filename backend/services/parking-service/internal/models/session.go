package models

import "time"

// GuestHolder attributes sessions that started without a reservation.
const GuestHolder = "guest"

// SessionStatus is the lifecycle state of a parking session.
type SessionStatus string

const (
	SessionOpen      SessionStatus = "open"
	SessionClosed    SessionStatus = "closed"
	SessionCancelled SessionStatus = "cancelled"
)

// PaymentStatus tracks whether a closed session has been settled.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Session is one physical occupancy interval of one slot.
// ExitTime, DurationMinutes and Cost stay nil while the session is open.
type Session struct {
	ID              string        `db:"id" json:"id"`
	SlotID          string        `db:"slot_id" json:"slot_id"`
	Holder          string        `db:"holder" json:"holder"`
	EntryTime       time.Time     `db:"entry_time" json:"entry_time"`
	ExitTime        *time.Time    `db:"exit_time" json:"exit_time,omitempty"`
	DurationMinutes *int64        `db:"duration_minutes" json:"duration_minutes,omitempty"`
	Cost            *float64      `db:"cost" json:"cost,omitempty"`
	Status          SessionStatus `db:"status" json:"status"`
	PaymentStatus   PaymentStatus `db:"payment_status" json:"payment_status"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// IsOpen reports whether the session is still running.
func (s *Session) IsOpen() bool {
	return s.Status == SessionOpen
}

// SessionUpdate carries the lifecycle fields written when a session ends.
type SessionUpdate struct {
	ExitTime        time.Time
	DurationMinutes *int64
	Cost            *float64
	Status          SessionStatus
}
