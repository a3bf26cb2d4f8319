package repository

import (
	"context"
	"errors"

	"smartparking/backend/services/parking-service/internal/models"
)

const defaultListLimit = 50

var (
	// ErrSessionNotFound indicates a missing session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionNotClosed is returned when paying a session that has not ended.
	ErrSessionNotClosed = errors.New("session not closed")
)

// SessionStore persists parking sessions.
type SessionStore interface {
	// Insert stores a new session and returns its id, assigning one if empty.
	Insert(ctx context.Context, session *models.Session) (string, error)
	Get(ctx context.Context, id string) (*models.Session, error)
	// FindOpenSession returns the most recently entered open session for slot.
	FindOpenSession(ctx context.Context, slotID string) (*models.Session, error)
	Update(ctx context.Context, id string, update models.SessionUpdate) error
	// FindByHolder lists sessions newest first; an empty holder lists everyone's.
	FindByHolder(ctx context.Context, holder string, limit int) ([]models.Session, error)
	ListOpen(ctx context.Context) ([]models.Session, error)
	// MarkPaid settles a closed session. Paying twice is not an error.
	MarkPaid(ctx context.Context, id string) error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
