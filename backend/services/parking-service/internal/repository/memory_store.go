package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"smartparking/backend/services/parking-service/internal/models"
)

var _ SessionStore = (*MemoryStore)(nil)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*models.Session)}
}

func (s *MemoryStore) Insert(_ context.Context, session *models.Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	stored := cloneSession(session)
	s.sessions[stored.ID] = stored
	return stored.ID, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(session), nil
}

func (s *MemoryStore) FindOpenSession(_ context.Context, slotID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *models.Session
	for _, session := range s.sessions {
		if session.SlotID != slotID || !session.IsOpen() {
			continue
		}
		if latest == nil || session.EntryTime.After(latest.EntryTime) {
			latest = session
		}
	}
	if latest == nil {
		return nil, ErrSessionNotFound
	}
	return cloneSession(latest), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, update models.SessionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	exit := update.ExitTime
	session.ExitTime = &exit
	session.DurationMinutes = copyInt64(update.DurationMinutes)
	session.Cost = copyFloat64(update.Cost)
	session.Status = update.Status
	session.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryStore) FindByHolder(_ context.Context, holder string, limit int) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Session
	for _, session := range s.sessions {
		if holder != "" && session.Holder != holder {
			continue
		}
		result = append(result, *cloneSession(session))
	}
	sortNewestFirst(result)
	if limit = normalizeLimit(limit); len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *MemoryStore) ListOpen(_ context.Context) ([]models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []models.Session
	for _, session := range s.sessions {
		if session.IsOpen() {
			result = append(result, *cloneSession(session))
		}
	}
	sortNewestFirst(result)
	return result, nil
}

func (s *MemoryStore) MarkPaid(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if session.Status != models.SessionClosed {
		return ErrSessionNotClosed
	}
	if session.PaymentStatus != models.PaymentPaid {
		session.PaymentStatus = models.PaymentPaid
		session.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func sortNewestFirst(sessions []models.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].EntryTime.Equal(sessions[j].EntryTime) {
			return sessions[i].ID > sessions[j].ID
		}
		return sessions[i].EntryTime.After(sessions[j].EntryTime)
	})
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	if s.ExitTime != nil {
		exit := *s.ExitTime
		c.ExitTime = &exit
	}
	c.DurationMinutes = copyInt64(s.DurationMinutes)
	c.Cost = copyFloat64(s.Cost)
	return &c
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyFloat64(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
