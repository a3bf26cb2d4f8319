package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"smartparking/backend/services/parking-service/internal/models"
	"smartparking/backend/services/parking-service/internal/repository"
)

var (
	// ErrHolderRequired is returned when a reservation names no holder.
	ErrHolderRequired = errors.New("holder is required")
	// ErrSlotRequired is returned when a reservation names no slot.
	ErrSlotRequired = errors.New("slot is required")
)

// ParkingService is what the HTTP layer talks to.
type ParkingService struct {
	reconciler *Reconciler
	store      repository.SessionStore
	tickOnRead bool
	logger     *zap.Logger
}

// NewParkingService builds service. With tickOnRead every layout read runs a reconciliation
// pass first; otherwise layout reads return the last reconciled snapshot.
func NewParkingService(reconciler *Reconciler, store repository.SessionStore, tickOnRead bool, logger *zap.Logger) *ParkingService {
	return &ParkingService{
		reconciler: reconciler,
		store:      store,
		tickOnRead: tickOnRead,
		logger:     logger,
	}
}

// Layout returns every configured slot.
func (s *ParkingService) Layout(ctx context.Context) []models.SlotState {
	if s.tickOnRead {
		s.reconciler.Tick(ctx)
	}
	return s.reconciler.Layout()
}

// Reconcile forces one pass and returns what it did.
func (s *ParkingService) Reconcile(ctx context.Context) models.TickReport {
	report := s.reconciler.Tick(ctx)
	if report.Changed() {
		s.logger.Debug("manual reconcile applied edges",
			zap.Strings("opened", report.Opened),
			zap.Strings("closed", report.Closed),
		)
	}
	return report
}

// Reserve records an advisory hold on slot for holder.
func (s *ParkingService) Reserve(_ context.Context, slot, holder string) error {
	slot, holder = strings.TrimSpace(slot), strings.TrimSpace(holder)
	if holder == "" {
		return ErrHolderRequired
	}
	if slot == "" {
		return ErrSlotRequired
	}
	s.reconciler.Reserve(slot, holder)
	s.logger.Info("slot reserved", zap.String("slot", slot), zap.String("holder", holder))
	return nil
}

// CancelReservation removes the hold on slot; cancelling twice is fine.
func (s *ParkingService) CancelReservation(_ context.Context, slot string) {
	slot = strings.TrimSpace(slot)
	if s.reconciler.CancelReservation(slot) {
		s.logger.Info("reservation cancelled", zap.String("slot", slot))
	}
}

// History returns sessions newest first, optionally for one holder.
func (s *ParkingService) History(ctx context.Context, holder string, limit int) ([]models.Session, error) {
	return s.store.FindByHolder(ctx, strings.TrimSpace(holder), limit)
}

// ActiveSessions returns every open session.
func (s *ParkingService) ActiveSessions(ctx context.Context) ([]models.Session, error) {
	return s.store.ListOpen(ctx)
}

// MarkPaid settles a closed session.
func (s *ParkingService) MarkPaid(ctx context.Context, sessionID string) error {
	if err := s.store.MarkPaid(ctx, strings.TrimSpace(sessionID)); err != nil {
		return err
	}
	s.logger.Info("session paid", zap.String("session_id", sessionID))
	return nil
}
