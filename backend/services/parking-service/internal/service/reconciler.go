package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"smartparking/backend/services/parking-service/internal/models"
	redisstore "smartparking/backend/services/parking-service/internal/redis"
	"smartparking/backend/services/parking-service/internal/repository"
)

// Metric labels.
const (
	EdgeOccupied = "occupied"
	EdgeFreed    = "freed"

	AnomalyNoOpenSession  = "no_open_session"
	AnomalyAlreadyOpen    = "already_open"
	AnomalyStoreFailure   = "store_failure"
	AnomalyStaleCancelled = "stale_cancelled"
)

// Observer reports raw occupancy for the sensor-backed slots.
type Observer interface {
	Slots() []string
	Observe(ctx context.Context) map[string]bool
}

// ActiveSessionCache mirrors slot -> open session for quick lookups.
type ActiveSessionCache interface {
	Save(ctx context.Context, session redisstore.ActiveSession) error
	Get(ctx context.Context, slotID string) (redisstore.ActiveSession, bool, error)
	Delete(ctx context.Context, slotID string) error
}

// Recorder receives reconciliation metrics.
type Recorder interface {
	TickCompleted(d time.Duration, occupied int)
	Edge(kind string)
	Anomaly(kind string)
	Billed(amount float64)
}

// LayoutPublisher is told about every layout change.
type LayoutPublisher interface {
	Publish(layout []models.SlotState)
}

// StaticSlot is a display-only slot that never takes part in reconciliation.
type StaticSlot struct {
	Name     string
	Occupied bool
}

// ReconcilerDeps groups Reconciler collaborators. Cache, Recorder, Publisher and Now are optional.
type ReconcilerDeps struct {
	Gateway   Observer
	Store     repository.SessionStore
	Billing   *BillingCalculator
	Cache     ActiveSessionCache
	Recorder  Recorder
	Publisher LayoutPublisher
	Static    []StaticSlot
	Now       func() time.Time
	Logger    *zap.Logger
}

// Reconciler turns occupancy edges into session lifecycle changes. It is the only writer of
// occupancy, reservations and session lifecycle fields.
type Reconciler struct {
	gateway   Observer
	store     repository.SessionStore
	billing   *BillingCalculator
	cache     ActiveSessionCache
	recorder  Recorder
	publisher LayoutPublisher
	now       func() time.Time
	logger    *zap.Logger

	slots   []string
	slotSet map[string]struct{}
	static  []StaticSlot

	// tickMu serializes passes; mu guards occupancy and reservations together.
	tickMu       sync.Mutex
	mu           sync.RWMutex
	occupancy    map[string]bool
	reservations *ReservationTable
	lastTick     time.Time
}

// NewReconciler builds a reconciler with every slot free and no reservations.
func NewReconciler(deps ReconcilerDeps) *Reconciler {
	r := &Reconciler{
		gateway:      deps.Gateway,
		store:        deps.Store,
		billing:      deps.Billing,
		cache:        deps.Cache,
		recorder:     deps.Recorder,
		publisher:    deps.Publisher,
		now:          deps.Now,
		logger:       deps.Logger,
		slots:        deps.Gateway.Slots(),
		static:       deps.Static,
		reservations: NewReservationTable(),
	}
	if r.billing == nil {
		r.billing = NewBillingCalculator(DefaultRatePerMinute)
	}
	if r.recorder == nil {
		r.recorder = noopRecorder{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	r.occupancy = make(map[string]bool, len(r.slots))
	r.slotSet = make(map[string]struct{}, len(r.slots))
	for _, slot := range r.slots {
		r.occupancy[slot] = false
		r.slotSet[slot] = struct{}{}
	}
	return r
}

// Run ticks immediately and then every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", zap.Duration("interval", interval), zap.Strings("slots", r.slots))
	r.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs one reconciliation pass over every sensor slot. The pass ignores cancellation of
// ctx: an aborted caller must not look like an unreachable device and free every slot. The
// sensor poll stays bounded by the gateway timeout.
func (r *Reconciler) Tick(ctx context.Context) models.TickReport {
	ctx = context.WithoutCancel(ctx)
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	ctx, span := otel.Tracer("smartparking/reconciler").Start(ctx, "reconciler.Tick")
	defer span.End()
	started := time.Now()

	observed := r.gateway.Observe(ctx)
	now := sessionTime(r.now())

	var report models.TickReport
	changed := false
	r.mu.Lock()
	for _, slot := range r.slots {
		current, previous := observed[slot], r.occupancy[slot]
		if current == previous {
			continue
		}

		var applied bool
		if current {
			applied = r.handleOccupied(ctx, slot, now, &report)
		} else {
			applied = r.handleFreed(ctx, slot, now, &report)
		}
		if !applied {
			// keep the previous state so the same edge is retried next tick
			report.Failed = append(report.Failed, slot)
			continue
		}
		r.occupancy[slot] = current
		changed = true
	}
	r.lastTick = now
	occupied := r.occupiedCountLocked()
	var layout []models.SlotState
	if changed {
		layout = r.layoutLocked()
	}
	r.mu.Unlock()

	r.recorder.TickCompleted(time.Since(started), occupied)
	if layout != nil {
		r.publish(layout)
	}
	span.SetAttributes(
		attribute.Int("parking.opened", len(report.Opened)),
		attribute.Int("parking.closed", len(report.Closed)),
		attribute.Int("parking.anomalies", len(report.Anomalies)),
		attribute.Int("parking.failed", len(report.Failed)),
	)
	return report
}

// handleOccupied processes a free->occupied edge. It returns false when the edge could not be
// persisted and must be retried.
func (r *Reconciler) handleOccupied(ctx context.Context, slot string, now time.Time, report *models.TickReport) bool {
	r.recorder.Edge(EdgeOccupied)

	existing, err := r.findOpen(ctx, slot)
	switch {
	case err == nil:
		r.logger.Warn("slot occupied but an open session already exists, adopting it",
			zap.String("slot", slot),
			zap.String("session_id", existing.ID),
			zap.Time("entry_time", existing.EntryTime),
		)
		r.recorder.Anomaly(AnomalyAlreadyOpen)
		report.Anomalies = append(report.Anomalies, slot)
		return true
	case !errors.Is(err, repository.ErrSessionNotFound):
		r.logger.Error("failed to look up open session", zap.String("slot", slot), zap.Error(err))
		r.recorder.Anomaly(AnomalyStoreFailure)
		return false
	}

	_, reserved := r.reservations.Holder(slot)
	holder := r.reservations.Resolve(slot)

	session := &models.Session{
		SlotID:        slot,
		Holder:        holder,
		EntryTime:     now,
		Status:        models.SessionOpen,
		PaymentStatus: models.PaymentUnpaid,
	}
	id, err := r.store.Insert(ctx, session)
	if err != nil {
		if reserved {
			r.reservations.Reserve(slot, holder)
		}
		r.logger.Error("failed to open session", zap.String("slot", slot), zap.Error(err))
		r.recorder.Anomaly(AnomalyStoreFailure)
		return false
	}

	if r.cache != nil {
		if err := r.cache.Save(ctx, redisstore.ActiveSession{
			SessionID: id,
			SlotID:    slot,
			Holder:    holder,
			EntryTime: now,
		}); err != nil {
			r.logger.Warn("failed to cache active session", zap.String("slot", slot), zap.Error(err))
		}
	}

	r.logger.Info("car parked",
		zap.String("slot", slot),
		zap.String("session_id", id),
		zap.String("holder", holder),
		zap.Bool("reserved", reserved),
	)
	report.Opened = append(report.Opened, slot)
	return true
}

// handleFreed processes an occupied->free edge.
func (r *Reconciler) handleFreed(ctx context.Context, slot string, now time.Time, report *models.TickReport) bool {
	r.recorder.Edge(EdgeFreed)

	session, err := r.findOpen(ctx, slot)
	if errors.Is(err, repository.ErrSessionNotFound) {
		r.logger.Warn("slot freed with no open session to close", zap.String("slot", slot))
		r.recorder.Anomaly(AnomalyNoOpenSession)
		report.Anomalies = append(report.Anomalies, slot)
		return true
	}
	if err != nil {
		r.logger.Error("failed to look up open session", zap.String("slot", slot), zap.Error(err))
		r.recorder.Anomaly(AnomalyStoreFailure)
		return false
	}

	if now.Before(session.EntryTime) {
		r.logger.Warn("exit precedes entry, billing nothing",
			zap.String("slot", slot),
			zap.String("session_id", session.ID),
			zap.Time("entry_time", session.EntryTime),
			zap.Time("exit_time", now),
		)
	}
	minutes, cost := r.billing.Compute(session.EntryTime, now)

	if err := r.store.Update(ctx, session.ID, models.SessionUpdate{
		ExitTime:        now,
		DurationMinutes: &minutes,
		Cost:            &cost,
		Status:          models.SessionClosed,
	}); err != nil {
		r.logger.Error("failed to close session", zap.String("slot", slot), zap.String("session_id", session.ID), zap.Error(err))
		r.recorder.Anomaly(AnomalyStoreFailure)
		return false
	}

	r.forget(ctx, slot)
	r.recorder.Billed(cost)
	r.logger.Info("car left, session closed",
		zap.String("slot", slot),
		zap.String("session_id", session.ID),
		zap.String("holder", session.Holder),
		zap.Int64("duration_minutes", minutes),
		zap.Float64("cost", cost),
	)
	report.Closed = append(report.Closed, slot)
	return true
}

// findOpen consults the cache before the store; stale cache entries are ignored.
func (r *Reconciler) findOpen(ctx context.Context, slot string) (*models.Session, error) {
	if r.cache != nil {
		cached, ok, err := r.cache.Get(ctx, slot)
		if err != nil {
			r.logger.Warn("active session cache lookup failed", zap.String("slot", slot), zap.Error(err))
		} else if ok {
			session, err := r.store.Get(ctx, cached.SessionID)
			if err == nil && session.IsOpen() && session.SlotID == slot {
				return session, nil
			}
		}
	}
	return r.store.FindOpenSession(ctx, slot)
}

func (r *Reconciler) forget(ctx context.Context, slot string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, slot); err != nil {
		r.logger.Warn("failed to delete active session cache", zap.String("slot", slot), zap.Error(err))
	}
}

// CancelStaleSessions marks sessions left open by a previous process as cancelled. It must run
// before the first tick: occupancy starts out all free, so those sessions can no longer be closed
// by an edge.
func (r *Reconciler) CancelStaleSessions(ctx context.Context) (int, error) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	open, err := r.store.ListOpen(ctx)
	if err != nil {
		return 0, err
	}

	now := sessionTime(r.now())
	cancelled := 0
	for _, s := range open {
		if err := r.store.Update(ctx, s.ID, models.SessionUpdate{
			ExitTime: now,
			Status:   models.SessionCancelled,
		}); err != nil {
			return cancelled, err
		}
		r.forget(ctx, s.SlotID)
		r.recorder.Anomaly(AnomalyStaleCancelled)
		r.logger.Warn("cancelled session left open by previous run",
			zap.String("slot", s.SlotID),
			zap.String("session_id", s.ID),
			zap.Time("entry_time", s.EntryTime),
		)
		cancelled++
	}
	return cancelled, nil
}

// Reserve holds slot for holder, replacing any earlier reservation. Holds on slots without a
// sensor are kept but can never be fulfilled by an arrival.
func (r *Reconciler) Reserve(slot, holder string) {
	if !r.isSensorSlot(slot) {
		r.logger.Warn("reservation for slot without a sensor", zap.String("slot", slot), zap.String("holder", holder))
	}
	r.mu.Lock()
	r.reservations.Reserve(slot, holder)
	layout := r.layoutLocked()
	r.mu.Unlock()

	r.publish(layout)
}

// CancelReservation drops the reservation for slot; it reports whether one existed.
func (r *Reconciler) CancelReservation(slot string) bool {
	r.mu.Lock()
	_, existed := r.reservations.Holder(slot)
	r.reservations.Cancel(slot)
	var layout []models.SlotState
	if existed {
		layout = r.layoutLocked()
	}
	r.mu.Unlock()

	if existed {
		r.publish(layout)
	}
	return existed
}

// Reservation returns the current holder of slot.
func (r *Reconciler) Reservation(slot string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reservations.Holder(slot)
}

// Occupancy returns a copy of the last reconciled occupancy.
func (r *Reconciler) Occupancy() map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]bool, len(r.occupancy))
	for slot, occupied := range r.occupancy {
		out[slot] = occupied
	}
	return out
}

// Layout returns every configured slot as of the last tick, sensor slots first.
func (r *Reconciler) Layout() []models.SlotState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.layoutLocked()
}

// LastTick returns the time of the last completed pass, zero before the first one.
func (r *Reconciler) LastTick() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastTick
}

func (r *Reconciler) layoutLocked() []models.SlotState {
	layout := make([]models.SlotState, 0, len(r.slots)+len(r.static))
	for _, slot := range r.slots {
		_, reserved := r.reservations.Holder(slot)
		layout = append(layout, models.SlotState{
			ID:       len(layout) + 1,
			Name:     slot,
			Occupied: r.occupancy[slot],
			Reserved: reserved,
			Type:     models.SlotSensor,
		})
	}
	for _, s := range r.static {
		_, reserved := r.reservations.Holder(s.Name)
		layout = append(layout, models.SlotState{
			ID:       len(layout) + 1,
			Name:     s.Name,
			Occupied: s.Occupied,
			Reserved: reserved,
			Type:     models.SlotStatic,
		})
	}
	return layout
}

func (r *Reconciler) occupiedCountLocked() int {
	n := 0
	for _, occupied := range r.occupancy {
		if occupied {
			n++
		}
	}
	return n
}

func (r *Reconciler) isSensorSlot(slot string) bool {
	_, ok := r.slotSet[slot]
	return ok
}

func (r *Reconciler) publish(layout []models.SlotState) {
	if r.publisher != nil {
		r.publisher.Publish(layout)
	}
}

type noopRecorder struct{}

func (noopRecorder) TickCompleted(time.Duration, int) {}
func (noopRecorder) Edge(string)                      {}
func (noopRecorder) Anomaly(string)                   {}
func (noopRecorder) Billed(float64)                   {}
