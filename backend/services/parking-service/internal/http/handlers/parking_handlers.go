package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"smartparking/backend/services/parking-service/internal/service"
)

// ParkingHandler serves layout and reservation endpoints.
type ParkingHandler struct {
	svc    *service.ParkingService
	logger *zap.Logger
}

// NewParkingHandler builds handler set.
func NewParkingHandler(svc *service.ParkingService, logger *zap.Logger) *ParkingHandler {
	return &ParkingHandler{
		svc:    svc,
		logger: logger,
	}
}

type reserveRequest struct {
	Slot   string `json:"slot"`
	Phone  string `json:"phone"`
	Holder string `json:"holder"`
}

type cancelRequest struct {
	Slot string `json:"slot"`
}

// HandleLayout handles GET /api/parking-layout.
func (h *ParkingHandler) HandleLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Layout(r.Context()))
}

// HandleReserve handles POST /api/reserve.
func (h *ParkingHandler) HandleReserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Slot) == "" {
		writeError(w, http.StatusBadRequest, "slot is required")
		return
	}
	holder := req.Holder
	if holder == "" {
		holder = req.Phone
	}

	err := h.svc.Reserve(r.Context(), req.Slot, holder)
	switch {
	case err == nil:
		writeSuccess(w)
	case errors.Is(err, service.ErrHolderRequired):
		writeError(w, http.StatusBadRequest, "phone is required")
	case errors.Is(err, service.ErrSlotRequired):
		writeError(w, http.StatusBadRequest, "slot is required")
	default:
		h.logger.Error("reserve failed", zap.String("slot", req.Slot), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to reserve slot")
	}
}

// HandleCancelReservation handles POST /api/cancel-reserve.
func (h *ParkingHandler) HandleCancelReservation(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Slot) == "" {
		writeError(w, http.StatusBadRequest, "slot is required")
		return
	}
	h.svc.CancelReservation(r.Context(), req.Slot)
	writeSuccess(w)
}

// HandleReconcile handles POST /internal/reconcile.
func (h *ParkingHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Reconcile(r.Context()))
}
