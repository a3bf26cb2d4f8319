package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"smartparking/backend/services/parking-service/internal/models"
	"smartparking/backend/services/parking-service/internal/repository"
	"smartparking/backend/services/parking-service/internal/service"
)

const maxHistoryLimit = 500

type payRequest struct {
	LogID     string `json:"log_id"`
	SessionID string `json:"session_id"`
}

// NewHistoryHandler returns GET /api/history handler.
func NewHistoryHandler(svc *service.ParkingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		holder := query.Get("phone")
		if holder == "" {
			holder = query.Get("holder")
		}

		limit := 0
		if raw := query.Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(parsed, maxHistoryLimit)
		}

		sessions, err := svc.History(r.Context(), holder, limit)
		if err != nil {
			logger.Error("history lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to fetch history")
			return
		}
		if sessions == nil {
			sessions = []models.Session{}
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

// NewActiveSessionsHandler returns GET /api/sessions/active handler.
func NewActiveSessionsHandler(svc *service.ParkingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions, err := svc.ActiveSessions(r.Context())
		if err != nil {
			logger.Error("active sessions lookup failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to fetch active sessions")
			return
		}
		if sessions == nil {
			sessions = []models.Session{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"sessions": sessions,
		})
	}
}

// NewPayHandler returns POST /api/pay handler.
func NewPayHandler(svc *service.ParkingService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req payRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json")
			return
		}
		id := req.SessionID
		if id == "" {
			id = req.LogID
		}
		if id == "" {
			writeError(w, http.StatusBadRequest, "log_id is required")
			return
		}

		err := svc.MarkPaid(r.Context(), id)
		switch {
		case err == nil:
			writeSuccess(w)
		case errors.Is(err, repository.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, "session not found")
		case errors.Is(err, repository.ErrSessionNotClosed):
			writeError(w, http.StatusConflict, "session is not closed")
		default:
			logger.Error("mark paid failed", zap.String("session_id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to record payment")
		}
	}
}
