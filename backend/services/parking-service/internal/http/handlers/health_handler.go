package handlers

import (
	"net/http"
	"time"
)

// NewHealthHandler returns GET /health handler. lastTick may be nil.
func NewHealthHandler(lastTick func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{"status": "ok"}
		if lastTick != nil {
			if t := lastTick(); !t.IsZero() {
				resp["last_tick"] = t
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
