package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	Layout            http.HandlerFunc
	Reserve           http.HandlerFunc
	CancelReservation http.HandlerFunc
	History           http.HandlerFunc
	Pay               http.HandlerFunc
	ActiveSessions    http.HandlerFunc
	Reconcile         http.HandlerFunc
	LayoutFeed        http.HandlerFunc
	Health            http.HandlerFunc
	Metrics           http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Layout != nil {
		mux.Handle("/api/parking-layout", method(http.MethodGet, routes.Layout))
	}
	if routes.Reserve != nil {
		mux.Handle("/api/reserve", method(http.MethodPost, routes.Reserve))
	}
	if routes.CancelReservation != nil {
		mux.Handle("/api/cancel-reserve", method(http.MethodPost, routes.CancelReservation))
	}
	if routes.History != nil {
		mux.Handle("/api/history", method(http.MethodGet, routes.History))
	}
	if routes.Pay != nil {
		mux.Handle("/api/pay", method(http.MethodPost, routes.Pay))
	}
	if routes.ActiveSessions != nil {
		mux.Handle("/api/sessions/active", method(http.MethodGet, routes.ActiveSessions))
	}
	if routes.Reconcile != nil {
		mux.Handle("/internal/reconcile", method(http.MethodPost, routes.Reconcile))
	}
	if routes.LayoutFeed != nil {
		mux.Handle("/ws/layout", method(http.MethodGet, routes.LayoutFeed))
	}
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	if routes.Metrics != nil {
		mux.Handle("/metrics", routes.Metrics)
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
