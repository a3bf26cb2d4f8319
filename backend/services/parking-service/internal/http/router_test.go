package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouterMethodGuard(t *testing.T) {
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) }
	router := NewRouter(Routes{Layout: ok, Reserve: ok})

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/parking-layout", http.StatusTeapot},
		{http.MethodPost, "/api/parking-layout", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/reserve", http.StatusTeapot},
		{http.MethodGet, "/api/reserve", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/history", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != tc.want {
			t.Errorf("%s %s: got %d, want %d", tc.method, tc.path, rec.Code, tc.want)
		}
	}
}
