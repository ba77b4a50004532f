package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORSMiddleware(t *testing.T) {
	var reached bool
	h := CORSMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true }))

	tests := []struct {
		name        string
		method      string
		origin      string
		wantOrigin  string
		wantStatus  int
		wantReached bool
	}{
		{"no origin", http.MethodGet, "", "*", http.StatusOK, true},
		{"echoes origin", http.MethodGet, "http://localhost:5173", "http://localhost:5173", http.StatusOK, true},
		{"preflight", http.MethodOptions, "http://localhost:5173", "http://localhost:5173", http.StatusNoContent, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false
			req := httptest.NewRequest(tt.method, "/session", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("expected origin %q, got %q", tt.wantOrigin, got)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if reached != tt.wantReached {
				t.Errorf("expected next handler reached=%v", tt.wantReached)
			}
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v", nil))
	if seen == "" || w.Header().Get(RequestIDHeader) != seen {
		t.Errorf("expected a generated id in context and header, got %q / %q", seen, w.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/v", nil)
	req.Header.Set(RequestIDHeader, "fixed")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "fixed" {
		t.Errorf("expected the caller's id, got %q", seen)
	}
}

func TestLoggingMiddlewareKeepsStatus(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/detect", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("expected the handler's status, got %d", w.Code)
	}
}
