package apihttp

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeRoute(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/torrents", "/torrents"},
		{"/torrents/queue/top", "/torrents/queue/:op"},
		{"/torrents/abcdef", "/torrents/:id"},
		{"/torrents/abcdef/tags", "/torrents/:id"},
		{"/metadata", "/metadata"},
		{"/metadata/abcdef", "/metadata"},
		{"/categories", "/categories"},
		{"/categories/movies", "/categories"},
		{"/tags/linux", "/tags"},
		{"/settings", "/settings"},
		{"/session/pause", "/session/:op"},
		{"/healthz", "/healthz"},
		{"/status", "/status"},
		{"/ws", "/ws"},
		{"/metrics", "/metrics"},
		{"/favicon.ico", "/other"},
	}
	for _, tc := range cases {
		if got := normalizeRoute(tc.path); got != tc.want {
			t.Errorf("normalizeRoute(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestPickRequestLogLevel(t *testing.T) {
	cases := []struct {
		path   string
		status int
		want   slog.Level
	}{
		{"/torrents", 200, slog.LevelInfo},
		{"/healthz", 200, slog.LevelDebug},
		{"/status", 200, slog.LevelDebug},
		{"/torrents", 404, slog.LevelWarn},
		{"/healthz", 500, slog.LevelError},
	}
	for _, tc := range cases {
		if got := pickRequestLogLevel(tc.path, tc.status); got != tc.want {
			t.Errorf("pickRequestLogLevel(%q, %d) = %v, want %v", tc.path, tc.status, got, tc.want)
		}
	}
}

func TestClientIPPrefersForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/torrents", nil)
	r.RemoteAddr = "10.0.0.1:4321"
	if got := clientIP(r); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q", got)
	}
	r.Header.Set("X-Real-IP", "192.0.2.5")
	if got := clientIP(r); got != "192.0.2.5" {
		t.Fatalf("clientIP with X-Real-IP = %q", got)
	}
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(r); got != "203.0.113.9" {
		t.Fatalf("clientIP with X-Forwarded-For = %q", got)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight reached inner handler")
	}))
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodOptions, "/torrents", nil)
	r.Header.Set("Origin", "http://localhost:3000")
	handler.ServeHTTP(rec, r)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := rateLimitMiddleware(1, 1, inner)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/torrents", nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/torrents", nil))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", second.Code)
	}

	// Health probes bypass the limiter.
	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("health status = %d", health.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := recoveryMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/torrents", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status after panic = %d", rec.Code)
	}
}
