package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alterbase/cdn/internal/models"
	"github.com/alterbase/cdn/internal/ratelimit"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimitMiddlewareBlocksOverLimit(t *testing.T) {
	limiter := ratelimit.New(2, time.Minute)
	handler := RateLimitMiddleware(limiter, UploadsOnly)(okHandler())

	for i := 0; i < 2; i++ {
		r := httptest.NewRequest(http.MethodPost, "/upload", nil)
		r.RemoteAddr = "192.0.2.1:1000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, w.Code)
		}
	}

	r := httptest.NewRequest(http.MethodPost, "/upload", nil)
	r.RemoteAddr = "192.0.2.1:1000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 || retryAfter > 60 {
		t.Errorf("Retry-After = %q, want seconds within the window", w.Header().Get("Retry-After"))
	}

	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("error code = %q, want RATE_LIMIT_EXCEEDED", resp.Code)
	}
}

func TestRateLimitMiddlewareTracksClientsSeparately(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	handler := RateLimitMiddleware(limiter, UploadsOnly)(okHandler())

	for _, addr := range []string{"192.0.2.1:1000", "192.0.2.2:1000"} {
		r := httptest.NewRequest(http.MethodPost, "/upload", nil)
		r.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Errorf("first request from %s status = %d, want 200", addr, w.Code)
		}
	}
}

func TestRateLimitMiddlewareIgnoresUnlimitedPaths(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	handler := RateLimitMiddleware(limiter, UploadsOnly)(okHandler())

	// Downloads never count against the upload limit.
	for i := 0; i < 5; i++ {
		r := httptest.NewRequest(http.MethodGet, "/files/abc12345", nil)
		r.RemoteAddr = "192.0.2.1:1000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, w.Code)
		}
	}
}

func TestRecoveryMiddlewareConvertsPanicTo500(t *testing.T) {
	handler := RecoveryMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	r := httptest.NewRequest(http.MethodGet, "/files/abc12345", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}

	var resp models.ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	if resp.Code != "INTERNAL_ERROR" {
		t.Errorf("error code = %q, want INTERNAL_ERROR", resp.Code)
	}
}

func TestLoggingMiddlewareCapturesStatus(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	r := httptest.NewRequest(http.MethodGet, "/files/missing1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 passed through", w.Code)
	}
}

func TestResponseWriterWriteDefaultsTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

	rw.Write([]byte("body"))
	rw.WriteHeader(http.StatusTeapot) // too late, already written

	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200 locked in by first write", rw.statusCode)
	}
}
