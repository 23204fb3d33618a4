package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestRecoveryMiddleware_PanicReturns500 はpanicが統一フォーマットの500に変換されることを検証する。
func TestRecoveryMiddleware_PanicReturns500(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("unexpected nil profile")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if body.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q, want %q", body.Code, "INTERNAL_ERROR")
	}
}

func TestRecoveryMiddleware_NoPanic_PassesThrough(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Result().StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusAccepted)
	}
}

func TestSecurityHeadersMiddleware_SetsHeaders(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	tests := []struct {
		header string
		want   string
	}{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
		{"Cache-Control", "no-store"},
	}
	for _, tt := range tests {
		if got := w.Result().Header.Get(tt.header); got != tt.want {
			t.Errorf("%s = %q, want %q", tt.header, got, tt.want)
		}
	}
}

// TestMiddlewareChain_RecoveryWrapsLogging はpanic時もリクエストログが出力されることを検証する。
func TestMiddlewareChain_RecoveryWrapsLogging(t *testing.T) {
	var buf bytes.Buffer

	// Logging -> Recovery -> Session -> Handler
	handler := NewLoggingMiddleware(newTestLogger(&buf))(NewRecoveryMiddleware()(NewSessionMiddleware()(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}),
	)))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, newSessionRequest("1234", "3", "student"))

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}

	entry := decodeLogEntry(t, &buf)
	if status := int(entry["status"].(float64)); status != http.StatusInternalServerError {
		t.Errorf("logged status = %d, want %d", status, http.StatusInternalServerError)
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want %q", entry["level"], "ERROR")
	}
}
