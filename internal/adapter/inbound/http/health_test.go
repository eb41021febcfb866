package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/querybridge/querybridge/internal/domain/auth"
	"github.com/querybridge/querybridge/internal/domain/session"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	registry := session.NewRegistry()
	registry.Create()
	registry.Create()
	t.Cleanup(registry.CloseAll)

	handler := healthHandler(registry, "1.2.3")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("body decode error: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("Status = %q, want ok", body.Status)
	}
	if body.Service != "querybridge" {
		t.Errorf("Service = %q, want querybridge", body.Service)
	}
	if body.Version != "1.2.3" {
		t.Errorf("Version = %q, want 1.2.3", body.Version)
	}
	if body.Sessions != 2 {
		t.Errorf("Sessions = %d, want 2", body.Sessions)
	}
	if body.Timestamp == "" {
		t.Error("Timestamp is empty")
	}
}

func TestHealth_UnauthenticatedThroughTransport(t *testing.T) {
	t.Parallel()

	router, registry := newTestService(t)
	transport := NewTransport(router, registry, auth.NewVerifier("secret"),
		WithLogger(discardLogger()))

	// No credential presented: /health must still answer.
	rec := httptest.NewRecorder()
	transport.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d, want %d", rec.Code, http.StatusOK)
	}

	// The guarded surface rejects the same request.
	rec = httptest.NewRecorder()
	transport.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/read_data", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("/api/read_data status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
