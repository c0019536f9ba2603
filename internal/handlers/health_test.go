package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandlersHealthz(t *testing.T) {
	handlers := NewHealthHandlers(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	handlers.Healthz(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("expected status ok, got %v", body["status"])
	}
	if body["uptime"] == "" {
		t.Fatal("expected uptime to be reported")
	}
}

func TestHealthHandlersReadyzSuccess(t *testing.T) {
	var checked bool
	handlers := NewHealthHandlers(func(ctx context.Context) error {
		checked = true
		return nil
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()

	handlers.Readyz(rr, req)

	if !checked {
		t.Fatal("expected readiness checker to run")
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}

func TestHealthHandlersReadyzFailure(t *testing.T) {
	handlers := NewHealthHandlers(func(ctx context.Context) error {
		return errors.New("firestore unreachable")
	})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rr := httptest.NewRecorder()

	handlers.Readyz(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body["status"] != "unavailable" {
		t.Fatalf("expected status unavailable, got %v", body["status"])
	}
	if body["error"] != "firestore unreachable" {
		t.Fatalf("expected checker error in body, got %v", body["error"])
	}
}
