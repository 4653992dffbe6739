package statusapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"picoradar/internal/broadcaster"
	"picoradar/internal/metrics"
	"picoradar/internal/registry"
)

func TestHealthz(t *testing.T) {
	reg := registry.New()
	m := metrics.New()
	bc := broadcaster.New(reg, 0, nil, nil)
	s := New(reg, bc, nil, m)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q, want ok", rec.Body.String())
	}
}

func TestStatusResponseShape(t *testing.T) {
	reg := registry.New()
	m := metrics.New()
	bc := broadcaster.New(reg, 0, nil, nil)
	s := New(reg, bc, nil, m)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if _, ok := body["players"]; !ok {
		t.Fatal("expected players field in status response")
	}
}
