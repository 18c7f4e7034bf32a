package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakeStorage struct {
	backend string
	err     error
}

func (f fakeStorage) Backend() string                { return f.backend }
func (f fakeStorage) Ping(ctx context.Context) error { return f.err }

func serveHealth(t *testing.T, handler *HealthHandler, method string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.HandleMethodNotAllowed = true
	handler.RegisterRoutes(router)

	req, err := http.NewRequest(method, "/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	handler := NewHealthHandler("test", "1.0.0", fakeStorage{backend: "postgres"})
	rr := serveHealth(t, handler, http.MethodGet)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	var response HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Errorf("failed to unmarshal response: %v", err)
	}

	if response.Status != "OK" {
		t.Errorf("expected status 'OK', got %s", response.Status)
	}
	if response.Environment != "test" {
		t.Errorf("expected environment 'test', got %s", response.Environment)
	}
	if response.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %s", response.Version)
	}
	if response.Storage != "postgres" || response.DB != "up" {
		t.Errorf("expected postgres/up, got %s/%s", response.Storage, response.DB)
	}
	if response.Timestamp.IsZero() {
		t.Error("expected a timestamp")
	}
}

func TestHealthCheckStoreDown(t *testing.T) {
	handler := NewHealthHandler("test", "1.0.0", fakeStorage{backend: "redis", err: errors.New("refused")})
	rr := serveHealth(t, handler, http.MethodGet)

	if rr.Code != http.StatusOK {
		t.Errorf("liveness must not fail with the store: got %v", rr.Code)
	}

	var response HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response.DB != "down" {
		t.Errorf("expected db 'down', got %s", response.DB)
	}
}

func TestHealthCheckWithoutStore(t *testing.T) {
	rr := serveHealth(t, NewHealthHandler("test", "1.0.0", nil), http.MethodGet)

	var response HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response.Storage != "none" || response.DB != "disabled" {
		t.Errorf("expected none/disabled, got %s/%s", response.Storage, response.DB)
	}
}

func TestHealthCheckMethodNotAllowed(t *testing.T) {
	rr := serveHealth(t, NewHealthHandler("test", "1.0.0", nil), http.MethodPost)

	if status := rr.Code; status != http.StatusMethodNotAllowed {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusMethodNotAllowed)
	}
}
