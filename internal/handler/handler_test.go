package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/dco5/users-service/internal/handler/dto"
	"github.com/dco5/users-service/internal/metrics"
	"github.com/dco5/users-service/internal/service"
	"github.com/dco5/users-service/internal/testutil"
)

// testEnv wires the user routes against an in-memory store.
type testEnv struct {
	store    *testutil.UserStore
	recorder *metrics.InMemoryRecorder
	svc      *service.UserService
	router   *chi.Mux
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := testutil.NewUserStore()
	recorder := metrics.NewInMemory()
	svc := service.NewUserService(store, nil, recorder)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(logger)
	healthHandler := NewHealthHandler(nil, nil)
	userHandler := NewUserHandler(svc, logger)
	pageHandler := NewPageHandler(svc, logger)

	router := chi.NewRouter()
	router.Get("/", pageHandler.Index)
	router.Post("/", pageHandler.Create)
	router.Route("/users", func(r chi.Router) {
		r.Get("/ping", healthHandler.Ping)
		r.Get("/", userHandler.List)
		r.Post("/", userHandler.Create)
		r.Get("/{id}", userHandler.Get)
	})
	router.NotFound(h.NotFound)
	router.MethodNotAllowed(h.MethodNotAllowed)

	return &testEnv{store: store, recorder: recorder, svc: svc, router: router}
}

func (e *testEnv) do(t *testing.T, method, path, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var response map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHandler_NotFound(t *testing.T) {
	h := New(nil)

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var response dto.Response
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Status != dto.StatusFail || response.Message != "resource not found" {
		t.Errorf("unexpected response: %+v", response)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodDelete, "/users/ping", "", "")

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}

	response := decodeResponse(t, rec)
	if response["message"] != "method not allowed" {
		t.Errorf("unexpected error message: %v", response["message"])
	}
}
