package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/eugenenazirov/market-symbols/internal/storage"
)

var fixedNow = time.Date(2024, 11, 1, 12, 0, 0, 0, time.UTC)

type failingStorage struct {
	err error
}

func (f failingStorage) ListSymbols(context.Context) ([]storage.Symbol, error) {
	return nil, f.err
}

func (f failingStorage) GetSymbol(context.Context, int64) (storage.Symbol, bool, error) {
	return storage.Symbol{}, false, f.err
}

func (f failingStorage) Close() {}

func setupTestRouter(t *testing.T, store storage.Storage) http.Handler {
	t.Helper()

	handler := NewHandler(store,
		WithClock(func() time.Time { return fixedNow }),
		WithHandlerLogger(zaptest.NewLogger(t)),
	)
	logger := zaptest.NewLogger(t)
	return NewRouter(handler, logger, WithLogging(false))
}

func seededStorage(t *testing.T) *storage.MemoryStorage {
	t.Helper()

	store, err := storage.NewMemoryStorage("BTCUSDT", "ETHUSDT")
	if err != nil {
		t.Fatalf("NewMemoryStorage returned error: %v", err)
	}
	return store
}

func serve(router http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequestIDHelpers(t *testing.T) {
	ctx := contextWithRequestID(context.Background(), "abc")
	if got := requestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %s", got)
	}
	resp := httptest.NewRecorder()
	writeInternalError(resp)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 status, got %d", resp.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := setupTestRouter(t, seededStorage(t))

	rec := serve(router, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body struct {
		Status    string    `json:"status"`
		Timestamp time.Time `json:"timestamp"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if body.Status != "ok" {
		t.Fatalf("expected status ok, got %s", body.Status)
	}
	if !body.Timestamp.Equal(fixedNow) {
		t.Fatalf("expected timestamp %s, got %s", fixedNow, body.Timestamp)
	}
}

func TestListSymbols(t *testing.T) {
	router := setupTestRouter(t, seededStorage(t))

	rec := serve(router, "/markets:list")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body []storage.Symbol
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := []storage.Symbol{{ID: 1, Code: "BTCUSDT"}, {ID: 2, Code: "ETHUSDT"}}
	if len(body) != len(want) {
		t.Fatalf("expected %d symbols, got %d", len(want), len(body))
	}
	for i, sym := range want {
		if body[i] != sym {
			t.Fatalf("expected %+v at position %d, got %+v", sym, i, body[i])
		}
	}
}

func TestListSymbolsEmptyIsArray(t *testing.T) {
	store, err := storage.NewMemoryStorage()
	if err != nil {
		t.Fatalf("NewMemoryStorage returned error: %v", err)
	}
	router := setupTestRouter(t, store)

	rec := serve(router, "/markets:list")
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected empty JSON array, got %s", got)
	}
}

func TestGetSymbol(t *testing.T) {
	router := setupTestRouter(t, seededStorage(t))

	rec := serve(router, "/markets?id=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body storage.Symbol
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.ID != 2 || body.Code != "ETHUSDT" {
		t.Fatalf("unexpected symbol %+v", body)
	}
}

func TestGetSymbolUnknownIDReturnsNull(t *testing.T) {
	router := setupTestRouter(t, seededStorage(t))

	rec := serve(router, "/markets?id=404")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "null" {
		t.Fatalf("expected null body, got %s", got)
	}
}

func TestGetSymbolValidatesID(t *testing.T) {
	router := setupTestRouter(t, seededStorage(t))

	for _, target := range []string{"/markets", "/markets?id=", "/markets?id=abc", "/markets?id=1.5"} {
		rec := serve(router, target)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", target, rec.Code)
		}
	}
}

func TestStorageFailuresReturnInternalError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := NewHandler(failingStorage{err: errors.New("dial tcp 10.0.0.7:5432: connection refused")},
		WithHandlerLogger(zap.New(core)),
	)
	router := NewRouter(handler, zaptest.NewLogger(t), WithLogging(false))

	for _, target := range []string{"/markets:list", "/markets?id=1"} {
		rec := serve(router, target)
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected status 500, got %d", target, rec.Code)
		}
		var body errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if strings.Contains(body.Details, "10.0.0.7") || strings.Contains(body.Details, "refused") {
			t.Fatalf("storage error leaked to client: %q", body.Details)
		}
	}

	if logs.Len() != 2 {
		t.Fatalf("expected both failures to be logged, got %d", logs.Len())
	}
	for _, entry := range logs.All() {
		if got := entry.ContextMap()["error"]; got != "dial tcp 10.0.0.7:5432: connection refused" {
			t.Fatalf("expected cause in log entry, got %v", got)
		}
	}
}

func TestUnknownRouteAndMethod(t *testing.T) {
	router := setupTestRouter(t, seededStorage(t))

	if rec := serve(router, "/markets/1"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/markets:list", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected status 405, got %d", rec.Code)
	}
}

func TestCorsPreflight(t *testing.T) {
	router := setupTestRouter(t, seededStorage(t))

	req := httptest.NewRequest(http.MethodOptions, "/markets:list", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected Access-Control-Allow-Origin header to be set")
	}
}

func TestRequestIDPropagation(t *testing.T) {
	router := setupTestRouter(t, seededStorage(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "test-request-id")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "test-request-id" {
		t.Fatalf("expected X-Request-ID header to be echoed, got %s", got)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	router := setupTestRouter(t, seededStorage(t))

	first := serve(router, "/health").Header().Get("X-Request-ID")
	second := serve(router, "/health").Header().Get("X-Request-ID")
	if first == "" || first == second {
		t.Fatalf("expected unique generated request ids, got %q and %q", first, second)
	}
}
