package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/logcove/logcove/pkg/auth"
	"github.com/logcove/logcove/pkg/model"
	"github.com/logcove/logcove/pkg/storage"
)

// MockStore captures store calls and returns canned results.
type MockStore struct {
	inserted   []model.LogEntry
	insertErr  error
	queryIn    storage.QueryParams
	queryOut   []model.LogEntry
	statsOut   model.LogStats
	cleanupIn  storage.CleanupParams
	cleanupOut int64
	size       string
}

func (m *MockStore) InsertOne(ctx context.Context, entry *model.LogEntry) (string, error) {
	if m.insertErr != nil {
		return "", m.insertErr
	}
	m.inserted = append(m.inserted, *entry)
	return entry.ID, nil
}

func (m *MockStore) InsertBatch(ctx context.Context, entries []model.LogEntry) ([]string, error) {
	if m.insertErr != nil {
		return nil, m.insertErr
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		m.inserted = append(m.inserted, e)
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (m *MockStore) Query(ctx context.Context, params storage.QueryParams) ([]model.LogEntry, error) {
	m.queryIn = params
	return m.queryOut, nil
}

func (m *MockStore) Stats(ctx context.Context, params storage.StatsParams) (model.LogStats, error) {
	return m.statsOut, nil
}

func (m *MockStore) Cleanup(ctx context.Context, params storage.CleanupParams) (int64, error) {
	m.cleanupIn = params
	return m.cleanupOut, nil
}

func (m *MockStore) Size(ctx context.Context) string {
	return m.size
}

var _ storage.LogStore = &MockStore{}

func newTestHandler(store *MockStore) *Handler {
	return NewHandler(store, nil, nil, 3, zap.NewNop())
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHandleCreateLog(t *testing.T) {
	store := &MockStore{}
	h := newTestHandler(store)

	payload := `{"project":"server","module":"ingest","message":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	h.HandleCreateLog(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(store.inserted) != 1 {
		t.Fatalf("Expected 1 inserted entry, got %d", len(store.inserted))
	}

	got := store.inserted[0]
	if got.ID == "" {
		t.Error("Expected a generated id")
	}
	if got.Timestamp.IsZero() {
		t.Error("Expected a default timestamp")
	}
	if got.Level != model.LogLevelInfo {
		t.Errorf("Expected default level info, got %s", got.Level)
	}

	body := decodeBody(t, rr)
	if body["id"] != got.ID {
		t.Errorf("Expected response id %q, got %v", got.ID, body["id"])
	}
}

func TestHandleCreateLog_InvalidJSON(t *testing.T) {
	h := newTestHandler(&MockStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()

	h.HandleCreateLog(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rr.Code)
	}
	if h.metrics.rejected.Load() != 1 {
		t.Errorf("Expected 1 rejected, got %d", h.metrics.rejected.Load())
	}
}

func TestHandleCreateLog_Duplicate(t *testing.T) {
	store := &MockStore{insertErr: storage.ErrDuplicateID}
	h := newTestHandler(store)

	payload := `{"id":"dup","project":"server","module":"m","message":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	h.HandleCreateLog(rr, req)

	if rr.Code != http.StatusConflict {
		t.Errorf("Expected 409 for duplicate id, got %d", rr.Code)
	}
}

func TestHandleCreateLog_ValidationError(t *testing.T) {
	store := &MockStore{insertErr: &storage.ValidationError{Reason: errors.New("message is required")}}
	h := newTestHandler(store)

	payload := `{"project":"server","module":"m"}`
	req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	h.HandleCreateLog(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for validation error, got %d", rr.Code)
	}
}

func TestHandleCreateBatch(t *testing.T) {
	store := &MockStore{}
	h := newTestHandler(store)

	payload := `[
		{"id":"b1","project":"server","module":"m","message":"one"},
		{"id":"b2","project":"server","module":"m","message":"two"}
	]`
	req := httptest.NewRequest(http.MethodPost, "/api/logs/batch", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	h.HandleCreateBatch(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["count"] != float64(2) {
		t.Errorf("Expected count 2, got %v", body["count"])
	}
	if h.metrics.ingested.Load() != 2 {
		t.Errorf("Expected 2 ingested, got %d", h.metrics.ingested.Load())
	}
}

func TestHandleCreateBatch_Empty(t *testing.T) {
	h := newTestHandler(&MockStore{})

	req := httptest.NewRequest(http.MethodPost, "/api/logs/batch", strings.NewReader("[]"))
	rr := httptest.NewRecorder()

	h.HandleCreateBatch(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty batch, got %d", rr.Code)
	}
}

func TestHandleCreateBatch_TooLarge(t *testing.T) {
	h := newTestHandler(&MockStore{}) // MaxBatch is 3

	var entries []model.LogEntry
	for i := 0; i < 4; i++ {
		entries = append(entries, model.LogEntry{Project: model.LogProjectServer, Module: "m", Message: "x"})
	}
	buf, _ := json.Marshal(entries)
	req := httptest.NewRequest(http.MethodPost, "/api/logs/batch", bytes.NewReader(buf))
	rr := httptest.NewRecorder()

	h.HandleCreateBatch(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413 for oversized batch, got %d", rr.Code)
	}
}

func TestHandleCreateBatch_BatchError(t *testing.T) {
	store := &MockStore{insertErr: &storage.BatchError{
		Index: 1,
		ID:    "b2",
		Err:   storage.ErrDuplicateID,
	}}
	h := newTestHandler(store)

	payload := `[
		{"id":"b1","project":"server","module":"m","message":"one"},
		{"id":"b2","project":"server","module":"m","message":"two"}
	]`
	req := httptest.NewRequest(http.MethodPost, "/api/logs/batch", strings.NewReader(payload))
	rr := httptest.NewRecorder()

	h.HandleCreateBatch(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for batch error, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["index"] != float64(1) || body["id"] != "b2" {
		t.Errorf("Expected failing index and id in response, got %v", body)
	}
}

func TestHandleGetLogs(t *testing.T) {
	store := &MockStore{queryOut: []model.LogEntry{
		{ID: "q1", Timestamp: time.Now(), Project: model.LogProjectServer, Level: model.LogLevelInfo, Module: "m", Message: "hi"},
	}}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/api/logs?project=server&level=info&limit=5&offset=10", nil)
	rr := httptest.NewRecorder()

	h.HandleGetLogs(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if store.queryIn.Project != model.LogProjectServer || store.queryIn.Level != model.LogLevelInfo {
		t.Errorf("Filters not forwarded: %+v", store.queryIn)
	}
	if store.queryIn.Limit != 5 || store.queryIn.Offset != 10 {
		t.Errorf("Pagination not forwarded: %+v", store.queryIn)
	}

	var entries []model.LogEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &entries); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "q1" {
		t.Errorf("Unexpected entries: %+v", entries)
	}
}

func TestHandleGetLogs_EmptyResultIsArray(t *testing.T) {
	h := newTestHandler(&MockStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	rr := httptest.NewRecorder()

	h.HandleGetLogs(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("Expected empty JSON array, got %q", got)
	}
}

func TestHandleGetLogs_BadTime(t *testing.T) {
	h := newTestHandler(&MockStore{})

	req := httptest.NewRequest(http.MethodGet, "/api/logs?start_date=yesterday", nil)
	rr := httptest.NewRecorder()

	h.HandleGetLogs(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a bad start_date, got %d", rr.Code)
	}
}

func TestHandleGetLogs_ArchiveDisabled(t *testing.T) {
	h := newTestHandler(&MockStore{}) // no archiver configured

	req := httptest.NewRequest(http.MethodGet, "/api/logs?archived=true", nil)
	rr := httptest.NewRecorder()

	h.HandleGetLogs(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 when the archive tier is off, got %d", rr.Code)
	}
}

func TestHandleCleanup(t *testing.T) {
	store := &MockStore{cleanupOut: 7}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/logs/cleanup?days_to_keep=14&project=server", nil)
	rr := httptest.NewRecorder()

	h.HandleCleanup(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if store.cleanupIn.DaysToKeep != 14 || store.cleanupIn.Project != model.LogProjectServer {
		t.Errorf("Cleanup params not forwarded: %+v", store.cleanupIn)
	}
	body := decodeBody(t, rr)
	if body["deleted_count"] != float64(7) {
		t.Errorf("Expected deleted_count 7, got %v", body["deleted_count"])
	}
}

func TestHandleCleanup_Defaults(t *testing.T) {
	store := &MockStore{}
	h := newTestHandler(store)

	req := httptest.NewRequest(http.MethodDelete, "/api/logs/cleanup", nil)
	rr := httptest.NewRecorder()

	h.HandleCleanup(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if store.cleanupIn.DaysToKeep != 30 {
		t.Errorf("Expected default 30 days, got %d", store.cleanupIn.DaysToKeep)
	}
}

func TestHandleCleanup_NegativeDays(t *testing.T) {
	h := newTestHandler(&MockStore{})

	req := httptest.NewRequest(http.MethodDelete, "/api/logs/cleanup?days_to_keep=-1", nil)
	rr := httptest.NewRecorder()

	h.HandleCleanup(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for negative days_to_keep, got %d", rr.Code)
	}
}

func TestHandleGetSize(t *testing.T) {
	h := newTestHandler(&MockStore{size: "1.5 MB"})

	req := httptest.NewRequest(http.MethodGet, "/api/logs/size", nil)
	rr := httptest.NewRecorder()

	h.HandleGetSize(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["size"] != "1.5 MB" {
		t.Errorf("Expected size 1.5 MB, got %v", body["size"])
	}
}

func TestAPIKeyAuth(t *testing.T) {
	secret := []byte("gateway-secret")
	logger := zap.NewNop()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	protected := APIKeyAuth(secret, logger)(next)

	// Missing key.
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/logs", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a key, got %d", rr.Code)
	}

	// Invalid key.
	req := httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	req.Header.Set("X-API-Key", "bogus")
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with a bogus key, got %d", rr.Code)
	}

	// Valid key.
	apiKey, err := auth.IssueAPIKey("client-1", nil, secret)
	if err != nil {
		t.Fatalf("IssueAPIKey: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/logs", nil)
	req.Header.Set("X-API-Key", apiKey)
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Errorf("Expected the request to pass through, got %d", rr.Code)
	}
}

func TestHandleCreateLog_ScopeEnforced(t *testing.T) {
	secret := []byte("scope-secret")
	store := &MockStore{}
	h := newTestHandler(store)
	protected := APIKeyAuth(secret, zap.NewNop())(http.HandlerFunc(h.HandleCreateLog))

	apiKey, err := auth.IssueAPIKey("agents-only", []model.LogProject{model.LogProjectAgents}, secret)
	if err != nil {
		t.Fatalf("IssueAPIKey: %v", err)
	}

	send := func(project string) *httptest.ResponseRecorder {
		payload := `{"project":"` + project + `","module":"m","message":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/api/logs", strings.NewReader(payload))
		req.Header.Set("X-API-Key", apiKey)
		rr := httptest.NewRecorder()
		protected.ServeHTTP(rr, req)
		return rr
	}

	if rr := send("server"); rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for out-of-scope project, got %d", rr.Code)
	}
	if rr := send("agents"); rr.Code != http.StatusCreated {
		t.Errorf("Expected 201 for in-scope project, got %d", rr.Code)
	}
	if len(store.inserted) != 1 {
		t.Errorf("Expected only the in-scope entry stored, got %d", len(store.inserted))
	}
}
