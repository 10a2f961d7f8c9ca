package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/logcove/logcove/pkg/maintenance"
	"github.com/logcove/logcove/pkg/model"
	"github.com/logcove/logcove/pkg/storage"
	"github.com/logcove/logcove/pkg/storage/archive"
)

// Handler adapts HTTP requests onto the log store. It is a thin shaping
// layer: defaults for missing id/timestamp are applied here (the ingestion
// boundary), everything else is delegated.
type Handler struct {
	Store     storage.LogStore
	Archive   *archive.Archiver
	Scheduler *maintenance.Scheduler
	MaxBatch  int

	logger  *zap.Logger
	metrics *ingestMetrics
}

func NewHandler(store storage.LogStore, arc *archive.Archiver, sched *maintenance.Scheduler, maxBatch int, logger *zap.Logger) *Handler {
	return &Handler{
		Store:     store,
		Archive:   arc,
		Scheduler: sched,
		MaxBatch:  maxBatch,
		logger:    logger,
		metrics:   &ingestMetrics{},
	}
}

// HandleCreateLog ingests a single entry.
func (h *Handler) HandleCreateLog(w http.ResponseWriter, r *http.Request) {
	var entry model.LogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		h.metrics.rejected.Add(1)
		writeJSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	h.applyDefaults(&entry)

	if !projectAllowed(r, entry.Project) {
		h.metrics.rejected.Add(1)
		writeJSONError(w, http.StatusForbidden, "api key not scoped for project "+string(entry.Project))
		return
	}

	id, err := h.Store.InsertOne(r.Context(), &entry)
	if err != nil {
		h.metrics.rejected.Add(1)
		h.writeStoreError(w, err)
		return
	}

	h.metrics.ingested.Add(1)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

// HandleCreateBatch ingests a batch of entries atomically.
func (h *Handler) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var entries []model.LogEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		h.metrics.rejected.Add(1)
		writeJSONError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if len(entries) == 0 {
		writeJSONError(w, http.StatusBadRequest, "empty batch")
		return
	}
	if len(entries) > h.MaxBatch {
		h.metrics.rejected.Add(uint64(len(entries)))
		writeJSONError(w, http.StatusRequestEntityTooLarge, "batch exceeds maximum size of "+strconv.Itoa(h.MaxBatch))
		return
	}

	for i := range entries {
		h.applyDefaults(&entries[i])
		if !projectAllowed(r, entries[i].Project) {
			h.metrics.rejected.Add(uint64(len(entries)))
			writeJSONError(w, http.StatusForbidden, "api key not scoped for project "+string(entries[i].Project))
			return
		}
	}

	ids, err := h.Store.InsertBatch(r.Context(), entries)
	if err != nil {
		h.metrics.rejected.Add(uint64(len(entries)))
		h.writeStoreError(w, err)
		return
	}

	h.metrics.ingested.Add(uint64(len(ids)))
	writeJSON(w, http.StatusCreated, map[string]interface{}{"ids": ids, "count": len(ids)})
}

// HandleGetLogs returns one filtered page of entries. With archived=true it
// reads the warm archive tier instead of the primary table.
func (h *Handler) HandleGetLogs(w http.ResponseWriter, r *http.Request) {
	params, err := parseQueryParams(r)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	var entries []model.LogEntry
	if r.URL.Query().Get("archived") == "true" {
		if h.Archive == nil {
			writeJSONError(w, http.StatusServiceUnavailable, "archive tier is not enabled")
			return
		}
		entries, err = h.Archive.Query(r.Context(), params)
	} else {
		entries, err = h.Store.Query(r.Context(), params)
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	if entries == nil {
		entries = []model.LogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetStats returns aggregate counts for the matching entries.
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := storage.StatsParams{Project: model.LogProject(q.Get("project"))}

	var err error
	if params.Start, err = parseTime(q.Get("start_date")); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	if params.End, err = parseTime(q.Get("end_date")); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid end_date")
		return
	}

	stats, err := h.Store.Stats(r.Context(), params)
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleCleanup deletes entries older than days_to_keep.
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	daysToKeep := 30
	if s := q.Get("days_to_keep"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid days_to_keep")
			return
		}
		daysToKeep = n
	}

	deleted, err := h.Store.Cleanup(r.Context(), storage.CleanupParams{
		DaysToKeep: daysToKeep,
		Project:    model.LogProject(q.Get("project")),
		Level:      model.LogLevel(q.Get("level")),
	})
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"deleted_count": deleted})
}

// HandleGetSize reports the store's on-disk footprint.
func (h *Handler) HandleGetSize(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"size": h.Store.Size(r.Context())})
}

// HandleRunMaintenance triggers a maintenance pass on demand.
func (h *Handler) HandleRunMaintenance(w http.ResponseWriter, r *http.Request) {
	if h.Scheduler == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "maintenance is not enabled")
		return
	}
	res, err := h.Scheduler.RunNow(r.Context())
	if err != nil {
		if errors.Is(err, maintenance.ErrBusy) {
			writeJSONError(w, http.StatusConflict, "maintenance pass already running")
			return
		}
		h.logger.Error("Manual maintenance pass failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "maintenance pass failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// applyDefaults fills the ingestion-boundary defaults: a fresh UUID when
// the caller did not assign an id, and the receive time when it did not
// timestamp the event.
func (h *Handler) applyDefaults(entry *model.LogEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	if entry.Level == "" {
		entry.Level = model.LogLevelInfo
	}
}

func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	var batchErr *storage.BatchError
	var validationErr *storage.ValidationError
	var filterErr *storage.InvalidFilterError

	switch {
	case errors.As(err, &batchErr):
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error": batchErr.Error(),
			"index": batchErr.Index,
			"id":    batchErr.ID,
		})
	case errors.As(err, &validationErr):
		writeJSONError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &filterErr):
		writeJSONError(w, http.StatusBadRequest, filterErr.Error())
	case errors.Is(err, storage.ErrDuplicateID):
		writeJSONError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrStorageUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("Store operation failed", zap.Error(err))
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func parseQueryParams(r *http.Request) (storage.QueryParams, error) {
	q := r.URL.Query()
	params := storage.QueryParams{
		Project: model.LogProject(q.Get("project")),
		Level:   model.LogLevel(q.Get("level")),
		Module:  q.Get("module"),
	}

	var err error
	if params.Start, err = parseTime(q.Get("start_date")); err != nil {
		return params, errors.New("invalid start_date")
	}
	if params.End, err = parseTime(q.Get("end_date")); err != nil {
		return params, errors.New("invalid end_date")
	}
	if s := q.Get("limit"); s != "" {
		if params.Limit, err = strconv.Atoi(s); err != nil {
			return params, errors.New("invalid limit")
		}
	}
	if s := q.Get("offset"); s != "" {
		if params.Offset, err = strconv.Atoi(s); err != nil {
			return params, errors.New("invalid offset")
		}
	}
	return params, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg})
}
