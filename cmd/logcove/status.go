package main

import (
	"net/http"
	"sync/atomic"
	"time"
)

// ingestMetrics counts entries accepted into and rejected by the store
// since process start.
type ingestMetrics struct {
	ingested atomic.Uint64
	rejected atomic.Uint64
}

type StatusResponse struct {
	Status          string `json:"status"`
	Uptime          string `json:"uptime"`
	IngestedLogs    uint64 `json:"ingested_logs"`
	RejectedLogs    uint64 `json:"rejected_logs"`
	StoreSize       string `json:"store_size"`
	LastMaintenance string `json:"last_maintenance,omitempty"`
}

var startTime = time.Now()

// HandleStatus reports process uptime, ingest counters and store size.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:       "ok",
		Uptime:       time.Since(startTime).String(),
		IngestedLogs: h.metrics.ingested.Load(),
		RejectedLogs: h.metrics.rejected.Load(),
		StoreSize:    h.Store.Size(r.Context()),
	}
	if h.Scheduler != nil {
		if last := h.Scheduler.LastRun(); !last.IsZero() {
			resp.LastMaintenance = last.Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleHealth is the liveness probe.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}
