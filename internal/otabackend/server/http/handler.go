package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/ota-backend/internal/otabackend/ota"
	"github.com/autopeer-io/ota-backend/internal/pkg/metrics"
	"github.com/autopeer-io/ota-backend/pkg/log"
)

const maxBodyBytes = 1 << 20

type handler struct {
	svc ota.Service
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ota.NewStatusResponse(h.svc.Status(r.Context())))
}

func (h *handler) start(w http.ResponseWriter, r *http.Request) {
	var req ota.StartRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	}
	req.Complete()

	err := h.svc.Start(r.Context(), req.OTAID, req.URL, req.TargetVersion)
	switch {
	case errors.Is(err, ota.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, errorResponse{Detail: err.Error()})
	case err != nil:
		log.Error(err, "Failed to start OTA run", "runID", req.OTAID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
	default:
		writeJSON(w, http.StatusOK, ota.StartResponse{OK: true, OTAID: req.OTAID})
	}
}

func (h *handler) reboot(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RequestReboot(r.Context()); err != nil {
		log.Error(err, "Reboot request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ota.StartResponse{OK: true})
}

func metricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{Registry: metrics.Registry})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to write response")
	}
}
