package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/common"
	"github.com/ternarybob/vindex/internal/services/status"
)

// StatusHandler serves pipeline state and service health endpoints
type StatusHandler struct {
	statusService *status.Service
	logger        arbor.ILogger
}

func NewStatusHandler(statusService *status.Service, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		statusService: statusService,
		logger:        logger,
	}
}

// GetStatus returns the current pipeline state snapshot
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, h.statusService.GetStatus())
}

// GetHealth returns a liveness response
func (h *StatusHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "vindex",
		"version": common.GetVersion(),
	})
}

// GetVersion returns build information
func (h *StatusHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetFullVersion(),
	})
}
