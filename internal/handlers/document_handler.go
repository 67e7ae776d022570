package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/services/linker"
)

// DocumentHandler serves document listings, the classified grouping
// snapshot and identifier analysis
type DocumentHandler struct {
	documents interfaces.DocumentClient
	linker    *linker.Service
	logger    arbor.ILogger
}

func NewDocumentHandler(documents interfaces.DocumentClient, linkerService *linker.Service, logger arbor.ILogger) *DocumentHandler {
	return &DocumentHandler{
		documents: documents,
		linker:    linkerService,
		logger:    logger,
	}
}

// ListDocuments proxies the backend document listing
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	opts := &interfaces.ListOptions{
		Limit:    GetLimitParam(r, 50, 200),
		OrderBy:  r.URL.Query().Get("order_by"),
		OrderDir: r.URL.Query().Get("order_dir"),
	}

	docs, err := h.documents.ListDocuments(r.Context(), opts)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list documents")
		WriteError(w, http.StatusBadGateway, "Failed to list documents")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"count":     len(docs),
	})
}

// GetStats proxies backend document statistics
func (h *DocumentHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	stats, err := h.documents.GetStats(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to fetch document stats")
		WriteError(w, http.StatusBadGateway, "Failed to fetch document stats")
		return
	}

	WriteJSON(w, http.StatusOK, stats)
}

// GetClassified returns the in-memory classification snapshot. The
// snapshot is maintained by the linker and refreshed after runs, link
// mutations and on the reconciliation schedule.
func (h *DocumentHandler) GetClassified(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snapshot := h.linker.Snapshot()
	if snapshot == nil {
		// No snapshot yet: build one on demand
		fresh, err := h.linker.Refresh(r.Context())
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to build classification snapshot")
			WriteError(w, http.StatusBadGateway, "Failed to classify documents")
			return
		}
		snapshot = fresh
	}

	WriteJSON(w, http.StatusOK, snapshot)
}

type analyzeRequest struct {
	DocumentIDs []string `json:"document_ids,omitempty"`
	UseAI       bool     `json:"use_ai"`
}

// Analyze triggers identifier extraction on the backend. An empty
// document_ids list analyzes every processed document.
func (h *DocumentHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req analyzeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	result, err := h.documents.AnalyzeIdentifiers(r.Context(), req.DocumentIDs, req.UseAI)
	if err != nil {
		h.logger.Error().Err(err).Msg("Identifier analysis failed")
		WriteError(w, http.StatusBadGateway, "Identifier analysis failed")
		return
	}

	h.logger.Info().
		Int("total", result.TotalProcessed).
		Int("found", result.IdentifierFound).
		Msg("Identifier analysis completed")

	WriteJSON(w, http.StatusOK, result)
}
