package handlers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/common"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/pipeline"
)

// maxUploadMemory caps in-memory multipart parsing before spilling to disk
const maxUploadMemory = 64 << 20 // 64 MB

// PipelineHandler drives ingestion runs: upload, cancel, run history
type PipelineHandler struct {
	coordinator *pipeline.Coordinator
	runStorage  interfaces.RunStorage
	maxFiles    int
	logger      arbor.ILogger
}

func NewPipelineHandler(coordinator *pipeline.Coordinator, runStorage interfaces.RunStorage, maxFiles int, logger arbor.ILogger) *PipelineHandler {
	return &PipelineHandler{
		coordinator: coordinator,
		runStorage:  runStorage,
		maxFiles:    maxFiles,
		logger:      logger,
	}
}

// Upload accepts a multipart batch and starts an ingestion run.
// The run executes in the background; progress arrives over the
// websocket and the status endpoint.
func (h *PipelineHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if h.coordinator.Busy() {
		WriteError(w, http.StatusConflict, "An ingestion run is already in progress")
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Invalid multipart form: %v", err))
		return
	}

	fileHeaders := r.MultipartForm.File["files"]
	if len(fileHeaders) == 0 {
		WriteError(w, http.StatusBadRequest, "No files provided")
		return
	}
	if len(fileHeaders) > h.maxFiles {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Too many files: %d exceeds batch limit of %d", len(fileHeaders), h.maxFiles))
		return
	}

	// Buffer file contents before the handler returns; the multipart
	// readers are tied to the request body and the run outlives it.
	files := make([]interfaces.UploadFile, 0, len(fileHeaders))
	for _, header := range fileHeaders {
		src, err := header.Open()
		if err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("Failed to open %s: %v", header.Filename, err))
			return
		}

		var buf bytes.Buffer
		_, err = io.Copy(&buf, src)
		src.Close()
		if err != nil {
			WriteError(w, http.StatusBadRequest, fmt.Sprintf("Failed to read %s: %v", header.Filename, err))
			return
		}

		files = append(files, interfaces.UploadFile{
			Name:   header.Filename,
			Reader: bytes.NewReader(buf.Bytes()),
			Size:   int64(buf.Len()),
		})
	}

	common.SafeGo(h.logger, "ingestionRun", func() {
		run, err := h.coordinator.Run(context.Background(), files)
		if err != nil {
			h.logger.Error().Err(err).Msg("Ingestion run failed")
			return
		}
		h.logger.Info().
			Str("run_id", run.ID).
			Str("state", string(run.State)).
			Msg("Ingestion run finished")
	})

	WriteStarted(w, fmt.Sprintf("Ingestion started for %d file(s)", len(files)))
}

// Cancel stops the indexing stage of the active run
func (h *PipelineHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if err := h.coordinator.Cancel(r.Context()); err != nil {
		WriteError(w, http.StatusConflict, err.Error())
		return
	}

	WriteSuccess(w, "Cancellation requested")
}

// CurrentRun returns the active run snapshot, or 404 when idle
func (h *PipelineHandler) CurrentRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	run := h.coordinator.CurrentRun()
	if run == nil {
		WriteError(w, http.StatusNotFound, "No active run")
		return
	}

	WriteJSON(w, http.StatusOK, run)
}

// ListRuns returns the run journal, newest first
func (h *PipelineHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := GetLimitParam(r, 20, 100)
	runs, err := h.runStorage.ListRuns(limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns a single journaled run by id
func (h *PipelineHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/pipeline/runs/")
	if id == "" {
		WriteError(w, http.StatusBadRequest, "Run id is required")
		return
	}

	run, err := h.runStorage.GetRun(id)
	if err != nil {
		WriteError(w, http.StatusNotFound, fmt.Sprintf("Run not found: %s", id))
		return
	}

	WriteJSON(w, http.StatusOK, run)
}
