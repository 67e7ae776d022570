package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/models"
	"github.com/ternarybob/vindex/internal/services/linker"
)

// VehicleHandler serves bulk and single document-vehicle link operations
type VehicleHandler struct {
	linker   *linker.Service
	validate *validator.Validate
	logger   arbor.ILogger
}

func NewVehicleHandler(linkerService *linker.Service, logger arbor.ILogger) *VehicleHandler {
	return &VehicleHandler{
		linker:   linkerService,
		validate: validator.New(),
		logger:   logger,
	}
}

type linkBatchRequest struct {
	VehicleID   string   `json:"vehicle_id" validate:"required"`
	DocumentIDs []string `json:"document_ids" validate:"required,min=1,dive,required"`
}

type createAndLinkRequest struct {
	VRN         string                `json:"vrn" validate:"required"`
	DocumentIDs []string              `json:"document_ids" validate:"required,min=1,dive,required"`
	Details     models.VehicleDetails `json:"details"`
}

type singleLinkRequest struct {
	VehicleID  string `json:"vehicle_id" validate:"required"`
	DocumentID string `json:"document_id" validate:"required"`
}

func (h *VehicleHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		WriteError(w, http.StatusBadRequest, fmt.Sprintf("Validation failed: %v", err))
		return false
	}
	return true
}

// LinkBatch links multiple documents to an existing vehicle
func (h *VehicleHandler) LinkBatch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req linkBatchRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.linker.LinkBatch(r.Context(), req.VehicleID, req.DocumentIDs)
	if err != nil {
		h.logger.Error().Err(err).Str("vehicle_id", req.VehicleID).Msg("Link batch failed")
		WriteError(w, http.StatusBadGateway, "Link operation failed")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// UnlinkBatch removes multiple document links from a vehicle
func (h *VehicleHandler) UnlinkBatch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req linkBatchRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.linker.UnlinkBatch(r.Context(), req.VehicleID, req.DocumentIDs)
	if err != nil {
		h.logger.Error().Err(err).Str("vehicle_id", req.VehicleID).Msg("Unlink batch failed")
		WriteError(w, http.StatusBadGateway, "Unlink operation failed")
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// CreateAndLink registers a new vehicle for a VRN and links documents to it
func (h *VehicleHandler) CreateAndLink(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req createAndLinkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	vehicle, result, err := h.linker.CreateVehicleAndLink(r.Context(), req.VRN, req.DocumentIDs, req.Details)
	if err != nil {
		h.logger.Error().Err(err).Str("vrn", req.VRN).Msg("Create-and-link failed")
		WriteError(w, http.StatusBadGateway, "Create-and-link operation failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"vehicle": vehicle,
		"result":  result,
	})
}

// Link attaches a single document to a vehicle
func (h *VehicleHandler) Link(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req singleLinkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.linker.Link(r.Context(), req.VehicleID, req.DocumentID); err != nil {
		h.logger.Error().Err(err).Str("vehicle_id", req.VehicleID).Msg("Link failed")
		WriteError(w, http.StatusBadGateway, "Link operation failed")
		return
	}

	WriteSuccess(w, "Document linked")
}

// Unlink detaches a single document from a vehicle
func (h *VehicleHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req singleLinkRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	if err := h.linker.Unlink(r.Context(), req.VehicleID, req.DocumentID); err != nil {
		h.logger.Error().Err(err).Str("vehicle_id", req.VehicleID).Msg("Unlink failed")
		WriteError(w, http.StatusBadGateway, "Unlink operation failed")
		return
	}

	WriteSuccess(w, "Document unlinked")
}
