package backend

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/ternarybob/vindex/internal/models"
)

// FindByVRN looks up a vehicle by registration number. Returns nil with
// no error when no vehicle matches.
func (c *Client) FindByVRN(ctx context.Context, vrn string) (*models.Vehicle, error) {
	params := url.Values{}
	params.Set("vrn", vrn)

	var vehicle models.Vehicle
	if err := c.get(ctx, "/api/vehicles/search", params, &vehicle); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsNotFound() {
			return nil, nil
		}
		return nil, fmt.Errorf("vehicle lookup for %s failed: %w", vrn, err)
	}
	return &vehicle, nil
}

// linkBatchResponse is the raw partial-success response of bulk link operations
type linkBatchResponse struct {
	LinkedCount int      `json:"linked_count"`
	FailedIDs   []string `json:"failed_ids"`
}

func (r *linkBatchResponse) toResult() *models.LinkBatchResult {
	return &models.LinkBatchResult{
		LinkedCount: r.LinkedCount,
		FailedIDs:   r.FailedIDs,
	}
}

// LinkDocuments links documents to a vehicle with partial-success
// semantics: ids in FailedIDs stay unlinked, the rest are linked.
// Re-linking an already-linked document is accepted server-side.
func (c *Client) LinkDocuments(ctx context.Context, vehicleID string, documentIDs []string) (*models.LinkBatchResult, error) {
	body := map[string]interface{}{
		"document_ids": documentIDs,
	}

	var resp linkBatchResponse
	if err := c.post(ctx, "/api/vehicles/"+vehicleID+"/link", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to link documents to vehicle %s: %w", vehicleID, err)
	}
	return resp.toResult(), nil
}

// UnlinkDocuments removes document links with the same per-item aggregation
func (c *Client) UnlinkDocuments(ctx context.Context, vehicleID string, documentIDs []string) (*models.LinkBatchResult, error) {
	body := map[string]interface{}{
		"document_ids": documentIDs,
	}

	var resp linkBatchResponse
	if err := c.post(ctx, "/api/vehicles/"+vehicleID+"/unlink", body, &resp); err != nil {
		return nil, fmt.Errorf("failed to unlink documents from vehicle %s: %w", vehicleID, err)
	}
	return resp.toResult(), nil
}

// createAndLinkResponse carries the created vehicle plus link aggregation
type createAndLinkResponse struct {
	Vehicle     models.Vehicle `json:"vehicle"`
	LinkedCount int            `json:"linked_count"`
	FailedIDs   []string       `json:"failed_ids"`
}

// CreateVehicleAndLink creates a vehicle record and links at least one
// document transactionally on the server. On failure nothing is created
// and the caller retains the group for retry.
func (c *Client) CreateVehicleAndLink(ctx context.Context, vrn string, documentIDs []string, details models.VehicleDetails) (*models.Vehicle, *models.LinkBatchResult, error) {
	body := map[string]interface{}{
		"vrn":          vrn,
		"document_ids": documentIDs,
		"details":      details,
	}

	var resp createAndLinkResponse
	if err := c.post(ctx, "/api/vehicles/create-and-link", body, &resp); err != nil {
		return nil, nil, fmt.Errorf("failed to create vehicle %s and link documents: %w", vrn, err)
	}

	result := &models.LinkBatchResult{
		LinkedCount: resp.LinkedCount,
		FailedIDs:   resp.FailedIDs,
	}
	return &resp.Vehicle, result, nil
}

// LinkDocument links a single document to a vehicle
func (c *Client) LinkDocument(ctx context.Context, vehicleID, documentID string) error {
	body := map[string]interface{}{
		"document_id": documentID,
	}
	if err := c.post(ctx, "/api/vehicles/"+vehicleID+"/link-one", body, nil); err != nil {
		return fmt.Errorf("failed to link document %s to vehicle %s: %w", documentID, vehicleID, err)
	}
	return nil
}

// UnlinkDocument removes a single document link
func (c *Client) UnlinkDocument(ctx context.Context, vehicleID, documentID string) error {
	body := map[string]interface{}{
		"document_id": documentID,
	}
	if err := c.post(ctx, "/api/vehicles/"+vehicleID+"/unlink-one", body, nil); err != nil {
		return fmt.Errorf("failed to unlink document %s from vehicle %s: %w", documentID, vehicleID, err)
	}
	return nil
}
