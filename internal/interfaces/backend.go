// -----------------------------------------------------------------------
// Backend client interfaces - the remote collaborators the coordination
// core consumes. The core owns no durable state of its own; everything
// is derived from these calls at load and refresh time.
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
	"io"

	"github.com/ternarybob/vindex/internal/models"
)

// UploadFile is a single file handed to the upload endpoint
type UploadFile struct {
	Name   string
	Reader io.Reader
	Size   int64
}

// ConversionOptions configure a conversion job
type ConversionOptions struct {
	Incremental   bool `json:"incremental"`
	EnableOCR     bool `json:"enable_ocr"`
	MaxFileSizeMB int  `json:"max_file_size_mb"`
}

// IndexingOptions configure an indexing job
type IndexingOptions struct {
	Mode           string `json:"mode"`
	SkipConversion bool   `json:"skip_conversion"`
}

// ListOptions control document listing pagination and ordering
type ListOptions struct {
	Limit    int
	Offset   int
	OrderBy  string
	OrderDir string
}

// DocumentClient covers document upload, listing and identifier analysis
type DocumentClient interface {
	// Upload sends one file; duplicate detection happens server-side
	Upload(ctx context.Context, file UploadFile, autoIndex bool) (*models.UploadOutcome, error)

	// ListDocuments returns documents with pagination/sort
	ListDocuments(ctx context.Context, opts *ListOptions) ([]models.Document, error)

	// GetStats returns backend document statistics
	GetStats(ctx context.Context) (*models.DocumentStats, error)

	// AnalyzeIdentifiers runs VRN extraction over the given documents.
	// A nil documentIDs slice analyzes every processed document.
	AnalyzeIdentifiers(ctx context.Context, documentIDs []string, useAI bool) (*models.AnalysisResult, error)

	// GetClassifiedDocuments returns the server-labeled three-way split
	GetClassifiedDocuments(ctx context.Context) (*models.ClassifiedDocuments, error)
}

// ConversionClient drives the remote document conversion service
type ConversionClient interface {
	StartConversion(ctx context.Context, opts ConversionOptions) (taskID string, err error)
	GetConversionStatus(ctx context.Context, taskID string) (*models.Job, error)
}

// IndexingClient drives the remote vector indexing service
type IndexingClient interface {
	StartIndexing(ctx context.Context, opts IndexingOptions) (taskID string, err error)
	GetIndexingStatus(ctx context.Context, taskID string) (*models.Job, error)
	StopIndexing(ctx context.Context, taskID string) error
}

// VehicleClient covers vehicle registry lookups and link operations
type VehicleClient interface {
	// FindByVRN returns nil (no error) when no vehicle matches
	FindByVRN(ctx context.Context, vrn string) (*models.Vehicle, error)

	LinkDocuments(ctx context.Context, vehicleID string, documentIDs []string) (*models.LinkBatchResult, error)
	UnlinkDocuments(ctx context.Context, vehicleID string, documentIDs []string) (*models.LinkBatchResult, error)
	CreateVehicleAndLink(ctx context.Context, vrn string, documentIDs []string, details models.VehicleDetails) (*models.Vehicle, *models.LinkBatchResult, error)
	LinkDocument(ctx context.Context, vehicleID, documentID string) error
	UnlinkDocument(ctx context.Context, vehicleID, documentID string) error
}

// BackendClient aggregates every remote collaborator interface
type BackendClient interface {
	DocumentClient
	ConversionClient
	IndexingClient
	VehicleClient
}
