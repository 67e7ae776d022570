package models

import "time"

// DocumentStatus represents a document's position in the ingestion workflow
type DocumentStatus string

const (
	DocumentStatusUnassigned      DocumentStatus = "unassigned"
	DocumentStatusPendingOCR      DocumentStatus = "pending_ocr"
	DocumentStatusPendingIndexing DocumentStatus = "pending_indexing"
	DocumentStatusProcessed       DocumentStatus = "processed"
	DocumentStatusFailed          DocumentStatus = "failed"
	DocumentStatusArchived        DocumentStatus = "archived"
)

// Document represents a vehicle document held by the backend.
// VRN is the extracted vehicle registration number; empty until the
// identifier analysis has run (and stays empty when none was found).
type Document struct {
	ID         string         `json:"id"`
	Filename   string         `json:"filename"`
	Status     DocumentStatus `json:"status"`
	VRN        string         `json:"vrn,omitempty"`
	Score      float64        `json:"score,omitempty"`
	UploadedAt time.Time      `json:"uploaded_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// HasVRN returns true if an identifier was extracted for this document
func (d *Document) HasVRN() bool {
	return d.VRN != ""
}

// DocumentStats represents backend document statistics refreshed after
// each pipeline run
type DocumentStats struct {
	TotalDocuments    int            `json:"total_documents"`
	DocumentsByStatus map[string]int `json:"documents_by_status"`
	IndexedChunks     int            `json:"indexed_chunks"`
}

// ClassifiedDocuments is the server-labeled three-way split consumed by
// the classification grouper. The three sets are disjoint on the server.
type ClassifiedDocuments struct {
	Processed  []Document `json:"processed"`
	WithVRN    []Document `json:"grouped"`
	Unassigned []Document `json:"unassigned"`
}

// AnalysisResult summarizes a findIdentifierInDocuments run. Per-document
// routing is server-determined; clients reconcile via refetch, not local
// arithmetic.
type AnalysisResult struct {
	TotalProcessed     int `json:"total_processed"`
	IdentifierFound    int `json:"identifier_found"`
	IdentifierNotFound int `json:"identifier_not_found"`
	Failed             int `json:"failed"`
}
