package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"strconv"

	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

// uploadResponse is the raw upload endpoint response
type uploadResponse struct {
	ID        string `json:"id"`
	Duplicate bool   `json:"duplicate"`
	Filename  string `json:"filename"`
}

// Upload sends one file to the upload endpoint. The backend performs
// duplicate detection; an already-present, already-indexed file comes
// back flagged duplicate rather than as an error.
func (c *Client) Upload(ctx context.Context, file interfaces.UploadFile, autoIndex bool) (*models.UploadOutcome, error) {
	body, contentType, err := buildMultipart(file, autoIndex)
	if err != nil {
		return nil, err
	}

	var resp uploadResponse
	if err := c.postRaw(ctx, "/api/documents/upload", contentType, body, &resp); err != nil {
		return nil, fmt.Errorf("upload of %s failed: %w", file.Name, err)
	}

	return &models.UploadOutcome{
		Filename:    file.Name,
		DocumentID:  resp.ID,
		IsDuplicate: resp.Duplicate,
		IsNew:       !resp.Duplicate,
	}, nil
}

// buildMultipart assembles the multipart body for an upload. Files are
// buffered in memory; the caller-enforced batch cap keeps this bounded.
func buildMultipart(file interfaces.UploadFile, autoIndex bool) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Reader); err != nil {
		return nil, "", fmt.Errorf("failed to read file %s: %w", file.Name, err)
	}

	if err := writer.WriteField("auto_index", strconv.FormatBool(autoIndex)); err != nil {
		return nil, "", fmt.Errorf("failed to write form field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	return &buf, writer.FormDataContentType(), nil
}

// ListDocuments returns documents with pagination/sort
func (c *Client) ListDocuments(ctx context.Context, opts *interfaces.ListOptions) ([]models.Document, error) {
	params := url.Values{}
	if opts != nil {
		if opts.Limit > 0 {
			params.Set("limit", strconv.Itoa(opts.Limit))
		}
		if opts.Offset > 0 {
			params.Set("offset", strconv.Itoa(opts.Offset))
		}
		if opts.OrderBy != "" {
			params.Set("order_by", opts.OrderBy)
		}
		if opts.OrderDir != "" {
			params.Set("order_dir", opts.OrderDir)
		}
	}

	var resp struct {
		Documents []models.Document `json:"documents"`
	}
	if err := c.get(ctx, "/api/documents", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return resp.Documents, nil
}

// GetStats returns backend document statistics
func (c *Client) GetStats(ctx context.Context) (*models.DocumentStats, error) {
	var stats models.DocumentStats
	if err := c.get(ctx, "/api/documents/stats", nil, &stats); err != nil {
		return nil, fmt.Errorf("failed to fetch document stats: %w", err)
	}
	return &stats, nil
}

// AnalyzeIdentifiers runs VRN extraction over the given documents.
// A nil slice analyzes every processed document server-side.
func (c *Client) AnalyzeIdentifiers(ctx context.Context, documentIDs []string, useAI bool) (*models.AnalysisResult, error) {
	body := map[string]interface{}{
		"document_ids": documentIDs,
		"use_ai":       useAI,
	}

	var result models.AnalysisResult
	if err := c.post(ctx, "/api/documents/analyze", body, &result); err != nil {
		return nil, fmt.Errorf("identifier analysis failed: %w", err)
	}
	return &result, nil
}

// GetClassifiedDocuments returns the server-labeled three-way split
func (c *Client) GetClassifiedDocuments(ctx context.Context) (*models.ClassifiedDocuments, error) {
	var classified models.ClassifiedDocuments
	if err := c.get(ctx, "/api/documents/classified", nil, &classified); err != nil {
		return nil, fmt.Errorf("failed to fetch classified documents: %w", err)
	}
	return &classified, nil
}
