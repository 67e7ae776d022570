// -----------------------------------------------------------------------
// Package classify partitions documents into the three reconciliation
// buckets: needing identifier analysis, grouped by VRN pending a vehicle
// link, and needing manual assignment.
// -----------------------------------------------------------------------

package classify

import (
	"context"
	"fmt"
	"sort"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/vindex/internal/interfaces"
	"github.com/ternarybob/vindex/internal/models"
)

// Grouper builds the classification snapshot from the backend's
// server-labeled document sets. It is recomputed from source-of-truth
// on every fetch and never cached across refreshes.
type Grouper struct {
	documents interfaces.DocumentClient
	vehicles  interfaces.VehicleClient
	logger    arbor.ILogger
}

// NewGrouper creates a classification grouper
func NewGrouper(documents interfaces.DocumentClient, vehicles interfaces.VehicleClient, logger arbor.ILogger) *Grouper {
	return &Grouper{
		documents: documents,
		vehicles:  vehicles,
		logger:    logger,
	}
}

// Fetch retrieves the classified sets and builds a fresh partition.
// Every candidate document lands in exactly one bucket; a document with
// no extracted VRN always goes to the manual-assignment bucket, never
// into a group.
func (g *Grouper) Fetch(ctx context.Context) (*models.Classification, error) {
	classified, err := g.documents.GetClassifiedDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch classified documents: %w", err)
	}

	return g.Build(ctx, classified)
}

// Build partitions the server-labeled sets. The with-VRN set is grouped
// by identifier with a registry lookup per unique VRN; documents that
// arrive in that set without an identifier are routed to unassigned.
func (g *Grouper) Build(ctx context.Context, classified *models.ClassifiedDocuments) (*models.Classification, error) {
	result := &models.Classification{
		Processed:  classified.Processed,
		Unassigned: classified.Unassigned,
	}

	byVRN := make(map[string][]models.Document)
	order := make([]string, 0)

	for _, doc := range classified.WithVRN {
		if !doc.HasVRN() {
			// Server-side labeling should prevent this; route to manual
			// assignment rather than inventing a group.
			g.logger.Warn().
				Str("doc_id", doc.ID).
				Msg("Document in grouped set has no identifier, moving to unassigned")
			result.Unassigned = append(result.Unassigned, doc)
			continue
		}
		if _, seen := byVRN[doc.VRN]; !seen {
			order = append(order, doc.VRN)
		}
		byVRN[doc.VRN] = append(byVRN[doc.VRN], doc)
	}

	for _, vrn := range order {
		docs := byVRN[vrn]

		vehicle, err := g.vehicles.FindByVRN(ctx, vrn)
		if err != nil {
			return nil, fmt.Errorf("vehicle lookup for group %s failed: %w", vrn, err)
		}

		maxScore := 0.0
		for _, d := range docs {
			if d.Score > maxScore {
				maxScore = d.Score
			}
		}

		result.Groups = append(result.Groups, models.Group{
			VRN:           vrn,
			Documents:     docs,
			VehicleExists: vehicle != nil,
			MaxScore:      maxScore,
		})
	}

	// Highest-confidence groups first, ties broken by identifier for a
	// stable order across refreshes
	sort.SliceStable(result.Groups, func(i, j int) bool {
		if result.Groups[i].MaxScore != result.Groups[j].MaxScore {
			return result.Groups[i].MaxScore > result.Groups[j].MaxScore
		}
		return result.Groups[i].VRN < result.Groups[j].VRN
	})

	g.logger.Debug().
		Int("processed", len(result.Processed)).
		Int("groups", len(result.Groups)).
		Int("unassigned", len(result.Unassigned)).
		Msg("Classification rebuilt")

	return result, nil
}
