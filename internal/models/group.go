package models

// Group is a set of documents sharing an extracted VRN, pending
// confirmation against the vehicle registry. Groups are derived on each
// classification fetch and never persisted.
type Group struct {
	VRN           string     `json:"vrn"`
	Documents     []Document `json:"documents"`
	VehicleExists bool       `json:"vehicle_exists"`
	MaxScore      float64    `json:"max_score"`
}

// DocumentIDs returns the ids of all documents in the group
func (g *Group) DocumentIDs() []string {
	ids := make([]string, 0, len(g.Documents))
	for _, d := range g.Documents {
		ids = append(ids, d.ID)
	}
	return ids
}

// Classification partitions the full candidate set into three mutually
// exclusive buckets: documents still needing identifier analysis,
// VRN groups pending a vehicle link, and documents requiring manual
// assignment.
type Classification struct {
	Processed  []Document `json:"processed"`
	Groups     []Group    `json:"groups"`
	Unassigned []Document `json:"unassigned"`
}

// LinkBatchResult aggregates a partial-success bulk link operation
type LinkBatchResult struct {
	LinkedCount int      `json:"linked_count"`
	FailedIDs   []string `json:"failed_ids,omitempty"`
}
