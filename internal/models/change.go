package models

// ChangeType classifies how a chunk changed between two document revisions.
type ChangeType string

const (
	// ChangeAdded marks a new chunk with no match in the old revision.
	ChangeAdded ChangeType = "added"
	// ChangeModified marks a matched chunk whose content changed.
	ChangeModified ChangeType = "modified"
	// ChangeRemoved marks an old chunk with no match in the new revision.
	ChangeRemoved ChangeType = "removed"
)

// ChangeRecord describes one difference between two chunk sets.
// OldChunkID is set for modified and removed records; NewChunkID is set for
// added and modified records. Unchanged chunks produce no record.
type ChangeRecord struct {
	Type       ChangeType `json:"change_type"`
	Summary    string     `json:"summary"`
	OldChunkID string     `json:"old_chunk_id,omitempty"`
	NewChunkID string     `json:"new_chunk_id,omitempty"`
}
