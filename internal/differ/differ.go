// Package differ aligns chunk sets across two document revisions and
// classifies what changed.
package differ

import (
	"fmt"
	"strings"

	"github.com/hyperjump/keikaku/internal/models"
	"github.com/hyperjump/keikaku/pkg/utils"
)

// DefaultThreshold is the Jaccard similarity floor below which two chunks are
// not considered the same section. It balances false added/removed pairs
// against false matches between unrelated sections.
const DefaultThreshold = 0.35

// Differ matches chunks between two revisions by lexical similarity.
// Matching is content-only, so reordered but unchanged sections are still
// recognized as unchanged.
type Differ struct {
	threshold float64
}

// NewDiffer creates a differ. threshold <= 0 selects DefaultThreshold.
func NewDiffer(threshold float64) *Differ {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Differ{threshold: threshold}
}

// Diff compares old and new chunk lists and returns change records: first the
// added/modified records in new-chunk order, then the removed records in
// old-chunk order. A matched pair with identical trimmed content produces no
// record. Matching is injective: each chunk appears in at most one record.
func (d *Differ) Diff(oldChunks, newChunks []models.Chunk) []models.ChangeRecord {
	oldTokens := make([]map[string]struct{}, len(oldChunks))
	for i, ch := range oldChunks {
		oldTokens[i] = utils.TokenSet(ch.Content)
	}

	used := make([]bool, len(oldChunks))
	matches := make([]int, len(newChunks)) // new index -> old index, -1 when unmatched

	for i, newChunk := range newChunks {
		newSet := utils.TokenSet(newChunk.Content)
		best, bestScore := -1, 0.0
		for j := range oldChunks {
			if used[j] {
				continue
			}
			// Strictly-greater keeps the lowest old index on ties.
			if score := jaccard(newSet, oldTokens[j]); score > bestScore {
				best, bestScore = j, score
			}
		}
		if best >= 0 && bestScore >= d.threshold {
			used[best] = true
			matches[i] = best
		} else {
			matches[i] = -1
		}
	}

	var records []models.ChangeRecord
	for i, newChunk := range newChunks {
		j := matches[i]
		if j < 0 {
			records = append(records, models.ChangeRecord{
				Type:       models.ChangeAdded,
				Summary:    fmt.Sprintf("Added section %q", newChunk.Title),
				NewChunkID: newChunk.ID,
			})
			continue
		}
		oldChunk := oldChunks[j]
		if strings.TrimSpace(oldChunk.Content) != strings.TrimSpace(newChunk.Content) {
			records = append(records, models.ChangeRecord{
				Type:       models.ChangeModified,
				Summary:    fmt.Sprintf("Modified section %q", newChunk.Title),
				OldChunkID: oldChunk.ID,
				NewChunkID: newChunk.ID,
			})
		}
	}
	for j, oldChunk := range oldChunks {
		if !used[j] {
			records = append(records, models.ChangeRecord{
				Type:       models.ChangeRemoved,
				Summary:    fmt.Sprintf("Removed section %q", oldChunk.Title),
				OldChunkID: oldChunk.ID,
			})
		}
	}
	return records
}

// jaccard is intersection over union of two token sets; 0 when either is empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
