// Package retrieval ranks document chunks against a query with TF-IDF cosine
// similarity. Scoring is in-memory and per-request; nothing is indexed or
// persisted between calls.
package retrieval

import (
	"math"
	"sort"

	"github.com/hyperjump/keikaku/internal/models"
	"github.com/hyperjump/keikaku/pkg/utils"
)

// DefaultTopK is the default number of chunks returned to ground generation.
const DefaultTopK = 4

// corpusStats holds per-token document frequencies for one chunk list.
type corpusStats struct {
	docFreq   map[string]int
	numChunks int
}

// idf returns the smoothed inverse document frequency for token:
// ln((N+1)/(df+1)) + 1. Tokens absent from the corpus weigh exactly 1; only
// query-only tokens hit this case, and they never intersect a chunk vector.
func (s *corpusStats) idf(token string) float64 {
	df, ok := s.docFreq[token]
	if !ok {
		return 1
	}
	return math.Log(float64(s.numChunks+1)/float64(df+1)) + 1
}

// SelectTopChunks returns at most k chunks ordered by descending relevance to
// query. Chunks are scored over title plus content. Ties and equal scores keep
// the original chunk order. When the query has no usable tokens the first k
// chunks are returned unscored, preserving input order. k <= 0 selects
// DefaultTopK.
func SelectTopChunks(chunks []models.Chunk, query string, k int) []models.Chunk {
	if k <= 0 {
		k = DefaultTopK
	}
	if len(chunks) == 0 {
		return nil
	}

	queryTokens := utils.Tokenize(query)
	if len(queryTokens) == 0 {
		return firstK(chunks, k)
	}

	chunkTokens := make([][]string, len(chunks))
	stats := &corpusStats{docFreq: make(map[string]int), numChunks: len(chunks)}
	for i, ch := range chunks {
		chunkTokens[i] = utils.Tokenize(ch.Title + "\n" + ch.Content)
		for tok := range termCounts(chunkTokens[i]) {
			stats.docFreq[tok]++
		}
	}

	queryVec := weightedVector(termCounts(queryTokens), stats)

	type scored struct {
		chunk models.Chunk
		score float64
		pos   int
	}
	ranked := make([]scored, len(chunks))
	for i, ch := range chunks {
		vec := weightedVector(termCounts(chunkTokens[i]), stats)
		ranked[i] = scored{chunk: ch, score: cosine(vec, queryVec), pos: i}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].score > ranked[b].score
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	out := make([]models.Chunk, k)
	for i := range out {
		out[i] = ranked[i].chunk
	}
	return out
}

func firstK(chunks []models.Chunk, k int) []models.Chunk {
	if k > len(chunks) {
		k = len(chunks)
	}
	out := make([]models.Chunk, k)
	copy(out, chunks[:k])
	return out
}

func termCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}
	return counts
}

// weightedVector multiplies raw term counts by each token's IDF.
func weightedVector(counts map[string]int, stats *corpusStats) map[string]float64 {
	vec := make(map[string]float64, len(counts))
	for tok, n := range counts {
		vec[tok] = float64(n) * stats.idf(tok)
	}
	return vec
}

// cosine is the cosine similarity of two sparse vectors; 0 when either is all-zero.
func cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for tok, av := range a {
		normA += av * av
		if bv, ok := b[tok]; ok {
			dot += av * bv
		}
	}
	for _, bv := range b {
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
