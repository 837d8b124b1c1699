package models

// Chunk is a titled, ordered segment of a document revision produced by the
// chunker. IDs are sequential and dense within one chunking call ("CH-01",
// "CH-02", ...); chunks carry no identity across calls.
type Chunk struct {
	ID      string `json:"id"`
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Content string `json:"content"`
}
