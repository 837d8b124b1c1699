package retrieval

import (
	"fmt"
	"math"
	"testing"

	"github.com/hyperjump/keikaku/internal/models"
)

func corpus(contents ...string) []models.Chunk {
	chunks := make([]models.Chunk, len(contents))
	for i, content := range contents {
		chunks[i] = models.Chunk{
			ID:      fmt.Sprintf("CH-%02d", i+1),
			Index:   i,
			Title:   fmt.Sprintf("Sección %d", i+1),
			Content: content,
		}
	}
	return chunks
}

func TestSelectTopChunks_NeverExceedsK(t *testing.T) {
	chunks := corpus("uno", "dos", "tres", "cuatro", "cinco", "seis")
	got := SelectTopChunks(chunks, "uno dos", 3)
	if len(got) > 3 {
		t.Errorf("returned %d chunks, want at most 3", len(got))
	}
	ids := map[string]bool{}
	for _, ch := range chunks {
		ids[ch.ID] = true
	}
	for _, ch := range got {
		if !ids[ch.ID] {
			t.Errorf("returned chunk %s not present in input", ch.ID)
		}
	}
}

func TestSelectTopChunks_EmptyQueryFallback(t *testing.T) {
	chunks := corpus("alfa", "beta", "gamma", "delta", "épsilon")
	for _, query := range []string{"", "   ", "*** !!!"} {
		got := SelectTopChunks(chunks, query, 4)
		if len(got) != 4 {
			t.Fatalf("query %q: got %d chunks, want 4", query, len(got))
		}
		for i, ch := range got {
			if ch.ID != chunks[i].ID {
				t.Errorf("query %q: position %d = %s, want %s (original order)", query, i, ch.ID, chunks[i].ID)
			}
		}
	}
}

func TestSelectTopChunks_ExactTokenOutranksMiss(t *testing.T) {
	chunks := corpus(
		"la pasarela de pagos procesa tarjetas",
		"el módulo de reportes genera archivos mensuales",
	)
	got := SelectTopChunks(chunks, "pagos", 2)
	if got[0].ID != "CH-01" {
		t.Errorf("chunk containing the query token must rank first, got %s", got[0].ID)
	}
}

func TestSelectTopChunks_TitleCountsTowardScore(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "CH-01", Index: 0, Title: "Facturación", Content: "detalles generales del proceso"},
		{ID: "CH-02", Index: 1, Title: "Notas", Content: "detalles generales del proceso"},
	}
	got := SelectTopChunks(chunks, "facturación", 1)
	if got[0].ID != "CH-01" {
		t.Errorf("title tokens must participate in scoring, got %s first", got[0].ID)
	}
}

func TestSelectTopChunks_StableOnTies(t *testing.T) {
	chunks := corpus("mismo contenido", "mismo contenido", "mismo contenido")
	got := SelectTopChunks(chunks, "contenido", 3)
	for i, ch := range got {
		if ch.Index != i {
			t.Errorf("tie order broken at %d: got index %d", i, ch.Index)
		}
	}
}

func TestSelectTopChunks_EmptyInput(t *testing.T) {
	if got := SelectTopChunks(nil, "algo", 4); got != nil {
		t.Errorf("nil input should return nil, got %v", got)
	}
}

func TestSelectTopChunks_DefaultK(t *testing.T) {
	chunks := corpus("a b", "a c", "a d", "a e", "a f", "a g")
	got := SelectTopChunks(chunks, "a", 0)
	if len(got) != DefaultTopK {
		t.Errorf("k=0 should select DefaultTopK=%d, got %d", DefaultTopK, len(got))
	}
}

func TestIDF_SmoothedFloor(t *testing.T) {
	stats := &corpusStats{docFreq: map[string]int{"visto": 3, "raro": 1}, numChunks: 3}
	// A token absent from the corpus defaults to 1.
	if got := stats.idf("nunca"); math.Abs(got-1) > 1e-9 {
		t.Errorf("unseen token idf = %f, want 1", got)
	}
	// A token present in every chunk floors at 1.
	if got := stats.idf("visto"); math.Abs(got-1) > 1e-9 {
		t.Errorf("ubiquitous token idf = %f, want 1", got)
	}
	if got := stats.idf("raro"); math.Abs(got-(math.Log(2)+1)) > 1e-9 {
		t.Errorf("rare token idf = %f, want ln(2)+1", got)
	}
}

func TestSelectTopChunks_QueryOnlyTokensDoNotReorder(t *testing.T) {
	chunks := corpus(
		"la pasarela de pagos procesa tarjetas",
		"el módulo de reportes genera archivos mensuales",
		"los usuarios acceden con contraseña",
	)
	base := SelectTopChunks(chunks, "pagos tarjetas", 3)
	noisy := SelectTopChunks(chunks, "pagos tarjetas zzzinexistente", 3)
	for i := range base {
		if base[i].ID != noisy[i].ID {
			t.Fatalf("position %d: %s vs %s (tokens outside the corpus must not affect ranking)",
				i, base[i].ID, noisy[i].ID)
		}
	}
}
