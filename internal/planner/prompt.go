package planner

import (
	"fmt"
	"strings"

	"github.com/hyperjump/keikaku/internal/models"
)

const systemPrompt = `You are a software planning assistant. You receive excerpts of a requirements document and produce a development backlog.
Respond with a JSON array only, no prose and no markdown fences. Each element has the fields:
  "title" (short imperative summary, required),
  "description" (one or two sentences, optional),
  "priority" (one of "alta", "media", "baja", optional),
  "estimate" (rough effort such as "2d" or "1w", optional).
Write titles and descriptions in the language of the document.`

// buildUserPrompt renders the selected chunks, one titled section each, plus
// the optional focus query.
func buildUserPrompt(chunks []models.Chunk, payload models.PlanJobPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Requirements document (version %s):\n\n", payload.Version)
	for _, ch := range chunks {
		fmt.Fprintf(&b, "## %s\n%s\n\n", ch.Title, ch.Content)
	}
	if focus := strings.TrimSpace(payload.Context); focus != "" {
		fmt.Fprintf(&b, "Focus the backlog on: %s\n\n", focus)
	}
	b.WriteString("Produce the backlog now.")
	return b.String()
}
