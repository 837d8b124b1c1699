// Package planner turns a requirements document into a backlog proposal by
// chunking the text, selecting the relevant sections, and asking the
// generation provider for structured items.
package planner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperjump/keikaku/internal/chunker"
	"github.com/hyperjump/keikaku/internal/models"
	"github.com/hyperjump/keikaku/internal/provider"
	"github.com/hyperjump/keikaku/internal/retrieval"
)

// Planner runs the generation pipeline for one payload at a time. It is
// stateless between calls and safe for concurrent use.
type Planner struct {
	chunker *chunker.Chunker
	gen     provider.Generator
	topK    int
}

// Option configures a Planner.
type Option func(*Planner)

// WithChunker overrides the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(p *Planner) { p.chunker = c }
}

// WithTopK sets how many chunks are retrieved when a focus query is present.
func WithTopK(k int) Option {
	return func(p *Planner) { p.topK = k }
}

// New creates a planner backed by gen.
func New(gen provider.Generator, opts ...Option) *Planner {
	p := &Planner{
		chunker: chunker.NewChunker(0),
		gen:     gen,
		topK:    retrieval.DefaultTopK,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan chunks the payload text, narrows it to the chunks relevant to the
// focus query when one is given, invokes the provider, and parses the reply
// into backlog items. Item ids and timestamps are assigned here so the result
// is ready to persist.
func (p *Planner) Plan(ctx context.Context, payload models.PlanJobPayload) (*models.PlanResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	chunks := p.chunker.Chunk(payload.Text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document has no usable content")
	}

	selected := chunks
	if strings.TrimSpace(payload.Context) != "" {
		selected = retrieval.SelectTopChunks(chunks, payload.Context, p.topK)
	}

	raw, err := p.gen.Generate(ctx, systemPrompt, buildUserPrompt(selected, payload))
	if err != nil {
		return nil, fmt.Errorf("generate backlog: %w", err)
	}

	items, err := ParseBacklog(raw)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	for i := range items {
		items[i].ID = uuid.New().String()
		items[i].ProjectID = payload.ProjectID
		items[i].CreatedAt = now
	}

	contextIDs := make([]string, len(selected))
	for i, ch := range selected {
		contextIDs[i] = ch.ID
	}
	return &models.PlanResult{Items: items, ContextChunks: contextIDs}, nil
}
