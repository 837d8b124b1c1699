// Package ingest stores requirement document revisions: text is normalized,
// chunked for bookkeeping, and persisted as an immutable revision of a
// project.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/keikaku/internal/chunker"
	"github.com/hyperjump/keikaku/internal/extract"
	"github.com/hyperjump/keikaku/internal/models"
	"github.com/hyperjump/keikaku/internal/storage"
)

// Ingestor persists document revisions for projects.
type Ingestor struct {
	store     storage.Storage
	chunker   *chunker.Chunker
	extractor *extract.Extractor
	logger    *zap.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(ing *Ingestor) { ing.logger = l }
}

// NewIngestor creates an ingestor. extractor may be nil; when nil, IngestFile
// treats every file as plain text.
func NewIngestor(store storage.Storage, c *chunker.Chunker, extractor *extract.Extractor, opts ...Option) *Ingestor {
	ing := &Ingestor{
		store:     store,
		chunker:   c,
		extractor: extractor,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ing)
	}
	return ing
}

// IngestText stores input as a new revision of the project's requirements and
// returns the stored document together with its chunks. The project must
// exist; revisions are append-only.
func (ing *Ingestor) IngestText(ctx context.Context, projectID string, input *models.DocumentInput) (*models.Document, []models.Chunk, error) {
	if err := input.Validate(); err != nil {
		return nil, nil, err
	}
	if _, err := ing.store.GetProject(ctx, projectID); err != nil {
		return nil, nil, fmt.Errorf("project %s: %w", projectID, err)
	}

	chunks := ing.chunker.Chunk(input.Content)
	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("document has no usable content")
	}

	doc := &models.Document{
		ID:         uuid.New().String(),
		ProjectID:  projectID,
		Version:    input.Version,
		Content:    input.Content,
		ChunkCount: len(chunks),
	}
	if err := ing.store.CreateDocument(ctx, doc); err != nil {
		return nil, nil, fmt.Errorf("store document: %w", err)
	}
	ing.logger.Debug("document revision stored",
		zap.String("project_id", projectID),
		zap.String("doc_id", doc.ID),
		zap.String("version", doc.Version),
		zap.Int("chunks", doc.ChunkCount))
	return doc, chunks, nil
}

// IngestUpload extracts text from an uploaded file's bytes and stores it as a
// new revision. The format is chosen by filename extension; version defaults
// to the filename when blank.
func (ing *Ingestor) IngestUpload(ctx context.Context, projectID, filename, version string, content []byte) (*models.Document, []models.Chunk, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !extract.Supported(ext) {
		return nil, nil, fmt.Errorf("unsupported document format %q", ext)
	}

	var text string
	var err error
	if ing.extractor != nil {
		text, err = ing.extractor.ExtractBytes(content, ext)
	} else {
		text = string(content)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("extract content: %w", err)
	}

	if version == "" {
		version = filepath.Base(filename)
	}
	return ing.IngestText(ctx, projectID, &models.DocumentInput{
		Version: version,
		Content: text,
	})
}

// IngestFile extracts text from the file at path and stores it as a new
// revision, using the file name as the version label. Returns an error if the
// path is not a regular file of a supported intake format.
func (ing *Ingestor) IngestFile(ctx context.Context, projectID, path string) (*models.Document, []models.Chunk, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, nil, fmt.Errorf("absolute path: %w", err)
	}
	if ext := strings.ToLower(filepath.Ext(absPath)); !extract.Supported(ext) {
		return nil, nil, fmt.Errorf("unsupported document format %q", ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	var text string
	if ing.extractor != nil {
		text, err = ing.extractor.Extract(absPath)
	} else {
		var raw []byte
		raw, err = os.ReadFile(absPath)
		text = string(raw)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("extract content: %w", err)
	}

	return ing.IngestText(ctx, projectID, &models.DocumentInput{
		Version: filepath.Base(absPath),
		Content: text,
	})
}
