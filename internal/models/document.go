// Package models defines core data structures for projects, documents, chunks,
// change records, backlog items, and plan jobs.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Project groups document revisions and the backlog generated from them.
type Project struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Document is one revision of a project's requirements text.
// Version is a caller-supplied label ("v1", "2024-03 draft", ...); revisions
// are ordered by CreatedAt, not by parsing the label.
type Document struct {
	ID         string    `json:"id" db:"id"`
	ProjectID  string    `json:"project_id" db:"project_id"`
	Version    string    `json:"version" db:"version"`
	Content    string    `json:"content" db:"content"`
	ChunkCount int       `json:"chunk_count" db:"chunk_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// DocumentInput is the input for ingesting a document revision.
type DocumentInput struct {
	Version string `json:"version,omitempty"`
	Content string `json:"content"`
}

// Validate checks the input and applies defaults. Empty content is rejected
// synchronously so it never reaches storage or the job queue.
func (d *DocumentInput) Validate() error {
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("document content cannot be empty")
	}
	if d.Version == "" {
		d.Version = "v1"
	}
	return nil
}
