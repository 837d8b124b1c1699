// Package storage defines the persistence interface for projects, documents,
// backlog items, and plan jobs.
package storage

import (
	"context"

	"github.com/hyperjump/keikaku/internal/models"
)

// Storage defines persistence operations for the planning service.
//
// Job mutation methods are called only by the plan worker, which owns the
// status/result/error fields of every job it claims; the submission path only
// appends queued rows.
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)

	// Document operations. Documents are immutable revisions ordered by
	// creation time within a project.
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByProject(ctx context.Context, projectID string) ([]*models.Document, error)

	// Backlog operations. ReplaceBacklog swaps a project's backlog for the
	// items of the latest successful plan job.
	ReplaceBacklog(ctx context.Context, projectID string, items []models.BacklogItem) error
	ListBacklog(ctx context.Context, projectID string) ([]models.BacklogItem, error)

	// Plan job operations
	CreateJob(ctx context.Context, job *models.PlanJob) error
	GetJob(ctx context.Context, id string) (*models.PlanJob, error)
	// ClaimNextQueuedJob atomically moves the oldest queued job to
	// processing, stamping started_at. Returns (nil, nil) when the queue
	// is empty.
	ClaimNextQueuedJob(ctx context.Context) (*models.PlanJob, error)
	CompleteJob(ctx context.Context, id string, result *models.PlanResult) error
	FailJob(ctx context.Context, id string, message string) error
	CountQueuedJobs(ctx context.Context) (int64, error)

	// Stats
	CountProjects(ctx context.Context) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)
	CountJobs(ctx context.Context) (int64, error)
	// DiskUsage reports the store's on-disk footprint in bytes.
	DiskUsage() (int64, error)

	Close() error
}
