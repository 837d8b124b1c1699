package models

import (
	"fmt"
	"strings"
	"time"
)

// JobStatus is the lifecycle state of a plan job. Transitions are monotonic:
// queued -> processing -> done | error. There is no transition out of a
// terminal state; a failed job must be resubmitted as a new job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

// Terminal reports whether the status is done or error.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobError
}

// PlanJobPayload is the unit of work submitted to the plan queue.
type PlanJobPayload struct {
	ProjectID string `json:"project_id"`
	Text      string `json:"text"`
	Version   string `json:"version,omitempty"`
	// Context is an optional free-form focus query; when set, only the
	// chunks most relevant to it are included in the generation prompt.
	Context string `json:"context,omitempty"`
}

// Validate rejects payloads that must never enter the queue.
func (p *PlanJobPayload) Validate() error {
	if p.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if strings.TrimSpace(p.Text) == "" {
		return fmt.Errorf("document text cannot be empty")
	}
	if p.Version == "" {
		p.Version = "v1"
	}
	return nil
}

// BacklogItem is one work item generated from a requirements document.
type BacklogItem struct {
	ID          string    `json:"id" db:"id"`
	ProjectID   string    `json:"project_id" db:"project_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority,omitempty"`
	Estimate    string    `json:"estimate,omitempty"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PlanResult is the structured output of a successful plan job.
type PlanResult struct {
	Items []BacklogItem `json:"items"`
	// ContextChunks lists the ids of the chunks included in the prompt.
	ContextChunks []string `json:"context_chunks,omitempty"`
}

// PlanJob is an asynchronous unit of generation work.
// Result is non-nil only when Status is done; Error is non-empty only when
// Status is error. StartedAt is stamped on entering processing and
// FinishedAt on entering a terminal state.
type PlanJob struct {
	ID         string         `json:"id" db:"id"`
	ProjectID  string         `json:"project_id" db:"project_id"`
	Status     JobStatus      `json:"status" db:"status"`
	Payload    PlanJobPayload `json:"payload"`
	Result     *PlanResult    `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}
