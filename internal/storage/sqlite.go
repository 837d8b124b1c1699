// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/keikaku/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		version TEXT NOT NULL,
		content TEXT NOT NULL,
		chunk_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_documents_project ON documents(project_id, created_at);

	CREATE TABLE IF NOT EXISTS backlog_items (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT,
		priority TEXT,
		estimate TEXT,
		position INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_backlog_project ON backlog_items(project_id, position);

	CREATE TABLE IF NOT EXISTS plan_jobs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		status TEXT NOT NULL,
		payload TEXT NOT NULL,
		result TEXT,
		error TEXT,
		created_at TIMESTAMP NOT NULL,
		started_at TIMESTAMP,
		finished_at TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON plan_jobs(status, created_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateProject inserts a project.
func (s *SQLiteStorage) CreateProject(ctx context.Context, p *models.Project) error {
	p.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, name, created_at) VALUES (?, ?, ?)`,
		p.ID, p.Name, p.CreatedAt,
	)
	return err
}

// GetProject returns a project by ID.
func (s *SQLiteStorage) GetProject(ctx context.Context, id string) (*models.Project, error) {
	var p models.Project
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM projects WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProjects returns all projects, newest first.
func (s *SQLiteStorage) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at FROM projects ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// CreateDocument inserts a document revision.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	doc.CreatedAt = time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, project_id, version, content, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.ProjectID, doc.Version, doc.Content, doc.ChunkCount, doc.CreatedAt,
	)
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, version, content, chunk_count, created_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.ProjectID, &doc.Version, &doc.Content, &doc.ChunkCount, &doc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocumentsByProject returns a project's revisions, oldest first.
func (s *SQLiteStorage) ListDocumentsByProject(ctx context.Context, projectID string) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, version, content, chunk_count, created_at
		 FROM documents WHERE project_id = ? ORDER BY created_at ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.ProjectID, &doc.Version, &doc.Content, &doc.ChunkCount, &doc.CreatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// ReplaceBacklog swaps the project's backlog items inside one transaction.
func (s *SQLiteStorage) ReplaceBacklog(ctx context.Context, projectID string, items []models.BacklogItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backlog_items WHERE project_id = ?`, projectID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO backlog_items (id, project_id, title, description, priority, estimate, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for i, item := range items {
		if _, err := stmt.ExecContext(ctx, item.ID, projectID, item.Title, item.Description,
			item.Priority, item.Estimate, i, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListBacklog returns a project's backlog items in stored order.
func (s *SQLiteStorage) ListBacklog(ctx context.Context, projectID string) ([]models.BacklogItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, title, description, priority, estimate, created_at
		 FROM backlog_items WHERE project_id = ? ORDER BY position ASC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.BacklogItem
	for rows.Next() {
		var item models.BacklogItem
		if err := rows.Scan(&item.ID, &item.ProjectID, &item.Title, &item.Description,
			&item.Priority, &item.Estimate, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CreateJob inserts a job in state queued.
func (s *SQLiteStorage) CreateJob(ctx context.Context, job *models.PlanJob) error {
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	job.Status = models.JobQueued
	job.CreatedAt = time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO plan_jobs (id, project_id, status, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.ProjectID, job.Status, string(payloadJSON), job.CreatedAt,
	)
	return err
}

// GetJob returns a job by ID.
func (s *SQLiteStorage) GetJob(ctx context.Context, id string) (*models.PlanJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, status, payload, result, error, created_at, started_at, finished_at
		 FROM plan_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	return job, err
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.PlanJob, error) {
	var job models.PlanJob
	var payloadJSON string
	var resultJSON, errMsg sql.NullString
	var startedAt, finishedAt sql.NullTime

	err := row.Scan(&job.ID, &job.ProjectID, &job.Status, &payloadJSON,
		&resultJSON, &errMsg, &job.CreatedAt, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payloadJSON), &job.Payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if resultJSON.Valid && resultJSON.String != "" {
		var result models.PlanResult
		if err := json.Unmarshal([]byte(resultJSON.String), &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result: %w", err)
		}
		job.Result = &result
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if finishedAt.Valid {
		t := finishedAt.Time
		job.FinishedAt = &t
	}
	return &job, nil
}

// ClaimNextQueuedJob moves the oldest queued job to processing and stamps
// started_at, all inside one transaction so a claim cannot be observed twice.
func (s *SQLiteStorage) ClaimNextQueuedJob(ctx context.Context) (*models.PlanJob, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, project_id, status, payload, result, error, created_at, started_at, finished_at
		 FROM plan_jobs WHERE status = ? ORDER BY created_at ASC LIMIT 1`, models.JobQueued)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE plan_jobs SET status = ?, started_at = ? WHERE id = ?`,
		models.JobProcessing, now, job.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	job.Status = models.JobProcessing
	job.StartedAt = &now
	return job, nil
}

// CompleteJob transitions a processing job to done with its result.
func (s *SQLiteStorage) CompleteJob(ctx context.Context, id string, result *models.PlanResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE plan_jobs SET status = ?, result = ?, finished_at = ? WHERE id = ? AND status = ?`,
		models.JobDone, string(resultJSON), time.Now(), id, models.JobProcessing)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job %s is not processing", id)
	}
	return nil
}

// FailJob transitions a processing job to error with a message.
func (s *SQLiteStorage) FailJob(ctx context.Context, id string, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE plan_jobs SET status = ?, error = ?, finished_at = ? WHERE id = ? AND status = ?`,
		models.JobError, message, time.Now(), id, models.JobProcessing)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("job %s is not processing", id)
	}
	return nil
}

// CountQueuedJobs returns the number of jobs waiting in the queue.
func (s *SQLiteStorage) CountQueuedJobs(ctx context.Context) (int64, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM plan_jobs WHERE status = ?`, string(models.JobQueued))
}

// CountProjects returns the total number of projects.
func (s *SQLiteStorage) CountProjects(ctx context.Context) (int64, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM projects`)
}

// CountDocuments returns the total number of document revisions.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM documents`)
}

// CountJobs returns the total number of plan jobs.
func (s *SQLiteStorage) CountJobs(ctx context.Context) (int64, error) {
	return s.countWhere(ctx, `SELECT COUNT(*) FROM plan_jobs`)
}

func (s *SQLiteStorage) countWhere(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
