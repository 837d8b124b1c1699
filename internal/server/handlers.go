package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/keikaku/internal/export"
	"github.com/hyperjump/keikaku/internal/models"
	"github.com/hyperjump/keikaku/internal/retrieval"
)

// maxUploadBytes caps in-memory parsing of multipart document uploads.
const maxUploadBytes = 32 << 20

type createProjectRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		s.respondError(w, http.StatusBadRequest, "name is required")
		return
	}
	project := &models.Project{ID: uuid.New().String(), Name: req.Name}
	if err := s.storage.CreateProject(r.Context(), project); err != nil {
		s.logger.Error("create project failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, project)
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.storage.ListProjects(r.Context())
	if err != nil {
		s.logger.Error("list projects failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	project, err := s.storage.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "project not found")
		return
	}
	s.respondJSON(w, http.StatusOK, project)
}

// handleIngestDocument accepts either a JSON body with raw text or a
// multipart form with a "file" part (optional "version" field).
func (s *Server) handleIngestDocument(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")

	var (
		doc    *models.Document
		chunks []models.Chunk
		err    error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if perr := r.ParseMultipartForm(maxUploadBytes); perr != nil {
			s.respondError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			s.respondError(w, http.StatusBadRequest, "file part is required")
			return
		}
		defer file.Close()
		content, rerr := io.ReadAll(file)
		if rerr != nil {
			s.respondError(w, http.StatusBadRequest, "read file part")
			return
		}
		doc, chunks, err = s.ingestor.IngestUpload(r.Context(), projectID,
			header.Filename, r.FormValue("version"), content)
	} else {
		var input models.DocumentInput
		if derr := json.NewDecoder(r.Body).Decode(&input); derr != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		doc, chunks, err = s.ingestor.IngestText(r.Context(), projectID, &input)
	}
	if err != nil {
		s.logger.Warn("ingest failed", zap.String("project_id", projectID), zap.Error(err))
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"document": doc,
		"chunks":   chunks,
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.storage.GetProject(r.Context(), projectID); err != nil {
		s.respondError(w, http.StatusNotFound, "project not found")
		return
	}
	docs, err := s.storage.ListDocumentsByProject(r.Context(), projectID)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	// Revision listings omit full content; fetch the document by id for it.
	type docSummary struct {
		ID         string `json:"id"`
		Version    string `json:"version"`
		ChunkCount int    `json:"chunk_count"`
		CreatedAt  string `json:"created_at"`
	}
	summaries := make([]docSummary, len(docs))
	for i, d := range docs {
		summaries[i] = docSummary{
			ID:         d.ID,
			Version:    d.Version,
			ChunkCount: d.ChunkCount,
			CreatedAt:  d.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": summaries})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.storage.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetChunks(w http.ResponseWriter, r *http.Request) {
	doc, err := s.storage.GetDocument(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	chunks := s.chunker.Chunk(doc.Content)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": doc.ID,
		"chunks":      chunks,
	})
}

// handleDiff compares two revisions of a project's requirements. The old and
// new query parameters name document ids; when omitted, the latest two
// revisions are compared.
func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := chi.URLParam(r, "id")
	oldID := r.URL.Query().Get("old")
	newID := r.URL.Query().Get("new")

	if oldID == "" || newID == "" {
		docs, err := s.storage.ListDocumentsByProject(ctx, projectID)
		if err != nil {
			s.logger.Error("list documents failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if len(docs) < 2 {
			s.respondError(w, http.StatusBadRequest, "project needs at least two revisions to diff")
			return
		}
		oldID = docs[len(docs)-2].ID
		newID = docs[len(docs)-1].ID
	}

	oldDoc, err := s.storage.GetDocument(ctx, oldID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", oldID))
		return
	}
	newDoc, err := s.storage.GetDocument(ctx, newID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("document %s not found", newID))
		return
	}
	if oldDoc.ProjectID != projectID || newDoc.ProjectID != projectID {
		s.respondError(w, http.StatusBadRequest, "documents belong to another project")
		return
	}

	changes := s.differ.Diff(s.chunker.Chunk(oldDoc.Content), s.chunker.Chunk(newDoc.Content))
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"old_document_id": oldDoc.ID,
		"new_document_id": newDoc.ID,
		"old_version":     oldDoc.Version,
		"new_version":     newDoc.Version,
		"changes":         changes,
	})
}

type retrieveRequest struct {
	DocumentID string `json:"document_id"`
	Query      string `json:"query"`
	K          int    `json:"k,omitempty"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.DocumentID == "" {
		s.respondError(w, http.StatusBadRequest, "document_id is required")
		return
	}
	doc, err := s.storage.GetDocument(r.Context(), req.DocumentID)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "document not found")
		return
	}
	chunks := retrieval.SelectTopChunks(s.chunker.Chunk(doc.Content), req.Query, req.K)
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": doc.ID,
		"chunks":      chunks,
	})
}

type planRequest struct {
	ProjectID  string `json:"project_id"`
	DocumentID string `json:"document_id,omitempty"`
	Text       string `json:"text,omitempty"`
	Version    string `json:"version,omitempty"`
	Context    string `json:"context,omitempty"`
}

// handleSubmitPlan enqueues a plan job and returns its id immediately. The
// caller supplies either the document text inline or the id of an ingested
// revision; the outcome is fetched by polling the job.
func (s *Server) handleSubmitPlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Text == "" && req.DocumentID != "" {
		doc, err := s.storage.GetDocument(r.Context(), req.DocumentID)
		if err != nil {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		if req.ProjectID == "" {
			req.ProjectID = doc.ProjectID
		}
		req.Text = doc.Content
		if req.Version == "" {
			req.Version = doc.Version
		}
	}

	job, err := s.worker.Submit(r.Context(), models.PlanJobPayload{
		ProjectID: req.ProjectID,
		Text:      req.Text,
		Version:   req.Version,
		Context:   req.Context,
	})
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.storage.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleGetBacklog(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.storage.GetProject(r.Context(), projectID); err != nil {
		s.respondError(w, http.StatusNotFound, "project not found")
		return
	}
	items, err := s.storage.ListBacklog(r.Context(), projectID)
	if err != nil {
		s.logger.Error("list backlog failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (s *Server) handleExportBacklog(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "id")
	if _, err := s.storage.GetProject(r.Context(), projectID); err != nil {
		s.respondError(w, http.StatusNotFound, "project not found")
		return
	}
	items, err := s.storage.ListBacklog(r.Context(), projectID)
	if err != nil {
		s.logger.Error("list backlog failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	format := r.URL.Query().Get("format")
	switch format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=backlog-%s.csv", projectID))
		if err := export.WriteCSV(w, items); err != nil {
			s.logger.Error("export csv failed", zap.Error(err))
		}
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=backlog-%s.xlsx", projectID))
		if err := export.WriteXLSX(w, items); err != nil {
			s.logger.Error("export xlsx failed", zap.Error(err))
		}
	default:
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectCount, err := s.storage.CountProjects(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	docCount, err := s.storage.CountDocuments(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jobCount, err := s.storage.CountJobs(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	queued, err := s.storage.CountQueuedJobs(ctx)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := map[string]interface{}{
		"projects":       projectCount,
		"documents":      docCount,
		"jobs":           jobCount,
		"queued_jobs":    queued,
		"worker_running": s.worker.Running(),
		"config": map[string]interface{}{
			"provider_type":       s.config.Provider.Type,
			"provider_model":      s.config.Provider.Model,
			"chunk_fallback_size": s.config.Planner.ChunkFallbackSize,
			"diff_threshold":      s.config.Planner.DiffThreshold,
			"retrieval_top_k":     s.config.Planner.RetrievalTopK,
			"database_path":       s.config.Storage.DatabasePath,
		},
	}
	if diskBytes, err := s.storage.DiskUsage(); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
