package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hyperjump/keikaku/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_ProjectsAndDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project := &models.Project{ID: "p1", Name: "Facturación"}
	if err := store.CreateProject(ctx, project); err != nil {
		t.Fatal(err)
	}
	if project.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetProject(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Facturación" {
		t.Errorf("got %+v", got)
	}

	docs := []*models.Document{
		{ID: "d1", ProjectID: "p1", Version: "v1", Content: "REQUISITOS\nUno.", ChunkCount: 1},
		{ID: "d2", ProjectID: "p1", Version: "v2", Content: "REQUISITOS\nUno y dos.", ChunkCount: 1},
	}
	for _, doc := range docs {
		if err := store.CreateDocument(ctx, doc); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.ListDocumentsByProject(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 revisions, got %d", len(list))
	}
	if list[0].Version != "v1" || list[1].Version != "v2" {
		t.Errorf("revisions must be oldest first: %s, %s", list[0].Version, list[1].Version)
	}

	if _, err := store.GetProject(ctx, "missing"); err == nil {
		t.Error("expected error for missing project")
	}
	if _, err := store.GetDocument(ctx, "missing"); err == nil {
		t.Error("expected error for missing document")
	}
}

func TestSQLiteStorage_ReplaceBacklog(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_ = store.CreateProject(ctx, &models.Project{ID: "p1", Name: "P"})

	first := []models.BacklogItem{
		{ID: "b1", Title: "Alta de usuarios", Priority: "alta"},
		{ID: "b2", Title: "Exportar reportes", Priority: "media"},
	}
	if err := store.ReplaceBacklog(ctx, "p1", first); err != nil {
		t.Fatal(err)
	}

	second := []models.BacklogItem{{ID: "b3", Title: "Pasarela de pagos", Estimate: "5d"}}
	if err := store.ReplaceBacklog(ctx, "p1", second); err != nil {
		t.Fatal(err)
	}

	items, err := store.ListBacklog(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].ID != "b3" {
		t.Errorf("replace should swap items, got %+v", items)
	}
	if items[0].ProjectID != "p1" {
		t.Errorf("project id not stamped: %+v", items[0])
	}
}

func TestSQLiteStorage_JobLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &models.PlanJob{
		ID:        "j1",
		ProjectID: "p1",
		Payload:   models.PlanJobPayload{ProjectID: "p1", Text: "REQUISITOS\nUno.", Version: "v1"},
	}
	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	if job.Status != models.JobQueued {
		t.Errorf("new job status = %s", job.Status)
	}

	claimed, err := store.ClaimNextQueuedJob(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if claimed == nil || claimed.ID != "j1" {
		t.Fatalf("claimed = %+v", claimed)
	}
	if claimed.Status != models.JobProcessing || claimed.StartedAt == nil {
		t.Errorf("claim must stamp processing+started_at: %+v", claimed)
	}
	if claimed.Payload.Text != "REQUISITOS\nUno." {
		t.Errorf("payload round-trip failed: %+v", claimed.Payload)
	}

	// Queue is now empty.
	if next, err := store.ClaimNextQueuedJob(ctx); err != nil || next != nil {
		t.Errorf("expected empty queue, got %v, %v", next, err)
	}

	result := &models.PlanResult{Items: []models.BacklogItem{{ID: "b1", Title: "Login"}}}
	if err := store.CompleteJob(ctx, "j1", result); err != nil {
		t.Fatal(err)
	}

	done, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != models.JobDone || done.Result == nil || done.Error != "" {
		t.Errorf("done job = %+v", done)
	}
	if done.FinishedAt == nil || done.StartedAt == nil {
		t.Fatal("timestamps missing")
	}
	if done.FinishedAt.Before(*done.StartedAt) || done.StartedAt.Before(done.CreatedAt) {
		t.Error("expected finished_at >= started_at >= created_at")
	}
	if len(done.Result.Items) != 1 || done.Result.Items[0].Title != "Login" {
		t.Errorf("result round-trip failed: %+v", done.Result)
	}

	// Terminal states are final: completing again must fail.
	if err := store.CompleteJob(ctx, "j1", result); err == nil {
		t.Error("completing a done job should fail")
	}
	if err := store.FailJob(ctx, "j1", "nope"); err == nil {
		t.Error("failing a done job should fail")
	}
}

func TestSQLiteStorage_FailJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	job := &models.PlanJob{ID: "j1", ProjectID: "p1", Payload: models.PlanJobPayload{ProjectID: "p1", Text: "x"}}
	_ = store.CreateJob(ctx, job)
	if _, err := store.ClaimNextQueuedJob(ctx); err != nil {
		t.Fatal(err)
	}
	if err := store.FailJob(ctx, "j1", "provider unavailable"); err != nil {
		t.Fatal(err)
	}

	failed, err := store.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if failed.Status != models.JobError || failed.Error != "provider unavailable" || failed.Result != nil {
		t.Errorf("failed job = %+v", failed)
	}
	if failed.FinishedAt == nil {
		t.Error("finished_at missing")
	}
}

func TestSQLiteStorage_ClaimOldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"j1", "j2", "j3"} {
		job := &models.PlanJob{ID: id, ProjectID: "p1", Payload: models.PlanJobPayload{ProjectID: "p1", Text: "x"}}
		if err := store.CreateJob(ctx, job); err != nil {
			t.Fatal(err)
		}
	}
	queued, err := store.CountQueuedJobs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if queued != 3 {
		t.Fatalf("queued = %d", queued)
	}

	for _, want := range []string{"j1", "j2", "j3"} {
		claimed, err := store.ClaimNextQueuedJob(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if claimed == nil || claimed.ID != want {
			t.Fatalf("claim order broken: got %+v, want %s", claimed, want)
		}
		_ = store.CompleteJob(ctx, claimed.ID, &models.PlanResult{})
	}
}
