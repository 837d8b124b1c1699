package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/keikaku/internal/models"
	"github.com/hyperjump/keikaku/internal/planner"
	"github.com/hyperjump/keikaku/internal/provider"
	"github.com/hyperjump/keikaku/internal/storage"
)

const sampleText = "REQUISITOS\nEl sistema debe loguear usuarios.\n\nPAGOS\nLa pasarela de pagos procesa tarjetas."

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func waitTerminal(t *testing.T, store storage.Storage, id string) *models.PlanJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), id)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal state", id)
	return nil
}

func TestWorker_SubmitAndComplete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	_ = store.CreateProject(ctx, &models.Project{ID: "p1", Name: "P"})

	gen := &provider.Static{Response: `[{"title": "Implementar login", "priority": "alta"}]`}
	w := NewWorker(ctx, store, planner.New(gen))

	job, err := w.Submit(ctx, models.PlanJobPayload{ProjectID: "p1", Text: sampleText, Version: "v1"})
	if err != nil {
		t.Fatal(err)
	}
	if job.Status != models.JobQueued {
		t.Errorf("submitted job status = %s", job.Status)
	}

	done := waitTerminal(t, store, job.ID)
	if done.Status != models.JobDone {
		t.Fatalf("job = %+v", done)
	}
	if done.Result == nil || len(done.Result.Items) != 1 || done.Error != "" {
		t.Errorf("result = %+v, error = %q", done.Result, done.Error)
	}
	if done.StartedAt == nil || done.FinishedAt == nil {
		t.Fatal("timestamps missing")
	}
	if done.FinishedAt.Before(*done.StartedAt) || done.StartedAt.Before(done.CreatedAt) {
		t.Error("expected finished_at >= started_at >= created_at")
	}

	// A successful plan replaces the project backlog.
	items, err := store.ListBacklog(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].Title != "Implementar login" {
		t.Errorf("backlog = %+v", items)
	}
}

func TestWorker_ProviderFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gen := &provider.Static{Err: errors.New("provider unavailable")}
	w := NewWorker(ctx, store, planner.New(gen))

	job, err := w.Submit(ctx, models.PlanJobPayload{ProjectID: "p1", Text: sampleText})
	if err != nil {
		t.Fatal(err)
	}

	failed := waitTerminal(t, store, job.ID)
	if failed.Status != models.JobError || failed.Result != nil {
		t.Fatalf("job = %+v", failed)
	}
	if failed.Error == "" {
		t.Error("error message missing")
	}
}

func TestWorker_MalformedResponseFailsJob(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gen := &provider.Static{Response: "lo siento, no puedo generar un backlog"}
	w := NewWorker(ctx, store, planner.New(gen))

	job, err := w.Submit(ctx, models.PlanJobPayload{ProjectID: "p1", Text: sampleText})
	if err != nil {
		t.Fatal(err)
	}
	if failed := waitTerminal(t, store, job.ID); failed.Status != models.JobError {
		t.Errorf("job = %+v", failed)
	}
}

func TestWorker_RejectsInvalidPayload(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	w := NewWorker(ctx, store, planner.New(&provider.Static{Response: "[]"}))

	if _, err := w.Submit(ctx, models.PlanJobPayload{ProjectID: "p1", Text: "   "}); err == nil {
		t.Error("blank text must be rejected synchronously")
	}
	if _, err := w.Submit(ctx, models.PlanJobPayload{Text: "algo"}); err == nil {
		t.Error("missing project must be rejected synchronously")
	}
	if n, _ := store.CountQueuedJobs(ctx); n != 0 {
		t.Errorf("invalid payloads must never enter the queue, found %d", n)
	}
}

// slowGenerator tracks concurrent Generate calls.
type slowGenerator struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (g *slowGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		max := g.maxSeen.Load()
		if n <= max || g.maxSeen.CompareAndSwap(max, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	return `[{"title": "tarea"}]`, nil
}

func TestWorker_SingleFlight(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gen := &slowGenerator{}
	w := NewWorker(ctx, store, planner.New(gen))

	var ids []string
	for i := 0; i < 4; i++ {
		job, err := w.Submit(ctx, models.PlanJobPayload{
			ProjectID: "p1",
			Text:      sampleText,
			Version:   fmt.Sprintf("v%d", i+1),
		})
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, job.ID)
	}
	// Redundant starts while the loop is active must be no-ops.
	w.Start()
	w.Start()

	for _, id := range ids {
		if job := waitTerminal(t, store, id); job.Status != models.JobDone {
			t.Errorf("job %s = %+v", id, job)
		}
	}
	if max := gen.maxSeen.Load(); max != 1 {
		t.Errorf("observed %d concurrent generations, want 1", max)
	}
}

func TestWorker_RestartsAfterDrain(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	gen := &provider.Static{Response: `[{"title": "tarea"}]`}
	w := NewWorker(ctx, store, planner.New(gen))

	first, err := w.Submit(ctx, models.PlanJobPayload{ProjectID: "p1", Text: sampleText})
	if err != nil {
		t.Fatal(err)
	}
	waitTerminal(t, store, first.ID)

	// Let the drained loop exit before the next submission.
	deadline := time.Now().Add(2 * time.Second)
	for w.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	second, err := w.Submit(ctx, models.PlanJobPayload{ProjectID: "p1", Text: sampleText})
	if err != nil {
		t.Fatal(err)
	}
	if job := waitTerminal(t, store, second.ID); job.Status != models.JobDone {
		t.Errorf("job after restart = %+v", job)
	}
}
