// Package main is the Keikaku CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/keikaku/internal/chunker"
	"github.com/hyperjump/keikaku/internal/cli"
	"github.com/hyperjump/keikaku/internal/config"
	"github.com/hyperjump/keikaku/internal/differ"
	"github.com/hyperjump/keikaku/internal/extract"
	"github.com/hyperjump/keikaku/internal/ingest"
	"github.com/hyperjump/keikaku/internal/jobs"
	"github.com/hyperjump/keikaku/internal/models"
	"github.com/hyperjump/keikaku/internal/planner"
	"github.com/hyperjump/keikaku/internal/provider"
	"github.com/hyperjump/keikaku/internal/server"
	"github.com/hyperjump/keikaku/internal/storage"
	"github.com/hyperjump/keikaku/internal/watcher"
	"github.com/hyperjump/keikaku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/keikaku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used instead.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "diff":
		runDiff()
	case "plan":
		runPlan()
	case "backlog":
		runBacklog()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("keikaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`Usage: keikaku <command> [flags]

Commands:
  server    Run the HTTP API server (with optional intake directory watching)
  ingest    Store requirement documents as project revisions
  diff      Compare two revisions of a project's requirements
  plan      Generate a backlog from a revision and wait for the result
  backlog   Print a project's current backlog
  status    Show database counts and disk usage
  version   Print the version

Run "keikaku <command> -h" for command flags.
`)
}

// components holds the wired application services shared by the subcommands.
type components struct {
	Storage  storage.Storage
	Chunker  *chunker.Chunker
	Differ   *differ.Differ
	Ingestor *ingest.Ingestor
	Worker   *jobs.Worker
}

func (c *components) Close() {
	_ = c.Storage.Close()
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	gen, err := buildGenerator(&cfg.Provider)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	c := chunker.NewChunker(cfg.Planner.ChunkFallbackSize)
	p := planner.New(gen,
		planner.WithChunker(c),
		planner.WithTopK(cfg.Planner.RetrievalTopK))

	return &components{
		Storage:  store,
		Chunker:  c,
		Differ:   differ.NewDiffer(cfg.Planner.DiffThreshold),
		Ingestor: ingest.NewIngestor(store, c, extract.NewExtractor(), ingest.WithLogger(logger)),
		Worker:   jobs.NewWorker(ctx, store, p, jobs.WithLogger(logger)),
	}, nil
}

func buildGenerator(cfg *config.ProviderConfig) (provider.Generator, error) {
	switch cfg.Type {
	case "static":
		// Offline mode: every plan yields the same placeholder backlog.
		return &provider.Static{Response: `[{"title": "Revisar documento de requisitos", "priority": "media"}]`}, nil
	case "openai", "":
		return provider.NewOpenAIGenerator(provider.OpenAIConfig{
			APIKey:  cfg.ResolveAPIKey(),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

func mustSetup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, *components, context.CancelFunc) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))

	ctx, cancel := context.WithCancel(context.Background())
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	return cfg, logger, comps, cancel
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, comps, cancel := mustSetup(*configPath, *debug)
	defer logger.Sync()
	defer comps.Close()
	defer cancel()

	if len(cfg.Intake.Directories) > 0 && cfg.Intake.ProjectID != "" {
		projectID := cfg.Intake.ProjectID
		watchSvc := watcher.NewWatcher(
			cfg.Intake.Directories,
			cfg.Intake.RecursiveOrDefault(),
			func(path string) {
				if _, _, err := comps.Ingestor.IngestFile(context.Background(), projectID, path); err != nil {
					logger.Warn("intake ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(context.Background()); err != nil {
			logger.Fatal("Failed to start intake watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		watchSvc.SyncExistingFiles()
	}

	// Resume jobs left queued by a previous run.
	comps.Worker.Start()

	srv := server.NewServer(comps.Storage, comps.Ingestor, comps.Chunker, comps.Differ, comps.Worker, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	projectID := fs.String("project", "", "project id (required)")
	projectName := fs.String("create-project", "", "create a project with this name and ingest into it")
	_ = fs.Parse(os.Args[2:])

	if *projectID == "" && *projectName == "" {
		fmt.Println("either -project or -create-project is required")
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Println("Usage: keikaku ingest -project <id> <file> [file...]")
		os.Exit(1)
	}

	_, logger, comps, cancel := mustSetup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()
	defer cancel()
	ctx := context.Background()

	if *projectName != "" {
		project := &models.Project{ID: newProjectID(), Name: *projectName}
		if err := comps.Storage.CreateProject(ctx, project); err != nil {
			logger.Fatal("create project failed", zap.Error(err))
		}
		fmt.Printf("Created project %s (%s)\n", project.ID, project.Name)
		*projectID = project.ID
	}

	for _, path := range fs.Args() {
		doc, chunks, err := comps.Ingestor.IngestFile(ctx, *projectID, path)
		if err != nil {
			logger.Fatal("ingest failed", zap.String("path", path), zap.Error(err))
		}
		fmt.Printf("Ingested %s as revision %s (%d chunks, document %s)\n",
			path, doc.Version, len(chunks), doc.ID)
	}
}

func runDiff() {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	projectID := fs.String("project", "", "project id (required)")
	oldID := fs.String("old", "", "old document id (default: second-latest revision)")
	newID := fs.String("new", "", "new document id (default: latest revision)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *projectID == "" {
		fmt.Println("-project is required")
		os.Exit(1)
	}

	_, logger, comps, cancel := mustSetup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()
	defer cancel()
	ctx := context.Background()

	if *oldID == "" || *newID == "" {
		docs, err := comps.Storage.ListDocumentsByProject(ctx, *projectID)
		if err != nil {
			logger.Fatal("list revisions failed", zap.Error(err))
		}
		if len(docs) < 2 {
			fmt.Println("Project needs at least two revisions to diff.")
			os.Exit(1)
		}
		*oldID = docs[len(docs)-2].ID
		*newID = docs[len(docs)-1].ID
	}

	oldDoc, err := comps.Storage.GetDocument(ctx, *oldID)
	if err != nil {
		logger.Fatal("load old revision failed", zap.Error(err))
	}
	newDoc, err := comps.Storage.GetDocument(ctx, *newID)
	if err != nil {
		logger.Fatal("load new revision failed", zap.Error(err))
	}

	fmt.Printf("Comparing %s -> %s\n", oldDoc.Version, newDoc.Version)
	changes := comps.Differ.Diff(comps.Chunker.Chunk(oldDoc.Content), comps.Chunker.Chunk(newDoc.Content))
	if err := cli.WriteChangeRecords(os.Stdout, changes, cli.OutputFormat(*output)); err != nil {
		logger.Fatal("write output failed", zap.Error(err))
	}
}

func runPlan() {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	projectID := fs.String("project", "", "project id (required)")
	documentID := fs.String("document", "", "document id (default: latest revision)")
	focus := fs.String("context", "", "optional focus query for retrieval")
	output := fs.String("output", "text", "output format: text or json")
	timeout := fs.Duration("timeout", 5*time.Minute, "how long to wait for the job")
	_ = fs.Parse(os.Args[2:])

	if *projectID == "" {
		fmt.Println("-project is required")
		os.Exit(1)
	}

	_, logger, comps, cancel := mustSetup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()
	defer cancel()
	ctx := context.Background()

	var doc *models.Document
	var err error
	if *documentID != "" {
		doc, err = comps.Storage.GetDocument(ctx, *documentID)
	} else {
		var docs []*models.Document
		docs, err = comps.Storage.ListDocumentsByProject(ctx, *projectID)
		if err == nil {
			if len(docs) == 0 {
				fmt.Println("Project has no revisions; ingest a document first.")
				os.Exit(1)
			}
			doc = docs[len(docs)-1]
		}
	}
	if err != nil {
		logger.Fatal("load revision failed", zap.Error(err))
	}

	job, err := comps.Worker.Submit(ctx, models.PlanJobPayload{
		ProjectID: *projectID,
		Text:      doc.Content,
		Version:   doc.Version,
		Context:   *focus,
	})
	if err != nil {
		logger.Fatal("submit plan failed", zap.Error(err))
	}
	fmt.Printf("Plan job %s queued for revision %s...\n", job.ID, doc.Version)

	deadline := time.Now().Add(*timeout)
	for {
		current, err := comps.Storage.GetJob(ctx, job.ID)
		if err != nil {
			logger.Fatal("poll job failed", zap.Error(err))
		}
		if current.Status.Terminal() {
			if current.Status == models.JobError {
				fmt.Printf("Plan failed: %s\n", current.Error)
				os.Exit(1)
			}
			if err := cli.WriteBacklog(os.Stdout, current.Result.Items, cli.OutputFormat(*output)); err != nil {
				logger.Fatal("write output failed", zap.Error(err))
			}
			return
		}
		if time.Now().After(deadline) {
			fmt.Printf("Timed out waiting for job %s (still %s).\n", job.ID, current.Status)
			os.Exit(1)
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func runBacklog() {
	fs := flag.NewFlagSet("backlog", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	projectID := fs.String("project", "", "project id (required)")
	output := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *projectID == "" {
		fmt.Println("-project is required")
		os.Exit(1)
	}

	_, logger, comps, cancel := mustSetup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()
	defer cancel()

	items, err := comps.Storage.ListBacklog(context.Background(), *projectID)
	if err != nil {
		logger.Fatal("list backlog failed", zap.Error(err))
	}
	if err := cli.WriteBacklog(os.Stdout, items, cli.OutputFormat(*output)); err != nil {
		logger.Fatal("write output failed", zap.Error(err))
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, comps, cancel := mustSetup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()
	defer cancel()
	ctx := context.Background()

	projects, err := comps.Storage.CountProjects(ctx)
	if err != nil {
		logger.Fatal("count projects failed", zap.Error(err))
	}
	documents, err := comps.Storage.CountDocuments(ctx)
	if err != nil {
		logger.Fatal("count documents failed", zap.Error(err))
	}
	jobCount, err := comps.Storage.CountJobs(ctx)
	if err != nil {
		logger.Fatal("count jobs failed", zap.Error(err))
	}
	queued, err := comps.Storage.CountQueuedJobs(ctx)
	if err != nil {
		logger.Fatal("count queued jobs failed", zap.Error(err))
	}

	fmt.Printf("Projects:    %d\n", projects)
	fmt.Printf("Documents:   %d\n", documents)
	fmt.Printf("Plan jobs:   %d (%d queued)\n", jobCount, queued)
	fmt.Printf("Database:    %s\n", cfg.Storage.DatabasePath)
	if diskBytes, err := comps.Storage.DiskUsage(); err == nil {
		fmt.Printf("Disk usage:  %.1f MiB\n", float64(diskBytes)/(1024*1024))
	}
	fmt.Printf("Provider:    %s (%s)\n", cfg.Provider.Type, cfg.Provider.Model)
}

func newProjectID() string {
	return uuid.New().String()
}
