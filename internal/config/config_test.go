package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `debug: true`))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
	if cfg.Provider.Type != "openai" || cfg.Provider.Model != "gpt-4o-mini" {
		t.Errorf("provider defaults: %+v", cfg.Provider)
	}
	if cfg.Provider.APIKeyEnv != "OPENAI_API_KEY" || cfg.Provider.TimeoutSeconds != 120 {
		t.Errorf("provider defaults: %+v", cfg.Provider)
	}
	if cfg.Planner.ChunkFallbackSize != 1200 || cfg.Planner.DiffThreshold != 0.35 || cfg.Planner.RetrievalTopK != 4 {
		t.Errorf("planner defaults: %+v", cfg.Planner)
	}
}

func TestLoad_ExpandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
storage:
  database_path: "./data/keikaku.db"
intake:
  project_id: "p1"
  directories:
    - "./inbox"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	dir := filepath.Dir(path)
	if cfg.Storage.DatabasePath != filepath.Join(dir, "data/keikaku.db") {
		t.Errorf("database_path = %s", cfg.Storage.DatabasePath)
	}
	if len(cfg.Intake.Directories) != 1 || cfg.Intake.Directories[0] != filepath.Join(dir, "inbox") {
		t.Errorf("directories = %v", cfg.Intake.Directories)
	}
	if !cfg.Intake.RecursiveOrDefault() {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should error")
	}
	if _, err := Load(writeConfig(t, "server: [not a map]")); err == nil {
		t.Error("malformed yaml should error")
	}
}

func TestProviderConfig_ResolveAPIKey(t *testing.T) {
	p := &ProviderConfig{APIKey: "inline", APIKeyEnv: "KEIKAKU_TEST_KEY"}
	if p.ResolveAPIKey() != "inline" {
		t.Error("inline key should win")
	}

	t.Setenv("KEIKAKU_TEST_KEY", "from-env")
	p = &ProviderConfig{APIKeyEnv: "KEIKAKU_TEST_KEY"}
	if p.ResolveAPIKey() != "from-env" {
		t.Errorf("got %q", p.ResolveAPIKey())
	}
}
