package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"smartnotes/internal/types"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", filepath.Join(t.TempDir(), "home"))
	t.Setenv("SMARTNOTES_HOME", "")
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.BackendMode() != types.BackendRemote {
		t.Fatalf("unexpected backend: %q", cfg.BackendMode())
	}
	if cfg.APIBaseURL() != "http://localhost:8000" {
		t.Fatalf("unexpected api url: %q", cfg.APIBaseURL())
	}
	if cfg.QuietWindow() != 2*time.Second {
		t.Fatalf("unexpected quiet window: %v", cfg.QuietWindow())
	}
	if cfg.DefaultFolder() != "My notes" {
		t.Fatalf("unexpected default folder: %q", cfg.DefaultFolder())
	}
}

func TestLoadFromTOML(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SMARTNOTES_HOME", home)
	t.Setenv("SMARTNOTES_API_URL", "")
	content := []byte(`
[backend]
mode = "local"

[api]
base_url = "127.0.0.1:9000/"
timeout = "3s"

[local]
db_path = "data/notes.db"

[autosave]
quiet_window = "500"

[notes]
default_folder = ""
`)
	path := filepath.Join(home, "config.toml")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.BackendMode() != types.BackendLocal {
		t.Fatalf("unexpected backend: %q", cfg.BackendMode())
	}
	if cfg.APIBaseURL() != "http://127.0.0.1:9000" {
		t.Fatalf("unexpected api url: %q", cfg.APIBaseURL())
	}
	if cfg.Timeout() != 3*time.Second {
		t.Fatalf("unexpected timeout: %v", cfg.Timeout())
	}
	if cfg.QuietWindow() != 500*time.Millisecond {
		t.Fatalf("unexpected quiet window: %v", cfg.QuietWindow())
	}
	dbPath, err := cfg.LocalDBPath()
	if err != nil {
		t.Fatalf("LocalDBPath: %v", err)
	}
	if want := filepath.Join(home, "data", "notes.db"); dbPath != want {
		t.Fatalf("unexpected db path: got=%q want=%q", dbPath, want)
	}
	if cfg.DefaultFolder() != "" {
		t.Fatalf("expected default folder disabled, got %q", cfg.DefaultFolder())
	}
}

func TestEnvOverrides(t *testing.T) {
	cfg := Default()
	cfg.applyEnv(func(key string) string {
		switch key {
		case "SMARTNOTES_BACKEND":
			return "LOCAL"
		case "SMARTNOTES_LOG_LEVEL":
			return "debug"
		}
		return ""
	})
	if cfg.BackendMode() != types.BackendLocal || cfg.LogLevel() != "debug" {
		t.Fatalf("env overrides not applied: %#v", cfg)
	}
}

func TestDataDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SMARTNOTES_HOME", dir)
	path, err := SessionPath()
	if err != nil {
		t.Fatalf("SessionPath: %v", err)
	}
	if path != filepath.Join(dir, "session.json") {
		t.Fatalf("unexpected session path %q", path)
	}
}
