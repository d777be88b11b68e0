package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Addr == "" || cfg.Storage != "memory" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.ProfilerEnabled {
		t.Fatalf("profiler must default to enabled")
	}
}

func TestApplyFileOverlays(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("addr: \":7777\"\nprofilerEnabled: false\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Config{Addr: ":9180", ProfilerEnabled: true, ConfigFile: path}
	next, err := cfg.Reload()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if next.Addr != ":7777" || next.ProfilerEnabled {
		t.Fatalf("overlay not applied: %+v", next)
	}
	// receiver untouched
	if cfg.Addr != ":9180" || !cfg.ProfilerEnabled {
		t.Fatalf("reload mutated receiver: %+v", cfg)
	}
}

func TestReloadBrokenFileKeepsPrevious(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(":::not yaml"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Config{Addr: ":9180", ConfigFile: path}
	next, err := cfg.Reload()
	if err == nil {
		t.Fatalf("expected parse error")
	}
	if next.Addr != ":9180" {
		t.Fatalf("broken reload must return previous config")
	}
}

func TestWatcherDeliversChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("profilerEnabled: true\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	changes := make(chan Config, 1)
	logger := zerolog.Nop()
	w, err := NewWatcher(Config{ConfigFile: path, ProfilerEnabled: true}, 50*time.Millisecond, &logger, func(c Config) {
		select {
		case changes <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	w.Start()
	defer w.Stop()

	if err := os.WriteFile(path, []byte("profilerEnabled: false\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}

	select {
	case got := <-changes:
		if got.ProfilerEnabled {
			t.Fatalf("change not applied: %+v", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("watcher never fired")
	}
}
