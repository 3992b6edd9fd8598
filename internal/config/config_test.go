package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_MinimalConfig(t *testing.T) {
	path := writeConfig(t, `
plugin:
  path: /tmp/plug.so
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Plugin.Path != "/tmp/plug.so" {
		t.Fatalf("expected plugin.path=/tmp/plug.so, got %s", cfg.Plugin.Path)
	}
	if time.Duration(cfg.Plugin.PollInterval) != time.Second {
		t.Fatalf("expected default poll interval of 1s, got %v", time.Duration(cfg.Plugin.PollInterval))
	}
}

func TestLoad_MissingPluginPath(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error when plugin.path is missing")
	}
}

func TestLoad_WatchPathsSingleAndList(t *testing.T) {
	single := writeConfig(t, `
plugin:
  path: /tmp/plug.so
watch:
  paths: /src/main.c
  command: ["make"]
`)
	cfg, err := Load(single)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Watch.Paths) != 1 || cfg.Watch.Paths[0] != "/src/main.c" {
		t.Fatalf("expected single-path watch.paths, got %v", cfg.Watch.Paths)
	}

	list := writeConfig(t, `
plugin:
  path: /tmp/plug.so
watch:
  paths:
    - /src/main.c
    - /src/util.c
  command: ["make"]
  interval: 250ms
`)
	cfg, err = Load(list)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Watch.Paths) != 2 {
		t.Fatalf("expected two watch paths, got %v", cfg.Watch.Paths)
	}
	if time.Duration(cfg.Watch.Interval) != 250*time.Millisecond {
		t.Fatalf("expected watch interval=250ms, got %v", time.Duration(cfg.Watch.Interval))
	}
}

func TestLoad_UnlockSettings(t *testing.T) {
	path := writeConfig(t, `
plugin:
  path: /tmp/plug.so
  symbol_file: /tmp/plug.pdb
watch:
  unlock:
    enabled: true
    delete: true
    single_thread: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Watch.Unlock.Enabled || !cfg.Watch.Unlock.Delete || !cfg.Watch.Unlock.SingleThread {
		t.Fatalf("expected all unlock settings true, got %+v", cfg.Watch.Unlock)
	}
	if cfg.Plugin.SymbolFile != "/tmp/plug.pdb" {
		t.Fatalf("expected symbol_file=/tmp/plug.pdb, got %s", cfg.Plugin.SymbolFile)
	}
}
