package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Broker.Kind != "memory" {
		t.Errorf("expected default broker 'memory', got %q", cfg.Broker.Kind)
	}

	if cfg.Broker.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("unexpected default redis url %q", cfg.Broker.RedisURL)
	}

	if cfg.Worker.Queue != "task_queue" {
		t.Errorf("expected default queue 'task_queue', got %q", cfg.Worker.Queue)
	}

	if cfg.Worker.CallbackTimeout != 10*time.Second {
		t.Errorf("expected callback timeout 10s, got %v", cfg.Worker.CallbackTimeout)
	}

	if cfg.Delegation.MaxDepth != 5 {
		t.Errorf("expected max delegation depth 5, got %d", cfg.Delegation.MaxDepth)
	}
}

func TestLoadFromPath(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
anthropic:
  api_key: test-key
  model: claude-3-5-haiku-20241022
broker:
  kind: redis
  redis_url: redis://queue.internal:6379/2
provider:
  kind: anthropic
store:
  sqlite_path: /var/lib/crewd/audit.db
worker:
  queue: priority_tasks
  callback_timeout: 30s
delegation:
  max_depth: 3
personas:
  dir: /etc/crewd/personas
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Anthropic.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.Anthropic.APIKey)
	}

	if cfg.Anthropic.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("unexpected model %q", cfg.Anthropic.Model)
	}

	if cfg.Broker.Kind != "redis" || cfg.Broker.RedisURL != "redis://queue.internal:6379/2" {
		t.Errorf("unexpected broker config: %+v", cfg.Broker)
	}

	if cfg.Provider.Kind != "anthropic" {
		t.Errorf("expected provider 'anthropic', got %q", cfg.Provider.Kind)
	}

	if cfg.Store.SQLitePath != "/var/lib/crewd/audit.db" {
		t.Errorf("unexpected sqlite path %q", cfg.Store.SQLitePath)
	}

	if cfg.Worker.Queue != "priority_tasks" {
		t.Errorf("expected queue 'priority_tasks', got %q", cfg.Worker.Queue)
	}

	if cfg.Worker.CallbackTimeout != 30*time.Second {
		t.Errorf("expected callback timeout 30s, got %v", cfg.Worker.CallbackTimeout)
	}

	if cfg.Delegation.MaxDepth != 3 {
		t.Errorf("expected max depth 3, got %d", cfg.Delegation.MaxDepth)
	}

	if cfg.Personas.Dir != "/etc/crewd/personas" {
		t.Errorf("unexpected personas dir %q", cfg.Personas.Dir)
	}
}

func TestLoadFromPathDefaults(t *testing.T) {
	// A sparse file keeps defaults for everything it omits.
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("broker:\n  kind: redis\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Broker.Kind != "redis" {
		t.Errorf("expected broker 'redis', got %q", cfg.Broker.Kind)
	}

	if cfg.Worker.Queue != "task_queue" {
		t.Errorf("expected default queue, got %q", cfg.Worker.Queue)
	}

	if cfg.Delegation.MaxDepth != 5 {
		t.Errorf("expected default max depth 5, got %d", cfg.Delegation.MaxDepth)
	}
}

func TestExpandEnv(t *testing.T) {
	// Set environment variable
	os.Setenv("TEST_VAR", "expanded-value")
	defer os.Unsetenv("TEST_VAR")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded-value" {
		t.Errorf("expected 'expanded-value', got %q", result)
	}

	result = expandEnv("prefix-${TEST_VAR}-suffix")
	if result != "prefix-expanded-value-suffix" {
		t.Errorf("expected 'prefix-expanded-value-suffix', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	// Test with XDG_CONFIG_HOME set
	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	defer os.Unsetenv("XDG_CONFIG_HOME")

	dir := getUserConfigDir()
	expected := "/custom/config/crewd"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}
