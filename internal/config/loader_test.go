package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gav.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	// WriteFile is subject to umask; force the mode under test.
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("Failed to chmod test config: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(Options{Path: filepath.Join(t.TempDir(), "absent.yaml")})
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Context.CacheMaxEntries != 256 {
		t.Errorf("Context.CacheMaxEntries = %d, want 256", cfg.Context.CacheMaxEntries)
	}
	if cfg.Hooks.Path != ".gav/hooks.yaml" {
		t.Errorf("Hooks.Path = %q, want .gav/hooks.yaml", cfg.Hooks.Path)
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, `context:
  cache_ttl: 30s
  cache_max_entries: 10
  estimator: tiktoken
hooks:
  path: hooks.toml
  max_parallel: 2
verify:
  lint:
    command: "golangci-lint run {file}"
    project_args: "./..."
  tool_aliases:
    apply_patch: edit
server:
  port: 8088
`, 0600)

	cfg, err := Load(Options{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Context.CacheTTL.Duration() != 30*time.Second {
		t.Errorf("Context.CacheTTL = %v, want 30s", cfg.Context.CacheTTL.Duration())
	}
	if cfg.Context.CacheMaxEntries != 10 {
		t.Errorf("Context.CacheMaxEntries = %d, want 10", cfg.Context.CacheMaxEntries)
	}
	if cfg.Context.Estimator != "tiktoken" {
		t.Errorf("Context.Estimator = %q, want tiktoken", cfg.Context.Estimator)
	}
	if cfg.Hooks.MaxParallel != 2 {
		t.Errorf("Hooks.MaxParallel = %d, want 2", cfg.Hooks.MaxParallel)
	}
	if cfg.Verify.Lint.Command != "golangci-lint run {file}" {
		t.Errorf("Verify.Lint.Command = %q", cfg.Verify.Lint.Command)
	}
	if cfg.Verify.ToolAliases["apply_patch"] != "edit" {
		t.Errorf("Verify.ToolAliases = %v, want apply_patch=edit", cfg.Verify.ToolAliases)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("Server.Port = %d, want 8088", cfg.Server.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Context.SnippetBytes != 4096 {
		t.Errorf("Context.SnippetBytes = %d, want 4096", cfg.Context.SnippetBytes)
	}
	if !cfg.Context.Git {
		t.Error("Context.Git = false, want default true")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "hooks:\n  max_parallel: 2\n", 0600)
	t.Setenv("GAV_HOOKS_MAX_PARALLEL", "8")
	t.Setenv("GAV_CONTEXT_CACHE_TTL", "1m")

	cfg, err := Load(Options{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Hooks.MaxParallel != 8 {
		t.Errorf("Hooks.MaxParallel = %d, want 8 from env", cfg.Hooks.MaxParallel)
	}
	if cfg.Context.CacheTTL.Duration() != time.Minute {
		t.Errorf("Context.CacheTTL = %v, want 1m from env", cfg.Context.CacheTTL.Duration())
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dotenv := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(dotenv, []byte("GAV_SERVER_PORT=7070\n"), 0600); err != nil {
		t.Fatalf("Failed to write dotenv: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("GAV_SERVER_PORT") })

	cfg, err := Load(Options{DotEnv: dotenv})
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Server.Port = %d, want 7070 from dotenv", cfg.Server.Port)
	}
}

func TestLoad_MissingDotEnvIgnored(t *testing.T) {
	if _, err := Load(Options{DotEnv: filepath.Join(t.TempDir(), ".env")}); err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
}

func TestLoad_RejectsWorldWritable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	path := writeConfig(t, "server:\n  port: 8088\n", 0666)

	if _, err := Load(Options{Path: path}); err == nil {
		t.Fatal("Load() error = nil, want permission error")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, "context:\n  estimator: bogus\n", 0600)

	if _, err := Load(Options{Path: path}); err == nil {
		t.Fatal("Load() error = nil, want validation error")
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"GAV_CONTEXT_CACHE_TTL":  "context.cache_ttl",
		"GAV_SERVER_PORT":        "server.port",
		"GAV_HOOKS_MAX_PARALLEL": "hooks.max_parallel",
		"GAV_DEBUG":              "debug",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
