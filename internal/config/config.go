// Package config provides configuration loading for gav.
//
// Configuration is layered: built-in defaults, an optional YAML file, an
// optional dotenv file, then GAV_* environment variables.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/gav/internal/logging"
	"github.com/fyrsmithlabs/gav/internal/telemetry"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config holds the complete gav configuration.
type Config struct {
	Logging   logging.Config   `koanf:"logging"`
	Telemetry telemetry.Config `koanf:"telemetry"`
	Context   ContextConfig    `koanf:"context"`
	Hooks     HooksConfig      `koanf:"hooks"`
	Verify    VerifyConfig     `koanf:"verify"`
	Secrets   SecretsConfig    `koanf:"secrets"`
	Server    ServerConfig     `koanf:"server"`
}

// ContextConfig configures context gathering and the context cache.
type ContextConfig struct {
	CacheTTL        Duration `koanf:"cache_ttl"`
	CacheMaxEntries int      `koanf:"cache_max_entries"`

	// Estimator selects the token estimator: "heuristic" or "tiktoken".
	Estimator string `koanf:"estimator"`
	Encoding  string `koanf:"encoding"`

	WorkspaceRoot    string   `koanf:"workspace_root"`
	MaxFileBytes     int64    `koanf:"max_file_bytes"`
	SnippetBytes     int      `koanf:"snippet_bytes"`
	MaxCandidates    int      `koanf:"max_candidates"`
	IgnoreFiles      []string `koanf:"ignore_files"`
	FallbackExcludes []string `koanf:"fallback_excludes"`

	// Git enables the worktree-status provider when the workspace is a repository.
	Git bool `koanf:"git"`
}

// HooksConfig configures the hook execution engine.
type HooksConfig struct {
	Path        string `koanf:"path"`
	Watch       bool   `koanf:"watch"`
	MaxParallel int    `koanf:"max_parallel"`
	Shell       string `koanf:"shell"`
}

// VerifyConfig configures static checks run after mutating and exec tool calls.
type VerifyConfig struct {
	Lint  CheckConfig `koanf:"lint"`
	Types CheckConfig `koanf:"types"`
	Tests CheckConfig `koanf:"tests"`

	CheckTimeout     Duration `koanf:"check_timeout"`
	MaxFeedbackBytes int      `koanf:"max_feedback_bytes"`

	// ToolAliases maps additional tool names onto operation kinds
	// (write, edit, delete, commit, submit, read, search, exec, unscoped).
	ToolAliases map[string]string `koanf:"tool_aliases"`
}

// CheckConfig describes one external check. An empty command disables it.
// "{file}" in Command is replaced by the target path, or by ProjectArgs when
// the verification is unscoped.
type CheckConfig struct {
	Command     string `koanf:"command"`
	ProjectArgs string `koanf:"project_args"`
}

// SecretsConfig controls scrubbing of captured hook and check output.
type SecretsConfig struct {
	Enabled bool `koanf:"enabled"`
}

// ServerConfig holds HTTP control surface configuration.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	RateLimit       float64  `koanf:"rate_limit"`
	RateBurst       int      `koanf:"rate_burst"`
}

// Default returns the built-in configuration.
func Default() *Config {
	logCfg := logging.NewDefaultConfig()
	telCfg := telemetry.NewDefaultConfig()
	return &Config{
		Logging:   *logCfg,
		Telemetry: *telCfg,
		Context: ContextConfig{
			CacheTTL:         Duration(5 * time.Minute),
			CacheMaxEntries:  256,
			Estimator:        "heuristic",
			Encoding:         "cl100k_base",
			WorkspaceRoot:    ".",
			MaxFileBytes:     256 * 1024,
			SnippetBytes:     4096,
			MaxCandidates:    200,
			IgnoreFiles:      []string{".gitignore", ".gavignore"},
			FallbackExcludes: []string{"node_modules/", "vendor/"},
			Git:              true,
		},
		Hooks: HooksConfig{
			Path:        ".gav/hooks.yaml",
			MaxParallel: 4,
			Shell:       "sh",
		},
		Verify: VerifyConfig{
			CheckTimeout:     Duration(2 * time.Minute),
			MaxFeedbackBytes: 4000,
		},
		Secrets: SecretsConfig{Enabled: true},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            9191,
			ShutdownTimeout: Duration(10 * time.Second),
			RateLimit:       20,
			RateBurst:       40,
		},
	}
}

// applyDefaults fills zero numeric and string fields left by partial files.
func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Context.CacheMaxEntries < 0 {
		cfg.Context.CacheMaxEntries = 0
	}
	if cfg.Context.Estimator == "" {
		cfg.Context.Estimator = def.Context.Estimator
	}
	if cfg.Context.Encoding == "" {
		cfg.Context.Encoding = def.Context.Encoding
	}
	if cfg.Context.WorkspaceRoot == "" {
		cfg.Context.WorkspaceRoot = def.Context.WorkspaceRoot
	}
	if cfg.Context.MaxFileBytes == 0 {
		cfg.Context.MaxFileBytes = def.Context.MaxFileBytes
	}
	if cfg.Context.SnippetBytes == 0 {
		cfg.Context.SnippetBytes = def.Context.SnippetBytes
	}
	if cfg.Context.MaxCandidates == 0 {
		cfg.Context.MaxCandidates = def.Context.MaxCandidates
	}

	if cfg.Hooks.MaxParallel == 0 {
		cfg.Hooks.MaxParallel = def.Hooks.MaxParallel
	}
	if cfg.Hooks.Shell == "" {
		cfg.Hooks.Shell = def.Hooks.Shell
	}

	if cfg.Verify.CheckTimeout == 0 {
		cfg.Verify.CheckTimeout = def.Verify.CheckTimeout
	}
	if cfg.Verify.MaxFeedbackBytes == 0 {
		cfg.Verify.MaxFeedbackBytes = def.Verify.MaxFeedbackBytes
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = def.Server.Host
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = def.Server.ShutdownTimeout
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: logging: %v", ErrInvalidConfig, err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("%w: telemetry: %v", ErrInvalidConfig, err)
	}

	switch c.Context.Estimator {
	case "heuristic", "tiktoken":
	default:
		return fmt.Errorf("%w: context.estimator must be 'heuristic' or 'tiktoken', got %q", ErrInvalidConfig, c.Context.Estimator)
	}
	if c.Context.SnippetBytes < 0 || c.Context.MaxFileBytes < 0 {
		return fmt.Errorf("%w: context size limits must be >= 0", ErrInvalidConfig)
	}

	if err := c.Verify.CheckTimeout.requirePositive("verify.check_timeout"); err != nil {
		return err
	}
	if err := c.Server.ShutdownTimeout.requirePositive("server.shutdown_timeout"); err != nil {
		return err
	}

	if c.Hooks.MaxParallel < 1 {
		return fmt.Errorf("%w: hooks.max_parallel must be >= 1, got %d", ErrInvalidConfig, c.Hooks.MaxParallel)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port out of range: %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("%w: server rate limits must be >= 0", ErrInvalidConfig)
	}

	return nil
}
