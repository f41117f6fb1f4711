package hooks

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedHook is returned for hooks that can never be executed.
	ErrMalformedHook = errors.New("malformed hook")
	// ErrInvalidConfig is returned for hook files that fail validation.
	ErrInvalidConfig = errors.New("invalid hook config")
)

// DefaultTimeoutMs applies when a hook sets no timeout.
const DefaultTimeoutMs = 30000

// HookType is a lifecycle event.
type HookType string

const (
	PreEdit   HookType = "PreEdit"
	PostEdit  HookType = "PostEdit"
	PreCommit HookType = "PreCommit"
	PreSubmit HookType = "PreSubmit"
)

// HookTypes lists every event in lifecycle order.
var HookTypes = []HookType{PreEdit, PostEdit, PreCommit, PreSubmit}

// ParseHookType accepts event names case-insensitively.
func ParseHookType(s string) (HookType, error) {
	for _, t := range HookTypes {
		if strings.EqualFold(s, string(t)) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown hook type %q", s)
}

// FailureMode decides whether a failing hook stops the agent.
type FailureMode string

const (
	Continue FailureMode = "continue"
	Block    FailureMode = "block"
)

// Config declares one hook.
type Config struct {
	Name        string      `json:"name" toml:"name" koanf:"name"`
	Type        HookType    `json:"type" toml:"type" koanf:"type"`
	Enabled     bool        `json:"enabled" toml:"enabled" koanf:"enabled"`
	Command     string      `json:"command" toml:"command" koanf:"command"`
	TimeoutMs   int         `json:"timeout_ms" toml:"timeout_ms" koanf:"timeout_ms"`
	FailureMode FailureMode `json:"failure_mode" toml:"failure_mode" koanf:"failure_mode"`
}

// CheckCommand reports ErrMalformedHook for commands that cannot run.
func (c Config) CheckCommand() error {
	if strings.TrimSpace(c.Command) == "" {
		return fmt.Errorf("%w: hook %q has an empty command", ErrMalformedHook, c.Name)
	}
	if strings.ContainsRune(c.Command, 0) {
		return fmt.Errorf("%w: hook %q command contains a NUL byte", ErrMalformedHook, c.Name)
	}
	return nil
}

// Payload is the event data handed to hooks. Which fields are set depends
// on the event.
type Payload struct {
	FilePath  string            `json:"file_path,omitempty"`
	Content   string            `json:"content,omitempty"`
	Message   string            `json:"message,omitempty"`
	Operation string            `json:"operation,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Result is the outcome of one hook.
type Result struct {
	Name       string `json:"name"`
	Success    bool   `json:"success"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Blocked    bool   `json:"blocked"`
}

// Blocking returns the results that stop the agent.
func Blocking(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Blocked {
			out = append(out, r)
		}
	}
	return out
}
