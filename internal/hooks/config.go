package hooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvDisabled disables hooks regardless of the file. A true boolean value
// disables every hook; anything else is a comma-separated list of names.
const EnvDisabled = "GAV_HOOKS_DISABLED"

// fileHook mirrors Config with optional fields so defaults can be applied.
type fileHook struct {
	Name        string `json:"name" toml:"name" koanf:"name"`
	Type        string `json:"type" toml:"type" koanf:"type"`
	Enabled     *bool  `json:"enabled" toml:"enabled" koanf:"enabled"`
	Command     string `json:"command" toml:"command" koanf:"command"`
	TimeoutMs   *int   `json:"timeout_ms" toml:"timeout_ms" koanf:"timeout_ms"`
	FailureMode string `json:"failure_mode" toml:"failure_mode" koanf:"failure_mode"`
}

type file struct {
	Hooks []fileHook `json:"hooks" toml:"hooks" koanf:"hooks"`
}

// LoadConfig reads a hook file. The format follows the extension: .yaml
// and .yml, .toml, or .json. A missing file yields no hooks.
func LoadConfig(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read hook file: %w", err)
	}

	var f file
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		k := koanf.New(".")
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse hook file: %w", err)
		}
		if err := k.Unmarshal("", &f); err != nil {
			return nil, fmt.Errorf("failed to decode hook file: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("failed to parse hook file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to parse hook file: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported hook file extension %q", ErrInvalidConfig, ext)
	}

	return normalize(f.Hooks)
}

// LoadConfigWithEnvOverride loads path and then applies GAV_HOOKS_DISABLED.
func LoadConfigWithEnvOverride(path string) ([]Config, error) {
	cfgs, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	val := os.Getenv(EnvDisabled)
	if val == "" {
		return cfgs, nil
	}
	if all, err := strconv.ParseBool(val); err == nil {
		if all {
			for i := range cfgs {
				cfgs[i].Enabled = false
			}
		}
		return cfgs, nil
	}
	disabled := make(map[string]bool)
	for _, name := range strings.Split(val, ",") {
		disabled[strings.TrimSpace(name)] = true
	}
	for i := range cfgs {
		if disabled[cfgs[i].Name] {
			cfgs[i].Enabled = false
		}
	}
	return cfgs, nil
}

func normalize(raw []fileHook) ([]Config, error) {
	out := make([]Config, 0, len(raw))
	for i, h := range raw {
		c := Config{
			Name:        strings.TrimSpace(h.Name),
			Enabled:     true,
			Command:     h.Command,
			TimeoutMs:   DefaultTimeoutMs,
			FailureMode: Continue,
		}
		if h.Enabled != nil {
			c.Enabled = *h.Enabled
		}
		if h.TimeoutMs != nil {
			c.TimeoutMs = *h.TimeoutMs
		}
		if h.FailureMode != "" {
			c.FailureMode = FailureMode(strings.ToLower(h.FailureMode))
		}
		t, err := ParseHookType(h.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: hooks[%d]: %v", ErrInvalidConfig, i, err)
		}
		c.Type = t
		out = append(out, c)
	}
	if err := Validate(out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks the structure of a hook set. A zero timeout is replaced
// by the default. Commands are checked when the hook runs.
func Validate(cfgs []Config) error {
	seen := make(map[string]bool, len(cfgs))
	for i := range cfgs {
		c := &cfgs[i]
		if c.Name == "" {
			return fmt.Errorf("%w: hooks[%d]: name is required", ErrInvalidConfig, i)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: duplicate hook name %q", ErrInvalidConfig, c.Name)
		}
		seen[c.Name] = true

		t, err := ParseHookType(string(c.Type))
		if err != nil {
			return fmt.Errorf("%w: hook %q: %v", ErrInvalidConfig, c.Name, err)
		}
		c.Type = t
		switch c.FailureMode {
		case Continue, Block:
		case "":
			c.FailureMode = Continue
		default:
			return fmt.Errorf("%w: hook %q: failure_mode must be 'continue' or 'block', got %q", ErrInvalidConfig, c.Name, c.FailureMode)
		}
		if c.TimeoutMs < 0 {
			return fmt.Errorf("%w: hook %q: timeout_ms must be >= 0, got %d", ErrInvalidConfig, c.Name, c.TimeoutMs)
		}
		if c.TimeoutMs == 0 {
			c.TimeoutMs = DefaultTimeoutMs
		}
	}
	return nil
}
