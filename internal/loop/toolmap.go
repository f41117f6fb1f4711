package loop

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/gav/internal/verification"
)

// DefaultToolOperations maps common agent tool names onto operation kinds.
// Names are matched case-insensitively.
var DefaultToolOperations = map[string]verification.Operation{
	"read":        verification.OpRead,
	"read_file":   verification.OpRead,
	"view":        verification.OpRead,
	"ls":          verification.OpRead,
	"list_files":  verification.OpRead,
	"grep":        verification.OpSearch,
	"glob":        verification.OpSearch,
	"search":      verification.OpSearch,
	"search_code": verification.OpSearch,
	"write":       verification.OpWrite,
	"write_file":  verification.OpWrite,
	"create_file": verification.OpWrite,
	"edit":        verification.OpEdit,
	"edit_file":   verification.OpEdit,
	"multiedit":   verification.OpEdit,
	"str_replace": verification.OpEdit,
	"apply_patch": verification.OpEdit,
	"delete":      verification.OpDelete,
	"delete_file": verification.OpDelete,
	"remove_file": verification.OpDelete,
	"bash":        verification.OpExec,
	"shell":       verification.OpExec,
	"exec":        verification.OpExec,
	"run_command": verification.OpExec,
	"commit":      verification.OpCommit,
	"git_commit":  verification.OpCommit,
	"submit":      verification.OpSubmit,
	"git_push":    verification.OpSubmit,
	"create_pr":   verification.OpSubmit,
}

// OperationMap resolves tool names to operation kinds. It is immutable
// once built.
type OperationMap struct {
	ops map[string]verification.Operation
}

// NewOperationMap combines DefaultToolOperations with aliases, whose values
// must name known operation kinds. Aliases override defaults.
func NewOperationMap(aliases map[string]string) (*OperationMap, error) {
	ops := make(map[string]verification.Operation, len(DefaultToolOperations)+len(aliases))
	for name, op := range DefaultToolOperations {
		ops[name] = op
	}

	names := make([]string, 0, len(aliases))
	for name := range aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return nil, fmt.Errorf("tool alias with empty name")
		}
		op, err := verification.ParseOperation(strings.ToLower(strings.TrimSpace(aliases[name])))
		if err != nil {
			return nil, fmt.Errorf("tool alias %q: %w", name, err)
		}
		ops[key] = op
	}
	return &OperationMap{ops: ops}, nil
}

// Lookup returns the operation for a tool, or OpUnscoped.
func (m *OperationMap) Lookup(tool string) verification.Operation {
	if m == nil {
		return verification.OpUnscoped
	}
	if op, ok := m.ops[strings.ToLower(tool)]; ok {
		return op
	}
	return verification.OpUnscoped
}

// Len returns the number of mapped tool names.
func (m *OperationMap) Len() int { return len(m.ops) }

// FilePathKeys are the argument names searched, in order, for the target
// path of a tool call.
var FilePathKeys = []string{"file_path", "path", "filePath", "file", "target"}

// FilePath extracts the target path from tool arguments.
func FilePath(args map[string]any) string {
	for _, k := range FilePathKeys {
		if s, ok := args[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
