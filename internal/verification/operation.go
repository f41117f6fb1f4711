package verification

import (
	"fmt"

	"github.com/fyrsmithlabs/gav/internal/hooks"
)

// Operation is the canonical kind of a tool action.
type Operation string

const (
	OpRead   Operation = "read"
	OpSearch Operation = "search"
	OpWrite  Operation = "write"
	OpEdit   Operation = "edit"
	OpDelete Operation = "delete"
	OpExec   Operation = "exec"
	OpCommit Operation = "commit"
	OpSubmit Operation = "submit"
	// OpUnscoped marks actions with no known lifecycle meaning. They run
	// no hooks and no static checks.
	OpUnscoped Operation = "unscoped"
)

// Operations lists every known kind.
var Operations = []Operation{OpRead, OpSearch, OpWrite, OpEdit, OpDelete, OpExec, OpCommit, OpSubmit, OpUnscoped}

// ParseOperation rejects unknown kinds.
func ParseOperation(s string) (Operation, error) {
	for _, op := range Operations {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operation kind %q", s)
}

// Mutating reports whether op changes the workspace or its history.
func (op Operation) Mutating() bool {
	switch op {
	case OpWrite, OpEdit, OpDelete, OpCommit, OpSubmit:
		return true
	}
	return false
}

// Checked reports whether static checks follow op. Exec actions can touch
// any file, so their checks run over the whole project.
func (op Operation) Checked() bool {
	return op.Mutating() || op == OpExec
}

// Event returns the post-action hook event for op.
func (op Operation) Event() (hooks.HookType, bool) {
	switch op {
	case OpWrite, OpEdit, OpDelete:
		return hooks.PostEdit, true
	case OpCommit:
		return hooks.PreCommit, true
	case OpSubmit:
		return hooks.PreSubmit, true
	}
	return "", false
}
