package verification

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/fyrsmithlabs/gav/internal/process"
)

// CheckKind groups checks in results and feedback.
type CheckKind string

const (
	KindHook  CheckKind = "hook"
	KindLint  CheckKind = "lint"
	KindTypes CheckKind = "types"
	KindTests CheckKind = "tests"
)

// CheckOutcome is what a Checker reports for a completed check.
type CheckOutcome struct {
	Passed bool
	Output string
}

// Checker is a static check. An error means the check could not run,
// which is distinct from a failing check.
type Checker interface {
	Name() string
	Kind() CheckKind
	Check(ctx context.Context, filePath string) (CheckOutcome, error)
}

// Runner is the subprocess boundary used by CommandChecker.
type Runner interface {
	Run(ctx context.Context, spec process.Spec) process.Result
}

// CommandChecker runs a shell command. "{file}" in Command is replaced by
// the quoted target path, or by ProjectArgs when there is no target.
type CommandChecker struct {
	CheckName   string
	CheckKind   CheckKind
	Command     string
	ProjectArgs string
	Dir         string
	Timeout     time.Duration
	Runner      Runner
}

func (c *CommandChecker) Name() string    { return c.CheckName }
func (c *CommandChecker) Kind() CheckKind { return c.CheckKind }

// Check runs the command. Spawn failures and cancellation are errors; a
// timeout or non-zero exit is a failed check.
func (c *CommandChecker) Check(ctx context.Context, filePath string) (CheckOutcome, error) {
	runner := c.Runner
	if runner == nil {
		runner = &process.Runner{}
	}
	res := runner.Run(ctx, process.Spec{
		Command: c.expand(filePath),
		Dir:     c.Dir,
		Timeout: c.Timeout,
	})

	switch {
	case res.StartErr != nil:
		return CheckOutcome{}, fmt.Errorf("starting %s check: %w", c.CheckName, res.StartErr)
	case res.Cancelled:
		return CheckOutcome{}, fmt.Errorf("%s check: %w", c.CheckName, context.Cause(ctx))
	case res.TimedOut:
		return CheckOutcome{Output: fmt.Sprintf("%s check timed out after %s", c.CheckName, c.Timeout)}, nil
	}

	out := combined(res)
	if c.CheckKind == KindTests && isHelpOutput(out) {
		return CheckOutcome{Output: "no tests ran: the test command printed usage text instead of test results\n" + out}, nil
	}
	return CheckOutcome{Passed: res.ExitCode == 0, Output: out}, nil
}

func (c *CommandChecker) expand(filePath string) string {
	arg := c.ProjectArgs
	if filePath != "" {
		arg = shellQuote(filePath)
	}
	return strings.ReplaceAll(c.Command, "{file}", arg)
}

func combined(res process.Result) string {
	out := strings.TrimRight(res.Stdout, "\n")
	if errOut := strings.TrimRight(res.Stderr, "\n"); errOut != "" {
		if out != "" {
			out += "\n"
		}
		out += errOut
	}
	return out
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

var (
	helpPatterns = []string{
		"usage:",
		"--help",
		"-h, --help",
		"show help",
		"show this help",
		"options:",
	}

	testPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(pass|fail|error).*\d+`),
		regexp.MustCompile(`(?i)test.*\([\d.]+s\)`),
		regexp.MustCompile(`✓|✗`),
		regexp.MustCompile(`(?i)ok\s+\S+\s+[\d.]+s`),
		regexp.MustCompile(`(?i)test suites?:\s*\d+`),
	}
)

// isHelpOutput reports output that looks like CLI usage text rather than
// test results.
func isHelpOutput(output string) bool {
	if output == "" {
		return false
	}
	for _, p := range testPatterns {
		if p.MatchString(output) {
			return false
		}
	}
	lower := strings.ToLower(output)
	n := 0
	for _, p := range helpPatterns {
		if strings.Contains(lower, p) {
			n++
		}
	}
	return n >= 2
}
