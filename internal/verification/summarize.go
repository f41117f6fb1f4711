package verification

import (
	"fmt"
	"strings"
)

// Summarize renders failed checks, in order, as feedback for the agent. It
// returns "" when nothing failed.
func Summarize(checks []CheckResult) string {
	var failed, blocking []CheckResult
	for _, c := range checks {
		if c.Passed {
			continue
		}
		failed = append(failed, c)
		if c.Blocking {
			blocking = append(blocking, c)
		}
	}
	if len(failed) == 0 {
		return ""
	}

	var b strings.Builder
	if len(blocking) > 0 && blocking[0].Kind == KindHook {
		names := make([]string, 0, len(blocking))
		for _, c := range blocking {
			if c.Kind == KindHook {
				names = append(names, c.Name)
			}
		}
		fmt.Fprintf(&b, "Blocked by hook %s.\n", strings.Join(names, ", "))
	} else if len(blocking) > 0 {
		fmt.Fprintf(&b, "Verification failed: %d of %d checks failed.\n", len(blocking), len(checks))
	} else {
		b.WriteString("Non-blocking checks reported problems.\n")
	}

	for _, c := range failed {
		label := string(c.Kind)
		if c.Kind == KindHook {
			label = "hook " + c.Name
		} else if c.Name != string(c.Kind) {
			label = fmt.Sprintf("%s (%s)", c.Kind, c.Name)
		}
		if !c.Blocking {
			label += " [non-blocking]"
		}
		fmt.Fprintf(&b, "\n%s:\n", label)
		if out := strings.TrimSpace(c.Output); out != "" {
			b.WriteString(indent(out))
			b.WriteString("\n")
		} else {
			b.WriteString("  (no output)\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
