package loop

import (
	"context"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gav/internal/hooks"
	"github.com/fyrsmithlabs/gav/internal/logging"
	"github.com/fyrsmithlabs/gav/internal/verification"
)

// GuardPhase runs PreEdit hooks before an edit-like action executes.
type GuardPhase struct {
	hooks verification.HookRunner
	ops   *OperationMap
	diag  *logging.Logger
}

// NewGuardPhase creates a guard phase.
func NewGuardPhase(h verification.HookRunner, ops *OperationMap, diag *logging.Logger) *GuardPhase {
	if diag == nil {
		diag = logging.Nop()
	}
	return &GuardPhase{hooks: h, ops: ops, diag: diag.Named("guard")}
}

// TryCheck returns Passed=false when a blocking PreEdit hook rejects the
// call. Calls that do not edit files always pass.
func (p *GuardPhase) TryCheck(ctx context.Context, call ToolCall) (out Outcome[Verdict]) {
	switch p.ops.Lookup(call.Name) {
	case verification.OpWrite, verification.OpEdit, verification.OpDelete:
	default:
		return Ok(Verdict{Passed: true})
	}
	if p.hooks == nil {
		return Ok(Verdict{Passed: true})
	}
	defer func() {
		if r := recover(); r != nil {
			out = Fail[Verdict](&VerificationInfraError{Tool: call.Name, Panic: r})
		}
	}()

	payload := hooks.Payload{
		FilePath:  FilePath(call.Arguments),
		Operation: string(p.ops.Lookup(call.Name)),
	}
	if content, ok := call.Arguments["content"].(string); ok {
		payload.Content = content
	}
	results, err := p.hooks.Run(ctx, hooks.PreEdit, payload)
	if err != nil {
		return Fail[Verdict](&VerificationInfraError{Tool: call.Name, Cause: err})
	}
	if len(hooks.Blocking(results)) == 0 {
		return Ok(Verdict{Passed: true})
	}

	checks := make([]verification.CheckResult, 0, len(results))
	for _, r := range results {
		text := r.Output
		if !r.Success {
			text = r.Error
		}
		checks = append(checks, verification.CheckResult{
			Name:       r.Name,
			Kind:       verification.KindHook,
			Passed:     r.Success,
			Blocking:   r.Blocked,
			Output:     text,
			DurationMs: r.DurationMs,
		})
	}
	return Ok(Verdict{Passed: false, Feedback: verification.Summarize(checks)})
}

// Check returns the guard verdict, or nil when the hooks could not run.
func (p *GuardPhase) Check(ctx context.Context, call ToolCall, debug bool) *Verdict {
	o := p.TryCheck(ctx, call)
	if o.Err != nil {
		if debug {
			p.diag.Warn(ctx, "guard skipped", zap.String("tool", call.Name), zap.Error(o.Err))
		}
		return nil
	}
	return o.Optional()
}
