package loop

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gav/internal/logging"
	"github.com/fyrsmithlabs/gav/internal/verification"
)

var errNoVerifier = errors.New("no verification pipeline configured")

// Verifier is the pipeline surface the verify phase needs.
type Verifier interface {
	Verify(ctx context.Context, in verification.Input) (verification.Result, error)
}

// VerifyPhase turns completed tool calls into verdicts.
type VerifyPhase struct {
	verifier Verifier
	ops      *OperationMap
	diag     *logging.Logger
}

// NewVerifyPhase creates a verify phase. A nil ops map sends every tool
// through as unscoped.
func NewVerifyPhase(v Verifier, ops *OperationMap, diag *logging.Logger) *VerifyPhase {
	if diag == nil {
		diag = logging.Nop()
	}
	return &VerifyPhase{verifier: v, ops: ops, diag: diag.Named("verify")}
}

// Input derives the pipeline input for a call.
func (p *VerifyPhase) Input(call ToolCall, result ToolResult) verification.Input {
	in := verification.Input{
		Success:   result.Success,
		Output:    result.Output,
		FilePath:  FilePath(call.Arguments),
		Operation: p.ops.Lookup(call.Name),
	}
	if msg, ok := call.Arguments["message"].(string); ok {
		in.Message = msg
	}
	return in
}

// TryVerify returns a verdict, ErrNotVerified for failed actions, or a
// *VerificationInfraError.
func (p *VerifyPhase) TryVerify(ctx context.Context, call ToolCall, result ToolResult) (out Outcome[Verdict]) {
	if !result.Success {
		return Fail[Verdict](ErrNotVerified)
	}
	defer func() {
		if r := recover(); r != nil {
			out = Fail[Verdict](&VerificationInfraError{Tool: call.Name, Panic: r})
		}
	}()
	if p.verifier == nil {
		return Fail[Verdict](&VerificationInfraError{Tool: call.Name, Cause: errNoVerifier})
	}

	res, err := p.verifier.Verify(ctx, p.Input(call, result))
	if err != nil {
		return Fail[Verdict](&VerificationInfraError{Tool: call.Name, Cause: err})
	}
	if res.Passed {
		return Ok(Verdict{Passed: true})
	}
	feedback := res.Feedback
	if feedback == "" {
		feedback = verification.Summarize(res.Checks)
	}
	return Ok(Verdict{Passed: false, Feedback: feedback})
}

// Verify returns the verdict for a completed call, or nil when the call
// failed or verification could not run.
func (p *VerifyPhase) Verify(ctx context.Context, call ToolCall, result ToolResult, debug bool) *Verdict {
	o := p.TryVerify(ctx, call, result)
	if o.Err != nil {
		if debug && !errors.Is(o.Err, ErrNotVerified) {
			p.diag.Warn(ctx, "verification skipped",
				zap.String("tool", call.Name),
				zap.String("call_id", call.ID),
				zap.Error(o.Err))
		}
		return nil
	}
	if debug {
		p.diag.Info(ctx, "verification complete",
			zap.String("tool", call.Name),
			zap.Bool("passed", o.Value.Passed))
	}
	return o.Optional()
}
