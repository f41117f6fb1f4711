package verification

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/gav/internal/hooks"
	"github.com/fyrsmithlabs/gav/internal/logging"
	"github.com/fyrsmithlabs/gav/internal/secrets"
)

// DefaultMaxFeedbackBytes bounds the captured output kept per check.
const DefaultMaxFeedbackBytes = 4000

// HookRunner runs a hook batch. *hooks.Engine implements it.
type HookRunner interface {
	Run(ctx context.Context, t hooks.HookType, p hooks.Payload) ([]hooks.Result, error)
}

// Input describes a completed action.
type Input struct {
	Success   bool
	Output    string
	FilePath  string
	Operation Operation
	// Message is the commit or submission message, when there is one.
	Message string
}

// CheckResult is one entry of a verification result.
type CheckResult struct {
	Name       string    `json:"name"`
	Kind       CheckKind `json:"kind"`
	Passed     bool      `json:"passed"`
	Blocking   bool      `json:"blocking"`
	Output     string    `json:"output,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// Result is the verdict of a pipeline run. Feedback is set exactly when
// Passed is false.
type Result struct {
	Passed   bool          `json:"passed"`
	Checks   []CheckResult `json:"checks"`
	Feedback string        `json:"feedback,omitempty"`
}

// Options configures a Pipeline.
type Options struct {
	Hooks    HookRunner
	Checkers []Checker
	Scrubber secrets.Scrubber

	MaxFeedbackBytes int

	Logger  *logging.Logger
	Tracer  trace.Tracer
	Metrics *Metrics
}

// Pipeline runs hooks and static checks.
type Pipeline struct {
	hooks            HookRunner
	checkers         []Checker
	scrubber         secrets.Scrubber
	maxFeedbackBytes int
	logger           *logging.Logger
	tracer           trace.Tracer
	metrics          *Metrics
}

// NewPipeline creates a pipeline.
func NewPipeline(opts Options) *Pipeline {
	p := &Pipeline{
		hooks:            opts.Hooks,
		checkers:         append([]Checker(nil), opts.Checkers...),
		scrubber:         opts.Scrubber,
		maxFeedbackBytes: opts.MaxFeedbackBytes,
		logger:           opts.Logger,
		tracer:           opts.Tracer,
		metrics:          opts.Metrics,
	}
	if p.scrubber == nil {
		p.scrubber = secrets.Nop()
	}
	if p.maxFeedbackBytes <= 0 {
		p.maxFeedbackBytes = DefaultMaxFeedbackBytes
	}
	if p.logger == nil {
		p.logger = logging.Nop()
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer("gav/verification")
	}
	return p
}

// Verify runs hooks for the operation and then, unless a hook blocked,
// the static checks. The error return is reserved for checks or hooks that
// could not run.
func (p *Pipeline) Verify(ctx context.Context, in Input) (res Result, err error) {
	ctx, span := p.tracer.Start(ctx, "verification.verify", trace.WithAttributes(
		attribute.String("verify.operation", string(in.Operation)),
		attribute.Bool("verify.scoped", in.FilePath != ""),
	))
	defer span.End()

	outcome := "passed"
	defer func() {
		switch {
		case err != nil:
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case !res.Passed:
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("verify.outcome", outcome))
		if p.metrics != nil {
			p.metrics.VerifyTotal.WithLabelValues(outcome).Inc()
		}
	}()

	res.Checks = []CheckResult{}

	if event, ok := in.Operation.Event(); ok && p.hooks != nil {
		hookResults, err := p.hooks.Run(ctx, event, hooks.Payload{
			FilePath:  in.FilePath,
			Content:   in.Output,
			Message:   in.Message,
			Operation: string(in.Operation),
		})
		if err != nil {
			return Result{}, fmt.Errorf("running %s hooks: %w", event, err)
		}
		for _, h := range hookResults {
			res.Checks = append(res.Checks, p.fromHook(h))
		}
		if blocked := hooks.Blocking(hookResults); len(blocked) > 0 {
			outcome = "blocked"
			res.Feedback = Summarize(res.Checks)
			p.logger.Info(ctx, "verification blocked by hook",
				zap.String("operation", string(in.Operation)),
				zap.String("hook", blocked[0].Name),
				zap.Int("blocked", len(blocked)))
			return res, nil
		}
	}

	if in.Operation.Checked() && len(p.checkers) > 0 {
		target := in.FilePath
		if in.Operation == OpExec {
			target = ""
		}
		checks, err := p.runCheckers(ctx, target)
		if err != nil {
			return Result{}, err
		}
		res.Checks = append(res.Checks, checks...)
	}

	res.Passed = true
	for _, c := range res.Checks {
		if c.Blocking && !c.Passed {
			res.Passed = false
			break
		}
	}
	if !res.Passed {
		outcome = "failed"
		res.Feedback = Summarize(res.Checks)
	}
	return res, nil
}

func (p *Pipeline) fromHook(h hooks.Result) CheckResult {
	out := h.Output
	if !h.Success {
		out = h.Error
	}
	return CheckResult{
		Name:       h.Name,
		Kind:       KindHook,
		Passed:     h.Success,
		Blocking:   h.Blocked,
		Output:     p.clean(out),
		DurationMs: h.DurationMs,
	}
}

// runCheckers runs every checker concurrently and reports them in
// declaration order. The first checker that cannot run cancels the rest.
func (p *Pipeline) runCheckers(ctx context.Context, filePath string) ([]CheckResult, error) {
	results := make([]CheckResult, len(p.checkers))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range p.checkers {
		g.Go(func() error {
			start := time.Now()
			o, err := c.Check(gctx, filePath)
			if err != nil {
				return fmt.Errorf("%s check %s: %w", c.Kind(), c.Name(), err)
			}
			results[i] = CheckResult{
				Name:       c.Name(),
				Kind:       c.Kind(),
				Passed:     o.Passed,
				Blocking:   true,
				Output:     p.clean(o.Output),
				DurationMs: time.Since(start).Milliseconds(),
			}
			if p.metrics != nil {
				result := "passed"
				if !o.Passed {
					result = "failed"
				}
				p.metrics.CheckTotal.WithLabelValues(string(c.Kind()), result).Inc()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// clean scrubs secrets from captured output and bounds its size.
func (p *Pipeline) clean(out string) string {
	if out == "" {
		return ""
	}
	if p.scrubber.IsEnabled() {
		out = p.scrubber.Scrub(out).Scrubbed
	}
	return truncate(out, p.maxFeedbackBytes)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("\n... (%d bytes truncated)", len(s)-cut)
}
