package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/gav/internal/logging"
	"github.com/fyrsmithlabs/gav/internal/process"
)

// DefaultMaxParallel bounds a hook batch when Options leaves it unset.
const DefaultMaxParallel = 4

const (
	outcomeSuccess    = "success"
	outcomeFailure    = "failure"
	outcomeTimeout    = "timeout"
	outcomeCancelled  = "cancelled"
	outcomeSpawnError = "spawn_error"
)

// Runner is the subprocess boundary used by the engine.
type Runner interface {
	Run(ctx context.Context, spec process.Spec) process.Result
}

// Options configures an Engine.
type Options struct {
	Hooks       []Config
	Runner      Runner
	MaxParallel int
	// Dir is the working directory for hook commands.
	Dir string

	Logger  *logging.Logger
	Tracer  trace.Tracer
	Metrics *Metrics
}

// Engine executes hooks. The hook set is replaced atomically by Reload and
// never mutated in place.
type Engine struct {
	hooks       atomic.Pointer[[]Config]
	runner      Runner
	maxParallel int
	dir         string
	logger      *logging.Logger
	tracer      trace.Tracer
	metrics     *Metrics
}

// NewEngine validates opts.Hooks and creates an engine.
func NewEngine(opts Options) (*Engine, error) {
	hooks := append([]Config(nil), opts.Hooks...)
	if err := Validate(hooks); err != nil {
		return nil, err
	}
	e := &Engine{
		runner:      opts.Runner,
		maxParallel: opts.MaxParallel,
		dir:         opts.Dir,
		logger:      opts.Logger,
		tracer:      opts.Tracer,
		metrics:     opts.Metrics,
	}
	if e.runner == nil {
		e.runner = &process.Runner{}
	}
	if e.maxParallel <= 0 {
		e.maxParallel = DefaultMaxParallel
	}
	if e.logger == nil {
		e.logger = logging.Nop()
	}
	if e.tracer == nil {
		e.tracer = otel.Tracer("gav/hooks")
	}
	e.hooks.Store(&hooks)
	return e, nil
}

// Hooks returns a copy of the current hook set.
func (e *Engine) Hooks() []Config {
	return append([]Config(nil), *e.hooks.Load()...)
}

// For returns the enabled hooks for t in declaration order.
func (e *Engine) For(t HookType) []Config {
	var out []Config
	for _, h := range *e.hooks.Load() {
		if h.Enabled && h.Type == t {
			out = append(out, h)
		}
	}
	return out
}

// Reload replaces the hook set from path. On error the current set is kept.
func (e *Engine) Reload(path string) error {
	hooks, err := LoadConfigWithEnvOverride(path)
	if err != nil {
		return err
	}
	if hooks == nil {
		hooks = []Config{}
	}
	e.hooks.Store(&hooks)
	return nil
}

// Run executes every enabled hook of type t with a bounded number in
// flight, waits for all of them and returns results in declaration order.
// A failing hook never cancels its siblings. Cancelling ctx kills running
// hooks, which report "cancelled".
func (e *Engine) Run(ctx context.Context, t HookType, payload Payload) ([]Result, error) {
	hooks := e.For(t)
	for _, h := range hooks {
		if err := h.CheckCommand(); err != nil {
			return nil, err
		}
	}
	if len(hooks) == 0 {
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, "hooks.run", trace.WithAttributes(
		attribute.String("hook.event", string(t)),
		attribute.Int("hook.count", len(hooks)),
	))
	defer span.End()

	results := make([]Result, len(hooks))
	var g errgroup.Group
	g.SetLimit(e.maxParallel)
	for i, h := range hooks {
		g.Go(func() error {
			results[i] = e.exec(ctx, t, h, payload)
			return nil
		})
	}
	_ = g.Wait()

	blocked := len(Blocking(results))
	span.SetAttributes(attribute.Int("hook.blocked", blocked))
	if blocked > 0 {
		span.SetStatus(codes.Error, "blocked")
	}
	return results, nil
}

func (e *Engine) exec(ctx context.Context, t HookType, h Config, payload Payload) Result {
	ctx, span := e.tracer.Start(ctx, "hooks.exec", trace.WithAttributes(
		attribute.String("hook.name", h.Name),
		attribute.String("hook.event", string(t)),
	))
	defer span.End()

	// Payload holds only strings, so marshaling cannot fail.
	stdin, _ := json.Marshal(stdinPayload{Event: t, Hook: h.Name, Payload: payload})

	timeout := time.Duration(h.TimeoutMs) * time.Millisecond
	res := e.runner.Run(ctx, process.Spec{
		Command: h.Command,
		Dir:     e.dir,
		Env:     environ(t, h, payload),
		Stdin:   stdin,
		Timeout: timeout,
	})

	r := Result{
		Name:       h.Name,
		Output:     res.Stdout,
		DurationMs: res.Duration.Milliseconds(),
	}
	outcome := outcomeSuccess
	switch {
	case res.TimedOut:
		r.Error = "timeout"
		outcome = outcomeTimeout
		if r.DurationMs < int64(h.TimeoutMs) {
			r.DurationMs = int64(h.TimeoutMs)
		}
	case res.Cancelled:
		r.Error = "cancelled"
		outcome = outcomeCancelled
	case res.StartErr != nil:
		r.Error = res.StartErr.Error()
		outcome = outcomeSpawnError
	case res.ExitCode != 0:
		r.Error = failureText(res)
		outcome = outcomeFailure
	default:
		r.Success = true
	}
	r.Blocked = h.FailureMode == Block && !r.Success

	span.SetAttributes(
		attribute.String("hook.outcome", outcome),
		attribute.Int("hook.exit_code", res.ExitCode),
	)
	if !r.Success {
		span.SetStatus(codes.Error, r.Error)
		e.logger.Warn(ctx, "hook failed",
			zap.String("hook", h.Name),
			zap.String("event", string(t)),
			zap.String("outcome", outcome),
			zap.Bool("blocked", r.Blocked),
			zap.Int64("duration_ms", r.DurationMs))
	} else {
		e.logger.Debug(ctx, "hook succeeded",
			zap.String("hook", h.Name),
			zap.String("event", string(t)),
			zap.Int64("duration_ms", r.DurationMs))
	}
	if e.metrics != nil {
		e.metrics.RunsTotal.WithLabelValues(string(t), outcome).Inc()
		e.metrics.Duration.WithLabelValues(string(t)).Observe(res.Duration.Seconds())
	}
	return r
}

type stdinPayload struct {
	Event HookType `json:"event"`
	Hook  string   `json:"hook"`
	Payload
}

func environ(t HookType, h Config, p Payload) []string {
	return []string{
		"GAV_HOOK_EVENT=" + string(t),
		"GAV_HOOK_NAME=" + h.Name,
		"GAV_FILE_PATH=" + p.FilePath,
		"GAV_OPERATION=" + p.Operation,
		"GAV_MESSAGE=" + p.Message,
	}
}

// failureText prefers stderr, then stdout, then the exit status.
func failureText(res process.Result) string {
	if s := strings.TrimSpace(res.Stderr); s != "" {
		return s
	}
	if s := strings.TrimSpace(res.Stdout); s != "" {
		return s
	}
	return fmt.Sprintf("exit status %d", res.ExitCode)
}
