package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gav/internal/config"
	"github.com/fyrsmithlabs/gav/internal/contextcache"
	"github.com/fyrsmithlabs/gav/internal/hooks"
	"github.com/fyrsmithlabs/gav/internal/ignore"
	"github.com/fyrsmithlabs/gav/internal/logging"
	"github.com/fyrsmithlabs/gav/internal/loop"
	"github.com/fyrsmithlabs/gav/internal/orchestrator"
	"github.com/fyrsmithlabs/gav/internal/process"
	"github.com/fyrsmithlabs/gav/internal/retrieval"
	"github.com/fyrsmithlabs/gav/internal/secrets"
	"github.com/fyrsmithlabs/gav/internal/telemetry"
	"github.com/fyrsmithlabs/gav/internal/tokens"
	"github.com/fyrsmithlabs/gav/internal/verification"
)

// Registry provides access to the services of one session.
// Use accessor methods to retrieve individual services.
type Registry interface {
	SessionID() string
	Config() *config.Config
	Logger() *logging.Logger
	Telemetry() *telemetry.Telemetry
	Orchestrator() *orchestrator.Orchestrator
	Hooks() *hooks.Engine
	Pipeline() *verification.Pipeline
	Operations() *loop.OperationMap
	Scrubber() secrets.Scrubber
	Gather() *loop.GatherPhase
	Verify() *loop.VerifyPhase
	Guard() *loop.GuardPhase

	// Close stops the hook watcher, the orchestrator and telemetry.
	// It is safe to call more than once.
	Close(ctx context.Context) error
}

// Options overrides pieces of the runtime. Zero values build from config.
type Options struct {
	// Logger replaces the logger built from cfg.Logging.
	Logger *logging.Logger
	// Runner replaces the subprocess runner shared by hooks and checks.
	Runner *process.Runner
	// Providers replaces the retrieval providers.
	Providers []orchestrator.Provider
}

type registry struct {
	sessionID    string
	cfg          *config.Config
	logger       *logging.Logger
	telemetry    *telemetry.Telemetry
	orchestrator *orchestrator.Orchestrator
	hooks        *hooks.Engine
	pipeline     *verification.Pipeline
	operations   *loop.OperationMap
	scrubber     secrets.Scrubber
	gather       *loop.GatherPhase
	verify       *loop.VerifyPhase
	guard        *loop.GuardPhase

	stopWatch context.CancelFunc
	watchDone chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// New builds a session runtime from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", config.ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &registry{sessionID: uuid.NewString(), cfg: cfg}

	tel, err := telemetry.New(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	r.telemetry = tel

	ready := false
	defer func() {
		if !ready {
			r.abort(ctx)
		}
	}()

	r.logger = opts.Logger
	if r.logger == nil {
		r.logger, err = logging.NewLogger(&cfg.Logging, nil)
		if err != nil {
			return nil, fmt.Errorf("initializing logger: %w", err)
		}
	}
	r.logger = r.logger.With(zap.String("session_id", r.sessionID))
	ctx = logging.WithSessionID(ctx, r.sessionID)

	if err := tel.Degraded(); err != nil {
		r.logger.Warn(ctx, "telemetry running without exporter", zap.Error(err))
	}

	root, err := filepath.Abs(cfg.Context.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}

	estimator, err := tokens.New(cfg.Context.Estimator, cfg.Context.Encoding)
	if err != nil {
		r.logger.Warn(ctx, "token estimator unavailable, using heuristic",
			zap.String("estimator", cfg.Context.Estimator), zap.Error(err))
	}

	providers := opts.Providers
	if providers == nil {
		providers, err = r.providers(ctx, root)
		if err != nil {
			return nil, err
		}
	}

	r.orchestrator = orchestrator.New(orchestrator.Options{
		Providers: providers,
		Estimator: estimator,
		CacheOptions: contextcache.Options{
			MaxEntries: cfg.Context.CacheMaxEntries,
			TTL:        cfg.Context.CacheTTL.Duration(),
			Metrics:    contextcache.NewMetrics(),
		},
		Logger:  r.logger.Named("orchestrator"),
		Tracer:  tel.Tracer("gav/orchestrator"),
		Metrics: orchestrator.NewMetrics(),
	})

	runner := opts.Runner
	if runner == nil {
		runner = process.NewRunner(cfg.Hooks.Shell, 0)
	}

	hookPath := cfg.Hooks.Path
	if hookPath != "" && !filepath.IsAbs(hookPath) {
		hookPath = filepath.Join(root, hookPath)
	}
	var hookCfgs []hooks.Config
	if hookPath != "" {
		hookCfgs, err = hooks.LoadConfigWithEnvOverride(hookPath)
		if err != nil {
			return nil, fmt.Errorf("loading hooks: %w", err)
		}
	}
	r.hooks, err = hooks.NewEngine(hooks.Options{
		Hooks:       hookCfgs,
		Runner:      runner,
		MaxParallel: cfg.Hooks.MaxParallel,
		Dir:         root,
		Logger:      r.logger.Named("hooks"),
		Tracer:      tel.Tracer("gav/hooks"),
		Metrics:     hooks.NewMetrics(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating hook engine: %w", err)
	}

	if cfg.Secrets.Enabled {
		r.scrubber, err = secrets.New(secrets.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("creating scrubber: %w", err)
		}
	} else {
		r.scrubber = secrets.Nop()
	}

	r.pipeline = verification.NewPipeline(verification.Options{
		Hooks:            r.hooks,
		Checkers:         checkers(cfg.Verify, root, runner),
		Scrubber:         r.scrubber,
		MaxFeedbackBytes: cfg.Verify.MaxFeedbackBytes,
		Logger:           r.logger.Named("verification"),
		Tracer:           tel.Tracer("gav/verification"),
		Metrics:          verification.NewMetrics(),
	})

	r.operations, err = loop.NewOperationMap(cfg.Verify.ToolAliases)
	if err != nil {
		return nil, fmt.Errorf("building tool map: %w", err)
	}

	diag := r.logger.Named("diag")
	r.gather = loop.NewGatherPhase(r.orchestrator, diag)
	r.verify = loop.NewVerifyPhase(r.pipeline, r.operations, diag)
	r.guard = loop.NewGuardPhase(r.hooks, r.operations, diag)

	if cfg.Hooks.Watch && hookPath != "" {
		r.startWatch(ctx, hookPath)
	}

	ready = true
	r.logger.Info(ctx, "session runtime ready",
		zap.String("workspace", root),
		zap.Int("providers", len(providers)),
		zap.Int("hooks", len(r.hooks.Hooks())),
		zap.Int("tool_mappings", r.operations.Len()),
	)
	return r, nil
}

func (r *registry) providers(ctx context.Context, root string) ([]orchestrator.Provider, error) {
	cc := r.cfg.Context
	matcher, err := ignore.NewParser(cc.IgnoreFiles, cc.FallbackExcludes).ParseProject(root)
	if err != nil {
		return nil, fmt.Errorf("parsing ignore files: %w", err)
	}
	ropts := retrieval.Options{
		Root:          root,
		Ignore:        matcher,
		MaxFileBytes:  cc.MaxFileBytes,
		SnippetBytes:  cc.SnippetBytes,
		MaxCandidates: cc.MaxCandidates,
	}
	out := []orchestrator.Provider{
		retrieval.NewHintProvider(ropts),
		retrieval.NewWorkspaceProvider(ropts),
	}
	if cc.Git {
		out = append(out, retrieval.NewGitProvider(ropts))
	}
	r.logger.Debug(ctx, "retrieval providers configured",
		zap.Int("count", len(out)), zap.Int("ignore_patterns", len(matcher.Patterns())))
	return out, nil
}

// checkers turns configured commands into static checks; empty commands are skipped.
func checkers(vc config.VerifyConfig, dir string, runner *process.Runner) []verification.Checker {
	specs := []struct {
		kind verification.CheckKind
		cfg  config.CheckConfig
	}{
		{verification.KindLint, vc.Lint},
		{verification.KindTypes, vc.Types},
		{verification.KindTests, vc.Tests},
	}
	var out []verification.Checker
	for _, s := range specs {
		if s.cfg.Command == "" {
			continue
		}
		out = append(out, &verification.CommandChecker{
			CheckName:   string(s.kind),
			CheckKind:   s.kind,
			Command:     s.cfg.Command,
			ProjectArgs: s.cfg.ProjectArgs,
			Dir:         dir,
			Timeout:     vc.CheckTimeout.Duration(),
			Runner:      runner,
		})
	}
	return out
}

func (r *registry) startWatch(ctx context.Context, path string) {
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		r.logger.Warn(ctx, "hook watch disabled", zap.String("path", path), zap.Error(err))
		return
	}
	wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.stopWatch = cancel
	r.watchDone = make(chan struct{})
	go func() {
		defer close(r.watchDone)
		if err := r.hooks.Watch(wctx, path, nil); err != nil {
			r.logger.Warn(wctx, "hook watcher stopped", zap.Error(err))
		}
	}()
}

// abort releases what a failed New had already built.
func (r *registry) abort(ctx context.Context) {
	if r.orchestrator != nil {
		_ = r.orchestrator.Close()
	}
	_ = r.telemetry.Shutdown(ctx)
}

func (r *registry) Close(ctx context.Context) error {
	r.closeOnce.Do(func() {
		var errs []error
		if r.stopWatch != nil {
			r.stopWatch()
			<-r.watchDone
		}
		if err := r.orchestrator.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing orchestrator: %w", err))
		}
		if err := r.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		_ = r.logger.Sync()
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}

func (r *registry) SessionID() string                        { return r.sessionID }
func (r *registry) Config() *config.Config                   { return r.cfg }
func (r *registry) Logger() *logging.Logger                  { return r.logger }
func (r *registry) Telemetry() *telemetry.Telemetry          { return r.telemetry }
func (r *registry) Orchestrator() *orchestrator.Orchestrator { return r.orchestrator }
func (r *registry) Hooks() *hooks.Engine                     { return r.hooks }
func (r *registry) Pipeline() *verification.Pipeline         { return r.pipeline }
func (r *registry) Operations() *loop.OperationMap           { return r.operations }
func (r *registry) Scrubber() secrets.Scrubber               { return r.scrubber }
func (r *registry) Gather() *loop.GatherPhase                { return r.gather }
func (r *registry) Verify() *loop.VerifyPhase                { return r.verify }
func (r *registry) Guard() *loop.GuardPhase                  { return r.guard }
