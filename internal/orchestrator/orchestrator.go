package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/gav/internal/contextcache"
	"github.com/fyrsmithlabs/gav/internal/logging"
	"github.com/fyrsmithlabs/gav/internal/tokens"
)

const defaultMaxParallel = 8

// Options configures an Orchestrator.
type Options struct {
	Providers []Provider
	Estimator tokens.Estimator

	// Cache is shared when set; otherwise one is built from CacheOptions.
	Cache        *contextcache.Cache[Bundle]
	CacheOptions contextcache.Options

	// MaxParallel bounds concurrent providers.
	MaxParallel int

	Logger  *logging.Logger
	Tracer  trace.Tracer
	Metrics *Metrics
}

// Orchestrator turns requests into budgeted bundles. It is safe for
// concurrent use.
type Orchestrator struct {
	providers   []Provider
	estimator   tokens.Estimator
	cache       *contextcache.Cache[Bundle]
	maxParallel int
	logger      *logging.Logger
	tracer      trace.Tracer
	metrics     *Metrics
	closed      atomic.Bool
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		providers:   append([]Provider(nil), opts.Providers...),
		estimator:   opts.Estimator,
		cache:       opts.Cache,
		maxParallel: opts.MaxParallel,
		logger:      opts.Logger,
		tracer:      opts.Tracer,
		metrics:     opts.Metrics,
	}
	if o.estimator == nil {
		o.estimator = tokens.Heuristic{}
	}
	if o.cache == nil {
		o.cache = contextcache.New[Bundle](opts.CacheOptions)
	}
	if o.maxParallel <= 0 {
		o.maxParallel = defaultMaxParallel
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("gav/orchestrator")
	}
	return o
}

// Gather returns a bundle for req. It never fails; faults are reported
// through a degraded bundle.
func (o *Orchestrator) Gather(ctx context.Context, req Request) Bundle {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "orchestrator.gather",
		trace.WithAttributes(
			attribute.Int("gather.budget", req.Budget),
			attribute.Int("gather.hint_paths", len(req.Hints.Paths)),
		))
	defer span.End()

	b := o.gather(ctx, req)

	span.SetAttributes(
		attribute.String("gather.strategy", string(b.Metadata.Strategy)),
		attribute.Int("gather.sources", len(b.Sources)),
		attribute.Int("gather.tokens_used", b.Metadata.TokensUsed),
		attribute.Int("gather.cache_hits", b.Metadata.CacheHits),
	)
	if b.Metadata.Strategy == StrategyDegraded {
		span.SetStatus(codes.Error, "degraded")
	}
	if o.metrics != nil {
		o.metrics.GatherTotal.WithLabelValues(string(b.Metadata.Strategy)).Inc()
		o.metrics.GatherDuration.Observe(time.Since(start).Seconds())
		o.metrics.BundleTokens.Observe(float64(b.Metadata.TokensUsed))
	}
	return b
}

func (o *Orchestrator) gather(ctx context.Context, req Request) Bundle {
	if o.closed.Load() {
		return degraded(nil, ErrClosed)
	}
	if err := req.Validate(); err != nil {
		return degraded(nil, err)
	}

	res, err := o.cache.GetOrCompute(ctx, CacheKey(req), func(ctx context.Context) (Bundle, bool, error) {
		b := o.compute(ctx, req)
		return b, b.Metadata.Strategy != StrategyDegraded, nil
	})
	if err != nil {
		o.logger.Warn(ctx, "context gather interrupted", zap.Error(err))
		return degraded(nil, err)
	}

	out := res.Value.Clone()
	out.Metadata.CacheHits = res.Hits
	return out
}

// compute runs providers and selects sources. Panics from providers or the
// estimator are contained here so the cache never sees them.
func (o *Orchestrator) compute(ctx context.Context, req Request) (b Bundle) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error(ctx, "context compute panicked", zap.Any("panic", r))
			b = degraded(nil, fmt.Errorf("compute panic: %v", r))
		}
	}()

	batches, faults := o.collect(ctx, req)
	candidates := merge(batches)

	ranked := make([]Source, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, Source{
			Path:          c.Path,
			Content:       c.Content,
			Score:         c.Score,
			Reasons:       c.Reasons,
			EstimatedCost: o.estimate(c.Content),
		})
	}
	Rank(ranked)
	selected, used := Select(ranked, req.Budget, req.Hints.MaxSources)

	b = Bundle{
		Sources: selected,
		Metadata: Metadata{
			TokensUsed: used,
			Strategy:   StrategyGreedy,
			Considered: len(ranked),
		},
	}
	if len(faults) > 0 {
		b.Metadata.Strategy = StrategyDegraded
		for _, f := range faults {
			b.Metadata.Faults = append(b.Metadata.Faults, f.Error())
		}
	}
	return b
}

func (o *Orchestrator) estimate(content string) int {
	n := o.estimator.Estimate(content)
	if n < 0 {
		return 0
	}
	return n
}

// collect runs every provider and returns per-provider batches in provider
// order. A failing provider never cancels the others.
func (o *Orchestrator) collect(ctx context.Context, req Request) ([][]Candidate, []error) {
	batches := make([][]Candidate, len(o.providers))
	errs := make([]error, len(o.providers))

	var g errgroup.Group
	g.SetLimit(o.maxParallel)
	for i, p := range o.providers {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("provider %s panicked: %v", p.Name(), r)
				}
			}()
			cands, err := p.Candidates(ctx, req)
			if err != nil {
				errs[i] = fmt.Errorf("provider %s: %w", p.Name(), err)
				o.logger.Warn(ctx, "context provider failed",
					zap.String("provider", p.Name()), zap.Error(err))
			}
			batches[i] = cands
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	var faults []error
	for _, err := range errs {
		if err != nil {
			faults = append(faults, err)
		}
	}
	return batches, faults
}

// CacheStats returns a snapshot of cache accounting.
func (o *Orchestrator) CacheStats() contextcache.Stats {
	return o.cache.Stats()
}

// ClearCache empties the cache. Counters are kept.
func (o *Orchestrator) ClearCache() {
	o.cache.Clear()
}

// Close releases the orchestrator. Later gathers return degraded bundles.
func (o *Orchestrator) Close() error {
	if o.closed.Swap(true) {
		return nil
	}
	o.cache.Clear()
	return nil
}

func degraded(sources []Source, err error) Bundle {
	b := Bundle{
		Sources:  sources,
		Metadata: Metadata{Strategy: StrategyDegraded},
	}
	if b.Sources == nil {
		b.Sources = []Source{}
	}
	if err != nil {
		b.Metadata.Faults = []string{err.Error()}
	}
	return b
}

// IsDegraded reports whether b was produced under a fault.
func IsDegraded(b Bundle) bool {
	return b.Metadata.Strategy == StrategyDegraded
}
