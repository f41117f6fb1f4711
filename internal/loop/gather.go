package loop

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gav/internal/contextcache"
	"github.com/fyrsmithlabs/gav/internal/logging"
	"github.com/fyrsmithlabs/gav/internal/orchestrator"
)

var errNoGatherer = errors.New("no orchestrator configured")

// Gatherer is the orchestrator surface the gather phase needs.
type Gatherer interface {
	Gather(ctx context.Context, req orchestrator.Request) orchestrator.Bundle
	CacheStats() contextcache.Stats
	ClearCache()
}

// GatherPhase shields the agent from context retrieval faults.
type GatherPhase struct {
	gatherer Gatherer
	diag     *logging.Logger
}

// NewGatherPhase creates a gather phase. diag receives debug diagnostics
// and may be nil.
func NewGatherPhase(g Gatherer, diag *logging.Logger) *GatherPhase {
	if diag == nil {
		diag = logging.Nop()
	}
	return &GatherPhase{gatherer: g, diag: diag.Named("gather")}
}

// TryGather returns the bundle or a *GatherInfraError. A degraded bundle is
// a value, not a failure.
func (p *GatherPhase) TryGather(ctx context.Context, req orchestrator.Request) (out Outcome[orchestrator.Bundle]) {
	defer func() {
		if r := recover(); r != nil {
			out = Fail[orchestrator.Bundle](&GatherInfraError{Panic: r})
		}
	}()
	if p.gatherer == nil {
		return Fail[orchestrator.Bundle](&GatherInfraError{Cause: errNoGatherer})
	}
	return Ok(p.gatherer.Gather(ctx, req))
}

// Gather returns the bundle for req, or nil when gathering failed.
func (p *GatherPhase) Gather(ctx context.Context, req orchestrator.Request, debug bool) *orchestrator.Bundle {
	if debug {
		p.diag.Info(ctx, "gather request",
			zap.String("intent", req.Intent),
			zap.Int("budget", req.Budget))
	}

	o := p.TryGather(ctx, req)
	if o.Err != nil {
		if debug {
			p.diag.Warn(ctx, "gather failed", zap.Error(o.Err))
		}
		return nil
	}

	if debug && len(o.Value.Sources) > 0 {
		p.diag.Info(ctx, "gather result",
			zap.Int("sources", len(o.Value.Sources)),
			zap.Int("tokens_used", o.Value.Metadata.TokensUsed),
			zap.Int("cache_hits", o.Value.Metadata.CacheHits),
			zap.String("strategy", string(o.Value.Metadata.Strategy)))
	}
	return o.Optional()
}

// CacheStats passes through to the orchestrator.
func (p *GatherPhase) CacheStats() contextcache.Stats {
	if p.gatherer == nil {
		return contextcache.Stats{}
	}
	return p.gatherer.CacheStats()
}

// ClearCache passes through to the orchestrator.
func (p *GatherPhase) ClearCache() {
	if p.gatherer != nil {
		p.gatherer.ClearCache()
	}
}
