package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/gav/internal/contextcache"
	"github.com/fyrsmithlabs/gav/internal/telemetry"
	"github.com/fyrsmithlabs/gav/internal/tokens"
)

// lenEstimator costs content at one token per byte so tests can size
// sources precisely.
var lenEstimator = tokens.EstimatorFunc(func(s string) int { return len(s) })

func static(name string, cands ...Candidate) Provider {
	return ProviderFunc{ProviderName: name, Fn: func(context.Context, Request) ([]Candidate, error) {
		return cands, nil
	}}
}

func sized(path string, score float64, cost int) Candidate {
	return Candidate{Path: path, Score: score, Content: strings.Repeat("x", cost), Reasons: []string{"test"}}
}

func paths(b Bundle) []string {
	out := make([]string, 0, len(b.Sources))
	for _, s := range b.Sources {
		out = append(out, s.Path)
	}
	return out
}

func TestGather_BudgetTrim(t *testing.T) {
	o := New(Options{
		Estimator: lenEstimator,
		Providers: []Provider{static("p",
			sized("a", 9, 800),
			sized("b", 7, 600),
			sized("c", 7, 500),
			sized("d", 3, 400),
			sized("e", 1, 300),
		)},
	})

	b := o.Gather(context.Background(), Request{Intent: "fix", Budget: 2000})

	assert.Equal(t, []string{"a", "b", "c"}, paths(b))
	assert.Equal(t, 1900, b.Metadata.TokensUsed)
	assert.Equal(t, StrategyGreedy, b.Metadata.Strategy)
	assert.Equal(t, 5, b.Metadata.Considered)
}

func TestGather_CacheHit(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc{ProviderName: "p", Fn: func(context.Context, Request) ([]Candidate, error) {
		calls.Add(1)
		return []Candidate{sized("a", 1, 10)}, nil
	}}
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{p}})
	req := Request{Intent: "explain", Budget: 100}

	first := o.Gather(context.Background(), req)
	second := o.Gather(context.Background(), req)

	assert.Equal(t, 0, first.Metadata.CacheHits)
	assert.Equal(t, 1, second.Metadata.CacheHits)
	assert.Equal(t, int32(1), calls.Load())

	// Apart from the hit count both calls return the same bundle.
	second.Metadata.CacheHits = 0
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("cached bundle differs (-first +second):\n%s", diff)
	}
}

func TestGather_ReturnsCopies(t *testing.T) {
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{static("p", sized("a", 1, 10))}})
	req := Request{Intent: "x", Budget: 100}

	first := o.Gather(context.Background(), req)
	first.Sources[0].Path = "mutated"
	first.Sources[0].Reasons[0] = "mutated"

	second := o.Gather(context.Background(), req)
	assert.Equal(t, "a", second.Sources[0].Path)
	assert.Equal(t, "test", second.Sources[0].Reasons[0])
}

func TestGather_FirstSourceExceedsBudget(t *testing.T) {
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{static("p",
		sized("huge", 9, 5000),
		sized("small", 1, 10),
	)}})

	b := o.Gather(context.Background(), Request{Intent: "x", Budget: 100})

	assert.Equal(t, []string{"huge"}, paths(b))
	assert.Equal(t, 5000, b.Metadata.TokensUsed)
}

func TestGather_NoBacktracking(t *testing.T) {
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{static("p",
		sized("a", 9, 60),
		sized("b", 5, 50),
		sized("c", 1, 10),
	)}})

	b := o.Gather(context.Background(), Request{Intent: "x", Budget: 100})

	assert.Equal(t, []string{"a"}, paths(b))
}

func TestGather_MaxSources(t *testing.T) {
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{static("p",
		sized("a", 3, 1), sized("b", 2, 1), sized("c", 1, 1),
	)}})

	b := o.Gather(context.Background(), Request{Intent: "x", Budget: 100, Hints: Hints{MaxSources: 2}})

	assert.Equal(t, []string{"a", "b"}, paths(b))
}

func TestGather_StableTies(t *testing.T) {
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{
		static("first", sized("x", 1, 1), sized("y", 1, 1)),
		static("second", sized("z", 1, 1)),
	}})

	b := o.Gather(context.Background(), Request{Intent: "x", Budget: 100})

	assert.Equal(t, []string{"x", "y", "z"}, paths(b))
}

func TestGather_MergesByPath(t *testing.T) {
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{
		static("git", Candidate{Path: "a.go", Score: 1.5, Reasons: []string{"modified"}}),
		static("workspace", Candidate{Path: "a.go", Score: 2, Content: "body", Reasons: []string{"path match"}}),
		static("other", Candidate{Path: "b.go", Score: 3, Content: "b"}),
	}})

	b := o.Gather(context.Background(), Request{Intent: "x", Budget: 100})

	require.Len(t, b.Sources, 2)
	assert.Equal(t, "a.go", b.Sources[0].Path)
	assert.InDelta(t, 3.5, b.Sources[0].Score, 1e-9)
	assert.Equal(t, "body", b.Sources[0].Content)
	assert.Equal(t, []string{"modified", "path match"}, b.Sources[0].Reasons)
	assert.Equal(t, 4, b.Sources[0].EstimatedCost)
}

func TestGather_BudgetInvariant(t *testing.T) {
	var cands []Candidate
	for i := 0; i < 40; i++ {
		cands = append(cands, sized(strings.Repeat("p", i+1), float64(i%7), (i*37)%250+1))
	}
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{static("p", cands...)}})

	for _, budget := range []int{1, 50, 251, 1000, 5000} {
		b := o.Gather(context.Background(), Request{Intent: "x", Budget: budget})
		sum := 0
		for i, s := range b.Sources {
			sum += s.EstimatedCost
			if i > 0 {
				assert.GreaterOrEqual(t, b.Sources[i-1].Score, s.Score)
			}
		}
		assert.Equal(t, sum, b.Metadata.TokensUsed)
		if len(b.Sources) > 1 {
			assert.LessOrEqual(t, sum, budget, "budget %d", budget)
		}
	}
}

func TestGather_InvalidBudget(t *testing.T) {
	var calls atomic.Int32
	p := ProviderFunc{ProviderName: "p", Fn: func(context.Context, Request) ([]Candidate, error) {
		calls.Add(1)
		return nil, nil
	}}
	o := New(Options{Providers: []Provider{p}})

	b := o.Gather(context.Background(), Request{Intent: "x", Budget: 0})

	assert.Equal(t, StrategyDegraded, b.Metadata.Strategy)
	assert.Empty(t, b.Sources)
	assert.NotNil(t, b.Sources)
	assert.Zero(t, calls.Load())
	assert.Zero(t, o.CacheStats().TotalMisses)
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		ok   bool
	}{
		{"valid", Request{Intent: "x", Budget: 10, Hints: Hints{Globs: []string{"**/*.go"}}}, true},
		{"zero budget", Request{Budget: 0}, false},
		{"negative max sources", Request{Budget: 1, Hints: Hints{MaxSources: -1}}, false},
		{"traversing glob", Request{Budget: 1, Hints: Hints{Globs: []string{"../*"}}}, false},
		{"shell glob", Request{Budget: 1, Hints: Hints{Globs: []string{"$(id)"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestGather_PartialProviderFailure(t *testing.T) {
	failing := ProviderFunc{ProviderName: "broken", Fn: func(context.Context, Request) ([]Candidate, error) {
		return nil, errors.New("index unavailable")
	}}
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{failing, static("ok", sized("a", 1, 5))}})
	req := Request{Intent: "x", Budget: 100}

	b := o.Gather(context.Background(), req)

	assert.Equal(t, StrategyDegraded, b.Metadata.Strategy)
	assert.Equal(t, []string{"a"}, paths(b))
	require.Len(t, b.Metadata.Faults, 1)
	assert.Contains(t, b.Metadata.Faults[0], "index unavailable")

	// Degraded bundles are not cached.
	assert.Zero(t, o.CacheStats().Size)
	again := o.Gather(context.Background(), req)
	assert.Zero(t, again.Metadata.CacheHits)
}

func TestGather_ProviderPanic(t *testing.T) {
	panicky := ProviderFunc{ProviderName: "panicky", Fn: func(context.Context, Request) ([]Candidate, error) {
		panic("boom")
	}}
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{panicky, static("ok", sized("a", 1, 5))}})

	b := o.Gather(context.Background(), Request{Intent: "x", Budget: 100})

	assert.Equal(t, StrategyDegraded, b.Metadata.Strategy)
	assert.Equal(t, []string{"a"}, paths(b))
}

func TestGather_EstimatorPanic(t *testing.T) {
	est := tokens.EstimatorFunc(func(string) int { panic("bad tokenizer") })
	o := New(Options{Estimator: est, Providers: []Provider{static("ok", sized("a", 1, 5))}})

	b := o.Gather(context.Background(), Request{Intent: "x", Budget: 100})

	assert.Equal(t, StrategyDegraded, b.Metadata.Strategy)
	assert.Empty(t, b.Sources)
}

func TestGather_Cancelled(t *testing.T) {
	release := make(chan struct{})
	slow := ProviderFunc{ProviderName: "slow", Fn: func(ctx context.Context, _ Request) ([]Candidate, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, ctx.Err()
	}}
	o := New(Options{Providers: []Provider{slow}})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := o.Gather(ctx, Request{Intent: "x", Budget: 10})

	assert.Equal(t, StrategyDegraded, b.Metadata.Strategy)
	assert.Zero(t, o.CacheStats().Size)
}

func TestGather_Coalesces(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	p := ProviderFunc{ProviderName: "p", Fn: func(context.Context, Request) ([]Candidate, error) {
		calls.Add(1)
		<-gate
		return []Candidate{sized("a", 1, 5)}, nil
	}}
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{p}})
	req := Request{Intent: "same", Budget: 50}

	const n = 8
	var wg sync.WaitGroup
	results := make([]Bundle, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.Gather(context.Background(), req)
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, b := range results {
		assert.Equal(t, []string{"a"}, paths(b))
	}
}

func TestGather_FollowerSurvivesLeaderCancel(t *testing.T) {
	var calls atomic.Int32
	gate := make(chan struct{})
	slow := ProviderFunc{ProviderName: "slow", Fn: func(ctx context.Context, _ Request) ([]Candidate, error) {
		calls.Add(1)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return []Candidate{sized("a", 1, 5)}, nil
	}}
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{slow}})
	req := Request{Intent: "shared", Budget: 50}

	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := make(chan Bundle, 1)
	go func() { leader <- o.Gather(leaderCtx, req) }()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	follower := make(chan Bundle, 1)
	go func() { follower <- o.Gather(context.Background(), req) }()
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.Equal(t, StrategyDegraded, (<-leader).Metadata.Strategy)
	close(gate)

	b := <-follower
	assert.Equal(t, StrategyGreedy, b.Metadata.Strategy)
	assert.Equal(t, []string{"a"}, paths(b))
	assert.Empty(t, b.Metadata.Faults)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClearCache(t *testing.T) {
	o := New(Options{Estimator: lenEstimator, Providers: []Provider{static("p", sized("a", 1, 5))}})
	req := Request{Intent: "x", Budget: 50}

	o.Gather(context.Background(), req)
	o.Gather(context.Background(), req)
	o.ClearCache()

	assert.Zero(t, o.CacheStats().Size)
	b := o.Gather(context.Background(), req)
	assert.Zero(t, b.Metadata.CacheHits)
	stats := o.CacheStats()
	assert.Equal(t, int64(1), stats.TotalHits)
	assert.Equal(t, int64(2), stats.TotalMisses)
}

func TestClose(t *testing.T) {
	o := New(Options{Providers: []Provider{static("p", sized("a", 1, 5))}})
	require.NoError(t, o.Close())
	require.NoError(t, o.Close())

	b := o.Gather(context.Background(), Request{Intent: "x", Budget: 50})
	assert.Equal(t, StrategyDegraded, b.Metadata.Strategy)
	assert.Equal(t, []string{ErrClosed.Error()}, b.Metadata.Faults)
}

func TestGather_SharedCache(t *testing.T) {
	cache := contextcache.New[Bundle](contextcache.Options{MaxEntries: 8})
	a := New(Options{Cache: cache, Providers: []Provider{static("p", sized("a", 1, 5))}})
	b := New(Options{Cache: cache, Providers: []Provider{static("p", sized("a", 1, 5))}})
	req := Request{Intent: "x", Budget: 50}

	a.Gather(context.Background(), req)
	got := b.Gather(context.Background(), req)

	assert.Equal(t, 1, got.Metadata.CacheHits)
}

func TestGather_Span(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	o := New(Options{
		Estimator: lenEstimator,
		Providers: []Provider{static("p", sized("a", 1, 5))},
		Tracer:    tt.Tracer("test"),
	})

	o.Gather(context.Background(), Request{Intent: "x", Budget: 50})

	tt.AssertSpanExists(t, "orchestrator.gather")
	v, ok := tt.SpanAttribute("orchestrator.gather", "gather.strategy")
	require.True(t, ok)
	assert.Equal(t, "greedy", v.AsString())
}

func TestCacheKey(t *testing.T) {
	base := Request{Intent: " fix  the bug ", Budget: 100, Hints: Hints{Paths: []string{"b.go", "a.go"}}}

	tests := []struct {
		name  string
		req   Request
		equal bool
	}{
		{"whitespace and order", Request{Intent: "fix the bug", Budget: 100, Hints: Hints{Paths: []string{"a.go", "b.go", "./a.go"}}}, true},
		{"different budget", Request{Intent: "fix the bug", Budget: 200, Hints: Hints{Paths: []string{"a.go", "b.go"}}}, false},
		{"different intent", Request{Intent: "fix a bug", Budget: 100, Hints: Hints{Paths: []string{"a.go", "b.go"}}}, false},
		{"different globs", Request{Intent: "fix the bug", Budget: 100, Hints: Hints{Paths: []string{"a.go", "b.go"}, Globs: []string{"*.go"}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.equal {
				assert.Equal(t, CacheKey(base), CacheKey(tt.req))
			} else {
				assert.NotEqual(t, CacheKey(base), CacheKey(tt.req))
			}
		})
	}
}
