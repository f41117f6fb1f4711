// Package contextcache stores computed context bundles keyed by request,
// with TTL and LRU eviction, hit accounting and in-flight coalescing.
//
//	c := contextcache.New[Bundle](contextcache.Options{MaxEntries: 256, TTL: 5 * time.Minute})
//	res, err := c.GetOrCompute(ctx, key, compute)
package contextcache

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Status describes how a GetOrCompute call was served.
type Status int

const (
	// Miss means this caller ran the computation.
	Miss Status = iota
	// Hit means a stored entry was returned.
	Hit
	// Coalesced means this caller waited on another caller's computation.
	Coalesced
)

func (s Status) String() string {
	switch s {
	case Hit:
		return "hit"
	case Coalesced:
		return "coalesced"
	default:
		return "miss"
	}
}

// Options configures a Cache.
type Options struct {
	// MaxEntries bounds the cache; 0 means unbounded.
	MaxEntries int
	// TTL expires entries after creation; 0 disables expiry.
	TTL time.Duration
	// Metrics is optional.
	Metrics *Metrics
}

// Stats is a read-only snapshot of cache accounting.
type Stats struct {
	Size        int     `json:"size"`
	HitRate     float64 `json:"hit_rate"`
	TotalHits   int64   `json:"total_hits"`
	TotalMisses int64   `json:"total_misses"`
	Coalesced   int64   `json:"coalesced"`
}

// Result is the outcome of GetOrCompute.
type Result[V any] struct {
	Value V
	// Hits is the entry's hit count including this call; 0 unless Status is Hit.
	Hits    int
	Status  Status
	Created time.Time
}

// ComputeFunc produces a value on a miss. Returning store=false keeps the
// value out of the cache while still handing it to every waiting caller.
type ComputeFunc[V any] func(ctx context.Context) (value V, store bool, err error)

type entry[V any] struct {
	value   V
	created time.Time
	hits    atomic.Int64
}

// Cache is safe for concurrent use.
type Cache[V any] struct {
	lru     *expirable.LRU[string, *entry[V]]
	ttl     time.Duration
	group   singleflight.Group
	metrics *Metrics

	// mu orders Clear against stores so a computation that started before
	// a Clear cannot repopulate the cache after it.
	mu         sync.Mutex
	generation uint64

	hits, misses, coalesced atomic.Int64
}

// New creates an empty cache.
func New[V any](opts Options) *Cache[V] {
	c := &Cache[V]{metrics: opts.Metrics, ttl: opts.TTL}
	size := opts.MaxEntries
	if size < 0 {
		size = 0
	}
	// Expiry is checked on access. A library TTL would start a cleanup
	// goroutine that cannot be stopped, one per session.
	c.lru = expirable.NewLRU[string, *entry[V]](size, c.onEvict, 0)
	return c
}

func (c *Cache[V]) onEvict(string, *entry[V]) {
	if c.metrics != nil {
		c.metrics.EvictionsTotal.Inc()
	}
}

type flight[V any] struct {
	value   V
	created time.Time
}

// GetOrCompute returns the stored value for key, or runs compute once for
// all concurrent callers of the same key. The computation runs detached
// from the cancellation of whichever caller started it but keeps its
// values. A caller whose ctx ends while waiting returns ctx.Err(); the
// computation continues for the others.
func (c *Cache[V]) GetOrCompute(ctx context.Context, key string, compute ComputeFunc[V]) (Result[V], error) {
	if res, ok := c.lookup(key); ok {
		return res, nil
	}

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	var leader atomic.Bool
	ch := c.group.DoChan(strconv.FormatUint(gen, 10)+"/"+key, func() (interface{}, error) {
		leader.Store(true)
		v, store, err := compute(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		created := time.Now()
		if store {
			c.store(gen, key, v, created)
		}
		return flight[V]{value: v, created: created}, nil
	})

	select {
	case <-ctx.Done():
		c.recordMiss(false)
		return Result[V]{Status: Miss}, ctx.Err()
	case r := <-ch:
		// Only the leader's closure runs, so only the leader sees its flag set.
		isLeader := leader.Load()
		c.recordMiss(!isLeader)
		status := Miss
		if !isLeader {
			status = Coalesced
		}
		if r.Err != nil {
			return Result[V]{Status: status}, r.Err
		}
		f := r.Val.(flight[V])
		return Result[V]{Value: f.value, Status: status, Created: f.created}, nil
	}
}

func (c *Cache[V]) lookup(key string) (Result[V], bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return Result[V]{}, false
	}
	if c.expired(e, time.Now()) {
		c.expire(key, e)
		return Result[V]{}, false
	}
	n := e.hits.Add(1)
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.HitsTotal.Inc()
	}
	return Result[V]{Value: e.value, Hits: int(n), Status: Hit, Created: e.created}, true
}

func (c *Cache[V]) expired(e *entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.created) >= c.ttl
}

// expire removes key only if it still holds stale, so a fresh store that
// raced the lookup survives.
func (c *Cache[V]) expire(key string, stale *entry[V]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.lru.Peek(key); ok && cur == stale {
		c.lru.Remove(key)
		if c.metrics != nil {
			c.metrics.Size.Set(float64(c.lru.Len()))
		}
	}
}

func (c *Cache[V]) store(gen uint64, key string, v V, created time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.lru.Add(key, &entry[V]{value: v, created: created})
	if c.metrics != nil {
		c.metrics.Size.Set(float64(c.lru.Len()))
	}
}

func (c *Cache[V]) recordMiss(coalesced bool) {
	c.misses.Add(1)
	if coalesced {
		c.coalesced.Add(1)
	}
	if c.metrics != nil {
		c.metrics.MissesTotal.Inc()
		if coalesced {
			c.metrics.CoalescedTotal.Inc()
		}
	}
}

// Invalidate drops a single key.
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
	if c.metrics != nil {
		c.metrics.Size.Set(float64(c.lru.Len()))
	}
}

// Clear empties the cache synchronously. Computations already in flight
// still return to their callers but are not stored.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.lru.Purge()
	if c.metrics != nil {
		c.metrics.Size.Set(0)
	}
}

// Stats returns a snapshot of accounting counters.
func (c *Cache[V]) Stats() Stats {
	hits, misses := c.hits.Load(), c.misses.Load()
	s := Stats{
		Size:        c.liveLen(),
		TotalHits:   hits,
		TotalMisses: misses,
		Coalesced:   c.coalesced.Load(),
	}
	if total := hits + misses; total > 0 {
		s.HitRate = float64(hits) / float64(total)
	}
	return s
}

// liveLen counts entries that have not expired.
func (c *Cache[V]) liveLen() int {
	if c.ttl <= 0 {
		return c.lru.Len()
	}
	now := time.Now()
	n := 0
	for _, e := range c.lru.Values() {
		if e != nil && !c.expired(e, now) {
			n++
		}
	}
	return n
}
