package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	ex "capm/data/extensions"
)

// a shared build outlives the request that started it, but not by more than this
const defaultBuildTimeout = 2 * time.Minute

// CacheKey identifies one computed run. Symbols are sorted so the request order does not matter.
type CacheKey struct {
	Symbols      string
	Years        int
	RiskFreeRate float64
	AsOf         string
}

func NewCacheKey(symbols []string, years int, riskFreeRate float64, asOf time.Time) CacheKey {
	return CacheKey{
		Symbols:      strings.Join(ex.SortedUnique(symbols), ","),
		Years:        years,
		RiskFreeRate: riskFreeRate,
		AsOf:         ex.FmtShort(asOf),
	}
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%d|%g|%s", k.Symbols, k.Years, k.RiskFreeRate, k.AsOf)
}

func (k CacheKey) hasSymbol(symbol string) bool {
	return slices.Contains(strings.Split(k.Symbols, ","), symbol)
}

type cacheEntry struct {
	run     *CapmRun
	expires time.Time
}

// ResultCache keeps computed runs for a while so repeated requests skip the fetch and the pipeline.
// Concurrent misses for the same key share one build. Errors are never cached.
type ResultCache struct {
	ttl          time.Duration
	buildTimeout time.Duration
	now          func() time.Time

	mu      sync.RWMutex
	entries map[CacheKey]cacheEntry
	group   singleflight.Group
}

// NewResultCache returns a cache holding runs for ttl, a ttl <= 0 only coalesces concurrent builds
func NewResultCache(ttl time.Duration, now func() time.Time) *ResultCache {
	if now == nil {
		now = time.Now
	}
	return &ResultCache{
		ttl:          ttl,
		buildTimeout: defaultBuildTimeout,
		now:          now,
		entries:      make(map[CacheKey]cacheEntry),
	}
}

// Get returns the cached run for key or builds it, hit reports whether build was skipped.
// The build runs detached from ctx with its own timeout so one caller leaving does not fail the
// others waiting on the same key, each caller still returns as soon as its own ctx is done.
func (rc *ResultCache) Get(ctx context.Context, key CacheKey, build func(context.Context) (*CapmRun, error)) (run *CapmRun, hit bool, err error) {
	if run, ok := rc.lookup(key); ok {
		return run, true, nil
	}

	ch := rc.group.DoChan(key.String(), func() (any, error) {
		if run, ok := rc.lookup(key); ok {
			return run, nil
		}

		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rc.buildTimeout)
		defer cancel()

		run, err := build(bctx)
		if err != nil {
			return nil, err
		}

		if rc.ttl > 0 {
			rc.mu.Lock()
			rc.entries[key] = cacheEntry{run: run, expires: rc.now().Add(rc.ttl)}
			rc.mu.Unlock()
		}
		return run, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*CapmRun), false, nil
	}
}

func (rc *ResultCache) lookup(key CacheKey) (*CapmRun, bool) {
	rc.mu.RLock()
	e, ok := rc.entries[key]
	rc.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if !rc.now().Before(e.expires) {
		rc.mu.Lock()
		if e, ok := rc.entries[key]; ok && !rc.now().Before(e.expires) {
			delete(rc.entries, key)
		}
		rc.mu.Unlock()
		return nil, false
	}
	return e.run, true
}

// Invalidate drops every run that includes symbol and returns how many were dropped
func (rc *ResultCache) Invalidate(symbol string) int {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	n := 0
	for k := range rc.entries {
		if k.hasSymbol(symbol) {
			delete(rc.entries, k)
			n++
		}
	}
	return n
}

func (rc *ResultCache) Purge() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	clear(rc.entries)
}

func (rc *ResultCache) Len() int {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	return len(rc.entries)
}
