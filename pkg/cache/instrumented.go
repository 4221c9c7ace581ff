package cache

import (
	"context"
	"time"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/observability"
)

// Instrumented reports hits, misses and writes of an underlying cache to
// observability hooks. All entries of one Instrumented share a key type
// label such as "catalog" or "version".
type Instrumented struct {
	Cache
	hooks   observability.CacheHooks
	keyType string
}

// NewInstrumented wraps c. A nil hooks value disables reporting.
func NewInstrumented(c Cache, hooks observability.CacheHooks, keyType string) *Instrumented {
	if hooks == nil {
		hooks = observability.NoopCacheHooks{}
	}
	return &Instrumented{Cache: c, hooks: hooks, keyType: keyType}
}

// Get forwards to the wrapped cache and records a hit or miss.
// Errors are recorded as misses.
func (i *Instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := i.Cache.Get(ctx, key)
	if ok && err == nil {
		i.hooks.OnCacheHit(ctx, i.keyType)
	} else {
		i.hooks.OnCacheMiss(ctx, i.keyType)
	}
	return data, ok, err
}

// Set forwards to the wrapped cache and records successful writes.
func (i *Instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := i.Cache.Set(ctx, key, data, ttl); err != nil {
		return err
	}
	i.hooks.OnCacheSet(ctx, i.keyType, len(data))
	return nil
}
