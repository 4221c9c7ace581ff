// Package cache provides byte-oriented caching for server metadata.
//
// The GDS client caches two things between sessions: the procedure catalog
// returned by gds.list() and the server version string. Both are cheap to
// refetch but are needed before the first call can be dispatched, so keeping
// them warm removes a round-trip from CLI start-up.
//
// Three backends are provided:
//   - [NullCache] disables caching
//   - [FileCache] stores entries as JSON files for CLI usage
//   - [RedisCache] shares entries between gateway replicas
//
// Keys are produced by a [Keyer] so that entries from different servers,
// databases and versions never collide.
package cache

import (
	"context"
	"time"
)

// Cache stores opaque byte values with an optional time-to-live.
type Cache interface {
	// Get returns the value for key. The boolean is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// NullCache backs --no-cache: every Get misses and writes are dropped.
type NullCache struct{}

// NewNullCache returns a cache that stores nothing.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }
