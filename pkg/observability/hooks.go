// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. A [Hooks] value is passed
// to the client (and the gateway) at construction; there is no process-wide
// registry, so two clients in one process can report to different backends.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Let the caller choose an implementation per client
//
// [Prometheus] is the bundled backend.
//
// # Usage
//
//	metrics := observability.NewPrometheus(prometheus.DefaultRegisterer)
//	client, err := gds.Connect(ctx, cfg, gds.WithHooks(metrics.Hooks()))
package observability

import (
	"context"
	"time"
)

// =============================================================================
// Call Hooks
// =============================================================================

// CallHooks receives events from the dispatch pipeline.
type CallHooks interface {
	// OnCallStart records a call about to be sent on channel.
	OnCallStart(ctx context.Context, namespace, channel string)

	// OnCallComplete records the outcome of a call. err is nil on success.
	OnCallComplete(ctx context.Context, namespace, channel string, duration time.Duration, err error)

	// OnRetry records a retry after a transient failure.
	OnRetry(ctx context.Context, namespace string, attempt int, err error)

	// OnNegotiated records the outcome of bulk channel negotiation.
	OnNegotiated(ctx context.Context, state string)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from the HTTP gateway.
type HTTPHooks interface {
	// OnRequest records an incoming request.
	OnRequest(ctx context.Context, method, route string)

	// OnResponse records a response.
	OnResponse(ctx context.Context, method, route string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopCallHooks is a no-op implementation of CallHooks.
type NoopCallHooks struct{}

func (NoopCallHooks) OnCallStart(context.Context, string, string)                          {}
func (NoopCallHooks) OnCallComplete(context.Context, string, string, time.Duration, error) {}
func (NoopCallHooks) OnRetry(context.Context, string, int, error)                          {}
func (NoopCallHooks) OnNegotiated(context.Context, string)                                 {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Hook Set
// =============================================================================

// Hooks bundles one implementation per event category. Nil fields are
// treated as no-ops.
type Hooks struct {
	Call  CallHooks
	Cache CacheHooks
	HTTP  HTTPHooks
}

// Noop returns hooks that discard every event.
func Noop() Hooks {
	return Hooks{Call: NoopCallHooks{}, Cache: NoopCacheHooks{}, HTTP: NoopHTTPHooks{}}
}

// WithDefaults returns h with nil fields replaced by no-ops.
func (h Hooks) WithDefaults() Hooks {
	if h.Call == nil {
		h.Call = NoopCallHooks{}
	}
	if h.Cache == nil {
		h.Cache = NoopCacheHooks{}
	}
	if h.HTTP == nil {
		h.HTTP = NoopHTTPHooks{}
	}
	return h
}
