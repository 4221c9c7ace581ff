// Package channel executes marshalled procedure calls against a GDS server.
//
// Two implementations share the [Channel] contract:
//   - [QueryChannel] issues a single Cypher CALL (or RETURN for functions)
//     over Bolt and can execute any procedure
//   - [BulkChannel] serves property streams over Arrow Flight and adds
//     columnar graph construction and write-back
//
// Both return a [table.Table] with the same column set for the same
// procedure, so callers never need to know which protocol served a call.
// A [Selector] negotiates bulk availability once per connection and routes
// each call, falling back to the query channel whenever the bulk channel is
// unavailable or does not support the call.
package channel

import (
	"context"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
)

// Call is one logical procedure invocation.
type Call struct {
	Namespace string
	Params    marshal.CallParameters
}

// Channel executes calls and returns tabular results.
type Channel interface {
	// Name identifies the channel in logs and metrics.
	Name() string

	// Supports reports whether the channel can execute call.
	Supports(call Call) bool

	// Execute runs call and returns its result table.
	Execute(ctx context.Context, call Call) (*table.Table, error)
}

// Runner runs a Cypher statement. It is implemented by [Neo4jRunner].
type Runner interface {
	Run(ctx context.Context, query string, params map[string]any) (*table.Table, error)
}

// RunnerFunc adapts a function to [Runner].
type RunnerFunc func(ctx context.Context, query string, params map[string]any) (*table.Table, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, query string, params map[string]any) (*table.Table, error) {
	return f(ctx, query, params)
}

// Descriptor describes the negotiated bulk channel. It is built once per
// connection and never modified afterwards.
type Descriptor struct {
	Address   string   // host:port of the Flight server
	Token     string   // Bearer token from the Flight handshake; may be empty
	Encrypted bool     // TLS in use
	Version   string   // Protocol version tag in use, "v1" or "v0"
	Versions  []string // Tags advertised by the server
}
