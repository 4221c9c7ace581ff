// Package namespace builds dotted GDS procedure names and resolves them
// against the procedures the connected server actually exposes.
//
// A [Resolver] accumulates segments without touching the server:
//
//	r := client.Root()                       // "gds"
//	train := r.Resolve("beta").Resolve("graphSage").Resolve("train")
//	res, err := train.Invoke(ctx, "G", marshal.Config{...})
//
// Resolution happens only when [Resolver.Invoke] is called. A name that is
// not a leaf procedure or function in the server's [Catalog] fails with
// [errors.NoSuchProcedureError]; a name that is merely a prefix of real
// procedures (for example "gds.graph") is not callable either.
package namespace

import (
	"context"
	"slices"
	"strings"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
)

// Namespace is an immutable, ordered list of name segments.
type Namespace struct {
	segments []string
}

// New creates a namespace from segments. The slice is copied.
func New(segments ...string) Namespace {
	return Namespace{segments: slices.Clone(segments)}
}

// Parse splits a dotted name such as "gds.pageRank.stream". Empty segments
// are dropped.
func Parse(dotted string) Namespace {
	var segs []string
	for _, s := range strings.Split(dotted, ".") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	return Namespace{segments: segs}
}

// Append returns a new namespace with segment added. n is not modified.
func (n Namespace) Append(segment string) Namespace {
	out := make([]string, len(n.segments), len(n.segments)+1)
	copy(out, n.segments)
	return Namespace{segments: append(out, segment)}
}

// Segments returns a copy of the segments.
func (n Namespace) Segments() []string { return slices.Clone(n.segments) }

// Len returns the number of segments.
func (n Namespace) Len() int { return len(n.segments) }

// IsZero reports whether n has no segments.
func (n Namespace) IsZero() bool { return len(n.segments) == 0 }

// Leaf returns the last segment.
func (n Namespace) Leaf() string {
	if len(n.segments) == 0 {
		return ""
	}
	return n.segments[len(n.segments)-1]
}

// String returns the dotted form.
func (n Namespace) String() string { return strings.Join(n.segments, ".") }

// HasPrefix reports whether p's segments are a prefix of n's.
func (n Namespace) HasPrefix(p Namespace) bool {
	return len(p.segments) <= len(n.segments) && slices.Equal(n.segments[:len(p.segments)], p.segments)
}

// Invoker dispatches a resolved call. It is implemented by the client's
// stage pipeline.
type Invoker interface {
	Invoke(ctx context.Context, ns Namespace, args ...any) (*table.Table, error)
}

// InvokerFunc adapts a function to [Invoker].
type InvokerFunc func(ctx context.Context, ns Namespace, args ...any) (*table.Table, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, ns Namespace, args ...any) (*table.Table, error) {
	return f(ctx, ns, args...)
}

// Resolver is a namespace bound to the invoker of a connection. Resolvers
// are values; Resolve never mutates the receiver and never fails.
type Resolver struct {
	ns  Namespace
	inv Invoker
}

// NewResolver creates a resolver rooted at root.
func NewResolver(inv Invoker, root ...string) Resolver {
	return Resolver{ns: New(root...), inv: inv}
}

// Resolve appends one segment.
func (r Resolver) Resolve(segment string) Resolver {
	return Resolver{ns: r.ns.Append(segment), inv: r.inv}
}

// Path appends every segment of a dotted path, e.g. Path("beta.graphSage.train").
func (r Resolver) Path(dotted string) Resolver {
	for _, s := range Parse(dotted).segments {
		r = r.Resolve(s)
	}
	return r
}

// Namespace returns the accumulated namespace.
func (r Resolver) Namespace() Namespace { return r.ns }

// String returns the dotted namespace.
func (r Resolver) String() string { return r.ns.String() }

// Invoke resolves the namespace against the server and executes it.
func (r Resolver) Invoke(ctx context.Context, args ...any) (*table.Table, error) {
	return r.inv.Invoke(ctx, r.ns, args...)
}
