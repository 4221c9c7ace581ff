package version

import (
	"sync"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
)

// Window is the range of server versions a call supports. Nil bounds are
// unbounded.
type Window struct {
	MinInclusive *ServerVersion
	MaxExclusive *ServerVersion
}

// Since returns a window with only a lower bound.
func Since(v ServerVersion) Window { return Window{MinInclusive: &v} }

// Before returns a window with only an upper bound.
func Before(v ServerVersion) Window { return Window{MaxExclusive: &v} }

// Between returns the window [lo, hi).
func Between(lo, hi ServerVersion) Window { return Window{MinInclusive: &lo, MaxExclusive: &hi} }

// Contains reports whether v lies inside the window.
func (w Window) Contains(v ServerVersion) bool {
	if w.MinInclusive != nil && v.Less(*w.MinInclusive) {
		return false
	}
	if w.MaxExclusive != nil && !v.Less(*w.MaxExclusive) {
		return false
	}
	return true
}

// Unbounded reports whether the window accepts every version.
func (w Window) Unbounded() bool { return w.MinInclusive == nil && w.MaxExclusive == nil }

// Check is the version gate. It returns nil when server lies inside w and an
// [errors.IncompatibleServerVersionError] naming ns, its formal parameters,
// the window and the server version otherwise. Check performs no I/O.
func Check(ns string, params []string, w Window, server ServerVersion) error {
	if w.Contains(server) {
		return nil
	}
	e := &errors.IncompatibleServerVersionError{
		Namespace: ns,
		Params:    append([]string(nil), params...),
		Server:    server.String(),
	}
	if w.MinInclusive != nil {
		e.MinInclusive = w.MinInclusive.String()
	}
	if w.MaxExclusive != nil {
		e.MaxExclusive = w.MaxExclusive.String()
	}
	return e
}

// Entry is a registered compatibility window together with the formal
// parameter list quoted in gate errors.
type Entry struct {
	Window Window
	Params []string
}

// Registry maps namespaces to compatibility windows. It is safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// DefaultRegistry returns a registry seeded with the windows of endpoints
// whose availability changed across server releases.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("gds.graph.nodeLabel.mutate", Since(New(2, 3, 0)), "graph_name", "node_label", "config")
	r.Register("gds.graph.nodeLabel.write", Since(New(2, 3, 0)), "graph_name", "node_label", "config")
	r.Register("gds.graph.sample.cnarw", Since(New(2, 4, 0)), "graph_name", "from_graph_name", "config")
	r.Register("gds.graph.filter", Since(New(2, 5, 0)), "graph_name", "from_graph_name", "node_filter", "relationship_filter", "config")
	r.Register("gds.listProgress", Since(ListProgressGA), "job_id")
	r.Register("gds.graph.project.remote", Since(New(2, 7, 0)), "graph_name", "source_node", "target_node", "config")
	return r
}

// Register attaches w to ns, replacing any previous entry.
func (r *Registry) Register(ns string, w Window, params ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[ns] = Entry{Window: w, Params: params}
}

// Lookup returns the entry registered for ns.
func (r *Registry) Lookup(ns string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[ns]
	return e, ok
}

// Check gates ns against server using the registered window, if any.
// Unregistered namespaces always pass.
func (r *Registry) Check(ns string, server ServerVersion) error {
	e, ok := r.Lookup(ns)
	if !ok {
		return nil
	}
	return Check(ns, e.Params, e.Window, server)
}
