package namespace

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/cache"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
)

// MaxSuggestions bounds the names offered by NoSuchProcedureError.
const MaxSuggestions = 3

// FetchTimeout bounds a shared catalog fetch. The fetch does not inherit the
// cancellation of the caller that started it.
const FetchTimeout = 30 * time.Second

// Entry is one row of gds.list().
type Entry struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Signature   string `json:"signature"`
	Type        string `json:"type"`
}

// Procedure is a parsed catalog entry.
type Procedure struct {
	Name        string
	Description string
	Kind        marshal.Kind
	Signature   marshal.Signature

	// SignatureErr is set when the server's signature could not be parsed.
	// The procedure stays listed but cannot be marshalled.
	SignatureErr error
}

// Lister fetches the raw procedure listing from the server.
type Lister interface {
	List(ctx context.Context) ([]Entry, error)
}

// Querier runs a Cypher statement and returns its result table.
type Querier interface {
	Run(ctx context.Context, query string, params map[string]any) (*table.Table, error)
}

// ListQuery lists every GDS procedure and function with its signature.
const ListQuery = "CALL gds.list() YIELD name, description, signature, type"

// ServerLister lists procedures by running [ListQuery].
type ServerLister struct {
	Querier Querier
}

// List runs gds.list() and converts the rows to entries.
func (l ServerLister) List(ctx context.Context) ([]Entry, error) {
	res, err := l.Querier.Run(ctx, ListQuery, nil)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, res.Len())
	for _, rec := range res.Records() {
		entries = append(entries, Entry{
			Name:        str(rec["name"]),
			Description: str(rec["description"]),
			Signature:   str(rec["signature"]),
			Type:        str(rec["type"]),
		})
	}
	return entries, nil
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Catalog is the set of procedures known to the connected server. It is
// loaded lazily on first lookup; concurrent first lookups share one fetch.
type Catalog struct {
	lister Lister

	cache cache.Cache
	key   string
	ttl   time.Duration

	group singleflight.Group

	mu     sync.RWMutex
	procs  map[string]Procedure
	names  []string
	loaded bool
}

// CatalogOption configures a Catalog.
type CatalogOption func(*Catalog)

// WithCache stores the raw listing under key for ttl. Cache failures are
// treated as misses.
func WithCache(c cache.Cache, key string, ttl time.Duration) CatalogOption {
	return func(cat *Catalog) {
		cat.cache = c
		cat.key = key
		cat.ttl = ttl
	}
}

// NewCatalog creates a catalog backed by l.
func NewCatalog(l Lister, opts ...CatalogOption) *Catalog {
	c := &Catalog{lister: l, cache: cache.NewNullCache()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewStaticCatalog creates a catalog from a fixed listing. It never contacts
// a server.
func NewStaticCatalog(entries ...Entry) *Catalog {
	c := NewCatalog(nil)
	c.install(entries)
	return c
}

// Lookup returns the leaf procedure named by ns.
func (c *Catalog) Lookup(ctx context.Context, ns Namespace) (Procedure, error) {
	if err := c.ensure(ctx); err != nil {
		return Procedure{}, err
	}

	name := ns.String()
	c.mu.RLock()
	p, ok := c.procs[name]
	names := c.names
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	suggestions, prefix := Suggest(name, names, MaxSuggestions)
	return Procedure{}, &errors.NoSuchProcedureError{
		Namespace:   name,
		Suggestions: suggestions,
		Prefix:      prefix,
	}
}

// List returns the procedures whose name starts with prefix, sorted by name.
// An empty prefix lists everything.
func (c *Catalog) List(ctx context.Context, prefix string) ([]Procedure, error) {
	if err := c.ensure(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []Procedure
	for _, n := range c.names {
		if prefix == "" || n == prefix || strings.HasPrefix(n, prefix+".") {
			out = append(out, c.procs[n])
		}
	}
	return out, nil
}

// Refresh drops the cached listing and fetches it again.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.key != "" {
		_ = c.cache.Delete(ctx, c.key)
	}
	c.mu.Lock()
	c.loaded = false
	c.mu.Unlock()
	return c.ensure(ctx)
}

func (c *Catalog) ensure(ctx context.Context) error {
	if c.isLoaded() {
		return nil
	}
	if c.lister == nil {
		return errors.New(errors.ErrCodeInternal, "procedure catalog has no source")
	}

	ch := c.group.DoChan("catalog", func() (any, error) {
		if c.isLoaded() {
			return nil, nil
		}
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), FetchTimeout)
		defer cancel()
		entries, err := c.fetch(fctx)
		if err != nil {
			return nil, err
		}
		c.install(entries)
		return nil, nil
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Catalog) isLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

func (c *Catalog) fetch(ctx context.Context) ([]Entry, error) {
	if c.key != "" {
		if data, hit, err := c.cache.Get(ctx, c.key); err == nil && hit {
			var entries []Entry
			if json.Unmarshal(data, &entries) == nil && len(entries) > 0 {
				return entries, nil
			}
		}
	}

	entries, err := c.lister.List(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeTransport, err, "list procedures")
	}

	if c.key != "" {
		if data, err := json.Marshal(entries); err == nil {
			_ = c.cache.Set(ctx, c.key, data, c.ttl)
		}
	}
	return entries, nil
}

func (c *Catalog) install(entries []Entry) {
	procs := make(map[string]Procedure, len(entries))
	for _, e := range entries {
		kind := marshal.KindProcedure
		if strings.EqualFold(e.Type, string(marshal.KindFunction)) {
			kind = marshal.KindFunction
		}
		sig, err := marshal.ParseSignature(e.Name, kind, e.Signature)
		procs[e.Name] = Procedure{Name: e.Name, Description: e.Description, Kind: kind, Signature: sig, SignatureErr: err}
	}

	names := make([]string, 0, len(procs))
	for n := range procs {
		names = append(names, n)
	}
	slices.Sort(names)

	c.mu.Lock()
	c.procs, c.names, c.loaded = procs, names, true
	c.mu.Unlock()
}
