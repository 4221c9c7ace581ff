// Package gds is the entry point of the Graph Data Science client.
//
// [Connect] opens a Bolt connection, reads the server version, and prepares
// the procedure catalog and channel selector. Procedures are reached by
// walking namespaces from [Client.Root]:
//
//	client, err := gds.Connect(ctx, config.Default(), gds.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	res, err := client.Root().Path("pageRank.mutate").Invoke(ctx, "G",
//	    marshal.Config{"mutateProperty": "rank"})
//
// Every call runs through the same pipeline of named stages: deprecation
// warning, version gate, catalog resolution, parameter marshalling, channel
// selection, progress monitoring and retry. Resolution, parameter and
// version errors are raised before any network I/O.
package gds

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/buildinfo"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/cache"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/channel"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/config"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/namespace"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/observability"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/progress"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/retry"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/version"
)

// VersionQuery reads the server version.
const VersionQuery = "RETURN gds.version() AS version"

// RootNamespace is the first segment of every GDS endpoint.
const RootNamespace = "gds"

// Client dispatches procedure calls to one GDS server. It is safe for
// concurrent use.
type Client struct {
	cfg    config.Config
	logger *log.Logger
	hooks  observability.Hooks

	runner        channel.Runner
	serverVersion version.ServerVersion
	catalog       *namespace.Catalog
	selector      *channel.Selector
	monitor       *progress.Monitor
	marshaller    *marshal.Marshaller
	retry         retry.Policy
	registry      *version.Registry
	deprecations  *Deprecations
	cache         cache.Cache

	handler   Handler
	warned    sync.Map
	closeOnce sync.Once
	closeErr  error
}

// Connect connects to the server described by cfg.
func Connect(ctx context.Context, cfg config.Config, opts ...Option) (*Client, error) {
	o := defaultOptions(cfg)
	for _, opt := range opts {
		opt(&o)
	}

	runner := o.runner
	if runner == nil {
		r, err := channel.NewNeo4jRunner(ctx, channel.Neo4jOptions{
			URI:       cfg.Connection.URI,
			Username:  cfg.Connection.Username,
			Password:  cfg.Connection.Password,
			Database:  cfg.Connection.Database,
			UserAgent: buildinfo.UserAgent(),
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeTransport, err, "connect to %s", cfg.Connection.URI)
		}
		runner = r
	}

	c := &Client{
		cfg:          cfg,
		logger:       o.logger,
		hooks:        o.hooks.WithDefaults(),
		runner:       runner,
		marshaller:   o.marshaller,
		retry:        o.retry,
		registry:     o.registry,
		deprecations: o.deprecations,
		cache:        o.cache,
	}
	if c.cache == nil {
		c.cache = cache.NewNullCache()
	}

	keyOpts := cache.ServerKeyOpts{URI: cfg.Connection.URI, Database: cfg.Connection.Database}
	v, err := c.fetchVersion(ctx, o.keyer.VersionKey(keyOpts))
	if err != nil {
		_ = closeRunner(ctx, runner)
		return nil, err
	}
	c.serverVersion = v
	keyOpts.ServerVersion = v.String()
	c.logger.Debug("connected", "uri", cfg.Connection.URI, "server_version", v)

	catalogCache := cache.NewInstrumented(c.cache, c.hooks.Cache, "catalog")
	c.catalog = namespace.NewCatalog(
		namespace.ServerLister{Querier: runner},
		namespace.WithCache(catalogCache, o.keyer.CatalogKey(keyOpts), cfg.Cache.TTL),
	)

	var negotiate channel.NegotiateFunc
	if cfg.Arrow.Enabled {
		n := o.negotiator
		if n == nil {
			n = c.arrowNegotiator(o.dial).Negotiate
		}
		negotiate = c.reportNegotiation(n)
	}
	c.selector = channel.NewSelector(channel.NewQueryChannel(runner), negotiate, c.logger)

	c.monitor = &progress.Monitor{
		Poller:        progress.QueryPoller{Querier: runner, ServerVersion: v},
		NewRenderer:   o.renderer,
		Interval:      cfg.Progress.Interval,
		ServerVersion: v,
		Disabled:      !cfg.Progress.Enabled,
		Logger:        c.logger,
	}

	c.handler = chain(c.stages(), c.execute)
	return c, nil
}

func (c *Client) fetchVersion(ctx context.Context, key string) (version.ServerVersion, error) {
	versionCache := cache.NewInstrumented(c.cache, c.hooks.Cache, "version")
	if data, hit, err := versionCache.Get(ctx, key); err == nil && hit {
		var s string
		if json.Unmarshal(data, &s) == nil {
			if v, err := version.Parse(s); err == nil {
				return v, nil
			}
		}
	}

	var res *table.Table
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = c.runner.Run(ctx, VersionQuery, nil)
		return err
	})
	if err != nil {
		return version.ServerVersion{}, &errors.ProcedureError{Namespace: "gds.version", Code: failureCode(err), Err: err}
	}
	raw, _ := res.Value(0, "version")
	s, _ := raw.(string)
	v, err := version.Parse(s)
	if err != nil {
		return version.ServerVersion{}, errors.Wrap(errors.ErrCodeIncompatibleServer, err, "unrecognised GDS server version %q", s)
	}

	if data, err := json.Marshal(s); err == nil {
		_ = versionCache.Set(ctx, key, data, c.cfg.Cache.TTL)
	}
	return v, nil
}

func (c *Client) arrowNegotiator(dial channel.DialFunc) channel.ArrowNegotiator {
	return channel.ArrowNegotiator{
		Runner:             c.runner,
		ServerVersion:      c.serverVersion,
		Database:           c.cfg.Connection.Database,
		Address:            c.cfg.Arrow.Address,
		BoltHost:           boltHost(c.cfg.Connection.URI),
		Username:           c.cfg.Connection.Username,
		Password:           c.cfg.Connection.Password,
		Encrypted:          c.cfg.Arrow.Encrypted,
		InsecureSkipVerify: c.cfg.Arrow.InsecureSkipVerify,
		Dial:               dial,
	}
}

func (c *Client) reportNegotiation(n channel.NegotiateFunc) channel.NegotiateFunc {
	return func(ctx context.Context) (*channel.BulkChannel, error) {
		bulk, err := n(ctx)
		state := channel.StateBulkAvailable
		if err != nil || bulk == nil {
			state = channel.StateQueryOnly
		}
		c.hooks.Call.OnNegotiated(ctx, state.String())
		return bulk, err
	}
}

// Invoke implements [namespace.Invoker]. Arguments are split with
// [marshal.SplitArgs].
func (c *Client) Invoke(ctx context.Context, ns namespace.Namespace, args ...any) (*table.Table, error) {
	return c.Call(ctx, ns, marshal.SplitArgs(args...))
}

// Call runs the procedure ns with args through the dispatch pipeline.
func (c *Client) Call(ctx context.Context, ns namespace.Namespace, args marshal.Args) (*table.Table, error) {
	if ns.IsZero() {
		return nil, &errors.NoSuchProcedureError{Namespace: ""}
	}
	if err := errors.ValidateNamespace(ns.String()); err != nil {
		return nil, err
	}
	if c.selector.State() == channel.StateClosed {
		return nil, errors.New(errors.ErrCodeClosed, "%s: connection is closed", ns)
	}
	return c.handler(ctx, &Request{Namespace: ns, Args: args})
}

// Root returns the resolver for the "gds" namespace.
func (c *Client) Root() namespace.Resolver {
	return namespace.NewResolver(c, RootNamespace)
}

// Procedures lists the server's procedures under prefix.
func (c *Client) Procedures(ctx context.Context, prefix string) ([]namespace.Procedure, error) {
	return c.catalog.List(ctx, prefix)
}

// RefreshCatalog drops the cached procedure listing and fetches it again.
func (c *Client) RefreshCatalog(ctx context.Context) error {
	return c.catalog.Refresh(ctx)
}

// ServerVersion returns the version of the connected server.
func (c *Client) ServerVersion() version.ServerVersion { return c.serverVersion }

// Mode returns the channel negotiation state, negotiating first if needed.
func (c *Client) Mode(ctx context.Context) channel.State {
	return c.selector.Negotiate(ctx)
}

// Logger returns the client's logger.
func (c *Client) Logger() *log.Logger { return c.logger }

// Close releases the bulk channel, the Bolt driver and the cache. It is safe
// to call more than once.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		var errs []error
		if err := c.selector.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := closeRunner(ctx, c.runner); err != nil {
			errs = append(errs, err)
		}
		if err := c.cache.Close(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			c.closeErr = errors.Wrap(errors.ErrCodeTransport, joinErrors(errs), "close client")
		}
	})
	return c.closeErr
}

func closeRunner(ctx context.Context, r channel.Runner) error {
	switch cl := r.(type) {
	case interface{ Close(context.Context) error }:
		return cl.Close(ctx)
	case io.Closer:
		return cl.Close()
	}
	return nil
}

// Option configures [Connect].
type Option func(*options)

type options struct {
	logger       *log.Logger
	hooks        observability.Hooks
	cache        cache.Cache
	keyer        cache.Keyer
	retry        retry.Policy
	registry     *version.Registry
	deprecations *Deprecations
	marshaller   *marshal.Marshaller
	renderer     progress.RendererFactory
	runner       channel.Runner
	dial         channel.DialFunc
	negotiator   channel.NegotiateFunc
}

func defaultOptions(cfg config.Config) options {
	keyer := cache.NewDefaultKeyer()
	if cfg.Cache.Prefix != "" {
		keyer = cache.NewScopedKeyer(keyer, cfg.Cache.Prefix)
	}
	return options{
		logger:       log.New(io.Discard),
		hooks:        observability.Noop(),
		keyer:        keyer,
		retry:        cfg.RetryPolicy(),
		registry:     version.DefaultRegistry(),
		deprecations: DefaultDeprecations(),
		marshaller:   marshal.New(),
		renderer:     progress.Auto(os.Stderr),
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithHooks sets observability hooks.
func WithHooks(h observability.Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithCache sets the metadata cache. The client closes it on Close.
func WithCache(c cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithKeyer sets the cache key generator.
func WithKeyer(k cache.Keyer) Option {
	return func(o *options) {
		if k != nil {
			o.keyer = k
		}
	}
}

// WithRetry replaces the retry policy derived from the configuration.
func WithRetry(p retry.Policy) Option {
	return func(o *options) { o.retry = p }
}

// WithRegistry replaces the version gate registry.
func WithRegistry(r *version.Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithDeprecations replaces the deprecation table.
func WithDeprecations(d *Deprecations) Option {
	return func(o *options) { o.deprecations = d }
}

// WithMarshaller replaces the parameter marshaller.
func WithMarshaller(m *marshal.Marshaller) Option {
	return func(o *options) {
		if m != nil {
			o.marshaller = m
		}
	}
}

// WithRenderer sets how job progress is displayed. Nil hides progress.
func WithRenderer(f progress.RendererFactory) Option {
	return func(o *options) { o.renderer = f }
}

// WithRunner uses r instead of opening a Bolt driver. If r has a
// Close(context.Context) or Close() method it is called on Close.
func WithRunner(r channel.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithDial replaces the Flight dialer used during negotiation.
func WithDial(d channel.DialFunc) Option {
	return func(o *options) { o.dial = d }
}

// WithNegotiator replaces bulk channel negotiation entirely.
func WithNegotiator(n channel.NegotiateFunc) Option {
	return func(o *options) { o.negotiator = n }
}
