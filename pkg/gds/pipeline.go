package gds

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/channel"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/namespace"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/version"
)

// Stage names, in pipeline order.
const (
	StageDeprecation = "deprecation"
	StageGate        = "gate"
	StageResolve     = "resolve"
	StageMarshal     = "marshal"
	StageSelect      = "select"
	StageMonitor     = "monitor"
	StageRetry       = "retry"
)

// Request carries one call through the pipeline. Each stage fills in the
// fields the following stages need.
type Request struct {
	Namespace namespace.Namespace
	Args      marshal.Args

	Procedure namespace.Procedure // Set by the resolve stage
	Call      channel.Call        // Set by the marshal stage
	Channel   channel.Channel     // Set by the select stage
}

// Handler executes a request.
type Handler func(ctx context.Context, req *Request) (*table.Table, error)

// Stage is one named step of the dispatch pipeline. Wrap receives the rest
// of the pipeline and returns a handler that runs this step around it.
type Stage struct {
	Name string
	Wrap func(next Handler) Handler
}

// chain composes stages around final, outermost first.
func chain(stages []Stage, final Handler) Handler {
	h := final
	for i := len(stages) - 1; i >= 0; i-- {
		h = stages[i].Wrap(h)
	}
	return h
}

// stages returns the client's pipeline.
func (c *Client) stages() []Stage {
	return []Stage{
		{StageDeprecation, c.deprecationStage},
		{StageGate, c.gateStage},
		{StageResolve, c.resolveStage},
		{StageMarshal, c.marshalStage},
		{StageSelect, c.selectStage},
		{StageMonitor, c.monitorStage},
		{StageRetry, c.retryStage},
	}
}

func (c *Client) deprecationStage(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*table.Table, error) {
		name := req.Namespace.String()
		if d, ok := c.deprecations.Lookup(name, c.serverVersion); ok {
			if _, seen := c.warned.LoadOrStore(name, struct{}{}); !seen {
				c.logger.Warn("deprecated endpoint", "namespace", name, "replacement", d.Replacement, "since", d.Since)
			}
		}
		return next(ctx, req)
	}
}

func (c *Client) gateStage(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*table.Table, error) {
		if err := c.registry.Check(req.Namespace.String(), c.serverVersion); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

func (c *Client) resolveStage(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*table.Table, error) {
		proc, err := c.catalog.Lookup(ctx, req.Namespace)
		if err != nil {
			if errors.Local(err) {
				return nil, err
			}
			return nil, &errors.ProcedureError{Namespace: req.Namespace.String(), Code: errors.GetCode(err), Err: err}
		}
		if proc.SignatureErr != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, proc.SignatureErr, "%s has an unreadable signature", proc.Name)
		}
		req.Procedure = proc
		return next(ctx, req)
	}
}

func (c *Client) marshalStage(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*table.Table, error) {
		params, err := c.marshaller.Marshal(req.Procedure.Signature, req.Args)
		if err != nil {
			return nil, err
		}
		req.Call = channel.Call{Namespace: req.Namespace.String(), Params: params}
		return next(ctx, req)
	}
}

func (c *Client) selectStage(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*table.Table, error) {
		req.Channel = c.selector.Select(ctx, req.Call)
		return next(ctx, req)
	}
}

func (c *Client) monitorStage(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*table.Table, error) {
		return c.monitor.Run(ctx, req.Call.Params.JobID, req.Call.Namespace, func(ctx context.Context) (*table.Table, error) {
			return next(ctx, req)
		})
	}
}

func (c *Client) retryStage(next Handler) Handler {
	return func(ctx context.Context, req *Request) (*table.Table, error) {
		policy := c.retry
		user := policy.OnRetry
		policy.OnRetry = func(attempt int, err error, delay time.Duration) {
			c.logger.Warn("retrying call", "namespace", req.Call.Namespace, "attempt", attempt, "delay", delay, "err", err)
			c.hooks.Call.OnRetry(ctx, req.Call.Namespace, attempt, err)
			if user != nil {
				user(attempt, err, delay)
			}
		}

		var res *table.Table
		err := policy.Do(ctx, func(ctx context.Context) error {
			var err error
			res, err = next(ctx, req)
			return err
		})
		return res, err
	}
}

// execute is the innermost handler: it runs the call on the selected
// channel and tags failures with the namespace.
func (c *Client) execute(ctx context.Context, req *Request) (*table.Table, error) {
	ch := req.Channel
	if ch == nil {
		ch = c.selector.Select(ctx, req.Call)
	}
	name := req.Call.Namespace

	c.hooks.Call.OnCallStart(ctx, name, ch.Name())
	start := time.Now()
	res, err := c.selector.Dispatch(ctx, ch, req.Call)
	c.hooks.Call.OnCallComplete(ctx, name, ch.Name(), time.Since(start), err)

	if err != nil {
		c.logger.Debug("call failed", "namespace", name, "channel", ch.Name(), "err", err)
		return nil, &errors.ProcedureError{Namespace: name, Code: failureCode(err), Err: err}
	}
	c.logger.Debug("call finished", "namespace", name, "channel", ch.Name(), "rows", res.Len(), "duration", time.Since(start))
	return res, nil
}

// failureCode classifies a channel error as a transport fault or a failure
// reported by the server.
func failureCode(err error) errors.Code {
	if code := errors.GetCode(err); code != "" {
		return code
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrCodeTransport
	}
	var connErr *neo4j.ConnectivityError
	if stderrors.As(err, &connErr) {
		return errors.ErrCodeTransport
	}
	var dbErr *neo4j.Neo4jError
	if stderrors.As(err, &dbErr) {
		if neo4j.IsRetryable(dbErr) {
			return errors.ErrCodeTransport
		}
		return errors.ErrCodeProcedureFailed
	}
	if s, ok := status.FromError(err); ok {
		if s.Code() == codes.Unavailable {
			return errors.ErrCodeTransport
		}
		return errors.ErrCodeProcedureFailed
	}
	return errors.ErrCodeTransport
}

// Deprecation describes a namespace that has been replaced.
type Deprecation struct {
	Replacement string
	Since       version.ServerVersion
}

// Deprecations maps deprecated namespaces to their replacements. It is safe
// for concurrent use.
type Deprecations struct {
	mu      sync.RWMutex
	entries map[string]Deprecation
}

// NewDeprecations creates an empty table.
func NewDeprecations() *Deprecations {
	return &Deprecations{entries: make(map[string]Deprecation)}
}

// DefaultDeprecations lists the endpoints renamed during the 2.x series.
func DefaultDeprecations() *Deprecations {
	d := NewDeprecations()
	v24 := version.New(2, 4, 0)
	d.Add("gds.beta.listProgress", "gds.listProgress", version.ListProgressGA)
	d.Add("gds.beta.graph.project.subgraph", "gds.graph.filter", version.New(2, 5, 0))
	d.Add("gds.graph.streamNodeProperties", "gds.graph.nodeProperties.stream", v24)
	d.Add("gds.graph.streamNodeProperty", "gds.graph.nodeProperty.stream", v24)
	d.Add("gds.graph.streamRelationshipProperties", "gds.graph.relationshipProperties.stream", v24)
	d.Add("gds.graph.streamRelationshipProperty", "gds.graph.relationshipProperty.stream", v24)
	d.Add("gds.graph.writeNodeProperties", "gds.graph.nodeProperties.write", v24)
	d.Add("gds.graph.writeRelationship", "gds.graph.relationship.write", v24)
	d.Add("gds.graph.removeNodeProperties", "gds.graph.nodeProperties.drop", v24)
	d.Add("gds.graph.deleteRelationships", "gds.graph.relationships.drop", v24)
	return d
}

// Add registers ns as deprecated in favour of replacement from since on.
func (d *Deprecations) Add(ns, replacement string, since version.ServerVersion) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[ns] = Deprecation{Replacement: replacement, Since: since}
}

// Lookup returns the deprecation of ns if it applies to server.
func (d *Deprecations) Lookup(ns string, server version.ServerVersion) (Deprecation, bool) {
	if d == nil {
		return Deprecation{}, false
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[ns]
	if !ok || server.Less(e.Since) {
		return Deprecation{}, false
	}
	return e, true
}
