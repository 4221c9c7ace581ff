package gds

import (
	"context"
	"time"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/channel"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
)

// Namespaces reported in errors from bulk-only operations.
const (
	nsConstruct          = "gds.graph.construct"
	nsWriteBackEnable    = "gds.arrow.writeBack.enable"
	nsWriteNodeProps     = "gds.graph.nodeProperties.write"
	nsWriteRelationships = "gds.graph.relationshipProperties.write"
)

// Bulk returns the negotiated bulk channel. It fails with UNSUPPORTED when
// the connection is query-only.
func (c *Client) Bulk(ctx context.Context) (*channel.BulkChannel, error) {
	return c.selector.Bulk(ctx)
}

// ConstructGraph uploads a graph over the bulk channel. It has no query
// channel equivalent.
func (c *Client) ConstructGraph(ctx context.Context, up channel.GraphUpload) (*table.Table, error) {
	return c.bulkOp(ctx, nsConstruct, func(ctx context.Context, b *channel.BulkChannel) (*table.Table, error) {
		return b.ConstructGraph(ctx, up)
	})
}

// EnableWriteBack enables bulk write-back for this connection.
func (c *Client) EnableWriteBack(ctx context.Context) error {
	_, err := c.bulkOp(ctx, nsWriteBackEnable, func(ctx context.Context, b *channel.BulkChannel) (*table.Table, error) {
		return nil, b.EnableWriteBack(ctx)
	})
	return err
}

// WriteNodeProperties writes node properties of graphName back to the
// database over the bulk channel.
func (c *Client) WriteNodeProperties(ctx context.Context, graphName string, properties []string, concurrency int) (*table.Table, error) {
	return c.bulkOp(ctx, nsWriteNodeProps, func(ctx context.Context, b *channel.BulkChannel) (*table.Table, error) {
		return b.WriteNodeProperties(ctx, graphName, properties, concurrency)
	})
}

// WriteRelationshipProperties writes relationship properties of graphName
// back to the database over the bulk channel.
func (c *Client) WriteRelationshipProperties(ctx context.Context, graphName string, properties []string, concurrency int) (*table.Table, error) {
	return c.bulkOp(ctx, nsWriteRelationships, func(ctx context.Context, b *channel.BulkChannel) (*table.Table, error) {
		return b.WriteRelationshipProperties(ctx, graphName, properties, concurrency)
	})
}

// bulkOp runs fn on the bulk channel with hooks and the namespace attached
// to failures. Bulk operations are never retried.
func (c *Client) bulkOp(ctx context.Context, ns string, fn func(context.Context, *channel.BulkChannel) (*table.Table, error)) (*table.Table, error) {
	if err := c.registry.Check(ns, c.serverVersion); err != nil {
		return nil, err
	}
	b, err := c.selector.Bulk(ctx)
	if err != nil {
		return nil, &errors.ProcedureError{Namespace: ns, Code: errors.GetCode(err), Err: err}
	}

	c.hooks.Call.OnCallStart(ctx, ns, b.Name())
	start := time.Now()
	res, err := fn(ctx, b)
	c.hooks.Call.OnCallComplete(ctx, ns, b.Name(), time.Since(start), err)
	if err != nil {
		return nil, &errors.ProcedureError{Namespace: ns, Code: failureCode(err), Err: err}
	}
	return res, nil
}
