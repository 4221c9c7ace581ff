package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
)

// Bulk protocol version tags. Servers that advertise no versions speak v0,
// which takes bare action names and unwrapped ticket bodies.
const (
	ProtocolV0 = "v0"
	ProtocolV1 = "v1"
)

// Bulk action names, sent as "<version>/<name>" from v1 on.
const (
	ActionCreateGraph                 = "CREATE_GRAPH"
	ActionNodeLoadDone                = "NODE_LOAD_DONE"
	ActionRelationshipLoadDone        = "RELATIONSHIP_LOAD_DONE"
	ActionWriteBackEnable             = "WRITE_BACK_ENABLE"
	ActionWriteNodeProperties         = "WRITE_NODE_PROPERTIES"
	ActionWriteRelationshipProperties = "WRITE_RELATIONSHIP_PROPERTIES"
)

type streamShape int

const (
	shapeSingle   streamShape = iota // one property renamed to propertyValue
	shapeMulti                       // wide properties melted to long form
	shapeTopology                    // returned as-is
)

type bulkProc struct {
	shape     streamShape
	entity    string // "node" or "relationship"
	nameCol   string // property-name column after melting
	propParam string // configuration key of the property list
}

// columns returns the wide column set the server streams for proc. It is
// used when an empty stream carries no schema.
func (p bulkProc) columns(props []string, listLabels bool) []string {
	var cols []string
	if p.entity == "node" {
		cols = append(cols, "nodeId")
	} else {
		cols = append(cols, "sourceNodeId", "targetNodeId", "relationshipType")
	}
	cols = append(cols, props...)
	if listLabels {
		cols = append(cols, "nodeLabels")
	}
	return cols
}

// bulkProcedures are the procedures the bulk channel can serve.
var bulkProcedures = map[string]bulkProc{
	"gds.graph.nodeProperty.stream":           {shapeSingle, "node", "", "node_property"},
	"gds.graph.nodeProperties.stream":         {shapeMulti, "node", "nodeProperty", "node_properties"},
	"gds.graph.relationshipProperty.stream":   {shapeSingle, "relationship", "", "relationship_property"},
	"gds.graph.relationshipProperties.stream": {shapeMulti, "relationship", "relationshipProperty", "relationship_properties"},
	"gds.graph.relationships.stream":          {shapeTopology, "relationship", "", ""},
	"gds.beta.graph.relationships.stream":     {shapeTopology, "relationship", "", ""},
}

// BulkProcedures returns the names of procedures the bulk channel serves.
func BulkProcedures() []string {
	out := make([]string, 0, len(bulkProcedures))
	for n := range bulkProcedures {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// BulkChannel executes calls over Arrow Flight.
type BulkChannel struct {
	transport FlightTransport
	desc      Descriptor
	database  string

	mu        sync.Mutex
	uploading map[string]bool

	writeBack atomic.Bool
}

// NewBulkChannel creates a bulk channel over t for database.
func NewBulkChannel(t FlightTransport, desc Descriptor, database string) *BulkChannel {
	if desc.Version == "" {
		desc.Version = ProtocolV1
	}
	return &BulkChannel{
		transport: t,
		desc:      desc,
		database:  database,
		uploading: map[string]bool{},
	}
}

// Name returns "bulk".
func (b *BulkChannel) Name() string { return "bulk" }

// Descriptor returns the negotiated descriptor.
func (b *BulkChannel) Descriptor() Descriptor { return b.desc }

// Supports reports whether call is a property or topology stream with a
// graph name.
func (b *BulkChannel) Supports(call Call) bool {
	if _, ok := bulkProcedures[call.Namespace]; !ok {
		return false
	}
	_, ok := param(call.Params, "graphName").(string)
	return ok
}

// Execute streams the call's result over Flight and reshapes it to the
// column set of the equivalent Cypher procedure.
func (b *BulkChannel) Execute(ctx context.Context, call Call) (*table.Table, error) {
	proc, ok := bulkProcedures[call.Namespace]
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "%s is not served by the bulk channel", call.Namespace)
	}
	graphName, _ := param(call.Params, "graphName").(string)

	cfg := map[string]any{}
	var props []string
	listLabels := false
	switch proc.entity {
	case "node":
		listLabels = call.Params.Config["listNodeLabels"] == true
		cfg["node_labels"] = stringsOf(param(call.Params, "nodeLabels"), "*")
		cfg["list_node_labels"] = listLabels
		props = stringsOf(param(call.Params, "nodeProperties", "nodeProperty"))
	case "relationship":
		cfg["relationship_types"] = stringsOf(param(call.Params, "relationshipTypes"), "*")
		props = stringsOf(param(call.Params, "relationshipProperties", "relationshipProperty"))
	}
	if proc.propParam != "" {
		if proc.shape == shapeSingle && len(props) > 0 {
			cfg[proc.propParam] = props[0]
		} else {
			cfg[proc.propParam] = props
		}
	}

	schema, records, err := b.get(ctx, call.Namespace, graphName, cfg, call.Params.Config["concurrency"])
	if err != nil {
		return nil, err
	}
	defer release(records)

	t := recordsToTable(schema, records, proc.columns(props, listLabels))
	switch proc.shape {
	case shapeSingle:
		return renameValue(t), nil
	case shapeMulti:
		return melt(t, proc.nameCol, props), nil
	}
	return t, nil
}

// StreamNodeProperties returns node properties as wide columnar batches:
// nodeId followed by one column per property. The caller releases them.
func (b *BulkChannel) StreamNodeProperties(ctx context.Context, graphName string, properties, labels []string) ([]arrow.Record, error) {
	if len(labels) == 0 {
		labels = []string{"*"}
	}
	_, records, err := b.get(ctx, "gds.graph.nodeProperties.stream", graphName, map[string]any{
		"node_properties": properties,
		"node_labels":     labels,
	}, nil)
	return records, err
}

// StreamRelationshipProperties returns relationship properties as wide
// columnar batches. The caller releases them.
func (b *BulkChannel) StreamRelationshipProperties(ctx context.Context, graphName string, properties, types []string) ([]arrow.Record, error) {
	if len(types) == 0 {
		types = []string{"*"}
	}
	_, records, err := b.get(ctx, "gds.graph.relationshipProperties.stream", graphName, map[string]any{
		"relationship_properties": properties,
		"relationship_types":      types,
	}, nil)
	return records, err
}

func (b *BulkChannel) get(ctx context.Context, procedure, graphName string, cfg map[string]any, concurrency any) (*arrow.Schema, []arrow.Record, error) {
	body := map[string]any{
		"graph_name":     graphName,
		"database":       b.database,
		"procedure_name": procedure,
		"configuration":  cfg,
	}
	if concurrency != nil {
		body["concurrency"] = concurrency
	}
	ticket, err := command("GET_COMMAND", b.desc.Version, body)
	if err != nil {
		return nil, nil, err
	}
	return b.transport.Get(ctx, ticket)
}

// GraphUpload describes a graph built from columnar batches. Node batches
// need a nodeId column; relationship batches need sourceNodeId and
// targetNodeId.
type GraphUpload struct {
	GraphName     string
	Nodes         []arrow.Record
	Relationships []arrow.Record
	Concurrency   int

	UndirectedRelationshipTypes []string
}

// ConstructGraph creates a graph in the server's catalog from columnar
// batches. At most one upload per graph name may be in flight; a second one
// fails with UPLOAD_IN_PROGRESS.
func (b *BulkChannel) ConstructGraph(ctx context.Context, up GraphUpload) (*table.Table, error) {
	if err := b.acquire(up.GraphName); err != nil {
		return nil, err
	}
	defer b.releaseUpload(up.GraphName)

	create := map[string]any{"name": up.GraphName, "database_name": b.database}
	if up.Concurrency > 0 {
		create["concurrency"] = up.Concurrency
	}
	if len(up.UndirectedRelationshipTypes) > 0 {
		create["undirected_relationship_types"] = up.UndirectedRelationshipTypes
	}
	if _, err := b.action(ctx, ActionCreateGraph, create); err != nil {
		return nil, err
	}

	if err := b.put(ctx, up.GraphName, "node", up.Nodes); err != nil {
		return nil, err
	}
	if _, err := b.action(ctx, ActionNodeLoadDone, map[string]any{"name": up.GraphName}); err != nil {
		return nil, err
	}

	if err := b.put(ctx, up.GraphName, "relationship", up.Relationships); err != nil {
		return nil, err
	}
	return b.action(ctx, ActionRelationshipLoadDone, map[string]any{"name": up.GraphName})
}

func (b *BulkChannel) acquire(graphName string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.uploading[graphName] {
		return errors.New(errors.ErrCodeUploadInProgress, "an upload for graph '%s' is already in progress", graphName)
	}
	b.uploading[graphName] = true
	return nil
}

func (b *BulkChannel) releaseUpload(graphName string) {
	b.mu.Lock()
	delete(b.uploading, graphName)
	b.mu.Unlock()
}

// EnableWriteBack switches on the write-back sub-protocol. Write operations
// fail until it has succeeded.
func (b *BulkChannel) EnableWriteBack(ctx context.Context) error {
	if _, err := b.action(ctx, ActionWriteBackEnable, map[string]any{"database": b.database}); err != nil {
		return err
	}
	b.writeBack.Store(true)
	return nil
}

// WriteBackEnabled reports whether EnableWriteBack has succeeded.
func (b *BulkChannel) WriteBackEnabled() bool { return b.writeBack.Load() }

// WriteNodeProperties writes in-memory node properties back to the database.
func (b *BulkChannel) WriteNodeProperties(ctx context.Context, graphName string, properties []string, concurrency int) (*table.Table, error) {
	return b.write(ctx, ActionWriteNodeProperties, graphName, "node_properties", properties, concurrency)
}

// WriteRelationshipProperties writes in-memory relationship properties back
// to the database.
func (b *BulkChannel) WriteRelationshipProperties(ctx context.Context, graphName string, properties []string, concurrency int) (*table.Table, error) {
	return b.write(ctx, ActionWriteRelationshipProperties, graphName, "relationship_properties", properties, concurrency)
}

func (b *BulkChannel) write(ctx context.Context, action, graphName, key string, properties []string, concurrency int) (*table.Table, error) {
	if !b.writeBack.Load() {
		return nil, errors.New(errors.ErrCodeWriteBackDisabled, "write-back is not enabled; call EnableWriteBack before writing '%s'", graphName)
	}
	body := map[string]any{"graph_name": graphName, "database": b.database, key: properties}
	if concurrency > 0 {
		body["concurrency"] = concurrency
	}
	return b.action(ctx, action, body)
}

func (b *BulkChannel) put(ctx context.Context, graphName, entity string, records []arrow.Record) error {
	desc, err := command("PUT_COMMAND", b.desc.Version, map[string]any{"name": graphName, "entity_type": entity})
	if err != nil {
		return err
	}
	return b.transport.Put(ctx, desc, records)
}

// action sends an action and decodes its JSON results into a table.
func (b *BulkChannel) action(ctx context.Context, name string, body any) (*table.Table, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode %s", name)
	}
	results, err := b.transport.Action(ctx, actionType(b.desc.Version, name), payload)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	for _, r := range results {
		if len(r) == 0 {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal(r, &row); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "decode %s result", name)
		}
		rows = append(rows, row)
	}
	return rowsToTable(rows), nil
}

// Close closes the Flight transport.
func (b *BulkChannel) Close() error {
	return b.transport.Close()
}

// actionType prefixes name with version; v0 uses bare names.
func actionType(version, name string) string {
	if version == ProtocolV0 {
		return name
	}
	return version + "/" + name
}

// command encodes a ticket or put descriptor. From v1 on the body is wrapped
// in a versioned envelope.
func command(name, version string, body any) ([]byte, error) {
	var v any = body
	if version != ProtocolV0 {
		v = map[string]any{"name": name, "version": version, "body": body}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode %s", name)
	}
	return data, nil
}

func rowsToTable(rows []map[string]any) *table.Table {
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !slices.Contains(cols, k) {
				cols = append(cols, k)
			}
		}
	}
	slices.Sort(cols)
	return table.FromRecords(cols, rows)
}

// param returns the first positional value declared under one of names.
func param(cp marshal.CallParameters, names ...string) any {
	for _, v := range cp.Positional {
		if slices.Contains(names, v.Name) {
			return v.Value
		}
	}
	return nil
}

// stringsOf normalises a string or list of strings; def is used when v is nil.
func stringsOf(v any, def ...string) []string {
	switch s := v.(type) {
	case nil:
		return def
	case string:
		return []string{s}
	case []string:
		return s
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			out = append(out, fmt.Sprint(e))
		}
		return out
	}
	return []string{fmt.Sprint(v)}
}

func release(records []arrow.Record) {
	for _, r := range records {
		r.Release()
	}
}
