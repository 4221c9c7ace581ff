package channel

import (
	"context"
	"strings"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
)

// QueryChannel executes calls as Cypher statements. It supports every call.
type QueryChannel struct {
	runner Runner
}

// NewQueryChannel creates a query channel on r.
func NewQueryChannel(r Runner) *QueryChannel {
	return &QueryChannel{runner: r}
}

// Name returns "query".
func (q *QueryChannel) Name() string { return "query" }

// Supports always returns true.
func (q *QueryChannel) Supports(Call) bool { return true }

// Execute runs the statement built by [Statement].
func (q *QueryChannel) Execute(ctx context.Context, call Call) (*table.Table, error) {
	query, params := Statement(call)
	return q.runner.Run(ctx, query, params)
}

// Run runs an arbitrary statement on the underlying runner.
func (q *QueryChannel) Run(ctx context.Context, query string, params map[string]any) (*table.Table, error) {
	return q.runner.Run(ctx, query, params)
}

// Statement renders call as Cypher:
//
//	CALL gds.pageRank.mutate($graph_name, $config)
//	RETURN gds.version() AS result
func Statement(call Call) (string, map[string]any) {
	placeholders := call.Params.Placeholders()
	args := make([]string, len(placeholders))
	for i, p := range placeholders {
		args[i] = "$" + p
	}
	invocation := call.Namespace + "(" + strings.Join(args, ", ") + ")"

	if call.Params.Kind == marshal.KindFunction {
		return "RETURN " + invocation + " AS result", call.Params.Map()
	}
	return "CALL " + invocation, call.Params.Map()
}
