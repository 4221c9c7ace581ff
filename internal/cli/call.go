package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/gateway"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/namespace"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/observability"
)

// callOptions holds flags for the call command.
type callOptions struct {
	config  []string
	params  []string
	asJSON  bool
	maxRows int
}

// callCommand creates the call command for running a single procedure.
func (c *CLI) callCommand() *cobra.Command {
	opts := callOptions{}

	cmd := &cobra.Command{
		Use:   "call <procedure> [args...]",
		Short: "Run a GDS procedure or function",
		Long: `Run a GDS procedure or function and print its result.

Positional arguments fill the procedure's formal parameters in order.
Values are parsed as JSON when possible, so 42, 0.85, true, null,
["a","b"] and {"k":1} keep their types; anything else is a string.

The "gds." prefix is optional.`,
		Example: `  # Mutate PageRank scores into the projected graph
  gds call pageRank.mutate myGraph --config mutateProperty=rank --config maxIterations=20

  # Stream a node property with a named parameter
  gds call graph.nodeProperty.stream myGraph --param nodeProperties=rank --json`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: c.completeProcedure,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCall(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.config, "config", "c", nil, "configuration entry key=value (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.params, "param", "p", nil, "named parameter key=value (repeatable)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the result as JSON")
	cmd.Flags().IntVar(&opts.maxRows, "max-rows", 50, "maximum rows to print in table output (0 for all)")

	return cmd
}

func (c *CLI) runCall(cmd *cobra.Command, args []string, opts callOptions) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	ns := procedureNamespace(args[0])
	callArgs, err := buildArgs(args[1:], opts.params, opts.config)
	if err != nil {
		return err
	}

	client, err := c.connect(ctx, observability.Noop())
	if err != nil {
		return err
	}
	defer client.Close(context.WithoutCancel(ctx))

	sw := newStopwatch(logger)
	result, err := client.Call(ctx, ns, callArgs)
	if err != nil {
		return err
	}
	sw.done(fmt.Sprintf("%s returned %d rows", ns, result.Len()))

	if opts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	printResult(result, opts.maxRows)
	return nil
}

// procedureNamespace parses a dotted procedure name, adding the root
// namespace when it is missing.
func procedureNamespace(name string) namespace.Namespace {
	if name != "gds" && !strings.HasPrefix(name, "gds.") {
		name = "gds." + name
	}
	return namespace.Parse(name)
}

// buildArgs converts command-line values into call arguments.
func buildArgs(positional, params, config []string) (marshal.Args, error) {
	args := marshal.Args{}
	for _, v := range positional {
		args.Positional = append(args.Positional, parseValue(v))
	}
	var err error
	if args.Named, err = parsePairs(params); err != nil {
		return marshal.Args{}, err
	}
	if args.Config, err = parsePairs(config); err != nil {
		return marshal.Args{}, err
	}
	return args, nil
}

// parsePairs parses key=value entries. Later keys override earlier ones.
func parsePairs(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, errors.New(errors.ErrCodeInvalidParameter, "expected key=value, got %q", p)
		}
		out[k] = parseValue(v)
	}
	return out, nil
}

// parseValue decodes s as JSON, keeping integers as int64. Values that are
// not valid JSON are returned as plain strings.
func parseValue(s string) any {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return s
	}
	return gateway.Normalise(v)
}
