package cli

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/gateway"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/observability"
)

// serveCommand runs the HTTP gateway in front of a connected client.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		noMetrics bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve procedure calls over HTTP",
		Long: `Serve the connected client over HTTP.

Routes:
  GET  /healthz
  GET  /v1/version
  GET  /v1/procedures?prefix=gds.graph
  POST /v1/call/{namespace}   body: {"args": [...], "params": {...}, "config": {...}}
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Gateway.Addr = addr
			}
			cfg.Progress.Enabled = false

			reg := prometheus.NewRegistry()
			hooks := observability.Hooks{}
			opts := []gateway.Option{gateway.WithLogger(logger)}
			if !noMetrics {
				reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
				hooks = observability.NewPrometheus(reg).Hooks()
				opts = append(opts,
					gateway.WithHooks(hooks.HTTP),
					gateway.WithMetrics(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
				)
			}

			client, err := c.connectWith(ctx, cfg, hooks)
			if err != nil {
				return err
			}
			defer client.Close(context.WithoutCancel(ctx))

			printSuccess("Connected to GDS %s (%s)", client.ServerVersion(), client.Mode(ctx))
			printDetail("Listening on %s", cfg.Gateway.Addr)
			return gateway.New(client, opts...).ListenAndServe(ctx, cfg.Gateway.Addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable the /metrics endpoint")

	return cmd
}
