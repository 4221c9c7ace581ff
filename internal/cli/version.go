package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/buildinfo"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/observability"
)

// versionCommand prints client build info and, when reachable, the server's
// GDS version and negotiated channel mode.
func (c *CLI) versionCommand() *cobra.Command {
	var clientOnly bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show client and server versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printKeyValue("client", buildinfo.Version)
			printKeyValue("commit", buildinfo.Commit)
			printKeyValue("built", buildinfo.Date)
			if clientOnly {
				return nil
			}

			ctx := cmd.Context()
			client, err := c.connect(ctx, observability.Noop())
			if err != nil {
				return err
			}
			defer client.Close(context.WithoutCancel(ctx))

			printKeyValue("server", client.ServerVersion().String())
			printKeyValue("mode", client.Mode(ctx).String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&clientOnly, "client", false, "only print the client version")

	return cmd
}
