package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/marshal"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/namespace"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/observability"
)

// proceduresCommand lists the server's procedure catalog.
func (c *CLI) proceduresCommand() *cobra.Command {
	var (
		refresh    bool
		signatures bool
	)

	cmd := &cobra.Command{
		Use:     "procedures [prefix]",
		Aliases: []string{"list", "ls"},
		Short:   "List procedures and functions available on the server",
		Example: `  gds procedures
  gds procedures gds.graph --signatures`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			prefix := ""
			if len(args) == 1 {
				prefix = procedureNamespace(args[0]).String()
			}

			client, err := c.connect(ctx, observability.Noop())
			if err != nil {
				return err
			}
			defer client.Close(context.WithoutCancel(ctx))

			if refresh {
				if err := client.RefreshCatalog(ctx); err != nil {
					return err
				}
			}
			procs, err := client.Procedures(ctx, prefix)
			if err != nil {
				return err
			}
			if len(procs) == 0 {
				printInfo("No procedures match %q", prefix)
				return nil
			}

			fmt.Println(renderProcedures(procs, signatures))
			printDetail("%d procedures on GDS %s", len(procs), client.ServerVersion())
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload the catalog from the server")
	cmd.Flags().BoolVar(&signatures, "signatures", false, "show parameter signatures instead of descriptions")

	return cmd
}

// renderProcedures formats procs as a table.
func renderProcedures(procs []namespace.Procedure, signatures bool) string {
	last := "Description"
	if signatures {
		last = "Parameters"
	}

	rows := make([][]string, 0, len(procs))
	for _, p := range procs {
		detail := p.Description
		if signatures {
			detail = formatParams(p)
		}
		rows = append(rows, []string{p.Name, string(p.Kind), truncate(detail, 80)})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Name", "Kind", last).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return StyleHighlight
			case col == 1:
				return StyleDim
			}
			return StyleValue
		})
	return t.Render()
}

func formatParams(p namespace.Procedure) string {
	if p.SignatureErr != nil {
		return "unparsable signature"
	}
	parts := make([]string, 0, len(p.Signature.Params))
	for _, param := range p.Signature.Params {
		parts = append(parts, formatParam(param))
	}
	return strings.Join(parts, ", ")
}

func formatParam(p marshal.Param) string {
	s := p.Placeholder() + " " + string(p.Type)
	if p.Optional {
		s += "?"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
