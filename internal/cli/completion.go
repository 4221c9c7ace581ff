package cli

import (
	"context"
	"encoding/json"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/cache"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/namespace"
)

// completionCommand prints shell completion scripts. Procedure names for
// `gds call` complete from the cached catalog, without contacting a server.
func (c *CLI) completionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate a completion script for gds.

Procedure names passed to "gds call" are completed from the catalog cached
by earlier commands; run "gds procedures" once to populate it.`,
		Example: `  source <(gds completion bash)
  gds completion zsh > "${fpath[1]}/_gds"
  gds completion fish > ~/.config/fish/completions/gds.fish`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := cmd.Root()
			switch args[0] {
			case "zsh":
				return root.GenZshCompletion(os.Stdout)
			case "fish":
				return root.GenFishCompletion(os.Stdout, true)
			case "powershell":
				return root.GenPowerShellCompletionWithDesc(os.Stdout)
			}
			return root.GenBashCompletionV2(os.Stdout, true)
		},
	}
}

// completeProcedure completes the first argument of `gds call`.
func (c *CLI) completeProcedure(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	dir, err := c.cacheDir()
	if err != nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return matchProcedures(cachedProcedureNames(dir), toComplete), cobra.ShellCompDirectiveNoFileComp
}

// cachedProcedureNames returns the procedure names of every catalog in the
// file cache at dir.
func cachedProcedureNames(dir string) []string {
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil
	}
	infos, err := fc.Entries()
	if err != nil {
		return nil
	}

	var names []string
	for _, info := range infos {
		if info.Kind != cache.KindCatalog || info.Expired {
			continue
		}
		data, hit, err := fc.Get(context.Background(), info.Key)
		if err != nil || !hit {
			continue
		}
		var entries []namespace.Entry
		if json.Unmarshal(data, &entries) != nil {
			continue
		}
		for _, e := range entries {
			names = append(names, e.Name)
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// matchProcedures filters names by prefix. The "gds." root is optional on
// the command line, so it is dropped from candidates unless typed.
func matchProcedures(names []string, prefix string) []string {
	full := strings.HasPrefix(prefix, "gds.")
	var out []string
	for _, n := range names {
		cand := n
		if !full {
			cand = strings.TrimPrefix(n, "gds.")
		}
		if strings.HasPrefix(cand, prefix) {
			out = append(out, cand)
		}
	}
	return out
}
