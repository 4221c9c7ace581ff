package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/cache"
)

// cacheCommand groups the commands that inspect the on-disk catalog and
// version cache.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the procedure catalog and server version cache",
	}

	cmd.AddCommand(c.cacheListCommand())
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

func (c *CLI) cacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List cached catalogs and server versions",
		RunE: func(cmd *cobra.Command, args []string) error {
			fc, ok, err := c.openFileCache()
			if err != nil || !ok {
				return err
			}
			entries, err := fc.Entries()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				printInfo("Cache is empty")
				return nil
			}
			fmt.Println(renderCacheEntries(entries, time.Now()))
			printDetail("Directory: %s", fc.Dir())
			return nil
		},
	}
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	var kinds []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached catalogs and server versions",
		Example: `  gds cache clear
  gds cache clear --kind catalog`,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range kinds {
				if k != cache.KindCatalog && k != cache.KindVersion {
					return fmt.Errorf("unknown entry kind %q (want %s or %s)", k, cache.KindCatalog, cache.KindVersion)
				}
			}
			fc, ok, err := c.openFileCache()
			if err != nil || !ok {
				return err
			}

			n, err := fc.Clear(kinds...)
			printSuccess("Cleared %d cached entries", n)
			if err != nil {
				printWarning("Some entries could not be removed: %v", err)
			}
			printDetail("Directory: %s", fc.Dir())
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "only clear entries of this kind (catalog, version)")
	return cmd
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.cacheDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

// openFileCache opens the file cache without creating its directory. ok is
// false, with a message printed, when nothing has been cached yet.
func (c *CLI) openFileCache() (fc *cache.FileCache, ok bool, err error) {
	dir, err := c.cacheDir()
	if err != nil {
		return nil, false, fmt.Errorf("get cache dir: %w", err)
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		printInfo("Cache is empty")
		return nil, false, nil
	}
	fc, err = cache.NewFileCache(dir)
	if err != nil {
		return nil, false, err
	}
	return fc, true, nil
}

func renderCacheEntries(entries []cache.EntryInfo, now time.Time) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		expires := "never"
		switch {
		case e.Expired:
			expires = "expired"
		case !e.ExpiresAt.IsZero():
			expires = "in " + e.ExpiresAt.Sub(now).Round(time.Second).String()
		}
		rows = append(rows, []string{e.Kind, truncate(e.Key, 70), strconv.Itoa(e.Size), expires})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Kind", "Key", "Bytes", "Expires").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 1:
				return StyleHighlight
			case col == 0 || col == 3:
				return StyleDim
			}
			return StyleValue
		}).
		Render()
}
