package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/buildinfo"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/config"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/gds"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/observability"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the command name shown in help and completion output.
const appName = "gds"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	uri        string
	database   string
	noCache    bool
	noArrow    bool
	noProgress bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "gds runs Graph Data Science procedures on a Neo4j server",
		Long: `gds is a client for the Neo4j Graph Data Science library. It resolves
procedure names against the server catalog, marshals arguments into the
shape each procedure expects, tracks progress of long-running jobs and
retries transient failures.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config-file", "", "config file (default $XDG_CONFIG_HOME/gds-client/config.toml)")
	pf.StringVar(&c.uri, "uri", "", "server URI, overrides config and "+config.EnvURI)
	pf.StringVar(&c.database, "database", "", "database name, overrides config and "+config.EnvDatabase)
	pf.BoolVar(&c.noCache, "no-cache", false, "disable the catalog and version cache")
	pf.BoolVar(&c.noArrow, "no-arrow", false, "disable the Arrow Flight channel")
	pf.BoolVar(&c.noProgress, "no-progress", false, "disable progress reporting")

	root.AddCommand(c.callCommand())
	root.AddCommand(c.proceduresCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig resolves the effective configuration: the --config-file (or the
// default config file if present), then environment, then flags.
func (c *CLI) loadConfig() (config.Config, error) {
	path := c.configPath
	if path == "" {
		if p, err := config.DefaultConfigPath(); err == nil {
			if _, err := os.Stat(p); err == nil {
				path = p
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	if c.uri != "" {
		cfg.Connection.URI = c.uri
	}
	if c.database != "" {
		cfg.Connection.Database = c.database
	}
	if c.noCache {
		cfg.Cache.Backend = config.CacheNone
	}
	if c.noArrow {
		cfg.Arrow.Enabled = false
	}
	if c.noProgress {
		cfg.Progress.Enabled = false
	}
	return cfg, cfg.Validate()
}

// =============================================================================
// Client Factory
// =============================================================================

// connect loads the configuration and connects a client, showing a spinner
// while the connection is established.
func (c *CLI) connect(ctx context.Context, hooks observability.Hooks) (*gds.Client, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return c.connectWith(ctx, cfg, hooks)
}

func (c *CLI) connectWith(ctx context.Context, cfg config.Config, hooks observability.Hooks) (*gds.Client, error) {
	store, err := gds.OpenCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	spin := newConnectSpinner(ctx, os.Stderr, "Connecting to "+cfg.Connection.URI+"...")
	spin.Start()
	defer spin.Stop()

	client, err := gds.Connect(ctx, cfg,
		gds.WithLogger(loggerFromContext(ctx)),
		gds.WithCache(store),
		gds.WithHooks(hooks),
		gds.WithRenderer(newRendererFactory(os.Stderr)),
	)
	if err != nil {
		_ = store.Close()
		if spin.Cancelled() {
			return nil, ctx.Err()
		}
		spin.Fail("Could not connect to " + cfg.Connection.URI)
		return nil, err
	}

	if cfg.Arrow.Enabled {
		spin.Phase(fmt.Sprintf("Negotiating bulk channel with GDS %s...", client.ServerVersion()))
	}
	mode := client.Mode(ctx)
	spin.Stop()
	c.Logger.Debug("connected", "server_version", client.ServerVersion(), "mode", mode)
	return client, nil
}

// cacheDir returns the configured file cache directory, or the XDG default
// (~/.cache/gds-client/).
func (c *CLI) cacheDir() (string, error) {
	cfg, err := c.loadConfig()
	if err == nil && cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return config.DefaultCacheDir()
}
