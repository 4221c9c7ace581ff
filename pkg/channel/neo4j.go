package channel

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/table"
)

// Neo4jOptions configures the Bolt connection.
type Neo4jOptions struct {
	URI      string
	Username string
	Password string
	Database string // Empty selects the server default

	UserAgent string

	MaxConnectionPoolSize int
	ConnectionTimeout     time.Duration
}

// Neo4jRunner runs statements in auto-commit sessions. Managed transactions
// are not used so that retries stay under the control of the caller's
// retry policy.
type Neo4jRunner struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jRunner creates a driver and verifies connectivity.
func NewNeo4jRunner(ctx context.Context, opts Neo4jOptions) (*Neo4jRunner, error) {
	auth := neo4j.NoAuth()
	if opts.Username != "" {
		auth = neo4j.BasicAuth(opts.Username, opts.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(opts.URI, auth, func(c *neo4j.Config) {
		if opts.UserAgent != "" {
			c.UserAgent = opts.UserAgent
		}
		if opts.MaxConnectionPoolSize > 0 {
			c.MaxConnectionPoolSize = opts.MaxConnectionPoolSize
		}
		if opts.ConnectionTimeout > 0 {
			c.ConnectionAcquisitionTimeout = opts.ConnectionTimeout
			c.SocketConnectTimeout = opts.ConnectionTimeout
		}
	})
	if err != nil {
		return nil, err
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return &Neo4jRunner{driver: driver, database: opts.Database}, nil
}

// Run executes query and collects every record.
func (r *Neo4jRunner) Run(ctx context.Context, query string, params map[string]any) (*table.Table, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: r.database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	keys, err := result.Keys()
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}

	out := table.New(keys...)
	for _, rec := range records {
		out.Append(rec.Values...)
	}
	return out, nil
}

// Database returns the configured database name.
func (r *Neo4jRunner) Database() string { return r.database }

// Close closes the driver.
func (r *Neo4jRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
