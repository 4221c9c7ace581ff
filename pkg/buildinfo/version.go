// Package buildinfo provides build-time version information.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/neo4j/graph-data-science-client-sub004/pkg/buildinfo.Version=v1.0.0 \
//	    -X github.com/neo4j/graph-data-science-client-sub004/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/neo4j/graph-data-science-client-sub004/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/gds
package buildinfo

import "fmt"

var (
	// Version is the semantic version (e.g., "v1.2.3").
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}

// UserAgent identifies the client to the server, e.g. "gds-client-go/v1.2.3".
func UserAgent() string {
	return "gds-client-go/" + Version
}
