package cache

import "strings"

// Keyer generates cache keys for server metadata.
type Keyer interface {
	// CatalogKey returns the key of the procedure catalog for a server.
	CatalogKey(opts ServerKeyOpts) string

	// VersionKey returns the key of the server version string.
	VersionKey(opts ServerKeyOpts) string
}

// ServerKeyOpts identifies the server an entry belongs to.
type ServerKeyOpts struct {
	URI           string `json:"uri"`
	Database      string `json:"database,omitempty"`
	ServerVersion string `json:"server_version,omitempty"`
}

// DefaultKeyer builds readable keys from the server identity, e.g.
// "catalog:neo4j://db:7687/analytics@2.6.0". They show up as-is in Redis
// and in `gds cache list`.
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default key generator.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// CatalogKey includes the server version, so an upgraded server never serves
// a stale catalog.
func (DefaultKeyer) CatalogKey(opts ServerKeyOpts) string {
	return KindCatalog + ":" + serverID(opts) + "@" + opts.ServerVersion
}

// VersionKey ignores opts.ServerVersion.
func (DefaultKeyer) VersionKey(opts ServerKeyOpts) string {
	return KindVersion + ":" + serverID(opts)
}

// Key kinds, the leading segment of every [DefaultKeyer] key.
const (
	KindCatalog = "catalog"
	KindVersion = "version"
)

// KeyKind returns the kind segment of key, skipping any scope prefix.
func KeyKind(key string) string {
	for _, kind := range []string{KindCatalog, KindVersion} {
		if strings.HasPrefix(key, kind+":") || strings.Contains(key, ":"+kind+":") {
			return kind
		}
	}
	return ""
}

func serverID(opts ServerKeyOpts) string {
	id := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(opts.URI)), "/")
	if opts.Database != "" {
		id += "/" + opts.Database
	}
	return id
}
