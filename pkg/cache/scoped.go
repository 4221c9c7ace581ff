package cache

// ScopedKeyer wraps a Keyer with a prefix so that several gateways can share
// one Redis instance without seeing each other's entries.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "gds-gateway:eu-1:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// CatalogKey generates a prefixed catalog key.
func (k *ScopedKeyer) CatalogKey(opts ServerKeyOpts) string {
	return k.prefix + k.inner.CatalogKey(opts)
}

// VersionKey generates a prefixed version key.
func (k *ScopedKeyer) VersionKey(opts ServerKeyOpts) string {
	return k.prefix + k.inner.VersionKey(opts)
}
