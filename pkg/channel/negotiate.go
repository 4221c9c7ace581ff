package channel

import (
	"context"
	"net"
	"slices"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
	"github.com/neo4j/graph-data-science-client-sub004/pkg/version"
)

// DialFunc opens a Flight transport and returns its bearer token.
type DialFunc func(ctx context.Context, opts FlightOptions) (FlightTransport, string, error)

// ArrowNegotiator discovers the server's Flight endpoint with
// gds.debug.arrow() and connects to it.
type ArrowNegotiator struct {
	Runner        Runner
	ServerVersion version.ServerVersion
	Database      string

	// Address overrides the advertised listen address.
	Address string
	// BoltHost replaces wildcard hosts (0.0.0.0, ::) in the listen address.
	BoltHost string

	Username           string
	Password           string
	Encrypted          bool
	InsecureSkipVerify bool

	// Dial defaults to DialFlight.
	Dial DialFunc
}

// DebugArrowQuery returns the query that reports Flight availability on v.
func DebugArrowQuery(v version.ServerVersion) string {
	if v.AtLeast(version.ArrowVersionTags) {
		return "CALL gds.debug.arrow() YIELD running, enabled, listenAddress, versions"
	}
	return "CALL gds.debug.arrow() YIELD running, enabled, listenAddress"
}

// Negotiate implements [NegotiateFunc].
func (n ArrowNegotiator) Negotiate(ctx context.Context) (*BulkChannel, error) {
	res, err := n.Runner.Run(ctx, DebugArrowQuery(n.ServerVersion), nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNegotiationFailed, err, "query bulk channel status")
	}
	if res.Len() == 0 {
		return nil, errors.New(errors.ErrCodeNegotiationFailed, "gds.debug.arrow() returned no rows")
	}

	rec := res.Records()[0]
	if enabled, _ := rec["enabled"].(bool); !enabled {
		return nil, errors.New(errors.ErrCodeUnsupported, "arrow flight server is not enabled")
	}
	if running, _ := rec["running"].(bool); !running {
		return nil, errors.New(errors.ErrCodeUnsupported, "arrow flight server is not running")
	}

	versions := stringsOf(rec["versions"])
	protocol := ProtocolV0
	if len(versions) > 0 {
		if !slices.Contains(versions, ProtocolV1) {
			return nil, errors.New(errors.ErrCodeUnsupported, "no common bulk protocol version (server offers %v)", versions)
		}
		protocol = ProtocolV1
	}

	addr := n.Address
	if addr == "" {
		listen, _ := rec["listenAddress"].(string)
		addr = resolveAddress(listen, n.BoltHost)
	}
	if err := errors.ValidateAddress(addr); err != nil {
		return nil, err
	}

	dial := n.Dial
	if dial == nil {
		dial = DialFlight
	}
	transport, token, err := dial(ctx, FlightOptions{
		Address:            addr,
		Username:           n.Username,
		Password:           n.Password,
		Encrypted:          n.Encrypted,
		InsecureSkipVerify: n.InsecureSkipVerify,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNegotiationFailed, err, "connect to %s", addr)
	}

	return NewBulkChannel(transport, Descriptor{
		Address:   addr,
		Token:     token,
		Encrypted: n.Encrypted,
		Version:   protocol,
		Versions:  versions,
	}, n.Database), nil
}

// resolveAddress substitutes boltHost for a wildcard or empty host.
func resolveAddress(listen, boltHost string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	switch host {
	case "", "0.0.0.0", "::":
		if boltHost != "" {
			host = boltHost
		}
	}
	return net.JoinHostPort(host, port)
}
