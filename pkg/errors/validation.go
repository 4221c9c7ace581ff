package errors

import (
	"net"
	"regexp"
	"strings"
	"unicode"
)

// segmentRegex matches a single namespace segment. Segments are spliced into
// query text, so only identifier characters are accepted.
var segmentRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateSegment validates a single namespace segment (e.g. "pageRank").
func ValidateSegment(seg string) error {
	if seg == "" {
		return New(ErrCodeNoSuchProcedure, "namespace segment cannot be empty")
	}
	if len(seg) > 128 {
		return New(ErrCodeNoSuchProcedure, "namespace segment too long (max 128 characters)")
	}
	if !segmentRegex.MatchString(seg) {
		return New(ErrCodeNoSuchProcedure, "namespace segment contains invalid characters: %q", seg)
	}
	return nil
}

// ValidateNamespace validates a dotted namespace supplied from outside the
// library (CLI arguments, gateway URLs).
//
// The validation rules are intentionally conservative:
//   - No empty namespace or empty segments
//   - No control characters
//   - Every segment must be an identifier
//   - Maximum length of 512 characters
func ValidateNamespace(ns string) error {
	if ns == "" {
		return New(ErrCodeNoSuchProcedure, "namespace cannot be empty")
	}
	if len(ns) > 512 {
		return New(ErrCodeNoSuchProcedure, "namespace too long (max 512 characters)")
	}
	for _, r := range ns {
		if unicode.IsControl(r) {
			return New(ErrCodeNoSuchProcedure, "namespace contains invalid control characters")
		}
	}
	for _, seg := range strings.Split(ns, ".") {
		if err := ValidateSegment(seg); err != nil {
			return err
		}
	}
	return nil
}

// validURISchemes lists the schemes the Neo4j driver accepts.
var validURISchemes = []string{
	"bolt://", "bolt+s://", "bolt+ssc://",
	"neo4j://", "neo4j+s://", "neo4j+ssc://",
}

// ValidateURI validates a database connection URI.
func ValidateURI(uri string) error {
	if uri == "" {
		return New(ErrCodeInvalidConfig, "URI cannot be empty")
	}
	for _, scheme := range validURISchemes {
		if strings.HasPrefix(uri, scheme) {
			return nil
		}
	}
	return New(ErrCodeInvalidConfig, "URI must use one of the schemes %s", strings.Join(validURISchemes, ", "))
}

// ValidateAddress validates a host:port pair such as an Arrow listen address.
func ValidateAddress(addr string) error {
	if addr == "" {
		return New(ErrCodeInvalidConfig, "address cannot be empty")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return Wrap(ErrCodeInvalidConfig, err, "invalid address %q", addr)
	}
	if host == "" || port == "" {
		return New(ErrCodeInvalidConfig, "address %q must include host and port", addr)
	}
	return nil
}
