// Package version parses and compares GDS server versions and implements the
// compatibility gate applied before every dispatched call.
//
// A [ServerVersion] is parsed once per connection from the string returned
// by gds.version(). Calls may carry a [Window], an optional inclusive lower
// bound and exclusive upper bound registered by namespace in a [Registry]. [Check] compares the two without any I/O and returns an
// [errors.IncompatibleServerVersionError] that is sufficient on its own to
// diagnose the mismatch.
package version

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/neo4j/graph-data-science-client-sub004/pkg/errors"
)

// ServerVersion is a (major, minor, patch) triple. Pre-release and build
// suffixes are ignored.
type ServerVersion struct {
	Major int
	Minor int
	Patch int
}

var versionRE = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)

// New returns the version major.minor.patch.
func New(major, minor, patch int) ServerVersion {
	return ServerVersion{Major: major, Minor: minor, Patch: patch}
}

// Parse reads a version string such as "2.6.0", "2.6.0-alpha01" or
// "2.13.4+182". A leading "v" is accepted.
func Parse(s string) (ServerVersion, error) {
	if len(s) > 0 && s[0] == 'v' {
		s = s[1:]
	}
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return ServerVersion{}, errors.New(errors.ErrCodeUnsupported, "%q is not a valid server version", s)
	}
	// The regex guarantees digits; Atoi can only fail on overflow.
	parts := make([]int, 3)
	for i := range parts {
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return ServerVersion{}, errors.Wrap(errors.ErrCodeUnsupported, err, "%q is not a valid server version", s)
		}
		parts[i] = n
	}
	return New(parts[0], parts[1], parts[2]), nil
}

// MustParse is like Parse but panics on error. Intended for package-level
// tables of known versions.
func MustParse(s string) ServerVersion {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Compare returns -1, 0 or +1 depending on whether v is older than, equal to
// or newer than o.
func (v ServerVersion) Compare(o ServerVersion) int {
	switch {
	case v.Major != o.Major:
		return sign(v.Major - o.Major)
	case v.Minor != o.Minor:
		return sign(v.Minor - o.Minor)
	default:
		return sign(v.Patch - o.Patch)
	}
}

// Less reports whether v is older than o.
func (v ServerVersion) Less(o ServerVersion) bool { return v.Compare(o) < 0 }

// AtLeast reports whether v is o or newer.
func (v ServerVersion) AtLeast(o ServerVersion) bool { return v.Compare(o) >= 0 }

// IsZero reports whether v is the zero value (no version known).
func (v ServerVersion) IsZero() bool { return v == ServerVersion{} }

func (v ServerVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// Feature thresholds used across the client.
var (
	// ProgressLogging is the first server version able to report job progress.
	ProgressLogging = New(2, 1, 0)

	// ListProgressGA is the first server version exposing gds.listProgress
	// outside the beta tier.
	ListProgressGA = New(2, 5, 0)

	// ArrowVersionTags is the first server version reporting supported Arrow
	// protocol versions during negotiation.
	ArrowVersionTags = New(2, 6, 0)
)
